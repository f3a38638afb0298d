// Package grid maps annotation points between figure coordinates and the
// pixel coordinates of a composited grid image.
package grid

import (
	"fmt"
	"math"

	"cortex-annotate/pkg/geometry"
)

// Mapper converts between figure coordinates and grid-image pixel
// coordinates. A grid image tiles Rows x Cols figure cells, each CellWidth x
// CellHeight pixels; every cell shows the same figure extent, so a single
// figure point appears once per cell. Figure y grows upward, pixel y grows
// downward.
type Mapper struct {
	Rows, Cols int
	CellWidth  float64
	CellHeight float64
	XLim, YLim *geometry.Limits
}

// NewMapper builds a mapper for a grid composite of the given shape and
// total pixel size.
func NewMapper(rows, cols, imageWidth, imageHeight int, xlim, ylim *geometry.Limits) (*Mapper, error) {
	if rows < 1 || cols < 1 {
		return nil, fmt.Errorf("grid: invalid shape %dx%d", rows, cols)
	}
	if imageWidth%cols != 0 || imageHeight%rows != 0 {
		return nil, fmt.Errorf("grid: image %dx%d does not divide into %dx%d cells",
			imageWidth, imageHeight, rows, cols)
	}
	return &Mapper{
		Rows:       rows,
		Cols:       cols,
		CellWidth:  float64(imageWidth / cols),
		CellHeight: float64(imageHeight / rows),
		XLim:       xlim,
		YLim:       ylim,
	}, nil
}

func (m *Mapper) xlim() geometry.Limits {
	if m.XLim != nil {
		return *m.XLim
	}
	return geometry.Limits{Min: 0, Max: m.CellWidth}
}

func (m *Mapper) ylim() geometry.Limits {
	if m.YLim != nil {
		return *m.YLim
	}
	return geometry.Limits{Min: 0, Max: m.CellHeight}
}

// FigureToImage converts figure-coordinate points into pixel coordinates for
// every grid cell. The result holds one point list per cell in row-major
// order.
func (m *Mapper) FigureToImage(points []geometry.Point2D) [][]geometry.Point2D {
	xl, yl := m.xlim(), m.ylim()
	sx := m.CellWidth / xl.Span()
	sy := m.CellHeight / yl.Span()
	cells := make([][]geometry.Point2D, 0, m.Rows*m.Cols)
	for row := 0; row < m.Rows; row++ {
		for col := 0; col < m.Cols; col++ {
			ox := float64(col) * m.CellWidth
			oy := float64(row) * m.CellHeight
			cell := make([]geometry.Point2D, len(points))
			for i, p := range points {
				px := (p.X - xl.Min) * sx
				py := (p.Y - yl.Min) * sy
				cell[i] = geometry.Point2D{
					X: ox + px,
					Y: oy + (m.CellHeight - py),
				}
			}
			cells = append(cells, cell)
		}
	}
	return cells
}

// ImageToFigure converts pixel coordinates anywhere on the grid image back
// into figure coordinates. Each point is first reduced to its position
// within a single cell, so clicks in any cell yield the same figure point.
// A pixel exactly on a cell edge belongs to the next cell.
func (m *Mapper) ImageToFigure(points []geometry.Point2D) []geometry.Point2D {
	xl, yl := m.xlim(), m.ylim()
	sx := xl.Span() / m.CellWidth
	sy := yl.Span() / m.CellHeight
	out := make([]geometry.Point2D, len(points))
	for i, p := range points {
		px := math.Mod(p.X, m.CellWidth)
		py := math.Mod(p.Y, m.CellHeight)
		if px < 0 {
			px += m.CellWidth
		}
		if py < 0 {
			py += m.CellHeight
		}
		out[i] = geometry.Point2D{
			X: xl.Min + px*sx,
			Y: yl.Min + (m.CellHeight-py)*sy,
		}
	}
	return out
}

// CellAt reports the row and column of the cell containing the given pixel.
func (m *Mapper) CellAt(p geometry.Point2D) (row, col int) {
	col = int(p.X / m.CellWidth)
	row = int(p.Y / m.CellHeight)
	if col < 0 {
		col = 0
	} else if col >= m.Cols {
		col = m.Cols - 1
	}
	if row < 0 {
		row = 0
	} else if row >= m.Rows {
		row = m.Rows - 1
	}
	return row, col
}
