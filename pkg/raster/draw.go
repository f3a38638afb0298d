// Package raster provides software drawing primitives for RGBA images.
package raster

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"cortex-annotate/pkg/geometry"
)

// Line draws a straight line between two points using Bresenham traversal.
func Line(output *image.RGBA, p1, p2 geometry.Point2D, col color.RGBA, thickness int) {
	dashedLine(output, p1, p2, col, thickness, nil, nil)
}

// Polyline draws a connected sequence of line segments. If closed is true,
// the last point is joined back to the first. The dash pattern (alternating
// on/off lengths in pixels) continues across segment joins.
func Polyline(output *image.RGBA, points []geometry.Point2D, col color.RGBA, thickness int, dash []float64, closed bool) {
	if len(points) < 2 {
		return
	}
	var state *dashState
	if len(dash) > 0 {
		state = &dashState{pattern: dash}
	}
	for i := 1; i < len(points); i++ {
		dashedLine(output, points[i-1], points[i], col, thickness, dash, state)
	}
	if closed {
		dashedLine(output, points[len(points)-1], points[0], col, thickness, dash, state)
	}
}

// dashState carries the position within a dash pattern across segments.
type dashState struct {
	pattern []float64
	offset  float64
}

// on reports whether the pen is down at the given distance into the pattern.
func (d *dashState) on(dist float64) bool {
	total := 0.0
	for _, seg := range d.pattern {
		total += seg
	}
	if total <= 0 {
		return true
	}
	pos := math.Mod(d.offset+dist, total)
	for i, seg := range d.pattern {
		if pos < seg {
			return i%2 == 0
		}
		pos -= seg
	}
	return true
}

// advance moves the pattern offset past a completed segment.
func (d *dashState) advance(length float64) {
	d.offset += length
}

func dashedLine(output *image.RGBA, p1, p2 geometry.Point2D, col color.RGBA, thickness int, dash []float64, state *dashState) {
	bounds := output.Bounds()

	x1, y1 := int(math.Round(p1.X)), int(math.Round(p1.Y))
	x2, y2 := int(math.Round(p2.X)), int(math.Round(p2.Y))
	startX, startY := x1, y1

	dx := x2 - x1
	dy := y2 - y1
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}

	sx := 1
	if x1 > x2 {
		sx = -1
	}
	sy := 1
	if y1 > y2 {
		sy = -1
	}

	errv := dx - dy

	for {
		penDown := true
		if state != nil {
			ddx := float64(x1 - startX)
			ddy := float64(y1 - startY)
			penDown = state.on(math.Sqrt(ddx*ddx + ddy*ddy))
		}
		if penDown {
			for t := -thickness / 2; t <= thickness/2; t++ {
				for s := -thickness / 2; s <= thickness/2; s++ {
					px, py := x1+s, y1+t
					if px >= bounds.Min.X && px < bounds.Max.X && py >= bounds.Min.Y && py < bounds.Max.Y {
						output.Set(px, py, col)
					}
				}
			}
		}

		if x1 == x2 && y1 == y2 {
			break
		}

		e2 := 2 * errv
		if e2 > -dy {
			errv -= dy
			x1 += sx
		}
		if e2 < dx {
			errv += dx
			y1 += sy
		}
	}

	if state != nil {
		state.advance(p1.Distance(p2))
	}
}

// FillCircle draws a filled circle centered at c.
func FillCircle(output *image.RGBA, c geometry.Point2D, radius float64, col color.RGBA) {
	circle(output, c, radius, col, true, 0)
}

// StrokeCircle draws a circle outline centered at c.
func StrokeCircle(output *image.RGBA, c geometry.Point2D, radius float64, col color.RGBA, thickness float64) {
	circle(output, c, radius, col, false, thickness)
}

func circle(output *image.RGBA, c geometry.Point2D, radius float64, col color.RGBA, filled bool, thickness float64) {
	bounds := output.Bounds()

	minX := int(c.X - radius - 1)
	maxX := int(c.X + radius + 1)
	minY := int(c.Y - radius - 1)
	maxY := int(c.Y + radius + 1)

	r2 := radius * radius
	inner := radius - thickness
	if inner < 0 {
		inner = 0
	}
	innerR2 := inner * inner

	for y := minY; y <= maxY; y++ {
		if y < bounds.Min.Y || y >= bounds.Max.Y {
			continue
		}
		for x := minX; x <= maxX; x++ {
			if x < bounds.Min.X || x >= bounds.Max.X {
				continue
			}
			dx := float64(x) - c.X
			dy := float64(y) - c.Y
			dist2 := dx*dx + dy*dy

			if filled {
				if dist2 <= r2 {
					output.Set(x, y, col)
				}
			} else if dist2 <= r2 && dist2 >= innerR2 {
				output.Set(x, y, col)
			}
		}
	}
}

// FillRect fills an axis-aligned rectangle.
func FillRect(output *image.RGBA, x, y, w, h int, col color.RGBA) {
	r := image.Rect(x, y, x+w, y+h).Intersect(output.Bounds())
	draw.Draw(output, r, &image.Uniform{col}, image.Point{}, draw.Src)
}

// BlendRect fills an axis-aligned rectangle with alpha blending.
func BlendRect(output *image.RGBA, x, y, w, h int, col color.RGBA) {
	r := image.Rect(x, y, x+w, y+h).Intersect(output.Bounds())
	draw.Draw(output, r, &image.Uniform{col}, image.Point{}, draw.Over)
}
