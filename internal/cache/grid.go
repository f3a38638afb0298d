package cache

import (
	"fmt"
	"image"
	"image/draw"
	"path/filepath"

	"cortex-annotate/internal/config"
)

// GridCache caches composited annotation grids under Root/grids. A grid
// tiles the annotation's figures into one image; empty cells stay
// transparent. Every figure in a grid must share the same coordinate limits
// and pixel size.
type GridCache struct {
	Root    string
	Figures *FigureCache
	Loading Indicator
}

func (c *GridCache) paths(target *config.Target, annot string) (string, string) {
	dir := filepath.Join(c.Root, "grids", target.Path())
	return filepath.Join(dir, annot+".png"), filepath.Join(dir, annot+".json")
}

// Get returns the cached grid image for an annotation, composing and caching
// it first when absent. The metadata holds the shared cell limits.
func (c *GridCache) Get(target *config.Target, annot *config.Annotation) (image.Image, Metadata, error) {
	imgPath, metaPath := c.paths(target, annot.Name)
	if cached(imgPath, metaPath) {
		return loadEntry(imgPath, metaPath)
	}

	if c.Loading != nil {
		c.Loading.Enter()
		defer c.Loading.Exit()
	}
	img, meta, err := c.compose(target, annot)
	if err != nil {
		return nil, Metadata{}, err
	}
	if err := saveEntry(imgPath, metaPath, img, meta); err != nil {
		return nil, Metadata{}, err
	}
	return img, meta, nil
}

func (c *GridCache) compose(target *config.Target, annot *config.Annotation) (image.Image, Metadata, error) {
	rows, cols := annot.GridShape()
	cells := make([]image.Image, rows*cols)
	var meta Metadata
	haveMeta := false
	for r := 0; r < rows; r++ {
		for col := 0; col < cols; col++ {
			name := annot.Grid[r][col]
			if name == "" {
				continue
			}
			img, m, err := c.Figures.Get(target, name)
			if err != nil {
				return nil, Metadata{}, err
			}
			if !haveMeta {
				meta = Metadata{XLim: m.XLim, YLim: m.YLim}
				haveMeta = true
			} else if m.XLim != meta.XLim || m.YLim != meta.YLim {
				return nil, Metadata{}, fmt.Errorf(
					"cache: figure %q limits x=%v y=%v do not match the grid of %q (x=%v y=%v)",
					name, m.XLim, m.YLim, annot.Name, meta.XLim, meta.YLim)
			}
			cells[r*cols+col] = img
		}
	}
	if !haveMeta {
		return nil, Metadata{}, fmt.Errorf("cache: annotation %q has no figures in its grid", annot.Name)
	}

	var cellW, cellH int
	for _, img := range cells {
		if img == nil {
			continue
		}
		b := img.Bounds()
		if cellW == 0 {
			cellW, cellH = b.Dx(), b.Dy()
		} else if b.Dx() != cellW || b.Dy() != cellH {
			return nil, Metadata{}, fmt.Errorf(
				"cache: grid of %q mixes figure sizes %dx%d and %dx%d",
				annot.Name, cellW, cellH, b.Dx(), b.Dy())
		}
	}

	out := image.NewRGBA(image.Rect(0, 0, cols*cellW, rows*cellH))
	for i, img := range cells {
		if img == nil {
			continue
		}
		r, col := i/cols, i%cols
		dst := image.Rect(col*cellW, r*cellH, (col+1)*cellW, (r+1)*cellH)
		draw.Draw(out, dst, img, img.Bounds().Min, draw.Src)
	}
	return out, meta, nil
}
