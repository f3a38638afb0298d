package cache

import (
	"fmt"
	"image"
	"path/filepath"

	"cortex-annotate/internal/config"
	"cortex-annotate/internal/render"
)

// FigureCache caches individual rendered figures under Root/figures. The
// first request for a figure renders it through Render and writes the image
// plus its limits sidecar; later requests read the files back without
// re-rendering.
type FigureCache struct {
	Root    string
	Render  func(target *config.Target, figure string) (*render.Axes, error)
	Loading Indicator
}

func (c *FigureCache) paths(target *config.Target, figure string) (string, string) {
	dir := filepath.Join(c.Root, "figures", target.Path())
	return filepath.Join(dir, figure+".png"), filepath.Join(dir, figure+".json")
}

// Get returns the cached figure image and its limits, rendering and caching
// it first when absent.
func (c *FigureCache) Get(target *config.Target, figure string) (image.Image, Metadata, error) {
	if figure == "" {
		return nil, Metadata{}, fmt.Errorf("cache: empty figure name")
	}
	imgPath, metaPath := c.paths(target, figure)
	if cached(imgPath, metaPath) {
		return loadEntry(imgPath, metaPath)
	}

	if c.Loading != nil {
		c.Loading.Enter()
		defer c.Loading.Exit()
	}
	ax, err := c.Render(target, figure)
	if err != nil {
		return nil, Metadata{}, fmt.Errorf("cache: rendering figure %q for %s: %w",
			figure, target.ID(), err)
	}
	extra := ax.Meta()
	if len(extra) == 0 {
		extra = nil
	}
	meta := Metadata{XLim: ax.XLim(), YLim: ax.YLim(), Extra: extra}
	if err := saveEntry(imgPath, metaPath, ax.Image(), meta); err != nil {
		return nil, Metadata{}, err
	}
	return ax.Image(), meta, nil
}
