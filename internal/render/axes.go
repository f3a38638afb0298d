// Package render provides the drawing surface handed to configured figure
// and review functions. An Axes wraps an RGBA raster with a figure-space
// coordinate system: callers plot in data coordinates and the Axes maps them
// onto pixels, flipping the y axis (figure y grows upward, pixel y grows
// downward).
package render

import (
	"image"
	"image/color"
	"image/draw"

	"cortex-annotate/pkg/geometry"
	"cortex-annotate/pkg/raster"
)

// Axes is a drawing surface with figure-space coordinates.
type Axes struct {
	img    *image.RGBA
	dpi    int
	xlim   *geometry.Limits
	ylim   *geometry.Limits
	meta   map[string]any
}

// NewAxes creates an Axes backed by a white raster of the given pixel size.
func NewAxes(width, height, dpi int) *Axes {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	return &Axes{
		img:  img,
		dpi:  dpi,
		meta: make(map[string]any),
	}
}

// Image returns the backing raster.
func (a *Axes) Image() *image.RGBA {
	return a.img
}

// Size returns the raster size in pixels.
func (a *Axes) Size() (width, height int) {
	b := a.img.Bounds()
	return b.Dx(), b.Dy()
}

// DPI returns the nominal resolution the figure is rendered at.
func (a *Axes) DPI() int {
	return a.dpi
}

// SetXLim sets the figure-space x range.
func (a *Axes) SetXLim(min, max float64) {
	l := geometry.NewLimits(min, max)
	a.xlim = &l
}

// SetYLim sets the figure-space y range.
func (a *Axes) SetYLim(min, max float64) {
	l := geometry.NewLimits(min, max)
	a.ylim = &l
}

// XLim returns the x range. When no range was set, the pixel extent is
// reported, matching what a renderer that never touched its limits shows.
func (a *Axes) XLim() geometry.Limits {
	if a.xlim != nil {
		return *a.xlim
	}
	w, _ := a.Size()
	return geometry.NewLimits(0, float64(w))
}

// YLim returns the y range, defaulting to the pixel extent.
func (a *Axes) YLim() geometry.Limits {
	if a.ylim != nil {
		return *a.ylim
	}
	_, h := a.Size()
	return geometry.NewLimits(0, float64(h))
}

// LimitsSet reports whether the renderer set explicit limits.
func (a *Axes) LimitsSet() (x, y bool) {
	return a.xlim != nil, a.ylim != nil
}

// SetMeta attaches an extra metadata entry persisted with the figure.
func (a *Axes) SetMeta(key string, value any) {
	a.meta[key] = value
}

// Meta returns the extra metadata entries.
func (a *Axes) Meta() map[string]any {
	return a.meta
}

// ToPixel maps a figure-space point to pixel coordinates.
func (a *Axes) ToPixel(p geometry.Point2D) geometry.Point2D {
	w, h := a.Size()
	xl, yl := a.XLim(), a.YLim()
	x := (p.X - xl.Min) / xl.Span() * float64(w)
	y := float64(h) - (p.Y-yl.Min)/yl.Span()*float64(h)
	return geometry.Point2D{X: x, Y: y}
}

// Fill paints the whole raster with a color.
func (a *Axes) Fill(col color.RGBA) {
	draw.Draw(a.img, a.img.Bounds(), &image.Uniform{col}, image.Point{}, draw.Src)
}

// DrawImage places a pre-rendered raster over the whole surface.
func (a *Axes) DrawImage(src image.Image) {
	draw.Draw(a.img, a.img.Bounds(), src, src.Bounds().Min, draw.Over)
}

// Plot strokes a polyline given in figure-space coordinates.
func (a *Axes) Plot(points []geometry.Point2D, col color.RGBA, width int) {
	px := make([]geometry.Point2D, len(points))
	for i, p := range points {
		px[i] = a.ToPixel(p)
	}
	raster.Polyline(a.img, px, col, width, nil, false)
}

// Scatter draws filled markers at figure-space coordinates.
func (a *Axes) Scatter(points []geometry.Point2D, col color.RGBA, size float64) {
	for _, p := range points {
		raster.FillCircle(a.img, a.ToPixel(p), size, col)
	}
}

// Text draws a label with its top-left corner at a figure-space position.
func (a *Axes) Text(s string, at geometry.Point2D, col color.RGBA, scale int) {
	p := a.ToPixel(at)
	raster.Text(a.img, s, int(p.X), int(p.Y), scale, col)
}
