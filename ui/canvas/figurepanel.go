// Package canvas provides the annotation drawing surface: the cached grid
// image with annotation paths, fixed endpoints, and status overlays drawn on
// top.
package canvas

import (
	"image"
	"image/color"
	"image/draw"
	"sync"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"
	xdraw "golang.org/x/image/draw"

	"cortex-annotate/internal/app"
	"cortex-annotate/internal/config"
	"cortex-annotate/internal/editor"
	"cortex-annotate/internal/grid"
	"cortex-annotate/pkg/geometry"
	"cortex-annotate/pkg/raster"
)

// FigurePanel displays the current annotation grid and the drawn paths on
// top of it. Clicks are reported in native grid-image pixel coordinates.
// The panel doubles as the cache loading indicator: while a render is in
// flight it dims the surface and shows a notice.
type FigurePanel struct {
	widget.BaseWidget

	mu sync.Mutex

	state  *app.State
	mapper *grid.Mapper

	gridImg    image.Image
	paths      map[string][]geometry.Point2D
	builtins   map[string][][]geometry.Point2D
	foreground string
	fixedHead  *geometry.Point2D
	fixedTail  *geometry.Point2D
	cursor     editor.Cursor

	message string
	review  image.Image
	loading int

	displaySize int

	raster  *fynecanvas.Raster
	content *clickCatcher

	onClick func(p geometry.Point2D)
}

func NewFigurePanel(state *app.State) *FigurePanel {
	fp := &FigurePanel{
		state:       state,
		paths:       map[string][]geometry.Point2D{},
		builtins:    map[string][][]geometry.Point2D{},
		displaySize: state.ImageSize(),
	}
	fp.raster = fynecanvas.NewRaster(fp.draw)
	fp.raster.ScaleMode = fynecanvas.ImageScaleSmooth
	fp.raster.SetMinSize(fyne.NewSize(float32(fp.displaySize), float32(fp.displaySize)))
	fp.content = newClickCatcher(fp, fp.raster)
	fp.ExtendBaseWidget(fp)
	return fp
}

// Container returns the panel's top-level object for embedding in layouts.
func (fp *FigurePanel) Container() fyne.CanvasObject {
	return fp.content
}

// OnClick sets the click callback. Coordinates are native grid pixels.
func (fp *FigurePanel) OnClick(fn func(p geometry.Point2D)) {
	fp.onClick = fn
}

// SetGrid installs a freshly loaded grid image and its coordinate mapper.
func (fp *FigurePanel) SetGrid(img image.Image, mapper *grid.Mapper) {
	fp.mu.Lock()
	fp.gridImg = img
	fp.mapper = mapper
	fp.mu.Unlock()
	fp.updateSize()
}

// SetPaths replaces the drawn annotation paths shown on the grid.
func (fp *FigurePanel) SetPaths(paths map[string][]geometry.Point2D) {
	fp.mu.Lock()
	fp.paths = paths
	fp.mu.Unlock()
	fp.Refresh()
}

// SetPath updates one annotation's path in place.
func (fp *FigurePanel) SetPath(name string, pts []geometry.Point2D) {
	fp.mu.Lock()
	if pts == nil {
		delete(fp.paths, name)
	} else {
		fp.paths[name] = pts
	}
	fp.mu.Unlock()
	fp.Refresh()
}

// SetBuiltins replaces the builtin annotation data shown in the background.
func (fp *FigurePanel) SetBuiltins(data map[string][][]geometry.Point2D) {
	fp.mu.Lock()
	fp.builtins = data
	fp.mu.Unlock()
	fp.Refresh()
}

// SetForeground marks which annotation is being edited and carries its
// resolved fixed endpoints and the active cursor.
func (fp *FigurePanel) SetForeground(name string, head, tail *geometry.Point2D, cursor editor.Cursor) {
	fp.mu.Lock()
	fp.foreground = name
	fp.fixedHead = head
	fp.fixedTail = tail
	fp.cursor = cursor
	fp.mu.Unlock()
	fp.Refresh()
}

// SetCursor updates only the editing cursor marker.
func (fp *FigurePanel) SetCursor(c editor.Cursor) {
	fp.mu.Lock()
	fp.cursor = c
	fp.mu.Unlock()
	fp.Refresh()
}

// SetMessage shows an advisory message over a dimmed surface; the empty
// string clears it.
func (fp *FigurePanel) SetMessage(msg string) {
	fp.mu.Lock()
	fp.message = msg
	fp.mu.Unlock()
	fp.Refresh()
}

// SetReview shows a rendered review image instead of the grid; nil returns
// to editing view.
func (fp *FigurePanel) SetReview(img image.Image) {
	fp.mu.Lock()
	fp.review = img
	fp.mu.Unlock()
	fp.Refresh()
}

// Reviewing reports whether a review image is currently shown.
func (fp *FigurePanel) Reviewing() bool {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	return fp.review != nil
}

// Blocked reports whether editing input should be ignored: a review image
// or an advisory message is covering the surface.
func (fp *FigurePanel) Blocked() bool {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	return fp.review != nil || fp.message != ""
}

// SetDisplaySize changes the on-screen width of one grid cell in pixels.
func (fp *FigurePanel) SetDisplaySize(px int) {
	fp.mu.Lock()
	fp.displaySize = px
	fp.mu.Unlock()
	fp.updateSize()
}

// Enter implements cache.Indicator; the first nested Enter dims the panel.
func (fp *FigurePanel) Enter() {
	fp.mu.Lock()
	fp.loading++
	show := fp.loading == 1
	fp.mu.Unlock()
	if show {
		fp.Refresh()
	}
}

// Exit implements cache.Indicator; the matching Exit clears the dimming.
func (fp *FigurePanel) Exit() {
	fp.mu.Lock()
	if fp.loading > 0 {
		fp.loading--
	}
	clear := fp.loading == 0
	fp.mu.Unlock()
	if clear {
		fp.Refresh()
	}
}

// scale is the native-pixel to display-pixel factor.
func (fp *FigurePanel) scale() float64 {
	if fp.mapper == nil || fp.mapper.CellWidth <= 0 {
		return 1
	}
	return float64(fp.displaySize) / fp.mapper.CellWidth
}

func (fp *FigurePanel) displayDims() (int, int) {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	if fp.gridImg == nil {
		return fp.displaySize, fp.displaySize
	}
	b := fp.gridImg.Bounds()
	s := fp.scale()
	return int(float64(b.Dx()) * s), int(float64(b.Dy()) * s)
}

func (fp *FigurePanel) updateSize() {
	w, h := fp.displayDims()
	size := fyne.NewSize(float32(w), float32(h))
	fp.raster.SetMinSize(size)
	fp.raster.Resize(size)
	fp.content.Resize(size)
	fp.Refresh()
}

// toNative converts a display position into native grid pixels.
func (fp *FigurePanel) toNative(pos fyne.Position) (geometry.Point2D, bool) {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	if fp.gridImg == nil || fp.review != nil || fp.message != "" {
		return geometry.Point2D{}, false
	}
	s := fp.scale()
	if s <= 0 {
		return geometry.Point2D{}, false
	}
	return geometry.Point2D{
		X: float64(pos.X) / s,
		Y: float64(pos.Y) / s,
	}, true
}

func (fp *FigurePanel) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(fp.content)
}

// draw composes the panel at native grid resolution and scales the result
// to the requested display size.
func (fp *FigurePanel) draw(w, h int) image.Image {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	if w < 1 || h < 1 {
		w, h = 1, 1
	}
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(out, out.Bounds(), image.White, image.Point{}, draw.Src)

	if fp.review != nil {
		xdraw.BiLinear.Scale(out, out.Bounds(), fp.review, fp.review.Bounds(), xdraw.Over, nil)
		return out
	}

	if fp.gridImg != nil {
		b := fp.gridImg.Bounds()
		native := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(native, native.Bounds(), image.White, image.Point{}, draw.Src)
		draw.Draw(native, native.Bounds(), fp.gridImg, b.Min, draw.Over)
		fp.drawBuiltins(native)
		fp.drawAnnotations(native)
		xdraw.BiLinear.Scale(out, out.Bounds(), native, native.Bounds(), xdraw.Over, nil)
	}

	if fp.loading > 0 {
		fp.drawNotice(out, "rendering figures, please wait")
	} else if fp.message != "" {
		fp.drawNotice(out, fp.message)
	}
	return out
}

func (fp *FigurePanel) drawBuiltins(output *image.RGBA) {
	if fp.mapper == nil {
		return
	}
	for _, name := range fp.state.Config.BuiltinOrder {
		data, ok := fp.builtins[name]
		if !ok {
			continue
		}
		st := fp.state.Style(name, false)
		if !st.Visible {
			continue
		}
		col := st.RGBA()
		b := fp.state.Config.Builtins[name]
		for _, path := range data {
			for _, cell := range fp.mapper.FigureToImage(path) {
				if b.Type == config.Lines {
					raster.Polyline(output, cell, col, int(st.LineWidth+0.5), st.DashPattern(), false)
				} else {
					for _, p := range cell {
						raster.FillCircle(output, p, st.MarkerSize, col)
					}
				}
			}
		}
	}
}

func (fp *FigurePanel) drawAnnotations(output *image.RGBA) {
	if fp.mapper == nil {
		return
	}
	// Background annotations first so the foreground draws over them.
	for _, name := range fp.state.Config.AnnotationOrder {
		if name == fp.foreground {
			continue
		}
		if pts, ok := fp.paths[name]; ok {
			fp.drawPath(output, name, pts, false)
		}
	}
	if fp.foreground != "" {
		fp.drawPath(output, fp.foreground, fp.paths[fp.foreground], true)
	}
}

func (fp *FigurePanel) drawPath(output *image.RGBA, name string, pts []geometry.Point2D, foreground bool) {
	st := fp.state.Style(name, foreground)
	if !st.Visible {
		return
	}
	col := st.RGBA()
	typ := fp.state.Config.AnnotationType(name)
	for _, cell := range fp.mapper.FigureToImage(pts) {
		if typ.Joined() && len(cell) > 1 {
			raster.Polyline(output, cell, col, int(st.LineWidth+0.5), st.DashPattern(), typ.Closed())
		}
		for _, p := range cell {
			raster.FillCircle(output, p, st.MarkerSize, col)
		}
	}
	if !foreground {
		return
	}
	// Fixed endpoints render as squares so they read as immovable; the
	// cursor end carries an open circle.
	half := int(st.MarkerSize + 1.5)
	markFixed := func(fix *geometry.Point2D) {
		if fix == nil {
			return
		}
		for _, cell := range fp.mapper.FigureToImage([]geometry.Point2D{*fix}) {
			p := cell[0]
			raster.FillRect(output, int(p.X)-half, int(p.Y)-half, 2*half, 2*half, col)
		}
	}
	markFixed(fp.fixedHead)
	markFixed(fp.fixedTail)
	fp.drawCursorMarker(output, pts, col, st.MarkerSize, st.LineWidth)
}

// drawCursorMarker circles the free point that the next push or pop acts on.
func (fp *FigurePanel) drawCursorMarker(output *image.RGBA, pts []geometry.Point2D, col color.RGBA, markerSize, lineWidth float64) {
	free := pts
	if fp.fixedHead != nil && len(free) > 0 {
		free = free[1:]
	}
	if fp.fixedTail != nil && len(free) > 0 {
		free = free[:len(free)-1]
	}
	if len(free) == 0 {
		return
	}
	at := free[len(free)-1]
	if fp.cursor == editor.Head {
		at = free[0]
	}
	radius := (markerSize + 1) * 4 / 3
	thickness := lineWidth * 3 / 4
	if thickness < 1 {
		thickness = 1
	}
	for _, cell := range fp.mapper.FigureToImage([]geometry.Point2D{at}) {
		raster.StrokeCircle(output, cell[0], radius, col, thickness)
	}
}

// drawNotice dims the surface and centers wrapped text over it.
func (fp *FigurePanel) drawNotice(output *image.RGBA, msg string) {
	b := output.Bounds()
	raster.BlendRect(output, b.Min.X, b.Min.Y, b.Dx(), b.Dy(),
		color.RGBA{R: 255, G: 255, B: 255, A: 217})
	scale := 2
	maxChars := b.Dx() / (4 * scale)
	if maxChars < 8 {
		maxChars = 8
	}
	lines := raster.WrapText(msg, maxChars)
	lineH := 6 * scale
	y := b.Min.Y + (b.Dy()-lineH*len(lines))/2
	black := color.RGBA{A: 255}
	for _, line := range lines {
		x := b.Min.X + (b.Dx()-raster.TextWidth(line, scale))/2
		raster.Text(output, line, x, y, scale, black)
		y += lineH
	}
}
