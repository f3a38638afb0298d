package canvas

import (
	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"
)

// clickCatcher wraps the raster to receive tap events and forward them as
// native-pixel clicks.
type clickCatcher struct {
	widget.BaseWidget
	panel  *FigurePanel
	raster *fynecanvas.Raster
}

func newClickCatcher(panel *FigurePanel, raster *fynecanvas.Raster) *clickCatcher {
	cc := &clickCatcher{panel: panel, raster: raster}
	cc.ExtendBaseWidget(cc)
	return cc
}

func (cc *clickCatcher) MinSize() fyne.Size {
	return cc.raster.MinSize()
}

func (cc *clickCatcher) Tapped(ev *fyne.PointEvent) {
	if cc.panel.onClick == nil {
		return
	}
	// Reject positions outside the widget; Fyne occasionally delivers them.
	size := cc.Size()
	if ev.Position.X < 0 || ev.Position.Y < 0 ||
		ev.Position.X > size.Width || ev.Position.Y > size.Height {
		return
	}
	p, ok := cc.panel.toNative(ev.Position)
	if !ok {
		return
	}
	cc.panel.onClick(p)
}

func (cc *clickCatcher) CreateRenderer() fyne.WidgetRenderer {
	return &clickCatcherRenderer{catcher: cc}
}

type clickCatcherRenderer struct {
	catcher *clickCatcher
}

func (r *clickCatcherRenderer) Layout(size fyne.Size) {
	r.catcher.raster.Resize(size)
}

func (r *clickCatcherRenderer) MinSize() fyne.Size {
	return r.catcher.raster.MinSize()
}

func (r *clickCatcherRenderer) Refresh() {
	r.catcher.raster.Refresh()
}

func (r *clickCatcherRenderer) Objects() []fyne.CanvasObject {
	return []fyne.CanvasObject{r.catcher.raster}
}

func (r *clickCatcherRenderer) Destroy() {}
