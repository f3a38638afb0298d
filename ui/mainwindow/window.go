// Package mainwindow provides the main application window and wires the
// selection panel, the figure panel, and the editing state machine together.
package mainwindow

import (
	"log"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"cortex-annotate/internal/app"
	"cortex-annotate/internal/config"
	"cortex-annotate/internal/editor"
	"cortex-annotate/internal/grid"
	"cortex-annotate/pkg/geometry"
	"cortex-annotate/ui/canvas"
	"cortex-annotate/ui/panels"
)

// MainWindow is the primary application window.
type MainWindow struct {
	fyne.Window
	app      fyne.App
	state    *app.State
	panel    *canvas.FigurePanel
	controls *panels.ControlPanel
	status   *widget.Label

	// mu serializes editor access between the key and click handlers and
	// the figure-load goroutines; refreshGen lets a superseded load detect
	// it is stale and bail out.
	mu         sync.Mutex
	editor     *editor.Editor
	refreshGen uint64

	// currentTarget is the target whose annotations are loaded; the panel's
	// selection has already moved on when a change fires.
	currentTarget *config.Target
}

// New creates the main window. The figure panel becomes the caches' loading
// indicator so slow renders dim the drawing surface.
func New(fyneApp fyne.App, state *app.State) *MainWindow {
	win := fyneApp.NewWindow("Cortex Annotate")
	mw := &MainWindow{
		Window: win,
		app:    fyneApp,
		state:  state,
		editor: &editor.Editor{},
	}
	mw.setupUI()
	mw.setupHandlers()
	return mw
}

func (mw *MainWindow) setupUI() {
	mw.panel = canvas.NewFigurePanel(mw.state)
	mw.state.Figures.Loading = mw.panel
	mw.state.Grids.Loading = mw.panel

	mw.controls = panels.NewControlPanel(mw.state)
	mw.status = widget.NewLabel("Ready")

	split := container.NewHSplit(
		mw.controls.Container(),
		container.NewScroll(mw.panel.Container()),
	)
	split.SetOffset(0.25)

	content := container.NewBorder(
		nil,
		container.NewPadded(mw.status),
		nil,
		nil,
		split,
	)
	mw.SetContent(content)
	mw.Resize(fyne.NewSize(1000, 700))
}

func (mw *MainWindow) setupHandlers() {
	mw.controls.OnTargetChange = mw.onTargetChange
	mw.controls.OnAnnotationChange = func(string) { mw.refreshFigure() }
	mw.controls.OnSave = mw.onSave
	mw.controls.OnReview = mw.onReview

	mw.panel.OnClick(mw.onClick)
	mw.editor.OnChange = func(name string) {
		mw.panel.SetPath(name, mw.editor.Seqs.Get(name))
	}

	mw.state.Events.On(app.EventStyleChanged, func(any) {
		mw.panel.Refresh()
		mw.controls.Container().Refresh()
	})
	mw.state.Events.On(app.EventImageSizeChanged, func(data any) {
		mw.panel.SetDisplaySize(data.(int))
	})

	// The panel picked its defaults before these callbacks existed.
	if t := mw.controls.Target(); t != nil {
		mw.onTargetChange(t)
	}

	mw.state.Events.On(app.EventCursorChanged, func(data any) {
		c := data.(editor.Cursor)
		mw.panel.SetCursor(c)
		mw.status.SetText("Editing at " + c.String())
	})

	mw.Canvas().SetOnTypedKey(func(ev *fyne.KeyEvent) {
		switch ev.Name {
		case fyne.KeyTab:
			mw.mu.Lock()
			mw.editor.ToggleCursor()
			c := mw.editor.Cursor
			mw.mu.Unlock()
			mw.state.Events.Emit(app.EventCursorChanged, c)
		case fyne.KeyBackspace, fyne.KeyDelete:
			// No edits while a dependency message or review covers the
			// surface.
			if mw.panel.Blocked() {
				return
			}
			mw.mu.Lock()
			mw.editor.Pop()
			mw.mu.Unlock()
		case fyne.KeyEscape:
			if mw.panel.Reviewing() {
				mw.panel.SetReview(nil)
			}
		}
	})
}

// onTargetChange saves the previous target before anything else so edits
// can never leak across targets, then loads the new one. When saving is
// gated behind an unpassed review the previous target's edits stay in the
// in-memory annotation maps instead.
func (mw *MainWindow) onTargetChange(t *config.Target) {
	mw.mu.Lock()
	if prev := mw.currentTarget; prev != nil && prev != t && mw.state.SaveAllowed() {
		if err := mw.state.Save(prev); err != nil {
			mw.mu.Unlock()
			dialog.ShowError(err, mw.Window)
			return
		}
	}
	mw.state.ClearSaveHooks()
	mw.currentTarget = t
	mw.mu.Unlock()
	mw.panel.SetReview(nil)
	mw.state.Events.Emit(app.EventTargetChanged, t.ID())
	mw.refreshFigure()
}

// refreshFigure loads the grid image for the current selection, resolves
// fixed endpoints, and rebinds the editor. The slow cache fill runs off the
// UI goroutine; the panel shows its loading overlay meanwhile. Loads are
// serialized under mu, and a load superseded by a newer selection drops its
// results instead of rebinding.
func (mw *MainWindow) refreshFigure() {
	target := mw.controls.Target()
	annotName := mw.controls.Annotation()
	if target == nil || annotName == "" {
		return
	}
	annot := mw.state.Config.Annotations[annotName]
	mw.mu.Lock()
	mw.refreshGen++
	gen := mw.refreshGen
	mw.mu.Unlock()
	go func() {
		mw.mu.Lock()
		defer mw.mu.Unlock()
		if gen != mw.refreshGen {
			return
		}
		seqs, err := mw.state.Sequences(target)
		if err != nil {
			mw.panel.SetMessage(err.Error())
			return
		}
		img, meta, err := mw.state.Grids.Get(target, annot)
		if err != nil {
			mw.panel.SetMessage(err.Error())
			return
		}
		rows, cols := annot.GridShape()
		b := img.Bounds()
		mapper, err := grid.NewMapper(rows, cols, b.Dx(), b.Dy(), &meta.XLim, &meta.YLim)
		if err != nil {
			mw.panel.SetMessage(err.Error())
			return
		}

		res := editor.Resolve(mw.state.Config, target, annotName, seqs)

		mw.editor.Mapper = mapper
		mw.editor.Seqs = stateSequences{state: mw.state, target: target}
		if res.Err != nil {
			// The stored path may still carry fixed endpoints the editor
			// would otherwise treat as free points.
			mw.editor.ClearForeground()
		} else {
			mw.editor.SetForeground(annotName, annot.Type, res.FixedHead, res.FixedTail)
		}

		mw.panel.SetGrid(img, mapper)
		mw.panel.SetPaths(seqs)
		mw.panel.SetBuiltins(mw.builtinData(target))
		mw.panel.SetForeground(annotName, res.FixedHead, res.FixedTail, mw.editor.Cursor)
		if res.Err != nil {
			mw.panel.SetMessage(res.Err.Error())
		} else {
			mw.panel.SetMessage("")
			mw.status.SetText("Editing " + annotName + " for " + target.ID())
		}
	}()
}

func (mw *MainWindow) builtinData(t *config.Target) map[string][][]geometry.Point2D {
	out := make(map[string][][]geometry.Point2D)
	for _, name := range mw.state.Config.BuiltinOrder {
		b := mw.state.Config.Builtins[name]
		if b.Filter != nil && !b.Filter(t) {
			continue
		}
		data, err := mw.state.Builtin(t, name)
		if err != nil {
			log.Printf("mainwindow: builtin %q: %v", name, err)
			continue
		}
		out[name] = data
	}
	return out
}

func (mw *MainWindow) onClick(p geometry.Point2D) {
	if mw.panel.Blocked() {
		return
	}
	mw.mu.Lock()
	defer mw.mu.Unlock()
	if mw.editor.Mapper == nil {
		return
	}
	mw.editor.PushPixel(p)
}

func (mw *MainWindow) onSave() {
	mw.mu.Lock()
	target := mw.currentTarget
	if target == nil || !mw.state.SaveAllowed() {
		mw.mu.Unlock()
		return
	}
	err := mw.state.Save(target)
	mw.mu.Unlock()
	if err != nil {
		dialog.ShowError(err, mw.Window)
		return
	}
	mw.status.SetText("Saved " + target.ID())
}

func (mw *MainWindow) onReview() {
	target := mw.currentTarget
	if target == nil {
		return
	}
	if mw.panel.Reviewing() {
		mw.panel.SetReview(nil)
		return
	}
	go func() {
		mw.mu.Lock()
		img, err := mw.state.GenerateReview(target)
		mw.mu.Unlock()
		if err != nil {
			dialog.ShowError(err, mw.Window)
			return
		}
		mw.panel.SetReview(img)
		mw.status.SetText("Reviewing " + target.ID() + " (Esc to return)")
	}()
}

// stateSequences adapts the app state's per-target annotation storage to the
// editor's mutation interface.
type stateSequences struct {
	state  *app.State
	target *config.Target
}

func (s stateSequences) Get(name string) []geometry.Point2D {
	pts, _, err := s.state.Annotations(s.target).Get(name)
	if err != nil {
		log.Printf("mainwindow: loading %q: %v", name, err)
		return nil
	}
	return pts
}

func (s stateSequences) Set(name string, pts []geometry.Point2D) {
	s.state.SetAnnotation(s.target, name, pts)
}
