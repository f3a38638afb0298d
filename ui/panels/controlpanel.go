// Package panels provides the side panel with target selection, annotation
// selection, and style controls.
package panels

import (
	"fmt"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"cortex-annotate/internal/app"
	"cortex-annotate/internal/config"
	"cortex-annotate/internal/style"
)

// ControlPanel is the selection and style sidebar. It picks the current
// target and foreground annotation and edits the user's style overrides.
type ControlPanel struct {
	state *app.State
	box   *fyne.Container

	targetSelects []*widget.Select
	annotSelect   *widget.Select

	visibleCheck    *widget.Check
	colorEntry      *widget.Entry
	lineWidthSlider *widget.Slider
	markerSlider    *widget.Slider
	lineStyleSelect *widget.Select
	sizeSlider      *widget.Slider

	saveBtn   *widget.Button
	reviewBtn *widget.Button

	current    *config.Target
	annotation string
	updating   bool

	// Callbacks into the main window.
	OnTargetChange     func(t *config.Target)
	OnAnnotationChange func(name string)
	OnSave             func()
	OnReview           func()
}

func NewControlPanel(state *app.State) *ControlPanel {
	cp := &ControlPanel{state: state}
	cp.buildTargetSelects()
	cp.buildAnnotationSelect()
	cp.buildStyleEditor()
	cp.buildButtons()
	cp.layout()
	cp.selectDefaults()
	return cp
}

// Container returns the panel's top-level object.
func (cp *ControlPanel) Container() fyne.CanvasObject {
	return container.NewVScroll(cp.box)
}

// Target returns the currently selected target, nil before any selection.
func (cp *ControlPanel) Target() *config.Target {
	return cp.current
}

// Annotation returns the currently selected annotation name.
func (cp *ControlPanel) Annotation() string {
	return cp.annotation
}

func (cp *ControlPanel) buildTargetSelects() {
	keys := cp.state.Config.Targets.ConcreteKeys
	cp.targetSelects = make([]*widget.Select, len(keys))
	for i, key := range keys {
		options := cp.valuesFor(i)
		sel := widget.NewSelect(options, func(string) { cp.onTargetSelected() })
		cp.targetSelects[i] = sel
		_ = key
	}
}

// valuesFor lists the configured values of the i-th concrete key in
// declaration order.
func (cp *ControlPanel) valuesFor(i int) []string {
	key := cp.state.Config.Targets.ConcreteKeys[i]
	seen := make(map[string]bool)
	var out []string
	for _, t := range cp.state.Config.Targets.All() {
		v, _ := t.Value(key)
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func (cp *ControlPanel) buildAnnotationSelect() {
	cp.annotSelect = widget.NewSelect(nil, func(name string) {
		if cp.updating || name == cp.annotation {
			return
		}
		cp.annotation = name
		cp.refreshStyleEditor()
		if cp.OnAnnotationChange != nil {
			cp.OnAnnotationChange(name)
		}
	})
}

func (cp *ControlPanel) buildStyleEditor() {
	cp.visibleCheck = widget.NewCheck("Visible", func(v bool) {
		cp.applyStyle(style.KeyVisible, v)
	})
	cp.colorEntry = widget.NewEntry()
	cp.colorEntry.OnSubmitted = func(s string) {
		cp.applyStyle(style.KeyColor, strings.TrimSpace(s))
	}
	cp.lineWidthSlider = widget.NewSlider(0.25, 20)
	cp.lineWidthSlider.Step = 0.25
	cp.lineWidthSlider.OnChangeEnded = func(v float64) {
		cp.applyStyle(style.KeyLineWidth, v)
	}
	cp.markerSlider = widget.NewSlider(0, 20)
	cp.markerSlider.Step = 0.25
	cp.markerSlider.OnChangeEnded = func(v float64) {
		cp.applyStyle(style.KeyMarkerSize, v)
	}
	cp.lineStyleSelect = widget.NewSelect(
		[]string{style.LineSolid, style.LineDashed, style.LineDotDashed, style.LineDotted},
		func(s string) {
			cp.applyStyle(style.KeyLineStyle, s)
		})
	cp.sizeSlider = widget.NewSlider(128, 1024)
	cp.sizeSlider.Step = 64
	cp.sizeSlider.Value = float64(cp.state.ImageSize())
	cp.sizeSlider.OnChangeEnded = func(v float64) {
		cp.state.SetImageSize(int(v))
	}
}

func (cp *ControlPanel) buildButtons() {
	cp.saveBtn = widget.NewButton("Save", func() {
		if cp.OnSave != nil {
			cp.OnSave()
		}
	})
	cp.reviewBtn = widget.NewButton("Review", func() {
		if cp.OnReview != nil {
			cp.OnReview()
		}
	})
	if cp.state.Config.Review.Function == nil {
		cp.reviewBtn.Disable()
	}
	cp.refreshSaveButton()
	cp.state.Events.On(app.EventReviewChanged, func(any) {
		cp.refreshSaveButton()
	})
}

// refreshSaveButton gates saving on review approval: while a review function
// is configured, saving stays disabled until the current annotations pass
// review, and locks again after every edit or save.
func (cp *ControlPanel) refreshSaveButton() {
	if cp.state.SaveAllowed() {
		cp.saveBtn.Enable()
	} else {
		cp.saveBtn.Disable()
	}
}

func (cp *ControlPanel) layout() {
	items := []fyne.CanvasObject{widget.NewLabelWithStyle("Target",
		fyne.TextAlignLeading, fyne.TextStyle{Bold: true})}
	for i, key := range cp.state.Config.Targets.ConcreteKeys {
		items = append(items, widget.NewLabel(key), cp.targetSelects[i])
	}
	items = append(items,
		widget.NewSeparator(),
		widget.NewLabelWithStyle("Annotation", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		cp.annotSelect,
		widget.NewSeparator(),
		widget.NewLabelWithStyle("Style", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		cp.visibleCheck,
		widget.NewLabel("Color"), cp.colorEntry,
		widget.NewLabel("Line width"), cp.lineWidthSlider,
		widget.NewLabel("Marker size"), cp.markerSlider,
		widget.NewLabel("Line style"), cp.lineStyleSelect,
		widget.NewSeparator(),
		widget.NewLabel("Image size"), cp.sizeSlider,
		widget.NewSeparator(),
		cp.saveBtn,
		cp.reviewBtn,
	)
	cp.box = container.NewVBox(items...)
}

func (cp *ControlPanel) selectDefaults() {
	for _, sel := range cp.targetSelects {
		if len(sel.Options) > 0 {
			sel.SetSelected(sel.Options[0])
		}
	}
}

func (cp *ControlPanel) onTargetSelected() {
	if cp.updating {
		return
	}
	parts := make([]string, len(cp.targetSelects))
	for i, sel := range cp.targetSelects {
		if sel.Selected == "" {
			return
		}
		parts[i] = sel.Selected
	}
	t, ok := cp.state.Config.Targets.ByID(strings.Join(parts, "/"))
	if !ok {
		return
	}
	if cp.current != nil && t.ID() == cp.current.ID() {
		return
	}
	cp.current = t
	cp.refreshAnnotations()
	if cp.OnTargetChange != nil {
		cp.OnTargetChange(t)
	}
}

// refreshAnnotations rebuilds the annotation list, honoring per-annotation
// filters for the current target.
func (cp *ControlPanel) refreshAnnotations() {
	var options []string
	for _, name := range cp.state.Config.AnnotationOrder {
		a := cp.state.Config.Annotations[name]
		if a.Filter != nil && cp.current != nil && !a.Filter(cp.current) {
			continue
		}
		options = append(options, name)
	}
	cp.updating = true
	cp.annotSelect.Options = options
	keep := false
	for _, o := range options {
		if o == cp.annotation {
			keep = true
			break
		}
	}
	cp.updating = false
	if keep {
		cp.annotSelect.SetSelected(cp.annotation)
		cp.refreshStyleEditor()
	} else if len(options) > 0 {
		cp.annotSelect.SetSelected(options[0])
	}
}

// refreshStyleEditor loads the selected annotation's effective style into
// the controls without firing their callbacks.
func (cp *ControlPanel) refreshStyleEditor() {
	if cp.annotation == "" {
		return
	}
	st := cp.state.Style(cp.annotation, true)
	cp.updating = true
	cp.visibleCheck.SetChecked(st.Visible)
	cp.colorEntry.SetText(st.Color)
	cp.lineWidthSlider.SetValue(st.LineWidth)
	cp.markerSlider.SetValue(st.MarkerSize)
	cp.lineStyleSelect.SetSelected(st.LineStyle)
	cp.updating = false
}

func (cp *ControlPanel) applyStyle(key string, value any) {
	if cp.updating || cp.annotation == "" {
		return
	}
	if err := cp.state.UpdateStyle(cp.annotation, style.Override{key: value}); err != nil {
		cp.colorEntry.SetValidationError(fmt.Errorf("invalid style: %w", err))
		return
	}
	cp.colorEntry.SetValidationError(nil)
}
