// Package app holds the shared application state: the loaded configuration,
// the figure and grid caches, the annotation store, and the user's
// preferences. The UI reads and mutates state through this package and
// reacts to its events.
package app

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"cortex-annotate/internal/cache"
	"cortex-annotate/internal/config"
	"cortex-annotate/internal/lazy"
	"cortex-annotate/internal/render"
	"cortex-annotate/internal/store"
	"cortex-annotate/internal/style"
	"cortex-annotate/pkg/geometry"
)

type State struct {
	Config *config.Config
	Store  *store.Store
	Prefs  *store.Preferences
	Events *Bus

	Figures *cache.FigureCache
	Grids   *cache.GridCache

	// annotations holds, per target ID, the lazily loaded annotation paths.
	// Entries that were never forced are skipped on save since they cannot
	// have changed.
	annotations map[string]*lazy.Map[[]geometry.Point2D]

	// builtins caches evaluated builtin annotation data per target ID.
	builtins map[string]*lazy.Map[[][]geometry.Point2D]

	// hooks are save callbacks registered by the review function; they run
	// and clear on save. hooksTarget is the target the review ran for, so
	// hook artifacts land in that target's save directory.
	hooks       config.SaveHooks
	hooksTarget *config.Target

	// reviewed reports whether the current annotations passed review since
	// the last edit or save. Save stays gated on it while a review function
	// is configured.
	reviewed bool
}

// Options configure New.
type Options struct {
	CacheRoot string
	SaveRoot  string
	User      string
	Loading   cache.Indicator
}

func New(cfg *config.Config, opts Options) (*State, error) {
	if opts.Loading == nil {
		opts.Loading = cache.NoopIndicator{}
	}
	st := store.New(store.SaveRootFor(opts.SaveRoot, opts.User))
	prefs, err := st.LoadPreferences()
	if err != nil {
		return nil, err
	}
	s := &State{
		Config:      cfg,
		Store:       st,
		Prefs:       prefs,
		Events:      NewBus(),
		annotations: make(map[string]*lazy.Map[[]geometry.Point2D]),
		builtins:    make(map[string]*lazy.Map[[][]geometry.Point2D]),
		hooks:       config.SaveHooks{},
	}
	s.Figures = &cache.FigureCache{
		Root:    opts.CacheRoot,
		Render:  s.RenderFigure,
		Loading: opts.Loading,
	}
	s.Grids = &cache.GridCache{
		Root:    opts.CacheRoot,
		Figures: s.Figures,
		Loading: opts.Loading,
	}
	return s, nil
}

// RenderFigure draws one figure through its configured function onto fresh
// axes sized by the display settings.
func (s *State) RenderFigure(target *config.Target, figure string) (*render.Axes, error) {
	fn, ok := s.Config.Figures[figure]
	if !ok {
		return nil, fmt.Errorf("app: no figure function for %q", figure)
	}
	w, h := s.Config.Display.ImageSize()
	ax := render.NewAxes(w, h, s.Config.Display.DPI)
	if err := fn(target, figure, ax); err != nil {
		return nil, err
	}
	return ax, nil
}

// Annotations returns the lazy annotation container for a target, creating
// it with one load-from-disk thunk per configured annotation.
func (s *State) Annotations(target *config.Target) *lazy.Map[[]geometry.Point2D] {
	m, ok := s.annotations[target.ID()]
	if ok {
		return m
	}
	m = lazy.NewMap[[]geometry.Point2D]()
	for _, name := range s.Config.AnnotationOrder {
		name := name
		m.SetFunc(name, func() ([]geometry.Point2D, error) {
			return s.Store.Load(target.Path(), name)
		})
	}
	s.annotations[target.ID()] = m
	return m
}

// Sequences materializes every drawn annotation of a target into a plain
// map. Annotations with no points are absent from the result.
func (s *State) Sequences(target *config.Target) (map[string][]geometry.Point2D, error) {
	m := s.Annotations(target)
	out := make(map[string][]geometry.Point2D)
	for _, name := range s.Config.AnnotationOrder {
		pts, _, err := m.Get(name)
		if err != nil {
			return nil, err
		}
		if len(pts) > 0 {
			out[name] = pts
		}
	}
	return out, nil
}

// SetAnnotation replaces a target's annotation path; nil marks it absent.
// Any prior review approval is invalidated.
func (s *State) SetAnnotation(target *config.Target, name string, pts []geometry.Point2D) {
	s.Annotations(target).Set(name, pts)
	s.setReviewed(false)
	s.Events.Emit(EventAnnotationChanged, name)
}

// Builtin returns the (cached) evaluated data of a builtin annotation for a
// target.
func (s *State) Builtin(target *config.Target, name string) ([][]geometry.Point2D, error) {
	m, ok := s.builtins[target.ID()]
	if !ok {
		m = lazy.NewMap[[][]geometry.Point2D]()
		for _, bn := range s.Config.BuiltinOrder {
			b := s.Config.Builtins[bn]
			m.SetFunc(bn, func() ([][]geometry.Point2D, error) {
				return b.Data(target)
			})
		}
		s.builtins[target.ID()] = m
	}
	data, ok, err := m.Get(name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("app: unknown builtin annotation %q", name)
	}
	return data, nil
}

// Style computes the effective drawing style for an annotation by layering
// the display defaults, the annotation's own options, and the user's saved
// overrides. foreground additionally layers the display's foreground
// options and the user's foreground override, which is stored under the
// empty name.
func (s *State) Style(name string, foreground bool) style.Style {
	st := style.Default().Apply(s.Config.Display.PlotOptions)
	if foreground {
		st = st.Apply(s.Config.Display.FgOptions)
	}
	if a, ok := s.Config.Annotations[name]; ok {
		st = st.Apply(a.PlotOptions)
	} else if b, ok := s.Config.Builtins[name]; ok {
		st = st.Apply(b.PlotOptions)
	}
	st = st.Apply(s.Prefs.Style[name])
	if foreground {
		st = st.Apply(s.Prefs.Style[""])
	}
	return st
}

// SetStyle replaces the user's style override for an annotation. The empty
// name addresses the foreground layer.
func (s *State) SetStyle(name string, ov style.Override) error {
	if err := style.Validate(ov); err != nil {
		return err
	}
	s.Prefs.Style[name] = ov
	s.Events.Emit(EventStyleChanged, name)
	return nil
}

// UpdateStyle merges keys into the user's style override for an annotation.
func (s *State) UpdateStyle(name string, ov style.Override) error {
	if err := style.Validate(ov); err != nil {
		return err
	}
	cur := s.Prefs.Style[name]
	if cur == nil {
		cur = style.Override{}
		s.Prefs.Style[name] = cur
	}
	for k, v := range ov {
		cur[k] = v
	}
	s.Events.Emit(EventStyleChanged, name)
	return nil
}

// ImageSize is the preferred on-screen size of a grid cell in pixels.
func (s *State) ImageSize() int {
	return s.Prefs.ImageSize
}

func (s *State) SetImageSize(px int) {
	if px < 1 || px == s.Prefs.ImageSize {
		return
	}
	s.Prefs.ImageSize = px
	s.Events.Emit(EventImageSizeChanged, px)
}

// SaveHooks exposes the hook registry bound to the current target for the
// review function.
func (s *State) SaveHooks() config.SaveHooks {
	return s.hooks
}

// ClearSaveHooks drops pending hooks and any review approval, typically on
// target change.
func (s *State) ClearSaveHooks() {
	s.hooks = config.SaveHooks{}
	s.hooksTarget = nil
	s.setReviewed(false)
}

// SaveAllowed reports whether a save may proceed from the UI. Without a
// review function saving is always allowed; with one, the annotations must
// have passed review since the last edit or save.
func (s *State) SaveAllowed() bool {
	return s.Config.Review.Function == nil || s.reviewed
}

func (s *State) setReviewed(v bool) {
	if s.reviewed == v {
		return
	}
	s.reviewed = v
	s.Events.Emit(EventReviewChanged, v)
}

// GenerateReview renders the review figure for a target. The review
// function receives the save-hook registry and may register files to write
// on the next save; a successful review unlocks saving for the target.
func (s *State) GenerateReview(target *config.Target) (image.Image, error) {
	if s.Config.Review.Function == nil {
		return nil, fmt.Errorf("app: no review function configured")
	}
	seqs, err := s.Sequences(target)
	if err != nil {
		return nil, err
	}
	r := s.Config.Review
	w := int(r.FigSize[0] * float64(r.DPI))
	h := int(r.FigSize[1] * float64(r.DPI))
	ax := render.NewAxes(w, h, r.DPI)
	s.hooksTarget = target
	if err := r.Function(target, seqs, ax, s.hooks); err != nil {
		return nil, fmt.Errorf("app: review: %w", err)
	}
	s.setReviewed(true)
	return ax.Image(), nil
}

// SaveAnnotations writes every loaded annotation of a target to disk.
// Entries that were never loaded are skipped; they cannot have been edited.
func (s *State) SaveAnnotations(target *config.Target) error {
	m, ok := s.annotations[target.ID()]
	if !ok {
		return nil
	}
	for _, name := range s.Config.AnnotationOrder {
		if m.IsLazy(name) {
			continue
		}
		pts, _, err := m.Get(name)
		if err != nil {
			return err
		}
		if err := s.Store.Save(target.Path(), name, pts); err != nil {
			return err
		}
	}
	return nil
}

// RunSaveHooks executes and clears the review function's registered hooks.
// Hook paths are relative to the save directory of the target the review
// ran for, so one target's artifacts cannot clobber another's.
func (s *State) RunSaveHooks() error {
	base := s.Store.Root
	if s.hooksTarget != nil {
		base = filepath.Join(base, s.hooksTarget.Path())
	}
	for rel, fn := range s.hooks {
		path := filepath.Join(base, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("app: save hook %q: %w", rel, err)
		}
		if err := fn(path); err != nil {
			return fmt.Errorf("app: save hook %q: %w", rel, err)
		}
	}
	s.ClearSaveHooks()
	return nil
}

// Save persists everything for a target: its annotations, any pending save
// hooks, and the user's preferences.
func (s *State) Save(target *config.Target) error {
	if err := s.SaveAnnotations(target); err != nil {
		return err
	}
	if err := s.RunSaveHooks(); err != nil {
		return err
	}
	if err := s.Store.SavePreferences(s.Prefs); err != nil {
		return err
	}
	s.Events.Emit(EventSaved, target.ID())
	return nil
}
