package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cortex-annotate/internal/config"
	"cortex-annotate/internal/render"
	"cortex-annotate/internal/style"
	"cortex-annotate/pkg/geometry"
)

func testConfig() *config.Config {
	return &config.Config{
		Display: config.Display{
			FigSize:     [2]float64{2, 2},
			DPI:         32,
			PlotOptions: style.Override{"color": "#0000ff", "linewidth": 2.0},
			FgOptions:   style.Override{"color": "#ff0000"},
		},
		Annotations: map[string]*config.Annotation{
			"tract": {Name: "tract", Type: config.Contour,
				Grid:        [][]string{{"anat"}},
				PlotOptions: style.Override{"markersize": 4.0}},
			"spot": {Name: "spot", Type: config.Point, Grid: [][]string{{"anat"}}},
		},
		AnnotationOrder: []string{"tract", "spot"},
		Builtins:        map[string]*config.BuiltinAnnotation{},
	}
}

func newTestState(t *testing.T) *State {
	t.Helper()
	s, err := New(testConfig(), Options{
		CacheRoot: t.TempDir(),
		SaveRoot:  t.TempDir(),
	})
	require.NoError(t, err)
	return s
}

func testTarget() *config.Target {
	return config.NewTarget([]string{"subject"}, []string{"s01"})
}

func TestStyleLayering(t *testing.T) {
	s := newTestState(t)

	// Background style: defaults, then display plot options, then the
	// annotation's own options.
	st := s.Style("tract", false)
	assert.Equal(t, "#0000ff", st.Color)
	assert.Equal(t, 2.0, st.LineWidth)
	assert.Equal(t, 4.0, st.MarkerSize)

	// Foreground adds the fg layer.
	st = s.Style("tract", true)
	assert.Equal(t, "#ff0000", st.Color)
	assert.Equal(t, 4.0, st.MarkerSize)
}

func TestStyleUserOverrides(t *testing.T) {
	s := newTestState(t)
	require.NoError(t, s.SetStyle("tract", style.Override{"color": "green"}))
	assert.Equal(t, "#008000", s.Style("tract", false).Color)

	// The empty name overrides the foreground layer only.
	require.NoError(t, s.SetStyle("", style.Override{"linewidth": 5.0}))
	assert.Equal(t, 5.0, s.Style("tract", true).LineWidth)
	assert.Equal(t, 2.0, s.Style("tract", false).LineWidth)
}

func TestUpdateStyleMerges(t *testing.T) {
	s := newTestState(t)
	require.NoError(t, s.UpdateStyle("tract", style.Override{"color": "#111111"}))
	require.NoError(t, s.UpdateStyle("tract", style.Override{"linewidth": 3.0}))
	st := s.Style("tract", false)
	assert.Equal(t, "#111111", st.Color)
	assert.Equal(t, 3.0, st.LineWidth)
}

func TestSetStyleRejectsInvalid(t *testing.T) {
	s := newTestState(t)
	assert.Error(t, s.SetStyle("tract", style.Override{"linewidth": -1.0}))
}

func TestSequencesOmitsAbsentAnnotations(t *testing.T) {
	s := newTestState(t)
	target := testTarget()
	s.SetAnnotation(target, "tract", []geometry.Point2D{{X: 1, Y: 2}})

	seqs, err := s.Sequences(target)
	require.NoError(t, err)
	assert.Contains(t, seqs, "tract")
	assert.NotContains(t, seqs, "spot")
}

func TestSaveRoundTripsAnnotations(t *testing.T) {
	s := newTestState(t)
	target := testTarget()
	pts := []geometry.Point2D{{X: 1, Y: 2}, {X: 3, Y: 4}}
	s.SetAnnotation(target, "tract", pts)
	require.NoError(t, s.Save(target))

	// A fresh state over the same save directory sees the points.
	s2, err := New(s.Config, Options{CacheRoot: t.TempDir(), SaveRoot: s.Store.Root})
	require.NoError(t, err)
	seqs, err := s2.Sequences(target)
	require.NoError(t, err)
	assert.Equal(t, pts, seqs["tract"])
}

func TestSaveSkipsUntouchedAnnotations(t *testing.T) {
	s := newTestState(t)
	target := testTarget()
	// Touch nothing; saving must not create any files.
	m := s.Annotations(target)
	assert.True(t, m.IsLazy("tract"))
	require.NoError(t, s.SaveAnnotations(target))
	assert.False(t, s.Store.Exists(target.Path(), "tract"))
}

func TestSaveRunsAndClearsHooks(t *testing.T) {
	s := newTestState(t)
	target := testTarget()
	var gotPath string
	s.SaveHooks()["out.txt"] = func(path string) error {
		gotPath = path
		return os.WriteFile(path, []byte("x"), 0o644)
	}
	require.NoError(t, s.Save(target))
	assert.NotEmpty(t, gotPath)
	assert.FileExists(t, gotPath)
	assert.Empty(t, s.SaveHooks())
}

func reviewConfig(hookFile string, content []byte) *config.Config {
	cfg := testConfig()
	cfg.Review = config.Review{
		FigSize: [2]float64{1, 1},
		DPI:     8,
		Function: func(_ *config.Target, _ map[string][]geometry.Point2D,
			_ *render.Axes, hooks config.SaveHooks) error {
			hooks[hookFile] = func(path string) error {
				return os.WriteFile(path, content, 0o644)
			}
			return nil
		},
	}
	return cfg
}

func TestSaveHooksLandInTargetDirectory(t *testing.T) {
	cfg := reviewConfig("out.json", []byte("{}"))
	s, err := New(cfg, Options{CacheRoot: t.TempDir(), SaveRoot: t.TempDir()})
	require.NoError(t, err)
	target := testTarget()

	_, err = s.GenerateReview(target)
	require.NoError(t, err)
	require.NoError(t, s.Save(target))

	// Review artifacts belong under the reviewed target's save directory,
	// not the save root, so two targets' artifacts cannot collide.
	assert.FileExists(t, filepath.Join(s.Store.Root, target.Path(), "out.json"))
	assert.NoFileExists(t, filepath.Join(s.Store.Root, "out.json"))
	assert.Empty(t, s.SaveHooks())
}

func TestSaveGatedOnReview(t *testing.T) {
	cfg := reviewConfig("out.txt", []byte("x"))
	s, err := New(cfg, Options{CacheRoot: t.TempDir(), SaveRoot: t.TempDir()})
	require.NoError(t, err)
	target := testTarget()

	assert.False(t, s.SaveAllowed())

	_, err = s.GenerateReview(target)
	require.NoError(t, err)
	assert.True(t, s.SaveAllowed())

	// Editing an annotation invalidates the approval.
	s.SetAnnotation(target, "tract", []geometry.Point2D{{X: 1, Y: 1}})
	assert.False(t, s.SaveAllowed())

	_, err = s.GenerateReview(target)
	require.NoError(t, err)
	require.NoError(t, s.Save(target))
	// Saving consumes the approval.
	assert.False(t, s.SaveAllowed())
}

func TestSaveAllowedWithoutReviewFunction(t *testing.T) {
	s := newTestState(t)
	assert.True(t, s.SaveAllowed())
	s.SetAnnotation(testTarget(), "tract", []geometry.Point2D{{X: 1, Y: 1}})
	assert.True(t, s.SaveAllowed())
}

func TestReviewChangedEventFires(t *testing.T) {
	cfg := reviewConfig("out.txt", []byte("x"))
	s, err := New(cfg, Options{CacheRoot: t.TempDir(), SaveRoot: t.TempDir()})
	require.NoError(t, err)
	target := testTarget()

	var flips []bool
	s.Events.On(EventReviewChanged, func(data any) { flips = append(flips, data.(bool)) })

	_, err = s.GenerateReview(target)
	require.NoError(t, err)
	s.SetAnnotation(target, "tract", []geometry.Point2D{{X: 1, Y: 1}})
	assert.Equal(t, []bool{true, false}, flips)
}

func TestSavePersistsPreferences(t *testing.T) {
	s := newTestState(t)
	s.SetImageSize(512)
	require.NoError(t, s.Save(testTarget()))

	s2, err := New(s.Config, Options{CacheRoot: t.TempDir(), SaveRoot: s.Store.Root})
	require.NoError(t, err)
	assert.Equal(t, 512, s2.ImageSize())
}

func TestBuiltinDataIsCached(t *testing.T) {
	cfg := testConfig()
	calls := 0
	cfg.Builtins["midline"] = &config.BuiltinAnnotation{
		Name: "midline",
		Type: config.Lines,
		Data: func(*config.Target) ([][]geometry.Point2D, error) {
			calls++
			return [][]geometry.Point2D{{{X: 0, Y: 0}}}, nil
		},
	}
	cfg.BuiltinOrder = []string{"midline"}
	s, err := New(cfg, Options{CacheRoot: t.TempDir(), SaveRoot: t.TempDir()})
	require.NoError(t, err)

	target := testTarget()
	_, err = s.Builtin(target, "midline")
	require.NoError(t, err)
	_, err = s.Builtin(target, "midline")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestEventsFire(t *testing.T) {
	s := newTestState(t)
	var seen []EventType
	for _, ev := range []EventType{EventAnnotationChanged, EventStyleChanged, EventImageSizeChanged, EventSaved} {
		ev := ev
		s.Events.On(ev, func(any) { seen = append(seen, ev) })
	}
	s.SetAnnotation(testTarget(), "tract", []geometry.Point2D{{X: 1, Y: 1}})
	require.NoError(t, s.SetStyle("tract", style.Override{"color": "#222222"}))
	s.SetImageSize(300)
	require.NoError(t, s.Save(testTarget()))
	assert.Equal(t, []EventType{EventAnnotationChanged, EventStyleChanged, EventImageSizeChanged, EventSaved}, seen)
}
