package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cortex-annotate/internal/render"
	"cortex-annotate/pkg/geometry"
)

const testConfig = `
display:
  figsize: [4, 2]
  dpi: 64
  plot_options:
    color: blue
    linewidth: 2
  fg_options:
    color: red

init: |
  func mirror(p geometry.Point2D) geometry.Point2D {
    return geometry.NewPoint2D(-p.X, p.Y)
  }

targets:
  subject: [s01, s02]
  hemisphere: [lh, rh]
  label: |
    func(t *config.Target) (any, error) {
      v, err := t.Get("subject")
      if err != nil {
        return nil, err
      }
      return v.(string) + "-label", nil
    }

annotations:
  base:
    grid:
      - [anat, sig]
      - [anat, ~]
    type: boundary
    plot_options:
      color: green
  tract:
    grid: [anat]
    fixed_head: base
    fixed_tail:
      requires: base
      calculate: |
        func(t *config.Target, seqs map[string][]geometry.Point2D) (geometry.Point2D, error) {
          return mirror(seqs["base"][0]), nil
        }
  spot:
    grid: [sig]
    type: point
    filter: |
      func(t *config.Target) bool {
        v, _ := t.Value("hemisphere")
        return v == "lh"
      }

builtin_annotations:
  midline:
    type: lines
    data: |
      func(t *config.Target) ([][]geometry.Point2D, error) {
        return [][]geometry.Point2D{
          {geometry.NewPoint2D(0, 0), geometry.NewPoint2D(1, 1)},
        }, nil
      }

figures:
  anat: |
    func(t *config.Target, name string, ax *render.Axes) error {
      ax.SetXLim(0, 10)
      ax.SetYLim(0, 10)
      return nil
    }
  "_": |
    func(t *config.Target, name string, ax *render.Axes) error {
      ax.SetMeta("figure", name)
      return nil
    }

review:
  function: |
    func(t *config.Target, seqs map[string][]geometry.Point2D, ax *render.Axes, hooks config.SaveHooks) error {
      hooks["summary.txt"] = func(path string) error { return nil }
      return nil
    }
  dpi: 100
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func loadTestConfig(t *testing.T) *Config {
	t.Helper()
	cfg, err := Load(writeConfig(t, testConfig))
	require.NoError(t, err)
	return cfg
}

func TestLoadDisplay(t *testing.T) {
	cfg := loadTestConfig(t)
	assert.Equal(t, [2]float64{4, 2}, cfg.Display.FigSize)
	assert.Equal(t, 64, cfg.Display.DPI)
	w, h := cfg.Display.ImageSize()
	assert.Equal(t, 256, w)
	assert.Equal(t, 128, h)
	assert.Equal(t, "#0000ff", cfg.Display.PlotOptions["color"])
	assert.Equal(t, "#ff0000", cfg.Display.FgOptions["color"])
}

func TestLoadTargetsCrossProduct(t *testing.T) {
	cfg := loadTestConfig(t)
	require.Equal(t, 4, cfg.Targets.Len())
	assert.Equal(t, []string{"subject", "hemisphere"}, cfg.Targets.ConcreteKeys)

	var ids []string
	for _, target := range cfg.Targets.All() {
		ids = append(ids, target.ID())
	}
	assert.Equal(t, []string{"s01/lh", "s01/rh", "s02/lh", "s02/rh"}, ids)

	target, ok := cfg.Targets.ByID("s02/rh")
	require.True(t, ok)
	assert.Equal(t, filepath.Join("s02", "rh"), target.Path())
}

func TestLoadComputedTargetKey(t *testing.T) {
	cfg := loadTestConfig(t)
	target, ok := cfg.Targets.ByID("s01/lh")
	require.True(t, ok)
	v, err := target.Get("label")
	require.NoError(t, err)
	assert.Equal(t, "s01-label", v)
}

func TestLoadAnnotations(t *testing.T) {
	cfg := loadTestConfig(t)
	assert.Equal(t, []string{"base", "tract", "spot"}, cfg.AnnotationOrder)

	base := cfg.Annotations["base"]
	assert.Equal(t, Boundary, base.Type)
	assert.Equal(t, [][]string{{"anat", "sig"}, {"anat", ""}}, base.Grid)
	rows, cols := base.GridShape()
	assert.Equal(t, 2, rows)
	assert.Equal(t, 2, cols)
	assert.Equal(t, "#008000", base.PlotOptions["color"])

	// A bare list is a one-row grid.
	tract := cfg.Annotations["tract"]
	assert.Equal(t, [][]string{{"anat"}}, tract.Grid)
	assert.Equal(t, Contour, tract.Type)

	spot := cfg.Annotations["spot"]
	assert.Equal(t, Point, spot.Type)
}

func TestLoadFixedEndpoints(t *testing.T) {
	cfg := loadTestConfig(t)
	tract := cfg.Annotations["tract"]
	require.NotNil(t, tract.FixedHead)
	require.NotNil(t, tract.FixedTail)
	assert.Equal(t, []string{"base"}, tract.FixedHead.Requires)
	assert.Equal(t, []string{"base"}, tract.FixedTail.Requires)

	target, _ := cfg.Targets.ByID("s01/lh")
	seqs := map[string][]geometry.Point2D{
		"base": {{X: 1, Y: 2}, {X: 3, Y: 4}},
	}
	// The name shorthand derives the last point of the required annotation.
	head, err := tract.FixedHead.Calculate(target, seqs)
	require.NoError(t, err)
	assert.Equal(t, geometry.Point2D{X: 3, Y: 4}, head)

	// The explicit calculate block uses the init section's helper.
	tail, err := tract.FixedTail.Calculate(target, seqs)
	require.NoError(t, err)
	assert.Equal(t, geometry.Point2D{X: -1, Y: 2}, tail)
}

func TestLoadFilter(t *testing.T) {
	cfg := loadTestConfig(t)
	spot := cfg.Annotations["spot"]
	require.NotNil(t, spot.Filter)
	lh, _ := cfg.Targets.ByID("s01/lh")
	rh, _ := cfg.Targets.ByID("s01/rh")
	assert.True(t, spot.Filter(lh))
	assert.False(t, spot.Filter(rh))
}

func TestLoadBuiltins(t *testing.T) {
	cfg := loadTestConfig(t)
	require.Equal(t, []string{"midline"}, cfg.BuiltinOrder)
	b := cfg.Builtins["midline"]
	assert.Equal(t, Lines, b.Type)

	target, _ := cfg.Targets.ByID("s01/lh")
	data, err := b.Data(target)
	require.NoError(t, err)
	require.Len(t, data, 1)
	assert.Equal(t, geometry.Point2D{X: 1, Y: 1}, data[0][1])
}

func TestLoadFigures(t *testing.T) {
	cfg := loadTestConfig(t)
	require.Contains(t, cfg.Figures, "anat")
	require.Contains(t, cfg.Figures, "sig")

	target, _ := cfg.Targets.ByID("s01/lh")
	ax := render.NewAxes(10, 10, 10)
	require.NoError(t, cfg.Figures["anat"](target, "anat", ax))
	assert.Equal(t, geometry.Limits{Min: 0, Max: 10}, ax.XLim())

	// "sig" has no entry of its own and falls back to the wildcard.
	ax = render.NewAxes(10, 10, 10)
	require.NoError(t, cfg.Figures["sig"](target, "sig", ax))
	assert.Equal(t, "sig", ax.Meta()["figure"])
}

func TestLoadReview(t *testing.T) {
	cfg := loadTestConfig(t)
	require.NotNil(t, cfg.Review.Function)
	assert.Equal(t, [2]float64{3, 3}, cfg.Review.FigSize)
	assert.Equal(t, 100, cfg.Review.DPI)

	target, _ := cfg.Targets.ByID("s01/lh")
	hooks := SaveHooks{}
	ax := render.NewAxes(10, 10, 10)
	require.NoError(t, cfg.Review.Function(target, nil, ax, hooks))
	assert.Contains(t, hooks, "summary.txt")
}

func TestLoadDefaults(t *testing.T) {
	minimal := `
targets:
  subject: [s01]
annotations:
  tract:
    grid: [anat]
figures:
  anat: |
    func(t *config.Target, name string, ax *render.Axes) error { return nil }
`
	cfg, err := Load(writeConfig(t, minimal))
	require.NoError(t, err)
	assert.Equal(t, [2]float64{4, 4}, cfg.Display.FigSize)
	assert.Equal(t, 128, cfg.Display.DPI)
	assert.Nil(t, cfg.Review.Function)
	assert.Empty(t, cfg.Builtins)
	assert.Equal(t, Contour, cfg.Annotations["tract"].Type)
}

func TestLoadRejectsRaggedGrid(t *testing.T) {
	body := `
targets:
  subject: [s01]
annotations:
  tract:
    grid:
      - [a, b]
      - [a]
figures:
  "_": |
    func(t *config.Target, name string, ax *render.Axes) error { return nil }
`
	_, err := Load(writeConfig(t, body))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ragged")
}

func TestLoadRejectsMissingFigureEntry(t *testing.T) {
	body := `
targets:
  subject: [s01]
annotations:
  tract:
    grid: [anat]
figures:
  other: |
    func(t *config.Target, name string, ax *render.Axes) error { return nil }
`
	_, err := Load(writeConfig(t, body))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anat")
}

func TestLoadRejectsPointWithFixedEndpoints(t *testing.T) {
	body := `
targets:
  subject: [s01]
annotations:
  base:
    grid: [anat]
  spot:
    grid: [anat]
    type: point
    fixed_head: base
figures:
  "_": |
    func(t *config.Target, name string, ax *render.Axes) error { return nil }
`
	_, err := Load(writeConfig(t, body))
	assert.Error(t, err)
}

func TestLoadRequiresConcreteTargetKey(t *testing.T) {
	body := `
targets:
  label: |
    func(t *config.Target) (any, error) { return "x", nil }
annotations:
  tract:
    grid: [anat]
figures:
  "_": |
    func(t *config.Target, name string, ax *render.Axes) error { return nil }
`
	_, err := Load(writeConfig(t, body))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "concrete")
}

func TestLoadRejectsBadCodeBlock(t *testing.T) {
	body := `
targets:
  subject: [s01]
annotations:
  tract:
    grid: [anat]
    filter: |
      func(wrong int) int { return wrong }
figures:
  "_": |
    func(t *config.Target, name string, ax *render.Axes) error { return nil }
`
	_, err := Load(writeConfig(t, body))
	require.Error(t, err)
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "annotations.tract.filter", cerr.Section)
}
