package editor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cortex-annotate/internal/config"
	"cortex-annotate/pkg/geometry"
)

func lastPoint(name string) config.DeriveFunc {
	return func(_ *config.Target, seqs map[string][]geometry.Point2D) (geometry.Point2D, error) {
		pts := seqs[name]
		if len(pts) == 0 {
			return geometry.Point2D{}, errors.New("no points")
		}
		return pts[len(pts)-1], nil
	}
}

// testConfig has three annotations: "base" is free, "mid" hangs its head off
// base's last point, and "cap" hangs its head off mid's last point.
func testConfig() *config.Config {
	return &config.Config{
		Annotations: map[string]*config.Annotation{
			"base": {Name: "base", Type: config.Contour},
			"mid": {Name: "mid", Type: config.Contour,
				FixedHead: &config.FixedSpec{Requires: []string{"base"}, Calculate: lastPoint("base")}},
			"cap": {Name: "cap", Type: config.Contour,
				FixedHead: &config.FixedSpec{Requires: []string{"mid"}, Calculate: lastPoint("mid")}},
		},
		AnnotationOrder: []string{"base", "mid", "cap"},
		Targets:         &config.Targets{},
	}
}

func target() *config.Target {
	return config.NewTarget([]string{"subject"}, []string{"s01"})
}

func TestResolveFreeAnnotation(t *testing.T) {
	res := Resolve(testConfig(), target(), "base", map[string][]geometry.Point2D{})
	require.NoError(t, res.Err)
	assert.Nil(t, res.FixedHead)
	assert.Nil(t, res.FixedTail)
}

func TestResolveMissingRequirement(t *testing.T) {
	res := Resolve(testConfig(), target(), "mid", map[string][]geometry.Point2D{})
	var missing *MissingRequirementsError
	require.ErrorAs(t, res.Err, &missing)
	assert.Equal(t, "mid", missing.Annotation)
	assert.Equal(t, []string{"base"}, missing.Missing)
}

func TestResolveDerivesEndpoint(t *testing.T) {
	seqs := map[string][]geometry.Point2D{
		"base": {pt(1, 1), pt(2, 3)},
	}
	res := Resolve(testConfig(), target(), "mid", seqs)
	require.NoError(t, res.Err)
	require.NotNil(t, res.FixedHead)
	assert.Equal(t, pt(2, 3), *res.FixedHead)
	assert.Nil(t, res.FixedTail)
}

func TestResolveLockedByDependents(t *testing.T) {
	seqs := map[string][]geometry.Point2D{
		"base": {pt(1, 1)},
		"mid":  {pt(1, 1), pt(2, 2)},
	}
	res := Resolve(testConfig(), target(), "base", seqs)
	var dep *DependentsError
	require.ErrorAs(t, res.Err, &dep)
	assert.Equal(t, []string{"mid"}, dep.Dependents)
	assert.Nil(t, res.FixedHead)
}

func TestResolveUnlockedOnceDependentsErased(t *testing.T) {
	seqs := map[string][]geometry.Point2D{
		"base": {pt(1, 1)},
	}
	res := Resolve(testConfig(), target(), "base", seqs)
	assert.NoError(t, res.Err)
}

func TestResolveDeriveError(t *testing.T) {
	cfg := testConfig()
	cfg.Annotations["mid"].FixedHead.Calculate = func(*config.Target, map[string][]geometry.Point2D) (geometry.Point2D, error) {
		return geometry.Point2D{}, errors.New("boom")
	}
	seqs := map[string][]geometry.Point2D{"base": {pt(1, 1)}}
	res := Resolve(cfg, target(), "mid", seqs)
	var derr *DeriveError
	require.ErrorAs(t, res.Err, &derr)
	assert.Equal(t, "mid", derr.Annotation)
}

func TestResolveRejectsNonFiniteEndpoint(t *testing.T) {
	cfg := testConfig()
	cfg.Annotations["mid"].FixedHead.Calculate = func(*config.Target, map[string][]geometry.Point2D) (geometry.Point2D, error) {
		nan := 0.0
		return geometry.Point2D{X: 1 / nan}, nil
	}
	seqs := map[string][]geometry.Point2D{"base": {pt(1, 1)}}
	res := Resolve(cfg, target(), "mid", seqs)
	var derr *DeriveError
	require.ErrorAs(t, res.Err, &derr)
}

func TestResolveDeriveSeesOnlyRequiredPaths(t *testing.T) {
	cfg := testConfig()
	var seen []string
	cfg.Annotations["mid"].FixedHead.Calculate = func(_ *config.Target, seqs map[string][]geometry.Point2D) (geometry.Point2D, error) {
		for name := range seqs {
			seen = append(seen, name)
		}
		return seqs["base"][0], nil
	}
	// "free" is drawn but not required by mid's fixed head; the calculation
	// must not observe it.
	cfg.Annotations["free"] = &config.Annotation{Name: "free", Type: config.Contour}
	cfg.AnnotationOrder = append(cfg.AnnotationOrder, "free")
	seqs := map[string][]geometry.Point2D{
		"base": {pt(1, 1)},
		"free": {pt(5, 5), pt(6, 6)},
	}
	res := Resolve(cfg, target(), "mid", seqs)
	require.NoError(t, res.Err)
	assert.Equal(t, []string{"base"}, seen)
}

func TestResolveUnknownAnnotation(t *testing.T) {
	res := Resolve(testConfig(), target(), "nope", nil)
	assert.Error(t, res.Err)
}
