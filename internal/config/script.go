package config

import (
	"reflect"

	"github.com/cogentcore/yaegi/interp"
	"github.com/cogentcore/yaegi/stdlib"

	"cortex-annotate/internal/render"
	"cortex-annotate/pkg/geometry"
)

// scripts wraps the yaegi interpreter that compiles the configuration's
// code blocks. All blocks share one interpreter so declarations made by the
// init section are visible everywhere, mirroring a shared namespace.
type scripts struct {
	i *interp.Interpreter
}

// scriptPrelude is evaluated before any code block so that blocks can refer
// to the exported project packages without their own import clauses.
const scriptPrelude = `import (
	"math"
	"sort"

	"annotate/geometry"
	"annotate/render"
	"annotate/config"
)`

// exports exposes the types the code-block contracts are written against.
func exports() interp.Exports {
	return interp.Exports{
		"annotate/geometry/geometry": {
			"Point2D":    reflect.ValueOf((*geometry.Point2D)(nil)),
			"Limits":     reflect.ValueOf((*geometry.Limits)(nil)),
			"Rect":       reflect.ValueOf((*geometry.Rect)(nil)),
			"NewPoint2D": reflect.ValueOf(geometry.NewPoint2D),
			"NewLimits":  reflect.ValueOf(geometry.NewLimits),
			"PathBounds": reflect.ValueOf(geometry.PathBounds),
			"ClonePath":  reflect.ValueOf(geometry.ClonePath),
		},
		"annotate/render/render": {
			"Axes": reflect.ValueOf((*render.Axes)(nil)),
		},
		"annotate/config/config": {
			"Target":    reflect.ValueOf((*Target)(nil)),
			"SaveHooks": reflect.ValueOf((*SaveHooks)(nil)),
		},
	}
}

// newScripts creates the interpreter and runs the init section, if any.
func newScripts(initCode string) (*scripts, error) {
	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, errf("init", "loading interpreter stdlib: %v", err)
	}
	if err := i.Use(exports()); err != nil {
		return nil, errf("init", "loading interpreter exports: %v", err)
	}
	if _, err := i.Eval(scriptPrelude); err != nil {
		return nil, errf("init", "interpreter prelude: %v", err)
	}
	if initCode != "" {
		if _, err := i.Eval(initCode); err != nil {
			return nil, errf("init", "%v", err)
		}
	}
	return &scripts{i: i}, nil
}

// eval compiles one code block, reporting errors against its section path.
func (s *scripts) eval(section, src string) (reflect.Value, error) {
	v, err := s.i.Eval(src)
	if err != nil {
		return reflect.Value{}, errf(section, "%v", err)
	}
	return v, nil
}

func (s *scripts) filterFunc(section, src string) (FilterFunc, error) {
	v, err := s.eval(section, src)
	if err != nil {
		return nil, err
	}
	fn, ok := v.Interface().(func(*Target) bool)
	if !ok {
		return nil, errf(section, "filter must be a func(*config.Target) bool, got %T", v.Interface())
	}
	return fn, nil
}

func (s *scripts) deriveFunc(section, src string) (DeriveFunc, error) {
	v, err := s.eval(section, src)
	if err != nil {
		return nil, err
	}
	fn, ok := v.Interface().(func(*Target, map[string][]geometry.Point2D) (geometry.Point2D, error))
	if !ok {
		return nil, errf(section,
			"calculate must be a func(*config.Target, map[string][]geometry.Point2D) (geometry.Point2D, error), got %T",
			v.Interface())
	}
	return fn, nil
}

func (s *scripts) figureFunc(section, src string) (FigureFunc, error) {
	v, err := s.eval(section, src)
	if err != nil {
		return nil, err
	}
	fn, ok := v.Interface().(func(*Target, string, *render.Axes) error)
	if !ok {
		return nil, errf(section,
			"figure entries must be a func(*config.Target, string, *render.Axes) error, got %T",
			v.Interface())
	}
	return fn, nil
}

func (s *scripts) reviewFunc(section, src string) (ReviewFunc, error) {
	v, err := s.eval(section, src)
	if err != nil {
		return nil, err
	}
	fn, ok := v.Interface().(func(*Target, map[string][]geometry.Point2D, *render.Axes, SaveHooks) error)
	if !ok {
		return nil, errf(section,
			"review function must be a func(*config.Target, map[string][]geometry.Point2D, *render.Axes, config.SaveHooks) error, got %T",
			v.Interface())
	}
	return fn, nil
}

func (s *scripts) dataFunc(section, src string) (DataFunc, error) {
	v, err := s.eval(section, src)
	if err != nil {
		return nil, err
	}
	fn, ok := v.Interface().(func(*Target) ([][]geometry.Point2D, error))
	if !ok {
		return nil, errf(section,
			"data must be a func(*config.Target) ([][]geometry.Point2D, error), got %T",
			v.Interface())
	}
	return fn, nil
}

func (s *scripts) targetFunc(section, src string) (TargetFunc, error) {
	v, err := s.eval(section, src)
	if err != nil {
		return nil, err
	}
	fn, ok := v.Interface().(func(*Target) (any, error))
	if !ok {
		return nil, errf(section,
			"target entries must be lists or a func(*config.Target) (any, error), got %T",
			v.Interface())
	}
	return fn, nil
}
