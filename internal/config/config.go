// Package config loads the tool's YAML configuration: the target
// cross-product, the annotation and figure declarations, and the review
// section. Code blocks embedded in the file are Go function literals
// compiled by an embedded yaegi interpreter; the rest of the application
// only ever sees the typed function values produced here.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"cortex-annotate/internal/lazy"
	"cortex-annotate/internal/render"
	"cortex-annotate/internal/style"
	"cortex-annotate/pkg/geometry"
)

// Error reports a problem in the configuration file, named by the section
// path that contains it. Configuration errors are fatal at load time.
type Error struct {
	Section string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config %s: %s", e.Section, e.Message)
}

func errf(section, format string, args ...any) *Error {
	return &Error{Section: section, Message: fmt.Sprintf(format, args...)}
}

// SaveHooks collects callbacks registered by a review function. Keys are
// file names relative to the target's save directory; each callback receives
// the absolute output path at save time.
type SaveHooks map[string]func(path string) error

// FigureFunc renders one named figure for a target onto the given axes.
type FigureFunc func(target *Target, figure string, ax *render.Axes) error

// ReviewFunc draws the review image for a target from its completed
// annotations. It may register save hooks to emit derived artifacts.
type ReviewFunc func(target *Target, annotations map[string][]geometry.Point2D, ax *render.Axes, hooks SaveHooks) error

// FilterFunc decides whether an annotation is offered for a target.
type FilterFunc func(target *Target) bool

// DeriveFunc computes a fixed endpoint from the required annotations'
// point sequences.
type DeriveFunc func(target *Target, annotations map[string][]geometry.Point2D) (geometry.Point2D, error)

// DataFunc computes the point sets of a builtin annotation for a target.
type DataFunc func(target *Target) ([][]geometry.Point2D, error)

// TargetFunc computes a derived target property.
type TargetFunc func(target *Target) (any, error)

// Target is one concrete combination of the enumerated selection keys.
// Concrete key values identify the target and form its storage path;
// computed keys are evaluated lazily on first access.
type Target struct {
	keys     []string
	values   []string
	computed *lazy.Map[any]
}

// NewTarget builds a target from parallel concrete key and value lists.
// Targets normally come from Load; this constructor serves tools and tests.
func NewTarget(keys, values []string) *Target {
	return &Target{keys: keys, values: values, computed: lazy.NewMap[any]()}
}

// ID returns the target's identifier, the concrete values joined by "/".
func (t *Target) ID() string {
	return strings.Join(t.values, "/")
}

// Path returns the target's relative storage path.
func (t *Target) Path() string {
	return filepath.Join(t.values...)
}

// ConcreteKeys returns the ordered concrete key names.
func (t *Target) ConcreteKeys() []string {
	return t.keys
}

// Value returns the concrete value for a key.
func (t *Target) Value(key string) (string, bool) {
	for i, k := range t.keys {
		if k == key {
			return t.values[i], true
		}
	}
	return "", false
}

// Get returns the value for a concrete or computed key. Computed keys are
// evaluated once and cached.
func (t *Target) Get(key string) (any, error) {
	if v, ok := t.Value(key); ok {
		return v, nil
	}
	v, ok, err := t.computed.Get(key)
	if err != nil {
		return nil, fmt.Errorf("target %s: computing %s: %w", t.ID(), key, err)
	}
	if !ok {
		return nil, fmt.Errorf("target %s: no such key %q", t.ID(), key)
	}
	return v, nil
}

func (t *Target) String() string {
	return t.ID()
}

// Targets holds the enumerated target cross-product in declaration order.
type Targets struct {
	ConcreteKeys []string
	targets      []*Target
	byID         map[string]*Target
}

// All returns the targets in cross-product order.
func (ts *Targets) All() []*Target {
	return ts.targets
}

// ByID looks a target up by its identifier.
func (ts *Targets) ByID(id string) (*Target, bool) {
	t, ok := ts.byID[id]
	return t, ok
}

// Len returns the number of targets.
func (ts *Targets) Len() int {
	return len(ts.targets)
}

// AnnotationType is the drawable kind of a user annotation.
type AnnotationType int

const (
	Contour AnnotationType = iota // open connected path
	Boundary                      // closed loop
	Point                         // single point
)

// ParseAnnotationType parses the configuration spelling of a type tag.
func ParseAnnotationType(s string) (AnnotationType, error) {
	switch s {
	case "contour", "contours", "path", "paths":
		return Contour, nil
	case "boundary", "boundaries", "loop", "loops":
		return Boundary, nil
	case "point", "points":
		return Point, nil
	}
	return Contour, fmt.Errorf("invalid annotation type %q", s)
}

// Joined reports whether consecutive points are connected by strokes.
func (t AnnotationType) Joined() bool {
	return t != Point
}

// Closed reports whether the path loops back to its first point.
func (t AnnotationType) Closed() bool {
	return t == Boundary
}

func (t AnnotationType) String() string {
	switch t {
	case Boundary:
		return "boundary"
	case Point:
		return "point"
	default:
		return "contour"
	}
}

// FixedSpec declares a derived, non-editable endpoint of an annotation.
type FixedSpec struct {
	Requires  []string
	Calculate DeriveFunc
}

// Annotation is one user-editable annotation declaration.
type Annotation struct {
	Name        string
	Grid        [][]string // figure names; "" marks an empty cell
	Type        AnnotationType
	PlotOptions style.Override
	Filter      FilterFunc // nil means always shown
	FixedHead   *FixedSpec
	FixedTail   *FixedSpec
}

// GridShape returns the (rows, cols) of the annotation's figure grid.
func (a *Annotation) GridShape() (rows, cols int) {
	rows = len(a.Grid)
	if rows > 0 {
		cols = len(a.Grid[0])
	}
	return rows, cols
}

// BuiltinType is the drawable kind of a builtin annotation.
type BuiltinType int

const (
	Points BuiltinType = iota
	Lines
)

// BuiltinAnnotation is a read-only computed annotation declaration.
type BuiltinAnnotation struct {
	Name        string
	Type        BuiltinType
	PlotOptions style.Override
	Filter      FilterFunc
	Data        DataFunc
}

// Display holds the display section of the configuration.
type Display struct {
	FigSize     [2]float64
	DPI         int
	PlotOptions style.Override // defaults for every annotation style
	FgOptions   style.Override // defaults for the foreground style only
}

// ImageSize returns the rendered pixel size of one figure cell.
func (d Display) ImageSize() (width, height int) {
	return int(float64(d.DPI)*d.FigSize[0] + 0.5), int(float64(d.DPI)*d.FigSize[1] + 0.5)
}

// CellAspect returns height/width of a figure cell.
func (d Display) CellAspect() float64 {
	return d.FigSize[1] / d.FigSize[0]
}

// Review holds the review section; Function is nil when the section is
// absent, in which case the review flow is disabled.
type Review struct {
	Function ReviewFunc
	FigSize  [2]float64
	DPI      int
}

// Config is the parsed configuration file.
type Config struct {
	Path            string
	Display         Display
	Targets         *Targets
	Annotations     map[string]*Annotation
	AnnotationOrder []string
	Builtins        map[string]*BuiltinAnnotation
	BuiltinOrder    []string
	Figures         map[string]FigureFunc
	Review          Review
}

// AnnotationType returns the type tag for a user annotation name, defaulting
// to Contour for unknown names.
func (c *Config) AnnotationType(name string) AnnotationType {
	if a, ok := c.Annotations[name]; ok {
		return a.Type
	}
	return Contour
}
