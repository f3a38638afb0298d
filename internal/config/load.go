package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"cortex-annotate/internal/lazy"
	"cortex-annotate/internal/style"
	"cortex-annotate/pkg/geometry"
)

// Load reads and compiles the configuration file. Any problem is fatal and
// reported as a *Error naming the offending section.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errf("", "parsing %s: %v", path, err)
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, errf("", "config file must contain a top-level mapping")
	}
	root := doc.Content[0]
	sections := make(map[string]*yaml.Node)
	for _, e := range mapEntries(root) {
		sections[e.key] = e.val
	}

	cfg := &Config{Path: path}

	cfg.Display, err = parseDisplay(sections["display"])
	if err != nil {
		return nil, err
	}

	initCode := ""
	if n := sections["init"]; n != nil && !isNull(n) {
		s, ok := scalarString(n)
		if !ok {
			return nil, errf("init", "init section must be a code string")
		}
		initCode = s
	}
	sc, err := newScripts(initCode)
	if err != nil {
		return nil, err
	}

	cfg.Targets, err = parseTargets(sections["targets"], sc)
	if err != nil {
		return nil, err
	}

	allFigures := make(map[string]bool)
	cfg.Annotations, cfg.AnnotationOrder, err = parseAnnotations(sections["annotations"], sc, allFigures)
	if err != nil {
		return nil, err
	}

	cfg.Builtins, cfg.BuiltinOrder, err = parseBuiltins(sections["builtin_annotations"], sc)
	if err != nil {
		return nil, err
	}

	cfg.Figures, err = parseFigures(sections["figures"], sc, allFigures)
	if err != nil {
		return nil, err
	}

	cfg.Review, err = parseReview(sections["review"], sc)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

type mapEntry struct {
	key string
	val *yaml.Node
}

// mapEntries returns a mapping node's entries in document order.
func mapEntries(n *yaml.Node) []mapEntry {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	entries := make([]mapEntry, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		entries = append(entries, mapEntry{key: n.Content[i].Value, val: n.Content[i+1]})
	}
	return entries
}

func scalarString(n *yaml.Node) (string, bool) {
	if n == nil || n.Kind != yaml.ScalarNode || n.Tag == "!!null" {
		return "", false
	}
	var s string
	if err := n.Decode(&s); err != nil {
		return "", false
	}
	return s, true
}

func isNull(n *yaml.Node) bool {
	return n == nil || (n.Kind == yaml.ScalarNode && n.Tag == "!!null")
}

func parseDisplay(n *yaml.Node) (Display, error) {
	d := Display{
		FigSize:     [2]float64{4, 4},
		DPI:         128,
		PlotOptions: style.Override{},
		FgOptions:   style.Override{},
	}
	if isNull(n) {
		return d, nil
	}
	if n.Kind != yaml.MappingNode {
		return d, errf("display", "display section must be a mapping")
	}
	for _, e := range mapEntries(n) {
		switch e.key {
		case "figsize":
			fs, err := parseFigSize("display.figsize", e.val)
			if err != nil {
				return d, err
			}
			d.FigSize = fs
		case "dpi":
			var dpi int
			if err := e.val.Decode(&dpi); err != nil || dpi < 1 {
				return d, errf("display", "invalid dpi: %s", e.val.Value)
			}
			d.DPI = dpi
		case "plot_options":
			ov, err := parseStyleOverride("display.plot_options", e.val)
			if err != nil {
				return d, err
			}
			d.PlotOptions = ov
		case "fg_options":
			ov, err := parseStyleOverride("display.fg_options", e.val)
			if err != nil {
				return d, err
			}
			d.FgOptions = ov
		default:
			return d, errf("display", "unknown key %q", e.key)
		}
	}
	return d, nil
}

func parseFigSize(section string, n *yaml.Node) ([2]float64, error) {
	var fs [2]float64
	switch n.Kind {
	case yaml.ScalarNode:
		var v float64
		if err := n.Decode(&v); err != nil || v <= 0 {
			return fs, errf(section, "figsize must be a positive number or pair")
		}
		return [2]float64{v, v}, nil
	case yaml.SequenceNode:
		var vs []float64
		if err := n.Decode(&vs); err != nil || len(vs) != 2 || vs[0] <= 0 || vs[1] <= 0 {
			return fs, errf(section, "figsize must be a pair of positive numbers")
		}
		return [2]float64{vs[0], vs[1]}, nil
	}
	return fs, errf(section, "figsize must be a number or pair")
}

func parseStyleOverride(section string, n *yaml.Node) (style.Override, error) {
	if isNull(n) {
		return style.Override{}, nil
	}
	var m map[string]any
	if err := n.Decode(&m); err != nil {
		return nil, errf(section, "plot options must be a mapping")
	}
	ov := style.Override(m)
	if err := style.Validate(ov); err != nil {
		return nil, errf(section, "%v", err)
	}
	return ov, nil
}

func parseTargets(n *yaml.Node, sc *scripts) (*Targets, error) {
	if isNull(n) {
		return nil, errf("targets", "targets section is required")
	}
	if n.Kind != yaml.MappingNode {
		return nil, errf("targets", "targets section must be a mapping")
	}
	var concreteKeys []string
	lists := make(map[string][]string)
	computed := make(map[string]TargetFunc)
	var computedOrder []string
	for _, e := range mapEntries(n) {
		section := "targets." + e.key
		switch e.val.Kind {
		case yaml.SequenceNode:
			var vals []string
			if err := e.val.Decode(&vals); err != nil || len(vals) == 0 {
				return nil, errf(section, "concrete target keys must be non-empty string lists")
			}
			concreteKeys = append(concreteKeys, e.key)
			lists[e.key] = vals
		case yaml.ScalarNode:
			src, ok := scalarString(e.val)
			if !ok {
				return nil, errf(section, "target entries must be string lists or code strings")
			}
			fn, err := sc.targetFunc(section, src)
			if err != nil {
				return nil, err
			}
			computed[e.key] = fn
			computedOrder = append(computedOrder, e.key)
		default:
			return nil, errf(section, "target entries must be string lists or code strings")
		}
	}
	if len(concreteKeys) == 0 {
		return nil, errf("targets", "at least one concrete (list-valued) target key is required")
	}

	ts := &Targets{
		ConcreteKeys: concreteKeys,
		byID:         make(map[string]*Target),
	}
	var build func(i int, acc []string)
	build = func(i int, acc []string) {
		if i == len(concreteKeys) {
			vals := make([]string, len(acc))
			copy(vals, acc)
			t := &Target{keys: concreteKeys, values: vals, computed: lazy.NewMap[any]()}
			for _, key := range computedOrder {
				fn := computed[key]
				t.computed.SetFunc(key, func() (any, error) { return fn(t) })
			}
			ts.targets = append(ts.targets, t)
			ts.byID[t.ID()] = t
			return
		}
		for _, v := range lists[concreteKeys[i]] {
			build(i+1, append(acc, v))
		}
	}
	build(0, nil)
	return ts, nil
}

func parseGrid(section string, n *yaml.Node, figures map[string]bool) ([][]string, error) {
	if n == nil || n.Kind != yaml.SequenceNode {
		return nil, errf(section, "grid is required and must be a list or matrix")
	}
	cell := func(c *yaml.Node) (string, error) {
		if isNull(c) {
			return "", nil
		}
		s, ok := scalarString(c)
		if !ok {
			return "", errf(section, "grid items must be null or figure names")
		}
		figures[s] = true
		return s, nil
	}
	// A flat list of scalars is a single row.
	flat := true
	for _, c := range n.Content {
		if c.Kind == yaml.SequenceNode {
			flat = false
			break
		}
	}
	var grid [][]string
	if flat {
		row := make([]string, 0, len(n.Content))
		for _, c := range n.Content {
			s, err := cell(c)
			if err != nil {
				return nil, err
			}
			row = append(row, s)
		}
		grid = [][]string{row}
	} else {
		cols := -1
		for _, rn := range n.Content {
			if rn.Kind != yaml.SequenceNode {
				return nil, errf(section, "grid rows must be lists")
			}
			if cols < 0 {
				cols = len(rn.Content)
			} else if cols != len(rn.Content) {
				return nil, errf(section, "grid cannot be a ragged matrix")
			}
			row := make([]string, 0, len(rn.Content))
			for _, c := range rn.Content {
				s, err := cell(c)
				if err != nil {
					return nil, err
				}
				row = append(row, s)
			}
			grid = append(grid, row)
		}
	}
	if len(grid) == 0 || len(grid[0]) == 0 {
		return nil, errf(section, "grid must not be empty")
	}
	return grid, nil
}

// lastPointOf is the shorthand fixed-endpoint derivation: the final point of
// the named annotation's path.
func lastPointOf(name string) DeriveFunc {
	return func(_ *Target, annotations map[string][]geometry.Point2D) (geometry.Point2D, error) {
		pts := annotations[name]
		if len(pts) == 0 {
			return geometry.Point2D{}, fmt.Errorf("annotation %q has no points", name)
		}
		return pts[len(pts)-1], nil
	}
}

func parseFixed(section string, n *yaml.Node, sc *scripts) (*FixedSpec, error) {
	if isNull(n) {
		return nil, nil
	}
	if s, ok := scalarString(n); ok && n.Style != yaml.LiteralStyle && n.Style != yaml.FoldedStyle {
		return &FixedSpec{Requires: []string{s}, Calculate: lastPointOf(s)}, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, errf(section, "fixed endpoints must be an annotation name or a mapping")
	}
	spec := &FixedSpec{}
	var calcSrc string
	for _, e := range mapEntries(n) {
		switch e.key {
		case "requires":
			switch e.val.Kind {
			case yaml.ScalarNode:
				s, ok := scalarString(e.val)
				if !ok {
					return nil, errf(section, "requires must name annotations")
				}
				spec.Requires = []string{s}
			case yaml.SequenceNode:
				if err := e.val.Decode(&spec.Requires); err != nil {
					return nil, errf(section, "requires must be a list of annotation names")
				}
			default:
				return nil, errf(section, "requires must be a name or list of names")
			}
		case "calculate":
			s, ok := scalarString(e.val)
			if !ok {
				return nil, errf(section, "calculate must be a code string")
			}
			calcSrc = s
		default:
			return nil, errf(section, "unknown key %q", e.key)
		}
	}
	if calcSrc == "" {
		return nil, errf(section, "fixed endpoints must contain calculate")
	}
	fn, err := sc.deriveFunc(section+".calculate", calcSrc)
	if err != nil {
		return nil, err
	}
	spec.Calculate = fn
	return spec, nil
}

func parseAnnotations(n *yaml.Node, sc *scripts, figures map[string]bool) (map[string]*Annotation, []string, error) {
	if isNull(n) {
		return nil, nil, errf("annotations", "annotations section is required")
	}
	if n.Kind != yaml.MappingNode {
		return nil, nil, errf("annotations", "annotations section must be a mapping")
	}
	annots := make(map[string]*Annotation)
	var order []string
	for _, e := range mapEntries(n) {
		section := "annotations." + e.key
		a := &Annotation{
			Name:        e.key,
			Type:        Contour,
			PlotOptions: style.Override{},
		}
		switch e.val.Kind {
		case yaml.SequenceNode:
			// Just the grid is legal.
			grid, err := parseGrid(section+".grid", e.val, figures)
			if err != nil {
				return nil, nil, err
			}
			a.Grid = grid
		case yaml.MappingNode:
			var gridNode *yaml.Node
			for _, f := range mapEntries(e.val) {
				switch f.key {
				case "grid":
					gridNode = f.val
				case "type":
					s, ok := scalarString(f.val)
					if !ok {
						return nil, nil, errf(section, "type must be a string")
					}
					t, err := ParseAnnotationType(s)
					if err != nil {
						return nil, nil, errf(section, "%v", err)
					}
					a.Type = t
				case "filter":
					src, ok := scalarString(f.val)
					if !ok {
						return nil, nil, errf(section, "filter must be a code string")
					}
					fn, err := sc.filterFunc(section+".filter", src)
					if err != nil {
						return nil, nil, err
					}
					a.Filter = fn
				case "plot_options":
					ov, err := parseStyleOverride(section+".plot_options", f.val)
					if err != nil {
						return nil, nil, err
					}
					a.PlotOptions = ov
				case "fixed_head":
					spec, err := parseFixed(section+".fixed_head", f.val, sc)
					if err != nil {
						return nil, nil, err
					}
					a.FixedHead = spec
				case "fixed_tail":
					spec, err := parseFixed(section+".fixed_tail", f.val, sc)
					if err != nil {
						return nil, nil, err
					}
					a.FixedTail = spec
				default:
					return nil, nil, errf(section, "unknown key %q", f.key)
				}
			}
			grid, err := parseGrid(section+".grid", gridNode, figures)
			if err != nil {
				return nil, nil, err
			}
			a.Grid = grid
		default:
			return nil, nil, errf(section, "annotations must be grids or mappings")
		}
		if a.Type == Point && (a.FixedHead != nil || a.FixedTail != nil) {
			return nil, nil, errf(section, "point annotations cannot have fixed endpoints")
		}
		annots[e.key] = a
		order = append(order, e.key)
	}
	if len(order) == 0 {
		return nil, nil, errf("annotations", "at least one annotation is required")
	}
	return annots, order, nil
}

func parseBuiltins(n *yaml.Node, sc *scripts) (map[string]*BuiltinAnnotation, []string, error) {
	builtins := make(map[string]*BuiltinAnnotation)
	if isNull(n) {
		return builtins, nil, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, nil, errf("builtin_annotations", "builtin_annotations must be a mapping")
	}
	var order []string
	for _, e := range mapEntries(n) {
		section := "builtin_annotations." + e.key
		if e.val.Kind != yaml.MappingNode {
			return nil, nil, errf(section, "builtin annotations must be mappings")
		}
		b := &BuiltinAnnotation{
			Name:        e.key,
			Type:        Points,
			PlotOptions: style.Override{},
		}
		for _, f := range mapEntries(e.val) {
			switch f.key {
			case "type":
				s, ok := scalarString(f.val)
				if !ok {
					return nil, nil, errf(section, "type must be a string")
				}
				switch s {
				case "points":
					b.Type = Points
				case "lines":
					b.Type = Lines
				default:
					return nil, nil, errf(section, "type must be one of lines or points")
				}
			case "filter":
				src, ok := scalarString(f.val)
				if !ok {
					return nil, nil, errf(section, "filter must be a code string")
				}
				fn, err := sc.filterFunc(section+".filter", src)
				if err != nil {
					return nil, nil, err
				}
				b.Filter = fn
			case "plot_options":
				ov, err := parseStyleOverride(section+".plot_options", f.val)
				if err != nil {
					return nil, nil, err
				}
				b.PlotOptions = ov
			case "data":
				src, ok := scalarString(f.val)
				if !ok {
					return nil, nil, errf(section, "data must be a code string")
				}
				fn, err := sc.dataFunc(section+".data", src)
				if err != nil {
					return nil, nil, err
				}
				b.Data = fn
			default:
				return nil, nil, errf(section, "unknown key %q", f.key)
			}
		}
		if b.Data == nil {
			return nil, nil, errf(section, "data is required")
		}
		builtins[e.key] = b
		order = append(order, e.key)
	}
	return builtins, order, nil
}

func parseFigures(n *yaml.Node, sc *scripts, allFigures map[string]bool) (map[string]FigureFunc, error) {
	if isNull(n) {
		if len(allFigures) == 0 {
			return map[string]FigureFunc{}, nil
		}
		return nil, errf("figures", "figures section is required")
	}
	if n.Kind != yaml.MappingNode {
		return nil, errf("figures", "figures section must be a mapping")
	}
	entries := make(map[string]string)
	for _, e := range mapEntries(n) {
		src, ok := scalarString(e.val)
		if !ok {
			return nil, errf("figures."+e.key, "figure entries must be code strings")
		}
		entries[e.key] = src
	}
	var wildcard FigureFunc
	if src, ok := entries["_"]; ok {
		fn, err := sc.figureFunc("figures._", src)
		if err != nil {
			return nil, err
		}
		wildcard = fn
	}
	figures := make(map[string]FigureFunc, len(allFigures))
	for name := range allFigures {
		src, ok := entries[name]
		if !ok {
			if wildcard == nil {
				return nil, errf("figures", "no figure entry for %q", name)
			}
			figures[name] = wildcard
			continue
		}
		fn, err := sc.figureFunc("figures."+name, src)
		if err != nil {
			return nil, err
		}
		figures[name] = fn
	}
	return figures, nil
}

func parseReview(n *yaml.Node, sc *scripts) (Review, error) {
	r := Review{FigSize: [2]float64{3, 3}, DPI: 256}
	if isNull(n) {
		return r, nil
	}
	var src string
	if s, ok := scalarString(n); ok {
		src = s
	} else if n.Kind == yaml.MappingNode {
		for _, e := range mapEntries(n) {
			switch e.key {
			case "function":
				s, ok := scalarString(e.val)
				if !ok {
					return r, errf("review.function", "function must be a code string")
				}
				src = s
			case "figsize":
				fs, err := parseFigSize("review.figsize", e.val)
				if err != nil {
					return r, err
				}
				r.FigSize = fs
			case "dpi":
				var dpi int
				if err := e.val.Decode(&dpi); err != nil || dpi < 1 {
					return r, errf("review", "invalid dpi: %s", e.val.Value)
				}
				r.DPI = dpi
			default:
				return r, errf("review", "unknown key %q", e.key)
			}
		}
		if src == "" {
			return r, errf("review", "review section must contain the key function")
		}
	} else {
		return r, errf("review", "review section must be a code string or mapping")
	}
	fn, err := sc.reviewFunc("review.function", src)
	if err != nil {
		return r, err
	}
	r.Function = fn
	return r, nil
}
