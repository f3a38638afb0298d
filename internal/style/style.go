// Package style defines the drawing style schema for annotations and its
// layered override resolution.
//
// A reified Style always carries every key. Overrides are partial documents
// (as read from the config file or the user's preferences) that are validated
// against the schema and applied on top of lower layers in order:
// built-in default, display plot options, foreground options (foreground
// style only), per-annotation plot options, user preference override.
package style

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// Line styles accepted by the schema.
const (
	LineSolid     = "solid"
	LineDashed    = "dashed"
	LineDotDashed = "dot-dashed"
	LineDotted    = "dotted"
)

// Style is a fully reified drawing style.
type Style struct {
	Visible    bool    `yaml:"visible"`
	Color      string  `yaml:"color"`
	LineWidth  float64 `yaml:"linewidth"`
	LineStyle  string  `yaml:"linestyle"`
	MarkerSize float64 `yaml:"markersize"`
}

// Override is a partial style document keyed by schema field name.
type Override map[string]any

// Override keys accepted by the schema.
const (
	KeyVisible    = "visible"
	KeyColor      = "color"
	KeyLineWidth  = "linewidth"
	KeyLineStyle  = "linestyle"
	KeyMarkerSize = "markersize"
)

// Keys lists the valid override keys.
var Keys = []string{KeyVisible, KeyColor, KeyLineWidth, KeyLineStyle, KeyMarkerSize}

// Default returns the built-in base style.
func Default() Style {
	return Style{
		Visible:    true,
		Color:      "#000000",
		LineWidth:  1,
		LineStyle:  LineSolid,
		MarkerSize: 1,
	}
}

// Validate checks an override against the schema. Color values are
// normalized to hex form in place. Returns an error naming the first
// offending key.
func Validate(o Override) error {
	for k, v := range o {
		switch k {
		case "visible":
			if _, ok := v.(bool); !ok {
				return fmt.Errorf("style: visible must be a bool, got %v", v)
			}
		case "color":
			s, ok := v.(string)
			if !ok {
				return fmt.Errorf("style: color must be a string, got %v", v)
			}
			hex, err := normalizeColor(s)
			if err != nil {
				return fmt.Errorf("style: %w", err)
			}
			o[k] = hex
		case "linewidth":
			f, ok := toFloat(v)
			if !ok {
				return fmt.Errorf("style: linewidth must be a number, got %v", v)
			}
			if f <= 0 || f > 20 {
				return fmt.Errorf("style: linewidth out of range (0, 20]: %v", f)
			}
			o[k] = f
		case "linestyle":
			s, ok := v.(string)
			if !ok {
				return fmt.Errorf("style: linestyle must be a string, got %v", v)
			}
			switch s {
			case LineSolid, LineDashed, LineDotDashed, LineDotted:
			default:
				return fmt.Errorf("style: invalid linestyle %q", s)
			}
		case "markersize":
			f, ok := toFloat(v)
			if !ok {
				return fmt.Errorf("style: markersize must be a number, got %v", v)
			}
			if f < 0 || f > 20 {
				return fmt.Errorf("style: markersize out of range [0, 20]: %v", f)
			}
			o[k] = f
		default:
			return fmt.Errorf("style: invalid key %q", k)
		}
	}
	return nil
}

// Apply returns a copy of the style with the override's keys replaced.
// The override must already have been validated.
func (s Style) Apply(o Override) Style {
	if v, ok := o["visible"]; ok {
		s.Visible = v.(bool)
	}
	if v, ok := o["color"]; ok {
		s.Color = v.(string)
	}
	if v, ok := o["linewidth"]; ok {
		if f, ok := toFloat(v); ok {
			s.LineWidth = f
		}
	}
	if v, ok := o["linestyle"]; ok {
		s.LineStyle = v.(string)
	}
	if v, ok := o["markersize"]; ok {
		if f, ok := toFloat(v); ok {
			s.MarkerSize = f
		}
	}
	return s
}

// Merge copies the other override's keys into o, overwriting duplicates.
func (o Override) Merge(other Override) {
	for k, v := range other {
		o[k] = v
	}
}

// Clone returns a copy of the override.
func (o Override) Clone() Override {
	out := make(Override, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

// RGBA returns the style's color as an RGBA value. The color is assumed to
// have been normalized by Validate; malformed values yield opaque black.
func (s Style) RGBA() color.RGBA {
	c, err := ParseColor(s.Color)
	if err != nil {
		return color.RGBA{A: 255}
	}
	return c
}

// DashPattern returns the on/off dash lengths for the style's line style,
// scaled by its line width. Solid lines return nil.
func (s Style) DashPattern() []float64 {
	w := s.LineWidth
	if w < 1 {
		w = 1
	}
	switch s.LineStyle {
	case LineDashed:
		return []float64{w * 3, w * 3}
	case LineDotDashed:
		return []float64{w, w * 2, w * 4, w * 2}
	case LineDotted:
		return []float64{w, w}
	default:
		return nil
	}
}

// namedColors maps the accepted color names to hex values.
var namedColors = map[string]string{
	"black":   "#000000",
	"white":   "#ffffff",
	"red":     "#ff0000",
	"green":   "#008000",
	"blue":    "#0000ff",
	"yellow":  "#ffff00",
	"cyan":    "#00ffff",
	"magenta": "#ff00ff",
	"gray":    "#808080",
	"grey":    "#808080",
	"orange":  "#ffa500",
	"purple":  "#800080",
	"brown":   "#a52a2a",
	"pink":    "#ffc0cb",
}

// normalizeColor converts a color name or hex string to #rrggbb form.
func normalizeColor(s string) (string, error) {
	c, err := ParseColor(s)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B), nil
}

// ParseColor parses a #rgb or #rrggbb hex string or a known color name.
func ParseColor(s string) (color.RGBA, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if hex, ok := namedColors[name]; ok {
		name = hex
	}
	if !strings.HasPrefix(name, "#") {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	hex := name[1:]
	var r, g, b uint64
	var err error
	switch len(hex) {
	case 3:
		r, err = strconv.ParseUint(strings.Repeat(hex[0:1], 2), 16, 8)
		if err == nil {
			g, err = strconv.ParseUint(strings.Repeat(hex[1:2], 2), 16, 8)
		}
		if err == nil {
			b, err = strconv.ParseUint(strings.Repeat(hex[2:3], 2), 16, 8)
		}
	case 6:
		r, err = strconv.ParseUint(hex[0:2], 16, 8)
		if err == nil {
			g, err = strconv.ParseUint(hex[2:4], 16, 8)
		}
		if err == nil {
			b, err = strconv.ParseUint(hex[4:6], 16, 8)
		}
	default:
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	return color.RGBA{R: uint8(r), G: uint8(g), B: uint8(b), A: 255}, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
