package editor

import (
	"fmt"
	"sort"
	"strings"

	"cortex-annotate/internal/config"
	"cortex-annotate/pkg/geometry"
)

// MissingRequirementsError reports that an annotation cannot be edited until
// the annotations its fixed endpoints depend on have been drawn.
type MissingRequirementsError struct {
	Annotation string
	Missing    []string
}

func (e *MissingRequirementsError) Error() string {
	return fmt.Sprintf("annotation %q requires %s to be drawn first",
		e.Annotation, strings.Join(e.Missing, ", "))
}

// DependentsError reports that an annotation cannot be edited because other
// annotations have already been derived from it.
type DependentsError struct {
	Annotation string
	Dependents []string
}

func (e *DependentsError) Error() string {
	return fmt.Sprintf("annotation %q cannot be edited while %s depend on it",
		e.Annotation, strings.Join(e.Dependents, ", "))
}

// DeriveError reports a failure in a fixed-endpoint calculation.
type DeriveError struct {
	Annotation string
	Err        error
}

func (e *DeriveError) Error() string {
	return fmt.Sprintf("deriving fixed endpoints of %q: %v", e.Annotation, e.Err)
}

func (e *DeriveError) Unwrap() error { return e.Err }

// Resolution is the outcome of resolving an annotation's fixed endpoints for
// editing. When Err is non-nil the annotation is not editable and the
// endpoints are nil.
type Resolution struct {
	FixedHead *geometry.Point2D
	FixedTail *geometry.Point2D
	Err       error
}

// Resolve determines whether the named annotation may be edited for the
// given target and computes its fixed endpoints. Editing is refused when
// another drawn annotation's fixed endpoints require this one, or when a
// required annotation has not been drawn yet. sequences holds the target's
// currently stored paths; absent annotations must not appear in it.
func Resolve(cfg *config.Config, target *config.Target, name string,
	sequences map[string][]geometry.Point2D) Resolution {

	annot, ok := cfg.Annotations[name]
	if !ok {
		return Resolution{Err: fmt.Errorf("unknown annotation %q", name)}
	}

	// Annotations derived from this one lock it once they are drawn.
	var dependents []string
	for _, otherName := range cfg.AnnotationOrder {
		if otherName == name {
			continue
		}
		if _, drawn := sequences[otherName]; !drawn {
			continue
		}
		other := cfg.Annotations[otherName]
		if requiresName(other.FixedHead, name) || requiresName(other.FixedTail, name) {
			dependents = append(dependents, otherName)
		}
	}
	if len(dependents) > 0 {
		sort.Strings(dependents)
		return Resolution{Err: &DependentsError{Annotation: name, Dependents: dependents}}
	}

	missing := missingRequirements(annot, sequences)
	if len(missing) > 0 {
		return Resolution{Err: &MissingRequirementsError{Annotation: name, Missing: missing}}
	}

	head, err := derive(annot.FixedHead, target, name, sequences)
	if err != nil {
		return Resolution{Err: err}
	}
	tail, err := derive(annot.FixedTail, target, name, sequences)
	if err != nil {
		return Resolution{Err: err}
	}
	return Resolution{FixedHead: head, FixedTail: tail}
}

func requiresName(spec *config.FixedSpec, name string) bool {
	if spec == nil {
		return false
	}
	for _, req := range spec.Requires {
		if req == name {
			return true
		}
	}
	return false
}

func missingRequirements(a *config.Annotation, sequences map[string][]geometry.Point2D) []string {
	seen := make(map[string]bool)
	var missing []string
	for _, spec := range []*config.FixedSpec{a.FixedHead, a.FixedTail} {
		if spec == nil {
			continue
		}
		for _, req := range spec.Requires {
			if _, drawn := sequences[req]; !drawn && !seen[req] {
				seen[req] = true
				missing = append(missing, req)
			}
		}
	}
	sort.Strings(missing)
	return missing
}

func derive(spec *config.FixedSpec, target *config.Target, name string,
	sequences map[string][]geometry.Point2D) (*geometry.Point2D, error) {
	if spec == nil || spec.Calculate == nil {
		return nil, nil
	}
	// The calculation sees only the paths it declared; missing requirements
	// were checked already, so every required name is present.
	found := make(map[string][]geometry.Point2D, len(spec.Requires))
	for _, req := range spec.Requires {
		if pts, ok := sequences[req]; ok {
			found[req] = pts
		}
	}
	p, err := spec.Calculate(target, found)
	if err != nil {
		return nil, &DeriveError{Annotation: name, Err: err}
	}
	if !p.IsFinite() {
		return nil, &DeriveError{Annotation: name,
			Err: fmt.Errorf("calculated endpoint (%v, %v) is not finite", p.X, p.Y)}
	}
	return &p, nil
}
