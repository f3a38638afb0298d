// Package editor implements the interactive point-editing state machine for
// a single target's annotations, along with the resolution of fixed
// endpoints between annotations.
package editor

import (
	"log"

	"cortex-annotate/internal/config"
	"cortex-annotate/internal/grid"
	"cortex-annotate/pkg/geometry"
)

// Cursor selects which end of the current path is edited.
type Cursor int

const (
	// Tail edits append to and remove from the end of the path.
	Tail Cursor = iota
	// Head edits prepend to and remove from the start of the path.
	Head
)

func (c Cursor) String() string {
	if c == Head {
		return "head"
	}
	return "tail"
}

// Sequences is the point storage the editor mutates. Get returns the stored
// path for an annotation, Set replaces it; setting nil marks the annotation
// absent.
type Sequences interface {
	Get(name string) []geometry.Point2D
	Set(name string, points []geometry.Point2D)
}

// Editor edits one foreground annotation at a time. Pushed pixel positions
// are converted to figure coordinates through the mapper; fixed endpoints
// supplied by dependency resolution are stripped before edits and reattached
// after, so they can never be moved or removed.
type Editor struct {
	Mapper *grid.Mapper
	Seqs   Sequences

	Foreground string
	Type       config.AnnotationType
	Cursor     Cursor

	FixedHead *geometry.Point2D
	FixedTail *geometry.Point2D

	// OnChange, when set, is called after every mutation of the foreground
	// path.
	OnChange func(name string)
}

// SetForeground switches editing to another annotation. The cursor persists
// across switches; the fixed endpoints must be supplied by the caller from a
// fresh resolution.
func (e *Editor) SetForeground(name string, typ config.AnnotationType, head, tail *geometry.Point2D) {
	e.Foreground = name
	e.Type = typ
	e.FixedHead = head
	e.FixedTail = tail
}

// ClearForeground detaches the editor from any annotation; pushes and pops
// become no-ops until SetForeground binds one again. Used when dependency
// resolution refuses editing, since the stored path may still carry fixed
// endpoints the editor would otherwise treat as free points.
func (e *Editor) ClearForeground() {
	e.Foreground = ""
	e.FixedHead = nil
	e.FixedTail = nil
}

// ToggleCursor flips between head and tail editing.
func (e *Editor) ToggleCursor() {
	if e.Cursor == Tail {
		e.Cursor = Head
	} else {
		e.Cursor = Tail
	}
}

// strip removes the fixed endpoints from a stored path, returning the freely
// edited interior. The stored path always carries the fixed endpoints when
// they exist, so strip simply drops them positionally. The interior is
// copied: appending at the cursor must not write through to the stored
// array, which the panel and callers still hold until Set lands.
func (e *Editor) strip(points []geometry.Point2D) []geometry.Point2D {
	if e.FixedHead != nil && len(points) > 0 {
		points = points[1:]
	}
	if e.FixedTail != nil && len(points) > 0 {
		points = points[:len(points)-1]
	}
	free := make([]geometry.Point2D, len(points))
	copy(free, points)
	return free
}

// reattach restores the fixed endpoints around the free interior.
func (e *Editor) reattach(free []geometry.Point2D) []geometry.Point2D {
	out := make([]geometry.Point2D, 0, len(free)+2)
	if e.FixedHead != nil {
		out = append(out, *e.FixedHead)
	}
	out = append(out, free...)
	if e.FixedTail != nil {
		out = append(out, *e.FixedTail)
	}
	return out
}

// PushPixel converts a clicked pixel position to figure coordinates and
// pushes it onto the foreground path.
func (e *Editor) PushPixel(p geometry.Point2D) {
	fig := e.Mapper.ImageToFigure([]geometry.Point2D{p})
	e.Push(fig[0])
}

// Push adds a figure-coordinate point at the cursor end of the foreground
// path. For point annotations the new point replaces the whole path.
func (e *Editor) Push(p geometry.Point2D) {
	if e.Foreground == "" {
		return
	}
	if e.Type == config.Point {
		e.Seqs.Set(e.Foreground, []geometry.Point2D{p})
		e.changed()
		return
	}
	free := e.strip(e.Seqs.Get(e.Foreground))
	if e.Cursor == Head {
		free = append([]geometry.Point2D{p}, free...)
	} else {
		free = append(free, p)
	}
	e.Seqs.Set(e.Foreground, e.reattach(free))
	e.changed()
}

// Pop removes the point at the cursor end of the foreground path. Fixed
// endpoints are never removed. An empty path with no fixed endpoints becomes
// absent; a path holding only fixed endpoints and no free points is corrupt
// and gets discarded with a warning.
func (e *Editor) Pop() {
	if e.Foreground == "" {
		return
	}
	stored := e.Seqs.Get(e.Foreground)
	if stored == nil {
		return
	}
	free := e.strip(stored)
	fixed := e.FixedHead != nil || e.FixedTail != nil
	switch {
	case len(free) == 0 && fixed:
		// Stored paths always include their fixed endpoints; a shorter
		// path than the endpoints alone means the store is corrupt.
		log.Printf("editor: discarding corrupt annotation %q (%d stored points)",
			e.Foreground, len(stored))
		e.Seqs.Set(e.Foreground, nil)
		e.changed()
		return
	case len(free) == 0:
		e.Seqs.Set(e.Foreground, nil)
		e.changed()
		return
	case len(free) == 1 && fixed:
		// The last free point between fixed endpoints stays; removing it
		// would leave a path that cannot be edited back into shape.
		return
	}
	if e.Cursor == Head {
		free = free[1:]
	} else {
		free = free[:len(free)-1]
	}
	if len(free) == 0 && !fixed {
		e.Seqs.Set(e.Foreground, nil)
	} else {
		e.Seqs.Set(e.Foreground, e.reattach(free))
	}
	e.changed()
}

func (e *Editor) changed() {
	if e.OnChange != nil {
		e.OnChange(e.Foreground)
	}
}
