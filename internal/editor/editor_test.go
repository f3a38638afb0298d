package editor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cortex-annotate/internal/config"
	"cortex-annotate/internal/grid"
	"cortex-annotate/pkg/geometry"
)

// mapSequences is an in-memory Sequences for tests.
type mapSequences map[string][]geometry.Point2D

func (m mapSequences) Get(name string) []geometry.Point2D { return m[name] }

func (m mapSequences) Set(name string, pts []geometry.Point2D) {
	if pts == nil {
		delete(m, name)
	} else {
		m[name] = pts
	}
}

func pt(x, y float64) geometry.Point2D { return geometry.Point2D{X: x, Y: y} }

func newTestEditor(t *testing.T) (*Editor, mapSequences) {
	t.Helper()
	xlim := geometry.Limits{Min: 0, Max: 10}
	ylim := geometry.Limits{Min: 0, Max: 10}
	m, err := grid.NewMapper(1, 2, 200, 100, &xlim, &ylim)
	require.NoError(t, err)
	seqs := mapSequences{}
	e := &Editor{Mapper: m, Seqs: seqs}
	e.SetForeground("c", config.Contour, nil, nil)
	return e, seqs
}

func TestPushAppendsAtTail(t *testing.T) {
	e, seqs := newTestEditor(t)
	e.Push(pt(1, 1))
	e.Push(pt(2, 2))
	assert.Equal(t, []geometry.Point2D{pt(1, 1), pt(2, 2)}, seqs["c"])
}

func TestPushAtHead(t *testing.T) {
	e, seqs := newTestEditor(t)
	e.Push(pt(1, 1))
	e.ToggleCursor()
	e.Push(pt(2, 2))
	assert.Equal(t, []geometry.Point2D{pt(2, 2), pt(1, 1)}, seqs["c"])
}

func TestPushPopIsInverse(t *testing.T) {
	e, seqs := newTestEditor(t)
	e.Push(pt(1, 1))
	e.Push(pt(2, 2))
	e.Push(pt(3, 3))
	e.Pop()
	assert.Equal(t, []geometry.Point2D{pt(1, 1), pt(2, 2)}, seqs["c"])

	e.ToggleCursor()
	e.Pop()
	assert.Equal(t, []geometry.Point2D{pt(2, 2)}, seqs["c"])
}

func TestPopLastPointRemovesAnnotation(t *testing.T) {
	e, seqs := newTestEditor(t)
	e.Push(pt(1, 1))
	e.Pop()
	_, present := seqs["c"]
	assert.False(t, present)

	// Popping an absent annotation stays absent.
	e.Pop()
	_, present = seqs["c"]
	assert.False(t, present)
}

func TestPushPixelConvertsThroughMapper(t *testing.T) {
	e, seqs := newTestEditor(t)
	// Pixel (50, 50) in a 100x100 cell spanning (0,10)x(0,10).
	e.PushPixel(pt(50, 50))
	require.Len(t, seqs["c"], 1)
	assert.InDelta(t, 5, seqs["c"][0].X, 1e-9)
	assert.InDelta(t, 5, seqs["c"][0].Y, 1e-9)

	// Clicking the second cell yields the same figure point.
	e.PushPixel(pt(150, 50))
	assert.InDelta(t, 5, seqs["c"][1].X, 1e-9)
}

func TestPointTypeReplacesSequence(t *testing.T) {
	e, seqs := newTestEditor(t)
	e.SetForeground("p", config.Point, nil, nil)
	e.Push(pt(1, 1))
	e.Push(pt(2, 2))
	assert.Equal(t, []geometry.Point2D{pt(2, 2)}, seqs["p"])
}

func TestFixedEndpointsSurviveEdits(t *testing.T) {
	e, seqs := newTestEditor(t)
	head, tail := pt(0, 0), pt(9, 9)
	seqs["c"] = []geometry.Point2D{head, pt(4, 4), tail}
	e.SetForeground("c", config.Contour, &head, &tail)

	e.Push(pt(5, 5))
	assert.Equal(t, []geometry.Point2D{head, pt(4, 4), pt(5, 5), tail}, seqs["c"])

	e.ToggleCursor()
	e.Push(pt(3, 3))
	assert.Equal(t, []geometry.Point2D{head, pt(3, 3), pt(4, 4), pt(5, 5), tail}, seqs["c"])

	e.Pop()
	assert.Equal(t, []geometry.Point2D{head, pt(4, 4), pt(5, 5), tail}, seqs["c"])
}

func TestPopKeepsLastFreePointBetweenFixed(t *testing.T) {
	e, seqs := newTestEditor(t)
	head := pt(0, 0)
	seqs["c"] = []geometry.Point2D{head, pt(4, 4)}
	e.SetForeground("c", config.Contour, &head, nil)

	e.Pop()
	assert.Equal(t, []geometry.Point2D{head, pt(4, 4)}, seqs["c"])
}

func TestPopDiscardsCorruptStoredPath(t *testing.T) {
	e, seqs := newTestEditor(t)
	head := pt(0, 0)
	// Only the fixed endpoint was stored; no free points exist.
	seqs["c"] = []geometry.Point2D{head}
	e.SetForeground("c", config.Contour, &head, nil)

	e.Pop()
	_, present := seqs["c"]
	assert.False(t, present)
}

func TestPushStartsFromFixedEndpointsAlone(t *testing.T) {
	e, seqs := newTestEditor(t)
	head, tail := pt(0, 0), pt(9, 9)
	e.SetForeground("c", config.Contour, &head, &tail)

	e.Push(pt(5, 5))
	assert.Equal(t, []geometry.Point2D{head, pt(5, 5), tail}, seqs["c"])
}

func TestClearForegroundDisablesEditing(t *testing.T) {
	e, seqs := newTestEditor(t)
	head := pt(0, 0)
	seqs["c"] = []geometry.Point2D{head, pt(4, 4), pt(5, 5)}
	// The path still carries its reserved head point when resolution fails,
	// so an unbound editor must not touch it.
	e.ClearForeground()

	e.ToggleCursor()
	e.Pop()
	assert.Equal(t, []geometry.Point2D{head, pt(4, 4), pt(5, 5)}, seqs["c"])

	e.Push(pt(7, 7))
	assert.Equal(t, []geometry.Point2D{head, pt(4, 4), pt(5, 5)}, seqs["c"])
}

func TestPushDoesNotWriteThroughStoredSlice(t *testing.T) {
	e, seqs := newTestEditor(t)
	head, tail := pt(0, 0), pt(9, 9)
	stored := []geometry.Point2D{head, pt(4, 4), tail}
	seqs["c"] = stored
	e.SetForeground("c", config.Contour, &head, &tail)

	// The panel keeps a reference to the previous slice until Set lands;
	// appending at the cursor must not overwrite its tail slot.
	e.Push(pt(5, 5))
	assert.Equal(t, tail, stored[2])
	assert.Equal(t, []geometry.Point2D{head, pt(4, 4), pt(5, 5), tail}, seqs["c"])
}

func TestOnChangeFires(t *testing.T) {
	e, _ := newTestEditor(t)
	var changed []string
	e.OnChange = func(name string) { changed = append(changed, name) }
	e.Push(pt(1, 1))
	e.Pop()
	assert.Equal(t, []string{"c", "c"}, changed)
}

func TestCursorToggle(t *testing.T) {
	e, _ := newTestEditor(t)
	assert.Equal(t, Tail, e.Cursor)
	e.ToggleCursor()
	assert.Equal(t, Head, e.Cursor)
	e.ToggleCursor()
	assert.Equal(t, Tail, e.Cursor)
	assert.Equal(t, "tail", Tail.String())
	assert.Equal(t, "head", Head.String())
}
