// Package lazy provides a map whose values may be deferred computations.
//
// Each slot is either Unevaluated (holding a thunk) or Evaluated (holding a
// value). Reading a slot evaluates its thunk once and caches the result; a
// failed evaluation leaves the slot unevaluated so it is retried on the next
// read. The save path uses IsLazy to skip slots that were never touched.
package lazy

// Map is a string-keyed map with optionally deferred values.
type Map[V any] struct {
	slots map[string]*slot[V]
}

type slot[V any] struct {
	thunk func() (V, error)
	value V
	done  bool
}

// NewMap creates an empty lazy map.
func NewMap[V any]() *Map[V] {
	return &Map[V]{slots: make(map[string]*slot[V])}
}

// Set stores an already-evaluated value.
func (m *Map[V]) Set(key string, value V) {
	m.slots[key] = &slot[V]{value: value, done: true}
}

// SetFunc stores a deferred computation for the key. The thunk runs at most
// once on the first successful Get.
func (m *Map[V]) SetFunc(key string, thunk func() (V, error)) {
	m.slots[key] = &slot[V]{thunk: thunk}
}

// Get returns the value for the key, evaluating and caching the thunk if the
// slot is still lazy. The second result is false if the key is absent.
func (m *Map[V]) Get(key string) (V, bool, error) {
	s, ok := m.slots[key]
	if !ok {
		var zero V
		return zero, false, nil
	}
	if !s.done {
		v, err := s.thunk()
		if err != nil {
			var zero V
			return zero, true, err
		}
		s.value = v
		s.thunk = nil
		s.done = true
	}
	return s.value, true, nil
}

// IsLazy reports whether the key holds a not-yet-evaluated thunk.
// Absent keys are not lazy.
func (m *Map[V]) IsLazy(key string) bool {
	s, ok := m.slots[key]
	return ok && !s.done
}

// Has reports whether the key is present, evaluated or not.
func (m *Map[V]) Has(key string) bool {
	_, ok := m.slots[key]
	return ok
}

// Delete removes the key.
func (m *Map[V]) Delete(key string) {
	delete(m.slots, key)
}

// Keys returns all keys in unspecified order.
func (m *Map[V]) Keys() []string {
	keys := make([]string, 0, len(m.slots))
	for k := range m.slots {
		keys = append(keys, k)
	}
	return keys
}

// Len returns the number of slots, evaluated or not.
func (m *Map[V]) Len() int {
	return len(m.slots)
}
