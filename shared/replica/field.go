// Package replica holds versioned values that the authoritative side writes and
// observers mirror. Each accepted write bumps a revision; observers keep the
// highest revision they have seen and diff values to raise change callbacks.
package replica

// Snapshot is the wire form of a field.
type Snapshot[T comparable] struct {
	Value    T
	Revision uint64
}

// Field is a single replicated value.
type Field[T comparable] struct {
	value     T
	revision  uint64
	observers []func(old, new T)
}

// NewField returns a field holding initial at revision 0.
func NewField[T comparable](initial T) *Field[T] {
	return &Field[T]{value: initial}
}

func (f *Field[T]) Get() T { return f.value }

func (f *Field[T]) Revision() uint64 { return f.revision }

// Set writes v. Writing the current value is a no-op and returns false.
func (f *Field[T]) Set(v T) bool {
	if v == f.value {
		return false
	}
	old := f.value
	f.value = v
	f.revision++
	f.notify(old, v)
	return true
}

// Snapshot captures the value and its revision.
func (f *Field[T]) Snapshot() Snapshot[T] {
	return Snapshot[T]{Value: f.value, Revision: f.revision}
}

// Apply merges an incoming snapshot. Stale or repeated revisions are ignored.
// Observers are notified only when the value actually differs.
func (f *Field[T]) Apply(s Snapshot[T]) bool {
	if s.Revision <= f.revision {
		return false
	}
	f.revision = s.Revision
	if s.Value == f.value {
		return false
	}
	old := f.value
	f.value = s.Value
	f.notify(old, s.Value)
	return true
}

// OnChange registers fn to run after every value change, in registration order.
func (f *Field[T]) OnChange(fn func(old, new T)) {
	f.observers = append(f.observers, fn)
}

func (f *Field[T]) notify(old, new T) {
	for _, fn := range f.observers {
		fn(old, new)
	}
}
