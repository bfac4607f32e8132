package vault

import "fmt"

// Change is a proposed parameter value: either Unchanged or SetTo(v).
//
// The zero value is Unchanged, so a Proposal only needs to name the fields
// it touches.
type Change[T any] struct {
	value T
	set   bool
}

// Unchanged returns a Change that leaves the parameter alone.
func Unchanged[T any]() Change[T] {
	return Change[T]{}
}

// SetTo returns a Change that replaces the parameter with v.
func SetTo[T any](v T) Change[T] {
	return Change[T]{value: v, set: true}
}

// IsSet reports whether the change carries a value.
func (c Change[T]) IsSet() bool {
	return c.set
}

// Get returns the value and whether one is set.
func (c Change[T]) Get() (T, bool) {
	return c.value, c.set
}

// Or returns the carried value, or current when unchanged.
func (c Change[T]) Or(current T) T {
	if c.set {
		return c.value
	}
	return current
}

func (c Change[T]) String() string {
	if !c.set {
		return "unchanged"
	}
	return fmt.Sprintf("set(%v)", c.value)
}
