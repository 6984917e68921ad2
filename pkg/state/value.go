// Package state holds change-tracked values shared between the control
// logic and the widgets that display them.
//
// A Value keeps one dirty flag per observer key instead of a single shared
// flag, so two widgets bound to the same value each see every change exactly
// once no matter which of them looks first.
package state

import (
	"fmt"
	"sync/atomic"
)

// Key identifies one observer of a Value. Keys are stable for the lifetime
// of the observer and never reused within a process.
type Key uint64

var nextKey atomic.Uint64

// NewKey returns a fresh observer key.
func NewKey() Key {
	return Key(nextKey.Add(1))
}

// Tracker is the type-independent view of a Value used by widgets that only
// need to know whether something changed.
type Tracker interface {
	Changed(key Key) bool
	MarkDirty(key Key)
}

// Value is a scalar with per-observer change notification.
//
// Value is not safe for concurrent use; all access is expected to happen on
// the UI tick.
type Value[T comparable] struct {
	value T
	last  T
	set   bool
	flags map[Key]bool
}

// NewValue returns a Value holding initial.
func NewValue[T comparable](initial T) *Value[T] {
	return &Value[T]{value: initial, last: initial, set: true}
}

// Get returns the current value.
func (v *Value[T]) Get() T {
	return v.value
}

// Set stores x. Setting the value it already holds is a no-op and marks
// nothing dirty.
func (v *Value[T]) Set(x T) {
	if v.set && x == v.last {
		return
	}
	v.value = x
	v.last = x
	v.set = true
	for k := range v.flags {
		v.flags[k] = true
	}
}

// Changed reports whether the value changed since key last asked, and
// clears the flag for key. A key that has never asked before is reported as
// changed so a newly attached observer always renders once.
func (v *Value[T]) Changed(key Key) bool {
	if v.flags == nil {
		v.flags = make(map[Key]bool)
	}
	dirty, seen := v.flags[key]
	v.flags[key] = false
	if !seen {
		return true
	}
	return dirty
}

// MarkDirty forces the next Changed(key) to return true.
func (v *Value[T]) MarkDirty(key Key) {
	if v.flags == nil {
		v.flags = make(map[Key]bool)
	}
	v.flags[key] = true
}

func (v *Value[T]) String() string {
	return fmt.Sprint(v.value)
}

// AnyChanged queries every tracker for key and reports whether at least one
// was dirty. All trackers are queried so no flag is left set behind a
// short-circuit.
func AnyChanged(key Key, trackers ...Tracker) bool {
	dirty := false
	for _, t := range trackers {
		if t == nil {
			continue
		}
		if t.Changed(key) {
			dirty = true
		}
	}
	return dirty
}
