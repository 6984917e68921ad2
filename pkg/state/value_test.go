package state

import "testing"

func TestFirstQueryIsDirty(t *testing.T) {
	v := NewValue(5)
	k := NewKey()
	if !v.Changed(k) {
		t.Fatalf("first Changed() = false, want true")
	}
	if v.Changed(k) {
		t.Fatalf("second Changed() = true, want false")
	}

	// A key attached later still sees one initial notification.
	late := NewKey()
	if !v.Changed(late) {
		t.Fatalf("late key first Changed() = false, want true")
	}
}

func TestSetSameValueIsNoop(t *testing.T) {
	v := NewValue("thirds")
	k := NewKey()
	v.Changed(k)

	v.Set("thirds")
	if v.Changed(k) {
		t.Fatalf("Changed() after setting identical value = true")
	}

	v.Set("none")
	if !v.Changed(k) {
		t.Fatalf("Changed() after real change = false")
	}
	if v.Get() != "none" {
		t.Fatalf("Get() = %q, want none", v.Get())
	}
}

func TestIndependentObservers(t *testing.T) {
	v := NewValue(0.0)
	a, b := NewKey(), NewKey()
	v.Changed(a)
	v.Changed(b)

	seq := []float64{1, 1, 2, 2, 2, 3, 1}
	changes := 0
	gotA, gotB := 0, 0
	last := 0.0
	for i, x := range seq {
		if x != last {
			changes++
			last = x
		}
		v.Set(x)
		// Alternate query order to make sure it does not matter.
		if i%2 == 0 {
			if v.Changed(a) {
				gotA++
			}
			if v.Changed(b) {
				gotB++
			}
		} else {
			if v.Changed(b) {
				gotB++
			}
			if v.Changed(a) {
				gotA++
			}
		}
	}
	if gotA != changes || gotB != changes {
		t.Fatalf("notifications a=%d b=%d, want %d each", gotA, gotB, changes)
	}
}

func TestCoalescedChanges(t *testing.T) {
	v := NewValue(false)
	k := NewKey()
	v.Changed(k)

	v.Set(true)
	v.Set(false)
	v.Set(true)
	if !v.Changed(k) {
		t.Fatalf("Changed() = false after several sets")
	}
	if v.Changed(k) {
		t.Fatalf("Changed() reported the same burst twice")
	}
}

func TestMarkDirtyAndAnyChanged(t *testing.T) {
	a := NewValue(1)
	b := NewValue("x")
	k := NewKey()
	AnyChanged(k, a, b)

	if AnyChanged(k, a, b) {
		t.Fatalf("AnyChanged() = true with no changes")
	}

	a.MarkDirty(k)
	b.Set("y")
	if !AnyChanged(k, a, b) {
		t.Fatalf("AnyChanged() = false, want true")
	}
	// Both flags must have been cleared, not just the first.
	if a.Changed(k) || b.Changed(k) {
		t.Fatalf("AnyChanged() left a flag set")
	}
}

func TestString(t *testing.T) {
	if got := NewValue(42).String(); got != "42" {
		t.Fatalf("String() = %q, want 42", got)
	}
	if got := NewValue(true).String(); got != "true" {
		t.Fatalf("String() = %q, want true", got)
	}
}
