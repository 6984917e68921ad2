// Package input turns raw touchscreen events into tap and double-tap
// gestures.
//
// Each input device is read by its own goroutine. Readers only ever push
// into a Queue; the UI tick drains the queue once per cycle, so widget state
// is never touched from a reader goroutine.
package input

import (
	"fmt"
	"image"
	"time"
)

// Event is a classified gesture.
type Event interface {
	Position() image.Point
	Source() string
}

// TapEvent is a single press.
type TapEvent struct {
	X, Y   int
	Device string
	Time   time.Time
}

func (e TapEvent) Position() image.Point { return image.Pt(e.X, e.Y) }
func (e TapEvent) Source() string        { return e.Device }

func (e TapEvent) String() string {
	return fmt.Sprintf("tap(%d,%d)@%s", e.X, e.Y, e.Device)
}

// DoubleTapEvent is a second press on the same device within
// DoubleTapWindow of the previous one.
type DoubleTapEvent struct {
	X, Y   int
	Device string
	Time   time.Time
}

func (e DoubleTapEvent) Position() image.Point { return image.Pt(e.X, e.Y) }
func (e DoubleTapEvent) Source() string        { return e.Device }

func (e DoubleTapEvent) String() string {
	return fmt.Sprintf("double-tap(%d,%d)@%s", e.X, e.Y, e.Device)
}
