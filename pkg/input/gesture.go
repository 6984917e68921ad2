package input

import (
	"image"
	"time"
)

// DoubleTapWindow is the longest gap between two presses that still counts
// as a double tap.
const DoubleTapWindow = 500 * time.Millisecond

// Recognizer classifies presses from one device. The zero value is ready
// to use.
type Recognizer struct {
	last  time.Time
	armed bool
}

// Press classifies a press at time at. A press closer than DoubleTapWindow
// to the previous single tap yields a DoubleTapEvent and disarms, so a third
// quick press starts a new pair. Anything else is a TapEvent that restarts
// the window.
func (r *Recognizer) Press(at time.Time, p image.Point, device string) Event {
	if r.armed && at.Sub(r.last) < DoubleTapWindow {
		r.armed = false
		return DoubleTapEvent{X: p.X, Y: p.Y, Device: device, Time: at}
	}
	r.last = at
	r.armed = true
	return TapEvent{X: p.X, Y: p.Y, Device: device, Time: at}
}
