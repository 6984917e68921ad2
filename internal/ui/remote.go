package ui

import (
	"context"

	"github.com/mncam/surface/pkg/state"
)

// Snapshot is the camera state published to remote clients.
type Snapshot struct {
	Shutter          float64 // seconds
	Gain             float64 // dB
	FPS              float64
	EV               float64
	WhiteBalance     int // kelvin
	AutoExposure     bool
	AutoWhiteBalance bool
}

type call struct {
	fn   func() error
	done chan error
}

type watcher struct {
	key state.Key
	fn  func(Snapshot)
}

// Do runs fn on the tick goroutine and returns its error. It gives up with
// ctx.Err() when ctx ends before the tick picks fn up.
func (s *Surface) Do(ctx context.Context, fn func() error) error {
	c := call{fn: fn, done: make(chan error, 1)}
	select {
	case s.calls <- c:
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-c.done
}

// Watch calls fn from the tick with a fresh snapshot whenever a published
// value changed, and once on the first tick after registration. fn must
// not block. Watch is called before Run or through Do.
func (s *Surface) Watch(fn func(Snapshot)) {
	s.watchers = append(s.watchers, watcher{key: state.NewKey(), fn: fn})
}

// Snapshot returns the published values.
func (s *Surface) Snapshot() Snapshot {
	return Snapshot{
		Shutter:          s.Shutter.Get(),
		Gain:             s.Gain.Get(),
		FPS:              s.FPS.Get(),
		EV:               s.EV.Get(),
		WhiteBalance:     s.WhiteBalance.Get(),
		AutoExposure:     s.AutoExposure.Get(),
		AutoWhiteBalance: s.AutoWB.Get(),
	}
}

// runCalls runs the calls that are already waiting.
func (s *Surface) runCalls() {
	for {
		select {
		case c := <-s.calls:
			c.done <- c.fn()
		default:
			return
		}
	}
}

func (s *Surface) notify() {
	for _, w := range s.watchers {
		if state.AnyChanged(w.key, s.Shutter, s.Gain, s.FPS, s.EV, s.WhiteBalance, s.AutoExposure, s.AutoWB) {
			w.fn(s.Snapshot())
		}
	}
}
