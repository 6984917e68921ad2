package input

import (
	"context"
	"errors"
	"image"
	"io"
	"log"
	"time"
)

// Linux input event types and codes used by the reader.
const (
	EvSyn = 0x00
	EvKey = 0x01
	EvAbs = 0x03

	AbsX           = 0x00
	AbsY           = 0x01
	AbsMTPositionX = 0x35
	AbsMTPositionY = 0x36

	BtnTouch = 0x14a
)

// RawEvent is one record from an input device.
type RawEvent struct {
	Time  time.Time
	Type  uint16
	Code  uint16
	Value int32
}

// Source produces raw events. ReadEvent blocks; Close must unblock it.
type Source interface {
	ReadEvent() (RawEvent, error)
	Close() error
}

// Reader turns one device's raw events into gestures.
type Reader struct {
	Name      string
	Transform Transform

	src   Source
	queue *Queue
	rec   Recognizer
	x, y  int
}

// NewReader returns a reader for src that pushes gestures into q.
func NewReader(name string, src Source, t Transform, q *Queue) *Reader {
	return &Reader{Name: name, Transform: t, src: src, queue: q}
}

// Run reads until the source fails or ctx is cancelled. A device that goes
// away ends the loop quietly; Run then returns nil.
func (r *Reader) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { r.src.Close() })
	defer stop()
	defer r.src.Close()

	for {
		ev, err := r.src.ReadEvent()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			log.Printf("input: %s: %v", r.Name, err)
			return nil
		}
		r.Handle(ev)
	}
}

// Handle processes one raw event.
func (r *Reader) Handle(ev RawEvent) {
	switch ev.Type {
	case EvAbs:
		switch ev.Code {
		case AbsX, AbsMTPositionX:
			r.x = int(ev.Value)
		case AbsY, AbsMTPositionY:
			r.y = int(ev.Value)
		}
	case EvKey:
		if ev.Code != BtnTouch || ev.Value != 1 {
			// Release (and any other key) is consumed and ignored.
			return
		}
		at := ev.Time
		if at.IsZero() {
			at = time.Now()
		}
		p := r.Transform.Apply(r.x, r.y)
		r.queue.Push(r.rec.Press(at, p, r.Name))
	}
}

// Position returns the last buffered raw coordinate.
func (r *Reader) Position() image.Point {
	return image.Pt(r.x, r.y)
}
