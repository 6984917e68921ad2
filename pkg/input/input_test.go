package input

import (
	"context"
	"errors"
	"image"
	"io"
	"sync"
	"testing"
	"time"
)

func TestRecognizerDoubleTapWindow(t *testing.T) {
	t0 := time.Unix(1000, 0)
	tests := []struct {
		name string
		gap  time.Duration
		want []string
	}{
		{"within window", 200 * time.Millisecond, []string{"tap", "double"}},
		{"outside window", 700 * time.Millisecond, []string{"tap", "tap"}},
		{"exactly window", DoubleTapWindow, []string{"tap", "tap"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r Recognizer
			got := []Event{
				r.Press(t0, image.Pt(10, 10), "ts"),
				r.Press(t0.Add(tt.gap), image.Pt(12, 10), "ts"),
			}
			for i, ev := range got {
				kind := "tap"
				if _, ok := ev.(DoubleTapEvent); ok {
					kind = "double"
				}
				if kind != tt.want[i] {
					t.Fatalf("event %d = %s, want %s", i, kind, tt.want[i])
				}
			}
		})
	}
}

func TestRecognizerDisarmsAfterDoubleTap(t *testing.T) {
	var r Recognizer
	t0 := time.Unix(0, 0)
	r.Press(t0, image.Point{}, "ts")
	if _, ok := r.Press(t0.Add(100*time.Millisecond), image.Point{}, "ts").(DoubleTapEvent); !ok {
		t.Fatalf("second press should be a double tap")
	}
	if _, ok := r.Press(t0.Add(200*time.Millisecond), image.Point{}, "ts").(TapEvent); !ok {
		t.Fatalf("third press should start a new pair")
	}
}

func TestTransformApply(t *testing.T) {
	tests := []struct {
		name string
		tr   Transform
		in   image.Point
		want image.Point
	}{
		{"identity", Transform{Width: 800, Height: 480}, image.Pt(100, 50), image.Pt(100, 50)},
		{"rotate 90", Transform{Rotate: 90, Width: 800, Height: 480}, image.Pt(0, 0), image.Pt(479, 0)},
		{"rotate 180", Transform{Rotate: 180, Width: 800, Height: 480}, image.Pt(0, 0), image.Pt(799, 479)},
		{"rotate 270", Transform{Rotate: 270, Width: 800, Height: 480}, image.Pt(0, 0), image.Pt(0, 799)},
		{"flip x", Transform{FlipX: true, Width: 800, Height: 480}, image.Pt(0, 10), image.Pt(799, 10)},
		{"flip y", Transform{FlipY: true, Width: 800, Height: 480}, image.Pt(5, 0), image.Pt(5, 479)},
		{"scale", Transform{Width: 4096, Height: 4096, ScreenWidth: 1024, ScreenHeight: 600}, image.Pt(2048, 2048), image.Pt(512, 300)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.tr.Apply(tt.in.X, tt.in.Y); got != tt.want {
				t.Fatalf("Apply(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestTransformValidate(t *testing.T) {
	if err := (Transform{Rotate: 45}).Validate(); err == nil {
		t.Fatalf("Validate(45) = nil, want error")
	}
	if err := (Transform{Rotate: 270}).Validate(); err != nil {
		t.Fatalf("Validate(270) = %v", err)
	}
}

func TestQueueDropsWhenFull(t *testing.T) {
	q := NewQueue(2)
	for i := 0; i < 3; i++ {
		q.Push(TapEvent{X: i})
	}
	if q.Dropped() != 1 {
		t.Fatalf("Dropped = %d, want 1", q.Dropped())
	}
	got := q.Drain()
	if len(got) != 2 {
		t.Fatalf("Drain len = %d, want 2", len(got))
	}
	if got[0].Position().X != 0 || got[1].Position().X != 1 {
		t.Fatalf("Drain order = %v", got)
	}
	if len(q.Drain()) != 0 {
		t.Fatalf("second Drain should be empty")
	}
}

// fakeSource replays a fixed list of events then blocks until closed.
type fakeSource struct {
	mu     sync.Mutex
	events []RawEvent
	err    error
	closed chan struct{}
	once   sync.Once
}

func newFakeSource(err error, events ...RawEvent) *fakeSource {
	return &fakeSource{events: events, err: err, closed: make(chan struct{})}
}

func (s *fakeSource) ReadEvent() (RawEvent, error) {
	s.mu.Lock()
	if len(s.events) > 0 {
		ev := s.events[0]
		s.events = s.events[1:]
		s.mu.Unlock()
		return ev, nil
	}
	err := s.err
	s.mu.Unlock()
	if err != nil {
		return RawEvent{}, err
	}
	<-s.closed
	return RawEvent{}, errors.New("closed")
}

func (s *fakeSource) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

func touch(at time.Time, x, y int32) []RawEvent {
	return []RawEvent{
		{Time: at, Type: EvAbs, Code: AbsX, Value: x},
		{Time: at, Type: EvAbs, Code: AbsY, Value: y},
		{Time: at, Type: EvKey, Code: BtnTouch, Value: 1},
		{Time: at, Type: EvSyn},
		{Time: at.Add(50 * time.Millisecond), Type: EvKey, Code: BtnTouch, Value: 0},
	}
}

func TestReaderClassifiesPresses(t *testing.T) {
	t0 := time.Unix(50, 0)
	var evs []RawEvent
	evs = append(evs, touch(t0, 100, 200)...)
	evs = append(evs, touch(t0.Add(200*time.Millisecond), 102, 201)...)
	evs = append(evs, touch(t0.Add(2*time.Second), 300, 300)...)

	q := NewQueue(8)
	r := NewReader("touch0", newFakeSource(io.EOF, evs...), Transform{Width: 800, Height: 480}, q)
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run = %v", err)
	}

	got := q.Drain()
	if len(got) != 3 {
		t.Fatalf("got %d gestures, want 3: %v", len(got), got)
	}
	if _, ok := got[0].(TapEvent); !ok {
		t.Fatalf("gesture 0 = %v, want tap", got[0])
	}
	if dt, ok := got[1].(DoubleTapEvent); !ok || dt.X != 102 || dt.Y != 201 {
		t.Fatalf("gesture 1 = %v, want double-tap(102,201)", got[1])
	}
	if tap, ok := got[2].(TapEvent); !ok || tap.Source() != "touch0" {
		t.Fatalf("gesture 2 = %v, want tap from touch0", got[2])
	}
}

func TestReaderStopsOnCancel(t *testing.T) {
	src := newFakeSource(nil)
	q := NewQueue(1)
	r := NewReader("touch0", src, Transform{}, q)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("reader did not stop after cancel")
	}
}

func TestPipelineSkipsBrokenDevices(t *testing.T) {
	q := NewQueue(8)
	p := NewPipeline(q, Transform{Width: 100, Height: 100})
	p.Open = func(path string) (Source, error) {
		if path == "bad" {
			return nil, errors.New("no such device")
		}
		return newFakeSource(io.EOF, touch(time.Unix(1, 0), 5, 5)...), nil
	}
	if err := p.Start(context.Background(), []string{"bad", "a", "b"}); err != nil {
		t.Fatalf("Start = %v", err)
	}
	p.Wait()

	got := q.Drain()
	if len(got) != 2 {
		t.Fatalf("got %d gestures, want one per device", len(got))
	}
	for _, ev := range got {
		if _, ok := ev.(TapEvent); !ok {
			t.Fatalf("separate devices must not pair into a double tap: %v", ev)
		}
	}
}

func TestPipelineFailsWithNoDevices(t *testing.T) {
	p := NewPipeline(NewQueue(1), Transform{})
	p.Open = func(string) (Source, error) { return nil, errors.New("nope") }
	if err := p.Start(context.Background(), []string{"x"}); err == nil {
		t.Fatalf("Start = nil, want error")
	}
}
