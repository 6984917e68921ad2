// Package ui is the camera control surface: the screens shown on the
// touch monitor, the control API behind them and the tick that ties input,
// camera metadata and the overlay planes together.
//
// Everything except UpdateMetadata, UpdateControls and Do must be called
// from the goroutine that runs Tick.
package ui

import (
	"context"
	"errors"
	"image"
	"log"
	"time"

	"github.com/mncam/surface/pkg/camera"
	"github.com/mncam/surface/pkg/input"
	"github.com/mncam/surface/pkg/layout"
	"github.com/mncam/surface/pkg/preview"
	"github.com/mncam/surface/pkg/state"
	"github.com/mncam/surface/pkg/widget"
)

// Layers used on the monitor output.
const (
	GuidesLayer = 0
	MainLayer   = 1
)

// DefaultInterval is the UI tick period.
const DefaultInterval = 50 * time.Millisecond

const metadataBacklog = 4

// OverlaySink receives rendered layers. The compositor implements it.
type OverlaySink interface {
	SetOverlay(img *image.NRGBA, output string, layer int) error
	SetOpacity(output string, layer int, opacity float64) error
	Commit() error
}

// Options describes where the surface is shown.
type Options struct {
	// Monitor is the touch monitor output and Size its mode.
	Monitor string
	Size    image.Point

	// Mirror, when set, is an output whose layer 0 shows the main screen
	// while the HDMI overlay is enabled.
	Mirror string

	// FPS is the initial sensor frame rate.
	FPS int

	Interval time.Duration
}

// Surface owns the tracked control state and both monitor screens.
type Surface struct {
	Shutter      *state.Value[float64] // seconds
	Gain         *state.Value[float64] // dB
	FPS          *state.Value[float64]
	EV           *state.Value[float64]
	AutoExposure *state.Value[bool]
	AutoWB       *state.Value[bool]

	Zebra       *state.Value[bool]
	FalseColor  *state.Value[bool]
	FocusAssist *state.Value[bool]
	HDMIOverlay *state.Value[bool]
	FocusZoom   *state.Value[bool]
	Guides      *state.Value[string]
	Page        *state.Value[string]

	Timecode     *state.Value[string]
	WhiteBalance *state.Value[int]
	CameraID     *state.Value[string]
	FocusFoM     *state.Value[int]

	fpsPreset *state.Value[string]

	opts  Options
	cam   camera.Controller
	info  camera.ControlInfo
	sink  OverlaySink
	queue *input.Queue

	metadata chan camera.Metadata
	controls chan camera.ControlState
	calls    chan call
	watchers []watcher
	guides   *layout.Layout
	main     *layout.Layout
	key      state.Key
	pending  [2]bool
}

// New builds the surface and its screens. queue may be nil when there is
// no touch input.
func New(opts Options, cam camera.Controller, info camera.ControlInfo, sink OverlaySink, queue *input.Queue) *Surface {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.FPS <= 0 {
		opts.FPS = 30
	}
	s := &Surface{
		Shutter:      state.NewValue(1.0 / 50),
		Gain:         state.NewValue(0.0),
		FPS:          state.NewValue(float64(opts.FPS)),
		EV:           state.NewValue(0.0),
		AutoExposure: state.NewValue(true),
		AutoWB:       state.NewValue(true),
		Zebra:        state.NewValue(false),
		FalseColor:   state.NewValue(false),
		FocusAssist:  state.NewValue(false),
		HDMIOverlay:  state.NewValue(false),
		FocusZoom:    state.NewValue(false),
		Guides:       state.NewValue(widget.GuidesThirds),
		Page:         state.NewValue(PageNone),
		Timecode:     state.NewValue("--:--:--"),
		WhiteBalance: state.NewValue(0),
		CameraID:     state.NewValue("-"),
		FocusFoM:     state.NewValue(0),
		fpsPreset:    state.NewValue(""),
		opts:         opts,
		cam:          cam,
		info:         info,
		sink:         sink,
		queue:        queue,
		metadata:     make(chan camera.Metadata, metadataBacklog),
		controls:     make(chan camera.ControlState, 1),
		calls:        make(chan call),
		key:          state.NewKey(),
	}
	s.syncPreset()
	s.guides = s.guidesScreen()
	s.main = s.mainScreen()
	return s
}

// Screens returns the guides and main layouts.
func (s *Surface) Screens() (guides, main *layout.Layout) {
	return s.guides, s.main
}

// UpdateMetadata queues camera metadata for the next tick. It never blocks
// and may be called from any goroutine; when ticks fall behind only the
// most recent reports are kept.
func (s *Surface) UpdateMetadata(md camera.Metadata) {
	offer(s.metadata, md)
}

// UpdateControls queues the camera's report of its automatic loops. Like
// UpdateMetadata it may be called from any goroutine.
func (s *Surface) UpdateControls(cs camera.ControlState) {
	offer(s.controls, cs)
}

// offer sends v, discarding the oldest queued value while ch is full.
func offer[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// latest drains ch and returns the last value received.
func latest[T any](ch chan T) (v T, ok bool) {
	for {
		select {
		case x := <-ch:
			v, ok = x, true
		default:
			return v, ok
		}
	}
}

func (s *Surface) applyUpdates() {
	if cs, ok := latest(s.controls); ok {
		s.AutoExposure.Set(cs.AutoExposure)
		s.AutoWB.Set(cs.AutoWhiteBalance)
	}
	md, ok := latest(s.metadata)
	if !ok {
		return
	}
	s.Timecode.Set(md.Timecode())
	if md.ExposureTime > 0 {
		s.Shutter.Set(md.ExposureTime / 1e6)
	}
	if md.AnalogueGain > 0 {
		s.Gain.Set(float64(md.GainDB()))
	}
	s.WhiteBalance.Set(md.ColourTemperature)
	s.FocusFoM.Set(md.FocusFoM)
}

func (s *Surface) dispatch(ev input.Event) {
	switch ev := ev.(type) {
	case input.TapEvent:
		s.main.Tap(ev.Position())
	case input.DoubleTapEvent:
		if !s.main.DoubleTap(ev.Position()) {
			s.EnableFocusZoom(!s.FocusZoom.Get())
		}
	}
}

// Tick runs one UI cycle: drain input, apply camera reports, render both screens
// and hand changed rasters to the sink.
func (s *Surface) Tick() error {
	if s.queue != nil {
		for _, ev := range s.queue.Drain() {
			s.dispatch(ev)
		}
	}
	s.applyUpdates()
	s.runCalls()
	s.notify()

	var errs []error
	if s.HDMIOverlay.Changed(s.key) && s.opts.Mirror != "" {
		opacity := 0.0
		if s.HDMIOverlay.Get() {
			opacity = 1
		}
		if err := s.sink.SetOpacity(s.opts.Mirror, 0, opacity); err != nil {
			errs = append(errs, err)
		}
	}

	screens := [2]*layout.Layout{GuidesLayer: s.guides, MainLayer: s.main}
	for i, l := range screens {
		img := l.Render()
		if img == nil && !s.pending[i] {
			continue
		}
		if img == nil {
			img = l.Buffer()
		}
		if err := s.upload(img, i); err != nil {
			errs = append(errs, err)
		}
	}

	if err := s.sink.Commit(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// upload sends a raster to the monitor and, for the main screen, to the
// mirror. A sink that is not ready yet keeps the layer pending so it is
// sent again on a later tick.
func (s *Surface) upload(img *image.NRGBA, idx int) error {
	err := s.sink.SetOverlay(img, s.opts.Monitor, idx)
	if errors.Is(err, preview.ErrPreviewNotReady) {
		s.pending[idx] = true
		return nil
	}
	s.pending[idx] = false
	if err != nil {
		return err
	}
	if idx == MainLayer && s.opts.Mirror != "" {
		return s.sink.SetOverlay(img, s.opts.Mirror, 0)
	}
	return nil
}

// Run ticks until ctx is cancelled. Tick errors are logged and do not stop
// the loop.
func (s *Surface) Run(ctx context.Context) error {
	t := time.NewTicker(s.opts.Interval)
	defer t.Stop()
	for {
		if err := s.Tick(); err != nil {
			log.Printf("ui: tick: %v", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}
