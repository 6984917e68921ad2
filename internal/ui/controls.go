package ui

import (
	"fmt"
	"log"
	"math"
	"strconv"

	"github.com/mncam/surface/pkg/camera"
	"github.com/mncam/surface/pkg/widget"
)

// Shutter slider domain in seconds.
const (
	MinShutter = 1.0 / 8000
	MaxShutter = 1.0 / 30
)

var (
	guideStyles = []string{widget.GuidesNone, widget.GuidesThirds, widget.GuidesCenter}
	fpsPresets  = []string{"24", "25", "30", "50", "60"}
)

// controlRange looks up a control, falling back to def when the camera
// does not report it.
func (s *Surface) controlRange(name string, def camera.ControlRange) camera.ControlRange {
	if s.info == nil {
		return def
	}
	if r, ok := s.info.Range(name); ok && r.Max > r.Min {
		return r
	}
	return def
}

// gainRange is the analogue gain range in dB.
func (s *Surface) gainRange() camera.ControlRange {
	r := s.controlRange(camera.ControlAnalogueGain, camera.ControlRange{Min: 1, Max: 16, Default: 1})
	db := func(v float64) float64 { return 10 * math.Log10(math.Max(v, 1)) }
	return camera.ControlRange{Min: db(r.Min), Max: db(r.Max), Default: db(r.Default)}
}

// shutterRange is the exposure time range in seconds, limited to the
// slider domain.
func (s *Surface) shutterRange() camera.ControlRange {
	r := s.controlRange(camera.ControlExposureTime, camera.ControlRange{Min: 125, Max: 33333, Default: 20000})
	return camera.ControlRange{
		Min:     math.Max(r.Min/1e6, MinShutter),
		Max:     math.Min(r.Max/1e6, MaxShutter),
		Default: r.Default / 1e6,
	}
}

func (s *Surface) fpsRange() camera.ControlRange {
	return s.controlRange(camera.ControlFrameRate, camera.ControlRange{Min: 1, Max: 60, Default: 30})
}

func (s *Surface) evRange() camera.ControlRange {
	return s.controlRange(camera.ControlExposureValue, camera.ControlRange{Min: -8, Max: 8, Default: 0})
}

// EnableZebra toggles the zebra exposure overlay.
func (s *Surface) EnableZebra(on bool) { s.Zebra.Set(on) }

// EnableFalseColor toggles the false colour exposure overlay.
func (s *Surface) EnableFalseColor(on bool) { s.FalseColor.Set(on) }

// EnableFocusAssist toggles focus peaking.
func (s *Surface) EnableFocusAssist(on bool) { s.FocusAssist.Set(on) }

// EnableHDMIOverlay shows or hides the main screen on the mirror output.
func (s *Surface) EnableHDMIOverlay(on bool) { s.HDMIOverlay.Set(on) }

// EnableFocusZoom toggles the magnified focus view.
func (s *Surface) EnableFocusZoom(on bool) { s.FocusZoom.Set(on) }

// EnableAutoExposure switches the sensor's exposure loop.
func (s *Surface) EnableAutoExposure(on bool) error {
	s.AutoExposure.Set(on)
	if err := s.cam.EnableAutoExposure(on); err != nil {
		return fmt.Errorf("ui: auto exposure: %w", err)
	}
	return nil
}

// EnableAutoWhiteBalance switches the sensor's white balance loop.
func (s *Surface) EnableAutoWhiteBalance(on bool) error {
	s.AutoWB.Set(on)
	if err := s.cam.EnableAutoWhiteBalance(on); err != nil {
		return fmt.Errorf("ui: auto white balance: %w", err)
	}
	return nil
}

// OneShotWhiteBalance measures white balance once and holds it, leaving
// the loop off.
func (s *Surface) OneShotWhiteBalance() error {
	s.AutoWB.Set(false)
	if err := s.cam.OneShotWhiteBalance(); err != nil {
		return fmt.Errorf("ui: white balance: %w", err)
	}
	return nil
}

// SetShutter sets the exposure time in seconds. The value is clamped to
// what the sensor supports and sent as the nearest 1/x denominator.
func (s *Surface) SetShutter(seconds float64) error {
	seconds = s.shutterRange().Clamp(seconds)
	s.Shutter.Set(seconds)
	if err := s.cam.SetShutter(shutterDenominator(seconds)); err != nil {
		return fmt.Errorf("ui: shutter: %w", err)
	}
	return nil
}

// SetGain sets the analogue gain in dB, rounded to whole decibels. It
// leaves auto exposure as it is.
func (s *Surface) SetGain(db float64) error {
	db = math.Round(s.gainRange().Clamp(db))
	s.Gain.Set(db)
	if err := s.cam.SetGain(int(db)); err != nil {
		return fmt.Errorf("ui: gain: %w", err)
	}
	return nil
}

// SetFPS sets the sensor frame rate.
func (s *Surface) SetFPS(fps float64) error {
	fps = math.Round(s.fpsRange().Clamp(fps))
	s.FPS.Set(fps)
	s.syncPreset()
	if err := s.cam.SetFPS(int(fps)); err != nil {
		return fmt.Errorf("ui: fps: %w", err)
	}
	return nil
}

// SetEV sets the exposure compensation in stops.
func (s *Surface) SetEV(ev float64) error {
	ev = math.Round(s.evRange().Clamp(ev)*10) / 10
	s.EV.Set(ev)
	if err := s.cam.SetExposureValue(ev); err != nil {
		return fmt.Errorf("ui: ev: %w", err)
	}
	return nil
}

// SetGuides selects the framing guides.
func (s *Surface) SetGuides(style string) error {
	for _, g := range guideStyles {
		if g == style {
			s.Guides.Set(style)
			return nil
		}
	}
	return fmt.Errorf("ui: unknown guides %q", style)
}

// ShowPage shows a detail page, or hides the current one for PageNone.
func (s *Surface) ShowPage(name string) error {
	switch name {
	case PageNone, PageShutter, PageGain, PageFPS, PageEV, PageAssist:
		s.Page.Set(name)
		return nil
	}
	return fmt.Errorf("ui: unknown page %q", name)
}

// SetCameraID sets the identifier shown in the top bar.
func (s *Surface) SetCameraID(id string) { s.CameraID.Set(id) }

func (s *Surface) cycleGuides() {
	next := guideStyles[0]
	for i, g := range guideStyles {
		if g == s.Guides.Get() {
			next = guideStyles[(i+1)%len(guideStyles)]
		}
	}
	s.Guides.Set(next)
}

func (s *Surface) togglePage(name string) {
	if s.Page.Get() == name {
		name = PageNone
	}
	s.Page.Set(name)
}

func (s *Surface) syncPreset() {
	s.fpsPreset.Set(strconv.Itoa(int(s.FPS.Get())))
}

func shutterDenominator(seconds float64) int {
	if seconds <= 0 {
		return 0
	}
	return int(math.Round(1 / seconds))
}

// logErr0 is logErr for controls without an argument.
func logErr0(fn func() error) func() {
	return func() {
		if err := fn(); err != nil {
			log.Printf("%v", err)
		}
	}
}

// logErr adapts a fallible control to a widget handler.
func logErr[T any](fn func(T) error) func(T) {
	return func(v T) {
		if err := fn(v); err != nil {
			log.Printf("%v", err)
		}
	}
}
