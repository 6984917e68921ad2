// Package camera is the boundary to the camera subsystem: per-frame
// metadata, control ranges, video frame handles and the control channel to
// the sensor process.
package camera

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrClosed is returned by a client after Close.
var ErrClosed = errors.New("camera: closed")

// Control names understood by ControlInfo.
const (
	ControlAnalogueGain  = "AnalogueGain"
	ControlExposureTime  = "ExposureTime"
	ControlExposureValue = "ExposureValue"
	ControlFrameRate     = "FrameRate"
)

// Metadata is the per-frame report from the sensor pipeline.
type Metadata struct {
	// ExposureTime is in microseconds.
	ExposureTime float64
	// AnalogueGain is linear.
	AnalogueGain float64
	// SensorTimestamp is in nanoseconds since the epoch.
	SensorTimestamp   int64
	ColourTemperature int
	FocusFoM          int
}

// ShutterDenominator returns x for a 1/x second exposure.
func (m Metadata) ShutterDenominator() int {
	if m.ExposureTime <= 0 {
		return 0
	}
	return int(1e6 / m.ExposureTime)
}

// GainDB returns the analogue gain in whole decibels.
func (m Metadata) GainDB() int {
	if m.AnalogueGain <= 0 {
		return 0
	}
	return int(math.Round(10 * math.Log10(m.AnalogueGain)))
}

// Timecode formats the sensor timestamp as UTC wall time.
func (m Metadata) Timecode() string {
	return time.Unix(0, m.SensorTimestamp).UTC().Format("15:04:05")
}

// ControlRange is the (min, max, default) triple of a control.
type ControlRange struct {
	Min     float64
	Max     float64
	Default float64
}

// Clamp limits v to the range.
func (r ControlRange) Clamp(v float64) float64 {
	return math.Max(r.Min, math.Min(r.Max, v))
}

func (r ControlRange) String() string {
	return fmt.Sprintf("[%g, %g] default %g", r.Min, r.Max, r.Default)
}

// ControlInfo reports the ranges of named controls.
type ControlInfo interface {
	Range(name string) (ControlRange, bool)
}

// Ranges is a ControlInfo backed by a map.
type Ranges map[string]ControlRange

func (r Ranges) Range(name string) (ControlRange, bool) {
	c, ok := r[name]
	return c, ok
}

// StreamConfig is the negotiated video stream.
type StreamConfig struct {
	// Format is the pipeline's pixel format name, e.g. "YUV420".
	Format      string
	Width       int
	Height      int
	Stride      int
	BufferCount int
}

func (c StreamConfig) String() string {
	return fmt.Sprintf("%s %dx%d stride %d, %d buffers", c.Format, c.Width, c.Height, c.Stride, c.BufferCount)
}

// Frame is a video buffer on loan from the camera's pool. Acquire takes an
// extra reference; every Acquire and the original delivery are balanced by
// Release.
type Frame interface {
	BufferID() uint64
	PlaneFD(plane int) int
	Acquire()
	Release()
}

// Controller forwards control changes to the sensor.
type Controller interface {
	EnableAutoExposure(enabled bool) error
	// SetGain sets the analogue gain in decibels.
	SetGain(db int) error
	// SetShutter sets a 1/denominator second exposure.
	SetShutter(denominator int) error
	SetFPS(fps int) error
	SetExposureValue(ev float64) error
	EnableAutoWhiteBalance(enabled bool) error
	// OneShotWhiteBalance measures white balance once and holds it.
	OneShotWhiteBalance() error
}

// Tally states understood by the sensor process.
const (
	TallyOff     byte = 0
	TallyProgram byte = 1
	TallyPreview byte = 2
)

var tallyNames = []string{TallyOff: "off", TallyProgram: "program", TallyPreview: "preview"}

// TallyName returns the name of a tally state.
func TallyName(state byte) string {
	if int(state) < len(tallyNames) {
		return tallyNames[state]
	}
	return fmt.Sprintf("tally(%d)", state)
}

// ParseTally returns the tally state called name.
func ParseTally(name string) (byte, error) {
	for i, n := range tallyNames {
		if n == name {
			return byte(i), nil
		}
	}
	return 0, fmt.Errorf("camera: unknown tally state %q", name)
}

// Tally drives the camera's tally light.
type Tally interface {
	SetTally(state byte) error
}
