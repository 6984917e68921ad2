package camera

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// SimCamera is a deterministic camera for tests and the desktop preview. It
// records control calls and hands out frames from a fixed pool.
type SimCamera struct {
	Config StreamConfig
	Ranges Ranges

	mu           sync.Mutex
	autoExposure bool
	autoWB       bool
	tally        byte
	gainDB       int
	shutter      int
	fps          int
	ev           float64
	calls        []string
	seq          uint64
	pool         []*SimFrame
	start        time.Time
}

// NewSimCamera returns a camera streaming cfg. Frame file descriptors are
// fake and start at 1000.
func NewSimCamera(cfg StreamConfig) *SimCamera {
	if cfg.BufferCount <= 0 {
		cfg.BufferCount = 4
	}
	c := &SimCamera{
		Config: cfg,
		Ranges: Ranges{
			ControlAnalogueGain:  {Min: 1, Max: 16, Default: 1},
			ControlExposureTime:  {Min: 125, Max: 33333, Default: 20000},
			ControlExposureValue: {Min: -8, Max: 8, Default: 0},
			ControlFrameRate:     {Min: 1, Max: 60, Default: 30},
		},
		autoExposure: true,
		shutter:      50,
		fps:          30,
		start:        time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	for i := 0; i < cfg.BufferCount; i++ {
		c.pool = append(c.pool, &SimFrame{id: uint64(i), fd: 1000 + i})
	}
	return c
}

func (c *SimCamera) Range(name string) (ControlRange, bool) {
	return c.Ranges.Range(name)
}

func (c *SimCamera) record(format string, args ...any) {
	c.calls = append(c.calls, fmt.Sprintf(format, args...))
}

func (c *SimCamera) EnableAutoExposure(enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.autoExposure = enabled
	c.record("ae=%t", enabled)
	return nil
}

func (c *SimCamera) SetGain(db int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gainDB = db
	c.record("gain=%d", db)
	return nil
}

func (c *SimCamera) SetShutter(denominator int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shutter = denominator
	c.record("shutter=1/%d", denominator)
	return nil
}

func (c *SimCamera) SetFPS(fps int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fps = fps
	c.record("fps=%d", fps)
	return nil
}

func (c *SimCamera) SetExposureValue(ev float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ev = ev
	c.record("ev=%g", ev)
	return nil
}

func (c *SimCamera) EnableAutoWhiteBalance(enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.autoWB = enabled
	c.record("awb=%t", enabled)
	return nil
}

// OneShotWhiteBalance turns the white balance loop off after one
// measurement, as the sensor process does.
func (c *SimCamera) OneShotWhiteBalance() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.autoWB = false
	c.record("wb=once")
	return nil
}

func (c *SimCamera) SetTally(state byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tally = state
	c.record("tally=%d", state)
	return nil
}

// Tally reports the last tally state.
func (c *SimCamera) Tally() byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tally
}

// AutoExposure reports the last auto exposure setting.
func (c *SimCamera) AutoExposure() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.autoExposure
}

// Calls returns every control call in order.
func (c *SimCamera) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.calls))
	copy(out, c.calls)
	return out
}

// Capture returns the next pool frame and metadata describing it. The frame
// carries one reference that the receiver must release.
func (c *SimCamera) Capture() (*SimFrame, Metadata) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f := c.pool[c.seq%uint64(len(c.pool))]
	f.refs.Add(1)
	f.seq = c.seq
	c.seq++

	md := Metadata{
		ExposureTime:      1e6 / float64(c.shutter),
		AnalogueGain:      math.Pow(10, float64(c.gainDB)/10),
		SensorTimestamp:   c.start.Add(time.Duration(c.seq) * time.Second / time.Duration(c.fps)).UnixNano(),
		ColourTemperature: 5600,
		FocusFoM:          int(c.seq % 1000),
	}
	return f, md
}

// Image renders a test pattern for the frame behind a fake fd, or nil if
// the fd is not one of the camera's.
func (c *SimCamera) Image(fd int) image.Image {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, f := range c.pool {
		if f.fd == fd {
			return pattern(c.Config.Width, c.Config.Height, f.seq)
		}
	}
	return nil
}

// pattern draws vertical colour bars with a moving marker.
func pattern(w, h int, seq uint64) image.Image {
	if w <= 0 || h <= 0 {
		return nil
	}
	bars := []color.RGBA{
		{192, 192, 192, 255}, {192, 192, 0, 255}, {0, 192, 192, 255}, {0, 192, 0, 255},
		{192, 0, 192, 255}, {192, 0, 0, 255}, {0, 0, 192, 255},
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	marker := int(seq*8) % w
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := bars[x*len(bars)/w]
			if x >= marker && x < marker+8 {
				c = color.RGBA{255, 255, 255, 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// SimFrame is a pool buffer of a SimCamera.
type SimFrame struct {
	id   uint64
	fd   int
	seq  uint64
	refs atomic.Int64
}

func (f *SimFrame) BufferID() uint64 { return f.id }

// PlaneFD returns the same fd for every plane, as a single dmabuf holds all
// planes.
func (f *SimFrame) PlaneFD(int) int { return f.fd }

func (f *SimFrame) Acquire() { f.refs.Add(1) }

func (f *SimFrame) Release() {
	if f.refs.Add(-1) < 0 {
		panic(fmt.Sprintf("camera: frame %d released more often than acquired", f.id))
	}
}

// Refs reports outstanding references.
func (f *SimFrame) Refs() int64 { return f.refs.Load() }
