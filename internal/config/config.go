// Package config loads the device configuration. Files ending in .toml are
// decoded as TOML; anything else is read as INI with one section per
// component.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mncam/surface/pkg/input"
)

// DefaultPath is where the device keeps its configuration.
const DefaultPath = "/boot/mncam.ini"

// dsiStatus reports whether the built-in panel is plugged in.
var dsiStatus = "/sys/class/drm/card1-DSI-1/status"

// Resolution is a WxH pair, written as "1920x1080".
type Resolution struct {
	Width  int
	Height int
}

func (r Resolution) String() string { return fmt.Sprintf("%dx%d", r.Width, r.Height) }

func (r Resolution) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *Resolution) UnmarshalText(b []byte) error {
	w, h, ok := strings.Cut(strings.TrimSpace(string(b)), "x")
	if !ok {
		return fmt.Errorf("config: resolution %q is not WxH", b)
	}
	var err error
	if r.Width, err = strconv.Atoi(w); err != nil {
		return fmt.Errorf("config: resolution %q: %w", b, err)
	}
	if r.Height, err = strconv.Atoi(h); err != nil {
		return fmt.Errorf("config: resolution %q: %w", b, err)
	}
	return nil
}

// Monitor is the on-camera screen with the touch panel.
type Monitor struct {
	Output            string     `toml:"output"`
	Mode              Resolution `toml:"mode"`
	TouchscreenRotate int        `toml:"touchscreen-rotate"`
	TouchscreenFlipX  bool       `toml:"touchscreen-flip-x"`
	TouchscreenFlipY  bool       `toml:"touchscreen-flip-y"`
	TouchscreenRes    Resolution `toml:"touchscreen-res"`
	Layers            int        `toml:"layers"`
	ExposureHelperMin int        `toml:"exposure-helper-min"`
	ExposureHelperMax int        `toml:"exposure-helper-max"`
}

// Output is the external video output.
type Output struct {
	Output    string     `toml:"output"`
	Mode      Resolution `toml:"mode"`
	Framerate int        `toml:"framerate"`
	Enabled   bool       `toml:"enabled"`
}

// Encoder is the hardware video encoder.
type Encoder struct {
	Bitrate string `toml:"bitrate"`
	Enabled bool   `toml:"enabled"`
}

// BitrateBits parses Bitrate with decimal (k, M, G) or binary (Ki, Mi, Gi)
// suffixes.
func (e Encoder) BitrateBits() (int64, error) {
	s := strings.TrimSpace(e.Bitrate)
	s = strings.TrimSuffix(strings.TrimSuffix(s, "B"), "b")
	mult := int64(1)
	base := int64(1000)
	if strings.HasSuffix(s, "i") {
		base = 1024
		s = strings.TrimSuffix(s, "i")
	}
	if s != "" {
		switch s[len(s)-1] {
		case 'k', 'K':
			mult = base
		case 'm', 'M':
			mult = base * base
		case 'g', 'G':
			mult = base * base * base
		}
		if mult > 1 {
			s = s[:len(s)-1]
		}
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("config: bitrate %q: not a size", e.Bitrate)
	}
	return int64(v * float64(mult)), nil
}

// Sensor is the camera sensor.
type Sensor struct {
	Framerate int `toml:"framerate"`
}

// Config is the whole device configuration.
type Config struct {
	Sensor  Sensor  `toml:"sensor"`
	Output  Output  `toml:"output"`
	Monitor Monitor `toml:"monitor"`
	Encoder Encoder `toml:"encoder"`
}

// Default returns the built-in configuration. The monitor defaults to the
// DSI panel when one is connected.
func Default() *Config {
	c := &Config{
		Sensor: Sensor{Framerate: 30},
		Output: Output{
			Output:    "HDMI-A-1",
			Mode:      Resolution{1920, 1080},
			Framerate: 60,
			Enabled:   true,
		},
		Monitor: Monitor{
			Output:            "HDMI-A-2",
			Mode:              Resolution{1280, 720},
			TouchscreenRes:    Resolution{1280, 720},
			Layers:            2,
			ExposureHelperMin: 61,
			ExposureHelperMax: 70,
		},
		Encoder: Encoder{Bitrate: "10M", Enabled: true},
	}
	if HasDSI(dsiStatus) {
		c.Monitor.Output = "DSI-1"
		c.Monitor.Mode = Resolution{720, 480}
		c.Monitor.TouchscreenRes = Resolution{720, 480}
	}
	return c
}

// HasDSI reports whether the connector status file says connected.
func HasDSI(status string) bool {
	b, err := os.ReadFile(status)
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(b)) == "connected"
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	c := Default()
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		c.normalize()
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	defer f.Close()

	if isTOML(path) {
		err = decodeTOML(f, c)
	} else {
		err = decodeINI(f, path, c)
	}
	if err != nil {
		return nil, err
	}
	c.normalize()
	return c, c.Validate()
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// normalize applies limits between sections.
func (c *Config) normalize() {
	if c.Encoder.Enabled && c.Sensor.Framerate > 30 {
		// The hardware encoder cannot keep up with more than 30 fps.
		c.Sensor.Framerate = 30
	}
}

// Validate checks values the rest of the system relies on.
func (c *Config) Validate() error {
	if err := c.Transform().Validate(); err != nil {
		return fmt.Errorf("config: monitor: %w", err)
	}
	if c.Monitor.Layers < 0 || c.Monitor.Layers > 4 {
		return fmt.Errorf("config: monitor: layers %d out of range 0-4", c.Monitor.Layers)
	}
	if c.Sensor.Framerate <= 0 {
		return fmt.Errorf("config: sensor: framerate %d", c.Sensor.Framerate)
	}
	if _, err := c.Encoder.BitrateBits(); err != nil {
		return err
	}
	return nil
}

// Save writes the configuration in the format its extension selects.
func (c *Config) Save(path string) error {
	var (
		b   []byte
		err error
	)
	if isTOML(path) {
		b, err = encodeTOML(c)
	} else {
		b = encodeINI(c)
	}
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Transform returns the touch transform for the monitor.
func (c *Config) Transform() input.Transform {
	return input.Transform{
		Rotate:       c.Monitor.TouchscreenRotate,
		FlipX:        c.Monitor.TouchscreenFlipX,
		FlipY:        c.Monitor.TouchscreenFlipY,
		Width:        c.Monitor.TouchscreenRes.Width,
		Height:       c.Monitor.TouchscreenRes.Height,
		ScreenWidth:  c.Monitor.Mode.Width,
		ScreenHeight: c.Monitor.Mode.Height,
	}
}
