// Package kms is a small client for the kernel mode setting API: connector,
// CRTC and plane reservation, dumb buffers, dmabuf import and atomic commits.
//
// Card talks to a real /dev/dri/cardN device. Sim implements the same Device
// interface in memory and is used by tests and the desktop preview.
package kms

import (
	"errors"
	"fmt"
	"image"
)

var (
	// ErrNoPlane is returned when no free plane matches a reservation.
	ErrNoPlane = errors.New("kms: no free plane")

	// ErrNoConnector is returned when the named connector is missing,
	// disconnected or already reserved.
	ErrNoConnector = errors.New("kms: no usable connector")

	// ErrNoCRTC is returned when no free CRTC can drive a connector.
	ErrNoCRTC = errors.New("kms: no free crtc")
)

// ObjectID identifies a mode object.
type ObjectID uint32

// Format is a DRM fourcc pixel format code.
type Format uint32

func fourcc(a, b, c, d byte) Format {
	return Format(uint32(a) | uint32(b)<<8 | uint32(c)<<16 | uint32(d)<<24)
}

// Pixel formats used by this package. ABGR8888 has the byte order R, G, B,
// A in memory, which is what image.NRGBA stores.
var (
	FormatXBGR8888 = fourcc('X', 'B', '2', '4')
	FormatABGR8888 = fourcc('A', 'B', '2', '4')
	FormatRGB888   = fourcc('R', 'G', '2', '4')
	FormatBGR888   = fourcc('B', 'G', '2', '4')
	FormatXRGB8888 = fourcc('X', 'R', '2', '4')
	FormatYUV420   = fourcc('Y', 'U', '1', '2')
	FormatYVU420   = fourcc('Y', 'V', '1', '2')
)

func (f Format) String() string {
	b := []byte{byte(f), byte(f >> 8), byte(f >> 16), byte(f >> 24)}
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			return fmt.Sprintf("0x%08x", uint32(f))
		}
	}
	return string(b)
}

// BytesPerPixel reports the size of one pixel of the first plane.
func (f Format) BytesPerPixel() int {
	switch f {
	case FormatXBGR8888, FormatABGR8888, FormatXRGB8888:
		return 4
	case FormatRGB888, FormatBGR888:
		return 3
	case FormatYUV420, FormatYVU420:
		return 1
	}
	return 0
}

// PlaneType is the value of a plane's "type" property.
type PlaneType uint64

const (
	PlaneOverlay PlaneType = 0
	PlanePrimary PlaneType = 1
	PlaneCursor  PlaneType = 2
)

func (t PlaneType) String() string {
	switch t {
	case PlaneOverlay:
		return "overlay"
	case PlanePrimary:
		return "primary"
	case PlaneCursor:
		return "cursor"
	}
	return fmt.Sprintf("plane-type(%d)", uint64(t))
}

// Mode is a display timing. The fields mirror struct drm_mode_modeinfo.
type Mode struct {
	Clock                                         uint32
	HDisplay, HSyncStart, HSyncEnd, HTotal, HSkew uint16
	VDisplay, VSyncStart, VSyncEnd, VTotal, VScan uint16
	VRefresh                                      uint32
	Flags                                         uint32
	Type                                          uint32
	Name                                          string
}

const modeTypePreferred = 1 << 3

// Size returns the active area of the mode.
func (m Mode) Size() image.Point {
	return image.Pt(int(m.HDisplay), int(m.VDisplay))
}

// Preferred reports whether the connector advertises this mode as its
// native one.
func (m Mode) Preferred() bool { return m.Type&modeTypePreferred != 0 }

func (m Mode) String() string {
	return fmt.Sprintf("%dx%d@%d", m.HDisplay, m.VDisplay, m.VRefresh)
}

// Connector is a physical or virtual output.
type Connector struct {
	ID        ObjectID
	Name      string
	Connected bool
	Modes     []Mode

	// CurrentCRTC is the CRTC driving the connector when it was read.
	CurrentCRTC ObjectID

	// PossibleCRTCs is a bitmask of CRTC indices any of the connector's
	// encoders can drive.
	PossibleCRTCs uint32
}

// PreferredMode returns the preferred mode, or the first one listed.
func (c *Connector) PreferredMode() (Mode, bool) {
	for _, m := range c.Modes {
		if m.Preferred() {
			return m, true
		}
	}
	if len(c.Modes) > 0 {
		return c.Modes[0], true
	}
	return Mode{}, false
}

// FindMode returns the first mode with the given size and, when refresh is
// non-zero, refresh rate.
func (c *Connector) FindMode(w, h, refresh int) (Mode, bool) {
	for _, m := range c.Modes {
		if int(m.HDisplay) == w && int(m.VDisplay) == h && (refresh == 0 || int(m.VRefresh) == refresh) {
			return m, true
		}
	}
	return Mode{}, false
}

// CRTC is a scanout engine.
type CRTC struct {
	ID    ObjectID
	Index int
	Mode  Mode
}

// Plane is a hardware compositing layer.
type Plane struct {
	ID            ObjectID
	Type          PlaneType
	Formats       []Format
	PossibleCRTCs uint32
}

// Supports reports whether the plane can scan out format f.
func (p *Plane) Supports(f Format) bool {
	for _, g := range p.Formats {
		if g == f {
			return true
		}
	}
	return false
}

// Framebuffer is a registered scanout buffer.
type Framebuffer struct {
	ID     ObjectID
	Width  int
	Height int
	Format Format
}

// DmabufSpec describes a buffer exported by another device. All planes of a
// multi-planar format live in the same dmabuf at the given offsets.
type DmabufSpec struct {
	FD      int
	Width   int
	Height  int
	Format  Format
	Pitches [4]uint32
	Offsets [4]uint32
}

// CommitFlags modify an atomic commit.
type CommitFlags uint32

const (
	CommitTestOnly     CommitFlags = 0x0100
	CommitNonblock     CommitFlags = 0x0200
	CommitAllowModeset CommitFlags = 0x0400
)

// Device is a display controller.
type Device interface {
	// Connectors lists every connector found when the device was opened.
	Connectors() []*Connector

	ReserveConnector(name string) (*Connector, error)
	ReserveCRTC(conn *Connector) (*CRTC, error)
	ReservePlane(crtc *CRTC, format Format, typ PlaneType) (*Plane, error)
	Release(id ObjectID)

	// SetMode programs mode on crtc and routes it to conn.
	SetMode(conn *Connector, crtc *CRTC, mode Mode) error

	NewDumbBuffer(width, height int, format Format) (*DumbBuffer, error)
	ImportDmabuf(spec DmabufSpec) (*Framebuffer, error)
	RemoveFramebuffer(fb *Framebuffer) error

	// HasProperty reports whether obj exposes the named property. Drivers
	// differ on optional plane properties such as "alpha".
	HasProperty(obj ObjectID, name string) bool

	Commit(req *AtomicRequest, flags CommitFlags) error
	Close() error
}
