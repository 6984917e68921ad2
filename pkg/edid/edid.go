// Package edid reads the camera identity advertised by the HDMI sink the
// camera is plugged into. Video mixers report the input port through the
// CEC physical address of the HDMI vendor block.
package edid

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultPattern matches the EDID of the main HDMI connector.
const DefaultPattern = "/sys/class/drm/card*-HDMI-A-1/edid"

// mixerVendor is the manufacturer whose mixers encode the port in the CEC
// address.
const mixerVendor = "HHA"

// ErrNoEDID is returned when no sink is connected.
var ErrNoEDID = errors.New("edid: no sink connected")

// Info is what the camera learns from the sink.
type Info struct {
	Vendor string
	// CEC is the first byte of the CEC physical address, zero if absent.
	CEC uint8
	// CameraID is the mixer input port, -1 when unknown.
	CameraID int
}

func (i Info) String() string {
	if i.CameraID < 0 {
		return "-"
	}
	return fmt.Sprint(i.CameraID)
}

// Vendor decodes the three letter manufacturer id.
func Vendor(b [2]byte) string {
	v := uint16(b[0])<<8 | uint16(b[1])
	return string([]byte{
		byte(v>>10&0x1f) + 'A' - 1,
		byte(v>>5&0x1f) + 'A' - 1,
		byte(v&0x1f) + 'A' - 1,
	})
}

// Parse decodes a raw EDID blob.
func Parse(raw []byte) (Info, error) {
	info := Info{CameraID: -1}
	if len(raw) == 0 {
		return info, ErrNoEDID
	}
	if len(raw) < 128 {
		return info, fmt.Errorf("edid: short base block (%d bytes)", len(raw))
	}
	info.Vendor = Vendor([2]byte{raw[0x08], raw[0x09]})
	if raw[0x7e] == 1 && len(raw) > 0x9a && info.Vendor == mixerVendor {
		info.CEC = raw[0x9a]
		info.CameraID = int(info.CEC >> 4)
	}
	return info, nil
}

// Read parses the first EDID matching pattern.
func Read(pattern string) (Info, error) {
	files, err := filepath.Glob(pattern)
	if err != nil {
		return Info{CameraID: -1}, fmt.Errorf("edid: %w", err)
	}
	if len(files) == 0 {
		return Info{CameraID: -1}, ErrNoEDID
	}
	raw, err := os.ReadFile(files[0])
	if err != nil {
		return Info{CameraID: -1}, fmt.Errorf("edid: %w", err)
	}
	return Parse(raw)
}
