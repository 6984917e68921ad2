package edid

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func blob(vendor [2]byte, exts byte, cec byte) []byte {
	raw := make([]byte, 256)
	raw[0x08], raw[0x09] = vendor[0], vendor[1]
	raw[0x7e] = exts
	raw[0x9a] = cec
	return raw
}

// "HHA": H=8, A=1 -> 0b0_01000_00001_00001.
var hha = [2]byte{0x20, 0x21}

func TestVendor(t *testing.T) {
	if got := Vendor(hha); got != "HHA" {
		t.Fatalf("Vendor = %q, want HHA", got)
	}
	if got := Vendor([2]byte{0x10, 0xac}); got != "DEL" {
		t.Fatalf("Vendor = %q, want DEL", got)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		want Info
	}{
		{"mixer", blob(hha, 1, 0x30), Info{Vendor: "HHA", CEC: 0x30, CameraID: 3}},
		{"no extension", blob(hha, 0, 0x30), Info{Vendor: "HHA", CameraID: -1}},
		{"monitor", blob([2]byte{0x10, 0xac}, 1, 0x10), Info{Vendor: "DEL", CameraID: -1}},
	}
	for _, tt := range tests {
		got, err := Parse(tt.raw)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if got != tt.want {
			t.Fatalf("%s: Parse = %+v, want %+v", tt.name, got, tt.want)
		}
	}
	if _, err := Parse(nil); !errors.Is(err, ErrNoEDID) {
		t.Fatalf("Parse(nil) err = %v, want ErrNoEDID", err)
	}
	if _, err := Parse(make([]byte, 12)); err == nil {
		t.Fatalf("short blob accepted")
	}
}

func TestRead(t *testing.T) {
	dir := t.TempDir()
	if _, err := Read(filepath.Join(dir, "card*-HDMI-A-1", "edid")); !errors.Is(err, ErrNoEDID) {
		t.Fatalf("Read without sink err = %v", err)
	}
	sub := filepath.Join(dir, "card1-HDMI-A-1")
	os.Mkdir(sub, 0o755)
	if err := os.WriteFile(filepath.Join(sub, "edid"), blob(hha, 1, 0x20), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	info, err := Read(filepath.Join(dir, "card*-HDMI-A-1", "edid"))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if info.CameraID != 2 || info.String() != "2" {
		t.Fatalf("info = %+v", info)
	}
}
