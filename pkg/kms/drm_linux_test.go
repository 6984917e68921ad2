//go:build linux

package kms

import (
	"testing"
	"unsafe"
)

func TestIoctlStructSizes(t *testing.T) {
	tests := []struct {
		name string
		got  uintptr
		want uintptr
	}{
		{"drm_set_client_cap", unsafe.Sizeof(drmSetClientCap{}), 16},
		{"drm_mode_card_res", unsafe.Sizeof(drmModeCardRes{}), 64},
		{"drm_mode_modeinfo", unsafe.Sizeof(drmModeInfo{}), 68},
		{"drm_mode_crtc", unsafe.Sizeof(drmModeCRTC{}), 104},
		{"drm_mode_get_encoder", unsafe.Sizeof(drmModeGetEncoder{}), 20},
		{"drm_mode_get_connector", unsafe.Sizeof(drmModeGetConnector{}), 80},
		{"drm_mode_get_property", unsafe.Sizeof(drmModeGetProperty{}), 64},
		{"drm_mode_create_dumb", unsafe.Sizeof(drmModeCreateDumb{}), 32},
		{"drm_mode_map_dumb", unsafe.Sizeof(drmModeMapDumb{}), 16},
		{"drm_mode_get_plane_res", unsafe.Sizeof(drmModeGetPlaneRes{}), 16},
		{"drm_mode_get_plane", unsafe.Sizeof(drmModeGetPlane{}), 32},
		{"drm_mode_fb_cmd2", unsafe.Sizeof(drmModeFBCmd2{}), 104},
		{"drm_mode_obj_get_properties", unsafe.Sizeof(drmModeObjGetProperties{}), 32},
		{"drm_mode_atomic", unsafe.Sizeof(drmModeAtomic{}), 56},
		{"drm_mode_create_blob", unsafe.Sizeof(drmModeCreateBlob{}), 16},
		{"drm_prime_handle", unsafe.Sizeof(drmPrimeHandle{}), 12},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("sizeof(%s) = %d, want %d", tt.name, tt.got, tt.want)
		}
	}
}

func TestIoctlNumbers(t *testing.T) {
	// Values from the kernel uapi headers on 64-bit targets.
	if ioctlModeAtomic != 0xc03864bc {
		t.Fatalf("DRM_IOCTL_MODE_ATOMIC = %#x", ioctlModeAtomic)
	}
	if ioctlSetClientCap != 0x4010640d {
		t.Fatalf("DRM_IOCTL_SET_CLIENT_CAP = %#x", ioctlSetClientCap)
	}
	if ioctlModeAddFB2 != 0xc06864b8 {
		t.Fatalf("DRM_IOCTL_MODE_ADDFB2 = %#x", ioctlModeAddFB2)
	}
}

func TestConnectorName(t *testing.T) {
	if got := connectorName(11, 1); got != "HDMI-A-1" {
		t.Fatalf("connectorName = %q", got)
	}
	if got := connectorName(16, 12); got != "DSI-12" {
		t.Fatalf("connectorName = %q", got)
	}
}
