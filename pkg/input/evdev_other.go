//go:build !linux

package input

import (
	"errors"
)

var errNoEvdev = errors.New("input: evdev is only available on linux")

// OpenEvdev is not supported on this platform.
func OpenEvdev(path string) (Source, error) {
	return nil, errNoEvdev
}

func inspectDevice(path string) (DeviceInfo, error) {
	return DeviceInfo{Path: path}, errNoEvdev
}
