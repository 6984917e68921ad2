//go:build !linux

package kms

import "errors"

// Open is only supported on linux. Use Sim elsewhere.
func Open(path string) (Device, error) {
	return nil, errors.New("kms: DRM devices are only available on linux")
}
