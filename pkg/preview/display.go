package preview

import (
	"errors"
	"fmt"
	"sync"

	"github.com/mncam/surface/pkg/kms"
)

var errDisplayClosed = errors.New("preview: display context closed")

// DisplayContext shares one display device between the components that
// drive its outputs. The device is closed when the last reference is
// released.
type DisplayContext struct {
	dev kms.Device

	mu   sync.Mutex
	refs int
}

// NewDisplayContext wraps dev. The caller holds the first reference.
func NewDisplayContext(dev kms.Device) *DisplayContext {
	return &DisplayContext{dev: dev, refs: 1}
}

// Device returns the shared device.
func (d *DisplayContext) Device() kms.Device { return d.dev }

// Retain takes a reference. It fails once the device has been closed.
func (d *DisplayContext) Retain() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.refs == 0 {
		return errDisplayClosed
	}
	d.refs++
	return nil
}

// Release drops a reference and closes the device with the last one.
func (d *DisplayContext) Release() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.refs == 0 {
		return errDisplayClosed
	}
	d.refs--
	if d.refs > 0 {
		return nil
	}
	if err := d.dev.Close(); err != nil {
		return fmt.Errorf("preview: close display: %w", err)
	}
	return nil
}

// Refs reports the number of live references.
func (d *DisplayContext) Refs() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.refs
}
