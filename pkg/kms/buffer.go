package kms

import (
	"errors"
	"fmt"
)

// dumbOps is implemented by devices that back dumb buffers.
type dumbOps interface {
	mapDumb(b *DumbBuffer) ([]byte, error)
	unmapDumb(b *DumbBuffer, mem []byte) error
	destroyDumb(b *DumbBuffer) error
}

// DumbBuffer is a CPU-writable scanout buffer with a framebuffer attached.
type DumbBuffer struct {
	Handle uint32
	Width  int
	Height int
	Pitch  int
	Size   uint64
	Format Format
	FB     *Framebuffer

	dev       dumbOps
	destroyed bool
}

// Map maps the buffer, calls fn with its memory and unmaps it again. The
// mapping is released on every path, including when fn fails.
func (b *DumbBuffer) Map(fn func(mem []byte, pitch int) error) (err error) {
	if b.destroyed {
		return errors.New("kms: map of destroyed buffer")
	}
	mem, err := b.dev.mapDumb(b)
	if err != nil {
		return fmt.Errorf("kms: map dumb buffer %d: %w", b.Handle, err)
	}
	defer func() {
		if uerr := b.dev.unmapDumb(b, mem); uerr != nil && err == nil {
			err = fmt.Errorf("kms: unmap dumb buffer %d: %w", b.Handle, uerr)
		}
	}()
	return fn(mem, b.Pitch)
}

// Destroy removes the framebuffer and frees the buffer. It is safe to call
// more than once.
func (b *DumbBuffer) Destroy() error {
	if b.destroyed {
		return nil
	}
	b.destroyed = true
	return b.dev.destroyDumb(b)
}

// CopyRows writes rows of src, each rowBytes long and stride bytes apart,
// into mem honouring pitch.
func CopyRows(mem []byte, pitch int, src []byte, stride, rowBytes, rows int) error {
	if rowBytes > pitch {
		return fmt.Errorf("kms: row of %d bytes exceeds pitch %d", rowBytes, pitch)
	}
	if need := (rows-1)*pitch + rowBytes; rows > 0 && need > len(mem) {
		return fmt.Errorf("kms: buffer too small: need %d bytes, have %d", need, len(mem))
	}
	for y := 0; y < rows; y++ {
		copy(mem[y*pitch:y*pitch+rowBytes], src[y*stride:y*stride+rowBytes])
	}
	return nil
}
