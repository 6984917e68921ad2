package kms

import (
	"fmt"
	"image"
	"strings"
)

// Property is one object property assignment in an atomic request.
type Property struct {
	Object ObjectID
	Name   string
	Value  uint64
}

// AtomicRequest collects property changes that are applied in one commit.
// Properties are named; the device resolves them to ids when committing.
type AtomicRequest struct {
	props []Property
	index map[ObjectID]map[string]int
}

// NewAtomicRequest returns an empty request.
func NewAtomicRequest() *AtomicRequest {
	return &AtomicRequest{index: make(map[ObjectID]map[string]int)}
}

// Set assigns prop on obj. Setting the same property twice keeps the last
// value.
func (r *AtomicRequest) Set(obj ObjectID, prop string, value uint64) {
	byName, ok := r.index[obj]
	if !ok {
		byName = make(map[string]int)
		r.index[obj] = byName
	}
	if i, ok := byName[prop]; ok {
		r.props[i].Value = value
		return
	}
	byName[prop] = len(r.props)
	r.props = append(r.props, Property{Object: obj, Name: prop, Value: value})
}

// AddPlane attaches fb to crtc through plane, scanning out the src rectangle
// of the buffer into the dst rectangle of the CRTC.
func (r *AtomicRequest) AddPlane(p *Plane, fb *Framebuffer, crtc *CRTC, src, dst image.Rectangle) {
	r.Set(p.ID, "FB_ID", uint64(fb.ID))
	r.Set(p.ID, "CRTC_ID", uint64(crtc.ID))
	// Source coordinates are 16.16 fixed point.
	r.Set(p.ID, "SRC_X", uint64(src.Min.X)<<16)
	r.Set(p.ID, "SRC_Y", uint64(src.Min.Y)<<16)
	r.Set(p.ID, "SRC_W", uint64(src.Dx())<<16)
	r.Set(p.ID, "SRC_H", uint64(src.Dy())<<16)
	r.Set(p.ID, "CRTC_X", uint64(int64(dst.Min.X)))
	r.Set(p.ID, "CRTC_Y", uint64(int64(dst.Min.Y)))
	r.Set(p.ID, "CRTC_W", uint64(dst.Dx()))
	r.Set(p.ID, "CRTC_H", uint64(dst.Dy()))
}

// Empty reports whether the request carries no properties.
func (r *AtomicRequest) Empty() bool { return len(r.props) == 0 }

// Properties returns the assignments in the order they were first set.
func (r *AtomicRequest) Properties() []Property {
	out := make([]Property, len(r.props))
	copy(out, r.props)
	return out
}

// Get returns the value assigned to prop on obj.
func (r *AtomicRequest) Get(obj ObjectID, prop string) (uint64, bool) {
	i, ok := r.index[obj][prop]
	if !ok {
		return 0, false
	}
	return r.props[i].Value, true
}

// Objects returns the objects touched by the request in first-use order.
func (r *AtomicRequest) Objects() []ObjectID {
	var out []ObjectID
	seen := make(map[ObjectID]bool)
	for _, p := range r.props {
		if !seen[p.Object] {
			seen[p.Object] = true
			out = append(out, p.Object)
		}
	}
	return out
}

func (r *AtomicRequest) String() string {
	var b strings.Builder
	for i, p := range r.props {
		if i > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, "%d.%s=%d", p.Object, p.Name, p.Value)
	}
	return b.String()
}
