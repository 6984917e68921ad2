package kms

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sort"
	"sync"

	xdraw "golang.org/x/image/draw"
)

// SimOutput describes one connector of a simulated card. Each output gets
// its own CRTC with one primary plane and Overlays overlay planes.
type SimOutput struct {
	Name         string
	Modes        []Mode
	Overlays     int
	Disconnected bool
}

// NewSimOutput returns a connected output with a single preferred mode and
// three overlay planes.
func NewSimOutput(name string, width, height, refresh int) SimOutput {
	return SimOutput{
		Name: name,
		Modes: []Mode{{
			HDisplay: uint16(width),
			VDisplay: uint16(height),
			VRefresh: uint32(refresh),
			Type:     modeTypePreferred,
			Name:     fmt.Sprintf("%dx%d", width, height),
		}},
		Overlays: 3,
	}
}

var (
	simPrimaryFormats = []Format{FormatXRGB8888, FormatXBGR8888, FormatABGR8888, FormatRGB888, FormatBGR888}
	simOverlayFormats = []Format{FormatABGR8888, FormatXBGR8888, FormatXRGB8888, FormatRGB888, FormatBGR888, FormatYUV420, FormatYVU420}
)

var simPlaneProps = map[string]bool{
	"FB_ID": true, "CRTC_ID": true,
	"SRC_X": true, "SRC_Y": true, "SRC_W": true, "SRC_H": true,
	"CRTC_X": true, "CRTC_Y": true, "CRTC_W": true, "CRTC_H": true,
	"alpha": true, "pixel blend mode": true, "zpos": true, "rotation": true,
}

type simFramebuffer struct {
	fb     *Framebuffer
	dumb   *DumbBuffer
	dmabuf *DmabufSpec
}

// Sim is an in-memory Device. It follows the same reservation rules as a
// real card, keeps plane state across commits and can composite what each
// connector would show.
type Sim struct {
	resources

	// FailCommit, when set, is returned by the next commits.
	FailCommit error
	// FailAlloc, when set, is returned by NewDumbBuffer.
	FailAlloc error
	// DmabufImage supplies the pixels behind an imported dmabuf for
	// Snapshot. Imported buffers render grey when it is nil.
	DmabufImage func(fd int) image.Image

	mu       sync.Mutex
	nextID   ObjectID
	handle   uint32
	mem      map[uint32][]byte
	fbs      map[ObjectID]*simFramebuffer
	state    map[ObjectID]map[string]uint64
	routes   map[ObjectID]ObjectID
	commits  []*AtomicRequest
	mapped   int
	modesets int
	violated int
	closed   bool
}

// NewSim returns a simulated card with the given outputs.
func NewSim(outputs ...SimOutput) *Sim {
	s := &Sim{
		nextID: 1,
		mem:    make(map[uint32][]byte),
		fbs:    make(map[ObjectID]*simFramebuffer),
		state:  make(map[ObjectID]map[string]uint64),
		routes: make(map[ObjectID]ObjectID),
	}
	s.resources.init()
	for i, o := range outputs {
		crtc := &CRTC{ID: s.id(), Index: i}
		s.crtcs = append(s.crtcs, crtc)
		s.connectors = append(s.connectors, &Connector{
			ID:            s.id(),
			Name:          o.Name,
			Connected:     !o.Disconnected,
			Modes:         o.Modes,
			PossibleCRTCs: 1 << uint(i),
		})
		s.planes = append(s.planes, &Plane{ID: s.id(), Type: PlanePrimary, Formats: simPrimaryFormats, PossibleCRTCs: 1 << uint(i)})
		for j := 0; j < o.Overlays; j++ {
			s.planes = append(s.planes, &Plane{ID: s.id(), Type: PlaneOverlay, Formats: simOverlayFormats, PossibleCRTCs: 1 << uint(i)})
		}
	}
	return s
}

func (s *Sim) id() ObjectID {
	id := s.nextID
	s.nextID++
	return id
}

func (s *Sim) SetMode(conn *Connector, crtc *CRTC, mode Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if mode.HDisplay == 0 || mode.VDisplay == 0 {
		return fmt.Errorf("kms: invalid mode %s", mode)
	}
	crtc.Mode = mode
	s.routes[conn.ID] = crtc.ID
	s.modesets++
	return nil
}

func (s *Sim) NewDumbBuffer(width, height int, format Format) (*DumbBuffer, error) {
	if s.FailAlloc != nil {
		return nil, s.FailAlloc
	}
	bpp := format.BytesPerPixel()
	if bpp == 0 || width <= 0 || height <= 0 {
		return nil, fmt.Errorf("kms: cannot allocate %dx%d %s", width, height, format)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.handle++
	b := &DumbBuffer{
		Handle: s.handle,
		Width:  width,
		Height: height,
		Pitch:  width * bpp,
		Size:   uint64(width * bpp * height),
		Format: format,
		dev:    s,
	}
	s.mem[b.Handle] = make([]byte, b.Size)
	b.FB = &Framebuffer{ID: s.id(), Width: width, Height: height, Format: format}
	s.fbs[b.FB.ID] = &simFramebuffer{fb: b.FB, dumb: b}
	return b, nil
}

func (s *Sim) mapDumb(b *DumbBuffer) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mem, ok := s.mem[b.Handle]
	if !ok {
		return nil, fmt.Errorf("kms: no dumb buffer %d", b.Handle)
	}
	s.mapped++
	return mem, nil
}

func (s *Sim) unmapDumb(b *DumbBuffer, mem []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mapped--
	return nil
}

func (s *Sim) destroyDumb(b *DumbBuffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.FB != nil {
		if s.scannedOutLocked(b.FB.ID) {
			s.violated++
		}
		delete(s.fbs, b.FB.ID)
	}
	delete(s.mem, b.Handle)
	return nil
}

func (s *Sim) ImportDmabuf(spec DmabufSpec) (*Framebuffer, error) {
	if spec.FD < 0 {
		return nil, fmt.Errorf("kms: invalid dmabuf fd %d", spec.FD)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fb := &Framebuffer{ID: s.id(), Width: spec.Width, Height: spec.Height, Format: spec.Format}
	sp := spec
	s.fbs[fb.ID] = &simFramebuffer{fb: fb, dmabuf: &sp}
	return fb, nil
}

func (s *Sim) RemoveFramebuffer(fb *Framebuffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.fbs[fb.ID]; !ok {
		return fmt.Errorf("kms: no framebuffer %d", fb.ID)
	}
	if s.scannedOutLocked(fb.ID) {
		s.violated++
	}
	delete(s.fbs, fb.ID)
	return nil
}

func (s *Sim) scannedOutLocked(fb ObjectID) bool {
	for _, props := range s.state {
		if id, ok := props["FB_ID"]; ok && ObjectID(id) == fb {
			return true
		}
	}
	return false
}

func (s *Sim) isPlane(id ObjectID) bool {
	for _, p := range s.planes {
		if p.ID == id {
			return true
		}
	}
	return false
}

func (s *Sim) HasProperty(obj ObjectID, name string) bool {
	return s.isPlane(obj) && simPlaneProps[name]
}

func (s *Sim) Commit(req *AtomicRequest, flags CommitFlags) error {
	if s.FailCommit != nil {
		return s.FailCommit
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("kms: commit on closed device")
	}

	for _, p := range req.Properties() {
		switch {
		case s.isPlane(p.Object):
			if !simPlaneProps[p.Name] {
				return fmt.Errorf("kms: plane %d has no property %q", p.Object, p.Name)
			}
			if p.Name == "FB_ID" && p.Value != 0 {
				if _, ok := s.fbs[ObjectID(p.Value)]; !ok {
					return fmt.Errorf("kms: plane %d: no framebuffer %d", p.Object, p.Value)
				}
			}
			if p.Name == "CRTC_ID" && p.Value != 0 && s.crtc(ObjectID(p.Value)) == nil {
				return fmt.Errorf("kms: plane %d: no crtc %d", p.Object, p.Value)
			}
		default:
			return fmt.Errorf("kms: object %d is not a plane", p.Object)
		}
	}
	if flags&CommitTestOnly != 0 {
		return nil
	}

	for _, p := range req.Properties() {
		props, ok := s.state[p.Object]
		if !ok {
			props = make(map[string]uint64)
			s.state[p.Object] = props
		}
		props[p.Name] = p.Value
	}
	clone := NewAtomicRequest()
	for _, p := range req.Properties() {
		clone.Set(p.Object, p.Name, p.Value)
	}
	s.commits = append(s.commits, clone)
	return nil
}

func (s *Sim) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close was called.
func (s *Sim) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Commits returns every applied request.
func (s *Sim) Commits() []*AtomicRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*AtomicRequest, len(s.commits))
	copy(out, s.commits)
	return out
}

// PlaneState returns the current value of prop on a plane.
func (s *Sim) PlaneState(plane ObjectID, prop string) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.state[plane][prop]
	return v, ok
}

// LiveBuffers reports how many dumb buffers exist.
func (s *Sim) LiveBuffers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.mem)
}

// LiveFramebuffers reports how many framebuffers exist, dumb or imported.
func (s *Sim) LiveFramebuffers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fbs)
}

// Mapped reports how many dumb buffer mappings are outstanding.
func (s *Sim) Mapped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mapped
}

// Modesets reports how many times SetMode succeeded.
func (s *Sim) Modesets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modesets
}

// ScanoutViolations counts buffers removed while a plane still showed them.
func (s *Sim) ScanoutViolations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.violated
}

// FramebufferBytes returns a copy of the memory behind a dumb framebuffer.
func (s *Sim) FramebufferBytes(fb ObjectID) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.fbs[fb]
	if !ok || f.dumb == nil {
		return nil, false
	}
	mem := s.mem[f.dumb.Handle]
	out := make([]byte, len(mem))
	copy(out, mem)
	return out, true
}

// Snapshot composites every plane routed to the named connector's CRTC in
// stacking order: primary first, then overlays by zpos and plane id.
func (s *Sim) Snapshot(connector string) (*image.NRGBA, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var crtc *CRTC
	for _, c := range s.connectors {
		if c.Name == connector {
			crtc = s.crtc(s.routes[c.ID])
			break
		}
	}
	if crtc == nil {
		return nil, fmt.Errorf("kms: connector %q has no active crtc", connector)
	}
	size := crtc.Mode.Size()
	canvas := image.NewNRGBA(image.Rect(0, 0, size.X, size.Y))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)

	type layer struct {
		plane *Plane
		props map[string]uint64
	}
	var layers []layer
	for _, p := range s.planes {
		props := s.state[p.ID]
		if props == nil || ObjectID(props["CRTC_ID"]) != crtc.ID || props["FB_ID"] == 0 {
			continue
		}
		layers = append(layers, layer{p, props})
	}
	sort.SliceStable(layers, func(i, j int) bool {
		a, b := layers[i], layers[j]
		if (a.plane.Type == PlanePrimary) != (b.plane.Type == PlanePrimary) {
			return a.plane.Type == PlanePrimary
		}
		return a.props["zpos"] < b.props["zpos"]
	})

	for _, l := range layers {
		fb := s.fbs[ObjectID(l.props["FB_ID"])]
		if fb == nil {
			continue
		}
		src := image.Rect(
			int(l.props["SRC_X"]>>16), int(l.props["SRC_Y"]>>16),
			int((l.props["SRC_X"]+l.props["SRC_W"])>>16), int((l.props["SRC_Y"]+l.props["SRC_H"])>>16),
		)
		dst := image.Rect(
			int(int64(l.props["CRTC_X"])), int(int64(l.props["CRTC_Y"])),
			int(int64(l.props["CRTC_X"])+int64(l.props["CRTC_W"])), int(int64(l.props["CRTC_Y"])+int64(l.props["CRTC_H"])),
		)
		alpha, ok := l.props["alpha"]
		if !ok {
			alpha = 0xffff
		}
		opts := &xdraw.Options{SrcMask: image.NewUniform(color.Alpha16{A: uint16(alpha)})}
		xdraw.ApproxBiLinear.Scale(canvas, dst, s.framebufferImage(fb), src, xdraw.Over, opts)
	}
	return canvas, nil
}

func (s *Sim) framebufferImage(fb *simFramebuffer) image.Image {
	r := image.Rect(0, 0, fb.fb.Width, fb.fb.Height)
	switch {
	case fb.dumb != nil && fb.fb.Format == FormatABGR8888:
		return &image.NRGBA{Pix: s.mem[fb.dumb.Handle], Stride: fb.dumb.Pitch, Rect: r}
	case fb.dumb != nil && fb.fb.Format == FormatXBGR8888:
		return &image.RGBA{Pix: opaque(s.mem[fb.dumb.Handle]), Stride: fb.dumb.Pitch, Rect: r}
	case fb.dmabuf != nil && s.DmabufImage != nil:
		if img := s.DmabufImage(fb.dmabuf.FD); img != nil {
			return img
		}
	}
	return &image.Uniform{C: color.Gray{Y: 0x40}}
}

func opaque(pix []byte) []byte {
	out := make([]byte, len(pix))
	copy(out, pix)
	for i := 3; i < len(out); i += 4 {
		out[i] = 0xff
	}
	return out
}
