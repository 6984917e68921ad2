package preview

import (
	"errors"
	"fmt"
	"image"
	"log"
	"sync"

	"github.com/mncam/surface/pkg/camera"
	"github.com/mncam/surface/pkg/kms"
)

// blendCoverage is the "pixel blend mode" value for straight alpha.
const blendCoverage = 1

// Compositor drives a set of outputs from one display context.
type Compositor struct {
	dc  *DisplayContext
	dev kms.Device

	mu          sync.Mutex
	outputs     []*Output
	stream      camera.StreamConfig
	configured  bool
	videoFormat kms.Format
	formatErr   error
	planesReady bool
	fbs         map[uint64]*kms.Framebuffer
	staleFBs    []*kms.Framebuffer
	offPlanes   []*kms.Plane
	current     camera.Frame
	ownCurrent  bool
	stopped     bool
}

// NewCompositor takes a reference on dc for the compositor's lifetime.
func NewCompositor(dc *DisplayContext) (*Compositor, error) {
	if err := dc.Retain(); err != nil {
		return nil, err
	}
	return &Compositor{
		dc:  dc,
		dev: dc.Device(),
		fbs: make(map[uint64]*kms.Framebuffer),
	}, nil
}

// UseOutput reserves the connector and a CRTC for cfg and sets the mode.
// Planes are reserved later, when the first frame or overlay arrives.
func (c *Compositor) UseOutput(cfg OutputConfig) (*Output, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return nil, ErrPreviewNotReady
	}
	if c.planesReady {
		return nil, fmt.Errorf("preview: output %s added after planes were reserved", cfg.Name)
	}

	conn, err := c.dev.ReserveConnector(cfg.Name)
	if err != nil {
		return nil, fmt.Errorf("preview: output %s: %w", cfg.Name, err)
	}
	crtc, err := c.dev.ReserveCRTC(conn)
	if err != nil {
		c.dev.Release(conn.ID)
		return nil, fmt.Errorf("preview: output %s: %w", cfg.Name, err)
	}

	if err := c.setMode(cfg, conn, crtc); err != nil {
		c.dev.Release(crtc.ID)
		c.dev.Release(conn.ID)
		return nil, err
	}

	o := &Output{
		Name:  conn.Name,
		conn:  conn,
		crtc:  crtc,
		size:  crtc.Mode.Size(),
		video: cfg.Video,
	}
	if o.video.Empty() {
		o.video = image.Rectangle{Max: o.size}
	}
	for i := 0; i < cfg.Layers; i++ {
		o.layers = append(o.layers, &layer{rect: image.Rectangle{Max: o.size}, alpha: 0xffff})
	}
	c.outputs = append(c.outputs, o)
	log.Printf("preview: using %s at %s with %d layers", o.Name, crtc.Mode, len(o.layers))
	return o, nil
}

func (c *Compositor) setMode(cfg OutputConfig, conn *kms.Connector, crtc *kms.CRTC) error {
	var (
		mode kms.Mode
		ok   bool
	)
	switch {
	case cfg.Width > 0 && cfg.Height > 0:
		mode, ok = conn.FindMode(cfg.Width, cfg.Height, cfg.Refresh)
		if !ok {
			return fmt.Errorf("preview: output %s has no %dx%d@%d mode", conn.Name, cfg.Width, cfg.Height, cfg.Refresh)
		}
	case crtc.Mode.HDisplay == 0:
		mode, ok = conn.PreferredMode()
		if !ok {
			return fmt.Errorf("preview: output %s reports no modes", conn.Name)
		}
	default:
		return nil
	}
	return c.dev.SetMode(conn, crtc, mode)
}

// Output returns the named output.
func (c *Compositor) Output(name string) (*Output, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	o := c.output(name)
	return o, o != nil
}

func (c *Compositor) output(name string) *Output {
	for _, o := range c.outputs {
		if o.Name == name {
			return o
		}
	}
	return nil
}

// Configure records the negotiated video stream. An unsupported format is
// reported here and again by every later upload. A new stream drops the
// framebuffer cache once the next commit has replaced its buffers, and a
// new pixel format gives up the video planes so they are reserved again
// for that format.
func (c *Compositor) Configure(cfg camera.StreamConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return ErrPreviewNotReady
	}
	if c.configured && cfg != c.stream {
		for id, fb := range c.fbs {
			c.staleFBs = append(c.staleFBs, fb)
			delete(c.fbs, id)
		}
	}
	format, err := VideoFormat(cfg.Format)
	if c.planesReady && err == nil && format != c.videoFormat {
		c.releaseVideoPlanes()
	}
	c.stream = cfg
	c.configured = true
	c.videoFormat, c.formatErr = format, err
	return c.formatErr
}

// releaseVideoPlanes drops the video plane reservations. The planes stay
// on screen until the next commit turns them off.
func (c *Compositor) releaseVideoPlanes() {
	for _, o := range c.outputs {
		if o.vplane == nil {
			continue
		}
		c.dev.Release(o.vplane.ID)
		c.offPlanes = append(c.offPlanes, o.vplane)
		o.vplane = nil
	}
	c.planesReady = false
}

func (c *Compositor) ready() error {
	if c.stopped || !c.configured {
		return ErrPreviewNotReady
	}
	if c.formatErr != nil {
		return c.formatErr
	}
	return c.reservePlanes()
}

// reservePlanes reserves the video plane of each output, an overlay plane
// in the video format or else the primary plane, followed by one overlay
// plane per layer so the layers stack above the video.
func (c *Compositor) reservePlanes() error {
	if c.planesReady {
		return nil
	}
	for _, o := range c.outputs {
		if o.vplane == nil {
			p, err := c.dev.ReservePlane(o.crtc, c.videoFormat, kms.PlaneOverlay)
			if err != nil {
				p, err = c.dev.ReservePlane(o.crtc, c.videoFormat, kms.PlanePrimary)
			}
			if err != nil {
				c.releasePlanes()
				return fmt.Errorf("%w: video on %s: %v", ErrPlaneReservation, o.Name, err)
			}
			o.vplane = p
		}

		for i, l := range o.layers {
			if l.plane != nil {
				continue
			}
			p, err := c.dev.ReservePlane(o.crtc, OverlayFormat, kms.PlaneOverlay)
			if err != nil {
				c.releasePlanes()
				return fmt.Errorf("%w: layer %d on %s: %v", ErrPlaneReservation, i, o.Name, err)
			}
			l.plane = p
			l.fresh = true
			l.dirty = l.dirty || l.buf != nil
		}
	}
	c.planesReady = true
	return nil
}

func (c *Compositor) releasePlanes() {
	for _, o := range c.outputs {
		if o.vplane != nil {
			c.dev.Release(o.vplane.ID)
			o.vplane = nil
		}
		for _, l := range o.layers {
			if l.plane != nil {
				c.dev.Release(l.plane.ID)
				l.plane = nil
			}
		}
	}
	c.planesReady = false
}

func (c *Compositor) layer(output string, idx int) (*layer, *Output, error) {
	o := c.output(output)
	if o == nil {
		return nil, nil, fmt.Errorf("preview: no output %q", output)
	}
	if idx < 0 || idx >= len(o.layers) {
		return nil, nil, fmt.Errorf("preview: output %s has no layer %d", output, idx)
	}
	return o.layers[idx], o, nil
}

// SetOverlay uploads img into a layer and marks it dirty. A layer whose
// buffer has a different size gets a new buffer, filled completely before
// it replaces the old one; the old buffer stays alive until the next
// commit has taken it off screen.
func (c *Compositor) SetOverlay(img *image.NRGBA, output string, idx int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped || !c.configured || c.stream.BufferCount < 2 {
		return ErrPreviewNotReady
	}
	if err := c.ready(); err != nil {
		return err
	}
	l, _, err := c.layer(output, idx)
	if err != nil {
		return err
	}

	size := img.Rect.Size()
	buf := l.buf
	if buf == nil || buf.Width != size.X || buf.Height != size.Y {
		buf, err = c.dev.NewDumbBuffer(size.X, size.Y, OverlayFormat)
		if err != nil {
			return fmt.Errorf("preview: layer %d on %s: %w", idx, output, err)
		}
	}

	err = buf.Map(func(mem []byte, pitch int) error {
		pix := img.Pix[img.PixOffset(img.Rect.Min.X, img.Rect.Min.Y):]
		return kms.CopyRows(mem, pitch, pix, img.Stride, size.X*4, size.Y)
	})
	if err != nil {
		if buf != l.buf {
			buf.Destroy()
		}
		return fmt.Errorf("preview: upload layer %d on %s: %w", idx, output, err)
	}

	if buf != l.buf {
		if l.buf != nil {
			l.retired = append(l.retired, l.buf)
		}
		l.buf = buf
	}
	l.dirty = true
	return nil
}

// SetOpacity changes a layer's plane alpha on the next commit.
func (c *Compositor) SetOpacity(output string, idx int, opacity float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, _, err := c.layer(output, idx)
	if err != nil {
		return err
	}
	if a := opacityToAlpha(opacity); a != l.alpha {
		l.alpha = a
		l.dirty = true
	}
	return nil
}

// SetPosition moves a layer on the next commit.
func (c *Compositor) SetPosition(output string, idx int, r image.Rectangle) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, _, err := c.layer(output, idx)
	if err != nil {
		return err
	}
	if r != l.rect {
		l.rect = r
		l.dirty = true
	}
	return nil
}

// Dirty reports whether any layer waits for a commit.
func (c *Compositor) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty()
}

func (c *Compositor) dirty() bool {
	for _, o := range c.outputs {
		for _, l := range o.layers {
			if l.dirty {
				return true
			}
		}
	}
	return false
}

func (c *Compositor) addLayers(req *kms.AtomicRequest) {
	for _, o := range c.outputs {
		for _, l := range o.layers {
			if !l.dirty || l.plane == nil {
				continue
			}
			if l.fresh && c.dev.HasProperty(l.plane.ID, "pixel blend mode") {
				req.Set(l.plane.ID, "pixel blend mode", blendCoverage)
			}
			if c.dev.HasProperty(l.plane.ID, "alpha") {
				req.Set(l.plane.ID, "alpha", l.alpha)
			}
			if l.buf != nil {
				src := image.Rect(0, 0, l.buf.Width, l.buf.Height)
				req.AddPlane(l.plane, l.buf.FB, o.crtc, src, l.rect)
			}
		}
	}
}

// addOffPlanes turns off video planes given up by Configure unless they
// were reserved again.
func (c *Compositor) addOffPlanes(req *kms.AtomicRequest) {
	for _, p := range c.offPlanes {
		if c.inUse(p) {
			continue
		}
		req.Set(p.ID, "FB_ID", 0)
		req.Set(p.ID, "CRTC_ID", 0)
	}
}

func (c *Compositor) inUse(p *kms.Plane) bool {
	for _, o := range c.outputs {
		if o.vplane == p {
			return true
		}
		for _, l := range o.layers {
			if l.plane == p {
				return true
			}
		}
	}
	return false
}

// committed runs after a successful commit: dirty flags clear and buffers
// that are no longer on screen are freed.
func (c *Compositor) committed() error {
	var errs []error
	for _, o := range c.outputs {
		for _, l := range o.layers {
			if !l.dirty {
				continue
			}
			l.dirty = false
			if l.buf != nil {
				l.fresh = false
			}
			for _, b := range l.retired {
				errs = append(errs, b.Destroy())
			}
			l.retired = nil
		}
	}
	for _, fb := range c.staleFBs {
		errs = append(errs, c.dev.RemoveFramebuffer(fb))
	}
	c.staleFBs = nil
	c.offPlanes = nil
	return errors.Join(errs...)
}

func (c *Compositor) framebuffer(f camera.Frame) (*kms.Framebuffer, error) {
	if fb, ok := c.fbs[f.BufferID()]; ok {
		return fb, nil
	}
	s := c.stream
	fb, err := c.dev.ImportDmabuf(dmabufSpec(f.PlaneFD(0), s.Width, s.Height, s.Stride, c.videoFormat))
	if err != nil {
		return nil, fmt.Errorf("preview: import buffer %d: %w", f.BufferID(), err)
	}
	c.fbs[f.BufferID()] = fb
	return fb, nil
}

// RenderFrame shows f on every output together with every dirty layer in
// one synchronous commit. The previously shown frame is released only
// after that commit completes. f is held with an extra reference when the
// pool has more than one buffer.
func (c *Compositor) RenderFrame(f camera.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ready(); err != nil {
		return err
	}
	fb, err := c.framebuffer(f)
	if err != nil {
		return err
	}

	req := kms.NewAtomicRequest()
	src := image.Rect(0, 0, c.stream.Width, c.stream.Height)
	for _, o := range c.outputs {
		req.AddPlane(o.vplane, fb, o.crtc, src, Fit(src.Size(), o.video))
	}
	c.addOffPlanes(req)
	c.addLayers(req)
	if err := c.dev.Commit(req, 0); err != nil {
		return fmt.Errorf("preview: commit frame %d: %w", f.BufferID(), err)
	}
	cerr := c.committed()

	if c.current != nil && c.ownCurrent {
		c.current.Release()
	}
	c.current = f
	c.ownCurrent = c.stream.BufferCount > 1
	if c.ownCurrent {
		f.Acquire()
	}
	return cerr
}

// Commit shows dirty layers without a new video frame. Nothing is
// submitted when no layer is dirty.
func (c *Compositor) Commit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped || !c.planesReady || (!c.dirty() && len(c.offPlanes) == 0) {
		return nil
	}
	req := kms.NewAtomicRequest()
	c.addOffPlanes(req)
	c.addLayers(req)
	if req.Empty() {
		return c.committed()
	}
	if err := c.dev.Commit(req, 0); err != nil {
		return fmt.Errorf("preview: commit overlays: %w", err)
	}
	return c.committed()
}

// Stop takes every plane off screen and releases the held frame, cached
// framebuffers, layer buffers, reservations and the display reference.
func (c *Compositor) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return nil
	}
	c.stopped = true

	var errs []error
	planes := c.offPlanes
	c.offPlanes = nil
	if c.planesReady {
		for _, o := range c.outputs {
			planes = append(planes, o.vplane)
			for _, l := range o.layers {
				planes = append(planes, l.plane)
			}
		}
	}
	if len(planes) > 0 {
		req := kms.NewAtomicRequest()
		for _, p := range planes {
			req.Set(p.ID, "FB_ID", 0)
			req.Set(p.ID, "CRTC_ID", 0)
		}
		if err := c.dev.Commit(req, 0); err != nil {
			log.Printf("preview: disable planes: %v", err)
		}
	}

	if c.current != nil && c.ownCurrent {
		c.current.Release()
	}
	c.current = nil

	for id, fb := range c.fbs {
		errs = append(errs, c.dev.RemoveFramebuffer(fb))
		delete(c.fbs, id)
	}
	for _, fb := range c.staleFBs {
		errs = append(errs, c.dev.RemoveFramebuffer(fb))
	}
	c.staleFBs = nil

	for _, o := range c.outputs {
		for _, l := range o.layers {
			for _, b := range append(l.retired, l.buf) {
				if b != nil {
					errs = append(errs, b.Destroy())
				}
			}
			l.buf, l.retired = nil, nil
		}
	}
	c.releasePlanes()
	for _, o := range c.outputs {
		c.dev.Release(o.crtc.ID)
		c.dev.Release(o.conn.ID)
	}
	c.outputs = nil

	errs = append(errs, c.dc.Release())
	return errors.Join(errs...)
}
