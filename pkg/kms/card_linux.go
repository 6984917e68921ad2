//go:build linux

package kms

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Card is a DRM device opened with atomic mode setting enabled.
type Card struct {
	resources

	Path string

	fd       int
	mu       sync.Mutex
	objTypes map[ObjectID]uint32
	propIDs  map[ObjectID]map[string]uint32
}

// Open opens a DRM card node and enumerates its connectors, CRTCs and
// planes.
func Open(path string) (Device, error) {
	return OpenCard(path)
}

// OpenCard is Open returning the concrete type.
func OpenCard(path string) (*Card, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("kms: open %s: %w", path, err)
	}
	c := &Card{
		Path:     path,
		fd:       fd,
		objTypes: make(map[ObjectID]uint32),
		propIDs:  make(map[ObjectID]map[string]uint32),
	}
	c.resources.init()

	for _, capability := range []uint64{clientCapUniversalPlanes, clientCapAtomic} {
		arg := drmSetClientCap{Capability: capability, Value: 1}
		if err := ioctl(fd, ioctlSetClientCap, unsafe.Pointer(&arg)); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("kms: %s: client cap %d: %w", path, capability, err)
		}
	}
	if err := c.enumerate(); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return c, nil
}

// OpenFirst opens the first card under /dev/dri that has a connected
// output.
func OpenFirst() (*Card, error) {
	paths, err := filepath.Glob("/dev/dri/card*")
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	for _, p := range paths {
		c, err := OpenCard(p)
		if err != nil {
			log.Printf("kms: skip %s: %v", p, err)
			continue
		}
		for _, conn := range c.connectors {
			if conn.Connected {
				return c, nil
			}
		}
		c.Close()
	}
	return nil, errors.New("kms: no card with a connected output")
}

func (c *Card) enumerate() error {
	var res drmModeCardRes
	if err := ioctl(c.fd, ioctlModeGetResources, unsafe.Pointer(&res)); err != nil {
		return fmt.Errorf("kms: get resources: %w", err)
	}
	crtcIDs := make([]uint32, res.CountCRTCs)
	connIDs := make([]uint32, res.CountConnectors)
	encIDs := make([]uint32, res.CountEncoders)
	res = drmModeCardRes{
		CRTCIDPtr:       ptr(crtcIDs),
		ConnectorIDPtr:  ptr(connIDs),
		EncoderIDPtr:    ptr(encIDs),
		CountCRTCs:      uint32(len(crtcIDs)),
		CountConnectors: uint32(len(connIDs)),
		CountEncoders:   uint32(len(encIDs)),
	}
	err := ioctl(c.fd, ioctlModeGetResources, unsafe.Pointer(&res))
	runtime.KeepAlive(crtcIDs)
	runtime.KeepAlive(connIDs)
	runtime.KeepAlive(encIDs)
	if err != nil {
		return fmt.Errorf("kms: get resources: %w", err)
	}

	for i, id := range crtcIDs {
		crtc := drmModeCRTC{CRTCID: id}
		if err := ioctl(c.fd, ioctlModeGetCRTC, unsafe.Pointer(&crtc)); err != nil {
			return fmt.Errorf("kms: get crtc %d: %w", id, err)
		}
		cr := &CRTC{ID: ObjectID(id), Index: i}
		if crtc.ModeValid != 0 {
			cr.Mode = modeFromInfo(&crtc.Mode)
		}
		c.crtcs = append(c.crtcs, cr)
		c.objTypes[cr.ID] = objectCRTC
	}

	encoders := make(map[uint32]drmModeGetEncoder)
	for _, id := range encIDs {
		enc := drmModeGetEncoder{EncoderID: id}
		if err := ioctl(c.fd, ioctlModeGetEncoder, unsafe.Pointer(&enc)); err != nil {
			return fmt.Errorf("kms: get encoder %d: %w", id, err)
		}
		encoders[id] = enc
	}

	for _, id := range connIDs {
		conn, err := c.connector(id, encoders)
		if err != nil {
			return err
		}
		c.connectors = append(c.connectors, conn)
		c.objTypes[conn.ID] = objectConnector
	}

	return c.enumeratePlanes()
}

func (c *Card) connector(id uint32, encoders map[uint32]drmModeGetEncoder) (*Connector, error) {
	// The first call with zero counts queries the connector and reports
	// how much room the second call needs.
	info := drmModeGetConnector{ConnectorID: id}
	if err := ioctl(c.fd, ioctlModeGetConnector, unsafe.Pointer(&info)); err != nil {
		return nil, fmt.Errorf("kms: get connector %d: %w", id, err)
	}
	modes := make([]drmModeInfo, info.CountModes)
	encIDs := make([]uint32, info.CountEncoders)
	info = drmModeGetConnector{
		ConnectorID:   id,
		ModesPtr:      ptr(modes),
		EncodersPtr:   ptr(encIDs),
		CountModes:    uint32(len(modes)),
		CountEncoders: uint32(len(encIDs)),
	}
	err := ioctl(c.fd, ioctlModeGetConnector, unsafe.Pointer(&info))
	runtime.KeepAlive(modes)
	runtime.KeepAlive(encIDs)
	if err != nil {
		return nil, fmt.Errorf("kms: get connector %d: %w", id, err)
	}

	conn := &Connector{
		ID:        ObjectID(id),
		Name:      connectorName(info.ConnectorType, info.ConnectorTypeID),
		Connected: info.Connection == connectionConnected,
	}
	for i := range modes[:min(len(modes), int(info.CountModes))] {
		conn.Modes = append(conn.Modes, modeFromInfo(&modes[i]))
	}
	for _, e := range encIDs {
		enc, ok := encoders[e]
		if !ok {
			continue
		}
		conn.PossibleCRTCs |= enc.PossibleCRTCs
		if e == info.EncoderID {
			conn.CurrentCRTC = ObjectID(enc.CRTCID)
		}
	}
	return conn, nil
}

func (c *Card) enumeratePlanes() error {
	var res drmModeGetPlaneRes
	if err := ioctl(c.fd, ioctlModeGetPlaneRes, unsafe.Pointer(&res)); err != nil {
		return fmt.Errorf("kms: get plane resources: %w", err)
	}
	ids := make([]uint32, res.CountPlanes)
	res = drmModeGetPlaneRes{PlaneIDPtr: ptr(ids), CountPlanes: uint32(len(ids))}
	err := ioctl(c.fd, ioctlModeGetPlaneRes, unsafe.Pointer(&res))
	runtime.KeepAlive(ids)
	if err != nil {
		return fmt.Errorf("kms: get plane resources: %w", err)
	}

	for _, id := range ids {
		info := drmModeGetPlane{PlaneID: id}
		if err := ioctl(c.fd, ioctlModeGetPlane, unsafe.Pointer(&info)); err != nil {
			return fmt.Errorf("kms: get plane %d: %w", id, err)
		}
		formats := make([]uint32, info.CountFormatTypes)
		info = drmModeGetPlane{PlaneID: id, FormatTypePtr: ptr(formats), CountFormatTypes: uint32(len(formats))}
		err := ioctl(c.fd, ioctlModeGetPlane, unsafe.Pointer(&info))
		runtime.KeepAlive(formats)
		if err != nil {
			return fmt.Errorf("kms: get plane %d: %w", id, err)
		}

		p := &Plane{ID: ObjectID(id), PossibleCRTCs: info.PossibleCRTCs}
		for _, f := range formats {
			p.Formats = append(p.Formats, Format(f))
		}
		c.objTypes[p.ID] = objectPlane
		props, values, err := c.properties(p.ID)
		if err != nil {
			return err
		}
		p.Type = PlaneType(values[props["type"]])
		c.planes = append(c.planes, p)
	}
	return nil
}

// properties returns the property name to id map of an object and the
// current value of each property id.
func (c *Card) properties(obj ObjectID) (map[string]uint32, map[uint32]uint64, error) {
	typ, ok := c.objTypes[obj]
	if !ok {
		return nil, nil, fmt.Errorf("kms: unknown object %d", obj)
	}
	arg := drmModeObjGetProperties{ObjID: uint32(obj), ObjType: typ}
	if err := ioctl(c.fd, ioctlModeObjGetProps, unsafe.Pointer(&arg)); err != nil {
		return nil, nil, fmt.Errorf("kms: object %d properties: %w", obj, err)
	}
	ids := make([]uint32, arg.CountProps)
	vals := make([]uint64, arg.CountProps)
	arg.PropsPtr = ptr(ids)
	arg.PropValuesPtr = ptr(vals)
	err := ioctl(c.fd, ioctlModeObjGetProps, unsafe.Pointer(&arg))
	runtime.KeepAlive(ids)
	runtime.KeepAlive(vals)
	if err != nil {
		return nil, nil, fmt.Errorf("kms: object %d properties: %w", obj, err)
	}

	names := make(map[string]uint32, len(ids))
	values := make(map[uint32]uint64, len(ids))
	for i, id := range ids {
		prop := drmModeGetProperty{PropID: id}
		if err := ioctl(c.fd, ioctlModeGetProperty, unsafe.Pointer(&prop)); err != nil {
			return nil, nil, fmt.Errorf("kms: property %d: %w", id, err)
		}
		names[cstring(prop.Name[:])] = id
		values[id] = vals[i]
	}
	c.propIDs[obj] = names
	return names, values, nil
}

func (c *Card) propID(obj ObjectID, name string) (uint32, error) {
	names, ok := c.propIDs[obj]
	if !ok {
		var err error
		if names, _, err = c.properties(obj); err != nil {
			return 0, err
		}
	}
	id, ok := names[name]
	if !ok {
		return 0, fmt.Errorf("kms: object %d has no property %q", obj, name)
	}
	return id, nil
}

func (c *Card) HasProperty(obj ObjectID, name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.propID(obj, name)
	return err == nil
}

// SetMode creates a mode blob and performs a modeset commit routing conn
// through crtc.
func (c *Card) SetMode(conn *Connector, crtc *CRTC, mode Mode) error {
	info := infoFromMode(mode)
	blob := drmModeCreateBlob{Data: uint64(uintptr(unsafe.Pointer(&info))), Length: uint32(unsafe.Sizeof(info))}
	err := ioctl(c.fd, ioctlModeCreatePropBlob, unsafe.Pointer(&blob))
	runtime.KeepAlive(&info)
	if err != nil {
		return fmt.Errorf("kms: create mode blob: %w", err)
	}
	defer func() {
		d := drmModeDestroyBlob{BlobID: blob.BlobID}
		ioctl(c.fd, ioctlModeDestroyPropBlob, unsafe.Pointer(&d))
	}()

	req := NewAtomicRequest()
	req.Set(crtc.ID, "MODE_ID", uint64(blob.BlobID))
	req.Set(crtc.ID, "ACTIVE", 1)
	req.Set(conn.ID, "CRTC_ID", uint64(crtc.ID))
	if err := c.Commit(req, CommitAllowModeset); err != nil {
		return fmt.Errorf("kms: set mode %s on %s: %w", mode, conn.Name, err)
	}
	crtc.Mode = mode
	return nil
}

func (c *Card) NewDumbBuffer(width, height int, format Format) (*DumbBuffer, error) {
	bpp := format.BytesPerPixel()
	if bpp == 0 {
		return nil, fmt.Errorf("kms: no dumb buffer layout for %s", format)
	}
	create := drmModeCreateDumb{Width: uint32(width), Height: uint32(height), BPP: uint32(bpp * 8)}
	if err := ioctl(c.fd, ioctlModeCreateDumb, unsafe.Pointer(&create)); err != nil {
		return nil, fmt.Errorf("kms: create dumb %dx%d: %w", width, height, err)
	}
	b := &DumbBuffer{
		Handle: create.Handle,
		Width:  width,
		Height: height,
		Pitch:  int(create.Pitch),
		Size:   create.Size,
		Format: format,
		dev:    c,
	}
	cmd := drmModeFBCmd2{
		Width:       uint32(width),
		Height:      uint32(height),
		PixelFormat: uint32(format),
	}
	cmd.Handles[0] = b.Handle
	cmd.Pitches[0] = create.Pitch
	if err := ioctl(c.fd, ioctlModeAddFB2, unsafe.Pointer(&cmd)); err != nil {
		d := drmModeDestroyDumb{Handle: b.Handle}
		ioctl(c.fd, ioctlModeDestroyDumb, unsafe.Pointer(&d))
		return nil, fmt.Errorf("kms: add framebuffer for dumb %d: %w", b.Handle, err)
	}
	b.FB = &Framebuffer{ID: ObjectID(cmd.FBID), Width: width, Height: height, Format: format}
	return b, nil
}

func (c *Card) mapDumb(b *DumbBuffer) ([]byte, error) {
	arg := drmModeMapDumb{Handle: b.Handle}
	if err := ioctl(c.fd, ioctlModeMapDumb, unsafe.Pointer(&arg)); err != nil {
		return nil, err
	}
	return unix.Mmap(c.fd, int64(arg.Offset), int(b.Size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
}

func (c *Card) unmapDumb(b *DumbBuffer, mem []byte) error {
	return unix.Munmap(mem)
}

func (c *Card) destroyDumb(b *DumbBuffer) error {
	var errs []error
	if b.FB != nil {
		errs = append(errs, c.RemoveFramebuffer(b.FB))
	}
	d := drmModeDestroyDumb{Handle: b.Handle}
	if err := ioctl(c.fd, ioctlModeDestroyDumb, unsafe.Pointer(&d)); err != nil {
		errs = append(errs, fmt.Errorf("kms: destroy dumb %d: %w", b.Handle, err))
	}
	return errors.Join(errs...)
}

// ImportDmabuf turns a dmabuf fd into a GEM handle and registers a
// framebuffer over it. The handle is closed again once the framebuffer
// holds its own reference.
func (c *Card) ImportDmabuf(spec DmabufSpec) (*Framebuffer, error) {
	prime := drmPrimeHandle{FD: int32(spec.FD)}
	if err := ioctl(c.fd, ioctlPrimeFDToHandle, unsafe.Pointer(&prime)); err != nil {
		return nil, fmt.Errorf("kms: import dmabuf %d: %w", spec.FD, err)
	}
	defer func() {
		gc := drmGemClose{Handle: prime.Handle}
		ioctl(c.fd, ioctlGemClose, unsafe.Pointer(&gc))
	}()

	cmd := drmModeFBCmd2{
		Width:       uint32(spec.Width),
		Height:      uint32(spec.Height),
		PixelFormat: uint32(spec.Format),
		Pitches:     spec.Pitches,
		Offsets:     spec.Offsets,
	}
	for i := range cmd.Pitches {
		if cmd.Pitches[i] != 0 {
			cmd.Handles[i] = prime.Handle
		}
	}
	if err := ioctl(c.fd, ioctlModeAddFB2, unsafe.Pointer(&cmd)); err != nil {
		return nil, fmt.Errorf("kms: add framebuffer for dmabuf %d: %w", spec.FD, err)
	}
	return &Framebuffer{ID: ObjectID(cmd.FBID), Width: spec.Width, Height: spec.Height, Format: spec.Format}, nil
}

func (c *Card) RemoveFramebuffer(fb *Framebuffer) error {
	id := uint32(fb.ID)
	if err := ioctl(c.fd, ioctlModeRmFB, unsafe.Pointer(&id)); err != nil {
		return fmt.Errorf("kms: remove framebuffer %d: %w", fb.ID, err)
	}
	return nil
}

// Commit resolves property names and submits req as one atomic update.
func (c *Card) Commit(req *AtomicRequest, flags CommitFlags) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var (
		objs   []uint32
		counts []uint32
		props  []uint32
		values []uint64
	)
	for _, obj := range req.Objects() {
		objs = append(objs, uint32(obj))
		counts = append(counts, 0)
	}
	// The kernel expects each object's properties to be contiguous.
	for i, obj := range req.Objects() {
		for _, p := range req.Properties() {
			if p.Object != obj {
				continue
			}
			id, err := c.propID(obj, p.Name)
			if err != nil {
				return err
			}
			props = append(props, id)
			values = append(values, p.Value)
			counts[i]++
		}
	}
	if len(objs) == 0 {
		return nil
	}

	arg := drmModeAtomic{
		Flags:         uint32(flags),
		CountObjs:     uint32(len(objs)),
		ObjsPtr:       ptr(objs),
		CountPropsPtr: ptr(counts),
		PropsPtr:      ptr(props),
		PropValuesPtr: ptr(values),
	}
	err := ioctl(c.fd, ioctlModeAtomic, unsafe.Pointer(&arg))
	runtime.KeepAlive(objs)
	runtime.KeepAlive(counts)
	runtime.KeepAlive(props)
	runtime.KeepAlive(values)
	if err != nil {
		return fmt.Errorf("kms: atomic commit: %w", err)
	}
	return nil
}

func (c *Card) Close() error {
	return unix.Close(c.fd)
}
