package camera

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"
)

// DefaultFrameSocket is where the capture process offers its video buffers.
const DefaultFrameSocket = "/tmp/sensor-frames"

// Frame socket opcodes. opStream and opFrame come from the capture
// process, opRelease goes back to it.
const (
	opStream  = 0x10
	opFrame   = 0x11
	opRelease = 0x12
)

const formatLen = 8

// streamPacket is the payload of opStream.
type streamPacket struct {
	Format  [formatLen]byte
	Width   uint32
	Height  uint32
	Stride  uint32
	Buffers uint32
}

// FrameSource receives video buffers from the capture process. Each
// buffer is a dmabuf whose descriptor travels as SCM_RIGHTS ancillary data
// the first time the buffer is announced after a stream change. A frame
// goes back to the capture process once every reference is released.
type FrameSource struct {
	conn *net.UnixConn

	mu     sync.Mutex
	fds    map[uint64]int
	closed bool
}

// DialFrames connects to the frame socket at path, waiting up to SocketWait
// for the capture process to create it.
func DialFrames(ctx context.Context, path string) (*FrameSource, error) {
	conn, err := dialPacket(ctx, path)
	if err != nil {
		return nil, err
	}
	return NewFrameSource(conn), nil
}

// NewFrameSource wraps an established connection.
func NewFrameSource(conn *net.UnixConn) *FrameSource {
	return &FrameSource{conn: conn, fds: make(map[uint64]int)}
}

// Listen delivers stream changes and frames until ctx is cancelled or the
// connection fails. Each frame reaches onFrame holding one reference that
// the callee must release. Packets that do not decode are logged and
// skipped.
func (s *FrameSource) Listen(ctx context.Context, onStream func(StreamConfig), onFrame func(Frame)) error {
	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()

	buf := make([]byte, 256)
	oob := make([]byte, oobSize)
	for {
		n, oobn, _, _, err := s.conn.ReadMsgUnix(buf, oob)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return s.readErr(err)
		}
		fds, err := parseRights(oob[:oobn])
		if err != nil {
			log.Printf("camera: frame socket: %v", err)
			continue
		}
		if err := s.dispatch(buf[:n], fds, onStream, onFrame); err != nil {
			closeFDs(fds)
			log.Printf("%v", err)
		}
	}
}

func (s *FrameSource) dispatch(packet []byte, fds []int, onStream func(StreamConfig), onFrame func(Frame)) error {
	if len(packet) == 0 {
		return errors.New("camera: empty frame packet")
	}
	r := bytes.NewReader(packet[1:])
	switch packet[0] {
	case opStream:
		var p streamPacket
		if err := binary.Read(r, binary.LittleEndian, &p); err != nil {
			return fmt.Errorf("camera: stream packet: %w", err)
		}
		closeFDs(fds)
		s.forget()
		onStream(StreamConfig{
			Format:      string(bytes.TrimRight(p.Format[:], "\x00")),
			Width:       int(p.Width),
			Height:      int(p.Height),
			Stride:      int(p.Stride),
			BufferCount: int(p.Buffers),
		})
		return nil
	case opFrame:
		var id uint32
		if err := binary.Read(r, binary.LittleEndian, &id); err != nil {
			return fmt.Errorf("camera: frame packet: %w", err)
		}
		f, err := s.frame(uint64(id), fds)
		if err != nil {
			s.release(uint64(id))
			return err
		}
		onFrame(f)
		return nil
	}
	return fmt.Errorf("camera: unknown frame packet 0x%02x", packet[0])
}

// frame pairs a buffer id with its dmabuf. A descriptor sent with the
// packet replaces the one kept for the id.
func (s *FrameSource) frame(id uint64, fds []int) (*wireFrame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(fds) > 0 {
		if old, ok := s.fds[id]; ok {
			closeFD(old)
		}
		s.fds[id] = fds[0]
		closeFDs(fds[1:])
	}
	fd, ok := s.fds[id]
	if !ok {
		return nil, fmt.Errorf("camera: buffer %d has no dmabuf", id)
	}
	f := &wireFrame{src: s, id: id, fd: fd}
	f.refs.Store(1)
	return f, nil
}

// forget closes the descriptors of the previous stream. Framebuffers
// already imported from them stay valid.
func (s *FrameSource) forget() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, fd := range s.fds {
		closeFD(fd)
		delete(s.fds, id)
	}
}

func (s *FrameSource) release(id uint64) {
	pkt := binary.LittleEndian.AppendUint32([]byte{opRelease}, uint32(id))
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if _, err := s.conn.Write(pkt); err != nil {
		log.Printf("camera: release buffer %d: %v", id, err)
	}
}

func (s *FrameSource) readErr(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return fmt.Errorf("camera: frame socket: %w", err)
}

// Close disconnects and closes every dmabuf descriptor still held.
func (s *FrameSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for id, fd := range s.fds {
		closeFD(fd)
		delete(s.fds, id)
	}
	return s.conn.Close()
}

// wireFrame is one delivery of a capture buffer.
type wireFrame struct {
	src  *FrameSource
	id   uint64
	fd   int
	refs atomic.Int64
}

func (f *wireFrame) BufferID() uint64 { return f.id }

// PlaneFD returns the buffer's dmabuf for every plane.
func (f *wireFrame) PlaneFD(int) int { return f.fd }

func (f *wireFrame) Acquire() { f.refs.Add(1) }

func (f *wireFrame) Release() {
	switch n := f.refs.Add(-1); {
	case n == 0:
		f.src.release(f.id)
	case n < 0:
		panic(fmt.Sprintf("camera: buffer %d released more often than acquired", f.id))
	}
}
