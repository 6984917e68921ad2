//go:build linux

package cmd

import (
	"context"
	"encoding/binary"
	"net"
	"os"
	"testing"
	"time"

	"github.com/mncam/surface/pkg/camera"
	"github.com/mncam/surface/pkg/kms"
	"github.com/mncam/surface/pkg/preview"
	"golang.org/x/sys/unix"
)

func seqpacketPair(t *testing.T) (*net.UnixConn, *net.UnixConn) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_SEQPACKET, 0)
	if err != nil {
		t.Skipf("seqpacket socketpair not available: %v", err)
	}
	var conns [2]*net.UnixConn
	for i, fd := range fds {
		f := os.NewFile(uintptr(fd), "frames")
		c, err := net.FileConn(f)
		f.Close()
		if err != nil {
			t.Fatalf("FileConn: %v", err)
		}
		conns[i] = c.(*net.UnixConn)
	}
	t.Cleanup(func() { conns[1].Close() })
	return conns[0], conns[1]
}

// TestStreamVideoShowsSocketFrames feeds a stream change and two dmabuf
// frames through the frame socket and checks they reach the display.
func TestStreamVideoShowsSocketFrames(t *testing.T) {
	surfaceEnd, capture := seqpacketPair(t)
	frames := camera.NewFrameSource(surfaceEnd)
	defer frames.Close()

	sim := kms.NewSim(kms.NewSimOutput("HDMI-A-1", 1280, 720, 60))
	dc := preview.NewDisplayContext(sim)
	comp, err := preview.NewCompositor(dc)
	dc.Release()
	if err != nil {
		t.Fatalf("NewCompositor: %v", err)
	}
	defer comp.Stop()
	if _, err := comp.UseOutput(preview.OutputConfig{Name: "HDMI-A-1"}); err != nil {
		t.Fatalf("UseOutput: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- streamVideo(ctx, frames, comp) }()

	stream := []byte{0x10}
	var format [8]byte
	copy(format[:], "YUV420")
	stream = append(stream, format[:]...)
	for _, v := range []uint32{640, 360, 640, 2} {
		stream = binary.LittleEndian.AppendUint32(stream, v)
	}
	if _, err := capture.Write(stream); err != nil {
		t.Fatalf("write stream: %v", err)
	}

	buf, err := os.CreateTemp(t.TempDir(), "dmabuf")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	defer buf.Close()
	for id := uint32(0); id < 2; id++ {
		pkt := binary.LittleEndian.AppendUint32([]byte{0x11}, id)
		if _, _, err := capture.WriteMsgUnix(pkt, unix.UnixRights(int(buf.Fd())), nil); err != nil {
			t.Fatalf("write frame %d: %v", id, err)
		}
	}

	// Buffer 0 comes back once buffer 1 replaced it on screen.
	capture.SetReadDeadline(time.Now().Add(5 * time.Second))
	pkt := make([]byte, 16)
	n, err := capture.Read(pkt)
	if err != nil {
		t.Fatalf("read release: %v", err)
	}
	if want := []byte{0x12, 0, 0, 0, 0}; string(pkt[:n]) != string(want) {
		t.Fatalf("release = %x, want buffer 0", pkt[:n])
	}
	if got := len(sim.Commits()); got < 2 {
		t.Fatalf("commits = %d, want a commit per frame", got)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("streamVideo = %v, want nil after cancel", err)
	}
}
