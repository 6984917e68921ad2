package kms

import (
	"errors"
	"image"
	"image/color"
	"testing"
)

func TestFormatString(t *testing.T) {
	tests := []struct {
		f    Format
		want string
	}{
		{FormatABGR8888, "AB24"},
		{FormatYUV420, "YU12"},
		{FormatRGB888, "RG24"},
		{Format(1), "0x00000001"},
	}
	for _, tt := range tests {
		if got := tt.f.String(); got != tt.want {
			t.Fatalf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestAtomicRequestAddPlane(t *testing.T) {
	req := NewAtomicRequest()
	p := &Plane{ID: 7}
	fb := &Framebuffer{ID: 9}
	crtc := &CRTC{ID: 3}
	req.AddPlane(p, fb, crtc, image.Rect(0, 0, 1920, 1080), image.Rect(0, 60, 1280, 780))

	checks := map[string]uint64{
		"FB_ID":   9,
		"CRTC_ID": 3,
		"SRC_W":   1920 << 16,
		"SRC_H":   1080 << 16,
		"CRTC_Y":  60,
		"CRTC_W":  1280,
		"CRTC_H":  720,
	}
	for prop, want := range checks {
		if got, _ := req.Get(7, prop); got != want {
			t.Fatalf("%s = %d, want %d", prop, got, want)
		}
	}
}

func TestAtomicRequestSetOverwrites(t *testing.T) {
	req := NewAtomicRequest()
	req.Set(1, "alpha", 1)
	req.Set(2, "alpha", 2)
	req.Set(1, "alpha", 3)
	if n := len(req.Properties()); n != 2 {
		t.Fatalf("len(Properties) = %d, want 2", n)
	}
	if v, _ := req.Get(1, "alpha"); v != 3 {
		t.Fatalf("alpha = %d, want 3", v)
	}
	if objs := req.Objects(); len(objs) != 2 || objs[0] != 1 {
		t.Fatalf("Objects = %v", objs)
	}
}

func TestSimReservation(t *testing.T) {
	sim := NewSim(NewSimOutput("HDMI-A-1", 1920, 1080, 60), SimOutput{Name: "DSI-1", Disconnected: true})

	if _, err := sim.ReserveConnector("DSI-1"); !errors.Is(err, ErrNoConnector) {
		t.Fatalf("disconnected connector: err = %v, want ErrNoConnector", err)
	}
	conn, err := sim.ReserveConnector("HDMI-A-1")
	if err != nil {
		t.Fatalf("ReserveConnector: %v", err)
	}
	if _, err := sim.ReserveConnector("HDMI-A-1"); err == nil {
		t.Fatalf("connector reserved twice")
	}
	crtc, err := sim.ReserveCRTC(conn)
	if err != nil {
		t.Fatalf("ReserveCRTC: %v", err)
	}

	// Three overlays, then the pool is empty.
	for i := 0; i < 3; i++ {
		if _, err := sim.ReservePlane(crtc, FormatABGR8888, PlaneOverlay); err != nil {
			t.Fatalf("overlay %d: %v", i, err)
		}
	}
	p, err := sim.ReservePlane(crtc, FormatABGR8888, PlaneOverlay)
	if !errors.Is(err, ErrNoPlane) {
		t.Fatalf("fourth overlay: err = %v, want ErrNoPlane", err)
	}
	if p != nil {
		t.Fatalf("fourth overlay returned a plane")
	}
	if _, err := sim.ReservePlane(crtc, FormatYUV420, PlanePrimary); !errors.Is(err, ErrNoPlane) {
		t.Fatalf("primary does not scan out YU12: err = %v", err)
	}
	primary, err := sim.ReservePlane(crtc, FormatXRGB8888, PlanePrimary)
	if err != nil {
		t.Fatalf("primary: %v", err)
	}
	sim.Release(primary.ID)
	if _, err := sim.ReservePlane(crtc, FormatXRGB8888, PlanePrimary); err != nil {
		t.Fatalf("primary after release: %v", err)
	}
}

func TestDumbBufferMapIsScoped(t *testing.T) {
	sim := NewSim(NewSimOutput("HDMI-A-1", 640, 480, 60))
	b, err := sim.NewDumbBuffer(4, 2, FormatABGR8888)
	if err != nil {
		t.Fatalf("NewDumbBuffer: %v", err)
	}
	boom := errors.New("boom")
	err = b.Map(func(mem []byte, pitch int) error {
		if sim.Mapped() != 1 {
			t.Fatalf("Mapped inside = %d, want 1", sim.Mapped())
		}
		mem[0] = 0xaa
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Map err = %v, want boom", err)
	}
	if sim.Mapped() != 0 {
		t.Fatalf("mapping leaked after error")
	}
	if mem, _ := sim.FramebufferBytes(b.FB.ID); mem[0] != 0xaa {
		t.Fatalf("write not visible")
	}

	if err := b.Destroy(); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if err := b.Destroy(); err != nil {
		t.Fatalf("second Destroy: %v", err)
	}
	if sim.LiveBuffers() != 0 || sim.LiveFramebuffers() != 0 {
		t.Fatalf("buffers = %d, framebuffers = %d after destroy", sim.LiveBuffers(), sim.LiveFramebuffers())
	}
	if err := b.Map(func([]byte, int) error { return nil }); err == nil {
		t.Fatalf("Map after Destroy succeeded")
	}
}

func TestCopyRowsHonoursPitch(t *testing.T) {
	src := []byte{1, 2, 3, 4, 5, 6}
	mem := make([]byte, 8)
	if err := CopyRows(mem, 4, src, 3, 3, 2); err != nil {
		t.Fatalf("CopyRows: %v", err)
	}
	want := []byte{1, 2, 3, 0, 4, 5, 6, 0}
	for i := range want {
		if mem[i] != want[i] {
			t.Fatalf("mem = %v, want %v", mem, want)
		}
	}
	if err := CopyRows(make([]byte, 4), 4, src, 3, 3, 2); err == nil {
		t.Fatalf("short buffer accepted")
	}
}

func TestSimCommitValidates(t *testing.T) {
	sim := NewSim(NewSimOutput("HDMI-A-1", 640, 480, 60))
	conn, _ := sim.ReserveConnector("")
	crtc, _ := sim.ReserveCRTC(conn)
	p, _ := sim.ReservePlane(crtc, FormatABGR8888, PlaneOverlay)

	req := NewAtomicRequest()
	req.Set(p.ID, "FB_ID", 999)
	if err := sim.Commit(req, 0); err == nil {
		t.Fatalf("commit with unknown framebuffer succeeded")
	}
	req = NewAtomicRequest()
	req.Set(p.ID, "bogus", 1)
	if err := sim.Commit(req, 0); err == nil {
		t.Fatalf("commit with unknown property succeeded")
	}

	b, _ := sim.NewDumbBuffer(640, 480, FormatABGR8888)
	req = NewAtomicRequest()
	req.AddPlane(p, b.FB, crtc, image.Rect(0, 0, 640, 480), image.Rect(0, 0, 640, 480))
	if err := sim.Commit(req, CommitTestOnly); err != nil {
		t.Fatalf("test commit: %v", err)
	}
	if len(sim.Commits()) != 0 {
		t.Fatalf("test-only commit was applied")
	}
	if err := sim.Commit(req, 0); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if v, _ := sim.PlaneState(p.ID, "FB_ID"); ObjectID(v) != b.FB.ID {
		t.Fatalf("FB_ID = %d, want %d", v, b.FB.ID)
	}

	b.Destroy()
	if sim.ScanoutViolations() != 1 {
		t.Fatalf("destroying a displayed buffer not counted")
	}
}

func TestSimSnapshot(t *testing.T) {
	sim := NewSim(NewSimOutput("HDMI-A-1", 8, 8, 60))
	conn, _ := sim.ReserveConnector("HDMI-A-1")
	crtc, _ := sim.ReserveCRTC(conn)
	if _, err := sim.Snapshot("HDMI-A-1"); err == nil {
		t.Fatalf("snapshot before modeset succeeded")
	}
	mode, _ := conn.PreferredMode()
	if err := sim.SetMode(conn, crtc, mode); err != nil {
		t.Fatalf("SetMode: %v", err)
	}

	p, _ := sim.ReservePlane(crtc, FormatABGR8888, PlaneOverlay)
	b, _ := sim.NewDumbBuffer(4, 4, FormatABGR8888)
	b.Map(func(mem []byte, pitch int) error {
		for i := 0; i < len(mem); i += 4 {
			mem[i], mem[i+1], mem[i+2], mem[i+3] = 255, 0, 0, 255
		}
		return nil
	})
	req := NewAtomicRequest()
	req.AddPlane(p, b.FB, crtc, image.Rect(0, 0, 4, 4), image.Rect(4, 4, 8, 8))
	if err := sim.Commit(req, 0); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	img, err := sim.Snapshot("HDMI-A-1")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if got := img.NRGBAAt(6, 6); got != (color.NRGBA{255, 0, 0, 255}) {
		t.Fatalf("inside plane = %v, want red", got)
	}
	if got := img.NRGBAAt(1, 1); got != (color.NRGBA{0, 0, 0, 255}) {
		t.Fatalf("outside plane = %v, want black", got)
	}
}
