package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"net"
	"net/http"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mncam/surface/internal/ui"
	"github.com/mncam/surface/pkg/camera"
)

type nopSink struct{}

func (nopSink) SetOverlay(*image.NRGBA, string, int) error { return nil }
func (nopSink) SetOpacity(string, int, float64) error      { return nil }
func (nopSink) Commit() error                              { return nil }

type rig struct {
	cam     *camera.SimCamera
	surface *ui.Surface
	srv     *Server
	base    string
}

// newRig runs a surface on a simulated camera and serves the API for it
// on a loopback port.
func newRig(t *testing.T, tally bool) *rig {
	t.Helper()
	cam := camera.NewSimCamera(camera.StreamConfig{Format: "YUV420", Width: 1920, Height: 1080, Stride: 1920})
	surface := ui.New(ui.Options{
		Monitor:  "DSI-1",
		Size:     image.Pt(720, 480),
		Interval: 5 * time.Millisecond,
	}, cam, cam, nopSink{}, nil)

	var tl camera.Tally
	if tally {
		tl = cam
	}
	srv := New(Config{System: NewSystem(1920, 1080, 30, true)}, surface, tl)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go surface.Run(ctx)
	go func() { served <- srv.Serve(ctx, l) }()
	t.Cleanup(func() {
		cancel()
		if err := <-served; err != nil {
			t.Errorf("Serve: %v", err)
		}
	})

	r := &rig{cam: cam, surface: surface, srv: srv, base: "http://" + l.Addr().String() + Prefix}
	r.waitReady(t)
	return r
}

// waitReady waits for the first published snapshot.
func (r *rig) waitReady(t *testing.T) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for r.srv.value(PropGain) == nil {
		if time.Now().After(deadline) {
			t.Fatalf("surface never ticked")
		}
		time.Sleep(time.Millisecond)
	}
}

func (r *rig) do(t *testing.T, method, path, body string, out any) int {
	t.Helper()
	req, err := http.NewRequest(method, r.base+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return resp.StatusCode
}

func TestSystem(t *testing.T) {
	r := newRig(t, false)
	var sys System
	if code := r.do(t, "GET", "/system", "", &sys); code != http.StatusOK {
		t.Fatalf("GET /system = %d", code)
	}
	if sys.VideoFormat.Name != "1080p30" || sys.CodecFormat.Codec != "H.264" {
		t.Fatalf("system = %+v", sys)
	}
}

func TestAutoExposureRoundTrip(t *testing.T) {
	r := newRig(t, false)

	var ae AutoExposure
	if code := r.do(t, "GET", "/video/autoExposure", "", &ae); code != http.StatusOK {
		t.Fatalf("GET = %d", code)
	}
	if ae.Mode != ModeContinuous {
		t.Fatalf("mode = %q, want Continuous", ae.Mode)
	}

	if code := r.do(t, "PUT", "/video/autoExposure", `{"mode":"Off"}`, &ae); code != http.StatusOK {
		t.Fatalf("PUT = %d", code)
	}
	if ae.Mode != ModeOff {
		t.Fatalf("PUT answered mode %q, want Off", ae.Mode)
	}
	if r.cam.AutoExposure() {
		t.Fatalf("camera auto exposure still on")
	}

	if code := r.do(t, "PUT", "/video/autoExposure", `{`, nil); code != http.StatusBadRequest {
		t.Fatalf("PUT with a broken body = %d, want 400", code)
	}
}

func TestGainAndShutterAreClamped(t *testing.T) {
	r := newRig(t, false)

	var g Gain
	if code := r.do(t, "PUT", "/video/gain", `{"gain":40}`, &g); code != http.StatusOK {
		t.Fatalf("PUT gain = %d", code)
	}
	if g.Gain != 12 {
		t.Fatalf("gain = %v, want the 12 dB ceiling", g.Gain)
	}

	var sh Shutter
	if code := r.do(t, "PUT", "/video/shutter", `{"shutterSpeed":100}`, &sh); code != http.StatusOK {
		t.Fatalf("PUT shutter = %d", code)
	}
	if sh.ShutterSpeed != 100 {
		t.Fatalf("shutter = 1/%d, want 1/100", sh.ShutterSpeed)
	}
	if code := r.do(t, "PUT", "/video/shutter", `{"shutterSpeed":0}`, nil); code != http.StatusBadRequest {
		t.Fatalf("PUT shutter 1/0 = %d, want 400", code)
	}

	calls := r.cam.Calls()
	if !slices.Contains(calls, "gain=12") || !slices.Contains(calls, "shutter=1/100") {
		t.Fatalf("calls = %v", calls)
	}
}

func TestDoAutoWhiteBalance(t *testing.T) {
	r := newRig(t, false)
	if code := r.do(t, "PUT", "/video/whiteBalance/doAuto", "", nil); code != http.StatusNoContent {
		t.Fatalf("PUT doAuto = %d, want 204", code)
	}
	if !slices.Contains(r.cam.Calls(), "wb=once") {
		t.Fatalf("calls = %v, want wb=once", r.cam.Calls())
	}
}

func TestTally(t *testing.T) {
	r := newRig(t, true)
	var tl Tally
	if code := r.do(t, "PUT", "/tally", `{"state":"program"}`, &tl); code != http.StatusOK {
		t.Fatalf("PUT tally = %d", code)
	}
	if tl.State != "program" || r.cam.Tally() != camera.TallyProgram {
		t.Fatalf("tally = %q, camera %d", tl.State, r.cam.Tally())
	}
	if code := r.do(t, "PUT", "/tally", `{"state":"amber"}`, nil); code != http.StatusBadRequest {
		t.Fatalf("PUT unknown tally = %d, want 400", code)
	}

	none := newRig(t, false)
	if code := none.do(t, "GET", "/tally", "", nil); code != http.StatusNotFound {
		t.Fatalf("GET tally without a light = %d, want 404", code)
	}
}

func TestCORS(t *testing.T) {
	r := newRig(t, false)
	req, _ := http.NewRequest("GET", r.base+"/system", nil)
	req.Header.Set("Origin", "http://remote.example")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("Allow-Origin = %q, want *", got)
	}
}

type wsEvent struct {
	Type string `json:"type"`
	Data struct {
		Action     string          `json:"action"`
		Property   string          `json:"property"`
		Properties []string        `json:"properties"`
		Value      json.RawMessage `json:"value"`
	} `json:"data"`
}

func dialEvents(t *testing.T, r *rig) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(r.base, "http") + "/event/websocket"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func request(t *testing.T, conn *websocket.Conn, req Request) {
	t.Helper()
	data, _ := json.Marshal(req)
	if err := conn.WriteJSON(Message{Type: "request", Data: data}); err != nil {
		t.Fatalf("write request: %v", err)
	}
}

func TestWebsocketListsProperties(t *testing.T) {
	r := newRig(t, false)
	conn := dialEvents(t, r)

	request(t, conn, Request{Action: "listProperties"})
	var ev wsEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read: %v", err)
	}
	if ev.Type != "response" || !slices.Equal(ev.Data.Properties, Properties) {
		t.Fatalf("response = %+v", ev)
	}
}

func TestWebsocketPushesSubscribedChanges(t *testing.T) {
	r := newRig(t, false)
	conn := dialEvents(t, r)

	request(t, conn, Request{Action: "subscribe", Properties: []string{PropWhiteBalance, "/colour/lift"}})
	var ev wsEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read: %v", err)
	}
	if ev.Type != "event" || ev.Data.Property != PropWhiteBalance {
		t.Fatalf("first event = %+v, want the current white balance", ev)
	}

	// A change to a property nobody asked for is not sent; the white
	// balance report that follows is.
	if code := r.do(t, "PUT", "/video/gain", `{"gain":6}`, nil); code != http.StatusOK {
		t.Fatalf("PUT gain = %d", code)
	}
	r.surface.UpdateMetadata(camera.Metadata{ExposureTime: 10000, AnalogueGain: 4, ColourTemperature: 3200})

	for {
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("read: %v", err)
		}
		if ev.Data.Property != PropWhiteBalance {
			t.Fatalf("event for %q, want only white balance", ev.Data.Property)
		}
		var wb WhiteBalance
		if err := json.Unmarshal(ev.Data.Value, &wb); err != nil {
			t.Fatalf("decode value: %v", err)
		}
		if wb.WhiteBalance == 3200 {
			return
		}
	}
}

func TestProperties(t *testing.T) {
	got := properties(ui.Snapshot{Shutter: 0.02, Gain: 6, WhiteBalance: 5600, AutoExposure: true})
	if sh := got[PropShutter].(Shutter); sh.ShutterSpeed != 50 || !sh.ContinuousShutterAutoExposure {
		t.Fatalf("shutter = %+v", sh)
	}
	if ae := got[PropAutoExposure].(AutoExposure); ae.Mode != ModeContinuous {
		t.Fatalf("auto exposure = %+v", ae)
	}
	body, _ := json.Marshal(got[PropGain])
	if !bytes.Equal(body, []byte(`{"gain":6}`)) {
		t.Fatalf("gain json = %s", body)
	}
}
