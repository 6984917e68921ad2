// Package api serves the camera's remote control API: REST endpoints under
// /control/api/v1 and a websocket that pushes property changes.
//
// Every request goes through the control surface, so a remote change shows
// up on the touch monitor exactly like a touch would.
package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/handlers"
	"github.com/mncam/surface/internal/ui"
	"github.com/mncam/surface/pkg/camera"
)

// DefaultAddr is where the API listens unless told otherwise.
const DefaultAddr = "0.0.0.0:8000"

// Prefix is the path under which every endpoint lives.
const Prefix = "/control/api/v1"

// Surface is the part of the control surface the API drives. Everything
// but Do and Watch is only called through Do.
type Surface interface {
	Do(ctx context.Context, fn func() error) error
	Watch(fn func(ui.Snapshot))
	Snapshot() ui.Snapshot

	EnableAutoExposure(on bool) error
	OneShotWhiteBalance() error
	SetGain(db float64) error
	SetShutter(seconds float64) error
}

// Config describes the server.
type Config struct {
	Addr   string
	System System
}

// Server is the HTTP side of the remote API.
type Server struct {
	cfg     Config
	surface Surface
	tally   camera.Tally
	hub     *hub

	mu     sync.Mutex
	values map[string]any
	light  byte
}

// New returns a server for surface. It registers a watcher, so it must be
// created before the surface runs. tally may be nil when the camera has
// no tally light.
func New(cfg Config, surface Surface, tally camera.Tally) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	s := &Server{
		cfg:     cfg,
		surface: surface,
		tally:   tally,
		hub:     newHub(),
		values:  make(map[string]any),
	}
	surface.Watch(s.update)
	return s
}

// Handler returns the API routes wrapped for cross-origin use.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+Prefix+"/system", s.getSystem)
	mux.HandleFunc("GET "+Prefix+"/video/autoExposure", s.getProperty(PropAutoExposure))
	mux.HandleFunc("PUT "+Prefix+"/video/autoExposure", s.putAutoExposure)
	mux.HandleFunc("GET "+Prefix+"/video/gain", s.getProperty(PropGain))
	mux.HandleFunc("PUT "+Prefix+"/video/gain", s.putGain)
	mux.HandleFunc("GET "+Prefix+"/video/shutter", s.getProperty(PropShutter))
	mux.HandleFunc("PUT "+Prefix+"/video/shutter", s.putShutter)
	mux.HandleFunc("GET "+Prefix+"/video/whiteBalance", s.getProperty(PropWhiteBalance))
	mux.HandleFunc("PUT "+Prefix+"/video/whiteBalance/doAuto", s.doAutoWhiteBalance)
	mux.HandleFunc("GET "+Prefix+"/tally", s.getTally)
	mux.HandleFunc("PUT "+Prefix+"/tally", s.putTally)
	mux.HandleFunc("GET "+Prefix+"/event/websocket", s.eventWebsocket)

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
		handlers.AllowedMethods([]string{"GET", "HEAD", "PUT", "OPTIONS"}),
	)
	return cors(mux)
}

// ListenAndServe serves until ctx is cancelled, then closes every
// websocket and shuts the listener down.
func (s *Server) ListenAndServe(ctx context.Context) error {
	l, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("api: %w", err)
	}
	return s.Serve(ctx, l)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	go s.hub.run(ctx)

	stop := context.AfterFunc(ctx, func() {
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(sctx)
	})
	defer stop()

	log.Printf("api: listening on %s", l.Addr())
	if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}

// update runs on the surface tick. It keeps the last published values and
// pushes the ones that changed to websocket subscribers.
func (s *Server) update(snap ui.Snapshot) {
	next := properties(snap)
	s.mu.Lock()
	var changed []string
	for _, p := range surfaceProps {
		if s.values[p] != next[p] {
			changed = append(changed, p)
		}
	}
	s.values = next
	s.mu.Unlock()

	for _, p := range changed {
		s.hub.publish(p, next[p])
	}
}

// value returns the last published value of prop, or nil before the
// surface first ticked.
func (s *Server) value(prop string) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prop == PropTally {
		return Tally{State: camera.TallyName(s.light)}
	}
	return s.values[prop]
}
