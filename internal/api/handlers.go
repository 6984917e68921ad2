package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/mncam/surface/internal/ui"
	"github.com/mncam/surface/pkg/camera"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return false
	}
	return true
}

// apply runs fn on the surface tick and answers with the resulting value
// of prop.
func (s *Server) apply(w http.ResponseWriter, r *http.Request, prop string, fn func() error) {
	var snap ui.Snapshot
	err := s.surface.Do(r.Context(), func() error {
		err := fn()
		snap = s.surface.Snapshot()
		return err
	})
	switch {
	case err != nil && r.Context().Err() != nil:
		writeError(w, http.StatusServiceUnavailable, err)
	case err != nil:
		writeError(w, http.StatusBadGateway, err)
	default:
		writeJSON(w, http.StatusOK, properties(snap)[prop])
	}
}

func (s *Server) getSystem(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg.System)
}

func (s *Server) getProperty(prop string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v := s.value(prop)
		if v == nil {
			writeError(w, http.StatusServiceUnavailable, errors.New("camera state not known yet"))
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

// putAutoExposure turns the exposure loop off for mode Off and on for any
// other mode.
func (s *Server) putAutoExposure(w http.ResponseWriter, r *http.Request) {
	var req AutoExposure
	if !decode(w, r, &req) {
		return
	}
	on := req.Mode != ModeOff
	s.apply(w, r, PropAutoExposure, func() error { return s.surface.EnableAutoExposure(on) })
}

func (s *Server) putGain(w http.ResponseWriter, r *http.Request) {
	var req Gain
	if !decode(w, r, &req) {
		return
	}
	s.apply(w, r, PropGain, func() error { return s.surface.SetGain(req.Gain) })
}

func (s *Server) putShutter(w http.ResponseWriter, r *http.Request) {
	var req Shutter
	if !decode(w, r, &req) {
		return
	}
	if req.ShutterSpeed <= 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("shutter speed 1/%d", req.ShutterSpeed))
		return
	}
	seconds := 1 / float64(req.ShutterSpeed)
	s.apply(w, r, PropShutter, func() error { return s.surface.SetShutter(seconds) })
}

func (s *Server) doAutoWhiteBalance(w http.ResponseWriter, r *http.Request) {
	err := s.surface.Do(r.Context(), s.surface.OneShotWhiteBalance)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getTally(w http.ResponseWriter, r *http.Request) {
	if s.tally == nil {
		writeError(w, http.StatusNotFound, errors.New("no tally light"))
		return
	}
	writeJSON(w, http.StatusOK, s.value(PropTally))
}

func (s *Server) putTally(w http.ResponseWriter, r *http.Request) {
	if s.tally == nil {
		writeError(w, http.StatusNotFound, errors.New("no tally light"))
		return
	}
	var req Tally
	if !decode(w, r, &req) {
		return
	}
	b, err := camera.ParseTally(req.State)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.SetTally(b); err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, Tally{State: camera.TallyName(b)})
}

// SetTally switches the tally light and tells subscribers.
func (s *Server) SetTally(state byte) error {
	if s.tally == nil {
		return errors.New("api: no tally light")
	}
	if err := s.tally.SetTally(state); err != nil {
		return err
	}
	s.mu.Lock()
	s.light = state
	s.mu.Unlock()
	s.hub.publish(PropTally, Tally{State: camera.TallyName(state)})
	return nil
}
