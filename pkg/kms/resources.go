package kms

import (
	"fmt"
	"sync"
)

// resources holds the mode objects of a device and which of them are in
// use. Card and Sim share it so both follow the same reservation rules.
type resources struct {
	mu         sync.Mutex
	connectors []*Connector
	crtcs      []*CRTC
	planes     []*Plane
	reserved   map[ObjectID]bool
}

func (r *resources) init() {
	r.reserved = make(map[ObjectID]bool)
}

func (r *resources) Connectors() []*Connector {
	return r.connectors
}

func (r *resources) ReserveConnector(name string) (*Connector, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.connectors {
		if name != "" && c.Name != name {
			continue
		}
		if !c.Connected || r.reserved[c.ID] {
			continue
		}
		r.reserved[c.ID] = true
		return c, nil
	}
	if name == "" {
		return nil, ErrNoConnector
	}
	return nil, fmt.Errorf("%w: %s", ErrNoConnector, name)
}

// ReserveCRTC prefers the CRTC already driving conn so an existing mode can
// be kept, then falls back to any free CRTC the connector's encoders reach.
func (r *resources) ReserveCRTC(conn *Connector) (*CRTC, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.crtcs {
		if c.ID == conn.CurrentCRTC && !r.reserved[c.ID] {
			r.reserved[c.ID] = true
			return c, nil
		}
	}
	for _, c := range r.crtcs {
		if conn.PossibleCRTCs&(1<<uint(c.Index)) == 0 || r.reserved[c.ID] {
			continue
		}
		r.reserved[c.ID] = true
		return c, nil
	}
	return nil, fmt.Errorf("%w for %s", ErrNoCRTC, conn.Name)
}

func (r *resources) ReservePlane(crtc *CRTC, format Format, typ PlaneType) (*Plane, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.planes {
		if p.Type != typ || r.reserved[p.ID] {
			continue
		}
		if p.PossibleCRTCs&(1<<uint(crtc.Index)) == 0 || !p.Supports(format) {
			continue
		}
		r.reserved[p.ID] = true
		return p, nil
	}
	return nil, fmt.Errorf("%w: %s plane for %s on crtc %d", ErrNoPlane, typ, format, crtc.ID)
}

func (r *resources) Release(id ObjectID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.reserved, id)
}

func (r *resources) isReserved(id ObjectID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reserved[id]
}

func (r *resources) crtc(id ObjectID) *CRTC {
	for _, c := range r.crtcs {
		if c.ID == id {
			return c
		}
	}
	return nil
}
