package service

import (
	"sync"
	"time"

	"github.com/fleetview/backend/internal/domain"
	"github.com/fleetview/backend/pkg/utils"
)

const (
	minZoom = 0
	maxZoom = 22
)

// MapViewport is the server-side model of a map camera. It keeps the
// resting center and zoom plus the last requested transition, which the
// client replays when the flight sequence changes.
type MapViewport struct {
	mu        sync.RWMutex
	center    domain.Coordinate
	zoom      float64
	flight    time.Duration
	flightSeq uint64
}

// NewMapViewport creates a viewport at center and zoom
func NewMapViewport(center domain.Coordinate, zoom float64) *MapViewport {
	return &MapViewport{center: center, zoom: utils.Clamp(zoom, minZoom, maxZoom)}
}

func (v *MapViewport) Center() domain.Coordinate {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.center
}

func (v *MapViewport) Zoom() float64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.zoom
}

// FlyTo records a smooth transition to center and zoom
func (v *MapViewport) FlyTo(center domain.Coordinate, zoom float64, duration time.Duration) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.center = center
	v.zoom = utils.Clamp(zoom, minZoom, maxZoom)
	v.flight = duration
	v.flightSeq++
}

// SetView records an instant move to center and zoom
func (v *MapViewport) SetView(center domain.Coordinate, zoom float64) {
	v.FlyTo(center, zoom, 0)
}

// ApplyUserZoom records a zoom level chosen by the user
func (v *MapViewport) ApplyUserZoom(zoom float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.zoom = utils.Clamp(zoom, minZoom, maxZoom)
	v.flight = 0
}

// ApplyUserPan records a center chosen by the user
func (v *MapViewport) ApplyUserPan(center domain.Coordinate) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.center = center
	v.flight = 0
}

// Snapshot returns the view for a render frame
func (v *MapViewport) Snapshot() (center domain.Coordinate, zoom float64, flight time.Duration, seq uint64) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.center, v.zoom, v.flight, v.flightSeq
}
