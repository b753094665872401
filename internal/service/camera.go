package service

import (
	"strings"
	"sync"
	"time"

	"github.com/fleetview/backend/internal/domain"
)

// CameraOptions configures a CameraController
type CameraOptions struct {
	Overview               domain.Coordinate
	OverviewZoom           float64
	ArrivalZoom            float64
	ArrivalFlightDuration  time.Duration
	TrackingFlightDuration time.Duration
}

// DefaultCameraOptions returns the stock camera behaviour
func DefaultCameraOptions() CameraOptions {
	return CameraOptions{
		Overview:               domain.OverviewCenter,
		OverviewZoom:           domain.OverviewZoom,
		ArrivalZoom:            domain.ArrivalZoom,
		ArrivalFlightDuration:  domain.ArrivalFlightDuration,
		TrackingFlightDuration: domain.TrackingFlightDuration,
	}
}

// CameraController decides for each position whether the camera follows
// automatically or keeps the zoom the user picked. One controller belongs
// to one map instance.
type CameraController struct {
	viewport    domain.Viewport
	opts        CameraOptions
	initialZoom float64

	mu        sync.Mutex
	mode      domain.CameraMode
	state     domain.CameraState
	vehicleID string
}

// NewCameraController captures the viewport's current zoom as the initial
// zoom used while following without user override.
func NewCameraController(viewport domain.Viewport, opts CameraOptions) *CameraController {
	zoom := viewport.Zoom()
	return &CameraController{
		viewport:    viewport,
		opts:        opts,
		initialZoom: zoom,
		mode:        domain.CameraNoVehicle,
		state:       domain.CameraState{LastKnownZoom: zoom},
	}
}

// OnPositionUpdate moves the camera for a new position of vehicleID. A
// newly selected or changed vehicle gets a one-time arrival flight; after
// that the camera follows, at the initial zoom unless the user has zoomed.
// A position without a fix falls back to the overview but keeps the
// vehicle, so its next fix resumes following instead of arriving again.
func (c *CameraController) OnPositionUpdate(vehicleID string, pos domain.Coordinate) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !pos.Valid() {
		c.mode = domain.CameraNoVehicle
		c.snapToOverviewLocked()
		return
	}

	if !sameVehicle(c.vehicleID, vehicleID) {
		c.mode = domain.CameraInitialArrival
		c.vehicleID = vehicleID
	}

	switch c.mode {
	case domain.CameraInitialArrival:
		c.viewport.FlyTo(pos, c.opts.ArrivalZoom, c.opts.ArrivalFlightDuration)
	default:
		zoom := c.initialZoom
		if c.state.HasUserInteracted {
			zoom = c.viewport.Zoom()
		}
		c.viewport.FlyTo(pos, zoom, c.opts.TrackingFlightDuration)
	}
	c.mode = domain.CameraTracking
	c.state.LastKnownZoom = c.viewport.Zoom()
}

// OnUserZoom marks the camera as user-controlled for the rest of the map's life
func (c *CameraController) OnUserZoom() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.HasUserInteracted = true
	c.state.LastKnownZoom = c.viewport.Zoom()
}

// OnVehicleCleared returns to the overview, unless the user has taken over
// the camera, in which case it stays where the user left it.
func (c *CameraController) OnVehicleCleared() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = domain.CameraNoVehicle
	c.vehicleID = ""
	c.snapToOverviewLocked()
}

func (c *CameraController) snapToOverviewLocked() {
	if c.state.HasUserInteracted {
		return
	}
	c.viewport.SetView(c.opts.Overview, c.opts.OverviewZoom)
	c.state.LastKnownZoom = c.opts.OverviewZoom
}

// Mode returns the follow state
func (c *CameraController) Mode() domain.CameraMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// State returns the interaction record
func (c *CameraController) State() domain.CameraState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// InitialZoom returns the zoom captured at construction
func (c *CameraController) InitialZoom() float64 {
	return c.initialZoom
}

func sameVehicle(a, b string) bool {
	return domain.TrailKey(a) == domain.TrailKey(b) && strings.TrimSpace(a) != ""
}
