package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fleetview/backend/internal/domain"
	"github.com/fleetview/backend/internal/observability"
	"github.com/fleetview/backend/pkg/utils"
)

// MapOptions configures one map instance
type MapOptions struct {
	Camera            CameraOptions
	InitialZoom       float64
	AnimationDuration time.Duration
	FrameInterval     time.Duration
	TrailCap          int
	GeocodeTimeout    time.Duration

	// Ticker overrides the frame ticker, mainly for tests
	Ticker domain.AnimationTicker
}

// DefaultMapOptions returns the stock map behaviour
func DefaultMapOptions() MapOptions {
	return MapOptions{
		Camera:            DefaultCameraOptions(),
		InitialZoom:       domain.InitialZoom,
		AnimationDuration: DefaultAnimationDuration,
		FrameInterval:     DefaultFrameInterval,
		TrailCap:          domain.MaxTrailPoints,
		GeocodeTimeout:    DefaultGeocodeTimeout,
	}
}

// MapRenderer composes the animator, trail, camera and address resolver of
// a single map instance and produces render frames from their state.
type MapRenderer struct {
	viewport *MapViewport
	camera   *CameraController
	trail    *TrailManager
	animator *PositionAnimator
	address  *AddressResolver

	// mu serializes updates so trail and camera observe them in order
	mu     sync.Mutex
	latest *domain.PositionUpdate
}

// NewMapRenderer mounts a map at the overview. marker may be nil.
func NewMapRenderer(opts MapOptions, store domain.TrailStore, geocoder domain.Geocoder, marker domain.MarkerHandle) *MapRenderer {
	ticker := opts.Ticker
	if ticker == nil {
		ticker = NewFrameTicker(opts.FrameInterval)
	}
	overview := opts.Camera.Overview

	viewport := NewMapViewport(overview, opts.InitialZoom)
	r := &MapRenderer{
		viewport: viewport,
		camera:   NewCameraController(viewport, opts.Camera),
		trail:    NewTrailManager(store, opts.TrailCap),
		animator: NewPositionAnimator(ticker, marker, overview, opts.AnimationDuration),
		address:  NewAddressResolver(geocoder, opts.GeocodeTimeout),
	}
	r.camera.OnVehicleCleared()
	return r
}

// HandlePositionUpdate applies one update to every component
func (r *MapRenderer) HandlePositionUpdate(ctx context.Context, u domain.PositionUpdate) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !u.Usable() {
		observability.UpdatesMalformed.Inc()
		log.Debug().Str("vehicle", u.VehicleID).Float64("lat", u.Latitude).Float64("lng", u.Longitude).
			Msg("Skipping position update without a usable fix")
		r.camera.OnPositionUpdate(u.VehicleID, domain.Coordinate{})
		return
	}

	pos := u.Coordinate()
	if r.latest != nil && !sameVehicle(r.latest.VehicleID, u.VehicleID) {
		// drop lookups still running for the previous vehicle
		r.address.Clear()
	}

	r.trail.Apply(ctx, u)
	r.camera.OnPositionUpdate(u.VehicleID, pos)
	r.animator.SetTarget(pos)
	r.address.Resolve(ctx, pos)

	r.latest = &u
	observability.UpdatesProcessed.Inc()
}

// Track selects vehicleID before any update has arrived for it, restoring
// its persisted trail. Returns the number of restored points.
func (r *MapRenderer) Track(ctx context.Context, vehicleID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.latest != nil && sameVehicle(r.latest.VehicleID, vehicleID) {
		return r.trail.Len()
	}
	if r.latest == nil && r.trail.Tracks(vehicleID) {
		return r.trail.Len()
	}

	r.latest = nil
	r.address.Clear()

	n := r.trail.Restore(ctx, vehicleID)
	if n == 0 {
		// nothing stored yet: wait at the overview for the first fix
		r.camera.OnVehicleCleared()
		r.animator.SetTarget(r.camera.opts.Overview)
		return 0
	}
	points := r.trail.Points()
	last := points[len(points)-1]
	r.animator.Jump(last)
	r.camera.OnPositionUpdate(vehicleID, last)
	r.address.Resolve(ctx, last)

	log.Debug().Str("vehicle", vehicleID).Int("points", n).Msg("Restored trail")
	return n
}

// HandleUserZoom records a zoom gesture. The camera stops forcing its zoom
// for the rest of the map's life.
func (r *MapRenderer) HandleUserZoom(zoom float64) {
	r.viewport.ApplyUserZoom(zoom)
	r.camera.OnUserZoom()
}

// HandleUserPan records a drag of the map
func (r *MapRenderer) HandleUserPan(center domain.Coordinate) {
	r.viewport.ApplyUserPan(center)
}

// HandleVehicleCleared stops tracking. The trail stays visible.
func (r *MapRenderer) HandleVehicleCleared() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.latest = nil
	r.trail.Forget()
	r.address.Clear()
	r.camera.OnVehicleCleared()
	r.animator.SetTarget(r.camera.opts.Overview)
}

// VehicleID returns the tracked vehicle, or "" if none
func (r *MapRenderer) VehicleID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.latest != nil {
		return r.latest.VehicleID
	}
	return r.trail.VehicleID()
}

// Tracks reports whether vehicleID is the vehicle on this map
func (r *MapRenderer) Tracks(vehicleID string) bool {
	if id := r.VehicleID(); id != "" {
		return sameVehicle(id, vehicleID)
	}
	return false
}

// Frame snapshots everything the map surface draws
func (r *MapRenderer) Frame() domain.RenderFrame {
	r.mu.Lock()
	defer r.mu.Unlock()

	center, zoom, flight, seq := r.viewport.Snapshot()
	points := r.trail.Points()

	frame := domain.RenderFrame{
		View: domain.ViewFrame{
			Center:    center,
			Zoom:      zoom,
			Mode:      r.camera.Mode(),
			Camera:    r.camera.State(),
			FlightMs:  flight.Milliseconds(),
			FlightSeq: seq,
		},
		Address:     r.address.Address(),
		TrailPoints: len(points),
		TrailKm:     utils.RoundTo(trailKm(points), 3),
	}

	switch {
	case len(points) >= 2:
		frame.Polyline = &domain.PolylineFrame{
			Points:  points,
			Color:   domain.TrailColor,
			Weight:  domain.TrailWeight,
			Opacity: domain.TrailOpacity,
		}
	case len(points) == 1:
		frame.Dot = &domain.DotFrame{
			Center: points[0],
			Radius: domain.DotRadius,
			Color:  domain.TrailColor,
		}
	}

	if r.latest == nil {
		frame.VehicleID = r.trail.VehicleID()
		return frame
	}

	u := r.latest
	status := u.Status()
	frame.VehicleID = u.VehicleID
	frame.Marker = &domain.MarkerFrame{
		Position:  r.animator.Position(),
		Heading:   u.Heading,
		Status:    status,
		Color:     status.Color(),
		Ripple:    status.Ripple(),
		Animating: r.animator.Animating(),
	}
	frame.Popup = &domain.PopupFrame{
		Title:     popupTitle(*u),
		VehicleID: u.VehicleID,
		IMEI:      u.IMEI,
		Address:   frame.Address.Label,
		Timestamp: u.Timestamp,
		Power:     onOff(u.PowerConnected, "Connected", "Disconnected"),
		SpeedKmh:  float64(u.Speed),
		Ignition:  onOff(u.IgnitionOn, "On", "Off"),
	}
	return frame
}

// Close stops the animation and waits for address lookups to drain
func (r *MapRenderer) Close() {
	r.animator.Stop()
	r.address.Clear()
	r.address.Wait()
}

func popupTitle(u domain.PositionUpdate) string {
	parts := []string{u.VehicleID}
	if s := strings.TrimSpace(strings.Join([]string{u.VehicleType, u.VehicleModel}, " ")); s != "" {
		parts = append(parts, s)
	}
	return strings.Join(parts, " - ")
}

func onOff(v bool, on, off string) string {
	if v {
		return on
	}
	return off
}

func trailKm(points domain.Trail) float64 {
	var km float64
	for i := 1; i < len(points); i++ {
		km += utils.Haversine(points[i-1].Lat, points[i-1].Lng, points[i].Lat, points[i].Lng)
	}
	return km
}
