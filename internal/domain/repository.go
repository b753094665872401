package domain

import (
	"context"
	"errors"
	"time"
)

// ErrTrailNotFound is returned by TrailStore.Load when nothing is stored under the key
var ErrTrailNotFound = errors.New("trail not found")

// TrailStore defines durable per-vehicle trail storage.
type TrailStore interface {
	// Load returns the trail stored under key, or ErrTrailNotFound
	Load(ctx context.Context, key string) (Trail, error)

	// Save overwrites the trail stored under key
	Save(ctx context.Context, key string, trail Trail) error

	// Delete removes the trail stored under key
	Delete(ctx context.Context, key string) error

	// Health checks storage connectivity
	Health(ctx context.Context) error
}

// Geocoder resolves a coordinate to a human-readable label
type Geocoder interface {
	ReverseGeocode(ctx context.Context, c Coordinate) (string, error)
}

// MarkerHandle is a low-level handle on the rendered marker. Pushing a
// position through it bypasses a full re-render.
type MarkerHandle interface {
	SetPosition(lat, lng float64)
}

// Viewport is the map camera
type Viewport interface {
	Center() Coordinate
	Zoom() float64
	// FlyTo moves the camera with a smooth transition
	FlyTo(center Coordinate, zoom float64, duration time.Duration)
	// SetView moves the camera instantly
	SetView(center Coordinate, zoom float64)
}

// AnimationTicker drives a single interpolation at a time. Starting a new
// interpolation or calling Cancel stops the previous one; no onTick or onDone
// of a cancelled run fires after Cancel returns.
type AnimationTicker interface {
	Start(from, to Coordinate, duration time.Duration, onTick func(Coordinate), onDone func())
	Cancel()
}

// Publisher accepts position updates from a transport and returns how many
// map sessions received them
type Publisher interface {
	Publish(ctx context.Context, u PositionUpdate) int
}
