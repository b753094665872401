package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fleetview/backend/internal/domain"
	"github.com/fleetview/backend/internal/observability"
	"github.com/fleetview/backend/pkg/utils"
)

// TrailChange describes what applying an update did to the trail
type TrailChange string

const (
	TrailReset     TrailChange = "reset"
	TrailAppended  TrailChange = "append"
	TrailEvicted   TrailChange = "evict"
	TrailDuplicate TrailChange = "duplicate"
	TrailSkipped   TrailChange = "skipped"
)

const trailSaveTimeout = 2 * time.Second

// TrailManager keeps the bounded, persisted history of the tracked vehicle.
// It never holds points from two vehicles at once.
type TrailManager struct {
	store domain.TrailStore

	mu        sync.Mutex
	points    *utils.BoundedSequence[domain.Coordinate]
	vehicleID string
	key       string
}

// NewTrailManager creates a manager keeping at most capacity points
func NewTrailManager(store domain.TrailStore, capacity int) *TrailManager {
	if capacity <= 0 {
		capacity = domain.MaxTrailPoints
	}
	return &TrailManager{
		store:  store,
		points: utils.NewBoundedSequence[domain.Coordinate](capacity),
	}
}

// Apply folds one update into the trail. A different vehicle resets the
// trail to the update's point; the same vehicle extends it unless the point
// has not moved. Every mutation is persisted on a best-effort basis.
func (m *TrailManager) Apply(ctx context.Context, u domain.PositionUpdate) TrailChange {
	if !u.Usable() {
		return TrailSkipped
	}
	point := u.Coordinate()
	key := domain.TrailKey(u.VehicleID)

	m.mu.Lock()
	defer m.mu.Unlock()

	var change TrailChange
	switch {
	case key != m.key:
		m.points.Reset()
		m.points.Push(point)
		m.vehicleID = u.VehicleID
		m.key = key
		change = TrailReset
	default:
		last, ok := m.points.Last()
		if ok && utils.NearlyEqual(last.Lat, point.Lat, domain.TrailEpsilon) &&
			utils.NearlyEqual(last.Lng, point.Lng, domain.TrailEpsilon) {
			observability.TrailChanges.WithLabelValues(string(TrailDuplicate)).Inc()
			return TrailDuplicate
		}
		change = TrailAppended
		if m.points.Push(point) {
			change = TrailEvicted
		}
	}

	observability.TrailChanges.WithLabelValues(string(change)).Inc()
	m.persistLocked(ctx)
	return change
}

// Restore loads the persisted trail for vehicleID and makes it the tracked
// vehicle, so the next update for it extends the stored history. A missing
// or unreadable trail leaves an empty trail for that vehicle.
func (m *TrailManager) Restore(ctx context.Context, vehicleID string) int {
	key := domain.TrailKey(vehicleID)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.points.Reset()
	m.vehicleID = vehicleID
	m.key = key

	if m.store == nil {
		return 0
	}
	trail, err := m.store.Load(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrTrailNotFound) {
			log.Warn().Err(err).Str("key", key).Msg("Failed to restore trail")
		}
		return 0
	}
	for _, p := range trail {
		m.points.Push(p)
	}
	return m.points.Len()
}

// Forget stops associating the trail with a vehicle without erasing the
// points. The next update of any vehicle starts a fresh trail.
func (m *TrailManager) Forget() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vehicleID = ""
	m.key = ""
}

// Points returns a copy of the trail, oldest first
func (m *TrailManager) Points() domain.Trail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.Trail(m.points.Slice())
}

// Len returns the number of points
func (m *TrailManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.points.Len()
}

// VehicleID returns the vehicle the trail belongs to, or "" if none
func (m *TrailManager) VehicleID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.vehicleID
}

// Tracks reports whether vehicleID maps to the trail's storage key
func (m *TrailManager) Tracks(vehicleID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.key != "" && m.key == domain.TrailKey(vehicleID)
}

// persistLocked writes the whole trail. Failures are logged and counted;
// the in-memory trail stays authoritative.
func (m *TrailManager) persistLocked(ctx context.Context) {
	if m.store == nil {
		return
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), trailSaveTimeout)
	defer cancel()

	if err := m.store.Save(saveCtx, m.key, domain.Trail(m.points.Slice())); err != nil {
		observability.TrailSaveErrors.Inc()
		log.Warn().Err(err).Str("key", m.key).Str("vehicle", m.vehicleID).Msg("Failed to persist trail")
	}
}
