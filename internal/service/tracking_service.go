package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"

	"github.com/fleetview/backend/internal/domain"
	"github.com/fleetview/backend/internal/observability"
)

// ErrSessionNotFound is returned for an unknown or reaped session id
var ErrSessionNotFound = errors.New("session not found")

const maxFanOut = 16

var _ domain.Publisher = (*TrackingService)(nil)

// session is one mounted map
type session struct {
	id        string
	renderer  *MapRenderer
	createdAt time.Time

	mu       sync.Mutex
	lastSeen time.Time
}

func (s *session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// SessionInfo describes an open session
type SessionInfo struct {
	ID        string    `json:"id"`
	VehicleID string    `json:"vehicle_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	LastSeen  time.Time `json:"last_seen"`
}

// TrackingService owns every open map session and routes position updates
// to the sessions tracking the update's vehicle.
type TrackingService struct {
	store    TrailStore
	geocoder domain.Geocoder
	opts     MapOptions
	ttl      time.Duration
	now      func() time.Time

	mu       sync.RWMutex
	sessions map[string]*session
}

// NewTrackingService creates a new tracking service. A zero ttl disables reaping.
func NewTrackingService(store TrailStore, geocoder domain.Geocoder, opts MapOptions, ttl time.Duration) *TrackingService {
	return &TrackingService{
		store:    store,
		geocoder: geocoder,
		opts:     opts,
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*session),
	}
}

// CreateSession mounts a new map. If vehicleID is set the map starts out
// tracking it with its persisted trail restored.
func (s *TrackingService) CreateSession(ctx context.Context, vehicleID string) SessionInfo {
	now := s.now()
	sess := &session{
		id:        uuid.NewString(),
		renderer:  NewMapRenderer(s.opts, s.store, s.geocoder, nil),
		createdAt: now,
		lastSeen:  now,
	}
	if vehicleID != "" {
		sess.renderer.Track(ctx, vehicleID)
	}

	s.mu.Lock()
	s.sessions[sess.id] = sess
	observability.ActiveSessions.Set(float64(len(s.sessions)))
	s.mu.Unlock()

	log.Info().Str("session", sess.id).Str("vehicle", vehicleID).Msg("Map session created")
	return s.info(sess)
}

func (s *TrackingService) info(sess *session) SessionInfo {
	return SessionInfo{
		ID:        sess.id,
		VehicleID: sess.renderer.VehicleID(),
		CreatedAt: sess.createdAt,
		LastSeen:  sess.idleSince(),
	}
}

func (s *TrackingService) get(id string) (*session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("service: %w: %s", ErrSessionNotFound, id)
	}
	sess.touch(s.now())
	return sess, nil
}

// Session returns the session's description
func (s *TrackingService) Session(id string) (SessionInfo, error) {
	sess, err := s.get(id)
	if err != nil {
		return SessionInfo{}, err
	}
	return s.info(sess), nil
}

// Sessions lists every open session
func (s *TrackingService) Sessions() []SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]SessionInfo, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, s.info(sess))
	}
	return out
}

// Frame renders the session's map
func (s *TrackingService) Frame(id string) (domain.RenderFrame, error) {
	sess, err := s.get(id)
	if err != nil {
		return domain.RenderFrame{}, err
	}
	return sess.renderer.Frame(), nil
}

// SelectVehicle points the session at vehicleID and restores its trail
func (s *TrackingService) SelectVehicle(ctx context.Context, id, vehicleID string) (int, error) {
	sess, err := s.get(id)
	if err != nil {
		return 0, err
	}
	return sess.renderer.Track(ctx, vehicleID), nil
}

// ClearVehicle stops tracking in the session
func (s *TrackingService) ClearVehicle(id string) error {
	sess, err := s.get(id)
	if err != nil {
		return err
	}
	sess.renderer.HandleVehicleCleared()
	return nil
}

// PushToSession delivers u to one session only, whatever it was tracking
func (s *TrackingService) PushToSession(ctx context.Context, id string, u domain.PositionUpdate) error {
	sess, err := s.get(id)
	if err != nil {
		return err
	}
	sess.renderer.HandlePositionUpdate(ctx, u)
	return nil
}

// UserZoom records a zoom gesture in the session
func (s *TrackingService) UserZoom(id string, zoom float64) error {
	sess, err := s.get(id)
	if err != nil {
		return err
	}
	sess.renderer.HandleUserZoom(zoom)
	return nil
}

// UserPan records a pan gesture in the session
func (s *TrackingService) UserPan(id string, center domain.Coordinate) error {
	sess, err := s.get(id)
	if err != nil {
		return err
	}
	sess.renderer.HandleUserPan(center)
	return nil
}

// CloseSession unmounts the session's map
func (s *TrackingService) CloseSession(id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
		observability.ActiveSessions.Set(float64(len(s.sessions)))
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("service: %w: %s", ErrSessionNotFound, id)
	}

	sess.renderer.Close()
	log.Info().Str("session", id).Msg("Map session closed")
	return nil
}

// Publish delivers u to every session tracking its vehicle and returns how
// many received it. Sessions are independent, so they are updated concurrently.
func (s *TrackingService) Publish(ctx context.Context, u domain.PositionUpdate) int {
	if u.VehicleID == "" {
		observability.UpdatesMalformed.Inc()
		return 0
	}

	s.mu.RLock()
	targets := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		if sess.renderer.Tracks(u.VehicleID) {
			targets = append(targets, sess)
		}
	}
	s.mu.RUnlock()

	p := pool.New().WithMaxGoroutines(maxFanOut)
	for _, sess := range targets {
		p.Go(func() {
			sess.renderer.HandlePositionUpdate(ctx, u)
		})
	}
	p.Wait()
	return len(targets)
}

// Trail returns the persisted trail of vehicleID
func (s *TrackingService) Trail(ctx context.Context, vehicleID string) (domain.Trail, error) {
	trail, err := s.store.Load(ctx, domain.TrailKey(vehicleID))
	if err != nil {
		return nil, fmt.Errorf("service: failed to load trail: %w", err)
	}
	return trail, nil
}

// DeleteTrail removes the persisted trail of vehicleID
func (s *TrackingService) DeleteTrail(ctx context.Context, vehicleID string) error {
	if err := s.store.Delete(ctx, domain.TrailKey(vehicleID)); err != nil {
		return fmt.Errorf("service: failed to delete trail: %w", err)
	}
	return nil
}

// ReapIdle closes sessions not used since ttl before now
func (s *TrackingService) ReapIdle(now time.Time) int {
	if s.ttl <= 0 {
		return 0
	}

	var stale []string
	s.mu.RLock()
	for id, sess := range s.sessions {
		if now.Sub(sess.idleSince()) > s.ttl {
			stale = append(stale, id)
		}
	}
	s.mu.RUnlock()

	reaped := 0
	for _, id := range stale {
		if err := s.CloseSession(id); err == nil {
			reaped++
		}
	}
	if reaped > 0 {
		log.Info().Int("count", reaped).Msg("Reaped idle map sessions")
	}
	return reaped
}

// Run reaps idle sessions until ctx is done
func (s *TrackingService) Run(ctx context.Context) {
	if s.ttl <= 0 {
		return
	}
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.ReapIdle(s.now())
		}
	}
}

// Shutdown closes every session, waiting for their background lookups
func (s *TrackingService) Shutdown() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*session)
	observability.ActiveSessions.Set(0)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.renderer.Close()
	}
}

type healthChecker interface {
	Health(ctx context.Context) error
}

// Health checks trail storage and, when it supports it, the geocoder
func (s *TrackingService) Health(ctx context.Context) map[string]string {
	status := map[string]string{"storage": "ok", "geocoder": "ok"}
	if err := s.store.Health(ctx); err != nil {
		status["storage"] = err.Error()
	}
	if hc, ok := s.geocoder.(healthChecker); ok {
		if err := hc.Health(ctx); err != nil {
			status["geocoder"] = err.Error()
		}
	}
	return status
}
