package postgres

import (
	"context"
	"errors"
	"sync"

	"github.com/fleetview/backend/internal/domain"
)

// ErrStorageUnavailable is returned by a MockRepository set to fail
var ErrStorageUnavailable = errors.New("storage unavailable")

// MockRepository implements domain.TrailStore in memory for tests/demo mode
type MockRepository struct {
	mu     sync.RWMutex
	trails map[string]domain.Trail
	failOn map[string]bool
	saves  int
}

// NewMockRepository creates a new mock repository
func NewMockRepository() *MockRepository {
	return &MockRepository{
		trails: make(map[string]domain.Trail),
		failOn: make(map[string]bool),
	}
}

// FailSaves makes every subsequent Save return ErrStorageUnavailable, the
// way a full or disabled store behaves.
func (r *MockRepository) FailSaves(fail bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failOn["save"] = fail
}

// FailLoads makes every subsequent Load return ErrStorageUnavailable
func (r *MockRepository) FailLoads(fail bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failOn["load"] = fail
}

// Saves returns the number of successful Save calls
func (r *MockRepository) Saves() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.saves
}

// Keys returns the stored keys
func (r *MockRepository) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.trails))
	for k := range r.trails {
		keys = append(keys, k)
	}
	return keys
}

// Load returns a copy of the stored trail
func (r *MockRepository) Load(ctx context.Context, key string) (domain.Trail, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.failOn["load"] {
		return nil, ErrStorageUnavailable
	}
	trail, ok := r.trails[key]
	if !ok {
		return nil, domain.ErrTrailNotFound
	}
	return append(domain.Trail(nil), trail...), nil
}

// Save stores a copy of the trail
func (r *MockRepository) Save(ctx context.Context, key string, trail domain.Trail) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn["save"] {
		return ErrStorageUnavailable
	}
	r.trails[key] = append(domain.Trail(nil), trail...)
	r.saves++
	return nil
}

// Delete removes the trail
func (r *MockRepository) Delete(ctx context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.trails, key)
	return nil
}

// Health always returns nil in mock mode
func (r *MockRepository) Health(ctx context.Context) error {
	return nil
}
