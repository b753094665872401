package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"

	"github.com/fleetview/backend/internal/domain"
	"github.com/fleetview/backend/internal/observability"
)

// DefaultGeocodeTimeout bounds one background lookup
const DefaultGeocodeTimeout = 15 * time.Second

// AddressResolver keeps the popup label for the latest coordinate. Lookups
// run in the background; each carries a sequence number and only the most
// recently issued one may write its result.
type AddressResolver struct {
	geocoder domain.Geocoder
	timeout  time.Duration

	mu      sync.Mutex
	seq     uint64
	current domain.ResolvedAddress

	wg conc.WaitGroup
}

// NewAddressResolver creates a resolver that shows "not available" until
// the first Resolve.
func NewAddressResolver(geocoder domain.Geocoder, timeout time.Duration) *AddressResolver {
	if timeout <= 0 {
		timeout = DefaultGeocodeTimeout
	}
	return &AddressResolver{
		geocoder: geocoder,
		timeout:  timeout,
		current:  notAvailable(),
	}
}

func notAvailable() domain.ResolvedAddress {
	return domain.ResolvedAddress{Label: domain.AddressNotAvailable, State: domain.AddressStateNone}
}

// Resolve starts a lookup for c unless c is already the current coordinate.
// It returns immediately; the label is pending until the lookup finishes.
func (r *AddressResolver) Resolve(ctx context.Context, c domain.Coordinate) {
	r.mu.Lock()
	if r.current.State != domain.AddressStateNone && r.current.Coordinate == c {
		r.mu.Unlock()
		return
	}
	r.seq++
	seq := r.seq
	r.current = domain.ResolvedAddress{
		Label:      domain.AddressPending,
		State:      domain.AddressStatePending,
		Coordinate: c,
	}
	r.mu.Unlock()

	// the lookup outlives the caller's request
	base := context.WithoutCancel(ctx)
	r.wg.Go(func() {
		lookupCtx, cancel := context.WithTimeout(base, r.timeout)
		defer cancel()

		label, err := r.geocoder.ReverseGeocode(lookupCtx, c)
		r.complete(seq, c, label, err)
	})
}

func (r *AddressResolver) complete(seq uint64, c domain.Coordinate, label string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if seq != r.seq {
		observability.GeocodeRequests.WithLabelValues("stale").Inc()
		return
	}
	if err != nil {
		log.Warn().Err(err).Float64("lat", c.Lat).Float64("lng", c.Lng).Msg("Reverse geocoding failed")
		r.current = domain.ResolvedAddress{
			Label:      domain.AddressUnresolved,
			State:      domain.AddressStateFailed,
			Coordinate: c,
		}
		return
	}
	r.current = domain.ResolvedAddress{
		Label:      label,
		State:      domain.AddressStateResolved,
		Coordinate: c,
	}
}

// Clear shows "not available" and discards every lookup still in flight
func (r *AddressResolver) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.current = notAvailable()
}

// Address returns the current label
func (r *AddressResolver) Address() domain.ResolvedAddress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Wait blocks until background lookups have finished
func (r *AddressResolver) Wait() {
	r.wg.Wait()
}
