package service

import (
	"sync"
	"time"

	"github.com/fleetview/backend/internal/domain"
	"github.com/fleetview/backend/internal/observability"
	"github.com/fleetview/backend/pkg/utils"
)

const (
	// DefaultAnimationDuration is how long the marker takes to reach a new target
	DefaultAnimationDuration = 800 * time.Millisecond

	// DefaultFrameInterval approximates a 60Hz display
	DefaultFrameInterval = 16 * time.Millisecond

	// animationEpsilon below which start and target count as the same point
	animationEpsilon = 1e-8
)

// Interpolate returns the eased position between from and to at normalized
// time t. t is clamped to [0,1] and t=1 yields exactly to.
func Interpolate(from, to domain.Coordinate, t float64) domain.Coordinate {
	if t >= 1 {
		return to
	}
	eased := utils.EaseInOutQuad(t)
	return domain.Coordinate{
		Lat: utils.Lerp(from.Lat, to.Lat, eased),
		Lng: utils.Lerp(from.Lng, to.Lng, eased),
	}
}

func samePoint(a, b domain.Coordinate) bool {
	return utils.NearlyEqual(a.Lat, b.Lat, animationEpsilon) &&
		utils.NearlyEqual(a.Lng, b.Lng, animationEpsilon)
}

// FrameTicker implements domain.AnimationTicker with a goroutine per run
// woken at a fixed frame interval. Progress comes from the clock, not from
// the number of frames, so a slow consumer skips frames rather than slowing
// the animation down.
type FrameTicker struct {
	interval time.Duration
	now      func() time.Time

	mu   sync.Mutex
	gen  uint64
	stop chan struct{}
}

// NewFrameTicker creates a ticker firing every interval
func NewFrameTicker(interval time.Duration) *FrameTicker {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &FrameTicker{interval: interval, now: time.Now}
}

// Start cancels any running interpolation and begins a new one
func (t *FrameTicker) Start(from, to domain.Coordinate, duration time.Duration, onTick func(domain.Coordinate), onDone func()) {
	t.mu.Lock()
	t.cancelLocked()
	t.gen++
	gen := t.gen
	stop := make(chan struct{})
	t.stop = stop
	t.mu.Unlock()

	go t.run(gen, stop, from, to, duration, t.now(), onTick, onDone)
}

// Cancel stops the running interpolation. No callback of that run fires
// once Cancel has returned.
func (t *FrameTicker) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked()
	t.gen++
}

func (t *FrameTicker) cancelLocked() {
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
}

func (t *FrameTicker) run(gen uint64, stop <-chan struct{}, from, to domain.Coordinate, duration time.Duration, started time.Time, onTick func(domain.Coordinate), onDone func()) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		progress := 1.0
		if duration > 0 {
			progress = float64(t.now().Sub(started)) / float64(duration)
		}
		finished := progress >= 1
		pos := Interpolate(from, to, progress)

		if !t.deliver(gen, func() {
			onTick(pos)
			if finished && onDone != nil {
				onDone()
			}
		}) || finished {
			return
		}
	}
}

// deliver runs fn only if gen is still the live run. Holding the lock while
// fn runs is what makes Cancel a barrier.
func (t *FrameTicker) deliver(gen uint64, fn func()) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.gen != gen {
		return false
	}
	fn()
	return true
}

// PositionAnimator eases the displayed marker toward the latest target
type PositionAnimator struct {
	ticker   domain.AnimationTicker
	marker   domain.MarkerHandle
	duration time.Duration

	mu        sync.Mutex
	displayed domain.Coordinate
	target    domain.Coordinate
	gen       uint64
	animating bool
}

// NewPositionAnimator creates an animator resting at start. marker may be nil.
func NewPositionAnimator(ticker domain.AnimationTicker, marker domain.MarkerHandle, start domain.Coordinate, duration time.Duration) *PositionAnimator {
	if duration <= 0 {
		duration = DefaultAnimationDuration
	}
	return &PositionAnimator{
		ticker:    ticker,
		marker:    marker,
		duration:  duration,
		displayed: start,
		target:    start,
	}
}

// SetTarget starts easing from the currently displayed position toward to.
// An in-flight animation is cancelled first so the new one starts from
// wherever the marker is now, not from the old start.
func (a *PositionAnimator) SetTarget(to domain.Coordinate) {
	a.mu.Lock()
	if a.animating && samePoint(a.target, to) {
		a.mu.Unlock()
		return
	}
	from := a.displayed
	a.target = to
	a.gen++
	gen := a.gen
	if samePoint(from, to) {
		wasAnimating := a.animating
		a.animating = false
		a.mu.Unlock()
		if wasAnimating {
			a.ticker.Cancel()
		}
		return
	}
	if a.animating {
		observability.AnimationRestarts.Inc()
	}
	a.animating = true
	a.mu.Unlock()

	a.ticker.Start(from, to, a.duration,
		func(pos domain.Coordinate) { a.tick(gen, pos) },
		func() { a.finish(gen) },
	)
}

// Jump places the marker at c immediately, cancelling any animation
func (a *PositionAnimator) Jump(c domain.Coordinate) {
	a.mu.Lock()
	a.gen++
	a.displayed = c
	a.target = c
	a.animating = false
	a.mu.Unlock()

	a.ticker.Cancel()
	if a.marker != nil {
		a.marker.SetPosition(c.Lat, c.Lng)
	}
}

// Stop cancels any animation, leaving the marker where it is
func (a *PositionAnimator) Stop() {
	a.mu.Lock()
	a.gen++
	a.animating = false
	a.mu.Unlock()
	a.ticker.Cancel()
}

// Position returns the displayed marker position
func (a *PositionAnimator) Position() domain.Coordinate {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.displayed
}

// Target returns the position the marker is heading for
func (a *PositionAnimator) Target() domain.Coordinate {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.target
}

// Animating reports whether an interpolation is in flight
func (a *PositionAnimator) Animating() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.animating
}

func (a *PositionAnimator) tick(gen uint64, pos domain.Coordinate) {
	a.mu.Lock()
	if gen != a.gen {
		a.mu.Unlock()
		return
	}
	a.displayed = pos
	a.mu.Unlock()

	if a.marker != nil {
		a.marker.SetPosition(pos.Lat, pos.Lng)
	}
}

func (a *PositionAnimator) finish(gen uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if gen == a.gen {
		a.animating = false
	}
}
