package service

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetview/backend/internal/domain"
)

// manualTicker hands control of animation frames to the test
type manualTicker struct {
	mu      sync.Mutex
	runs    []*manualRun
	cancels int
}

type manualRun struct {
	from, to  domain.Coordinate
	duration  time.Duration
	onTick    func(domain.Coordinate)
	onDone    func()
	cancelled bool
}

func (m *manualTicker) Start(from, to domain.Coordinate, duration time.Duration, onTick func(domain.Coordinate), onDone func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n := len(m.runs); n > 0 {
		m.runs[n-1].cancelled = true
	}
	m.runs = append(m.runs, &manualRun{from: from, to: to, duration: duration, onTick: onTick, onDone: onDone})
}

func (m *manualTicker) Cancel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancels++
	if n := len(m.runs); n > 0 {
		m.runs[n-1].cancelled = true
	}
}

func (m *manualTicker) last() *manualRun {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.runs) == 0 {
		return nil
	}
	return m.runs[len(m.runs)-1]
}

func (m *manualTicker) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.runs)
}

// advance delivers one frame of the live run at normalized progress t
func (m *manualTicker) advance(t float64) {
	r := m.last()
	if r == nil || r.cancelled {
		return
	}
	r.onTick(Interpolate(r.from, r.to, t))
	if t >= 1 {
		r.onDone()
	}
}

type recordingMarker struct {
	mu        sync.Mutex
	positions []domain.Coordinate
}

func (r *recordingMarker) SetPosition(lat, lng float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.positions = append(r.positions, domain.Coordinate{Lat: lat, Lng: lng})
}

func (r *recordingMarker) all() []domain.Coordinate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Coordinate(nil), r.positions...)
}

var (
	overview = domain.Coordinate{Lat: domain.OverviewLat, Lng: domain.OverviewLng}
	mumbai   = domain.Coordinate{Lat: 19.07, Lng: 72.87}
	delhi    = domain.Coordinate{Lat: 28.6, Lng: 77.2}
)

func TestInterpolate(t *testing.T) {
	t.Run("endpoints", func(t *testing.T) {
		assert.Equal(t, mumbai, Interpolate(mumbai, delhi, 0))
		assert.Equal(t, delhi, Interpolate(mumbai, delhi, 1))
		assert.Equal(t, delhi, Interpolate(mumbai, delhi, 1.5))
	})

	t.Run("intermediate samples are strictly between and monotonic", func(t *testing.T) {
		pairs := [][2]domain.Coordinate{
			{mumbai, delhi},
			{delhi, mumbai},
			{{Lat: -33.86, Lng: 151.2}, {Lat: -33.87, Lng: 151.1}},
		}
		for _, p := range pairs {
			from, to := p[0], p[1]
			prev := from
			for _, tt := range []float64{0.25, 0.5, 0.75} {
				got := Interpolate(from, to, tt)
				assert.True(t, strictlyBetween(got.Lat, from.Lat, to.Lat), "lat at %v", tt)
				assert.True(t, strictlyBetween(got.Lng, from.Lng, to.Lng), "lng at %v", tt)
				assert.True(t, between(got.Lat, prev.Lat, to.Lat), "lat regressed at %v", tt)
				assert.True(t, between(got.Lng, prev.Lng, to.Lng), "lng regressed at %v", tt)
				prev = got
			}
		}
	})

	t.Run("midpoint of the ease is the linear midpoint", func(t *testing.T) {
		mid := Interpolate(mumbai, delhi, 0.5)
		assert.InDelta(t, (mumbai.Lat+delhi.Lat)/2, mid.Lat, 1e-9)
		assert.InDelta(t, (mumbai.Lng+delhi.Lng)/2, mid.Lng, 1e-9)
	})
}

func strictlyBetween(v, a, b float64) bool {
	if a > b {
		a, b = b, a
	}
	return v > a && v < b
}

func between(v, a, b float64) bool {
	if a > b {
		a, b = b, a
	}
	return v >= a && v <= b
}

func TestPositionAnimator_Converges(t *testing.T) {
	ticker := &manualTicker{}
	marker := &recordingMarker{}
	a := NewPositionAnimator(ticker, marker, overview, DefaultAnimationDuration)

	a.SetTarget(mumbai)
	require.Equal(t, 1, ticker.count())
	run := ticker.last()
	assert.Equal(t, overview, run.from)
	assert.Equal(t, mumbai, run.to)
	assert.Equal(t, 800*time.Millisecond, run.duration)
	assert.True(t, a.Animating())

	for _, p := range []float64{0.1, 0.4, 0.8} {
		ticker.advance(p)
	}
	ticker.advance(1)

	assert.Equal(t, mumbai, a.Position())
	assert.False(t, a.Animating())

	positions := marker.all()
	require.Len(t, positions, 4)
	assert.Equal(t, mumbai, positions[3])
}

func TestPositionAnimator_InterruptRestartsFromDisplayed(t *testing.T) {
	ticker := &manualTicker{}
	a := NewPositionAnimator(ticker, nil, overview, DefaultAnimationDuration)

	a.SetTarget(mumbai)
	ticker.advance(0.5)
	mid := a.Position()
	require.NotEqual(t, overview, mid)
	require.NotEqual(t, mumbai, mid)

	a.SetTarget(delhi)
	require.Equal(t, 2, ticker.count())
	assert.Equal(t, mid, ticker.last().from, "restart must begin at the last rendered point")
	assert.True(t, ticker.runs[0].cancelled)

	// a late frame from the superseded run is dropped
	ticker.runs[0].onTick(mumbai)
	assert.Equal(t, mid, a.Position())

	ticker.advance(1)
	assert.Equal(t, delhi, a.Position())
}

func TestPositionAnimator_SkipsNoOpTargets(t *testing.T) {
	ticker := &manualTicker{}
	a := NewPositionAnimator(ticker, nil, mumbai, DefaultAnimationDuration)

	a.SetTarget(domain.Coordinate{Lat: mumbai.Lat + 1e-9, Lng: mumbai.Lng})
	assert.Equal(t, 0, ticker.count())
	assert.False(t, a.Animating())

	// re-issuing the target of an in-flight animation does not restart it
	a.SetTarget(delhi)
	ticker.advance(0.3)
	a.SetTarget(delhi)
	assert.Equal(t, 1, ticker.count())
}

func TestPositionAnimator_JumpAndStop(t *testing.T) {
	ticker := &manualTicker{}
	marker := &recordingMarker{}
	a := NewPositionAnimator(ticker, marker, overview, DefaultAnimationDuration)

	a.SetTarget(mumbai)
	a.Jump(delhi)
	assert.Equal(t, delhi, a.Position())
	assert.Equal(t, delhi, a.Target())
	assert.False(t, a.Animating())
	assert.Equal(t, []domain.Coordinate{delhi}, marker.all())

	a.SetTarget(mumbai)
	ticker.advance(0.2)
	at := a.Position()
	a.Stop()
	ticker.runs[1].onTick(mumbai)
	assert.Equal(t, at, a.Position())
	assert.False(t, a.Animating())
}

func TestFrameTicker_RunsToCompletion(t *testing.T) {
	ticker := NewFrameTicker(2 * time.Millisecond)

	var ticks atomic.Int32
	var last atomic.Value
	done := make(chan struct{})
	ticker.Start(mumbai, delhi, 40*time.Millisecond,
		func(c domain.Coordinate) {
			ticks.Add(1)
			last.Store(c)
		},
		func() { close(done) },
	)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("animation did not finish")
	}
	assert.Greater(t, ticks.Load(), int32(1))
	assert.Equal(t, delhi, last.Load().(domain.Coordinate))
}

func TestFrameTicker_CancelIsABarrier(t *testing.T) {
	ticker := NewFrameTicker(time.Millisecond)

	var ticks atomic.Int32
	var done atomic.Bool
	ticker.Start(mumbai, delhi, time.Hour,
		func(domain.Coordinate) { ticks.Add(1) },
		func() { done.Store(true) },
	)
	require.Eventually(t, func() bool { return ticks.Load() > 0 }, time.Second, time.Millisecond)

	ticker.Cancel()
	after := ticks.Load()
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, after, ticks.Load())
	assert.False(t, done.Load())
}

func TestFrameTicker_StartSupersedesPreviousRun(t *testing.T) {
	ticker := NewFrameTicker(time.Millisecond)

	var stale atomic.Int32
	ticker.Start(mumbai, delhi, time.Hour, func(domain.Coordinate) { stale.Add(1) }, nil)
	require.Eventually(t, func() bool { return stale.Load() > 0 }, time.Second, time.Millisecond)

	done := make(chan struct{})
	ticker.Start(delhi, mumbai, 10*time.Millisecond, func(domain.Coordinate) {}, func() { close(done) })
	before := stale.Load()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("second animation did not finish")
	}
	assert.Equal(t, before, stale.Load())
}
