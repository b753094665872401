package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetview/backend/internal/domain"
	"github.com/fleetview/backend/internal/repository/postgres"
)

func newTestTracking(t *testing.T, ttl time.Duration) (*TrackingService, *postgres.MockRepository) {
	t.Helper()
	store := postgres.NewMockRepository()
	opts := DefaultMapOptions()
	opts.FrameInterval = time.Millisecond
	opts.AnimationDuration = 5 * time.Millisecond
	svc := NewTrackingService(store, &staticGeocoder{label: "Bandra West, Mumbai"}, opts, ttl)
	t.Cleanup(svc.Shutdown)
	return svc, store
}

func TestTrackingService_PublishFansOutByVehicle(t *testing.T) {
	svc, _ := newTestTracking(t, 0)
	ctx := context.Background()

	a := svc.CreateSession(ctx, "MH12AB1234")
	b := svc.CreateSession(ctx, "mh12ab1234")
	c := svc.CreateSession(ctx, "DL1CA5678")
	idle := svc.CreateSession(ctx, "")

	n := svc.Publish(ctx, update("MH12AB1234", 19.07, 72.87))
	assert.Equal(t, 2, n)

	for _, id := range []string{a.ID, b.ID} {
		frame, err := svc.Frame(id)
		require.NoError(t, err)
		assert.Equal(t, 1, frame.TrailPoints)
		assert.NotNil(t, frame.Marker)
	}
	for _, id := range []string{c.ID, idle.ID} {
		frame, err := svc.Frame(id)
		require.NoError(t, err)
		assert.Nil(t, frame.Marker)
	}
}

func TestTrackingService_CreateSessionRestoresTrail(t *testing.T) {
	svc, store := newTestTracking(t, 0)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, domain.TrailKey("MH12AB1234"), domain.Trail{{Lat: 19.06, Lng: 72.86}, mumbai}))

	info := svc.CreateSession(ctx, "MH12AB1234")
	assert.Equal(t, "MH12AB1234", info.VehicleID)

	frame, err := svc.Frame(info.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, frame.TrailPoints)
	assert.NotNil(t, frame.Polyline)
}

func TestTrackingService_PushSelectAndClear(t *testing.T) {
	svc, _ := newTestTracking(t, 0)
	ctx := context.Background()
	info := svc.CreateSession(ctx, "")

	require.NoError(t, svc.PushToSession(ctx, info.ID, update("DL1CA5678", 28.6, 77.2)))
	got, err := svc.Session(info.ID)
	require.NoError(t, err)
	assert.Equal(t, "DL1CA5678", got.VehicleID)
	assert.Equal(t, 1, svc.Publish(ctx, update("DL1CA5678", 28.61, 77.21)))

	require.NoError(t, svc.ClearVehicle(info.ID))
	assert.Equal(t, 0, svc.Publish(ctx, update("DL1CA5678", 28.62, 77.22)))

	_, err = svc.SelectVehicle(ctx, info.ID, "DL1CA5678")
	require.NoError(t, err)
	assert.Equal(t, 1, svc.Publish(ctx, update("DL1CA5678", 28.63, 77.23)))
	frame, err := svc.Frame(info.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, frame.TrailPoints, "selection resumes the persisted trail")
}

func TestTrackingService_Gestures(t *testing.T) {
	svc, _ := newTestTracking(t, 0)
	ctx := context.Background()
	info := svc.CreateSession(ctx, "MH12AB1234")
	svc.Publish(ctx, update("MH12AB1234", 19.07, 72.87))

	require.NoError(t, svc.UserZoom(info.ID, 9))
	require.NoError(t, svc.UserPan(info.ID, delhi))

	frame, err := svc.Frame(info.ID)
	require.NoError(t, err)
	assert.Equal(t, 9.0, frame.View.Zoom)
	assert.Equal(t, delhi, frame.View.Center)
	assert.True(t, frame.View.Camera.HasUserInteracted)
}

func TestTrackingService_UnknownSession(t *testing.T) {
	svc, _ := newTestTracking(t, 0)

	_, err := svc.Frame("missing")
	assert.True(t, errors.Is(err, ErrSessionNotFound))
	assert.True(t, errors.Is(svc.CloseSession("missing"), ErrSessionNotFound))
	assert.True(t, errors.Is(svc.UserZoom("missing", 3), ErrSessionNotFound))
}

func TestTrackingService_ReapIdle(t *testing.T) {
	svc, _ := newTestTracking(t, time.Minute)
	ctx := context.Background()
	clock := time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }

	stale := svc.CreateSession(ctx, "")
	clock = clock.Add(45 * time.Second)
	fresh := svc.CreateSession(ctx, "")
	clock = clock.Add(30 * time.Second)

	assert.Equal(t, 1, svc.ReapIdle(clock))
	_, err := svc.Frame(stale.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = svc.Frame(fresh.ID)
	assert.NoError(t, err)
}

func TestTrackingService_TrailAccess(t *testing.T) {
	svc, _ := newTestTracking(t, 0)
	ctx := context.Background()
	svc.CreateSession(ctx, "MH12AB1234")
	svc.Publish(ctx, update("MH12AB1234", 19.07, 72.87))

	trail, err := svc.Trail(ctx, "MH12AB1234")
	require.NoError(t, err)
	assert.Equal(t, domain.Trail{mumbai}, trail)

	require.NoError(t, svc.DeleteTrail(ctx, "MH12AB1234"))
	_, err = svc.Trail(ctx, "MH12AB1234")
	assert.ErrorIs(t, err, domain.ErrTrailNotFound)
}

func TestTrackingService_Health(t *testing.T) {
	svc, store := newTestTracking(t, 0)
	assert.Equal(t, map[string]string{"storage": "ok", "geocoder": "ok"}, svc.Health(context.Background()))

	store.FailLoads(true)
	assert.Equal(t, "ok", svc.Health(context.Background())["geocoder"])
}
