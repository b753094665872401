package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "redis", cfg.TrailBackend)
	assert.Equal(t, 800*time.Millisecond, cfg.Map.AnimationDuration)
	assert.Equal(t, 1000, cfg.Map.TrailCap)
	assert.Equal(t, 14.0, cfg.Map.ArrivalZoom)
	assert.Equal(t, 5.0, cfg.Map.OverviewZoom)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	path := writeFile(t, `
port: "9090"
trail_backend: memory
geocoder:
  url: http://geo.local
  timeout: 2s
map:
  animation_duration: 400ms
  frame_interval: 16ms
  trail_cap: 50
  initial_zoom: 12
  arrival_zoom: 15
  overview_zoom: 4
  overview_lat: 19.07
  overview_lng: 72.87
`)
	t.Setenv("MAP_TRAIL_CAP", "75")
	t.Setenv("DEMO_FEED", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "memory", cfg.TrailBackend)
	assert.Equal(t, "http://geo.local", cfg.Geocoder.URL)
	assert.Equal(t, 2*time.Second, cfg.Geocoder.Timeout)
	assert.Equal(t, 400*time.Millisecond, cfg.Map.AnimationDuration)
	assert.Equal(t, 75, cfg.Map.TrailCap)
	assert.Equal(t, 15.0, cfg.Map.ArrivalZoom)
	assert.Equal(t, 19.07, cfg.Map.Overview().Lat)
	assert.True(t, cfg.DemoFeed)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeFile(t, "invalid: yaml: content: [[[")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_InvalidEnv(t *testing.T) {
	t.Setenv("MAP_ANIMATION_DURATION", "fast")
	_, err := Load("")
	assert.ErrorContains(t, err, "MAP_ANIMATION_DURATION")
}

func TestLoad_ValidationFails(t *testing.T) {
	t.Run("unknown backend", func(t *testing.T) {
		t.Setenv("TRAIL_BACKEND", "s3")
		_, err := Load("")
		assert.Error(t, err)
	})

	t.Run("zero trail cap", func(t *testing.T) {
		t.Setenv("MAP_TRAIL_CAP", "0")
		_, err := Load("")
		assert.Error(t, err)
	})

	t.Run("latitude out of range", func(t *testing.T) {
		t.Setenv("MAP_OVERVIEW_LAT", "95")
		_, err := Load("")
		assert.Error(t, err)
	})
}
