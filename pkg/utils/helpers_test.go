package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEaseInOutQuad(t *testing.T) {
	assert.Equal(t, 0.0, EaseInOutQuad(0))
	assert.Equal(t, 1.0, EaseInOutQuad(1))
	assert.InDelta(t, 0.125, EaseInOutQuad(0.25), 1e-12)
	assert.InDelta(t, 0.5, EaseInOutQuad(0.5), 1e-12)
	assert.InDelta(t, 0.875, EaseInOutQuad(0.75), 1e-12)

	// clamped outside the unit interval
	assert.Equal(t, 0.0, EaseInOutQuad(-3))
	assert.Equal(t, 1.0, EaseInOutQuad(7))

	prev := 0.0
	for i := 1; i <= 100; i++ {
		v := EaseInOutQuad(float64(i) / 100)
		assert.GreaterOrEqual(t, v, prev)
		prev = v
	}
}

func TestHaversine(t *testing.T) {
	assert.Equal(t, 0.0, Haversine(19.07, 72.87, 19.07, 72.87))

	// Mumbai to Delhi is roughly 1150 km
	d := Haversine(19.07, 72.87, 28.6, 77.2)
	assert.InDelta(t, 1150, d, 15)
}

func TestNearlyEqual(t *testing.T) {
	assert.True(t, NearlyEqual(12.9, 12.9000001, 1e-6))
	assert.False(t, NearlyEqual(12.9, 12.90001, 1e-6))
}

func TestRoundTo(t *testing.T) {
	assert.Equal(t, 19.07123, RoundTo(19.071234, 5))
	assert.Equal(t, 72.9, RoundTo(72.87, 1))
}
