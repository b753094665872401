package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
)

const (
	// MaxTrailPoints caps the stored and rendered history of one vehicle
	MaxTrailPoints = 1000

	// TrailEpsilon is the per-axis movement below which a point is a duplicate
	TrailEpsilon = 1e-6

	trailKeyPrefix = "vehicle_trail_"
)

// Trail is an ordered, oldest-first list of positions. On the wire it is an
// array of [lat, lng] pairs.
type Trail []Coordinate

// MarshalJSON encodes the trail as [[lat,lng],...]
func (t Trail) MarshalJSON() ([]byte, error) {
	pairs := make([][2]float64, len(t))
	for i, c := range t {
		pairs[i] = [2]float64{c.Lat, c.Lng}
	}
	return json.Marshal(pairs)
}

// UnmarshalJSON decodes [[lat,lng],...]
func (t *Trail) UnmarshalJSON(data []byte) error {
	var pairs [][]float64
	if err := json.Unmarshal(data, &pairs); err != nil {
		return err
	}
	out := make(Trail, 0, len(pairs))
	for i, p := range pairs {
		if len(p) != 2 {
			return fmt.Errorf("trail: point %d has %d components", i, len(p))
		}
		out = append(out, Coordinate{Lat: p[0], Lng: p[1]})
	}
	*t = out
	return nil
}

// TrailKey derives the storage key for a vehicle: whitespace stripped and
// lower-cased, so "MH 12 ab 1234" and "mh12AB1234" share a trail.
func TrailKey(vehicleID string) string {
	var b strings.Builder
	b.WriteString(trailKeyPrefix)
	for _, r := range vehicleID {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
