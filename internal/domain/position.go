package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Coordinate is a WGS84 latitude/longitude pair in degrees
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// IsZero reports whether both components are exactly zero, which devices
// report when they have no fix.
func (c Coordinate) IsZero() bool {
	return c.Lat == 0 && c.Lng == 0
}

// Valid reports whether the coordinate is usable for tracking
func (c Coordinate) Valid() bool {
	if c.IsZero() {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// Speed is a km/h value that devices send either as a number or as a
// numeric string.
type Speed float64

// UnmarshalJSON accepts 42, 42.5, "42" and "42.5". Anything else decodes as 0.
func (s *Speed) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = 0
		return nil
	}
	if data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
		if err != nil {
			*s = 0
			return nil
		}
		*s = Speed(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = Speed(v)
	return nil
}

// PositionUpdate is one telemetry sample delivered by the transport layer
type PositionUpdate struct {
	VehicleID      string  `json:"vehicleIdentifier"`
	VehicleType    string  `json:"vehicleType,omitempty"`
	VehicleModel   string  `json:"vehicleModel,omitempty"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	Speed          Speed   `json:"speed"`
	Heading        float64 `json:"heading"`
	IgnitionOn     bool    `json:"ignitionOn"`
	PowerConnected bool    `json:"powerConnected"`
	Timestamp      string  `json:"timestamp"`
	IMEI           string  `json:"imei"`
}

// Coordinate returns the update's position
func (u PositionUpdate) Coordinate() Coordinate {
	return Coordinate{Lat: u.Latitude, Lng: u.Longitude}
}

// Usable reports whether the update identifies a vehicle and carries a fix
func (u PositionUpdate) Usable() bool {
	return strings.TrimSpace(u.VehicleID) != "" && u.Coordinate().Valid()
}

// Status derives the marker state from power, ignition and speed
func (u PositionUpdate) Status() VehicleStatus {
	switch {
	case !u.PowerConnected:
		return StatusDisconnected
	case u.IgnitionOn && u.Speed > 0:
		return StatusMoving
	default:
		return StatusIdle
	}
}

// VehicleStatus is the three-way marker state
type VehicleStatus string

const (
	StatusMoving       VehicleStatus = "moving"
	StatusIdle         VehicleStatus = "idle"
	StatusDisconnected VehicleStatus = "disconnected"
)

// Color returns the marker color for the status
func (s VehicleStatus) Color() string {
	switch s {
	case StatusMoving:
		return "#22c55e"
	case StatusIdle:
		return "#f59e0b"
	default:
		return "#ef4444"
	}
}

// Ripple reports whether the pulsing overlay is drawn
func (s VehicleStatus) Ripple() bool {
	return s == StatusMoving
}
