package domain

// Address placeholders shown in the popup
const (
	AddressNotAvailable = "Location not available"
	AddressPending      = "Fetching location..."
	AddressUnresolved   = "Could not determine location"
)

// AddressState distinguishes why a label is what it is
type AddressState string

const (
	AddressStateNone     AddressState = "none"
	AddressStatePending  AddressState = "pending"
	AddressStateResolved AddressState = "resolved"
	AddressStateFailed   AddressState = "failed"
)

// ResolvedAddress is the label for the latest requested coordinate
type ResolvedAddress struct {
	Label      string       `json:"label"`
	State      AddressState `json:"state"`
	Coordinate Coordinate   `json:"coordinate"`
}

// Trail styling
const (
	TrailColor   = "#8B0000"
	TrailWeight  = 5
	TrailOpacity = 0.9
	DotRadius    = 6
)

// ViewFrame is the camera part of a rendered frame
type ViewFrame struct {
	Center    Coordinate  `json:"center"`
	Zoom      float64     `json:"zoom"`
	Mode      CameraMode  `json:"mode"`
	Camera    CameraState `json:"camera"`
	FlightMs  int64       `json:"flight_ms,omitempty"`
	FlightSeq uint64      `json:"flight_seq"`
}

// PolylineFrame is drawn when the trail has two or more points
type PolylineFrame struct {
	Points  Trail   `json:"points"`
	Color   string  `json:"color"`
	Weight  int     `json:"weight"`
	Opacity float64 `json:"opacity"`
}

// DotFrame is drawn when the trail has exactly one point
type DotFrame struct {
	Center Coordinate `json:"center"`
	Radius int        `json:"radius"`
	Color  string     `json:"color"`
}

// MarkerFrame is the animated vehicle marker
type MarkerFrame struct {
	Position  Coordinate    `json:"position"`
	Heading   float64       `json:"heading"`
	Status    VehicleStatus `json:"status"`
	Color     string        `json:"color"`
	Ripple    bool          `json:"ripple"`
	Animating bool          `json:"animating"`
}

// PopupFrame is the info popup bound to the marker
type PopupFrame struct {
	Title     string  `json:"title"`
	VehicleID string  `json:"vehicle_id"`
	IMEI      string  `json:"imei"`
	Address   string  `json:"address"`
	Timestamp string  `json:"timestamp"`
	Power     string  `json:"power"`
	SpeedKmh  float64 `json:"speed_kmh"`
	Ignition  string  `json:"ignition"`
}

// RenderFrame is everything the map surface needs to draw one frame
type RenderFrame struct {
	VehicleID   string          `json:"vehicle_id,omitempty"`
	View        ViewFrame       `json:"view"`
	Polyline    *PolylineFrame  `json:"polyline,omitempty"`
	Dot         *DotFrame       `json:"dot,omitempty"`
	Marker      *MarkerFrame    `json:"marker,omitempty"`
	Popup       *PopupFrame     `json:"popup,omitempty"`
	Address     ResolvedAddress `json:"address"`
	TrailPoints int             `json:"trail_points"`
	TrailKm     float64         `json:"trail_km"`
}
