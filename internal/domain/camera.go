package domain

import "time"

// CameraMode is the camera controller's follow state
type CameraMode string

const (
	CameraNoVehicle      CameraMode = "no_vehicle"
	CameraInitialArrival CameraMode = "initial_arrival"
	CameraTracking       CameraMode = "tracking"
)

// CameraState is the per-map-instance record of user interaction. Once
// HasUserInteracted is set it stays set for the life of the map.
type CameraState struct {
	HasUserInteracted bool    `json:"has_user_interacted"`
	LastKnownZoom     float64 `json:"last_known_zoom"`
}

// Default camera behaviour
const (
	OverviewLat  = 20.5937
	OverviewLng  = 78.9629
	OverviewZoom = 5.0
	InitialZoom  = 14.0
	ArrivalZoom  = 14.0

	ArrivalFlightDuration  = 1500 * time.Millisecond
	TrackingFlightDuration = 1000 * time.Millisecond
)

// OverviewCenter is the country-level default view
var OverviewCenter = Coordinate{Lat: OverviewLat, Lng: OverviewLng}
