package service

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fleetview/backend/internal/domain"
	"github.com/fleetview/backend/pkg/utils"
)

// DemoVehicleID is the vehicle driven by the demo feed
const DemoVehicleID = "MH12AB1234"

// demoRoute is a loop through Mumbai
var demoRoute = []struct {
	lat, lng float64
	name     string
	stopFor  int // updates spent parked at the waypoint
}{
	{19.0760, 72.8777, "Dadar", 0},
	{19.0596, 72.8295, "Bandra West", 3},
	{19.0330, 72.8190, "Worli Sea Face", 0},
	{18.9690, 72.8205, "Marine Drive", 2},
	{18.9398, 72.8355, "Fort", 0},
	{19.0178, 72.8478, "Parel", 0},
	{19.1136, 72.8697, "Andheri East", 4},
	{19.0896, 72.8656, "Airport Road", 0},
}

// DemoFeed drives a synthetic vehicle around demoRoute and publishes its
// position at a fixed interval.
type DemoFeed struct {
	publisher domain.Publisher
	interval  time.Duration
	cruiseKmh float64
	rng       *rand.Rand

	leg     int
	pos     domain.Coordinate
	parked  int
	heading float64
}

// NewDemoFeed creates a feed starting at the first waypoint
func NewDemoFeed(publisher domain.Publisher, interval time.Duration) *DemoFeed {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	start := demoRoute[0]
	return &DemoFeed{
		publisher: publisher,
		interval:  interval,
		cruiseKmh: 45,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		pos:       domain.Coordinate{Lat: start.lat, Lng: start.lng},
	}
}

// Run publishes until ctx is done
func (f *DemoFeed) Run(ctx context.Context) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	log.Info().Str("vehicle", DemoVehicleID).Dur("interval", f.interval).Msg("Demo feed started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Demo feed stopped")
			return
		case <-ticker.C:
			u := f.Next(time.Now())
			f.publisher.Publish(ctx, u)
		}
	}
}

// Next advances the vehicle one step and returns the update describing it
func (f *DemoFeed) Next(now time.Time) domain.PositionUpdate {
	speed := 0.0
	if f.parked > 0 {
		f.parked--
	} else {
		next := demoRoute[(f.leg+1)%len(demoRoute)]
		target := domain.Coordinate{Lat: next.lat, Lng: next.lng}
		remaining := utils.Haversine(f.pos.Lat, f.pos.Lng, target.Lat, target.Lng)

		// jitter the speed like real traffic
		speed = math.Round(f.cruiseKmh * (0.6 + f.rng.Float64()*0.8))
		step := speed * f.interval.Hours()
		f.heading = bearing(f.pos, target)
		if remaining <= step {
			f.pos = target
			f.leg = (f.leg + 1) % len(demoRoute)
			f.parked = next.stopFor
			log.Debug().Str("waypoint", next.name).Int("parked", next.stopFor).Msg("Demo vehicle reached waypoint")
		} else {
			ratio := step / remaining
			f.pos = domain.Coordinate{
				Lat: utils.Lerp(f.pos.Lat, target.Lat, ratio),
				Lng: utils.Lerp(f.pos.Lng, target.Lng, ratio),
			}
		}
	}

	return domain.PositionUpdate{
		VehicleID:      DemoVehicleID,
		VehicleType:    "Truck",
		VehicleModel:   "Tata Ace",
		Latitude:       utils.RoundTo(f.pos.Lat, 6),
		Longitude:      utils.RoundTo(f.pos.Lng, 6),
		Speed:          domain.Speed(speed),
		Heading:        utils.RoundTo(f.heading, 1),
		IgnitionOn:     true,
		PowerConnected: true,
		Timestamp:      now.Format("2006-01-02 15:04:05"),
		IMEI:           "356307042441013",
	}
}

// bearing returns the initial compass bearing from a to b in degrees
func bearing(a, b domain.Coordinate) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	y := math.Sin(dLng) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLng)
	deg := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(deg+360, 360)
}
