package http

import (
	"errors"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog/log"

	"github.com/fleetview/backend/internal/domain"
	"github.com/fleetview/backend/internal/service"
)

// Handler contains all HTTP handlers
type Handler struct {
	tracking *service.TrackingService
	validate *validator.Validate
}

// NewHandler creates a new handler
func NewHandler(tracking *service.TrackingService) *Handler {
	return &Handler{
		tracking: tracking,
		validate: validator.New(),
	}
}

type vehicleRequest struct {
	Vehicle string `json:"vehicle"`
}

type zoomRequest struct {
	Zoom *float64 `json:"zoom" validate:"required,gte=0,lte=22"`
}

type panRequest struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng float64 `json:"lng" validate:"gte=-180,lte=180"`
}

func (h *Handler) parse(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := h.validate.Struct(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}

// mapError translates service errors to HTTP errors
func mapError(err error, fallback string) error {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		return fiber.NewError(fiber.StatusNotFound, "Session not found")
	case errors.Is(err, domain.ErrTrailNotFound):
		return fiber.NewError(fiber.StatusNotFound, "Trail not found")
	default:
		log.Error().Err(err).Msg(fallback)
		return fiber.NewError(fiber.StatusInternalServerError, fallback)
	}
}

func ok(c *fiber.Ctx, data interface{}) error {
	return c.JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(c *fiber.Ctx) error {
	checks := h.tracking.Health(c.UserContext())
	status := "ok"
	for _, v := range checks {
		if v != "ok" {
			status = "degraded"
		}
	}
	return c.JSON(fiber.Map{
		"status":   status,
		"service":  "fleetview-backend",
		"version":  "1.0.0",
		"checks":   checks,
		"sessions": len(h.tracking.Sessions()),
	})
}

// CreateSession mounts a new map, optionally tracking a vehicle
func (h *Handler) CreateSession(c *fiber.Ctx) error {
	var req vehicleRequest
	if len(c.Body()) > 0 {
		if err := h.parse(c, &req); err != nil {
			return err
		}
	}
	info := h.tracking.CreateSession(c.UserContext(), strings.TrimSpace(req.Vehicle))
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    info,
	})
}

// ListSessions returns every open session
func (h *Handler) ListSessions(c *fiber.Ctx) error {
	return ok(c, h.tracking.Sessions())
}

// GetFrame returns what the session's map should draw now
func (h *Handler) GetFrame(c *fiber.Ctx) error {
	frame, err := h.tracking.Frame(c.Params("id"))
	if err != nil {
		return mapError(err, "Failed to render frame")
	}
	return ok(c, frame)
}

// SelectVehicle points the session at a vehicle
func (h *Handler) SelectVehicle(c *fiber.Ctx) error {
	var req vehicleRequest
	if err := h.parse(c, &req); err != nil {
		return err
	}
	vehicle := strings.TrimSpace(req.Vehicle)
	if vehicle == "" {
		return fiber.NewError(fiber.StatusBadRequest, "vehicle is required")
	}

	restored, err := h.tracking.SelectVehicle(c.UserContext(), c.Params("id"), vehicle)
	if err != nil {
		return mapError(err, "Failed to select vehicle")
	}
	return ok(c, fiber.Map{"vehicle": vehicle, "restored_points": restored})
}

// ClearVehicle stops tracking in the session
func (h *Handler) ClearVehicle(c *fiber.Ctx) error {
	if err := h.tracking.ClearVehicle(c.Params("id")); err != nil {
		return mapError(err, "Failed to clear vehicle")
	}
	return ok(c, nil)
}

// PushPosition delivers an update to one session
func (h *Handler) PushPosition(c *fiber.Ctx) error {
	var u domain.PositionUpdate
	if err := c.BodyParser(&u); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid position update")
	}
	if err := h.tracking.PushToSession(c.UserContext(), c.Params("id"), u); err != nil {
		return mapError(err, "Failed to apply position update")
	}
	return ok(c, fiber.Map{"usable": u.Usable()})
}

// UserZoom records a zoom gesture
func (h *Handler) UserZoom(c *fiber.Ctx) error {
	var req zoomRequest
	if err := h.parse(c, &req); err != nil {
		return err
	}
	if err := h.tracking.UserZoom(c.Params("id"), *req.Zoom); err != nil {
		return mapError(err, "Failed to apply zoom")
	}
	return ok(c, nil)
}

// UserPan records a pan gesture
func (h *Handler) UserPan(c *fiber.Ctx) error {
	var req panRequest
	if err := h.parse(c, &req); err != nil {
		return err
	}
	if err := h.tracking.UserPan(c.Params("id"), domain.Coordinate{Lat: req.Lat, Lng: req.Lng}); err != nil {
		return mapError(err, "Failed to apply pan")
	}
	return ok(c, nil)
}

// CloseSession unmounts the session's map
func (h *Handler) CloseSession(c *fiber.Ctx) error {
	if err := h.tracking.CloseSession(c.Params("id")); err != nil {
		return mapError(err, "Failed to close session")
	}
	return ok(c, nil)
}

// PublishPosition fans an update out to every session tracking its vehicle
func (h *Handler) PublishPosition(c *fiber.Ctx) error {
	var u domain.PositionUpdate
	if err := c.BodyParser(&u); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid position update")
	}
	if strings.TrimSpace(u.VehicleID) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "vehicleIdentifier is required")
	}
	delivered := h.tracking.Publish(c.UserContext(), u)
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"success": true,
		"data":    fiber.Map{"delivered": delivered},
	})
}

// GetTrail returns a vehicle's persisted trail as [[lat,lng],...] or as a
// GeoJSON feature with ?format=geojson
func (h *Handler) GetTrail(c *fiber.Ctx) error {
	vehicle, err := vehicleParam(c)
	if err != nil {
		return err
	}
	trail, err := h.tracking.Trail(c.UserContext(), vehicle)
	if err != nil {
		return mapError(err, "Failed to load trail")
	}

	if c.Query("format") == "geojson" {
		return c.JSON(trailFeature(vehicle, trail))
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    trail,
		"count":   len(trail),
	})
}

// DeleteTrail removes a vehicle's persisted trail
func (h *Handler) DeleteTrail(c *fiber.Ctx) error {
	vehicle, err := vehicleParam(c)
	if err != nil {
		return err
	}
	if err := h.tracking.DeleteTrail(c.UserContext(), vehicle); err != nil {
		return mapError(err, "Failed to delete trail")
	}
	return ok(c, nil)
}

// vehicleParam returns the decoded :vehicle route parameter. Registration
// numbers often carry spaces, which arrive percent-encoded.
func vehicleParam(c *fiber.Ctx) (string, error) {
	vehicle, err := url.PathUnescape(c.Params("vehicle"))
	if err != nil {
		return "", fiber.NewError(fiber.StatusBadRequest, "Invalid vehicle")
	}
	return vehicle, nil
}

// trailFeature builds a LineString feature; a single point becomes a Point
func trailFeature(vehicle string, trail domain.Trail) *geojson.Feature {
	line := make(orb.LineString, 0, len(trail))
	for _, p := range trail {
		line = append(line, orb.Point{p.Lng, p.Lat})
	}

	var geom orb.Geometry = line
	if len(line) == 1 {
		geom = line[0]
	}
	f := geojson.NewFeature(geom)
	f.Properties["vehicle"] = vehicle
	f.Properties["key"] = domain.TrailKey(vehicle)
	f.Properties["points"] = len(trail)
	return f
}
