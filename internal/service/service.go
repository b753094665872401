package service

import (
	"github.com/fleetview/backend/internal/domain"
)

// TrailStore is re-exported from domain for convenience
type TrailStore = domain.TrailStore
