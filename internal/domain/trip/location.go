package trip

import (
	"github.com/google/uuid"

	"github.com/shuttlehq/service-reservation/internal/domain"
)

// Location is an immutable reference stop on the shuttle network.
type Location struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
}

// NewLocation creates a Location with a fresh identifier.
func NewLocation(name string, latitude, longitude float64) (Location, error) {
	if name == "" {
		return Location{}, domain.NewValidationError("location name is required")
	}
	if latitude < -90 || latitude > 90 {
		return Location{}, domain.NewValidationError("latitude must be between -90 and 90")
	}
	if longitude < -180 || longitude > 180 {
		return Location{}, domain.NewValidationError("longitude must be between -180 and 180")
	}
	return Location{
		ID:        uuid.New(),
		Name:      name,
		Latitude:  latitude,
		Longitude: longitude,
	}, nil
}
