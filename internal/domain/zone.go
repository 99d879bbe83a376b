package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Zone is one geographic area that alerts can target.
// Params: identity, naming, and polygon vertex sequence.
// Returns: zone record for alert targeting.
type Zone struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Coordinates [][2]float64 `json:"coordinates"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Validate checks zone fields before insertion.
// Params: none.
// Returns: validation error for name or polygon problems.
func (z Zone) Validate() error {
	if strings.TrimSpace(z.Name) == "" {
		return errors.New("zone name is required")
	}
	if len(z.Coordinates) == 0 {
		return nil
	}
	return validatePolygon(z.Coordinates)
}

// validatePolygon checks vertex count and coordinate ranges.
// Params: ordered (longitude, latitude) pairs.
// Returns: validation error for degenerate polygons.
func validatePolygon(coordinates [][2]float64) error {
	distinct := make(map[[2]float64]struct{}, len(coordinates))
	for i, vertex := range coordinates {
		lon, lat := vertex[0], vertex[1]
		if lon < -180 || lon > 180 {
			return fmt.Errorf("coordinate %d longitude %v is out of range", i, lon)
		}
		if lat < -90 || lat > 90 {
			return fmt.Errorf("coordinate %d latitude %v is out of range", i, lat)
		}
		distinct[vertex] = struct{}{}
	}
	if len(distinct) < 3 {
		return errors.New("zone polygon requires at least 3 distinct vertices")
	}
	return nil
}
