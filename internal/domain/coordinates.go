package domain

import "fmt"

// Immutable geographic coordinates (longitude, latitude) of an intersection.
type Coordinates struct {
	Lon float64
	Lat float64
}

// Validate rejects coordinates outside the WGS84 range.
func (c Coordinates) Validate() error {
	if c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("coordinates: latitude %v out of range: %w", c.Lat, ErrInvalidInput)
	}
	if c.Lon < -180 || c.Lon > 180 {
		return fmt.Errorf("coordinates: longitude %v out of range: %w", c.Lon, ErrInvalidInput)
	}
	return nil
}
