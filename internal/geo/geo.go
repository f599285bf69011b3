package geo

import (
	"errors"
	"fmt"
	"math"
)

// ErrPermissionDenied is returned when the user refused location access
var ErrPermissionDenied = errors.New("location permission denied")

// ErrUnavailable is returned when permission was granted but no fix arrived
var ErrUnavailable = errors.New("location unavailable")

// Coords is a device position in degrees
type Coords struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy,omitempty"` // meters
}

// LocationReport is what a client sends after asking the device for its
// position
type LocationReport struct {
	Granted bool    `json:"granted"`
	Coords  *Coords `json:"coords,omitempty"`
	Error   string  `json:"error,omitempty"`
}

// Resolve turns a report into usable coordinates. It is called once per
// report and never retried.
func Resolve(report LocationReport) (Coords, error) {
	if !report.Granted {
		return Coords{}, ErrPermissionDenied
	}
	if report.Error != "" {
		return Coords{}, fmt.Errorf("%w: %s", ErrUnavailable, report.Error)
	}
	if report.Coords == nil {
		return Coords{}, ErrUnavailable
	}

	c := *report.Coords
	if math.IsNaN(c.Latitude) || math.IsNaN(c.Longitude) ||
		c.Latitude < -90 || c.Latitude > 90 ||
		c.Longitude < -180 || c.Longitude > 180 {
		return Coords{}, fmt.Errorf("%w: coordinates out of range (%f, %f)", ErrUnavailable, c.Latitude, c.Longitude)
	}
	return c, nil
}
