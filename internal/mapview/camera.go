package mapview

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// Delta bounds. MinDelta stops infinite zoom-in, the maxima stop zoom-out
// past the whole world.
const (
	MinDelta    = 0.001
	MaxLatDelta = 180.0
	MaxLngDelta = 360.0

	// LocationDelta is the close zoom applied when the device location arrives
	LocationDelta = 0.005

	LocationAnimation = time.Second
	ZoomAnimation     = 300 * time.Millisecond
)

// Coordinate is a WGS84 point
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Region is the visible map viewport: a center plus latitude/longitude spans
type Region struct {
	Latitude       float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude      float64 `json:"longitude" validate:"gte=-180,lte=180"`
	LatitudeDelta  float64 `json:"latitudeDelta"`
	LongitudeDelta float64 `json:"longitudeDelta"`
}

// ErrInvalidRegion is returned for a region whose center is not a real coordinate
var ErrInvalidRegion = errors.New("invalid region")

var validate = validator.New()

// Validate checks the center. Deltas are not checked; Clamp bounds them.
func (r Region) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRegion, err)
	}
	return nil
}

// DefaultRegion frames central La Paz
var DefaultRegion = Region{
	Latitude:       -16.5,
	Longitude:      -68.15,
	LatitudeDelta:  0.0922,
	LongitudeDelta: 0.0421,
}

// Clamp returns r with both deltas forced into their bounds. NaN or
// non-positive deltas collapse to MinDelta.
func (r Region) Clamp() Region {
	r.LatitudeDelta = clampDelta(r.LatitudeDelta, MaxLatDelta)
	r.LongitudeDelta = clampDelta(r.LongitudeDelta, MaxLngDelta)
	return r
}

func clampDelta(d, max float64) float64 {
	if math.IsNaN(d) || d < MinDelta {
		return MinDelta
	}
	if d > max {
		return max
	}
	return d
}

// Center returns the region's center point
func (r Region) Center() Coordinate {
	return Coordinate{Latitude: r.Latitude, Longitude: r.Longitude}
}

// Transition asks the client to animate the map to Region over Duration
type Transition struct {
	Region   Region
	Duration time.Duration
}

// MarshalJSON encodes the duration in milliseconds, the unit map SDKs take
func (t Transition) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Region     Region `json:"region"`
		DurationMS int64  `json:"durationMs"`
	}{t.Region, t.Duration.Milliseconds()})
}

// Camera holds the single map region. Every writer replaces the whole
// region; nothing is merged.
type Camera struct {
	mu     sync.Mutex
	region Region
}

// NewCamera creates a camera at the given region
func NewCamera(initial Region) *Camera {
	return &Camera{region: initial.Clamp()}
}

// Region returns the current region
func (c *Camera) Region() Region {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.region
}

// OnLocation centers on the device location with a close zoom
func (c *Camera) OnLocation(loc Coordinate) Transition {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.region = Region{
		Latitude:       loc.Latitude,
		Longitude:      loc.Longitude,
		LatitudeDelta:  LocationDelta,
		LongitudeDelta: LocationDelta,
	}.Clamp()
	return Transition{Region: c.region, Duration: LocationAnimation}
}

// ZoomIn halves both deltas, floored at MinDelta
func (c *Camera) ZoomIn() Transition {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.region = Region{
		Latitude:       c.region.Latitude,
		Longitude:      c.region.Longitude,
		LatitudeDelta:  c.region.LatitudeDelta / 2,
		LongitudeDelta: c.region.LongitudeDelta / 2,
	}.Clamp()
	return Transition{Region: c.region, Duration: ZoomAnimation}
}

// ZoomOut doubles both deltas, capped at the world bounds
func (c *Camera) ZoomOut() Transition {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.region = Region{
		Latitude:       c.region.Latitude,
		Longitude:      c.region.Longitude,
		LatitudeDelta:  c.region.LatitudeDelta * 2,
		LongitudeDelta: c.region.LongitudeDelta * 2,
	}.Clamp()
	return Transition{Region: c.region, Duration: ZoomAnimation}
}

// OnGesture stores the viewport a pan or pinch ended on. The gesture was
// already animated on the client, so no transition is returned. A region
// with an out-of-range center is rejected and the camera keeps its region.
func (c *Camera) OnGesture(r Region) (Region, error) {
	if err := r.Validate(); err != nil {
		return c.Region(), err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.region = r.Clamp()
	return c.region, nil
}

// FitTo moves the camera to frame the given region
func (c *Camera) FitTo(r Region) Transition {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.region = r.Clamp()
	return Transition{Region: c.region, Duration: LocationAnimation}
}
