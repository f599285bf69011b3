package screen

import (
	"fmt"
	"log"
	"time"

	"github.com/lapaz-movil/transit/internal/mapview"
	"github.com/lapaz-movil/transit/internal/reveal"
	"github.com/lapaz-movil/transit/internal/static/catalog"
)

// buildOverlays is swapped out in tests
var buildOverlays = mapview.BuildOverlays

// View is the render model of a mounted screen
type View struct {
	ID string `json:"id"`

	Filter         catalog.Filter `json:"filter"`
	ShowRoutes     bool           `json:"showRoutes"`
	ShowGPS        bool           `json:"showGps"`
	SelectedRoutes []string       `json:"selectedRoutes"`

	Region     mapview.Region      `json:"region"`
	Transition *mapview.Transition `json:"transition,omitempty"`

	Reveal          reveal.State `json:"reveal"`
	MapVisible      bool         `json:"mapVisible"`
	ControlsVisible bool         `json:"controlsVisible"`

	Catalog  CatalogStatus    `json:"catalog"`
	Vehicles VehicleStatus    `json:"vehicles"`
	Location LocationStatus   `json:"location"`
	Overlays mapview.Overlays `json:"overlays"`

	Fallback *Fallback `json:"fallback,omitempty"`
}

// CatalogStatus describes the route catalog load
type CatalogStatus struct {
	Loading    bool                    `json:"loading"`
	Error      string                  `json:"error,omitempty"`
	RouteCount int                     `json:"routeCount"`
	Categories []catalog.RouteCategory `json:"categories"`
}

// VehicleStatus describes the live GPS feed
type VehicleStatus struct {
	Loading   bool      `json:"loading"`
	Error     string    `json:"error,omitempty"`
	Count     int       `json:"count"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// LocationStatus holds the last device location or the reason it is missing
type LocationStatus struct {
	Coordinate *mapview.Coordinate `json:"coordinate,omitempty"`
	Error      string              `json:"error,omitempty"`
}

// Fallback replaces the whole view when composing it failed
type Fallback struct {
	Message string `json:"message"`
}

// View composes the current render model. A panic while composing is
// recovered and turned into a fallback view carrying its message.
func (s *Screen) View() (v View) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Screen %s: recovered from panic while composing view: %v", s.ID, r)
			v = View{ID: s.ID, Fallback: &Fallback{Message: fmt.Sprint(r)}}
		}
	}()
	return s.compose()
}

func (s *Screen) compose() View {
	vehicles := s.poller.Snapshot()

	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		ID:              s.ID,
		Filter:          s.filter,
		ShowRoutes:      s.showRoutes,
		ShowGPS:         s.showGPS,
		SelectedRoutes:  append([]string{}, s.selected...),
		Region:          s.camera.Region(),
		Reveal:          s.reveal.State(),
		MapVisible:      s.reveal.MapVisible(),
		ControlsVisible: s.reveal.ControlsVisible(),
		Catalog: CatalogStatus{
			Loading:    s.catalogLoading,
			Error:      s.catalogErr,
			RouteCount: catalog.CountRoutes(s.categories),
			Categories: s.categories,
		},
		Vehicles: VehicleStatus{
			Loading:   vehicles.Loading,
			Error:     vehicles.Err,
			Count:     len(vehicles.Records),
			UpdatedAt: vehicles.UpdatedAt,
		},
		Location: LocationStatus{
			Coordinate: s.userLocation,
			Error:      s.locationErr,
		},
	}
	if v.Catalog.Categories == nil {
		v.Catalog.Categories = []catalog.RouteCategory{}
	}

	v.Overlays = buildOverlays(mapview.OverlayInput{
		Categories:     s.categories,
		Filter:         s.filter,
		ShowRoutes:     s.showRoutes,
		SelectedRoutes: s.selected,
		ShowVehicles:   s.showGPS,
		Vehicles:       vehicles.Records,
		UserLocation:   s.userLocation,
	})
	return v
}
