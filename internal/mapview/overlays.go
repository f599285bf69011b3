package mapview

import (
	"fmt"
	"strconv"

	"github.com/lapaz-movil/transit/internal/realtime/gps"
	"github.com/lapaz-movil/transit/internal/static/catalog"
)

// Marker kinds
const (
	MarkerStation = "station"
	MarkerVehicle = "vehicle"
	MarkerUser    = "user"
)

const (
	defaultRouteColor   = catalog.DefaultMinibusColor
	defaultStationColor = "#ff0000"
	vehicleColor        = "#10b981"
	userColor           = "blue"
)

// OverlayInput is everything the overlay set depends on
type OverlayInput struct {
	Categories     []catalog.RouteCategory
	Filter         catalog.Filter
	ShowRoutes     bool
	SelectedRoutes []string // empty means every route the filter admits
	ShowVehicles   bool
	Vehicles       []gps.VehiclePosition
	UserLocation   *Coordinate
}

// Polyline is a drawn route path
type Polyline struct {
	RouteID     string       `json:"routeId"`
	Color       string       `json:"color"`
	Coordinates []Coordinate `json:"coordinates"`
}

// Marker is a single pin on the map
type Marker struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	Coordinate  Coordinate `json:"coordinate"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Color       string     `json:"color"`
}

// Overlays is the full set of shapes drawn over the map
type Overlays struct {
	Polylines []Polyline `json:"polylines"`
	Markers   []Marker   `json:"markers"`
}

// BuildOverlays derives the overlay set from its inputs. It is recomputed on
// every change and never patched.
func BuildOverlays(in OverlayInput) Overlays {
	out := Overlays{
		Polylines: []Polyline{},
		Markers:   []Marker{},
	}

	filter := in.Filter
	if _, ok := catalog.ParseFilter(string(filter)); !ok {
		filter = catalog.FilterAll
	}

	selected := make(map[string]bool, len(in.SelectedRoutes))
	for _, id := range in.SelectedRoutes {
		selected[id] = true
	}

	if in.ShowRoutes {
		for _, c := range in.Categories {
			if !filter.Includes(c.ID) {
				continue
			}
			for _, r := range c.Routes {
				if len(selected) > 0 && !selected[r.ID] {
					continue
				}
				appendRoute(&out, r)
			}
		}
	}

	if in.ShowVehicles {
		for _, v := range in.Vehicles {
			out.Markers = append(out.Markers, Marker{
				ID:          "vehicle:" + v.IMEI,
				Kind:        MarkerVehicle,
				Coordinate:  Coordinate{Latitude: v.Latitude, Longitude: v.Longitude},
				Title:       "Vehículo GPS - " + v.IMEI,
				Description: fmt.Sprintf("IMEI: %s | Velocidad: %s km/h", v.IMEI, strconv.FormatFloat(v.Speed, 'f', -1, 64)),
				Color:       vehicleColor,
			})
		}
	}

	if in.UserLocation != nil {
		out.Markers = append(out.Markers, Marker{
			ID:          "user",
			Kind:        MarkerUser,
			Coordinate:  *in.UserLocation,
			Title:       "Tu ubicación",
			Description: "Estás aquí",
			Color:       userColor,
		})
	}

	return out
}

func appendRoute(out *Overlays, r catalog.Route) {
	if len(r.Path) > 0 {
		color := r.Color
		if color == "" {
			color = defaultRouteColor
		}
		coords := make([]Coordinate, 0, len(r.Path))
		for _, p := range r.Path {
			coords = append(coords, Coordinate{Latitude: p.Lat, Longitude: p.Lng})
		}
		out.Polylines = append(out.Polylines, Polyline{RouteID: r.ID, Color: color, Coordinates: coords})
	}

	color := r.Color
	if color == "" {
		color = defaultStationColor
	}
	for _, s := range catalog.SortStations(r.Stations) {
		out.Markers = append(out.Markers, Marker{
			ID:          "station:" + s.ID,
			Kind:        MarkerStation,
			Coordinate:  Coordinate{Latitude: s.Lat, Longitude: s.Lng},
			Title:       s.Name,
			Description: fmt.Sprintf("%s - Estación %d", r.Name, s.Order),
			Color:       color,
		})
	}
}
