package mapview

import (
	"math"

	"github.com/lapaz-movil/transit/internal/static/catalog"
)

const earthRadiusMeters = 6371000

// Haversine calculates the distance between two points in meters
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	deltaPhi := (lat2 - lat1) * math.Pi / 180
	deltaLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaPhi/2)*math.Sin(deltaPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(deltaLambda/2)*math.Sin(deltaLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}

// RouteLength calculates the length of a route's path or station chain in meters
func RouteLength(r catalog.Route) float64 {
	coords := routeCoordinates(r)
	var total float64
	for i := 1; i < len(coords); i++ {
		total += Haversine(
			coords[i-1].Latitude, coords[i-1].Longitude,
			coords[i].Latitude, coords[i].Longitude,
		)
	}
	return total
}

// fitPadding widens a fitted region so the outermost points are not on the edge
const fitPadding = 1.2

// FitRoute returns a region framing every point of the route, or false if
// the route has no coordinates.
func FitRoute(r catalog.Route) (Region, bool) {
	coords := routeCoordinates(r)
	if len(coords) == 0 {
		return Region{}, false
	}

	minLat, maxLat := coords[0].Latitude, coords[0].Latitude
	minLng, maxLng := coords[0].Longitude, coords[0].Longitude
	for _, c := range coords[1:] {
		minLat = math.Min(minLat, c.Latitude)
		maxLat = math.Max(maxLat, c.Latitude)
		minLng = math.Min(minLng, c.Longitude)
		maxLng = math.Max(maxLng, c.Longitude)
	}

	return Region{
		Latitude:       (minLat + maxLat) / 2,
		Longitude:      (minLng + maxLng) / 2,
		LatitudeDelta:  (maxLat - minLat) * fitPadding,
		LongitudeDelta: (maxLng - minLng) * fitPadding,
	}.Clamp(), true
}

func routeCoordinates(r catalog.Route) []Coordinate {
	if len(r.Path) > 0 {
		out := make([]Coordinate, 0, len(r.Path))
		for _, p := range r.Path {
			out = append(out, Coordinate{Latitude: p.Lat, Longitude: p.Lng})
		}
		return out
	}
	stations := catalog.SortStations(r.Stations)
	out := make([]Coordinate, 0, len(stations))
	for _, s := range stations {
		out = append(out, Coordinate{Latitude: s.Lat, Longitude: s.Lng})
	}
	return out
}
