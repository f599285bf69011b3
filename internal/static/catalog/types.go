package catalog

import "sort"

// Kind is the transport mode of a route
type Kind string

const (
	KindMinibus    Kind = "minibus"
	KindTeleferico Kind = "teleferico"
)

// Category identifiers, also used as filter values
const (
	CategoryMinibuses   = "minibuses"
	CategoryTelefericos = "telefericos"
)

// DefaultMinibusColor is used for minibus routes, which carry no color upstream
const DefaultMinibusColor = "#6B7280"

// Point is a polyline vertex
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Station is a stop on a cable-car line
type Station struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Order int     `json:"order"`
}

// Route is a minibus polyline or a teleferico station sequence
type Route struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Name      string    `json:"name"`
	Color     string    `json:"color,omitempty"`
	Number    string    `json:"number,omitempty"`    // minibus line identifier
	Sindicato string    `json:"sindicato,omitempty"` // minibus operator union
	Path      []Point   `json:"path,omitempty"`
	Stations  []Station `json:"stations,omitempty"`
}

// RouteCategory groups routes of one transport mode
type RouteCategory struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Kind        Kind    `json:"kind"`
	Description string  `json:"description"`
	Routes      []Route `json:"routes"`
}

// Filter selects which categories are shown on the map
type Filter string

const (
	FilterAll         Filter = "all"
	FilterMinibuses   Filter = CategoryMinibuses
	FilterTelefericos Filter = CategoryTelefericos
)

// ParseFilter recognizes the three filter values
func ParseFilter(s string) (Filter, bool) {
	switch Filter(s) {
	case FilterAll, FilterMinibuses, FilterTelefericos:
		return Filter(s), true
	default:
		return "", false
	}
}

// Includes reports whether a category passes the filter
func (f Filter) Includes(categoryID string) bool {
	return f == FilterAll || string(f) == categoryID
}

// SortStations returns the stations ordered by Order. Input order is kept
// among equal values and only the first station of a duplicated Order
// survives, so the result is strictly increasing.
func SortStations(stations []Station) []Station {
	sorted := make([]Station, len(stations))
	copy(sorted, stations)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Order < sorted[j].Order
	})

	out := sorted[:0]
	for i, s := range sorted {
		if i > 0 && s.Order == out[len(out)-1].Order {
			continue
		}
		out = append(out, s)
	}
	return out
}

// FindCategory returns the category with the given ID
func FindCategory(categories []RouteCategory, id string) (RouteCategory, bool) {
	for _, c := range categories {
		if c.ID == id {
			return c, true
		}
	}
	return RouteCategory{}, false
}

// FindRoute returns the route with the given ID from any category
func FindRoute(categories []RouteCategory, routeID string) (Route, bool) {
	for _, c := range categories {
		for _, r := range c.Routes {
			if r.ID == routeID {
				return r, true
			}
		}
	}
	return Route{}, false
}

// CountRoutes returns the total number of routes across categories
func CountRoutes(categories []RouteCategory) int {
	n := 0
	for _, c := range categories {
		n += len(c.Routes)
	}
	return n
}
