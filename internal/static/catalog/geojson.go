package catalog

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// FeatureCollection exports the catalog as GeoJSON: one LineString per
// minibus route and one Point per teleferico station. GeoJSON coordinates
// are [lng, lat].
func FeatureCollection(categories []RouteCategory) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	for _, c := range categories {
		for _, r := range c.Routes {
			if len(r.Path) > 1 {
				line := make(orb.LineString, 0, len(r.Path))
				for _, p := range r.Path {
					line = append(line, orb.Point{p.Lng, p.Lat})
				}
				f := geojson.NewFeature(line)
				f.ID = r.ID
				f.Properties["category"] = c.ID
				f.Properties["kind"] = string(r.Kind)
				f.Properties["name"] = r.Name
				f.Properties["color"] = r.Color
				if r.Number != "" {
					f.Properties["number"] = r.Number
				}
				if r.Sindicato != "" {
					f.Properties["sindicato"] = r.Sindicato
				}
				fc.Append(f)
			}

			for _, s := range SortStations(r.Stations) {
				f := geojson.NewFeature(orb.Point{s.Lng, s.Lat})
				f.ID = s.ID
				f.Properties["category"] = c.ID
				f.Properties["kind"] = "station"
				f.Properties["route_id"] = r.ID
				f.Properties["name"] = s.Name
				f.Properties["order"] = s.Order
				f.Properties["color"] = r.Color
				fc.Append(f)
			}
		}
	}

	return fc
}
