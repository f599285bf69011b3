package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Minibus is a record from the /minibuses endpoint
type Minibus struct {
	ID         string  `json:"id"`
	Sindicato  string  `json:"sindicato"`
	Linea      string  `json:"linea"`
	RutaNombre string  `json:"rutaNombre"`
	Tipo       string  `json:"tipo"`
	CreatedAt  string  `json:"createdAt"`
	Ruta       []Point `json:"ruta"`
}

// TelefericoStation is a station nested in a /telefericos record
type TelefericoStation struct {
	ID           string  `json:"id"`
	TelefericoID string  `json:"telefericoId"`
	Nombre       string  `json:"nombre"`
	Lat          float64 `json:"lat"`
	Lng          float64 `json:"lng"`
	Orden        int     `json:"orden"`
	CreatedAt    string  `json:"createdAt"`
}

// Teleferico is a record from the /telefericos endpoint
type Teleferico struct {
	ID         string              `json:"id"`
	Nombre     string              `json:"nombre"`
	Color      string              `json:"color"`
	CreatedAt  string              `json:"createdAt"`
	Estaciones []TelefericoStation `json:"estaciones"`
}

// Client reads the route catalog API
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a catalog client for the API rooted at baseURL
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// FetchMinibuses fetches all minibus routes
func (c *Client) FetchMinibuses(ctx context.Context) ([]Minibus, error) {
	var out []Minibus
	if err := c.getJSON(ctx, "/minibuses", "minibuses", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchTelefericos fetches all cable-car lines
func (c *Client) FetchTelefericos(ctx context.Context) ([]Teleferico, error) {
	var out []Teleferico
	if err := c.getJSON(ctx, "/telefericos", "telefericos", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Load fetches both catalogs concurrently and builds the two categories,
// minibuses first.
func (c *Client) Load(ctx context.Context) ([]RouteCategory, error) {
	var minibuses []Minibus
	var telefericos []Teleferico

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		minibuses, err = c.FetchMinibuses(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		telefericos, err = c.FetchTelefericos(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return BuildCategories(minibuses, telefericos), nil
}

// BuildCategories maps upstream records into route categories
func BuildCategories(minibuses []Minibus, telefericos []Teleferico) []RouteCategory {
	minibusRoutes := make([]Route, 0, len(minibuses))
	for _, m := range minibuses {
		minibusRoutes = append(minibusRoutes, Route{
			ID:        m.ID,
			Kind:      KindMinibus,
			Name:      m.RutaNombre,
			Number:    m.Linea,
			Sindicato: m.Sindicato,
			Color:     DefaultMinibusColor,
			Path:      m.Ruta,
		})
	}

	telefericoRoutes := make([]Route, 0, len(telefericos))
	for _, t := range telefericos {
		stations := make([]Station, 0, len(t.Estaciones))
		for _, e := range t.Estaciones {
			stations = append(stations, Station{
				ID:    e.ID,
				Name:  e.Nombre,
				Lat:   e.Lat,
				Lng:   e.Lng,
				Order: e.Orden,
			})
		}
		telefericoRoutes = append(telefericoRoutes, Route{
			ID:       t.ID,
			Kind:     KindTeleferico,
			Name:     t.Nombre,
			Color:    t.Color,
			Stations: SortStations(stations),
		})
	}

	return []RouteCategory{
		{
			ID:          CategoryMinibuses,
			Name:        "Minibuses",
			Kind:        KindMinibus,
			Description: "Rutas de minibuses en La Paz",
			Routes:      minibusRoutes,
		},
		{
			ID:          CategoryTelefericos,
			Name:        "Teleféricos",
			Kind:        KindTeleferico,
			Description: "Red de teleféricos Mi Teleférico",
			Routes:      telefericoRoutes,
		},
	}
}

func (c *Client) getJSON(ctx context.Context, path, resource string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", resource, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("error fetching %s: status %d", resource, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", resource, err)
	}
	return nil
}
