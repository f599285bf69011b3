package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lapaz-movil/transit/internal/static/catalog"
)

// RouteHandler serves the route catalog
type RouteHandler struct {
	loader catalog.Loader
}

// NewRouteHandler creates a handler reading categories from loader
func NewRouteHandler(loader catalog.Loader) *RouteHandler {
	return &RouteHandler{loader: loader}
}

// GetRoutesResponse is the JSON response for GET /api/routes
type GetRoutesResponse struct {
	Categories []catalog.RouteCategory `json:"categories"`
	RouteCount int                     `json:"routeCount"`
	FetchedAt  time.Time               `json:"fetchedAt"`
}

// GetRoutes handles GET /api/routes
func (h *RouteHandler) GetRoutes(w http.ResponseWriter, r *http.Request) {
	categories, err := h.loader.Load(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "Failed to load routes", map[string]interface{}{
			"internal": err.Error(),
		})
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=60")
	writeJSON(w, http.StatusOK, GetRoutesResponse{
		Categories: categories,
		RouteCount: catalog.CountRoutes(categories),
		FetchedAt:  time.Now().UTC(),
	})
}

// GetCategory handles GET /api/routes/{categoryId}
func (h *RouteHandler) GetCategory(w http.ResponseWriter, r *http.Request) {
	categoryID := chi.URLParam(r, "categoryId")

	categories, err := h.loader.Load(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "Failed to load routes", map[string]interface{}{
			"internal": err.Error(),
		})
		return
	}

	category, ok := catalog.FindCategory(categories, categoryID)
	if !ok {
		writeError(w, http.StatusNotFound, "Category not found", map[string]interface{}{
			"categoryId": categoryID,
		})
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=60")
	writeJSON(w, http.StatusOK, category)
}

// GetGeoJSON handles GET /api/routes.geojson
func (h *RouteHandler) GetGeoJSON(w http.ResponseWriter, r *http.Request) {
	categories, err := h.loader.Load(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "Failed to load routes", map[string]interface{}{
			"internal": err.Error(),
		})
		return
	}

	data, err := catalog.FeatureCollection(categories).MarshalJSON()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to encode routes", nil)
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	w.Header().Set("Cache-Control", "public, max-age=60")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
