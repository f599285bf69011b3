package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/lapaz-movil/transit/internal/observability"
)

// Handlers groups everything the router serves
type Handlers struct {
	Health  *HealthHandler
	Routes  *RouteHandler
	GPS     *GPSHandler
	Screens *ScreenHandler
	Auth    *AuthHandler
	Metrics *observability.Collector
}

// NewRouter builds the HTTP API
func NewRouter(h Handlers, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if h.Metrics != nil {
		r.Use(h.Metrics.Middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	r.Get("/health", h.Health.GetHealth)
	if h.Metrics != nil {
		r.Handle("/metrics", h.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		// Upstream-backed reads get a deadline; the websocket route is long-lived
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(15 * time.Second))

			r.Get("/routes", h.Routes.GetRoutes)
			r.Get("/routes.geojson", h.Routes.GetGeoJSON)
			r.Get("/routes/{categoryId}", h.Routes.GetCategory)

			r.Get("/gps/track", h.GPS.GetTrack)
			r.Get("/gps/devices", h.GPS.GetDevices)
			r.Get("/gps/history/{imei}", h.GPS.GetHistory)
			r.Get("/gps/feed.pb", h.GPS.GetFeed)

			r.Post("/auth/login", h.Auth.Login)
			r.Post("/auth/register", h.Auth.Register)
			r.Post("/auth/signout", h.Auth.SignOut)
			r.Get("/auth/session", h.Auth.GetSession)
		})

		r.Post("/screens", h.Screens.Mount)
		r.Route("/screens/{screenId}", func(r chi.Router) {
			r.Get("/", h.Screens.GetScreen)
			r.Delete("/", h.Screens.Unmount)
			r.Post("/zoom-in", h.Screens.ZoomIn)
			r.Post("/zoom-out", h.Screens.ZoomOut)
			r.Put("/region", h.Screens.PutRegion)
			r.Post("/location", h.Screens.PostLocation)
			r.Put("/filter", h.Screens.PutFilter)
			r.Put("/gps", h.Screens.PutGPS)
			r.Put("/routes", h.Screens.PutRoutesVisible)
			r.Delete("/routes", h.Screens.ClearRoutes)
			r.Post("/routes/{routeId}/toggle", h.Screens.ToggleRoute)
			r.Post("/routes/{routeId}/focus", h.Screens.FocusRoute)
			r.Post("/reveal/{stage}", h.Screens.StageComplete)
			r.Get("/ws", h.Screens.Stream)
		})
	})

	return r
}
