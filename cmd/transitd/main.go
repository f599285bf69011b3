package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/lapaz-movil/transit/internal/config"
	"github.com/lapaz-movil/transit/internal/db"
	"github.com/lapaz-movil/transit/internal/handlers"
	"github.com/lapaz-movil/transit/internal/observability"
	"github.com/lapaz-movil/transit/internal/realtime/gps"
	"github.com/lapaz-movil/transit/internal/realtime/tracker"
	"github.com/lapaz-movil/transit/internal/repository"
	"github.com/lapaz-movil/transit/internal/screen"
	"github.com/lapaz-movil/transit/internal/session"
	"github.com/lapaz-movil/transit/internal/static/catalog"
)

func main() {
	log.Println("Starting La Paz transit service...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	log.Printf("Config loaded: poll_interval=%v, retention=%v, port=%s", cfg.GPSPollInterval, cfg.RetentionDuration, cfg.Port)

	// ═══════════════════════════════════════════════════════
	// PHASE 1: Initialize Storage
	// ═══════════════════════════════════════════════════════
	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	database, err := db.Connect(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	if err := database.EnsureSchema(context.Background()); err != nil {
		log.Fatalf("Failed to ensure database schema: %v", err)
	}
	log.Println("Database initialized")

	store, err := repository.Open(cfg.DatabaseURL, cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to open preference store: %v", err)
	}
	defer store.Close()

	metrics, err := observability.NewCollector(nil)
	if err != nil {
		log.Fatalf("Failed to register metrics: %v", err)
	}

	// ═══════════════════════════════════════════════════════
	// PHASE 2: Upstream Clients
	// ═══════════════════════════════════════════════════════
	gpsClient := gps.NewClient(cfg.GPSAPIURL, cfg.HTTPTimeout)
	catalogClient := catalog.NewClient(cfg.RoutesAPIURL, cfg.HTTPTimeout)
	cachedCatalog := catalog.NewCached(catalogClient, cfg.CatalogCacheTTL)
	authClient := session.NewAuthClient(cfg.AuthAPIURL, cfg.HTTPTimeout)

	// ═══════════════════════════════════════════════════════
	// PHASE 3: Start Background Loops
	// ═══════════════════════════════════════════════════════
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gpsTracker := tracker.New(gpsClient.FetchPositions, tracker.Options{
		Interval: cfg.GPSPollInterval,
		Observer: metrics,
		Recorder: database,
		Gauge:    metrics,
	})
	gpsTracker.Start(ctx)

	// History cleanup goroutine
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := database.Cleanup(ctx, cfg.RetentionDuration); err != nil {
					log.Printf("Cleanup error: %v", err)
				}
			case <-ctx.Done():
				log.Println("Cleanup loop stopped")
				return
			}
		}
	}()

	// Screens always read the catalog fresh; only the public endpoints are cached
	screens := screen.NewManager(ctx, screen.Dependencies{
		Catalog:      catalogClient,
		Vehicles:     gpsClient.FetchPositions,
		Preferences:  store,
		PollInterval: cfg.GPSPollInterval,
		Observer:     metrics,
		Gauge:        metrics,
		IdleTimeout:  cfg.ScreenIdleTimeout,
	})
	go screens.RunSweeper(ctx, cfg.ScreenIdleTimeout/4)

	// ═══════════════════════════════════════════════════════
	// PHASE 4: HTTP Server
	// ═══════════════════════════════════════════════════════
	router := handlers.NewRouter(handlers.Handlers{
		Health:  handlers.NewHealthHandler(database.Conn(), metrics, screens),
		Routes:  handlers.NewRouteHandler(cachedCatalog),
		GPS:     handlers.NewGPSHandler(gpsTracker, gpsClient, database),
		Screens: handlers.NewScreenHandler(screens),
		Auth:    handlers.NewAuthHandler(authClient, store),
		Metrics: metrics,
	}, cfg.AllowedOrigins)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("API server starting on :%s", cfg.Port)
		log.Println("Catalog endpoints:")
		log.Println("  GET /api/routes")
		log.Println("  GET /api/routes/{categoryId}")
		log.Println("  GET /api/routes.geojson")
		log.Println("GPS endpoints:")
		log.Println("  GET /api/gps/track")
		log.Println("  GET /api/gps/devices")
		log.Println("  GET /api/gps/history/{imei}")
		log.Println("  GET /api/gps/feed.pb")
		log.Println("Screen endpoints:")
		log.Println("  POST /api/screens")
		log.Println("  GET /api/screens/{screenId}/ws")
		log.Println("Health:")
		log.Println("  GET /health (with database check)")
		log.Println("  GET /metrics")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// ═══════════════════════════════════════════════════════
	// PHASE 5: Graceful Shutdown
	// ═══════════════════════════════════════════════════════
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}

	screens.Shutdown()
	gpsTracker.Stop()
	cancel()

	log.Println("Goodbye!")
}
