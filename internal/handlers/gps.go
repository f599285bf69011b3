package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lapaz-movil/transit/internal/db"
	"github.com/lapaz-movil/transit/internal/poll"
	"github.com/lapaz-movil/transit/internal/realtime/gps"
	"github.com/lapaz-movil/transit/internal/realtime/gtfsrt"
)

// VehicleSource provides the latest polled vehicles
type VehicleSource interface {
	Snapshot() poll.Snapshot[gps.VehiclePosition]
	Vehicle(imei string) poll.Snapshot[gps.VehiclePosition]
}

// DeviceLister lists registered GPS devices
type DeviceLister interface {
	FetchDevices(ctx context.Context) ([]gps.Device, error)
}

// HistoryRepository reads recorded positions
type HistoryRepository interface {
	History(ctx context.Context, imei string, limit int) ([]db.StoredPosition, error)
}

// GPSHandler serves live and recorded GPS data
type GPSHandler struct {
	vehicles VehicleSource
	devices  DeviceLister
	history  HistoryRepository
}

// NewGPSHandler creates a new GPS handler
func NewGPSHandler(vehicles VehicleSource, devices DeviceLister, history HistoryRepository) *GPSHandler {
	return &GPSHandler{vehicles: vehicles, devices: devices, history: history}
}

// GetTrackResponse is the JSON response for GET /api/gps/track
type GetTrackResponse struct {
	Vehicles  []gps.VehiclePosition `json:"vehicles"`
	Count     int                   `json:"count"`
	Loading   bool                  `json:"loading"`
	Error     string                `json:"error,omitempty"`
	UpdatedAt *time.Time            `json:"updatedAt,omitempty"`
}

// GetTrack handles GET /api/gps/track
// Returns the latest vehicles, optionally restricted by the imei query parameter
func (h *GPSHandler) GetTrack(w http.ResponseWriter, r *http.Request) {
	var snap poll.Snapshot[gps.VehiclePosition]
	if imei := r.URL.Query().Get("imei"); imei != "" {
		snap = h.vehicles.Vehicle(imei)
	} else {
		snap = h.vehicles.Snapshot()
	}

	response := GetTrackResponse{
		Vehicles: snap.Records,
		Count:    len(snap.Records),
		Loading:  snap.Loading,
		Error:    snap.Err,
	}
	if response.Vehicles == nil {
		response.Vehicles = []gps.VehiclePosition{}
	}
	if !snap.UpdatedAt.IsZero() {
		updated := snap.UpdatedAt
		response.UpdatedAt = &updated
	}

	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, http.StatusOK, response)
}

// GetDevices handles GET /api/gps/devices
func (h *GPSHandler) GetDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := h.devices.FetchDevices(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error(), nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"devices": devices,
		"count":   len(devices),
	})
}

// GetHistory handles GET /api/gps/history/{imei}?limit=N
func (h *GPSHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	imei := chi.URLParam(r, "imei")

	limit := db.DefaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer", map[string]interface{}{
				"limit": raw,
			})
			return
		}
		limit = n
	}

	positions, err := h.history.History(r.Context(), imei, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to retrieve history", map[string]interface{}{
			"internal": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"imei":      imei,
		"positions": positions,
		"count":     len(positions),
	})
}

// GetFeed handles GET /api/gps/feed.pb
// Returns the latest vehicles as a GTFS-Realtime VehiclePositions feed
func (h *GPSHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	data, err := gtfsrt.Encode(h.vehicles.Snapshot().Records, time.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to encode feed", nil)
		return
	}

	w.Header().Set("Content-Type", gtfsrt.ContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
