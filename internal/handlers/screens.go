package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lapaz-movil/transit/internal/geo"
	"github.com/lapaz-movil/transit/internal/mapview"
	"github.com/lapaz-movil/transit/internal/reveal"
	"github.com/lapaz-movil/transit/internal/screen"
)

// DeviceIDHeader identifies the client device; it namespaces stored state
const DeviceIDHeader = "X-Device-ID"

// ScreenHandler exposes mounted map screens
type ScreenHandler struct {
	manager *screen.Manager
}

// NewScreenHandler creates a new screen handler
func NewScreenHandler(manager *screen.Manager) *ScreenHandler {
	return &ScreenHandler{manager: manager}
}

// MountRequest is the optional body of POST /api/screens
type MountRequest struct {
	IMEI    string `json:"imei,omitempty"`
	HideGPS bool   `json:"hideGps,omitempty"`
}

// Mount handles POST /api/screens
func (h *ScreenHandler) Mount(w http.ResponseWriter, r *http.Request) {
	var req MountRequest
	if r.ContentLength > 0 {
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", map[string]interface{}{
				"internal": err.Error(),
			})
			return
		}
	}

	s := h.manager.Mount(screen.MountOptions{
		DeviceID: r.Header.Get(DeviceIDHeader),
		IMEI:     req.IMEI,
		HideGPS:  req.HideGPS,
	})

	w.Header().Set("Location", "/api/screens/"+s.ID)
	writeJSON(w, http.StatusCreated, s.View())
}

// screenFromRequest resolves {screenId} or writes a 404
func (h *ScreenHandler) screenFromRequest(w http.ResponseWriter, r *http.Request) (*screen.Screen, bool) {
	id := chi.URLParam(r, "screenId")
	s, ok := h.manager.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Screen not found", map[string]interface{}{
			"screenId": id,
		})
		return nil, false
	}
	return s, true
}

// GetScreen handles GET /api/screens/{screenId}
func (h *ScreenHandler) GetScreen(w http.ResponseWriter, r *http.Request) {
	s, ok := h.screenFromRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.View())
}

// Unmount handles DELETE /api/screens/{screenId}
func (h *ScreenHandler) Unmount(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "screenId")
	if !h.manager.Unmount(id) {
		writeError(w, http.StatusNotFound, "Screen not found", map[string]interface{}{
			"screenId": id,
		})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ZoomIn handles POST /api/screens/{screenId}/zoom-in
func (h *ScreenHandler) ZoomIn(w http.ResponseWriter, r *http.Request) {
	s, ok := h.screenFromRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.ZoomIn())
}

// ZoomOut handles POST /api/screens/{screenId}/zoom-out
func (h *ScreenHandler) ZoomOut(w http.ResponseWriter, r *http.Request) {
	s, ok := h.screenFromRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.ZoomOut())
}

// PutRegion handles PUT /api/screens/{screenId}/region
// Stores the viewport a user gesture ended on
func (h *ScreenHandler) PutRegion(w http.ResponseWriter, r *http.Request) {
	s, ok := h.screenFromRequest(w, r)
	if !ok {
		return
	}

	var region mapview.Region
	if err := decodeBody(w, r, &region); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid region", map[string]interface{}{
			"internal": err.Error(),
		})
		return
	}

	stored, err := s.Gesture(region)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid region", map[string]interface{}{
			"internal": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"region": stored,
	})
}

// PostLocation handles POST /api/screens/{screenId}/location
func (h *ScreenHandler) PostLocation(w http.ResponseWriter, r *http.Request) {
	s, ok := h.screenFromRequest(w, r)
	if !ok {
		return
	}

	var report geo.LocationReport
	if err := decodeBody(w, r, &report); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid location report", map[string]interface{}{
			"internal": err.Error(),
		})
		return
	}

	transition, err := s.Location(report)
	if err != nil {
		message := err.Error()
		if errors.Is(err, geo.ErrPermissionDenied) {
			message = screen.PermissionDeniedMessage
		}
		writeError(w, http.StatusUnprocessableEntity, message, nil)
		return
	}
	writeJSON(w, http.StatusOK, transition)
}

// PutFilter handles PUT /api/screens/{screenId}/filter
func (h *ScreenHandler) PutFilter(w http.ResponseWriter, r *http.Request) {
	s, ok := h.screenFromRequest(w, r)
	if !ok {
		return
	}

	var req struct {
		Filter string `json:"filter"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	filter, err := s.SetFilter(r.Context(), req.Filter)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid filter", map[string]interface{}{
			"filter":  req.Filter,
			"allowed": []string{"all", "minibuses", "telefericos"},
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"filter": filter})
}

type visibilityRequest struct {
	Visible *bool `json:"visible"`
}

func decodeVisibility(w http.ResponseWriter, r *http.Request) (bool, bool) {
	var req visibilityRequest
	if err := decodeBody(w, r, &req); err != nil || req.Visible == nil {
		writeError(w, http.StatusBadRequest, "Body must be {\"visible\": true|false}", nil)
		return false, false
	}
	return *req.Visible, true
}

// PutGPS handles PUT /api/screens/{screenId}/gps
func (h *ScreenHandler) PutGPS(w http.ResponseWriter, r *http.Request) {
	s, ok := h.screenFromRequest(w, r)
	if !ok {
		return
	}
	visible, ok := decodeVisibility(w, r)
	if !ok {
		return
	}
	s.SetGPSVisible(visible)
	writeJSON(w, http.StatusOK, map[string]interface{}{"showGps": visible})
}

// PutRoutesVisible handles PUT /api/screens/{screenId}/routes
func (h *ScreenHandler) PutRoutesVisible(w http.ResponseWriter, r *http.Request) {
	s, ok := h.screenFromRequest(w, r)
	if !ok {
		return
	}
	visible, ok := decodeVisibility(w, r)
	if !ok {
		return
	}
	s.SetRoutesVisible(visible)
	writeJSON(w, http.StatusOK, map[string]interface{}{"showRoutes": visible})
}

// ToggleRoute handles POST /api/screens/{screenId}/routes/{routeId}/toggle
func (h *ScreenHandler) ToggleRoute(w http.ResponseWriter, r *http.Request) {
	s, ok := h.screenFromRequest(w, r)
	if !ok {
		return
	}
	routeID := chi.URLParam(r, "routeId")

	selected, err := s.ToggleRoute(routeID)
	if err != nil {
		writeError(w, http.StatusNotFound, "Route not found", map[string]interface{}{
			"routeId": routeID,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"routeId":  routeID,
		"selected": selected,
	})
}

// FocusRoute handles POST /api/screens/{screenId}/routes/{routeId}/focus
func (h *ScreenHandler) FocusRoute(w http.ResponseWriter, r *http.Request) {
	s, ok := h.screenFromRequest(w, r)
	if !ok {
		return
	}
	routeID := chi.URLParam(r, "routeId")

	transition, err := s.FocusRoute(routeID)
	switch {
	case errors.Is(err, screen.ErrUnknownRoute):
		writeError(w, http.StatusNotFound, "Route not found", map[string]interface{}{
			"routeId": routeID,
		})
	case err != nil:
		writeError(w, http.StatusUnprocessableEntity, err.Error(), nil)
	default:
		writeJSON(w, http.StatusOK, transition)
	}
}

// ClearRoutes handles DELETE /api/screens/{screenId}/routes
func (h *ScreenHandler) ClearRoutes(w http.ResponseWriter, r *http.Request) {
	s, ok := h.screenFromRequest(w, r)
	if !ok {
		return
	}
	s.ClearRoutes()
	w.WriteHeader(http.StatusNoContent)
}

// StageComplete handles POST /api/screens/{screenId}/reveal/{stage}
func (h *ScreenHandler) StageComplete(w http.ResponseWriter, r *http.Request) {
	s, ok := h.screenFromRequest(w, r)
	if !ok {
		return
	}
	stage := reveal.Stage(chi.URLParam(r, "stage"))

	state, err := s.StageComplete(stage)
	if err != nil {
		writeError(w, http.StatusConflict, "Invalid reveal transition", map[string]interface{}{
			"stage": stage,
			"state": state,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"state": state})
}
