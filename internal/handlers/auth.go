package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/lapaz-movil/transit/internal/repository"
	"github.com/lapaz-movil/transit/internal/session"
)

// sessionNamespace prefixes the store keys of server-issued sessions so they
// never share keys with device preferences
const sessionNamespace = "session:"

// AuthHandler proxies sign-in and sign-up. A successful login issues an
// opaque session id; later session calls must present it as a bearer token.
type AuthHandler struct {
	auth session.Authenticator
	kv   repository.KeyValueStore
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(auth session.Authenticator, kv repository.KeyValueStore) *AuthHandler {
	return &AuthHandler{auth: auth, kv: kv}
}

func (h *AuthHandler) manager(sessionID string) *session.Manager {
	return session.NewManager(h.auth, h.kv, sessionNamespace+sessionID)
}

// bearerSession extracts the session id from the Authorization header, or
// writes a 401
func bearerSession(w http.ResponseWriter, r *http.Request) (string, bool) {
	const prefix = "Bearer "
	header := r.Header.Get("Authorization")
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		writeError(w, http.StatusUnauthorized, "Not signed in", nil)
		return "", false
	}
	id := strings.TrimSpace(header[len(prefix):])
	if !session.ValidID(id) {
		writeError(w, http.StatusUnauthorized, "Not signed in", nil)
		return "", false
	}
	return id, true
}

func writeAuthError(w http.ResponseWriter, err error) {
	var authErr *session.AuthError
	if errors.As(err, &authErr) {
		status := authErr.StatusCode
		if status < 400 || status > 499 {
			status = http.StatusBadGateway
		}
		writeJSON(w, status, map[string]interface{}{"success": false, "error": authErr.Message})
		return
	}
	writeJSON(w, http.StatusBadGateway, map[string]interface{}{"success": false, "error": err.Error()})
}

// Login handles POST /api/auth/login
// Returns the upstream token once, with the session id the caller must send
// as "Authorization: Bearer <sessionId>" from then on
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	sessionID := session.NewID()
	s, err := h.manager(sessionID).SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"user":      s.User,
		"token":     s.Token,
		"sessionId": sessionID,
	})
}

// Register handles POST /api/auth/register
// Registration does not sign the user in
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req session.RegisterRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	resp, err := h.auth.Register(r.Context(), req)
	if err != nil {
		writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// SignOut handles POST /api/auth/signout
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := bearerSession(w, r)
	if !ok {
		return
	}
	if err := h.manager(sessionID).SignOut(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to sign out", map[string]interface{}{
			"internal": err.Error(),
		})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetSession handles GET /api/auth/session
// Returns the signed-in user; the upstream token is only ever sent by Login
func (h *AuthHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := bearerSession(w, r)
	if !ok {
		return
	}

	s, err := h.manager(sessionID).Load(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load session", map[string]interface{}{
			"internal": err.Error(),
		})
		return
	}
	if s == nil {
		writeError(w, http.StatusUnauthorized, "Not signed in", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user": s.User,
	})
}
