package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/lapaz-movil/transit/internal/repository"
)

func newAuthServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		json.NewDecoder(r.Body).Decode(&body)

		w.Header().Set("Content-Type", "application/json")
		switch {
		case body.Email == "ana@example.com" && body.Password == "secret":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"success": true,
				"token":   "tok-123",
				"message": "ok",
				"user": map[string]string{
					"id": "u1", "nombres": "Ana", "apellidos": "Quispe",
					"email": "ana@example.com", "telefono": "70000000", "rol": "usuario",
				},
			})
		case body.Email == "silent@example.com":
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("not json"))
		default:
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]interface{}{"success": false, "error": "Credenciales inválidas"})
		}
	})

	mux.HandleFunc("/auth/register", func(w http.ResponseWriter, r *http.Request) {
		var req RegisterRequest
		json.NewDecoder(r.Body).Decode(&req)

		w.Header().Set("Content-Type", "application/json")
		if req.Password != req.ConfirmPassword {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]interface{}{"success": false})
			return
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"message": "Usuario registrado",
			"user":    map[string]string{"id": "u2", "email": req.Email, "nombres": req.Nombres},
		})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestManager(t *testing.T) (*Manager, *repository.SQLiteKV) {
	t.Helper()
	server := newAuthServer(t)

	kv, err := repository.NewSQLiteKV(filepath.Join(t.TempDir(), "session.db"))
	if err != nil {
		t.Fatalf("NewSQLiteKV failed: %v", err)
	}
	t.Cleanup(func() { kv.Close() })

	client := NewAuthClient(server.URL+"/auth/", 5*time.Second)
	return NewManager(client, kv, "device-1"), kv
}

func TestAuthClient_LoginErrors(t *testing.T) {
	server := newAuthServer(t)
	client := NewAuthClient(server.URL+"/auth", 5*time.Second)

	tests := []struct {
		name    string
		email   string
		message string
		status  int
	}{
		{"backend message", "ana@example.com", "Credenciales inválidas", http.StatusUnauthorized},
		{"default message", "silent@example.com", "Error al iniciar sesión", http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := client.Login(context.Background(), tc.email, "wrong")
			var authErr *AuthError
			if !errors.As(err, &authErr) {
				t.Fatalf("expected *AuthError, got %v", err)
			}
			if authErr.Message != tc.message || authErr.StatusCode != tc.status {
				t.Errorf("got %d %q, expected %d %q", authErr.StatusCode, authErr.Message, tc.status, tc.message)
			}
		})
	}
}

func TestAuthClient_RegisterDefaultError(t *testing.T) {
	server := newAuthServer(t)
	client := NewAuthClient(server.URL+"/auth", 5*time.Second)

	_, err := client.Register(context.Background(), RegisterRequest{Password: "a", ConfirmPassword: "b"})
	if err == nil || err.Error() != "Error al registrar usuario" {
		t.Errorf("error = %v", err)
	}
}

func TestManager_SignInPersistsAndLoads(t *testing.T) {
	m, kv := newTestManager(t)
	ctx := context.Background()

	s, err := m.SignIn(ctx, "ana@example.com", "secret")
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if s.Token != "tok-123" || s.User.Nombres != "Ana" {
		t.Errorf("session = %+v", s)
	}
	if m.Current() == nil {
		t.Fatal("Current should be set after SignIn")
	}

	stored, err := kv.Get(ctx, "device-1:"+TokenKey)
	if err != nil || stored != "tok-123" {
		t.Errorf("stored token = %q, %v", stored, err)
	}

	fresh := NewManager(m.auth, kv, "device-1")
	if fresh.Current() != nil {
		t.Error("new manager should start signed out")
	}
	loaded, err := fresh.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded == nil || loaded.User.Email != "ana@example.com" || loaded.Token != "tok-123" {
		t.Errorf("loaded = %+v", loaded)
	}
}

func TestManager_SignInFailureStoresNothing(t *testing.T) {
	m, kv := newTestManager(t)
	ctx := context.Background()

	if _, err := m.SignIn(ctx, "ana@example.com", "wrong"); err == nil {
		t.Fatal("expected error for bad credentials")
	}
	if m.Current() != nil {
		t.Error("failed sign in should leave manager signed out")
	}
	if _, err := kv.Get(ctx, "device-1:"+TokenKey); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("no token should be stored, got %v", err)
	}
}

func TestManager_SignUpDoesNotSignIn(t *testing.T) {
	m, _ := newTestManager(t)

	resp, err := m.SignUp(context.Background(), RegisterRequest{
		Nombres: "Luis", Email: "luis@example.com", Password: "x", ConfirmPassword: "x",
	})
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if !resp.Success || resp.User.Email != "luis@example.com" {
		t.Errorf("response = %+v", resp)
	}
	if m.Current() != nil {
		t.Error("SignUp must not create a session")
	}
}

func TestManager_SignOutClearsBothKeys(t *testing.T) {
	m, kv := newTestManager(t)
	ctx := context.Background()

	if _, err := m.SignIn(ctx, "ana@example.com", "secret"); err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if err := m.SignOut(ctx); err != nil {
		t.Fatalf("SignOut failed: %v", err)
	}

	if m.Current() != nil {
		t.Error("Current should be nil after SignOut")
	}
	for _, key := range []string{TokenKey, UserKey} {
		if _, err := kv.Get(ctx, "device-1:"+key); !errors.Is(err, repository.ErrNotFound) {
			t.Errorf("%s should be cleared, got %v", key, err)
		}
	}

	loaded, err := m.Load(ctx)
	if err != nil || loaded != nil {
		t.Errorf("Load after SignOut = %+v, %v", loaded, err)
	}
}

func TestManager_LoadCorruptUser(t *testing.T) {
	m, kv := newTestManager(t)
	ctx := context.Background()

	kv.Set(ctx, "device-1:"+TokenKey, "tok")
	kv.Set(ctx, "device-1:"+UserKey, "{broken")

	s, err := m.Load(ctx)
	if err != nil || s != nil {
		t.Errorf("corrupt user should load as signed out, got %+v, %v", s, err)
	}
}

func TestSessionIDs(t *testing.T) {
	a, b := NewID(), NewID()
	if a == b {
		t.Fatalf("NewID repeated %q", a)
	}

	tests := []struct {
		id    string
		valid bool
	}{
		{a, true},
		{b, true},
		{"", false},
		{"device-1", false},
		{"phone", false},
	}
	for _, tc := range tests {
		if got := ValidID(tc.id); got != tc.valid {
			t.Errorf("ValidID(%q) = %v, expected %v", tc.id, got, tc.valid)
		}
	}
}

func TestManager_NamespacesDoNotShareSessions(t *testing.T) {
	m, kv := newTestManager(t)
	if _, err := m.SignIn(context.Background(), "ana@example.com", "secret"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	other := NewManager(m.auth, kv, "device-2")
	s, err := other.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s != nil {
		t.Errorf("other namespace saw session %+v", s)
	}
}
