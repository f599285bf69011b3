package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/lapaz-movil/transit/internal/repository"
)

// Storage keys
const (
	TokenKey = "auth_token"
	UserKey  = "auth_user"
)

// ErrMissingToken is returned when the backend accepts a login without a token
var ErrMissingToken = errors.New("login response carried no token")

// Authenticator is the remote side of sign-in and sign-up
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*LoginResponse, error)
	Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error)
}

// Session is a signed-in user
type Session struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

// NewID returns a random opaque identifier for a server-issued session
func NewID() string {
	return uuid.NewString()
}

// ValidID reports whether id has the form NewID produces
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Manager owns one session's stored token and user, kept in kv under a
// namespace. It is created explicitly and passed to whoever needs it.
type Manager struct {
	auth      Authenticator
	kv        repository.KeyValueStore
	namespace string

	mu      sync.RWMutex
	current *Session
}

// NewManager creates a signed-out manager. Call Load to restore a stored session.
func NewManager(auth Authenticator, kv repository.KeyValueStore, namespace string) *Manager {
	return &Manager{auth: auth, kv: kv, namespace: namespace}
}

func (m *Manager) key(name string) string {
	if m.namespace == "" {
		return name
	}
	return m.namespace + ":" + name
}

// Load restores the stored session. A missing or corrupt entry leaves the
// manager signed out.
func (m *Manager) Load(ctx context.Context) (*Session, error) {
	token, err := m.kv.Get(ctx, m.key(TokenKey))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session token: %w", err)
	}

	rawUser, err := m.kv.Get(ctx, m.key(UserKey))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session user: %w", err)
	}

	var user User
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
		log.Printf("Session: discarding corrupt stored user: %v", err)
		return nil, nil
	}

	s := &Session{User: user, Token: token}
	m.mu.Lock()
	m.current = s
	m.mu.Unlock()
	return s, nil
}

// SignIn logs in and persists the session
func (m *Manager) SignIn(ctx context.Context, email, password string) (*Session, error) {
	resp, err := m.auth.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, ErrMissingToken
	}

	rawUser, err := json.Marshal(resp.User)
	if err != nil {
		return nil, fmt.Errorf("failed to encode user: %w", err)
	}
	if err := m.kv.Set(ctx, m.key(TokenKey), resp.Token); err != nil {
		return nil, fmt.Errorf("failed to store session token: %w", err)
	}
	if err := m.kv.Set(ctx, m.key(UserKey), string(rawUser)); err != nil {
		return nil, fmt.Errorf("failed to store session user: %w", err)
	}

	s := &Session{User: resp.User, Token: resp.Token}
	m.mu.Lock()
	m.current = s
	m.mu.Unlock()

	log.Printf("Session: signed in %s", resp.User.Email)
	return s, nil
}

// SignUp registers an account. The caller stays signed out.
func (m *Manager) SignUp(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	return m.auth.Register(ctx, req)
}

// SignOut clears the stored session
func (m *Manager) SignOut(ctx context.Context) error {
	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()

	if err := m.kv.Delete(ctx, m.key(TokenKey)); err != nil {
		return fmt.Errorf("failed to clear session token: %w", err)
	}
	if err := m.kv.Delete(ctx, m.key(UserKey)); err != nil {
		return fmt.Errorf("failed to clear session user: %w", err)
	}
	return nil
}

// Current returns the signed-in session, or nil
func (m *Manager) Current() *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}
