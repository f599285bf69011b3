package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultLoginError    = "Error al iniciar sesión"
	defaultRegisterError = "Error al registrar usuario"
)

// User is the account profile returned by the auth backend
type User struct {
	ID        string `json:"id"`
	Nombres   string `json:"nombres"`
	Apellidos string `json:"apellidos"`
	Email     string `json:"email"`
	Telefono  string `json:"telefono"`
	Rol       string `json:"rol"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// LoginResponse is the backend's answer to a successful login
type LoginResponse struct {
	Success bool   `json:"success"`
	User    User   `json:"user"`
	Token   string `json:"token"`
	Message string `json:"message"`
}

// RegisterRequest carries the sign-up form
type RegisterRequest struct {
	Nombres         string `json:"nombres"`
	Apellidos       string `json:"apellidos"`
	Email           string `json:"email"`
	Telefono        string `json:"telefono"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// RegisterResponse is the backend's answer to a successful registration
type RegisterResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	User    User   `json:"user"`
}

// AuthError is a rejection reported by the auth backend. Message is
// user-facing.
type AuthError struct {
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	return e.Message
}

// AuthClient talks to the remote authentication API
type AuthClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewAuthClient creates a client for the auth API rooted at baseURL
func NewAuthClient(baseURL string, timeout time.Duration) *AuthClient {
	return &AuthClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Login exchanges credentials for a user profile and token
func (c *AuthClient) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	body := map[string]string{"email": email, "password": password}

	var resp LoginResponse
	if err := c.post(ctx, "/login", body, &resp, defaultLoginError); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Register creates an account. It does not sign the user in.
func (c *AuthClient) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	var resp RegisterResponse
	if err := c.post(ctx, "/register", req, &resp, defaultRegisterError); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *AuthClient) post(ctx context.Context, path string, in, out interface{}, defaultMessage string) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call auth API: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var failure struct {
			Error string `json:"error"`
		}
		message := defaultMessage
		if json.Unmarshal(data, &failure) == nil && failure.Error != "" {
			message = failure.Error
		}
		return &AuthError{StatusCode: resp.StatusCode, Message: message}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
