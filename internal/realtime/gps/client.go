package gps

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// StatusError is returned when an endpoint answers with a non-2xx status.
// Its message is the user-facing text shown next to the map.
type StatusError struct {
	Resource   string
	StatusCode int
}

func (e *StatusError) Error() string {
	return "Error fetching " + e.Resource
}

// Client reads the GPS tracking API
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a new GPS client for the API rooted at baseURL
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// FetchPositions fetches the latest telemetry for every tracked vehicle
func (c *Client) FetchPositions(ctx context.Context) ([]VehiclePosition, error) {
	body, err := c.get(ctx, "/gps/track", "GPS data")
	if err != nil {
		return nil, err
	}
	return DecodePositions(body)
}

// FetchDevices fetches the registered GPS devices
func (c *Client) FetchDevices(ctx context.Context) ([]Device, error) {
	body, err := c.get(ctx, "/dispositivos-gps", "GPS devices")
	if err != nil {
		return nil, err
	}
	return DecodeDevices(body)
}

func (c *Client) get(ctx context.Context, path, resource string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", resource, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Resource: resource, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}
