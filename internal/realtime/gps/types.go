package gps

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// VehiclePosition is one telemetry report from a tracked vehicle.
type VehiclePosition struct {
	IMEI       string     `json:"imei" validate:"required"`
	Latitude   float64    `json:"latitud" validate:"gte=-90,lte=90"`
	Longitude  float64    `json:"longitud" validate:"gte=-180,lte=180"`
	Altitude   float64    `json:"altitud"`
	Satellites int        `json:"satelites"`
	Speed      float64    `json:"velocidad"`             // km/h
	Heading    float64    `json:"direccion"`             // degrees
	Fuel       *float64   `json:"combustible,omitempty"` // percent
	EngineOn   *bool      `json:"motor,omitempty"`
	Timestamp  *Timestamp `json:"timestamp,omitempty"`
}

// Device is a registered GPS unit.
type Device struct {
	IMEI   string `json:"imei" validate:"required"`
	Name   string `json:"nombre"`
	Active bool   `json:"activo"`
}

// Timestamp accepts RFC3339 and plain "2006-01-02 15:04:05" strings as well as
// unix seconds or milliseconds, integral or fractional. A value in none of
// those forms decodes as the zero time instead of failing the record.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05Z07:00",
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		t.Time = parseTimestamp(strings.TrimSpace(s))
		return nil
	}

	t.Time = parseEpoch(string(data))
	return nil
}

func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			return parsed.UTC()
		}
	}
	// Some devices send the epoch as a string
	return parseEpoch(s)
}

func parseEpoch(s string) time.Time {
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) || n <= 0 {
		return time.Time{}
	}
	// Anything past 1e12 is milliseconds
	if n > 1e12 {
		return time.UnixMilli(int64(n)).UTC()
	}
	sec, frac := math.Modf(n)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time.UTC().Format(time.RFC3339))
}

// ByIMEI returns a filter matching a single vehicle identifier.
func ByIMEI(imei string) func(VehiclePosition) bool {
	return func(v VehiclePosition) bool {
		return v.IMEI == imei
	}
}
