package gps

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/go-playground/validator/v10"
)

// ErrUnexpectedShape is returned when a payload is neither a JSON object nor
// a JSON array.
var ErrUnexpectedShape = errors.New("unexpected response shape")

// ErrMalformed is returned when an object payload is not valid JSON.
var ErrMalformed = errors.New("malformed JSON")

var validate = validator.New()

// Shape tags the two payload forms the tracking API returns.
type Shape int

const (
	ShapeInvalid Shape = iota
	ShapeObject
	ShapeArray
)

// DetectShape inspects the first significant byte of a JSON payload.
func DetectShape(body []byte) Shape {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ShapeInvalid
	}
	switch trimmed[0] {
	case '{':
		return ShapeObject
	case '[':
		return ShapeArray
	default:
		return ShapeInvalid
	}
}

// DecodePositions decodes a tracking payload. A single object becomes a
// one-element slice. Records that fail to decode or validate are logged and
// dropped; only a payload that is not an object or array fails.
func DecodePositions(body []byte) ([]VehiclePosition, error) {
	positions, err := decodeOneOrMany[VehiclePosition](body, "position")
	if err != nil {
		return nil, err
	}
	for i := range positions {
		if positions[i].Timestamp != nil && positions[i].Timestamp.IsZero() {
			positions[i].Timestamp = nil
		}
	}
	return positions, nil
}

// DecodeDevices decodes a device registry payload.
func DecodeDevices(body []byte) ([]Device, error) {
	return decodeOneOrMany[Device](body, "device")
}

func decodeOneOrMany[T any](body []byte, kind string) ([]T, error) {
	var raw []json.RawMessage

	switch DetectShape(body) {
	case ShapeObject:
		if !json.Valid(body) {
			return nil, fmt.Errorf("failed to decode object: %w", ErrMalformed)
		}
		raw = []json.RawMessage{body}
	case ShapeArray:
		if err := json.Unmarshal(body, &raw); err != nil {
			return nil, fmt.Errorf("failed to decode array: %w", err)
		}
	default:
		return nil, ErrUnexpectedShape
	}

	records := make([]T, 0, len(raw))
	for i, r := range raw {
		var record T
		if err := json.Unmarshal(r, &record); err != nil {
			log.Printf("GPS: dropping %s record %d: %v", kind, i, err)
			continue
		}
		if err := validate.Struct(record); err != nil {
			log.Printf("GPS: dropping invalid %s record %d: %v", kind, i, err)
			continue
		}
		records = append(records, record)
	}

	return records, nil
}
