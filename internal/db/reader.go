package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lapaz-movil/transit/internal/realtime/gps"
)

// DefaultHistoryLimit caps History when the caller passes a non-positive limit
const DefaultHistoryLimit = 100

const positionColumns = `
	imei, latitude, longitude, altitude, satellites, speed_kmh, heading,
	fuel_percent, engine_on, vehicle_timestamp_utc, polled_at_utc`

// StoredPosition is a recorded position together with the time it was polled
type StoredPosition struct {
	gps.VehiclePosition
	PolledAt time.Time `json:"polledAt"`
}

// LatestPositions returns the most recent position of every vehicle
func (db *DB) LatestPositions(ctx context.Context) ([]StoredPosition, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT"+positionColumns+" FROM gps_vehicle_current ORDER BY imei")
	if err != nil {
		return nil, fmt.Errorf("failed to query current positions: %w", err)
	}
	defer rows.Close()

	return scanPositions(rows)
}

// History returns the recorded positions of one vehicle, newest first
func (db *DB) History(ctx context.Context, imei string, limit int) ([]StoredPosition, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	rows, err := db.conn.QueryContext(ctx,
		"SELECT"+positionColumns+` FROM gps_vehicle_history
		WHERE imei = ?
		ORDER BY polled_at_utc DESC
		LIMIT ?`, imei, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history for %s: %w", imei, err)
	}
	defer rows.Close()

	return scanPositions(rows)
}

func scanPositions(rows *sql.Rows) ([]StoredPosition, error) {
	positions := []StoredPosition{}
	for rows.Next() {
		var (
			p         StoredPosition
			altitude  sql.NullFloat64
			sats      sql.NullInt64
			speed     sql.NullFloat64
			heading   sql.NullFloat64
			fuel      sql.NullFloat64
			engine    sql.NullInt64
			vehicleTS sql.NullString
			polledAt  string
		)
		err := rows.Scan(
			&p.IMEI, &p.Latitude, &p.Longitude, &altitude, &sats, &speed, &heading,
			&fuel, &engine, &vehicleTS, &polledAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}

		p.Altitude = altitude.Float64
		p.Satellites = int(sats.Int64)
		p.Speed = speed.Float64
		p.Heading = heading.Float64
		if fuel.Valid {
			f := fuel.Float64
			p.Fuel = &f
		}
		if engine.Valid {
			on := engine.Int64 == 1
			p.EngineOn = &on
		}
		if vehicleTS.Valid {
			if t, err := time.Parse(time.RFC3339, vehicleTS.String); err == nil {
				p.Timestamp = &gps.Timestamp{Time: t}
			}
		}
		if t, err := time.Parse(time.RFC3339, polledAt); err == nil {
			p.PolledAt = t
		}

		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating positions: %w", err)
	}
	return positions, nil
}
