package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lapaz-movil/transit/internal/realtime/gps"
)

// CreateSnapshot creates a new snapshot record and returns its ID
func (db *DB) CreateSnapshot(ctx context.Context, polledAt time.Time, vehicleCount int) (string, error) {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	snapshotID := uuid.New().String()
	polledAtStr := polledAt.UTC().Format(time.RFC3339)

	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO gps_snapshots (snapshot_id, polled_at_utc, vehicle_count) VALUES (?, ?, ?)",
		snapshotID, polledAtStr, vehicleCount,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create snapshot: %w", err)
	}

	return snapshotID, nil
}

// UpsertVehiclePositions replaces the current position of every vehicle in
// the batch and appends it to the history table.
func (db *DB) UpsertVehiclePositions(ctx context.Context, snapshotID string, polledAt time.Time, positions []gps.VehiclePosition) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	polledAtStr := polledAt.UTC().Format(time.RFC3339)

	currentStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO gps_vehicle_current (
			imei, snapshot_id, latitude, longitude, altitude, satellites,
			speed_kmh, heading, fuel_percent, engine_on, vehicle_timestamp_utc,
			polled_at_utc, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, datetime('now'))
		ON CONFLICT (imei) DO UPDATE SET
			snapshot_id = excluded.snapshot_id,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			altitude = excluded.altitude,
			satellites = excluded.satellites,
			speed_kmh = excluded.speed_kmh,
			heading = excluded.heading,
			fuel_percent = excluded.fuel_percent,
			engine_on = excluded.engine_on,
			vehicle_timestamp_utc = excluded.vehicle_timestamp_utc,
			polled_at_utc = excluded.polled_at_utc,
			updated_at = datetime('now')
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare current statement: %w", err)
	}
	defer currentStmt.Close()

	historyStmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO gps_vehicle_history (
			imei, snapshot_id, latitude, longitude, altitude, satellites,
			speed_kmh, heading, fuel_percent, engine_on, vehicle_timestamp_utc,
			polled_at_utc
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare history statement: %w", err)
	}
	defer historyStmt.Close()

	for _, p := range positions {
		var vehicleTS *string
		if p.Timestamp != nil && !p.Timestamp.IsZero() {
			s := p.Timestamp.UTC().Format(time.RFC3339)
			vehicleTS = &s
		}
		var engine *int
		if p.EngineOn != nil {
			v := 0
			if *p.EngineOn {
				v = 1
			}
			engine = &v
		}

		args := []interface{}{
			p.IMEI, snapshotID, p.Latitude, p.Longitude, p.Altitude, p.Satellites,
			p.Speed, p.Heading, p.Fuel, engine, vehicleTS,
			polledAtStr,
		}

		if _, err := currentStmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to upsert position %s: %w", p.IMEI, err)
		}
		if _, err := historyStmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to insert history %s: %w", p.IMEI, err)
		}
	}

	return tx.Commit()
}

// RecordSnapshot stores one poll result: a snapshot row plus every position
func (db *DB) RecordSnapshot(ctx context.Context, polledAt time.Time, positions []gps.VehiclePosition) (string, error) {
	snapshotID, err := db.CreateSnapshot(ctx, polledAt, len(positions))
	if err != nil {
		return "", err
	}
	if err := db.UpsertVehiclePositions(ctx, snapshotID, polledAt, positions); err != nil {
		return "", err
	}
	return snapshotID, nil
}
