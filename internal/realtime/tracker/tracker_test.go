package tracker

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/lapaz-movil/transit/internal/db"
	"github.com/lapaz-movil/transit/internal/poll"
	"github.com/lapaz-movil/transit/internal/realtime/gps"
)

type fakeRecorder struct {
	mu      sync.Mutex
	batches [][]gps.VehiclePosition
	err     error
}

func (r *fakeRecorder) RecordSnapshot(_ context.Context, _ time.Time, positions []gps.VehiclePosition) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return "", r.err
	}
	r.batches = append(r.batches, positions)
	return "snap", nil
}

type fakeGauge struct{ n int }

func (g *fakeGauge) SetTrackedVehicles(n int) { g.n = n }

func TestTracker_RecordsEachSuccessfulPollOnce(t *testing.T) {
	calls := 0
	fetch := func(context.Context) ([]gps.VehiclePosition, error) {
		calls++
		if calls == 2 {
			return nil, &gps.StatusError{Resource: "GPS data", StatusCode: 503}
		}
		return []gps.VehiclePosition{
			{IMEI: "A1", Latitude: -16.5, Longitude: -68.15},
			{IMEI: "B2", Latitude: -16.4, Longitude: -68.1},
		}, nil
	}

	scheduler := poll.NewManualScheduler()
	recorder := &fakeRecorder{}
	gauge := &fakeGauge{}
	tr := New(fetch, Options{Scheduler: scheduler, Recorder: recorder, Gauge: gauge})
	tr.Start(context.Background())
	defer tr.Stop()

	if len(recorder.batches) != 1 || gauge.n != 2 {
		t.Fatalf("after first poll: %d batches, gauge %d", len(recorder.batches), gauge.n)
	}

	scheduler.Tick() // failure: nothing new to record
	if len(recorder.batches) != 1 {
		t.Errorf("failed poll should not be recorded, got %d batches", len(recorder.batches))
	}
	if tr.Snapshot().Err != "Error fetching GPS data" {
		t.Errorf("error = %q", tr.Snapshot().Err)
	}

	time.Sleep(2 * time.Millisecond) // distinct UpdatedAt
	scheduler.Tick()
	if len(recorder.batches) != 2 {
		t.Errorf("expected 2 recorded batches, got %d", len(recorder.batches))
	}
}

func TestTracker_Vehicle(t *testing.T) {
	fetch := func(context.Context) ([]gps.VehiclePosition, error) {
		return []gps.VehiclePosition{
			{IMEI: "A1", Latitude: -16.5, Longitude: -68.15},
			{IMEI: "B2", Latitude: -16.4, Longitude: -68.1},
		}, nil
	}
	tr := New(fetch, Options{Scheduler: poll.NewManualScheduler()})
	tr.Start(context.Background())
	defer tr.Stop()

	snap := tr.Vehicle("B2")
	if len(snap.Records) != 1 || snap.Records[0].IMEI != "B2" {
		t.Errorf("records = %+v", snap.Records)
	}
	if len(tr.Vehicle("nope").Records) != 0 {
		t.Error("unknown imei should match nothing")
	}
}

func TestTracker_RecorderErrorIsLogged(t *testing.T) {
	fetch := func(context.Context) ([]gps.VehiclePosition, error) {
		return []gps.VehiclePosition{{IMEI: "A1"}}, nil
	}
	recorder := &fakeRecorder{err: errors.New("disk full")}
	tr := New(fetch, Options{Scheduler: poll.NewManualScheduler(), Recorder: recorder})
	tr.Start(context.Background())
	defer tr.Stop()

	if len(tr.Snapshot().Records) != 1 {
		t.Error("a recorder failure must not affect the live snapshot")
	}
}

func TestTracker_WithSQLite(t *testing.T) {
	database, err := db.Connect(filepath.Join(t.TempDir(), "transit.db"))
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer database.Close()
	if err := database.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}

	fetch := func(context.Context) ([]gps.VehiclePosition, error) {
		return []gps.VehiclePosition{{IMEI: "A1", Latitude: -16.5, Longitude: -68.15, Speed: 12}}, nil
	}
	tr := New(fetch, Options{Scheduler: poll.NewManualScheduler(), Recorder: database})
	tr.Start(context.Background())
	defer tr.Stop()

	latest, err := database.LatestPositions(context.Background())
	if err != nil {
		t.Fatalf("LatestPositions: %v", err)
	}
	if len(latest) != 1 || latest[0].IMEI != "A1" || latest[0].Speed != 12 {
		t.Errorf("latest = %+v", latest)
	}
}
