package tracker

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/lapaz-movil/transit/internal/poll"
	"github.com/lapaz-movil/transit/internal/realtime/gps"
)

// Recorder persists one successful poll
type Recorder interface {
	RecordSnapshot(ctx context.Context, polledAt time.Time, positions []gps.VehiclePosition) (string, error)
}

// Gauge receives the number of vehicles in the latest snapshot
type Gauge interface {
	SetTrackedVehicles(n int)
}

// Options configures a Tracker
type Options struct {
	Interval  time.Duration
	Scheduler poll.Scheduler
	Observer  poll.Observer
	Recorder  Recorder // optional
	Gauge     Gauge    // optional
}

// Tracker is the service-wide GPS poller behind the public GPS endpoints.
// Every successful poll is written to the recorder once.
type Tracker struct {
	poller *poll.Poller[gps.VehiclePosition]
	opts   Options

	mu           sync.Mutex
	lastRecorded time.Time
	ctx          context.Context
}

// New creates a tracker. Nothing is fetched until Start.
func New(fetch poll.Fetcher[gps.VehiclePosition], opts Options) *Tracker {
	t := &Tracker{opts: opts, ctx: context.Background()}
	t.poller = poll.New(fetch, poll.Options[gps.VehiclePosition]{
		Name:      "GPS tracker",
		Interval:  opts.Interval,
		Scheduler: opts.Scheduler,
		Observer:  opts.Observer,
		OnUpdate:  t.onUpdate,
	})
	return t
}

// Start begins polling until Stop or ctx is done
func (t *Tracker) Start(ctx context.Context) {
	t.mu.Lock()
	t.ctx = ctx
	t.mu.Unlock()
	t.poller.Start(ctx)
}

// Stop halts polling
func (t *Tracker) Stop() {
	t.poller.Stop()
}

// Snapshot returns the latest vehicles, loading flag and error
func (t *Tracker) Snapshot() poll.Snapshot[gps.VehiclePosition] {
	return t.poller.Snapshot()
}

// Vehicle returns the latest snapshot restricted to one IMEI
func (t *Tracker) Vehicle(imei string) poll.Snapshot[gps.VehiclePosition] {
	snap := t.poller.Snapshot()
	match := gps.ByIMEI(imei)
	filtered := make([]gps.VehiclePosition, 0, 1)
	for _, v := range snap.Records {
		if match(v) {
			filtered = append(filtered, v)
		}
	}
	snap.Records = filtered
	return snap
}

func (t *Tracker) onUpdate(snap poll.Snapshot[gps.VehiclePosition]) {
	if snap.UpdatedAt.IsZero() {
		return
	}

	t.mu.Lock()
	if !snap.UpdatedAt.After(t.lastRecorded) {
		t.mu.Unlock()
		return
	}
	t.lastRecorded = snap.UpdatedAt
	ctx := t.ctx
	t.mu.Unlock()

	if t.opts.Gauge != nil {
		t.opts.Gauge.SetTrackedVehicles(len(snap.Records))
	}
	if t.opts.Recorder == nil {
		return
	}

	snapshotID, err := t.opts.Recorder.RecordSnapshot(ctx, snap.UpdatedAt, snap.Records)
	if err != nil {
		log.Printf("GPS: failed to record snapshot: %v", err)
		return
	}
	log.Printf("GPS: recorded %d vehicles (snapshot %s)", len(snap.Records), snapshotID)
}
