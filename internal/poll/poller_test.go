package poll

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type record struct {
	ID    string
	Speed int
}

// scriptedFetcher returns one queued result per call.
type scriptedFetcher struct {
	mu      sync.Mutex
	results []result
	calls   int
}

type result struct {
	records []record
	err     error
}

func (f *scriptedFetcher) fetch(ctx context.Context) ([]record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.results) == 0 {
		return nil, errors.New("no scripted result")
	}
	r := f.results[0]
	f.results = f.results[1:]
	return r.records, r.err
}

func TestPoller_FetchesImmediatelyOnStart(t *testing.T) {
	sched := NewManualScheduler()
	f := &scriptedFetcher{results: []result{{records: []record{{ID: "A1"}}}}}
	p := New(f.fetch, Options[record]{Scheduler: sched})

	p.Start(context.Background())
	defer p.Stop()

	if f.calls != 1 {
		t.Fatalf("expected 1 fetch on start, got %d", f.calls)
	}
	snap := p.Snapshot()
	if len(snap.Records) != 1 || snap.Records[0].ID != "A1" {
		t.Errorf("unexpected records after start: %+v", snap.Records)
	}
	if snap.Loading {
		t.Error("Loading should be false once the fetch completes")
	}
}

func TestPoller_DefaultInterval(t *testing.T) {
	sched := NewManualScheduler()
	f := &scriptedFetcher{results: []result{{records: nil}}}
	p := New(f.fetch, Options[record]{Scheduler: sched})
	p.Start(context.Background())
	defer p.Stop()

	intervals := sched.Intervals()
	if len(intervals) != 1 || intervals[0] != 5*time.Second {
		t.Errorf("expected a single 5s task, got %v", intervals)
	}
}

func TestPoller_SuccessReplacesFailureKeeps(t *testing.T) {
	sched := NewManualScheduler()
	f := &scriptedFetcher{results: []result{
		{records: []record{{ID: "A1", Speed: 10}}},
		{err: errors.New("Error fetching GPS data")},
		{records: []record{{ID: "B2", Speed: 20}, {ID: "C3", Speed: 30}}},
	}}
	p := New(f.fetch, Options[record]{Scheduler: sched, Interval: 5000 * time.Millisecond})
	p.Start(context.Background())
	defer p.Stop()

	// Tick 1
	snap := p.Snapshot()
	if snap.HasError() {
		t.Fatalf("unexpected error after tick 1: %q", snap.Err)
	}
	if len(snap.Records) != 1 || snap.Records[0].ID != "A1" {
		t.Fatalf("unexpected records after tick 1: %+v", snap.Records)
	}

	// Tick 2 fails: records untouched, error set
	sched.Tick()
	snap = p.Snapshot()
	if snap.Err != "Error fetching GPS data" {
		t.Errorf("Err = %q, expected %q", snap.Err, "Error fetching GPS data")
	}
	if len(snap.Records) != 1 || snap.Records[0].ID != "A1" {
		t.Errorf("failed tick must keep previous records, got %+v", snap.Records)
	}

	// Tick 3 succeeds: replaced wholesale, error cleared
	sched.Tick()
	snap = p.Snapshot()
	if snap.HasError() {
		t.Errorf("error should be cleared after success, got %q", snap.Err)
	}
	if len(snap.Records) != 2 || snap.Records[0].ID != "B2" || snap.Records[1].ID != "C3" {
		t.Errorf("unexpected records after tick 3: %+v", snap.Records)
	}
}

func TestPoller_FilterAppliedEveryTick(t *testing.T) {
	sched := NewManualScheduler()
	f := &scriptedFetcher{results: []result{
		{records: []record{{ID: "A1", Speed: 1}, {ID: "B2"}, {ID: "A1", Speed: 2}}},
		{records: []record{{ID: "B2"}, {ID: "A1", Speed: 3}}},
	}}
	p := New(f.fetch, Options[record]{
		Scheduler: sched,
		Filter:    func(r record) bool { return r.ID == "A1" },
	})
	p.Start(context.Background())
	defer p.Stop()

	snap := p.Snapshot()
	if len(snap.Records) != 2 || snap.Records[0].Speed != 1 || snap.Records[1].Speed != 2 {
		t.Errorf("tick 1: expected ordered A1 subset, got %+v", snap.Records)
	}

	sched.Tick()
	snap = p.Snapshot()
	if len(snap.Records) != 1 || snap.Records[0].Speed != 3 {
		t.Errorf("tick 2: expected re-filtered subset, got %+v", snap.Records)
	}
}

func TestPoller_StopHaltsFetchesAndWrites(t *testing.T) {
	sched := NewManualScheduler()
	f := &scriptedFetcher{results: []result{
		{records: []record{{ID: "A1"}}},
		{records: []record{{ID: "B2"}}},
	}}
	var updates int
	p := New(f.fetch, Options[record]{
		Scheduler: sched,
		OnUpdate:  func(Snapshot[record]) { updates++ },
	})
	p.Start(context.Background())

	p.Stop()
	before := updates
	sched.Tick()

	if f.calls != 1 {
		t.Errorf("expected no fetch after Stop, got %d calls", f.calls)
	}
	if updates != before {
		t.Errorf("OnUpdate called after Stop")
	}
	if sched.Active() != 0 {
		t.Errorf("expected the schedule to be stopped, %d tasks active", sched.Active())
	}
	if p.Active() {
		t.Error("poller should report inactive after Stop")
	}
}

func TestPoller_InFlightResultDroppedAfterStop(t *testing.T) {
	sched := NewManualScheduler()
	release := make(chan struct{})
	started := make(chan struct{})
	var calls int
	var mu sync.Mutex

	fetch := func(ctx context.Context) ([]record, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			return []record{{ID: "first"}}, nil
		}
		close(started)
		<-release
		return []record{{ID: "late"}}, nil
	}

	var updates []Snapshot[record]
	var umu sync.Mutex
	p := New(fetch, Options[record]{
		Scheduler: sched,
		OnUpdate: func(s Snapshot[record]) {
			umu.Lock()
			updates = append(updates, s)
			umu.Unlock()
		},
	})
	p.Start(context.Background())

	done := make(chan struct{})
	go func() {
		sched.Tick()
		close(done)
	}()
	<-started
	p.Stop()
	close(release)
	<-done

	snap := p.Snapshot()
	if len(snap.Records) != 1 || snap.Records[0].ID != "first" {
		t.Errorf("late result must not be written, got %+v", snap.Records)
	}
	umu.Lock()
	defer umu.Unlock()
	for _, u := range updates {
		for _, r := range u.Records {
			if r.ID == "late" {
				t.Error("OnUpdate received a result resolved after Stop")
			}
		}
	}
}

func TestPoller_LoadingDuringFetch(t *testing.T) {
	sched := NewManualScheduler()
	var sawLoading bool
	var p *Poller[record]
	fetch := func(ctx context.Context) ([]record, error) {
		sawLoading = p.Snapshot().Loading
		return nil, nil
	}
	p = New(fetch, Options[record]{Scheduler: sched})
	p.Start(context.Background())
	defer p.Stop()

	if !sawLoading {
		t.Error("Loading should be true while the fetch runs")
	}
	if p.Snapshot().Loading {
		t.Error("Loading should be false after the fetch")
	}
}

func TestPoller_ContextCancelStops(t *testing.T) {
	sched := NewManualScheduler()
	f := &scriptedFetcher{results: []result{{records: nil}}}
	p := New(f.fetch, Options[record]{Scheduler: sched})

	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for p.Active() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if p.Active() {
		t.Fatal("poller should stop when its context is cancelled")
	}
	sched.Tick()
	if f.calls != 1 {
		t.Errorf("expected no fetch after cancellation, got %d calls", f.calls)
	}
}

func TestPoller_StartTwiceIsNoop(t *testing.T) {
	sched := NewManualScheduler()
	f := &scriptedFetcher{results: []result{{records: nil}, {records: nil}}}
	p := New(f.fetch, Options[record]{Scheduler: sched})
	p.Start(context.Background())
	p.Start(context.Background())
	defer p.Stop()

	if f.calls != 1 {
		t.Errorf("expected 1 fetch, got %d", f.calls)
	}
	if sched.Active() != 1 {
		t.Errorf("expected 1 scheduled task, got %d", sched.Active())
	}
}

type countingObserver struct {
	mu     sync.Mutex
	ok     int
	failed int
}

func (o *countingObserver) ObservePoll(name string, elapsed time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		o.failed++
	} else {
		o.ok++
	}
}

func TestPoller_ReportsToObserver(t *testing.T) {
	sched := NewManualScheduler()
	obs := &countingObserver{}
	f := &scriptedFetcher{results: []result{{records: nil}, {err: errors.New("boom")}}}
	p := New(f.fetch, Options[record]{Scheduler: sched, Observer: obs, Name: "test"})
	p.Start(context.Background())
	sched.Tick()
	p.Stop()

	if obs.ok != 1 || obs.failed != 1 {
		t.Errorf("observer saw ok=%d failed=%d, expected 1/1", obs.ok, obs.failed)
	}
}

func TestTickerScheduler_RunsImmediatelyAndRepeats(t *testing.T) {
	var mu sync.Mutex
	runs := 0
	task := TickerScheduler{}.Repeat(10*time.Millisecond, func() {
		mu.Lock()
		runs++
		mu.Unlock()
	})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := runs
		mu.Unlock()
		if n >= 3 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	task.Stop()
	task.Stop() // idempotent

	mu.Lock()
	defer mu.Unlock()
	if runs < 3 {
		t.Errorf("expected at least 3 runs, got %d", runs)
	}
}
