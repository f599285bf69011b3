package poll

import (
	"context"
	"log"
	"sync"
	"time"
)

// DefaultInterval is the refresh interval used when Options.Interval is zero.
const DefaultInterval = 5 * time.Second

// Fetcher retrieves one full collection of records.
type Fetcher[T any] func(ctx context.Context) ([]T, error)

// Observer receives the outcome of every completed fetch.
type Observer interface {
	ObservePoll(name string, elapsed time.Duration, err error)
}

// Options configures a Poller.
type Options[T any] struct {
	Name      string
	Interval  time.Duration
	Filter    func(T) bool // identifier filter, re-applied on every tick
	Scheduler Scheduler
	Observer  Observer

	// OnUpdate is called after every state change while the poller is
	// active. It must not call Stop.
	OnUpdate func(Snapshot[T])
}

// Snapshot is a point-in-time copy of a poller's state.
type Snapshot[T any] struct {
	Records   []T       `json:"records"`
	Loading   bool      `json:"loading"`
	Err       string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// HasError reports whether the last completed fetch failed.
func (s Snapshot[T]) HasError() bool {
	return s.Err != ""
}

// Poller keeps a collection of records fresh by re-fetching it on a fixed
// interval. A failed fetch keeps the previous records and records the error;
// the next tick retries.
type Poller[T any] struct {
	fetch Fetcher[T]
	opts  Options[T]

	mu       sync.Mutex
	state    Snapshot[T]
	inFlight int
	started  bool
	active   bool
	task     Task
	ctx      context.Context
	cancel   context.CancelFunc

	notifyMu sync.Mutex
}

// New creates a poller. It does nothing until Start is called.
func New[T any](fetch Fetcher[T], opts Options[T]) *Poller[T] {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Scheduler == nil {
		opts.Scheduler = TickerScheduler{}
	}
	if opts.Name == "" {
		opts.Name = "poller"
	}
	return &Poller[T]{fetch: fetch, opts: opts}
}

// Start fetches immediately and then on every interval until Stop or ctx is
// done. Starting a poller twice is a no-op; a stopped poller cannot restart.
func (p *Poller[T]) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.active = true
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.mu.Unlock()

	task := p.opts.Scheduler.Repeat(p.opts.Interval, p.cycle)

	p.mu.Lock()
	if !p.active {
		// Stopped while the first run was in progress
		p.mu.Unlock()
		task.Stop()
		return
	}
	p.task = task
	p.mu.Unlock()

	go func() {
		<-p.ctx.Done()
		p.Stop()
	}()
}

// Stop cancels the schedule. Once Stop returns, no fetch result is written
// and OnUpdate is never called again.
func (p *Poller[T]) Stop() {
	p.mu.Lock()
	if !p.active {
		p.mu.Unlock()
		return
	}
	p.active = false
	task := p.task
	p.task = nil
	cancel := p.cancel
	p.mu.Unlock()

	if task != nil {
		task.Stop()
	}
	if cancel != nil {
		cancel()
	}

	// Wait for any OnUpdate call in progress
	p.notifyMu.Lock()
	p.notifyMu.Unlock()
}

// Active reports whether the poller is running.
func (p *Poller[T]) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Snapshot returns a copy of the current state.
func (p *Poller[T]) Snapshot() Snapshot[T] {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *Poller[T]) snapshotLocked() Snapshot[T] {
	snap := p.state
	if p.state.Records != nil {
		snap.Records = make([]T, len(p.state.Records))
		copy(snap.Records, p.state.Records)
	}
	return snap
}

// cycle performs one fetch and applies its result.
func (p *Poller[T]) cycle() {
	p.mu.Lock()
	if !p.active {
		p.mu.Unlock()
		return
	}
	ctx := p.ctx
	p.inFlight++
	p.state.Loading = true
	snap := p.snapshotLocked()
	p.mu.Unlock()
	p.notify(snap)

	start := time.Now()
	records, err := p.fetch(ctx)
	elapsed := time.Since(start)

	p.mu.Lock()
	if !p.active {
		// Resolved after Stop: drop it
		p.mu.Unlock()
		return
	}
	p.inFlight--
	p.state.Loading = p.inFlight > 0
	if err != nil {
		p.state.Err = err.Error()
	} else {
		p.state.Records = p.applyFilter(records)
		p.state.Err = ""
		p.state.UpdatedAt = time.Now().UTC()
	}
	snap = p.snapshotLocked()
	p.mu.Unlock()

	if err != nil {
		log.Printf("%s: poll error: %v", p.opts.Name, err)
	}
	if p.opts.Observer != nil {
		p.opts.Observer.ObservePoll(p.opts.Name, elapsed, err)
	}
	p.notify(snap)
}

func (p *Poller[T]) applyFilter(records []T) []T {
	out := make([]T, 0, len(records))
	for _, r := range records {
		if p.opts.Filter == nil || p.opts.Filter(r) {
			out = append(out, r)
		}
	}
	return out
}

func (p *Poller[T]) notify(snap Snapshot[T]) {
	if p.opts.OnUpdate == nil {
		return
	}
	p.notifyMu.Lock()
	defer p.notifyMu.Unlock()

	if !p.Active() {
		return
	}
	p.opts.OnUpdate(snap)
}
