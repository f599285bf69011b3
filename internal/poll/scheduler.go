package poll

import (
	"sync"
	"sync/atomic"
	"time"
)

// Task is a handle on a repeating scheduled function.
type Task interface {
	Stop()
}

// Scheduler runs fn once immediately and then on every interval until the
// returned Task is stopped.
type Scheduler interface {
	Repeat(interval time.Duration, fn func()) Task
}

// TickerScheduler is the production scheduler backed by time.Ticker.
// Every run happens on its own goroutine, so a slow run never delays the
// next tick and runs may overlap.
type TickerScheduler struct{}

type tickerTask struct {
	once sync.Once
	stop chan struct{}
}

func (t *tickerTask) Stop() {
	t.once.Do(func() { close(t.stop) })
}

// Repeat implements Scheduler.
func (TickerScheduler) Repeat(interval time.Duration, fn func()) Task {
	task := &tickerTask{stop: make(chan struct{})}

	go fn()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				go fn()
			case <-task.stop:
				return
			}
		}
	}()

	return task
}

// ManualScheduler runs tasks synchronously when Tick is called. It lets
// tests drive pollers without real timers.
type ManualScheduler struct {
	mu    sync.Mutex
	tasks []*manualTask
}

type manualTask struct {
	fn       func()
	interval time.Duration
	stopped  atomic.Bool
}

func (t *manualTask) Stop() {
	t.stopped.Store(true)
}

// NewManualScheduler creates an empty manual scheduler.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// Repeat implements Scheduler. The first run happens before Repeat returns.
func (s *ManualScheduler) Repeat(interval time.Duration, fn func()) Task {
	task := &manualTask{fn: fn, interval: interval}

	s.mu.Lock()
	s.tasks = append(s.tasks, task)
	s.mu.Unlock()

	fn()
	return task
}

// Tick runs every task that has not been stopped, in registration order.
func (s *ManualScheduler) Tick() {
	s.mu.Lock()
	tasks := make([]*manualTask, len(s.tasks))
	copy(tasks, s.tasks)
	s.mu.Unlock()

	for _, t := range tasks {
		if !t.stopped.Load() {
			t.fn()
		}
	}
}

// Active returns the number of tasks that are still scheduled.
func (s *ManualScheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, t := range s.tasks {
		if !t.stopped.Load() {
			n++
		}
	}
	return n
}

// Intervals returns the interval of every registered task.
func (s *ManualScheduler) Intervals() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]time.Duration, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t.interval)
	}
	return out
}
