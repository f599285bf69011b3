package screen

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lapaz-movil/transit/internal/poll"
	"github.com/lapaz-movil/transit/internal/realtime/gps"
	"github.com/lapaz-movil/transit/internal/repository"
	"github.com/lapaz-movil/transit/internal/static/catalog"
)

// MountGauge receives the number of mounted screens
type MountGauge interface {
	SetMountedScreens(n int)
}

// Dependencies are shared by every screen a Manager mounts
type Dependencies struct {
	Catalog      catalog.Loader
	Vehicles     poll.Fetcher[gps.VehiclePosition]
	Preferences  repository.KeyValueStore
	PollInterval time.Duration
	Scheduler    poll.Scheduler // nil uses real timers
	Observer     poll.Observer
	Gauge        MountGauge

	// IdleTimeout is how long a screen with no subscribers and no events
	// stays mounted. Zero uses DefaultIdleTimeout.
	IdleTimeout time.Duration
	Now         func() time.Time // nil uses time.Now
}

// DefaultIdleTimeout is twice the websocket pong wait
const DefaultIdleTimeout = 2 * time.Minute

// MountOptions configures a single screen
type MountOptions struct {
	DeviceID string // namespaces stored preferences
	IMEI     string // track a single vehicle
	HideGPS  bool
}

// Manager owns the mounted screens
type Manager struct {
	ctx  context.Context
	deps Dependencies

	mu      sync.RWMutex
	screens map[string]*Screen
}

// NewManager creates a manager. Screens live until unmounted or until ctx
// is done.
func NewManager(ctx context.Context, deps Dependencies) *Manager {
	if deps.IdleTimeout <= 0 {
		deps.IdleTimeout = DefaultIdleTimeout
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Manager{
		ctx:     ctx,
		deps:    deps,
		screens: make(map[string]*Screen),
	}
}

// Mount creates a screen: it restores the stored filter, starts the catalog
// load and begins polling vehicles
func (m *Manager) Mount(opts MountOptions) *Screen {
	id := uuid.New().String()
	s := newScreen(m.ctx, id, m.deps, opts)

	m.mu.Lock()
	m.screens[id] = s
	n := len(m.screens)
	m.mu.Unlock()

	m.report(n)
	log.Printf("Screen %s: mounted (device=%q imei=%q filter=%s)", id, opts.DeviceID, opts.IMEI, s.filter)
	return s
}

// Get returns a mounted screen and marks it active
func (m *Manager) Get(id string) (*Screen, bool) {
	m.mu.RLock()
	s, ok := m.screens[id]
	m.mu.RUnlock()
	if ok {
		s.touch()
	}
	return s, ok
}

// Unmount closes and forgets a screen. It returns false for unknown ids.
func (m *Manager) Unmount(id string) bool {
	m.mu.Lock()
	s, ok := m.screens[id]
	delete(m.screens, id)
	n := len(m.screens)
	m.mu.Unlock()

	if !ok {
		return false
	}
	s.Close()
	m.report(n)
	log.Printf("Screen %s: unmounted", id)
	return true
}

// Count returns the number of mounted screens
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.screens)
}

// Sweep unmounts every screen that has no subscribers and has seen no
// event for the idle timeout. It returns the number unmounted.
func (m *Manager) Sweep() int {
	now := m.deps.Now()

	m.mu.RLock()
	var idle []string
	for id, s := range m.screens {
		if s.Subscribers() == 0 && s.idleFor(now) >= m.deps.IdleTimeout {
			idle = append(idle, id)
		}
	}
	m.mu.RUnlock()

	n := 0
	for _, id := range idle {
		if m.Unmount(id) {
			log.Printf("Screen %s: idle for %v, unmounted", id, m.deps.IdleTimeout)
			n++
		}
	}
	return n
}

// RunSweeper calls Sweep every interval until ctx is done. A non-positive
// interval sweeps four times per idle timeout.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = m.deps.IdleTimeout / 4
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Sweep()
		case <-ctx.Done():
			log.Println("Screen sweeper stopped")
			return
		}
	}
}

// Shutdown unmounts every screen
func (m *Manager) Shutdown() {
	m.mu.Lock()
	screens := m.screens
	m.screens = make(map[string]*Screen)
	m.mu.Unlock()

	for _, s := range screens {
		s.Close()
	}
	m.report(0)
	if len(screens) > 0 {
		log.Printf("Screens: closed %d on shutdown", len(screens))
	}
}

func (m *Manager) report(n int) {
	if m.deps.Gauge != nil {
		m.deps.Gauge.SetMountedScreens(n)
	}
}
