package reveal

import (
	"errors"
	"fmt"
	"sync"
)

// State is a step of the entrance sequence
type State string

const (
	AwaitingData      State = "awaiting-data"
	RevealingMap      State = "revealing-map"
	RevealingControls State = "revealing-controls"
	Settled           State = "settled"
)

// Stage names the animation whose completion the client reports
type Stage string

const (
	StageMap      Stage = "map"
	StageControls Stage = "controls"
)

// ErrInvalidTransition is returned for events that do not apply to the
// current state. The state is left unchanged.
var ErrInvalidTransition = errors.New("invalid reveal transition")

// Machine sequences the two-stage reveal. The map stage starts only after
// a successful, non-empty catalog load; its completion starts the controls
// stage. A failed or empty load leaves the machine waiting for good.
type Machine struct {
	mu    sync.Mutex
	state State
}

// NewMachine creates a machine in AwaitingData
func NewMachine() *Machine {
	return &Machine{state: AwaitingData}
}

// State returns the current state
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// DataLoaded reports the outcome of the catalog load. It returns true if
// the map stage started.
func (m *Machine) DataLoaded(ok bool, routeCount int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != AwaitingData || !ok || routeCount == 0 {
		return false
	}
	m.state = RevealingMap
	return true
}

// StageComplete advances past a finished animation stage
func (m *Machine) StageComplete(stage Stage) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case stage == StageMap && m.state == RevealingMap:
		m.state = RevealingControls
	case stage == StageControls && m.state == RevealingControls:
		m.state = Settled
	default:
		return m.state, fmt.Errorf("%w: %s complete in state %s", ErrInvalidTransition, stage, m.state)
	}
	return m.state, nil
}

// MapVisible reports whether the map has started appearing
func (m *Machine) MapVisible() bool {
	return m.State() != AwaitingData
}

// ControlsVisible reports whether the controls have started appearing
func (m *Machine) ControlsVisible() bool {
	s := m.State()
	return s == RevealingControls || s == Settled
}
