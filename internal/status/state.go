package status

import (
	"fmt"
	"slices"
	"sync"

	"github.com/matheus3301/stash/internal/bus"
)

// State represents the session state of the daemon.
type State string

const (
	Booting   State = "BOOTING"
	SigningIn State = "SIGNING_IN"
	Ready     State = "READY"
	SignedOut State = "SIGNED_OUT"
	Error     State = "ERROR"
)

// validTransitions defines allowed state transitions.
var validTransitions = map[State][]State{
	Booting:   {SigningIn, SignedOut, Error},
	SigningIn: {Ready, SignedOut, Error},
	Ready:     {SigningIn, SignedOut, Error},
	SignedOut: {SigningIn, Error},
	Error:     {Booting, SigningIn, SignedOut},
}

// Machine tracks and enforces session state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine creates a new state machine starting in Booting state.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Booting,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		from := m.current
		m.mu.Unlock()
		return fmt.Errorf("invalid transition from %s to %s", from, to)
	}
	from := m.current
	m.current = to
	m.mu.Unlock()

	m.bus.Publish(bus.NewEvent(bus.KindSessionStatus, StatusChange{From: from, To: to}))
	return nil
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	From State
	To   State
}
