package status

import (
	"testing"

	"github.com/matheus3301/stash/internal/bus"
)

func TestInitialState(t *testing.T) {
	m := NewMachine(nil)
	if m.Current() != Booting {
		t.Errorf("initial state = %s, want BOOTING", m.Current())
	}
}

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		from State
		to   State
	}{
		{Booting, SigningIn},
		{Booting, SignedOut},
		{Booting, Error},
		{SigningIn, Ready},
		{SigningIn, SignedOut},
		{Ready, SignedOut},
		{Ready, SigningIn},
		{SignedOut, SigningIn},
		{Error, SigningIn},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			m := NewMachine(nil)
			walkTo(t, m, tt.from)
			if err := m.Transition(tt.to); err != nil {
				t.Errorf("Transition(%s -> %s) error = %v", tt.from, tt.to, err)
			}
			if m.Current() != tt.to {
				t.Errorf("state = %s, want %s", m.Current(), tt.to)
			}
		})
	}
}

func TestInvalidTransition(t *testing.T) {
	m := NewMachine(nil)
	if err := m.Transition(Ready); err == nil {
		t.Error("Transition(BOOTING -> READY) should fail")
	}
	if m.Current() != Booting {
		t.Errorf("state = %s, want BOOTING (should not have changed)", m.Current())
	}
}

// A signed-out session has to sign in again before it is ready.
func TestSignedOutRequiresSignIn(t *testing.T) {
	m := NewMachine(nil)
	walkTo(t, m, SignedOut)

	if err := m.Transition(Ready); err == nil {
		t.Fatal("Transition(SIGNED_OUT -> READY) should fail")
	}
	for _, s := range []State{SigningIn, Ready} {
		if err := m.Transition(s); err != nil {
			t.Fatalf("Transition to %s: %v (current: %s)", s, err, m.Current())
		}
	}
}

func TestTransitionEmitsEvent(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("session.", 10)
	defer unsub()

	m := NewMachine(b)
	if err := m.Transition(SigningIn); err != nil {
		t.Fatal(err)
	}

	evt := <-ch
	if evt.Kind != bus.KindSessionStatus {
		t.Errorf("event kind = %q, want %s", evt.Kind, bus.KindSessionStatus)
	}
	change, ok := evt.Payload.(StatusChange)
	if !ok {
		t.Fatalf("payload type = %T, want StatusChange", evt.Payload)
	}
	if change.From != Booting || change.To != SigningIn {
		t.Errorf("change = %v -> %v, want BOOTING -> SIGNING_IN", change.From, change.To)
	}
}

// walkTo is a helper that transitions the machine to a target state.
func walkTo(t *testing.T, m *Machine, target State) {
	t.Helper()
	paths := map[State][]State{
		Booting:   {},
		SigningIn: {SigningIn},
		Ready:     {SigningIn, Ready},
		SignedOut: {SignedOut},
		Error:     {Error},
	}
	for _, s := range paths[target] {
		if err := m.Transition(s); err != nil {
			t.Fatalf("walkTo(%s): %v", target, err)
		}
	}
}
