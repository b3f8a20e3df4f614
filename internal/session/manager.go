package session

import (
	"context"
	"fmt"

	"github.com/matheus3301/stash/internal/model"
	"github.com/matheus3301/stash/internal/remote"
	"github.com/matheus3301/stash/internal/state"
	"github.com/matheus3301/stash/internal/status"
	"go.uber.org/zap"
)

// Merger applies an Updates bundle to the store.
type Merger interface {
	SetUpdates(u model.Updates)
}

// Manager signs the session in and out of the remote API.
type Manager struct {
	api     remote.API
	store   *state.Store
	merger  Merger
	machine *status.Machine
	logger  *zap.Logger
}

// NewManager creates a session manager.
func NewManager(api remote.API, s *state.Store, m Merger, machine *status.Machine, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{api: api, store: s, merger: m, machine: machine, logger: logger}
}

// LogIn loads the user and the folder list. On an unauthenticated failure
// the session ends SignedOut; any other failure leaves it in Error.
func (m *Manager) LogIn(ctx context.Context) error {
	if err := m.machine.Transition(status.SigningIn); err != nil {
		return err
	}

	user, err := m.api.GetMe(ctx)
	if err != nil {
		return m.fail("get user", err)
	}
	m.store.SetUser(&user)

	updates, err := m.api.GetFolders(ctx)
	if err != nil {
		return m.fail("get folders", err)
	}
	m.merger.SetUpdates(updates)

	if err := m.machine.Transition(status.Ready); err != nil {
		return err
	}
	m.logger.Info("signed in", zap.Int64("user_id", user.ID), zap.Int("folders", len(updates.Folders)))
	return nil
}

func (m *Manager) fail(step string, err error) error {
	next := status.Error
	if remote.IsUnauthenticated(err) {
		next = status.SignedOut
		m.store.Reset()
	}
	if terr := m.machine.Transition(next); terr != nil {
		m.logger.Error("status transition failed", zap.Error(terr))
	}
	m.logger.Warn("sign in failed", zap.String("step", step), zap.Error(err))
	return fmt.Errorf("%s: %w", step, err)
}

// LogOut drops every piece of client state and marks the session signed
// out. Calling it on a signed-out session is a no-op.
func (m *Manager) LogOut() {
	if m.machine.Current() == status.SignedOut {
		return
	}
	m.store.Reset()
	if err := m.machine.Transition(status.SignedOut); err != nil {
		m.logger.Error("status transition failed", zap.Error(err))
		return
	}
	m.logger.Info("signed out")
}

// Status returns the session state.
func (m *Manager) Status() status.State {
	return m.machine.Current()
}
