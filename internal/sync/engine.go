package sync

import (
	"context"
	gosync "sync"
	"sync/atomic"

	"github.com/matheus3301/stash/internal/model"
	"github.com/matheus3301/stash/internal/remote"
	"go.uber.org/zap"
)

// Engine applies updates pushed by the remote API without a prior request.
type Engine struct {
	api        remote.API
	reconciler *Reconciler
	logger     *zap.Logger

	mu     gosync.Mutex
	cancel context.CancelFunc
	pushes atomic.Uint64
}

// NewEngine creates a new push engine.
func NewEngine(api remote.API, r *Reconciler, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		api:        api,
		reconciler: r,
		logger:     logger,
	}
}

// Start registers with the remote API. Pushes are applied until Stop is
// called or ctx is done.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		return
	}

	ctx, e.cancel = context.WithCancel(ctx)
	unsub := e.api.ListenUpdates(e.handlePush)

	go func() {
		<-ctx.Done()
		unsub()
	}()
	e.logger.Info("listening for pushed updates")
}

// Stop unregisters from the remote API.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
}

// Pushes returns how many pushed bundles were applied.
func (e *Engine) Pushes() uint64 {
	return e.pushes.Load()
}

func (e *Engine) handlePush(u model.Updates) {
	if u.Empty() {
		return
	}
	e.reconciler.SetUpdates(u)
	e.pushes.Add(1)
}
