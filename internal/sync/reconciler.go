package sync

import (
	gosync "sync"

	"github.com/matheus3301/stash/internal/model"
	"github.com/matheus3301/stash/internal/state"
	"go.uber.org/zap"
)

// Reconciler merges Updates bundles into the store. Each present slice fully
// replaces the stored one; absent slices are left alone. Well-formed input is
// the caller's responsibility.
//
// Bundles carrying a Seq older than one already applied are dropped, so a
// snapshot pushed late cannot roll back the result of a later call.
type Reconciler struct {
	store  *state.Store
	logger *zap.Logger

	mu  gosync.Mutex
	seq uint64
}

// NewReconciler creates a new reconciler.
func NewReconciler(s *state.Store, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{store: s, logger: logger}
}

// SetUpdates applies u to the store.
func (r *Reconciler) SetUpdates(u model.Updates) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u.Seq != 0 {
		if u.Seq < r.seq {
			r.logger.Debug("stale updates dropped", zap.Uint64("seq", u.Seq), zap.Uint64("applied", r.seq))
			return
		}
		r.seq = u.Seq
	}

	r.store.Apply(u)
	r.logger.Debug("updates applied",
		zap.Uint64("seq", u.Seq),
		zap.Bool("folders", u.Folders != nil),
		zap.Int("folders_messages", len(u.FoldersMessages)),
		zap.Bool("search_messages", u.SearchMessages != nil),
	)
}
