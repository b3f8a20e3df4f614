package refresh

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/matheus3301/stash/internal/bus"
	"github.com/matheus3301/stash/internal/model"
	"github.com/matheus3301/stash/internal/remote"
	"go.uber.org/zap"
)

// Merger applies a confirmed bundle to the client state.
type Merger interface {
	SetUpdates(u model.Updates)
}

// Phase is the per-folder coalescer state.
type Phase string

const (
	Idle    Phase = "IDLE"
	Waiting Phase = "WAITING"
	Sending Phase = "SENDING"
)

// Settled is the payload of refresh.settled events.
// Error is empty when the batch succeeded.
type Settled struct {
	FolderID model.FolderID
	IDs      []model.MessageID
	Error    string
}

// entry is the refresh state of one folder. It is only touched with
// Coalescer.mu held.
type entry struct {
	folder model.Folder

	timer *time.Timer
	gen   uint64
	armed bool

	waitIDs    []model.MessageID
	sendingIDs []model.MessageID
	callbacks  map[model.MessageID][]func()

	// fireDeferred is set when the timer fired while a batch was in flight.
	fireDeferred bool
}

func (e *entry) has(id model.MessageID) bool {
	return slices.Contains(e.waitIDs, id) || slices.Contains(e.sendingIDs, id)
}

func (e *entry) phase() Phase {
	switch {
	case len(e.sendingIDs) > 0:
		return Sending
	case len(e.waitIDs) > 0 || e.armed:
		return Waiting
	default:
		return Idle
	}
}

type batch struct {
	folder    model.Folder
	ids       []model.MessageID
	callbacks []func()
}

// Coalescer debounces per-folder refresh requests into single batched
// RefreshMessages calls, with at most one batch in flight per folder.
type Coalescer struct {
	api    remote.API
	merger Merger
	bus    *bus.Bus
	logger *zap.Logger
	opts   Options

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	entries map[model.FolderID]*entry
	closed  bool
	flights sync.WaitGroup
}

// New creates a coalescer. Zero option fields take their defaults.
func New(api remote.API, merger Merger, b *bus.Bus, logger *zap.Logger, opts Options) *Coalescer {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Coalescer{
		api:     api,
		merger:  merger,
		bus:     b,
		logger:  logger,
		opts:    opts.withDefaults(),
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[model.FolderID]*entry),
	}
}

// RefreshMessage queues id for a debounced batch refresh of folder. Every new
// id restarts the folder's window. An id already waiting or in flight is
// ignored, along with its callback. onSettled, if non-nil, runs once after a
// successful batch containing id has been merged. A timeout <= 0 uses the
// configured window. Returns whether id was queued.
func (c *Coalescer) RefreshMessage(folder model.Folder, id model.MessageID, timeout time.Duration, onSettled func()) bool {
	if timeout <= 0 {
		timeout = c.opts.Window
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}

	e := c.entries[folder.ID]
	if e == nil {
		e = &entry{callbacks: make(map[model.MessageID][]func())}
		c.entries[folder.ID] = e
	}
	if e.has(id) {
		return false
	}

	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}

	e.folder = folder
	e.waitIDs = append(slices.Clone(e.waitIDs), id)
	if onSettled != nil {
		e.callbacks[id] = append(e.callbacks[id], onSettled)
	}

	e.gen++
	gen := e.gen
	e.armed = true
	e.timer = time.AfterFunc(timeout, func() { c.fire(folder.ID, gen) })
	return true
}

// Phase returns the folder's current state.
func (c *Coalescer) Phase(folderID model.FolderID) Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entries[folderID]
	if e == nil {
		return Idle
	}
	return e.phase()
}

// Pending returns copies of the folder's waiting and in-flight ids.
func (c *Coalescer) Pending(folderID model.FolderID) (waiting, sending []model.MessageID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entries[folderID]
	if e == nil {
		return nil, nil
	}
	return slices.Clone(e.waitIDs), slices.Clone(e.sendingIDs)
}

// Close stops all pending timers and waits for in-flight batches.
func (c *Coalescer) Close() {
	c.mu.Lock()
	c.closed = true
	for id, e := range c.entries {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(c.entries, id)
	}
	c.mu.Unlock()

	c.cancel()
	c.flights.Wait()
}

func (c *Coalescer) fire(folderID model.FolderID, gen uint64) {
	c.mu.Lock()
	e := c.entries[folderID]
	if c.closed || e == nil || e.gen != gen || !e.armed {
		c.mu.Unlock()
		return
	}
	e.armed = false
	e.timer = nil

	if len(e.waitIDs) == 0 {
		c.dropIfIdle(folderID, e)
		c.mu.Unlock()
		return
	}
	if len(e.sendingIDs) > 0 {
		e.fireDeferred = true
		c.mu.Unlock()
		return
	}

	b := c.begin(e)
	c.flights.Add(1)
	c.mu.Unlock()

	go c.run(folderID, b)
}

// begin moves the waiting ids into flight. Caller holds c.mu.
func (c *Coalescer) begin(e *entry) *batch {
	b := &batch{folder: e.folder, ids: e.waitIDs}
	for _, id := range b.ids {
		b.callbacks = append(b.callbacks, e.callbacks[id]...)
		delete(e.callbacks, id)
	}
	e.sendingIDs = b.ids
	e.waitIDs = nil
	return b
}

func (c *Coalescer) dropIfIdle(folderID model.FolderID, e *entry) {
	if e.phase() == Idle && len(e.callbacks) == 0 {
		delete(c.entries, folderID)
	}
}

func (c *Coalescer) run(folderID model.FolderID, b *batch) {
	defer c.flights.Done()

	for b != nil {
		updates, err := c.api.RefreshMessages(c.ctx, b.folder, b.ids)
		if err != nil {
			c.logger.Warn("batch refresh failed",
				zap.Int64("folder_id", int64(folderID)),
				zap.Int("ids", len(b.ids)),
				zap.Error(err))
		} else {
			c.merger.SetUpdates(updates)
		}

		var next *batch
		c.mu.Lock()
		if e := c.entries[folderID]; e != nil {
			e.sendingIDs = nil
			if e.fireDeferred {
				e.fireDeferred = false
				if len(e.waitIDs) > 0 && !e.armed {
					next = c.begin(e)
				}
			}
			if next == nil {
				c.dropIfIdle(folderID, e)
			}
		}
		c.mu.Unlock()

		settled := Settled{FolderID: folderID, IDs: b.ids}
		if err != nil {
			settled.Error = err.Error()
		}
		c.bus.Publish(bus.NewEvent(bus.KindRefreshBatchSettle, settled))
		if err == nil {
			for _, fn := range b.callbacks {
				fn()
			}
		}
		b = next
	}
}
