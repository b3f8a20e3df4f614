package backend

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/matheus3301/stash/internal/bus"
	"github.com/matheus3301/stash/internal/model"
	"github.com/matheus3301/stash/internal/remote"
	"github.com/matheus3301/stash/internal/store"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Error messages returned alongside remote error codes.
const (
	msgAuthRevoked    = "AUTH_KEY_UNREGISTERED"
	msgFolderInvalid  = "FOLDER_ID_INVALID"
	msgMessageInvalid = "MESSAGE_ID_INVALID"
	msgFileInvalid    = "FILE_INVALID"
)

// codeBadRequest accompanies validation failures.
const codeBadRequest = 400

// Options tunes the backend.
type Options struct {
	PageSize        int
	ResolveSchedule string
	ResolveDelay    time.Duration
	RefreshRate     float64
	RefreshBurst    int
}

func (o Options) withDefaults() Options {
	if o.PageSize <= 0 {
		o.PageSize = 20
	}
	if o.ResolveSchedule == "" {
		o.ResolveSchedule = "@every 2s"
	}
	if o.RefreshRate <= 0 {
		o.RefreshRate = 5
	}
	if o.RefreshBurst <= 0 {
		o.RefreshBurst = 10
	}
	return o
}

type searchSession struct {
	query  string
	folder model.FolderID
}

// Backend implements remote.API.
type Backend struct {
	db     *store.DB
	bus    *bus.Bus
	logger *zap.Logger
	opts   Options

	mu       sync.Mutex
	search   *searchSession
	limiters map[model.FolderID]*rate.Limiter

	cron *cron.Cron

	// smu serializes snapshots so their Seq follows the order they read
	// the database in.
	smu sync.Mutex
	seq uint64

	lmu       sync.Mutex
	listeners map[int]*listener
	nextID    int
}

var _ remote.API = (*Backend)(nil)

// New creates a backend over an opened, migrated database.
func New(db *store.DB, b *bus.Bus, logger *zap.Logger, opts Options) *Backend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backend{
		db:        db,
		bus:       b,
		logger:    logger,
		opts:      opts.withDefaults(),
		limiters:  make(map[model.FolderID]*rate.Limiter),
		cron:      cron.New(),
		listeners: make(map[int]*listener),
	}
}

// Start schedules webpage preview resolution.
func (be *Backend) Start() error {
	if _, err := be.cron.AddFunc(be.opts.ResolveSchedule, be.resolveScheduled); err != nil {
		return fmt.Errorf("invalid resolve schedule %q: %w", be.opts.ResolveSchedule, err)
	}
	be.cron.Start()
	be.logger.Info("backend started", zap.String("resolve_schedule", be.opts.ResolveSchedule))
	return nil
}

// Stop stops the scheduler and waits for a running resolution to finish.
func (be *Backend) Stop() {
	<-be.cron.Stop().Done()
}

// Revoke invalidates the account's credentials; every call then fails as
// unauthenticated until Authorize.
func (be *Backend) Revoke() error {
	return be.db.SetRevoked(true)
}

// Authorize restores the account's credentials.
func (be *Backend) Authorize() error {
	return be.db.SetRevoked(false)
}

// EndSession forgets what the signed-out client had loaded and searched.
func (be *Backend) EndSession() error {
	be.mu.Lock()
	be.search = nil
	be.mu.Unlock()
	return be.db.ResetWindows()
}

func (be *Backend) authorize(ctx context.Context) (model.User, error) {
	if err := ctx.Err(); err != nil {
		return model.User{}, err
	}
	u, revoked, err := be.db.Account()
	if err != nil {
		return model.User{}, fmt.Errorf("load account: %w", err)
	}
	if revoked {
		return model.User{}, remote.Errorf(remote.CodeUnauthenticated, msgAuthRevoked)
	}
	return u, nil
}

// checkFolder authorizes the call and verifies folder exists. The general
// folder is keyed by the user id and always exists.
func (be *Backend) checkFolder(ctx context.Context, folder model.FolderID) error {
	u, err := be.authorize(ctx)
	if err != nil {
		return err
	}
	if folder == model.FolderID(u.ID) {
		return nil
	}
	if _, err := be.db.Folder(folder); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return remote.Errorf(remote.CodeNotFound, msgFolderInvalid)
		}
		return err
	}
	return nil
}

func (be *Backend) GetMe(ctx context.Context) (model.User, error) {
	return be.authorize(ctx)
}

func (be *Backend) GetFolders(ctx context.Context) (model.Updates, error) {
	if _, err := be.authorize(ctx); err != nil {
		return model.Updates{}, err
	}
	folders, err := be.db.Folders()
	if err != nil {
		return model.Updates{}, fmt.Errorf("list folders: %w", err)
	}
	return model.Updates{Folders: folders}, nil
}

func (be *Backend) GetMessages(ctx context.Context, folder model.Folder, before model.MessageID) (model.Updates, error) {
	if err := be.checkFolder(ctx, folder.ID); err != nil {
		return model.Updates{}, err
	}
	page, err := be.db.ListMessages(folder.ID, before, be.opts.PageSize)
	if err != nil {
		return model.Updates{}, fmt.Errorf("list messages: %w", err)
	}

	// A short page means the client now holds the whole folder.
	var oldest model.MessageID
	if len(page) == be.opts.PageSize {
		oldest = page[len(page)-1].ID
	}
	if err := be.db.ExtendWindow(folder.ID, oldest); err != nil {
		return model.Updates{}, fmt.Errorf("extend window: %w", err)
	}
	return be.snapshot()
}

func (be *Backend) CreateMessage(ctx context.Context, msg model.InputMessage, folder model.Folder) (model.Updates, error) {
	if err := be.checkFolder(ctx, folder.ID); err != nil {
		return model.Updates{}, err
	}
	if msg.Text == "" && !msg.HasFiles() {
		return model.Updates{}, remote.Errorf(codeBadRequest, "MESSAGE_EMPTY")
	}

	id, err := be.db.InsertMessage(folder.ID, msg.Text, detectWebpage(msg.Text))
	if err != nil {
		return model.Updates{}, err
	}
	if err := be.db.ExtendWindow(folder.ID, id); err != nil {
		return model.Updates{}, fmt.Errorf("extend window: %w", err)
	}
	be.logger.Debug("message created", zap.Int64("folder_id", int64(folder.ID)), zap.Int64("message_id", int64(id)))

	u, err := be.snapshot()
	u.CreatedID = id
	return u, err
}

func (be *Backend) EditMessage(ctx context.Context, msg model.InputMessage, folder model.Folder) (model.Updates, error) {
	if err := be.checkFolder(ctx, folder.ID); err != nil {
		return model.Updates{}, err
	}
	current, err := be.db.GetMessage(folder.ID, msg.ID)
	if errors.Is(err, store.ErrNotFound) {
		return model.Updates{}, remote.Errorf(remote.CodeNotFound, msgMessageInvalid)
	}
	if err != nil {
		return model.Updates{}, err
	}

	var dropped []model.MessageID
	for _, id := range current.MediaIDs() {
		if !slices.Contains(msg.MediaIDs, id) {
			dropped = append(dropped, id)
		}
	}

	changed, err := be.db.EditMessage(folder.ID, msg.ID, msg.Text, detectWebpage(msg.Text))
	if err != nil {
		return model.Updates{}, err
	}
	if len(dropped) > 0 {
		if _, err := be.db.DeleteMessages(folder.ID, dropped); err != nil {
			return model.Updates{}, err
		}
		changed = true
	}
	if !changed {
		return model.Updates{}, remote.Errorf(codeBadRequest, remote.MsgNotModified)
	}
	return be.snapshot()
}

func (be *Backend) DeleteMessage(ctx context.Context, req model.DeleteRequest, folder model.Folder) (model.Updates, error) {
	if err := be.checkFolder(ctx, folder.ID); err != nil {
		return model.Updates{}, err
	}
	ids := append([]model.MessageID{req.ID}, req.MediaIDs...)
	n, err := be.db.DeleteMessages(folder.ID, ids)
	if err != nil {
		return model.Updates{}, err
	}
	if n == 0 {
		return model.Updates{}, remote.Errorf(remote.CodeNotFound, msgMessageInvalid)
	}
	return be.snapshot()
}

// MoveMessage copies msg into to. Removing the source copy is left to the
// caller.
func (be *Backend) MoveMessage(ctx context.Context, msg model.Message, from, to model.Folder) (model.Updates, error) {
	if err := be.checkFolder(ctx, from.ID); err != nil {
		return model.Updates{}, err
	}
	if err := be.checkFolder(ctx, to.ID); err != nil {
		return model.Updates{}, err
	}
	if _, err := be.db.GetMessage(from.ID, msg.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Updates{}, remote.Errorf(remote.CodeNotFound, msgMessageInvalid)
		}
		return model.Updates{}, err
	}
	if _, err := be.db.CopyMessage(msg.ID, to.ID); err != nil {
		return model.Updates{}, err
	}
	return be.snapshot()
}

// RefreshMessages returns the current slices. Each folder may be refreshed
// RefreshRate times per second; faster callers get FLOOD_WAIT.
func (be *Backend) RefreshMessages(ctx context.Context, folder model.Folder, ids []model.MessageID) (model.Updates, error) {
	if err := be.checkFolder(ctx, folder.ID); err != nil {
		return model.Updates{}, err
	}
	if !be.limiter(folder.ID).Allow() {
		be.logger.Warn("refresh rate exceeded", zap.Int64("folder_id", int64(folder.ID)), zap.Int("ids", len(ids)))
		return model.Updates{}, remote.Errorf(remote.CodeFloodWait, remote.MsgFloodWait)
	}
	return be.snapshot()
}

func (be *Backend) limiter(folder model.FolderID) *rate.Limiter {
	be.mu.Lock()
	defer be.mu.Unlock()
	l, ok := be.limiters[folder]
	if !ok {
		l = rate.NewLimiter(rate.Limit(be.opts.RefreshRate), be.opts.RefreshBurst)
		be.limiters[folder] = l
	}
	return l
}

// SearchMessages starts a search session; later updates carry its refreshed
// results until ResetSearch.
func (be *Backend) SearchMessages(ctx context.Context, query string, folder model.Folder) (*model.MessageMap, error) {
	if err := be.checkFolder(ctx, folder.ID); err != nil {
		return nil, err
	}
	be.mu.Lock()
	be.search = &searchSession{query: query, folder: folder.ID}
	be.mu.Unlock()

	msgs, err := be.db.SearchMessages(query, folder.ID, 0)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return model.NewMessageMap(msgs...), nil
}

func (be *Backend) ResetSearch(ctx context.Context) error {
	if _, err := be.authorize(ctx); err != nil {
		return err
	}
	be.mu.Lock()
	be.search = nil
	be.mu.Unlock()
	return nil
}

// UploadFile attaches a local file to parentID as a media message.
func (be *Backend) UploadFile(ctx context.Context, folder model.Folder, parentID model.MessageID, file model.InputFile) (model.Updates, error) {
	if err := be.checkFolder(ctx, folder.ID); err != nil {
		return model.Updates{}, err
	}
	fi, err := os.Stat(file.Path)
	if err != nil || fi.IsDir() {
		return model.Updates{}, remote.Errorf(codeBadRequest, msgFileInvalid)
	}
	if _, err := be.db.GetMessage(folder.ID, parentID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Updates{}, remote.Errorf(remote.CodeNotFound, msgMessageInvalid)
		}
		return model.Updates{}, err
	}
	name := file.Name
	if name == "" {
		name = fi.Name()
	}
	if _, err := be.db.AddMedia(parentID, name, fi.Size()); err != nil {
		return model.Updates{}, err
	}
	return be.snapshot()
}

// ListenUpdates registers fn for pushed bundles. Each listener receives
// pushes in order on its own goroutine, which exits on unsubscribe.
func (be *Backend) ListenUpdates(fn func(model.Updates)) func() {
	l := newListener(fn)
	be.lmu.Lock()
	id := be.nextID
	be.nextID++
	be.listeners[id] = l
	be.lmu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			be.lmu.Lock()
			delete(be.listeners, id)
			be.lmu.Unlock()
			l.stop()
		})
	}
}

// push queues u for every listener and returns without waiting for them.
func (be *Backend) push(u model.Updates) {
	be.lmu.Lock()
	for _, l := range be.listeners {
		l.enqueue(u)
	}
	n := len(be.listeners)
	be.lmu.Unlock()

	be.bus.Publish(bus.NewEvent(bus.KindRemoteUpdates, n))
}

// snapshot builds the complete messages of every loaded folder and, during a
// search session, the refreshed search results.
func (be *Backend) snapshot() (model.Updates, error) {
	be.smu.Lock()
	defer be.smu.Unlock()

	windows, err := be.db.Windows()
	if err != nil {
		return model.Updates{}, fmt.Errorf("load windows: %w", err)
	}
	fm := make(model.FoldersMessages, len(windows))
	for folder, oldest := range windows {
		msgs, err := be.db.ListMessagesFrom(folder, oldest)
		if err != nil {
			return model.Updates{}, fmt.Errorf("list folder %d: %w", folder, err)
		}
		fm[folder] = model.NewMessageMap(msgs...)
	}
	be.seq++
	u := model.Updates{FoldersMessages: fm, Seq: be.seq}

	be.mu.Lock()
	search := be.search
	be.mu.Unlock()
	if search != nil {
		msgs, err := be.db.SearchMessages(search.query, search.folder, 0)
		if err != nil {
			return model.Updates{}, fmt.Errorf("search: %w", err)
		}
		u.SearchMessages = model.NewMessageMap(msgs...)
	}
	return u, nil
}
