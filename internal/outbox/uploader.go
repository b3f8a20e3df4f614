package outbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/matheus3301/stash/internal/bus"
	"github.com/matheus3301/stash/internal/model"
	"github.com/matheus3301/stash/internal/remote"
	"github.com/matheus3301/stash/internal/state"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Merger applies an Updates bundle to the store.
type Merger interface {
	SetUpdates(u model.Updates)
}

// Result is the payload of upload.done and upload.failed events.
type Result struct {
	FolderID model.FolderID
	ParentID model.MessageID
	Key      string
	Name     string
	Error    string
}

// Uploader sends draft files to the remote API in the background, a bounded
// number at a time, and clears the folder's draft when a draft's files are
// all done.
type Uploader struct {
	api         remote.API
	store       *state.Store
	merger      Merger
	bus         *bus.Bus
	logger      *zap.Logger
	concurrency int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	inflight map[string]context.CancelFunc
}

// NewUploader creates an uploader. concurrency <= 0 means one file at a time.
func NewUploader(api remote.API, s *state.Store, m Merger, b *bus.Bus, logger *zap.Logger, concurrency int) *Uploader {
	if logger == nil {
		logger = zap.NewNop()
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Uploader{
		api:         api,
		store:       s,
		merger:      m,
		bus:         b,
		logger:      logger,
		concurrency: concurrency,
		ctx:         ctx,
		cancel:      cancel,
		inflight:    make(map[string]context.CancelFunc),
	}
}

// NewInputFile stats path and gives it a fresh local token.
func NewInputFile(path string) (model.InputFile, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return model.InputFile{}, fmt.Errorf("resolve %s: %w", path, err)
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return model.InputFile{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if fi.IsDir() {
		return model.InputFile{}, fmt.Errorf("%s is a directory", path)
	}
	return model.InputFile{
		Key:  uuid.NewString(),
		Name: fi.Name(),
		Path: abs,
		Size: fi.Size(),
	}, nil
}

// UploadFiles starts uploading msg's files under parentID and returns
// immediately. Uploads outlive ctx; they stop on ResetUploadingFiles or Stop.
func (u *Uploader) UploadFiles(ctx context.Context, msg model.InputMessage, folder model.Folder, parentID model.MessageID) {
	if !msg.HasFiles() {
		return
	}
	files := slices.Clone(msg.InputFiles)

	// Register every file up front so a reset can cancel queued ones too.
	ctxs := make([]context.Context, len(files))
	u.mu.Lock()
	for i, f := range files {
		fctx, cancel := context.WithCancel(u.ctx)
		ctxs[i] = fctx
		u.inflight[f.Key] = cancel
	}
	u.mu.Unlock()

	u.logger.Info("uploading files",
		zap.Int64("folder_id", int64(folder.ID)),
		zap.Int64("parent_id", int64(parentID)),
		zap.Int("files", len(files)))

	u.wg.Add(1)
	go func() {
		defer u.wg.Done()

		var g errgroup.Group
		g.SetLimit(u.concurrency)
		for i, f := range files {
			fctx := ctxs[i]
			g.Go(func() error {
				defer u.release(f.Key)
				return u.uploadOne(fctx, folder, parentID, f)
			})
		}
		if err := g.Wait(); err != nil {
			u.logger.Warn("some uploads failed",
				zap.Int64("folder_id", int64(folder.ID)),
				zap.Int64("parent_id", int64(parentID)),
				zap.Error(err))
		}
		u.finish(folder.ID, files)
	}()
}

func (u *Uploader) uploadOne(ctx context.Context, folder model.Folder, parentID model.MessageID, f model.InputFile) error {
	res := Result{FolderID: folder.ID, ParentID: parentID, Key: f.Key, Name: f.Name}
	if err := ctx.Err(); err != nil {
		return nil
	}

	updates, err := u.api.UploadFile(ctx, folder, parentID, f)
	if err != nil {
		if ctx.Err() != nil {
			u.logger.Debug("upload cancelled", zap.String("key", f.Key))
			return nil
		}
		res.Error = err.Error()
		u.bus.Publish(bus.NewEvent(bus.KindUploadFailed, res))
		return fmt.Errorf("upload %s: %w", f.Name, err)
	}

	u.merger.SetUpdates(updates)
	u.logger.Debug("file uploaded", zap.String("key", f.Key), zap.String("name", f.Name))
	u.bus.Publish(bus.NewEvent(bus.KindUploadDone, res))
	return nil
}

func (u *Uploader) release(key string) {
	u.mu.Lock()
	if cancel, ok := u.inflight[key]; ok {
		cancel()
		delete(u.inflight, key)
	}
	u.mu.Unlock()
}

// finish clears the folder's draft unless the user has moved on to a draft
// that no longer carries these files.
func (u *Uploader) finish(folderID model.FolderID, files []model.InputFile) {
	draft := u.store.SendingMessage(folderID)
	if draft == nil {
		return
	}
	for _, f := range draft.InputFiles {
		if slices.ContainsFunc(files, func(g model.InputFile) bool { return g.Key == f.Key }) {
			u.store.SetSendingMessage(folderID, nil)
			return
		}
	}
}

// ResetUploadingFiles cancels the uploads of files, running or queued.
func (u *Uploader) ResetUploadingFiles(files []model.InputFile) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, f := range files {
		if cancel, ok := u.inflight[f.Key]; ok {
			cancel()
			delete(u.inflight, f.Key)
		}
	}
}

// InFlight returns the number of files registered and not yet finished.
func (u *Uploader) InFlight() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.inflight)
}

// Stop cancels every upload and waits for the workers to exit.
func (u *Uploader) Stop() {
	u.cancel()
	u.wg.Wait()
}
