package daemon

import (
	"context"

	"github.com/matheus3301/stash/internal/actions"
	"github.com/matheus3301/stash/internal/api"
	"github.com/matheus3301/stash/internal/backend"
	"github.com/matheus3301/stash/internal/bus"
	"github.com/matheus3301/stash/internal/config"
	"github.com/matheus3301/stash/internal/lock"
	"github.com/matheus3301/stash/internal/logging"
	"github.com/matheus3301/stash/internal/outbox"
	"github.com/matheus3301/stash/internal/refresh"
	"github.com/matheus3301/stash/internal/remote"
	"github.com/matheus3301/stash/internal/session"
	"github.com/matheus3301/stash/internal/state"
	"github.com/matheus3301/stash/internal/status"
	"github.com/matheus3301/stash/internal/store"
	stashsync "github.com/matheus3301/stash/internal/sync"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	SocketPath  string // optional override for testing; empty = use default
	// Config overrides config.toml when set.
	Config *config.Config
	// NoAutoLogIn keeps the session Booting until a LogIn call.
	NoAutoLogIn bool
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideBackend,
			provideRemote,
			provideState,
			provideReconciler,
			provideEngine,
			provideManager,
			provideUploader,
			provideFolders,
			provideMessages,
			provideCoalescer,
			provideSessionService,
			provideFolderService,
			provideMessageService,
			provideEventService,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	if p.Config != nil {
		return p.Config, nil
	}
	return config.LoadOrDefault(session.ConfigPath())
}

func provideLogger(p Params, cfg *config.Config) (*zap.Logger, error) {
	return logging.New(session.LayoutFor(p.SessionName).Log(), p.SessionName, cfg.Log.Level)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.LayoutFor(p.SessionName).Ensure(); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.LayoutFor(p.SessionName).Dir, p.SessionName)
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

// provideStore depends on the lock so the database is only opened by the
// daemon holding it.
func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.LayoutFor(p.SessionName).BackendDB()
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	schema, err := db.Upgrade()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info("store initialized",
		zap.String("path", dbPath),
		zap.Uint("schema_version", schema.Version),
		zap.Bool("migrated", schema.Applied))
	return db, nil
}

func provideBackend(db *store.DB, b *bus.Bus, cfg *config.Config, logger *zap.Logger) *backend.Backend {
	return backend.New(db, b, logger.Named("backend"), backend.Options{
		PageSize:        cfg.Messages.PageSize,
		ResolveSchedule: cfg.Backend.ResolveSchedule,
		ResolveDelay:    cfg.Backend.ResolveDelay.Duration,
		RefreshRate:     cfg.Backend.RefreshRate,
		RefreshBurst:    cfg.Backend.RefreshBurst,
	})
}

func provideRemote(be *backend.Backend) remote.API {
	return be
}

func provideState(b *bus.Bus) *state.Store {
	return state.New(b)
}

func provideReconciler(s *state.Store, logger *zap.Logger) *stashsync.Reconciler {
	return stashsync.NewReconciler(s, logger)
}

func provideEngine(api remote.API, r *stashsync.Reconciler, logger *zap.Logger) *stashsync.Engine {
	return stashsync.NewEngine(api, r, logger)
}

func provideManager(api remote.API, s *state.Store, r *stashsync.Reconciler, m *status.Machine, logger *zap.Logger) *session.Manager {
	return session.NewManager(api, s, r, m, logger)
}

func provideUploader(api remote.API, s *state.Store, r *stashsync.Reconciler, b *bus.Bus, cfg *config.Config, logger *zap.Logger) *outbox.Uploader {
	return outbox.NewUploader(api, s, r, b, logger.Named("outbox"), cfg.Uploads.Concurrency)
}

func provideFolders(api remote.API, s *state.Store, r *stashsync.Reconciler, mgr *session.Manager, logger *zap.Logger) *actions.Folders {
	return actions.NewFolders(api, s, r, mgr, logger)
}

func provideMessages(api remote.API, s *state.Store, r *stashsync.Reconciler, up *outbox.Uploader, mgr *session.Manager, b *bus.Bus, logger *zap.Logger) *actions.Messages {
	return actions.NewMessages(api, s, r, up, mgr, b, logger)
}

func provideCoalescer(api remote.API, r *stashsync.Reconciler, b *bus.Bus, cfg *config.Config, logger *zap.Logger) *refresh.Coalescer {
	return refresh.New(api, r, b, logger.Named("refresh"), refresh.Options{
		Window:             cfg.Refresh.Window.Duration,
		WebpageDelay:       cfg.Refresh.WebpageDelay.Duration,
		WebpageBackoff:     cfg.Refresh.WebpageBackoff,
		WebpageMaxDelay:    cfg.Refresh.WebpageMaxDelay.Duration,
		WebpageMaxAttempts: cfg.Refresh.WebpageMaxAttempts,
	})
}

// counters exposes uploader and push activity to Status.
type counters struct {
	uploader *outbox.Uploader
	engine   *stashsync.Engine
}

func (c counters) InFlight() int  { return c.uploader.InFlight() }
func (c counters) Pushes() uint64 { return c.engine.Pushes() }

func provideSessionService(p Params, mgr *session.Manager, be *backend.Backend, s *state.Store, up *outbox.Uploader, engine *stashsync.Engine) *api.SessionService {
	return api.NewSessionService(p.SessionName, mgr, be, s, counters{up, engine})
}

func provideFolderService(f *actions.Folders, m *actions.Messages, s *state.Store, c *refresh.Coalescer, mgr *session.Manager) *api.FolderService {
	return api.NewFolderService(f, m, s, c, mgr)
}

func provideMessageService(f *actions.Folders, m *actions.Messages, s *state.Store, c *refresh.Coalescer, mgr *session.Manager) *api.MessageService {
	return api.NewMessageService(f, m, s, c, mgr)
}

func provideEventService(p Params, b *bus.Bus, logger *zap.Logger) *api.EventService {
	return api.NewEventService(b, p.SessionName, logger)
}

type lifecycleParams struct {
	fx.In

	Params    Params
	Server    *Server
	Lock      *lock.Lock
	DB        *store.DB
	Backend   *backend.Backend
	Engine    *stashsync.Engine
	Manager   *session.Manager
	Uploader  *outbox.Uploader
	Coalescer *refresh.Coalescer
	Bus       *bus.Bus
	Logger    *zap.Logger
}

func registerLifecycle(lc fx.Lifecycle, lp lifecycleParams) {
	logger := lp.Logger
	var unlisten func()

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			if err := lp.Backend.Start(); err != nil {
				return err
			}

			// A signed-out client no longer holds any loaded window.
			unlisten = lp.Bus.Listen(bus.KindSessionStatus, 16, func(evt bus.Event) {
				change, ok := evt.Payload.(status.StatusChange)
				if !ok || change.To != status.SignedOut {
					return
				}
				if err := lp.Backend.EndSession(); err != nil {
					logger.Warn("end backend session failed", zap.Error(err))
				}
			})

			// Apply pushed updates.
			lp.Engine.Start(context.Background())

			// Start gRPC server in background.
			go func() {
				if err := lp.Server.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()

			if lp.Params.NoAutoLogIn {
				return nil
			}
			go func() {
				if err := lp.Manager.LogIn(context.Background()); err != nil {
					logger.Warn("automatic sign in failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			lp.Server.Stop(ctx)
			lp.Coalescer.Close()
			lp.Uploader.Stop()
			lp.Engine.Stop()
			lp.Backend.Stop()
			if unlisten != nil {
				unlisten()
			}
			if err := lp.DB.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lp.Lock.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
