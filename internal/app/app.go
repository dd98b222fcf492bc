// Package app wires the catalog, progress store, runner, engine and UI into
// one program.
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"codedojo/internal/catalog"
	"codedojo/internal/progress"
	"codedojo/internal/runner"
	"codedojo/internal/session"
	"codedojo/internal/telemetry"
	"codedojo/internal/ui"
	"codedojo/internal/watch"

	"github.com/google/uuid"
)

type App struct {
	cfg Config

	logger    *telemetry.Logger
	sessionID string

	catalog   *catalog.Catalog
	store     progress.Store
	writer    *progress.Writer
	runner    *runner.Manager
	watcher   *watch.Watcher
	engine    *session.Engine
	view      *ui.Root
	toolchain runner.ToolchainInfo
}

// New loads everything the session needs. A malformed curriculum is fatal;
// progress and toolchain problems become banners.
func New(ctx context.Context, cfg Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger, err := telemetry.New(cfg.LogPath, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	a := &App{cfg: cfg, logger: logger, sessionID: uuid.NewString()}
	a.logger.Logger = a.logger.With("session", a.sessionID)

	cat, err := LoadCatalog(cfg)
	if err != nil {
		a.logger.Error("catalog.load_failed", "err", err)
		_ = logger.Close()
		return nil, err
	}
	a.catalog = cat

	store, err := OpenStore(ctx, cfg)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}
	a.store = store

	var warnings []string
	snap, warn := store.Load(ctx)
	if warn != nil {
		a.logger.Warn("progress.load", "kind", warn.Kind.String(), "path", warn.Path, "err", warn.Err)
		if warn.Notable() {
			warnings = append(warnings, warn.Error())
		}
	}

	a.runner = runner.NewManager(cfg.RunnerConfig(), a.logger.WithPrefix("runner"))
	info, err := a.runner.Detect(ctx)
	if err != nil {
		a.logger.Error("toolchain.detect_failed", "err", err)
		warnings = append(warnings, "toolchain unavailable: "+err.Error())
	} else {
		a.toolchain = info
		a.logger.Info("toolchain.detected", "name", info.Name, "path", info.Path, "version", info.Version)
	}

	a.writer = progress.NewWriter(store, a.logger.WithPrefix("progress"))

	opts := session.Options{
		Runner:   session.ManagerRunner(a.runner),
		Saver:    a.writer,
		Logger:   a.logger.WithPrefix("session"),
		Root:     cfg.Curriculum,
		Warnings: warnings,
	}
	if cfg.Watch {
		w, err := watch.New(cfg.WatchDebounce)
		if err != nil {
			a.logger.Warn("watch.start_failed", "err", err)
		} else {
			a.watcher = w
			opts.Watcher = w
			opts.AutoRun = true
		}
	}
	a.engine = session.New(ctx, cat, snap, opts)
	a.view = ui.New(a.engine, ui.Options{ASCIIOnly: cfg.ASCIIOnly, Logger: a.logger.WithPrefix("ui")})
	return a, nil
}

func (a *App) Run(ctx context.Context) error {
	a.logger.Info("app.start",
		"units", a.catalog.Len(),
		"store", a.cfg.Store,
		"progress", a.cfg.ProgressPath,
		"watch", a.cfg.Watch,
	)
	err := a.view.Run()
	if err != nil {
		a.logger.Error("app.view_failed", "err", err)
		qctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		_ = a.engine.Quit(qctx)
	}
	a.logger.Info("app.stop")
	return err
}

func (a *App) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if a.runner != nil {
		_ = a.runner.Close(ctx)
	}
	if a.writer != nil {
		if err := a.writer.Close(ctx); err != nil {
			a.logger.Error("progress.close", "err", err)
		}
	}
	if a.watcher != nil {
		_ = a.watcher.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
	_ = a.logger.Close()
}

func (a *App) Engine() *session.Engine { return a.engine }

// LoadCatalog reads curriculum.yaml and the unit definitions under the
// curriculum root.
func LoadCatalog(cfg Config) (*catalog.Catalog, error) {
	cat, err := catalog.Load(os.DirFS(cfg.Curriculum))
	if err != nil {
		return nil, fmt.Errorf("load curriculum %s: %w", cfg.Curriculum, err)
	}
	return cat, nil
}

// OpenStore opens the configured progress backend.
func OpenStore(ctx context.Context, cfg Config) (progress.Store, error) {
	switch cfg.Store {
	case StoreSQLite:
		db, err := progress.NewSQLite(cfg.ProgressPath)
		if err != nil {
			return nil, fmt.Errorf("open progress db: %w", err)
		}
		if err := db.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	default:
		return progress.NewFileStore(cfg.ProgressPath), nil
	}
}
