// Package cli implements the wizard command line: a thin operator surface
// over one persisted session.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/goliatone/go-wizard"
	"github.com/goliatone/go-wizard/internal/config"
	"github.com/goliatone/go-wizard/pkg/activity"
	"github.com/goliatone/go-wizard/pkg/celebration"
	"github.com/goliatone/go-wizard/pkg/completion"
	"github.com/goliatone/go-wizard/pkg/rules"
	"github.com/goliatone/go-wizard/pkg/staging"
	"github.com/goliatone/go-wizard/pkg/state"
	"go.uber.org/zap"
)

// Domain is the state.Ref domain every CLI session lives under.
const Domain = "appraisal"

// app is the per-invocation wiring shared by every command.
type app struct {
	session string

	cfg          *config.Config
	logger       *zap.Logger
	backend      state.Store[wizard.Document]
	closeBackend func() error
	store        *wizard.Store
	engine       *completion.Engine
	photos       *staging.Manager
	celebrations *celebration.Machine
	events       *activity.Recorder
}

func (a *app) open(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg

	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.logger = logger

	if err := a.openBackend(ctx); err != nil {
		return err
	}

	schema := completion.DefaultSchema()
	if cfg.SchemaPath != "" {
		if schema, err = completion.LoadSchemaFile(cfg.SchemaPath); err != nil {
			return err
		}
	}
	language, err := rules.Lookup(cfg.Rules)
	if err != nil {
		return fmt.Errorf("WIZARD_RULES: %w", err)
	}
	a.engine, err = completion.NewEngine(schema,
		completion.WithLogger(logger.Named("completion")),
		completion.WithConditions(rules.NewCompiler(rules.WithBackend(language))),
	)
	if err != nil {
		return err
	}

	ref := state.Ref{Domain: Domain, Session: a.session}
	if _, err := ref.Identifier(); err != nil {
		return fmt.Errorf("--session: %w", err)
	}
	a.store, err = wizard.Open(ctx, a.backend, ref,
		wizard.WithLogger(logger.Named("store")),
		wizard.WithDevelopment(cfg.Development),
		wizard.WithPersistErrorHandler(func(err error) {
			fmt.Fprintln(os.Stderr, warnColor.Sprintf("warning: session not saved: %v", err))
		}),
	)
	if err != nil {
		return err
	}

	a.events = &activity.Recorder{}
	emitter := activity.NewEmitter(activity.Hooks{a.events}, activity.WithSession(ref.String()))
	a.photos = staging.NewManager(a.store, staging.NewKeywordClassifier(nil),
		staging.WithLogger(logger.Named("staging")),
		staging.WithConcurrency(cfg.ClassifyConcurrency),
		staging.WithActivity(emitter, cfg.Actor),
	)
	a.celebrations = celebration.NewMachine(a.store, a.engine,
		celebration.WithLogger(logger.Named("celebration")),
		celebration.WithActivity(emitter, cfg.Actor),
	)
	a.celebrations.Watch()
	return nil
}

func (a *app) openBackend(ctx context.Context) error {
	switch a.cfg.Store {
	case config.StoreMemory:
		a.logger.Warn("memory store selected, the session will not outlive this command")
		mem := state.NewMemoryStore[wizard.Document]()
		mem.MaxBytes = a.cfg.QuotaBytes
		a.backend = mem
	case config.StoreSQLite:
		if err := os.MkdirAll(a.cfg.SessionDir, 0o755); err != nil {
			return fmt.Errorf("create session dir: %w", err)
		}
		db, err := state.OpenSQLiteStore[wizard.Document](ctx, a.cfg.SQLitePath, a.cfg.QuotaBytes)
		if err != nil {
			return err
		}
		a.backend = db
		a.closeBackend = db.Close
	default:
		a.backend = state.NewFileStore[wizard.Document](a.cfg.SessionDir, a.cfg.QuotaBytes)
	}
	return nil
}

// close waits for background work and the final save.
func (a *app) close(ctx context.Context) error {
	var errs []error
	if a.photos != nil {
		a.photos.Wait()
	}
	if a.celebrations != nil {
		a.celebrations.Close()
	}
	if a.store != nil {
		errs = append(errs, a.store.Close(ctx))
	}
	if a.closeBackend != nil {
		errs = append(errs, a.closeBackend())
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	return errors.Join(errs...)
}

// announce prints whatever celebration and milestones the command produced.
func (a *app) announce(w io.Writer) {
	if a.celebrations == nil {
		return
	}
	if c, ok := a.celebrations.Current(); ok {
		fmt.Fprintln(w)
		fmt.Fprintln(w, celebrationColor(c.Level).Sprintf("★ %s", c.Title))
		if c.Subtitle != "" {
			fmt.Fprintf(w, "  %s\n", c.Subtitle)
		}
	}
	for _, event := range a.events.Events() {
		a.logger.Info("activity", zap.String("verb", event.Verb), zap.String("object", event.Object.ID))
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	zcfg.OutputPaths = []string{"stderr"}
	return zcfg.Build()
}
