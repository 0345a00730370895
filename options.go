package wizard

import (
	"time"

	"github.com/goliatone/go-wizard/pkg/state"
	"go.uber.org/zap"
)

// DefaultPersistTimeout bounds a single background save.
const DefaultPersistTimeout = 5 * time.Second

// Option configures a Store.
type Option func(*storeConfig)

type storeConfig struct {
	logger         *zap.Logger
	now            func() time.Time
	development    bool
	initial        *State
	persistStore   state.Store[Document]
	ref            state.Ref
	persistTimeout time.Duration
	onPersistError func(error)
}

func applyOptions(opts []Option) storeConfig {
	cfg := storeConfig{
		logger:         zap.NewNop(),
		now:            time.Now,
		persistTimeout: DefaultPersistTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithLogger routes store diagnostics to logger. A nil logger is ignored.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *storeConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithClock replaces the wall clock used to stamp LastModified.
func WithClock(now func() time.Time) Option {
	return func(cfg *storeConfig) {
		if now != nil {
			cfg.now = now
		}
	}
}

// WithDevelopment makes programming errors such as unknown actions panic
// instead of being logged.
func WithDevelopment(enabled bool) Option {
	return func(cfg *storeConfig) {
		cfg.development = enabled
	}
}

// WithInitialState seeds the store. Without it the store starts from Defaults.
func WithInitialState(s State) Option {
	return func(cfg *storeConfig) {
		cfg.initial = &s
	}
}

// WithPersistence saves every new state to store under ref from a background
// goroutine. Only the latest pending state is written.
func WithPersistence(store state.Store[Document], ref state.Ref) Option {
	return func(cfg *storeConfig) {
		cfg.persistStore = store
		cfg.ref = ref
	}
}

func WithPersistTimeout(timeout time.Duration) Option {
	return func(cfg *storeConfig) {
		if timeout > 0 {
			cfg.persistTimeout = timeout
		}
	}
}

// WithPersistErrorHandler is called from the persistence goroutine for every
// failed save, after the failure has been logged.
func WithPersistErrorHandler(fn func(error)) Option {
	return func(cfg *storeConfig) {
		cfg.onPersistError = fn
	}
}
