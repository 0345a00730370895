package wizard

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goliatone/go-wizard/pkg/state"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// persister writes states in the background. Dispatch hands it every new
// state; when saves fall behind, intermediate states are skipped and only the
// latest one is written.
type persister struct {
	store   state.Store[Document]
	ref     state.Ref
	timeout time.Duration
	logger  *zap.Logger
	onError func(error)

	mu       sync.Mutex
	pending  *State
	queued   uint64 // sequence of the newest scheduled state
	saved    uint64 // sequence of the newest attempted save
	lastErr  error
	progress chan struct{}

	wake     chan struct{}
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	failures atomic.Int64
}

func newPersister(cfg storeConfig) *persister {
	p := &persister{
		store:    cfg.persistStore,
		ref:      cfg.ref,
		timeout:  cfg.persistTimeout,
		logger:   cfg.logger.With(zap.String("session", cfg.ref.String())),
		onError:  cfg.onPersistError,
		progress: make(chan struct{}),
		wake:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go p.run()
	return p
}

// schedule replaces any pending state with s. It never blocks.
func (p *persister) schedule(s State) {
	p.mu.Lock()
	p.pending = &s
	p.queued++
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *persister) run() {
	defer close(p.done)
	for {
		select {
		case <-p.wake:
			p.drain()
		case <-p.stop:
			p.drain()
			return
		}
	}
}

func (p *persister) drain() {
	for {
		p.mu.Lock()
		pending, seq := p.pending, p.queued
		p.pending = nil
		p.mu.Unlock()
		if pending == nil {
			return
		}

		err := p.save(*pending)

		p.mu.Lock()
		p.saved = seq
		p.lastErr = err
		close(p.progress)
		p.progress = make(chan struct{})
		p.mu.Unlock()
	}
}

func (p *persister) save(s State) error {
	doc, err := ToDocument(s)
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		_, err = p.store.Save(ctx, p.ref, doc, state.Meta{
			SnapshotID: uuid.NewString(),
			UpdatedAt:  s.LastModified.UTC(),
		})
		cancel()
	}
	if err != nil {
		p.failures.Add(1)
		p.logger.Warn("persist state failed",
			zap.Uint64("version", s.Version),
			zap.Error(err),
		)
		if p.onError != nil {
			p.onError(err)
		}
		return err
	}
	p.logger.Debug("state persisted", zap.Uint64("version", s.Version))
	return nil
}

// flush waits until every state scheduled before the call has been attempted
// and returns the error of the most recent attempt.
func (p *persister) flush(ctx context.Context) error {
	p.mu.Lock()
	target := p.queued
	for p.saved < target {
		ch := p.progress
		p.mu.Unlock()
		select {
		case <-ch:
		case <-p.done:
			p.mu.Lock()
			if p.saved < target {
				p.mu.Unlock()
				return ErrStoreClosed
			}
			continue
		case <-ctx.Done():
			return ctx.Err()
		}
		p.mu.Lock()
	}
	err := p.lastErr
	p.mu.Unlock()
	return err
}

// close stops the goroutine after a final drain.
func (p *persister) close(ctx context.Context) error {
	p.stopOnce.Do(func() { close(p.stop) })
	select {
	case <-p.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}
