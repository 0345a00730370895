package wizard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goliatone/go-wizard/layering"
	"go.uber.org/zap"
)

// Listener observes committed states. act is the action that produced s.
// Listeners must treat s as read-only; they may dispatch.
type Listener func(s State, act Action)

type subscription struct {
	id       uint64
	listener Listener
}

type notification struct {
	state  State
	action Action
}

// Store owns the wizard state. Dispatch is the only way to change it.
//
// Listeners are notified in dispatch order. A dispatch made from inside a
// listener is committed immediately but its notification is queued behind the
// one being delivered, so every listener sees every state exactly once and in
// order.
type Store struct {
	cfg storeConfig

	mu          sync.Mutex
	state       State
	subscribers []subscription
	nextID      uint64
	queue       []notification
	draining    bool
	closed      bool

	persist *persister
}

// NewStore builds a store from opts. Persistence starts immediately when
// configured.
func NewStore(opts ...Option) *Store {
	cfg := applyOptions(opts)
	initial := Defaults()
	if cfg.initial != nil {
		initial = layering.Clone(*cfg.initial)
	}
	ensureActiveScenario(&initial)

	s := &Store{cfg: cfg, state: initial}
	if cfg.persistStore != nil {
		s.persist = newPersister(cfg)
	}
	return s
}

// State returns a deep copy of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	current := s.state
	s.mu.Unlock()
	// committed states are never mutated, so cloning outside the lock is safe
	return layering.Clone(current)
}

// Dispatch reduces act into a new state, stamps it, schedules persistence
// and notifies listeners. Actions that change nothing return nil without
// notifying. Rejected actions return an *ActionError and leave the state as
// it was.
func (s *Store) Dispatch(act Action) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStoreClosed
	}

	prev := s.state
	next, err := Reduce(prev, act)
	switch {
	case err == nil:
	case errors.Is(err, ErrUnchanged):
		s.mu.Unlock()
		return nil
	case errors.Is(err, ErrUnknownAction):
		s.mu.Unlock()
		if s.cfg.development {
			panic(fmt.Sprintf("wizard: dispatch of unhandled action %T", act))
		}
		s.cfg.logger.Error("unknown action dispatched", zap.String("type", fmt.Sprintf("%T", act)))
		return err
	default:
		s.mu.Unlock()
		s.cfg.logger.Debug("action rejected", zap.String("action", actionName(act)), zap.Error(err))
		return err
	}

	next.LastModified = s.stamp(prev.LastModified)
	next.Version = prev.Version + 1
	s.state = next
	if s.persist != nil {
		s.persist.schedule(next)
	}
	s.queue = append(s.queue, notification{state: next, action: act})
	if s.draining {
		s.mu.Unlock()
		return nil
	}
	s.draining = true
	s.drainLocked()
	s.mu.Unlock()
	return nil
}

// stamp returns a timestamp strictly after prev even when the clock stalls
// or steps backwards.
func (s *Store) stamp(prev time.Time) time.Time {
	now := s.cfg.now().UTC()
	if !now.After(prev) {
		now = prev.Add(time.Nanosecond)
	}
	return now
}

// drainLocked delivers queued notifications. It is entered and left with
// s.mu held and releases it around listener calls. A listener panic
// re-raised in development unwinds with s.mu released; draining is cleared
// so later dispatches deliver again, and undelivered notifications stay
// queued for them.
func (s *Store) drainLocked() {
	delivering := false
	defer func() {
		if delivering {
			s.mu.Lock()
			s.draining = false
			s.mu.Unlock()
		}
	}()
	for len(s.queue) > 0 {
		n := s.queue[0]
		s.queue[0] = notification{}
		s.queue = s.queue[1:]
		subscribers := append([]subscription(nil), s.subscribers...)

		s.mu.Unlock()
		delivering = true
		for _, sub := range subscribers {
			s.notify(sub, n)
		}
		delivering = false
		s.mu.Lock()
	}
	s.queue = nil
	s.draining = false
}

func (s *Store) notify(sub subscription, n notification) {
	defer func() {
		if r := recover(); r != nil {
			if s.cfg.development {
				panic(r)
			}
			s.cfg.logger.Error("listener panicked",
				zap.Uint64("subscription", sub.id),
				zap.String("action", actionName(n.action)),
				zap.Any("panic", r),
			)
		}
	}()
	sub.listener(n.state, n.action)
}

// Subscribe registers l and returns a function that removes it. Calling the
// returned function more than once is harmless.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	if l == nil {
		return func() {}
	}
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subscribers = append(s.subscribers, subscription{id: id, listener: l})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.subscribers {
				if sub.id == id {
					s.subscribers = append(s.subscribers[:i:i], s.subscribers[i+1:]...)
					return
				}
			}
		})
	}
}

// Flush waits for pending persistence and reports the last save error.
// It is a no-op for stores without persistence.
func (s *Store) Flush(ctx context.Context) error {
	if s.persist == nil {
		return nil
	}
	return s.persist.flush(ctx)
}

// PersistFailures counts failed background saves since the store was built.
func (s *Store) PersistFailures() int64 {
	if s.persist == nil {
		return 0
	}
	return s.persist.failures.Load()
}

// Close rejects further dispatches and waits for the final save.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	if s.persist == nil {
		return nil
	}
	return s.persist.close(ctx)
}
