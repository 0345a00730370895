package activity

import (
	"context"
	"strings"
	"time"
)

// DefaultChannel is applied to events emitted without one.
const DefaultChannel = "wizard"

// EmitterOption configures an Emitter.
type EmitterOption func(*Emitter)

// WithChannel overrides DefaultChannel.
func WithChannel(channel string) EmitterOption {
	return func(e *Emitter) {
		if channel = strings.TrimSpace(channel); channel != "" {
			e.channel = channel
		}
	}
}

// WithSession stamps session on events that do not name one, and uses it as
// the object id of session-level events.
func WithSession(session string) EmitterOption {
	return func(e *Emitter) {
		e.session = strings.TrimSpace(session)
	}
}

func WithClock(now func() time.Time) EmitterOption {
	return func(e *Emitter) {
		if now != nil {
			e.now = now
		}
	}
}

// Emitter applies session defaults and hands events to its hooks. A nil
// Emitter, or one without hooks, drops everything.
type Emitter struct {
	hooks   Hooks
	channel string
	session string
	now     func() time.Time
}

func NewEmitter(hooks Hooks, opts ...EmitterOption) *Emitter {
	e := &Emitter{channel: DefaultChannel, now: time.Now}
	for _, hook := range hooks {
		if hook != nil {
			e.hooks = append(e.hooks, hook)
		}
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func (e *Emitter) Enabled() bool {
	return e != nil && len(e.hooks) > 0
}

// Emit normalizes event and notifies the hooks. Events that are still
// missing a verb or object after defaults are dropped silently.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if !e.Enabled() {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	event = event.Normalized(e.now)
	if event.Channel == "" {
		event.Channel = e.channel
	}
	if event.Session == "" {
		event.Session = e.session
	}
	if event.Object.ID == "" && sessionScoped(event.Object.Type) {
		event.Object.ID = event.Session
	}
	if !event.Valid() {
		return nil
	}
	return e.hooks.Notify(ctx, event)
}

// sessionScoped object types describe the whole session rather than one
// entity, so the session stands in for their id.
func sessionScoped(objectType string) bool {
	return objectType == ObjectSession || objectType == ObjectPhotos
}
