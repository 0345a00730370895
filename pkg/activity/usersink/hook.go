// Package usersink records wizard milestones in a go-users activity feed.
package usersink

import (
	"context"

	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/goliatone/go-wizard/pkg/activity"
	"github.com/google/uuid"
)

// ActorNamespace derives stable actor ids for actors that are named rather
// than identified, such as "cli" or an appraiser's login.
var ActorNamespace = uuid.MustParse("6f1c1f3e-5a0c-4d5e-9a43-7b9f3f0c2d11")

// Option configures a Hook.
type Option func(*Hook)

// WithTenant attributes events without a tenant to tenantID.
func WithTenant(tenantID uuid.UUID) Option {
	return func(h *Hook) {
		h.tenant = tenantID
	}
}

// Hook is an activity.Hook writing to a go-users ActivitySink.
type Hook struct {
	sink   usertypes.ActivitySink
	tenant uuid.UUID
}

func New(sink usertypes.ActivitySink, opts ...Option) *Hook {
	h := &Hook{sink: sink}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Notify logs event as one ActivityRecord. The session travels in the record
// data since go-users has no column for it.
func (h *Hook) Notify(ctx context.Context, event activity.Event) error {
	if h == nil || h.sink == nil || !event.Valid() {
		return nil
	}

	data := make(map[string]any, len(event.Data)+1)
	for k, v := range event.Data {
		data[k] = v
	}
	if event.Session != "" {
		data["session"] = event.Session
	}

	tenant := optionalID(event.TenantID)
	if tenant == uuid.Nil {
		tenant = h.tenant
	}
	return h.sink.Log(ctx, usertypes.ActivityRecord{
		ActorID:    actorID(event.ActorID),
		UserID:     optionalID(event.UserID),
		TenantID:   tenant,
		Verb:       event.Verb,
		ObjectType: event.Object.Type,
		ObjectID:   event.Object.ID,
		Channel:    event.Channel,
		Data:       data,
		OccurredAt: event.OccurredAt,
	})
}

func actorID(actor string) uuid.UUID {
	if actor == "" {
		return uuid.Nil
	}
	if id, err := uuid.Parse(actor); err == nil {
		return id
	}
	return uuid.NewSHA1(ActorNamespace, []byte(actor))
}

func optionalID(raw string) uuid.UUID {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil
	}
	return id
}
