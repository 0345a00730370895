package usersink_test

import (
	"context"
	"errors"
	"testing"
	"time"

	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/goliatone/go-wizard/pkg/activity"
	"github.com/goliatone/go-wizard/pkg/activity/usersink"
	"github.com/google/uuid"
)

type recordingSink struct {
	records []usertypes.ActivityRecord
	err     error
}

func (s *recordingSink) Log(_ context.Context, record usertypes.ActivityRecord) error {
	s.records = append(s.records, record)
	return s.err
}

func emit(t *testing.T, hook activity.Hook, event activity.Event, opts ...activity.EmitterOption) error {
	t.Helper()
	return activity.NewEmitter(activity.Hooks{hook}, opts...).Emit(context.Background(), event)
}

func TestNotifyMapsScenarioMilestone(t *testing.T) {
	sink := &recordingSink{}
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	actor, user, tenant := uuid.New(), uuid.New(), uuid.New()

	event := activity.ScenarioCompleted("as-is", "As Is", "major").By(actor.String()).At(now)
	event.UserID = user.String()
	event.TenantID = tenant.String()

	if err := emit(t, usersink.New(sink), event, activity.WithSession("appraisal/job-42")); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(sink.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(sink.records))
	}
	record := sink.records[0]
	if record.ActorID != actor || record.UserID != user || record.TenantID != tenant {
		t.Fatalf("unexpected identity: %+v", record)
	}
	if record.Verb != activity.VerbScenarioCompleted || record.ObjectType != activity.ObjectScenario || record.ObjectID != "as-is" {
		t.Fatalf("unexpected record payload: %+v", record)
	}
	if record.Channel != activity.DefaultChannel || !record.OccurredAt.Equal(now) {
		t.Fatalf("unexpected channel or time: %+v", record)
	}
	if record.Data["session"] != "appraisal/job-42" || record.Data["level"] != "major" || record.Data["name"] != "As Is" {
		t.Fatalf("unexpected data: %v", record.Data)
	}
}

func TestNamedActorsGetStableIDs(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.New(sink)

	for i := 0; i < 2; i++ {
		if err := emit(t, hook, activity.PhotoAssigned("p1", "roof", "manual").By("cli")); err != nil {
			t.Fatalf("notify: %v", err)
		}
	}
	if err := emit(t, hook, activity.PhotoAssigned("p2", "garage", "manual")); err != nil {
		t.Fatalf("notify: %v", err)
	}

	first, second, anonymous := sink.records[0].ActorID, sink.records[1].ActorID, sink.records[2].ActorID
	if first == uuid.Nil || first != second {
		t.Fatalf("expected a stable derived actor id, got %s and %s", first, second)
	}
	if first != uuid.NewSHA1(usersink.ActorNamespace, []byte("cli")) {
		t.Fatalf("derived id does not use the actor namespace")
	}
	if anonymous != uuid.Nil {
		t.Fatalf("expected nil actor without an actor, got %s", anonymous)
	}
}

func TestDefaultTenant(t *testing.T) {
	sink := &recordingSink{}
	tenant := uuid.New()

	if err := emit(t, usersink.New(sink, usersink.WithTenant(tenant)), activity.SectionCompleted("setup", "minor")); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if sink.records[0].TenantID != tenant {
		t.Fatalf("expected default tenant, got %s", sink.records[0].TenantID)
	}
}

func TestNotifySkipsInvalidEventsAndNilSink(t *testing.T) {
	sink := &recordingSink{}
	if err := usersink.New(sink).Notify(context.Background(), activity.Event{}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(sink.records) != 0 {
		t.Fatalf("expected no records for an empty event, got %d", len(sink.records))
	}

	var nilHook *usersink.Hook
	if err := nilHook.Notify(context.Background(), activity.SectionCompleted("s", "minor")); err != nil {
		t.Fatalf("nil hook should be a no-op, got %v", err)
	}
}

func TestNotifyReturnsSinkError(t *testing.T) {
	sinkErr := errors.New("sink down")
	sink := &recordingSink{err: sinkErr}

	err := emit(t, usersink.New(sink), activity.WizardCompleted("grand"), activity.WithSession("appraisal/job-1"))
	if !errors.Is(err, sinkErr) {
		t.Fatalf("expected sink error, got %v", err)
	}
	if sink.records[0].ObjectID != "appraisal/job-1" {
		t.Fatalf("expected session as finale object id, got %q", sink.records[0].ObjectID)
	}
}
