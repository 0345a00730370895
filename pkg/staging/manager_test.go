package staging

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-wizard"
	"github.com/goliatone/go-wizard/pkg/activity"
	"github.com/goliatone/go-wizard/pkg/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// scripted answers classification requests by file name.
type scripted map[string][]wizard.Suggestion

func (s scripted) Classify(_ context.Context, req Request) (Result, error) {
	suggestions, ok := s[req.FileName]
	if !ok {
		return Result{}, fmt.Errorf("no script for %s", req.FileName)
	}
	return Result{Success: true, Suggestions: suggestions}, nil
}

func suggest(pairs ...any) []wizard.Suggestion {
	var out []wizard.Suggestion
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, wizard.Suggestion{SlotID: pairs[i].(string), Confidence: pairs[i+1].(float64)})
	}
	return out
}

func uploads(names ...string) []Upload {
	out := make([]Upload, len(names))
	for i, name := range names {
		out[i] = Upload{FileName: name, SourcePath: "/tmp/" + name}
	}
	return out
}

func fixedClock() time.Time {
	return time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC)
}

func newManager(t *testing.T, classifier Classifier, opts ...Option) (*Manager, *wizard.Store) {
	t.Helper()
	store := wizard.NewStore()
	opts = append([]Option{WithClock(fixedClock)}, opts...)
	return NewManager(store, classifier, opts...), store
}

func stage(t *testing.T, m *Manager, names ...string) []string {
	t.Helper()
	ids, err := m.AddStagingPhotos(context.Background(), uploads(names...))
	require.NoError(t, err)
	m.Wait()
	return ids
}

func assertAtMostOnePerSlot(t *testing.T, s wizard.State) {
	t.Helper()
	holders := map[string]string{}
	for slot, record := range s.Photos {
		holders[slot] = record.PhotoID
	}
	for _, photo := range s.StagingPhotos {
		if photo.AssignedSlot == "" {
			continue
		}
		if other, taken := holders[photo.AssignedSlot]; taken {
			t.Fatalf("slot %s held by both %s and %s", photo.AssignedSlot, other, photo.ID)
		}
		holders[photo.AssignedSlot] = photo.ID
	}
}

func TestAddStagingPhotosClassifiesInBackground(t *testing.T) {
	m, store := newManager(t, scripted{
		"front.jpg":   suggest("front-exterior", 91.0),
		"kitchen.jpg": suggest("kitchen", 88.0, "living-room", 40.0),
	})

	ids := stage(t, m, "front.jpg", "kitchen.jpg")
	require.Len(t, ids, 2)

	photos := m.StagingPhotos()
	require.Len(t, photos, 2)
	assert.Equal(t, ids[0], photos[0].ID, "arrival order")
	for _, photo := range photos {
		assert.Equal(t, wizard.StatusClassified, photo.Status)
		assert.NotEmpty(t, photo.Suggestions)
		assert.Equal(t, fixedClock(), photo.ClassifiedAt)
	}
	assert.Empty(t, m.UsedSlots())
	assert.Equal(t, 2, store.State().NextPhotoSeq)
}

func TestAddStagingPhotosRejectsNamelessUploads(t *testing.T) {
	m, store := newManager(t, scripted{})
	_, err := m.AddStagingPhotos(context.Background(), []Upload{{FileName: " "}})
	require.Error(t, err)
	assert.Empty(t, store.State().StagingPhotos)

	ids, err := m.AddStagingPhotos(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, ids)
}

func TestBulkAcceptRaceForSameTopSlot(t *testing.T) {
	m, store := newManager(t, scripted{
		"a.jpg": suggest("kitchen", 95.0, "living-room", 30.0),
		"b.jpg": suggest("kitchen", 92.0, "living-room", 80.0),
	})
	ids := stage(t, m, "a.jpg", "b.jpg")

	report := m.AcceptAllSuggestions(context.Background(), 0)
	require.Len(t, report.Assigned, 2)
	assert.Equal(t, Assignment{PhotoID: ids[0], SlotID: "kitchen", Confidence: 95, Rank: 0}, report.Assigned[0])
	assert.Equal(t, Assignment{PhotoID: ids[1], SlotID: "living-room", Confidence: 80, Rank: 1}, report.Assigned[1])

	s := store.State()
	assert.Equal(t, "kitchen", s.StagingPhotos[ids[0]].AssignedSlot)
	assert.Equal(t, "living-room", s.StagingPhotos[ids[1]].AssignedSlot)
	assertAtMostOnePerSlot(t, s)
}

func TestBulkAcceptLeavesLoserUnassignedBelowThreshold(t *testing.T) {
	m, store := newManager(t, scripted{
		"a.jpg": suggest("kitchen", 95.0),
		"b.jpg": suggest("kitchen", 92.0, "living-room", 30.0),
	})
	ids := stage(t, m, "a.jpg", "b.jpg")

	report := m.AcceptAllSuggestions(context.Background(), 50)
	require.Len(t, report.Assigned, 1)
	assert.Equal(t, []string{ids[1]}, report.Unassigned)
	assert.Empty(t, store.State().StagingPhotos[ids[1]].AssignedSlot)
}

func TestBulkAcceptFollowsArrivalOrderNotResultOrder(t *testing.T) {
	release := map[string]chan struct{}{
		"first.jpg":  make(chan struct{}),
		"second.jpg": make(chan struct{}),
	}
	classifier := ClassifierFunc(func(ctx context.Context, req Request) (Result, error) {
		<-release[req.FileName]
		return Result{Success: true, Suggestions: suggest("kitchen", 90.0, "bathroom", 10.0)}, nil
	})
	m, store := newManager(t, classifier)

	ids, err := m.AddStagingPhotos(context.Background(), uploads("first.jpg", "second.jpg"))
	require.NoError(t, err)
	close(release["second.jpg"])
	require.Eventually(t, func() bool {
		return store.State().StagingPhotos[ids[1]].Status == wizard.StatusClassified
	}, time.Second, time.Millisecond)
	close(release["first.jpg"])
	m.Wait()

	report := m.AcceptAllSuggestions(context.Background(), 0)
	require.Len(t, report.Assigned, 2)
	assert.Equal(t, ids[0], report.Assigned[0].PhotoID)
	assert.Equal(t, "kitchen", report.Assigned[0].SlotID)
	assert.Equal(t, "bathroom", report.Assigned[1].SlotID)
}

func TestBulkAcceptIsIdempotent(t *testing.T) {
	m, store := newManager(t, scripted{
		"a.jpg": suggest("kitchen", 95.0),
		"b.jpg": suggest("kitchen", 92.0),
	})
	stage(t, m, "a.jpg", "b.jpg")

	first := m.AcceptAllSuggestions(context.Background(), 0)
	require.Len(t, first.Assigned, 1)
	version := store.State().Version

	second := m.AcceptAllSuggestions(context.Background(), 0)
	assert.Empty(t, second.Assigned)
	assert.Equal(t, first.Unassigned, second.Unassigned)
	assert.Equal(t, version, store.State().Version, "no further dispatches")
}

func TestBulkAcceptSkipsUnsettledPhotos(t *testing.T) {
	block := make(chan struct{})
	m, _ := newManager(t, ClassifierFunc(func(ctx context.Context, req Request) (Result, error) {
		<-block
		return Result{Success: true, Suggestions: suggest("roof", 70.0)}, nil
	}))
	ids, err := m.AddStagingPhotos(context.Background(), uploads("roof.jpg"))
	require.NoError(t, err)

	report := m.AcceptAllSuggestions(context.Background(), 0)
	assert.Equal(t, ids, report.Pending)
	assert.Empty(t, report.Assigned)

	close(block)
	m.Wait()
	report = m.AcceptAllSuggestions(context.Background(), 0)
	require.Len(t, report.Assigned, 1)
}

func TestRemovalFreesSlot(t *testing.T) {
	m, store := newManager(t, scripted{
		"x.jpg": suggest("front-exterior", 90.0),
		"y.jpg": suggest("front-exterior", 85.0),
	})
	x := stage(t, m, "x.jpg")[0]
	require.NoError(t, m.AssignPhotoToSlot(context.Background(), x, "front-exterior"))
	assert.Equal(t, []string{"front-exterior"}, m.UsedSlots())

	require.NoError(t, m.RemoveStagingPhoto(x))
	assert.Empty(t, m.UsedSlots())

	y := stage(t, m, "y.jpg")[0]
	available, err := m.AvailableSuggestions(y)
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, "front-exterior", available[0].SlotID)
	require.NoError(t, m.AssignPhotoToSlot(context.Background(), y, "front-exterior"))
	assertAtMostOnePerSlot(t, store.State())
}

func TestClearReleasesEverySlot(t *testing.T) {
	m, store := newManager(t, scripted{
		"a.jpg": suggest("kitchen", 95.0),
		"b.jpg": suggest("garage", 92.0),
	})
	stage(t, m, "a.jpg", "b.jpg")
	m.AcceptAllSuggestions(context.Background(), 0)
	require.Len(t, m.UsedSlots(), 2)

	require.NoError(t, m.ClearStagingPhotos())
	assert.Empty(t, m.UsedSlots())
	assert.Empty(t, store.State().StagingPhotos)
	assert.NoError(t, m.ClearStagingPhotos(), "clearing an empty batch is a no-op")
}

func TestAvailableSuggestionsHideTakenSlots(t *testing.T) {
	m, _ := newManager(t, scripted{
		"a.jpg": suggest("kitchen", 95.0, "bathroom", 20.0),
		"b.jpg": suggest("kitchen", 92.0, "bathroom", 60.0),
	})
	ids := stage(t, m, "a.jpg", "b.jpg")
	require.NoError(t, m.AssignPhotoToSlot(context.Background(), ids[0], "kitchen"))

	own, err := m.AvailableSuggestions(ids[0])
	require.NoError(t, err)
	assert.Len(t, own, 2, "a photo's own slot stays available to it")

	other, err := m.AvailableSuggestions(ids[1])
	require.NoError(t, err)
	assert.Equal(t, suggest("bathroom", 60.0), other)

	err = m.AssignPhotoToSlot(context.Background(), ids[1], "kitchen")
	assert.ErrorIs(t, err, wizard.ErrSlotConflict)

	_, err = m.AvailableSuggestions("missing")
	assert.ErrorIs(t, err, wizard.ErrPhotoNotFound)
}

func TestLateResultForRemovedPhotoIsDiscarded(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	core, logs := observer.New(zap.DebugLevel)
	started := make(chan struct{})
	release := make(chan struct{})
	m, store := newManager(t, ClassifierFunc(func(ctx context.Context, req Request) (Result, error) {
		close(started)
		<-release
		return Result{Success: true, Suggestions: suggest("kitchen", 99.0)}, nil
	}), WithLogger(zap.New(core)))

	ids, err := m.AddStagingPhotos(context.Background(), uploads("kitchen.jpg"))
	require.NoError(t, err)
	<-started
	require.NoError(t, m.RemoveStagingPhoto(ids[0]))
	close(release)
	m.Wait()

	assert.Empty(t, store.State().StagingPhotos)
	assert.Empty(t, m.UsedSlots())
	assert.Equal(t, 1, logs.FilterMessage("discarding result for removed photo").Len())
	assert.Zero(t, logs.FilterLevelExact(zap.WarnLevel).Len())
}

func TestFailedClassificationAllowsManualAssignment(t *testing.T) {
	m, store := newManager(t, ClassifierFunc(func(ctx context.Context, req Request) (Result, error) {
		if req.FileName == "blurry.jpg" {
			return Result{}, errors.New("vision service unavailable")
		}
		return Result{Success: false, Error: "  "}, nil
	}))
	ids := stage(t, m, "blurry.jpg", "dark.jpg")

	s := store.State()
	assert.Equal(t, wizard.StatusError, s.StagingPhotos[ids[0]].Status)
	assert.Equal(t, "vision service unavailable", s.StagingPhotos[ids[0]].Error)
	assert.Equal(t, "classification failed", s.StagingPhotos[ids[1]].Error)

	report := m.AcceptAllSuggestions(context.Background(), 0)
	assert.Equal(t, ids, report.Unassigned)

	require.NoError(t, m.AssignPhotoToSlot(context.Background(), ids[0], "street-view"))
	assert.Equal(t, "street-view", store.State().StagingPhotos[ids[0]].AssignedSlot)

	require.NoError(t, m.AssignPhotoToSlot(context.Background(), ids[0], ""))
	assert.Equal(t, wizard.StatusError, store.State().StagingPhotos[ids[0]].Status)
}

func TestInterruptedClassificationCanBeAssignedAfterRestart(t *testing.T) {
	ctx := context.Background()
	backend := state.NewMemoryStore[wizard.Document]()
	ref := state.Ref{Domain: "appraisal", Session: "restart"}
	_, err := backend.Save(ctx, ref, wizard.Document{
		"nextPhotoSeq": 1,
		"stagingPhotos": map[string]any{
			"p1": map[string]any{"id": "p1", "seq": 0, "fileName": "kitchen.jpg", "status": "classifying"},
		},
	}, state.Meta{})
	require.NoError(t, err)

	store, err := wizard.Open(ctx, backend, ref)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(ctx) })
	m := NewManager(store, scripted{}, WithClock(fixedClock))

	restored := store.State().StagingPhotos["p1"]
	assert.Equal(t, wizard.StatusError, restored.Status)
	assert.Equal(t, wizard.ClassificationInterrupted, restored.Error)

	report := m.AcceptAllSuggestions(ctx, 50)
	assert.Equal(t, []string{"p1"}, report.Unassigned, "needs a manual choice, not more waiting")
	assert.Empty(t, report.Pending)

	require.NoError(t, m.AssignPhotoToSlot(ctx, "p1", "kitchen"))
	assert.Equal(t, "kitchen", store.State().StagingPhotos["p1"].AssignedSlot)
	assert.Equal(t, []string{"kitchen"}, m.UsedSlots())
}

func TestClassifierSeesPointInTimeUsedSlots(t *testing.T) {
	var (
		mu   sync.Mutex
		seen = map[string][]string{}
	)
	m, _ := newManager(t, ClassifierFunc(func(ctx context.Context, req Request) (Result, error) {
		mu.Lock()
		seen[req.FileName] = req.UsedSlots
		mu.Unlock()
		return Result{Success: true, Suggestions: suggest("kitchen", 90.0)}, nil
	}), WithMaxSuggestions(5))

	a := stage(t, m, "a.jpg")[0]
	require.NoError(t, m.AssignPhotoToSlot(context.Background(), a, "kitchen"))
	stage(t, m, "b.jpg")

	mu.Lock()
	defer mu.Unlock()
	assert.Empty(t, seen["a.jpg"])
	assert.Equal(t, []string{"kitchen"}, seen["b.jpg"])
}

func TestCommitAssignedMovesPhotosAndEmits(t *testing.T) {
	capture := &activity.Recorder{}
	emitter := activity.NewEmitter(activity.Hooks{capture}, activity.WithSession("s-1"))
	m, store := newManager(t, scripted{
		"front.jpg": suggest("front-exterior", 95.0),
		"misc.jpg":  suggest("roof", 10.0),
	}, WithActivity(emitter, "appraiser-7"))
	ids := stage(t, m, "front.jpg", "misc.jpg")
	m.AcceptAllSuggestions(context.Background(), 50)

	slots, err := m.CommitAssigned(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"front-exterior"}, slots)

	s := store.State()
	assert.Equal(t, ids[0], s.Photos["front-exterior"].PhotoID)
	assert.NotContains(t, s.StagingPhotos, ids[0])
	assert.Contains(t, s.StagingPhotos, ids[1])
	assert.Equal(t, []string{"front-exterior"}, m.UsedSlots(), "committed slots stay used")

	assert.Equal(t, []string{activity.VerbPhotoAssigned, activity.VerbPhotosCommitted}, capture.Verbs())
	events := capture.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "appraiser-7", events[0].ActorID)
	assert.Equal(t, ids[0], events[0].Object.ID)
	assert.Equal(t, "bulk", events[0].Data["mode"])
	assert.Equal(t, "s-1", events[1].Session)
	assert.Equal(t, "s-1", events[1].Object.ID)
	assert.Equal(t, []string{"front-exterior"}, events[1].Data["slots"])

	slots, err = m.CommitAssigned(context.Background())
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestRandomOperationsKeepOneSlotPerPhoto(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	slots := []string{"kitchen", "bathroom", "garage", "roof"}
	rng := rand.New(rand.NewSource(42))
	m, store := newManager(t, ClassifierFunc(func(ctx context.Context, req Request) (Result, error) {
		return Result{Success: true, Suggestions: suggest("kitchen", 90.0, "bathroom", 70.0, "garage", 50.0)}, nil
	}), WithConcurrency(2))

	for step := 0; step < 200; step++ {
		photos := m.StagingPhotos()
		switch op := rng.Intn(6); {
		case op == 0 || len(photos) == 0:
			_, err := m.AddStagingPhotos(context.Background(), uploads(fmt.Sprintf("p%d.jpg", step)))
			require.NoError(t, err)
		case op == 1:
			m.AcceptAllSuggestions(context.Background(), 0)
		case op == 2:
			_ = m.RemoveStagingPhoto(photos[rng.Intn(len(photos))].ID)
		case op == 3:
			_ = m.AssignPhotoToSlot(context.Background(), photos[rng.Intn(len(photos))].ID, slots[rng.Intn(len(slots))])
		case op == 4:
			_, _ = m.CommitAssigned(context.Background())
		default:
			m.Wait()
		}
		assertAtMostOnePerSlot(t, store.State())
	}
	m.Wait()
	assertAtMostOnePerSlot(t, store.State())
}
