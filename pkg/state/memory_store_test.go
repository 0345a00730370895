package state_test

import (
	"context"
	"sync"
	"testing"

	"github.com/goliatone/go-wizard/pkg/state"
)

func TestMemoryStoreCountsConcurrentSaves(t *testing.T) {
	store := state.NewMemoryStore[document]()
	ref := state.Ref{Domain: "appraisal", Session: "busy"}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := store.Save(context.Background(), ref, document{"n": i}, state.Meta{}); err != nil {
				t.Errorf("save %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	if got := store.Saves(); got != 20 {
		t.Fatalf("expected 20 saves, got %d", got)
	}
	_, meta, ok, err := store.Load(context.Background(), ref)
	if err != nil || !ok {
		t.Fatalf("load: ok=%t err=%v", ok, err)
	}
	if meta.ETag != "r20" {
		t.Fatalf("expected etag r20, got %q", meta.ETag)
	}
}

func TestMemoryStoreMetaIsCopied(t *testing.T) {
	store := state.NewMemoryStore[document]()
	ref := state.Ref{Domain: "appraisal", Session: "copy"}
	extra := map[string]string{"actor": "a"}

	if _, err := store.Save(context.Background(), ref, document{}, state.Meta{Extra: extra}); err != nil {
		t.Fatalf("save: %v", err)
	}
	extra["actor"] = "b"

	_, meta, _, _ := store.Load(context.Background(), ref)
	if meta.Extra["actor"] != "a" {
		t.Fatalf("stored meta aliased caller map: %v", meta.Extra)
	}
}

func TestMemoryStoreSnapshotsAreDetached(t *testing.T) {
	store := state.NewMemoryStore[document]()
	ref := state.Ref{Domain: "appraisal", Session: "detached"}
	saved := document{"subjectData": map[string]any{"city": "Austin"}}

	if _, err := store.Save(context.Background(), ref, saved, state.Meta{}); err != nil {
		t.Fatalf("save: %v", err)
	}
	saved["subjectData"].(map[string]any)["city"] = "Dallas"

	loaded, _, _, _ := store.Load(context.Background(), ref)
	if loaded["subjectData"].(map[string]any)["city"] != "Austin" {
		t.Fatalf("stored snapshot aliased the saved tree: %v", loaded)
	}
	loaded["subjectData"].(map[string]any)["city"] = "Houston"

	again, _, _, _ := store.Load(context.Background(), ref)
	if again["subjectData"].(map[string]any)["city"] != "Austin" {
		t.Fatalf("loaded snapshot aliased the stored tree: %v", again)
	}
}

func TestMemoryStoreListsSessionsPerDomain(t *testing.T) {
	store := state.NewMemoryStore[document]()
	for _, ref := range []state.Ref{
		{Domain: "appraisal", Session: "job-2"},
		{Domain: "appraisal", Session: "job-1"},
		{Domain: "review", Session: "job-9"},
	} {
		if _, err := store.Save(context.Background(), ref, document{}, state.Meta{}); err != nil {
			t.Fatalf("save %s: %v", ref, err)
		}
	}

	got := store.Sessions("appraisal")
	if len(got) != 2 || got[0] != "job-1" || got[1] != "job-2" {
		t.Fatalf("unexpected sessions: %v", got)
	}
	if got := store.Sessions("missing"); len(got) != 0 {
		t.Fatalf("expected no sessions, got %v", got)
	}
}
