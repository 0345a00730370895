package state_test

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/goliatone/go-wizard/pkg/state"
)

type document = map[string]any

func storesUnderTest(t *testing.T) map[string]state.Store[document] {
	t.Helper()
	sqlite, err := state.OpenSQLiteStore[document](context.Background(), ":memory:", 0)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })

	return map[string]state.Store[document]{
		"memory": state.NewMemoryStore[document](),
		"file":   state.NewFileStore[document](t.TempDir(), 0),
		"sqlite": sqlite,
	}
}

func TestStoreSaveContracts(t *testing.T) {
	ref := state.Ref{Domain: "appraisal", Session: "job-42"}
	updated := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, _, ok, err := store.Load(ctx, ref)
			if err != nil {
				t.Fatalf("load empty: %v", err)
			}
			if ok {
				t.Fatalf("expected no snapshot before first save")
			}

			first, err := store.Save(ctx, ref, document{"template": "residential"}, state.Meta{
				SnapshotID: "snap-1",
				UpdatedAt:  updated,
				Extra:      map[string]string{"actor": "tester"},
			})
			if err != nil {
				t.Fatalf("save: %v", err)
			}
			if first.ETag != "r1" {
				t.Fatalf("expected first etag r1, got %q", first.ETag)
			}

			second, err := store.Save(ctx, ref, document{"template": "commercial"}, state.Meta{
				SnapshotID: "snap-2",
				ETag:       first.ETag,
				UpdatedAt:  updated.Add(time.Second),
			})
			if err != nil {
				t.Fatalf("second save: %v", err)
			}
			if second.ETag != "r2" {
				t.Fatalf("expected second etag r2, got %q", second.ETag)
			}

			snapshot, meta, ok, err := store.Load(ctx, ref)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if !ok {
				t.Fatalf("expected snapshot after save")
			}
			if diff := cmpJSON(document{"template": "commercial"}, snapshot); diff != "" {
				t.Fatalf("snapshot mismatch: %s", diff)
			}
			if meta.SnapshotID != "snap-2" || meta.ETag != "r2" {
				t.Fatalf("unexpected meta %+v", meta)
			}
			if !meta.UpdatedAt.Equal(updated.Add(time.Second)) {
				t.Fatalf("expected updated_at %s, got %s", updated.Add(time.Second), meta.UpdatedAt)
			}
			if meta.Extra["actor"] != "tester" {
				t.Fatalf("expected extra to carry over, got %v", meta.Extra)
			}

			_, err = store.Save(ctx, ref, document{}, state.Meta{ETag: first.ETag})
			if !errors.Is(err, state.ErrETagMismatch) {
				t.Fatalf("expected ErrETagMismatch for stale etag, got %v", err)
			}
		})
	}
}

func TestStoreRejectsInvalidRef(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Save(context.Background(), state.Ref{Domain: "appraisal"}, document{}, state.Meta{})
			if !errors.Is(err, state.ErrInvalidRef) {
				t.Fatalf("expected ErrInvalidRef, got %v", err)
			}
		})
	}
}

func TestQuotaExceededLeavesPreviousSnapshot(t *testing.T) {
	ctx := context.Background()
	ref := state.Ref{Domain: "appraisal", Session: "quota"}
	dir := t.TempDir()
	store := state.NewFileStore[document](dir, 200)

	if _, err := store.Save(ctx, ref, document{"a": 1}, state.Meta{}); err != nil {
		t.Fatalf("small save: %v", err)
	}
	big := document{"notes": string(make([]byte, 256))}
	if _, err := store.Save(ctx, ref, big, state.Meta{}); !errors.Is(err, state.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}

	snapshot, _, ok, err := store.Load(ctx, ref)
	if err != nil || !ok {
		t.Fatalf("load after quota failure: ok=%t err=%v", ok, err)
	}
	if diff := cmpJSON(document{"a": 1}, snapshot); diff != "" {
		t.Fatalf("previous snapshot lost: %s", diff)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "appraisal", ".snapshot-*"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("expected temp files cleaned up, found %v", matches)
	}
}

func TestSQLiteQuota(t *testing.T) {
	ctx := context.Background()
	store, err := state.OpenSQLiteStore[document](ctx, ":memory:", 16)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	_, err = store.Save(ctx, state.Ref{Domain: "appraisal", Session: "big"}, document{"notes": "far too long for sixteen bytes"}, state.Meta{})
	if !errors.Is(err, state.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
}

func cmpJSON(want, got any) string {
	wantRaw, err := json.Marshal(want)
	if err != nil {
		return "marshal want: " + err.Error()
	}
	gotRaw, err := json.Marshal(got)
	if err != nil {
		return "marshal got: " + err.Error()
	}
	if string(wantRaw) == string(gotRaw) {
		return ""
	}
	return "want=" + string(wantRaw) + " got=" + string(gotRaw)
}
