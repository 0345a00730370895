package wizard

import (
	"context"
	"fmt"
	"sort"

	"github.com/goliatone/go-wizard/internal/hydrate"
	"github.com/goliatone/go-wizard/layering"
	"github.com/goliatone/go-wizard/pkg/state"
	"go.uber.org/zap"
)

// Open restores the session stored under ref and returns a store that keeps
// saving to it. A missing, unreadable or malformed document is logged and the
// session starts from Defaults instead; Open only fails for a nil store.
func Open(ctx context.Context, store state.Store[Document], ref state.Ref, opts ...Option) (*Store, error) {
	if store == nil {
		return nil, fmt.Errorf("wizard: open %s: store is required", ref)
	}
	cfg := applyOptions(opts)
	logger := cfg.logger.With(zap.String("session", ref.String()))

	initial := Defaults()
	doc, meta, ok, err := store.Load(ctx, ref)
	switch {
	case err != nil:
		logger.Warn("load session failed, starting fresh", zap.Error(err))
	case !ok:
		logger.Debug("no saved session, starting fresh")
	default:
		restored, migrated, decodeErr := DecodeDocument(ref.String(), doc)
		if decodeErr != nil {
			logger.Warn("saved session is malformed, starting fresh",
				zap.String("snapshot_id", meta.SnapshotID),
				zap.Error(decodeErr),
			)
			break
		}
		initial = restored
		if len(migrated) > 0 {
			logger.Info("saved session migrated", zap.Strings("migrations", migrated))
		}
		logger.Debug("session restored",
			zap.String("snapshot_id", meta.SnapshotID),
			zap.Uint64("version", restored.Version),
		)
	}

	all := make([]Option, 0, len(opts)+2)
	all = append(all, opts...)
	all = append(all, WithInitialState(initial), WithPersistence(store, ref))
	return NewStore(all...), nil
}

var documentDecoder = hydrate.New[State](
	hydrate.Migrate[State](
		hydrate.RenameKey("activeScenario", "activeScenarioId"),
		hydrate.DropKey("celebration"),
	),
	hydrate.Repairs[State](validateRestored),
)

// DecodeDocument turns a persisted document back into State, migrating legacy
// keys, dropping transient data and backfilling anything missing from
// Defaults. It also returns the names of the migrations that applied.
func DecodeDocument(session string, doc Document) (State, []string, error) {
	result, err := documentDecoder.Decode(session, doc)
	if err != nil {
		return State{}, nil, err
	}
	restored := layering.Backfill(result.Value, Defaults())
	if len(restored.Scenarios) == 0 {
		restored.Scenarios = Defaults().Scenarios
	}
	ensureActiveScenario(&restored)
	return restored, result.Migrated, nil
}

// validateRestored repairs what a previous process may have left half done.
func validateRestored(s *State) error {
	for id, doc := range s.UploadedDocuments {
		if !doc.Status.Valid() {
			return fmt.Errorf("document %q has unknown status %q", id, doc.Status)
		}
	}

	photos := make([]StagingPhoto, 0, len(s.StagingPhotos))
	for id, photo := range s.StagingPhotos {
		if !photo.Status.Valid() {
			return fmt.Errorf("staging photo %q has unknown status %q", id, photo.Status)
		}
		photo.ID = id
		photos = append(photos, photo)
	}
	sort.Slice(photos, func(i, j int) bool {
		if photos[i].Seq != photos[j].Seq {
			return photos[i].Seq < photos[j].Seq
		}
		return photos[i].ID < photos[j].ID
	})

	held := map[string]bool{}
	for slot := range s.Photos {
		held[slot] = true
	}
	for _, photo := range photos {
		// no classifier survives a restart; interrupted photos fall back to
		// manual slot selection
		if photo.Status == StatusClassifying || photo.Status == StatusPending {
			photo.Status = StatusError
			photo.Error = ClassificationInterrupted
		}
		if photo.AssignedSlot != "" {
			if held[photo.AssignedSlot] {
				photo.AssignedSlot = ""
				photo.Status = StatusClassified
				if photo.Error != "" {
					photo.Status = StatusError
				}
			} else {
				held[photo.AssignedSlot] = true
				photo.Status = StatusAssigned
			}
		} else if photo.Status == StatusAssigned {
			photo.Status = StatusClassified
		}
		if photo.Seq >= s.NextPhotoSeq {
			s.NextPhotoSeq = photo.Seq + 1
		}
		s.StagingPhotos[photo.ID] = photo
	}
	return nil
}
