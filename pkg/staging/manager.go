package staging

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-wizard"
	"github.com/goliatone/go-wizard/pkg/activity"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultConcurrency    = 4
	DefaultMaxSuggestions = 3
)

// Upload is a photo handed to the manager. Image may be nil when the
// classifier reads SourcePath itself.
type Upload struct {
	FileName    string
	ContentType string
	SourcePath  string
	Size        int64
	Image       []byte
}

// Option configures a Manager.
type Option func(*Manager)

func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithConcurrency bounds the number of classification calls in flight per
// batch.
func WithConcurrency(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.concurrency = n
		}
	}
}

func WithMaxSuggestions(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxSuggestions = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithActivity emits photo assignment and commit events on behalf of actorID.
func WithActivity(emitter *activity.Emitter, actorID string) Option {
	return func(m *Manager) {
		m.emitter = emitter
		m.actorID = actorID
	}
}

// Manager drives staging photos through a wizard store. All state changes go
// through the store; the manager only orchestrates classification calls and
// the sequential bulk accept.
type Manager struct {
	store          *wizard.Store
	classifier     Classifier
	logger         *zap.Logger
	emitter        *activity.Emitter
	actorID        string
	now            func() time.Time
	concurrency    int
	maxSuggestions int

	batches  sync.WaitGroup
	acceptMu sync.Mutex
}

// NewManager binds a manager to store and classifier.
func NewManager(store *wizard.Store, classifier Classifier, opts ...Option) *Manager {
	m := &Manager{
		store:          store,
		classifier:     classifier,
		logger:         zap.NewNop(),
		now:            time.Now,
		concurrency:    DefaultConcurrency,
		maxSuggestions: DefaultMaxSuggestions,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// AddStagingPhotos stages uploads in pending status and starts classifying
// them in the background. It returns the new photo ids in upload order
// without waiting for any classification.
func (m *Manager) AddStagingPhotos(ctx context.Context, uploads []Upload) ([]string, error) {
	if len(uploads) == 0 {
		return nil, nil
	}
	now := m.now().UTC()
	photos := make([]wizard.StagingPhoto, 0, len(uploads))
	ids := make([]string, 0, len(uploads))
	for _, upload := range uploads {
		name := strings.TrimSpace(upload.FileName)
		if name == "" {
			return nil, fmt.Errorf("staging: upload without a file name")
		}
		photo := wizard.NewStagingPhoto(name, upload.SourcePath, upload.Size, now)
		photo.ContentType = upload.ContentType
		photos = append(photos, photo)
		ids = append(ids, photo.ID)
	}
	if err := m.store.Dispatch(wizard.AddStagingPhotos{Photos: photos}); err != nil {
		return nil, err
	}

	g := new(errgroup.Group)
	g.SetLimit(m.concurrency)
	m.batches.Add(1)
	go func() {
		defer m.batches.Done()
		for i, id := range ids {
			upload := uploads[i]
			g.Go(func() error {
				m.classify(ctx, id, upload)
				return nil
			})
		}
		_ = g.Wait()
	}()
	return ids, nil
}

// Wait blocks until every classification started so far has been applied or
// discarded.
func (m *Manager) Wait() {
	m.batches.Wait()
}

func (m *Manager) classify(ctx context.Context, id string, upload Upload) {
	log := m.logger.With(zap.String("photo", id), zap.String("file", upload.FileName))
	if err := m.store.Dispatch(wizard.MarkPhotoClassifying{ID: id}); err != nil {
		m.dropped(log, "mark classifying", err)
		return
	}

	snapshot := m.store.State()
	req := Request{
		PhotoID:    id,
		FileName:   upload.FileName,
		SourcePath: upload.SourcePath,
		Image:      upload.Image,
		UsedSlots:  wizard.UsedSlots(snapshot),
		Options:    ClassifyOptions{MaxSuggestions: m.maxSuggestions},
	}
	if snapshot.PropertyType != nil {
		req.Options.PropertyType = *snapshot.PropertyType
	}

	result, err := m.classifier.Classify(ctx, req)
	at := m.now().UTC()
	var act wizard.Action
	switch {
	case err != nil:
		act = wizard.FailClassification{ID: id, Message: err.Error(), At: at}
	case !result.Success:
		message := strings.TrimSpace(result.Error)
		if message == "" {
			message = "classification failed"
		}
		act = wizard.FailClassification{ID: id, Message: message, At: at}
	default:
		act = wizard.ApplyClassification{
			ID:                 id,
			Suggestions:        result.Suggestions,
			DetectedComponents: result.DetectedComponents,
			At:                 at,
		}
	}
	if err := m.store.Dispatch(act); err != nil {
		m.dropped(log, act.ActionType(), err)
		return
	}
	log.Debug("photo classified", zap.String("action", act.ActionType()))
}

// dropped logs a classification update that could not be applied. A missing
// photo means it was removed while in flight, which is expected.
func (m *Manager) dropped(log *zap.Logger, step string, err error) {
	if errors.Is(err, wizard.ErrPhotoNotFound) {
		log.Debug("discarding result for removed photo", zap.String("step", step))
		return
	}
	log.Warn("classification update rejected", zap.String("step", step), zap.Error(err))
}

// StagingPhotos returns the staged photos in arrival order.
func (m *Manager) StagingPhotos() []wizard.StagingPhoto {
	return wizard.StagingPhotosInOrder(m.store.State())
}

// UsedSlots returns the slots currently held by staged or committed photos.
func (m *Manager) UsedSlots() []string {
	return wizard.UsedSlots(m.store.State())
}

// AvailableSuggestions returns the photo's suggestions whose slots are free
// right now, or held by the photo itself.
func (m *Manager) AvailableSuggestions(photoID string) ([]wizard.Suggestion, error) {
	s := m.store.State()
	photo, ok := s.StagingPhotos[photoID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", wizard.ErrPhotoNotFound, photoID)
	}
	used := wizard.UsedSlots(s)
	out := make([]wizard.Suggestion, 0, len(photo.Suggestions))
	for _, suggestion := range photo.Suggestions {
		if suggestion.SlotID != photo.AssignedSlot && slices.Contains(used, suggestion.SlotID) {
			continue
		}
		out = append(out, suggestion)
	}
	return out, nil
}

// AssignPhotoToSlot commits photoID to slotID, or unassigns it when slotID is
// empty. It fails with wizard.ErrSlotConflict when another photo holds the
// slot.
func (m *Manager) AssignPhotoToSlot(ctx context.Context, photoID, slotID string) error {
	if err := m.store.Dispatch(wizard.AssignPhotoSlot{PhotoID: photoID, SlotID: slotID}); err != nil {
		return err
	}
	if slotID != "" {
		m.emit(ctx, activity.PhotoAssigned(photoID, slotID, "manual").By(m.actorID).At(m.now().UTC()))
	}
	return nil
}

// Assignment is one commit made by AcceptAllSuggestions.
type Assignment struct {
	PhotoID    string
	SlotID     string
	Confidence float64
	// Rank is the suggestion's position, 0 for the top suggestion.
	Rank int
}

// AcceptReport summarizes a bulk accept.
type AcceptReport struct {
	Assigned []Assignment
	// Unassigned photos had no free suggestion at or above the threshold and
	// need a manual choice.
	Unassigned []string
	// Pending photos were still waiting on classification.
	Pending []string
}

// AcceptAllSuggestions walks staged photos in arrival order and commits each
// unassigned photo to its best suggestion whose slot is still free at that
// moment, skipping suggestions below minConfidence. Photos are processed one
// at a time so two photos never claim the same slot. Running it again without
// new photos commits nothing.
func (m *Manager) AcceptAllSuggestions(ctx context.Context, minConfidence float64) AcceptReport {
	m.acceptMu.Lock()
	defer m.acceptMu.Unlock()

	var report AcceptReport
	for _, photo := range m.StagingPhotos() {
		if photo.AssignedSlot != "" {
			continue
		}
		if !photo.Settled() {
			report.Pending = append(report.Pending, photo.ID)
			continue
		}
		assignment, ok := m.acceptOne(photo, minConfidence)
		if !ok {
			report.Unassigned = append(report.Unassigned, photo.ID)
			continue
		}
		report.Assigned = append(report.Assigned, assignment)
		m.emit(ctx, activity.PhotoAssigned(assignment.PhotoID, assignment.SlotID, "bulk").
			With("confidence", assignment.Confidence).
			With("rank", assignment.Rank).
			By(m.actorID).
			At(m.now().UTC()))
	}
	return report
}

func (m *Manager) acceptOne(photo wizard.StagingPhoto, minConfidence float64) (Assignment, bool) {
	used := m.UsedSlots()
	for rank, suggestion := range photo.Suggestions {
		if suggestion.Confidence < minConfidence {
			// suggestions are ranked, nothing below qualifies either
			break
		}
		if slices.Contains(used, suggestion.SlotID) {
			continue
		}
		err := m.store.Dispatch(wizard.AssignPhotoSlot{PhotoID: photo.ID, SlotID: suggestion.SlotID})
		switch {
		case err == nil:
			return Assignment{PhotoID: photo.ID, SlotID: suggestion.SlotID, Confidence: suggestion.Confidence, Rank: rank}, true
		case errors.Is(err, wizard.ErrSlotConflict):
			// taken by a manual assignment since the snapshot
			used = append(used, suggestion.SlotID)
		default:
			m.logger.Debug("bulk accept skipped photo", zap.String("photo", photo.ID), zap.Error(err))
			return Assignment{}, false
		}
	}
	return Assignment{}, false
}

// RemoveStagingPhoto drops a staged photo, releasing any slot it held. A
// classification still in flight for it is discarded when it returns.
func (m *Manager) RemoveStagingPhoto(photoID string) error {
	return m.store.Dispatch(wizard.RemoveStagingPhoto{ID: photoID})
}

// ClearStagingPhotos drops every staged photo.
func (m *Manager) ClearStagingPhotos() error {
	return m.store.Dispatch(wizard.ClearStagingPhotos{})
}

// CommitAssigned moves every assigned staged photo into the permanent photo
// record and returns the committed slots.
func (m *Manager) CommitAssigned(ctx context.Context) ([]string, error) {
	var slots []string
	for _, photo := range m.StagingPhotos() {
		if photo.AssignedSlot != "" {
			slots = append(slots, photo.AssignedSlot)
		}
	}
	if len(slots) == 0 {
		return nil, nil
	}
	at := m.now().UTC()
	if err := m.store.Dispatch(wizard.CommitStagedPhotos{At: at}); err != nil {
		return nil, err
	}
	m.emit(ctx, activity.PhotosCommitted(slots).By(m.actorID).At(at))
	return slots, nil
}

func (m *Manager) emit(ctx context.Context, event activity.Event) {
	if err := m.emitter.Emit(ctx, event); err != nil {
		m.logger.Warn("activity emit failed", zap.String("verb", event.Verb), zap.Error(err))
	}
}
