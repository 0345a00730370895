package state

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-wizard/layering"
)

// MemoryStore keeps sessions in process memory. Snapshots are deep-copied
// on Save and Load, so neither side can reach into the other's tree.
type MemoryStore[T any] struct {
	// MaxBytes, when positive, rejects snapshots whose JSON encoding is
	// larger, the same way the persistent stores do.
	MaxBytes int64

	mu       sync.RWMutex
	sessions map[string]memorySession[T]
	saves    int
}

type memorySession[T any] struct {
	snapshot T
	meta     Meta
}

func NewMemoryStore[T any]() *MemoryStore[T] {
	return &MemoryStore[T]{sessions: map[string]memorySession[T]{}}
}

func (s *MemoryStore[T]) Load(ctx context.Context, ref Ref) (T, Meta, bool, error) {
	var zero T
	key, err := ref.Identifier()
	if err != nil {
		return zero, Meta{}, false, err
	}
	if err := ctx.Err(); err != nil {
		return zero, Meta{}, false, err
	}

	s.mu.RLock()
	session, ok := s.sessions[key]
	s.mu.RUnlock()
	if !ok {
		return zero, Meta{}, false, nil
	}
	return layering.Clone(session.snapshot), cloneMeta(session.meta), true, nil
}

func (s *MemoryStore[T]) Save(ctx context.Context, ref Ref, snapshot T, meta Meta) (Meta, error) {
	key, err := ref.Identifier()
	if err != nil {
		return Meta{}, err
	}
	if err := ctx.Err(); err != nil {
		return Meta{}, err
	}
	if s.MaxBytes > 0 {
		raw, err := json.Marshal(snapshot)
		if err != nil {
			return Meta{}, fmt.Errorf("state: encode %s: %w", ref, err)
		}
		if int64(len(raw)) > s.MaxBytes {
			return Meta{}, fmt.Errorf("%w: %s needs %d bytes, limit is %d", ErrQuotaExceeded, ref, len(raw), s.MaxBytes)
		}
	}
	copied := layering.Clone(snapshot)

	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.sessions[key].meta
	if err := checkETag(meta.ETag, current.ETag); err != nil {
		return Meta{}, err
	}
	saved := mergeMeta(current, meta)
	saved.ETag = nextETag(current.ETag)
	s.sessions[key] = memorySession[T]{snapshot: copied, meta: saved}
	s.saves++
	return cloneMeta(saved), nil
}

// Sessions lists the session names saved under domain, sorted.
func (s *MemoryStore[T]) Sessions(domain string) []string {
	prefix := domain + "/"
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for key := range s.sessions {
		if name, ok := strings.CutPrefix(key, prefix); ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Saves reports how many saves the store has accepted.
func (s *MemoryStore[T]) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}
