package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps one JSON document per session under Dir, at
// <Dir>/<domain>/<session>.json. Writes go to a temp file that is renamed
// into place, so a crash never leaves a torn document behind.
type FileStore[T any] struct {
	// Dir is the root directory. It is created on first save.
	Dir string
	// MaxBytes bounds the encoded document size. Zero means unlimited.
	MaxBytes int64

	mu sync.Mutex
}

type fileEnvelope[T any] struct {
	Meta     Meta `json:"meta"`
	Snapshot T    `json:"snapshot"`
}

func NewFileStore[T any](dir string, maxBytes int64) *FileStore[T] {
	return &FileStore[T]{Dir: dir, MaxBytes: maxBytes}
}

func (s *FileStore[T]) path(ref Ref) (string, error) {
	if s.Dir == "" {
		return "", fmt.Errorf("state: file store directory is required")
	}
	if _, err := ref.Identifier(); err != nil {
		return "", err
	}
	return filepath.Join(s.Dir, ref.Domain, ref.Session+".json"), nil
}

func (s *FileStore[T]) Load(ctx context.Context, ref Ref) (T, Meta, bool, error) {
	var zero T
	path, err := s.path(ref)
	if err != nil {
		return zero, Meta{}, false, err
	}
	if err := ctx.Err(); err != nil {
		return zero, Meta{}, false, err
	}

	s.mu.Lock()
	envelope, ok, err := s.read(path)
	s.mu.Unlock()
	if err != nil || !ok {
		return zero, Meta{}, false, err
	}
	return envelope.Snapshot, cloneMeta(envelope.Meta), true, nil
}

func (s *FileStore[T]) read(path string) (fileEnvelope[T], bool, error) {
	var envelope fileEnvelope[T]
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return envelope, false, nil
	}
	if err != nil {
		return envelope, false, fmt.Errorf("state: read %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return envelope, false, fmt.Errorf("state: decode %s: %w", path, err)
	}
	return envelope, true, nil
}

func (s *FileStore[T]) Save(ctx context.Context, ref Ref, snapshot T, meta Meta) (Meta, error) {
	path, err := s.path(ref)
	if err != nil {
		return Meta{}, err
	}
	if err := ctx.Err(); err != nil {
		return Meta{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var current Meta
	// An unreadable document is overwritten rather than blocking every save.
	if existing, ok, readErr := s.read(path); readErr == nil && ok {
		current = existing.Meta
	}
	if err := checkETag(meta.ETag, current.ETag); err != nil {
		return Meta{}, err
	}
	saved := mergeMeta(current, meta)
	saved.ETag = nextETag(current.ETag)

	raw, err := json.Marshal(fileEnvelope[T]{Meta: saved, Snapshot: snapshot})
	if err != nil {
		return Meta{}, fmt.Errorf("state: encode %s: %w", ref, err)
	}
	if s.MaxBytes > 0 && int64(len(raw)) > s.MaxBytes {
		return Meta{}, fmt.Errorf("%w: %s needs %d bytes, limit is %d", ErrQuotaExceeded, ref, len(raw), s.MaxBytes)
	}
	if err := writeAtomic(path, raw); err != nil {
		return Meta{}, err
	}
	return cloneMeta(saved), nil
}

func writeAtomic(path string, raw []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("state: create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return fmt.Errorf("state: temp file in %s: %w", dir, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("state: write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("state: sync %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("state: close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("state: rename into %s: %w", path, err)
	}
	return nil
}
