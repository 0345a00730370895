package state

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrETagMismatch is returned by Save when meta.ETag names a revision other
	// than the one currently stored.
	ErrETagMismatch = errors.New("state: etag mismatch")
	// ErrQuotaExceeded is returned by Save when the encoded snapshot is larger
	// than the store allows.
	ErrQuotaExceeded = errors.New("state: quota exceeded")
	// ErrInvalidRef is returned for refs that cannot be turned into a key.
	ErrInvalidRef = errors.New("state: invalid ref")
)

// Ref identifies one persisted snapshot: one wizard session within a domain.
type Ref struct {
	Domain  string
	Session string
}

// Meta is storage-owned metadata used for trace/audit and concurrency control.
type Meta struct {
	SnapshotID string            `json:"snapshot_id,omitempty"`
	ETag       string            `json:"etag,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Store loads/saves one snapshot for a single session reference.
type Store[T any] interface {
	Load(ctx context.Context, ref Ref) (snapshot T, meta Meta, ok bool, err error)
	Save(ctx context.Context, ref Ref, snapshot T, meta Meta) (Meta, error)
}

func (r Ref) Identifier() (string, error) {
	if err := validPart("domain", r.Domain); err != nil {
		return "", err
	}
	if err := validPart("session", r.Session); err != nil {
		return "", err
	}
	return r.Domain + "/" + r.Session, nil
}

func (r Ref) String() string {
	return r.Domain + "/" + r.Session
}

func validPart(name, value string) error {
	if value == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidRef, name)
	}
	if value == "." || value == ".." {
		return fmt.Errorf("%w: %s %q is reserved", ErrInvalidRef, name, value)
	}
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.':
		default:
			return fmt.Errorf("%w: %s %q contains %q", ErrInvalidRef, name, value, r)
		}
	}
	return nil
}

// checkETag enforces optimistic concurrency: an empty expected tag always
// passes, otherwise it must match the stored one.
func checkETag(expected, current string) error {
	if expected == "" || current == "" || expected == current {
		return nil
	}
	return fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, expected, current)
}

// nextETag derives the revision tag written alongside a snapshot.
func nextETag(current string) string {
	n, err := strconv.ParseUint(strings.TrimPrefix(current, "r"), 10, 64)
	if err != nil {
		n = 0
	}
	return "r" + strconv.FormatUint(n+1, 10)
}

func mergeMeta(base, override Meta) Meta {
	out := base
	if override.SnapshotID != "" {
		out.SnapshotID = override.SnapshotID
	}
	if !override.UpdatedAt.IsZero() {
		out.UpdatedAt = override.UpdatedAt
	}
	if override.Extra != nil {
		out.Extra = override.Extra
	}
	return cloneMeta(out)
}

func cloneMeta(meta Meta) Meta {
	out := meta
	if meta.Extra == nil {
		return out
	}
	out.Extra = make(map[string]string, len(meta.Extra))
	for k, v := range meta.Extra {
		out.Extra[k] = v
	}
	return out
}
