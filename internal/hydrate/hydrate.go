// Package hydrate restores typed session state from persisted documents.
// Named migrations rewrite the raw tree first, the tree is then decoded, and
// repairs fix up whatever a previous process left half done.
package hydrate

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/goliatone/go-wizard/layering"
)

// Stage names the step a restore failed in.
type Stage string

const (
	StageMigrate Stage = "migrate"
	StageDecode  Stage = "decode"
	StageRepair  Stage = "repair"
)

// Error reports which session and which step of its restore failed.
type Error struct {
	Session string
	Stage   Stage
	// Step is the migration name, empty for the other stages.
	Step string
	Err  error
}

func (e *Error) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("hydrate: %s %s (%s): %v", e.Session, e.Stage, e.Step, e.Err)
	}
	return fmt.Sprintf("hydrate: %s %s: %v", e.Session, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Migration rewrites a raw document in place and reports whether it changed
// anything.
type Migration struct {
	Name  string
	Apply func(doc map[string]any) (bool, error)
}

// Repair adjusts or rejects a decoded value.
type Repair[T any] func(*T) error

type Option[T any] func(*Decoder[T])

// Migrate appends migrations; they run in the order given.
func Migrate[T any](migrations ...Migration) Option[T] {
	return func(d *Decoder[T]) {
		d.migrations = append(d.migrations, migrations...)
	}
}

// Repairs appends repairs; they run in the order given.
func Repairs[T any](repairs ...Repair[T]) Option[T] {
	return func(d *Decoder[T]) {
		d.repairs = append(d.repairs, repairs...)
	}
}

// Strict rejects documents carrying keys T does not declare.
func Strict[T any]() Option[T] {
	return func(d *Decoder[T]) {
		d.strict = true
	}
}

// Decoder restores T from documents. It is safe for concurrent use once
// built.
type Decoder[T any] struct {
	migrations []Migration
	repairs    []Repair[T]
	strict     bool
}

func New[T any](opts ...Option[T]) *Decoder[T] {
	d := &Decoder[T]{}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Result is a restored value plus the names of the migrations that changed
// the document on the way.
type Result[T any] struct {
	Value    T
	Migrated []string
}

// Decode restores doc for session. doc is never modified.
func (d *Decoder[T]) Decode(session string, doc map[string]any) (Result[T], error) {
	var result Result[T]
	if doc == nil {
		return result, &Error{Session: session, Stage: StageDecode, Err: fmt.Errorf("document is nil")}
	}

	working := layering.Clone(doc)
	for _, m := range d.migrations {
		if m.Apply == nil {
			continue
		}
		changed, err := m.Apply(working)
		if err != nil {
			return Result[T]{}, &Error{Session: session, Stage: StageMigrate, Step: m.Name, Err: err}
		}
		if changed {
			result.Migrated = append(result.Migrated, m.Name)
		}
	}

	raw, err := json.Marshal(working)
	if err != nil {
		return Result[T]{}, &Error{Session: session, Stage: StageDecode, Err: err}
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	if d.strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(&result.Value); err != nil {
		return Result[T]{}, &Error{Session: session, Stage: StageDecode, Err: err}
	}

	for _, repair := range d.repairs {
		if repair == nil {
			continue
		}
		if err := repair(&result.Value); err != nil {
			return Result[T]{}, &Error{Session: session, Stage: StageRepair, Err: err}
		}
	}
	return result, nil
}

// RenameKey is a migration moving a top-level key. An existing value under
// to wins; from is dropped either way.
func RenameKey(from, to string) Migration {
	return Migration{
		Name: "rename " + from + " to " + to,
		Apply: func(doc map[string]any) (bool, error) {
			value, ok := doc[from]
			if !ok {
				return false, nil
			}
			if _, exists := doc[to]; !exists {
				doc[to] = value
			}
			delete(doc, from)
			return true, nil
		},
	}
}

// DropKey is a migration deleting a top-level key.
func DropKey(key string) Migration {
	return Migration{
		Name: "drop " + key,
		Apply: func(doc map[string]any) (bool, error) {
			if _, ok := doc[key]; !ok {
				return false, nil
			}
			delete(doc, key)
			return true, nil
		},
	}
}
