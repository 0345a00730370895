package rules

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyExpression = errors.New("rules: expression must not be empty")
	ErrUnknownBackend  = errors.New("rules: unknown backend")
	// ErrBackendUnavailable is returned for js when built without the
	// js_eval tag.
	ErrBackendUnavailable = errors.New("rules: backend not available in this build")
)

// Phase tells whether an Error came from compiling or running.
type Phase string

const (
	PhaseCompile Phase = "compile"
	PhaseEval    Phase = "eval"
)

// Error wraps a backend failure with the expression it belongs to.
type Error struct {
	Backend string
	Phase   Phase
	Expr    string
	// At is the schema location, empty at compile time.
	At  string
	Err error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("rules: %s %s", e.Backend, e.Phase)
	if e.Expr != "" {
		msg += fmt.Sprintf(" %q", e.Expr)
	}
	if e.At != "" {
		msg += " at " + e.At
	}
	return msg + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// fail wraps err unless a backend already produced an *Error, in which case
// only its missing fields are filled.
func fail(phase Phase, backend, expr, at string, err error) error {
	var existing *Error
	if errors.As(err, &existing) {
		if existing.Backend == "" {
			existing.Backend = backend
		}
		if existing.Expr == "" {
			existing.Expr = expr
		}
		if existing.At == "" {
			existing.At = at
		}
		return existing
	}
	return &Error{Backend: backend, Phase: phase, Expr: expr, At: at, Err: err}
}
