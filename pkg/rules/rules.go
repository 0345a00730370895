// Package rules evaluates the small boolean expressions that make completion
// schema entries conditional (a tab that only applies to income properties, a
// field that is required once another one is set).
//
// A Compiler turns expression text into a Condition using one Backend (expr,
// cel, or js when built with the js_eval tag). Conditions run against an Env:
// the top-level keys of the serialized wizard state are variables, alongside
// `now`, `section` and `tab`.
package rules

import (
	"fmt"
	"strings"
	"time"
)

// Backend names accepted by Lookup.
const (
	BackendExpr = "expr"
	BackendCEL  = "cel"
	BackendJS   = "js"
)

// Backend compiles expression text into a reusable Program.
type Backend interface {
	Name() string
	Compile(expr string, funcs Functions) (Program, error)
}

// Program is one compiled expression. Run must be safe for concurrent use.
type Program interface {
	Run(vars map[string]any) (any, error)
}

var backends = map[string]Backend{
	BackendExpr: exprBackend{},
	BackendCEL:  celBackend{},
}

// Lookup returns the backend registered under name. An empty name selects
// expr.
func Lookup(name string) (Backend, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = BackendExpr
	}
	if backend, ok := backends[name]; ok {
		return backend, nil
	}
	if name == BackendJS {
		return nil, ErrBackendUnavailable
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
}

// Env is what a condition sees when it runs.
type Env struct {
	// State is the serialized wizard state. Its top-level keys become
	// variables.
	State map[string]any
	// Now defaults to the wall clock when zero.
	Now     time.Time
	Section string
	Tab     string
}

// At names the schema entry being evaluated, "section/tab" or "section".
func (e Env) At() string {
	if e.Tab == "" {
		return e.Section
	}
	return e.Section + "/" + e.Tab
}

func reserved(name string) bool {
	return name == "now" || name == "section" || name == "tab"
}

// vars flattens the env. Reserved names shadow state keys.
func (e Env) vars() map[string]any {
	vars := make(map[string]any, len(e.State)+3)
	for key, value := range e.State {
		vars[key] = value
	}
	now := e.Now
	if now.IsZero() {
		now = time.Now()
	}
	vars["now"] = now
	vars["section"] = e.Section
	vars["tab"] = e.Tab
	return vars
}

// Truthy converts an evaluation result into a boolean. Non-boolean results
// follow the filled-value convention: nil and empty strings are false.
func Truthy(value any) bool {
	switch typed := value.(type) {
	case nil:
		return false
	case bool:
		return typed
	case string:
		return typed != ""
	default:
		return true
	}
}
