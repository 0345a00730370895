package rules

import (
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Option configures a Compiler.
type Option func(*Compiler)

// WithBackend selects the expression language. Defaults to expr.
func WithBackend(backend Backend) Option {
	return func(c *Compiler) {
		if backend != nil {
			c.backend = backend
		}
	}
}

// WithFunctions replaces the helper functions visible to expressions.
// Defaults to Builtins.
func WithFunctions(funcs Functions) Option {
	return func(c *Compiler) {
		c.funcs = funcs.clone()
	}
}

// Compiler builds Conditions for one backend and memoizes them by expression
// text. Schemas are static per deployment so the memo never evicts.
type Compiler struct {
	backend Backend
	funcs   Functions

	mu       sync.Mutex
	compiled map[string]*Condition
}

func NewCompiler(opts ...Option) *Compiler {
	c := &Compiler{
		backend:  exprBackend{},
		funcs:    Builtins(),
		compiled: map[string]*Condition{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Backend reports the backend name.
func (c *Compiler) Backend() string {
	return c.backend.Name()
}

// Compile parses expr. Blank expressions are rejected.
func (c *Compiler) Compile(expr string) (*Condition, error) {
	expr = strings.TrimSpace(expr)
	name := c.backend.Name()
	if expr == "" {
		return nil, &Error{Backend: name, Phase: PhaseCompile, Err: ErrEmptyExpression}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if cond, ok := c.compiled[expr]; ok {
		return cond, nil
	}
	program, err := c.backend.Compile(expr, c.funcs)
	if err != nil {
		return nil, fail(PhaseCompile, name, expr, "", err)
	}
	cond := &Condition{expr: expr, backend: name, program: program}
	c.compiled[expr] = cond
	return cond, nil
}

// Len reports how many distinct expressions have been compiled.
func (c *Compiler) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.compiled)
}

// Condition is a compiled expression.
type Condition struct {
	expr    string
	backend string
	program Program
}

func (c *Condition) String() string { return c.expr }

// Backend reports which backend compiled the condition.
func (c *Condition) Backend() string { return c.backend }

// Eval runs the condition and returns its raw result.
func (c *Condition) Eval(env Env) (any, error) {
	result, err := c.program.Run(env.vars())
	if err != nil {
		return nil, fail(PhaseEval, c.backend, c.expr, env.At(), err)
	}
	return result, nil
}

// Holds runs the condition and reports whether the result is truthy.
func (c *Condition) Holds(env Env) (bool, error) {
	result, err := c.Eval(env)
	if err != nil {
		return false, err
	}
	return Truthy(result), nil
}

// Trace describes one condition evaluation.
type Trace struct {
	Backend string
	Expr    string
	At      string
	Result  any
	Took    time.Duration
	Err     error
}

// Observer receives traces.
type Observer func(Trace)

// ZapObserver logs successful evaluations at debug and failures at warn.
func ZapObserver(logger *zap.Logger) Observer {
	if logger == nil {
		return func(Trace) {}
	}
	return func(trace Trace) {
		fields := []zap.Field{
			zap.String("backend", trace.Backend),
			zap.String("expr", trace.Expr),
			zap.String("at", trace.At),
			zap.Duration("took", trace.Took),
		}
		if trace.Err != nil {
			logger.Warn("condition failed", append(fields, zap.Error(trace.Err))...)
			return
		}
		logger.Debug("condition evaluated", append(fields, zap.Any("result", trace.Result))...)
	}
}
