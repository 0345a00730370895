package rules

import (
	exprlang "github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// exprBackend runs expr-lang expressions. Unknown variables evaluate to nil
// so conditions may reference state keys that are not set yet.
type exprBackend struct{}

func (exprBackend) Name() string { return BackendExpr }

func (exprBackend) Compile(expr string, funcs Functions) (Program, error) {
	options := []exprlang.Option{
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
	}
	for _, name := range funcs.names() {
		options = append(options, exprlang.Function(name, funcs[name]))
	}
	program, err := exprlang.Compile(expr, options...)
	if err != nil {
		return nil, err
	}
	return exprProgram{program}, nil
}

type exprProgram struct {
	program *vm.Program
}

func (p exprProgram) Run(vars map[string]any) (any, error) {
	return exprlang.Run(p.program, vars)
}
