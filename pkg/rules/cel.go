package rules

import (
	"reflect"
	"sort"
	"strings"
	"sync"

	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
)

// celBackend runs CEL expressions. Helpers are declared as ordinary CEL
// functions with one and two argument overloads.
//
// CEL wants every variable declared before checking, and the variables are
// the state's top-level keys, so a program is checked once per distinct key
// set. Syntax errors still surface at compile time.
type celBackend struct{}

func (celBackend) Name() string { return BackendCEL }

func (celBackend) Compile(expr string, funcs Functions) (Program, error) {
	base, err := celgo.NewEnv(celDeclarations(funcs)...)
	if err != nil {
		return nil, err
	}
	if _, issues := base.Parse(expr); issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	return &celProgram{
		expr:     expr,
		base:     base,
		programs: map[string]celgo.Program{},
	}, nil
}

func celDeclarations(funcs Functions) []celgo.EnvOption {
	opts := []celgo.EnvOption{
		celgo.Variable("now", celgo.TimestampType),
		celgo.Variable("section", celgo.StringType),
		celgo.Variable("tab", celgo.StringType),
	}
	for _, name := range funcs.names() {
		fn := funcs[name]
		opts = append(opts, celgo.Function(name,
			celgo.Overload(name+"_dyn",
				[]*celgo.Type{celgo.DynType},
				celgo.DynType,
				celgo.UnaryBinding(func(arg ref.Val) ref.Val {
					return celCall(fn, arg)
				}),
			),
			celgo.Overload(name+"_dyn_dyn",
				[]*celgo.Type{celgo.DynType, celgo.DynType},
				celgo.DynType,
				celgo.BinaryBinding(func(lhs, rhs ref.Val) ref.Val {
					return celCall(fn, lhs, rhs)
				}),
			),
		))
	}
	return opts
}

type celProgram struct {
	expr string
	base *celgo.Env

	mu       sync.Mutex
	programs map[string]celgo.Program
}

func (p *celProgram) Run(vars map[string]any) (any, error) {
	program, err := p.forKeys(vars)
	if err != nil {
		return nil, err
	}
	out, _, err := program.Eval(vars)
	if err != nil {
		return nil, err
	}
	return out.Value(), nil
}

func (p *celProgram) forKeys(vars map[string]any) (celgo.Program, error) {
	keys := make([]string, 0, len(vars))
	for key := range vars {
		if !reserved(key) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	signature := strings.Join(keys, ",")

	p.mu.Lock()
	defer p.mu.Unlock()
	if program, ok := p.programs[signature]; ok {
		return program, nil
	}
	declared := make([]celgo.EnvOption, 0, len(keys))
	for _, key := range keys {
		declared = append(declared, celgo.Variable(key, celgo.DynType))
	}
	env, err := p.base.Extend(declared...)
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(p.expr)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, err
	}
	p.programs[signature] = program
	return program, nil
}

var (
	anySlice = reflect.TypeOf([]any{})
	anyMap   = reflect.TypeOf(map[string]any{})
)

func celCall(fn Function, args ...ref.Val) ref.Val {
	native := make([]any, len(args))
	for i, arg := range args {
		native[i] = celNative(arg)
	}
	result, err := fn(native...)
	if err != nil {
		return types.NewErr("%s", err.Error())
	}
	if result == nil {
		return types.NullValue
	}
	return types.DefaultTypeAdapter.NativeToValue(result)
}

func celNative(value ref.Val) any {
	switch value.(type) {
	case traits.Lister:
		if out, err := value.ConvertToNative(anySlice); err == nil {
			return out
		}
	case traits.Mapper:
		if out, err := value.ConvertToNative(anyMap); err == nil {
			return out
		}
	}
	if value == types.NullValue {
		return nil
	}
	return value.Value()
}
