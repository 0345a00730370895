//go:build js_eval

package rules

import (
	"github.com/dop251/goja"
)

func init() {
	backends[BackendJS] = jsBackend{}
}

// jsBackend runs JavaScript expressions in goja. Each run gets a fresh
// runtime since goja runtimes are not safe for concurrent use.
type jsBackend struct{}

func (jsBackend) Name() string { return BackendJS }

func (jsBackend) Compile(expr string, funcs Functions) (Program, error) {
	program, err := goja.Compile("condition", "(function(){ return ("+expr+"); })()", false)
	if err != nil {
		return nil, err
	}
	return jsProgram{program: program, funcs: funcs}, nil
}

type jsProgram struct {
	program *goja.Program
	funcs   Functions
}

func (p jsProgram) Run(vars map[string]any) (any, error) {
	vm := goja.New()
	for key, value := range vars {
		if err := vm.Set(key, value); err != nil {
			return nil, err
		}
	}
	for name, fn := range p.funcs {
		if err := vm.Set(name, func(args ...any) (any, error) { return fn(args...) }); err != nil {
			return nil, err
		}
	}
	value, err := vm.RunProgram(p.program)
	if err != nil {
		return nil, err
	}
	return value.Export(), nil
}
