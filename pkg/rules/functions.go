package rules

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Function is a helper callable from expressions.
type Function func(args ...any) (any, error)

// Functions maps helper names to implementations.
type Functions map[string]Function

// Builtins returns the helpers schema conditions use most:
//
//	filled(value)          value counts as a completed entry
//	includes(list, item)   list contains item
//	count(value)           length of a list, map or string; 0 for nil
//	lookup(value, "a.b.0") nested map/list value, nil when any step is missing
//
// They read the same in every backend, so schema conditions written with them
// stay portable.
func Builtins() Functions {
	return Functions{
		"lookup": func(args ...any) (any, error) {
			if err := arity("lookup", args, 2); err != nil {
				return nil, err
			}
			path, ok := args[1].(string)
			if !ok {
				return nil, fmt.Errorf("lookup expects a string path, got %T", args[1])
			}
			return lookup(args[0], path), nil
		},
		"filled": func(args ...any) (any, error) {
			if err := arity("filled", args, 1); err != nil {
				return nil, err
			}
			return Filled(args[0]), nil
		},
		"includes": func(args ...any) (any, error) {
			if err := arity("includes", args, 2); err != nil {
				return nil, err
			}
			return includes(args[0], args[1]), nil
		},
		"count": func(args ...any) (any, error) {
			if err := arity("count", args, 1); err != nil {
				return nil, err
			}
			return count(args[0]), nil
		},
	}
}

// With returns a copy of f with fn added under name.
func (f Functions) With(name string, fn Function) Functions {
	out := f.clone()
	if out == nil {
		out = Functions{}
	}
	out[name] = fn
	return out
}

func (f Functions) clone() Functions {
	if f == nil {
		return nil
	}
	out := make(Functions, len(f))
	for name, fn := range f {
		if name != "" && fn != nil {
			out[name] = fn
		}
	}
	return out
}

func (f Functions) names() []string {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func arity(name string, args []any, want int) error {
	if len(args) != want {
		return fmt.Errorf("%s expects %d argument(s), got %d", name, want, len(args))
	}
	return nil
}

// Filled reports whether value counts as a completed form entry: non-nil,
// not a blank string, and not an empty slice or map.
func Filled(value any) bool {
	switch typed := value.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(typed) != ""
	case []any:
		return len(typed) > 0
	case map[string]any:
		return len(typed) > 0
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil() && Filled(rv.Elem().Interface())
	}
	return true
}

func includes(list, item any) bool {
	rv := reflect.ValueOf(list)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return false
	}
	for i := 0; i < rv.Len(); i++ {
		if reflect.DeepEqual(rv.Index(i).Interface(), item) {
			return true
		}
	}
	return false
}

func lookup(value any, path string) any {
	if path == "" {
		return value
	}
	for _, key := range strings.Split(path, ".") {
		switch node := value.(type) {
		case map[string]any:
			value = node[key]
		case []any:
			i, err := strconv.Atoi(key)
			if err != nil || i < 0 || i >= len(node) {
				return nil
			}
			value = node[i]
		default:
			return nil
		}
	}
	return value
}

func count(value any) int {
	if value == nil {
		return 0
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array, reflect.String:
		return rv.Len()
	}
	return 0
}
