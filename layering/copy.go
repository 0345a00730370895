// Package layering deep-copies wizard state and backfills restored sessions
// from defaults. Results never share maps, slices or pointers with their
// inputs, so a reducer can hand out a copy and keep mutating its own.
package layering

import "reflect"

// Clone returns a deep copy of value. Nil collections stay nil.
func Clone[T any](value T) T {
	return as[T](fill(reflect.ValueOf(value), reflect.Value{}))
}

// Backfill returns a deep copy of value in which nil maps, slices, pointers
// and interfaces are taken from defaults. Maps present in both gain the keys
// only defaults has. Scalars always come from value, zero or not, so a
// persisted false or 0 is never overwritten.
func Backfill[T any](value, defaults T) T {
	return as[T](fill(reflect.ValueOf(value), reflect.ValueOf(defaults)))
}

func as[T any](v reflect.Value) T {
	var zero T
	if !v.IsValid() {
		return zero
	}
	out, _ := v.Interface().(T)
	return out
}

// fill copies v, consulting def (same type, possibly invalid) wherever v is
// nil.
func fill(v, def reflect.Value) reflect.Value {
	if !v.IsValid() {
		if def.IsValid() {
			return fill(def, reflect.Value{})
		}
		return v
	}
	if def.IsValid() && def.Type() != v.Type() {
		def = reflect.Value{}
	}
	if isNil(v) {
		if def.IsValid() && !isNil(def) {
			return fill(def, reflect.Value{})
		}
		return reflect.Zero(v.Type())
	}

	switch v.Kind() {
	case reflect.Pointer:
		out := reflect.New(v.Type().Elem())
		out.Elem().Set(fill(v.Elem(), elem(def)))
		return out
	case reflect.Interface:
		out := reflect.New(v.Type()).Elem()
		out.Set(fill(v.Elem(), elem(def)))
		return out
	case reflect.Struct:
		out := reflect.New(v.Type()).Elem()
		// unexported fields (time.Time's wall clock) come across by value
		out.Set(v)
		for i := 0; i < v.NumField(); i++ {
			field := out.Field(i)
			if !field.CanSet() {
				continue
			}
			var defField reflect.Value
			if def.IsValid() {
				defField = def.Field(i)
			}
			field.Set(fill(v.Field(i), defField))
		}
		return out
	case reflect.Map:
		out := reflect.MakeMapWithSize(v.Type(), v.Len())
		if def.IsValid() {
			for iter := def.MapRange(); iter.Next(); {
				out.SetMapIndex(iter.Key(), fill(iter.Value(), reflect.Value{}))
			}
		}
		for iter := v.MapRange(); iter.Next(); {
			out.SetMapIndex(iter.Key(), fill(iter.Value(), out.MapIndex(iter.Key())))
		}
		return out
	case reflect.Slice:
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(fill(v.Index(i), reflect.Value{}))
		}
		return out
	case reflect.Array:
		out := reflect.New(v.Type()).Elem()
		for i := 0; i < v.Len(); i++ {
			var defElem reflect.Value
			if def.IsValid() {
				defElem = def.Index(i)
			}
			out.Index(i).Set(fill(v.Index(i), defElem))
		}
		return out
	}
	return v
}

func isNil(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return v.IsNil()
	}
	return false
}

func elem(v reflect.Value) reflect.Value {
	if !v.IsValid() || isNil(v) {
		return reflect.Value{}
	}
	return v.Elem()
}
