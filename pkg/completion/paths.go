package completion

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
)

// segment is one step of a field path: a map key, or an index when index >= 0.
type segment struct {
	key   string
	index int
}

var pathCache sync.Map // path -> []segment

// parsePath splits "owners[0].name" or "owners.0.name" into segments.
func parsePath(path string) ([]segment, error) {
	if cached, ok := pathCache.Load(path); ok {
		return cached.([]segment), nil
	}
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("empty path")
	}

	var segments []segment
	for _, part := range strings.Split(path, ".") {
		if part == "" {
			return nil, fmt.Errorf("path %q has an empty segment", path)
		}
		key := part
		var indexes []int
		if open := strings.IndexByte(part, '['); open >= 0 {
			key = part[:open]
			rest := part[open:]
			for rest != "" {
				if rest[0] != '[' {
					return nil, fmt.Errorf("path %q: unexpected %q", path, rest)
				}
				end := strings.IndexByte(rest, ']')
				if end < 0 {
					return nil, fmt.Errorf("path %q: unclosed index", path)
				}
				n, err := strconv.Atoi(rest[1:end])
				if err != nil || n < 0 {
					return nil, fmt.Errorf("path %q: bad index %q", path, rest[1:end])
				}
				indexes = append(indexes, n)
				rest = rest[end+1:]
			}
		}
		if key != "" {
			index := -1
			if n, err := strconv.Atoi(key); err == nil && n >= 0 {
				index = n
			}
			segments = append(segments, segment{key: key, index: index})
		} else if len(segments) == 0 && len(indexes) > 0 {
			return nil, fmt.Errorf("path %q starts with an index", path)
		}
		for _, n := range indexes {
			segments = append(segments, segment{key: strconv.Itoa(n), index: n})
		}
	}
	pathCache.Store(path, segments)
	return segments, nil
}

// resolve walks segments through a JSON-shaped tree. Anything missing or of
// the wrong shape along the way resolves to (nil, false).
func resolve(root any, segments []segment) (any, bool) {
	current := root
	for _, seg := range segments {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[seg.key]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			if seg.index < 0 || seg.index >= len(node) {
				return nil, false
			}
			current = node[seg.index]
		case nil:
			return nil, false
		default:
			next, ok := resolveReflect(node, seg)
			if !ok {
				return nil, false
			}
			current = next
		}
	}
	return current, true
}

// resolveReflect covers typed maps and slices that did not come from JSON.
func resolveReflect(node any, seg segment) (any, bool) {
	rv := reflect.ValueOf(node)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		value := rv.MapIndex(reflect.ValueOf(seg.key).Convert(rv.Type().Key()))
		if !value.IsValid() {
			return nil, false
		}
		return value.Interface(), true
	case reflect.Slice, reflect.Array:
		if seg.index < 0 || seg.index >= rv.Len() {
			return nil, false
		}
		return rv.Index(seg.index).Interface(), true
	}
	return nil, false
}

// lookup resolves path against tree. Invalid paths resolve to (nil, false).
func lookup(tree map[string]any, path string) (any, bool) {
	segments, err := parsePath(path)
	if err != nil {
		return nil, false
	}
	return resolve(tree, segments)
}
