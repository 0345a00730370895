package wizard

import (
	"sort"
	"strings"

	"github.com/goliatone/go-wizard/layering"
)

// mergeTree returns a copy of base with values applied. Keys are dotted paths;
// missing intermediate maps are created and a nil value deletes the leaf.
// A scalar sitting where an intermediate map is needed is replaced.
func mergeTree(act Action, base map[string]any, values map[string]any) (map[string]any, error) {
	out := layering.Clone(base)
	if out == nil {
		out = map[string]any{}
	}

	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		segments, ok := splitPath(key)
		if !ok {
			return nil, malformed(act, "invalid key %q", key)
		}
		value := values[key]
		if value == nil {
			deletePath(out, segments)
			continue
		}
		setPath(out, segments, layering.Clone(value))
	}
	return out, nil
}

func splitPath(key string) ([]string, bool) {
	segments := strings.Split(strings.TrimSpace(key), ".")
	for _, segment := range segments {
		if segment == "" {
			return nil, false
		}
	}
	return segments, true
}

func setPath(root map[string]any, segments []string, value any) {
	node := root
	for _, segment := range segments[:len(segments)-1] {
		child, ok := node[segment].(map[string]any)
		if !ok {
			child = map[string]any{}
			node[segment] = child
		}
		node = child
	}
	node[segments[len(segments)-1]] = value
}

func deletePath(root map[string]any, segments []string) {
	node := root
	for _, segment := range segments[:len(segments)-1] {
		child, ok := node[segment].(map[string]any)
		if !ok {
			return
		}
		node = child
	}
	delete(node, segments[len(segments)-1])
}
