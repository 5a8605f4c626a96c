// Package manifest flattens arbitrarily nested deployment documents into
// addressable scalar leaves.
package manifest

import (
	"fmt"
	"strings"
)

// Entry is one scalar leaf of a flattened document: the mapping keys leading
// to it, and the value itself. Path is never empty and Value is never a
// mapping or sequence.
type Entry struct {
	Path  []string
	Value any
}

// Location renders the path in dotted form, the way alerts reference a
// certificate inside a manifest.
func (e Entry) Location() string {
	return strings.Join(e.Path, ".")
}

// Flatten walks a document depth-first and returns one Entry per scalar
// leaf. Mapping keys extend the path; sequence elements do not. List
// indices never appear in a location, so sibling elements sharing an
// inner key end up with the same location; downstream alert consumers
// rely on that shape. Empty mappings and sequences contribute nothing.
//
// Documents come from parsed YAML or JSON, so nodes are map[string]any,
// map[any]any, []any, or scalars.
func Flatten(doc any) []Entry {
	var entries []Entry
	walk(doc, nil, &entries)
	return entries
}

func walk(node any, prefix []string, out *[]Entry) {
	switch n := node.(type) {
	case map[string]any:
		for key, value := range n {
			walk(value, child(prefix, key), out)
		}
	case map[any]any:
		// yaml.v3 only falls back to this shape for non-string keys.
		for key, value := range n {
			walk(value, child(prefix, fmt.Sprint(key)), out)
		}
	case []any:
		for _, elem := range n {
			walk(elem, prefix, out)
		}
	default:
		path := prefix
		if len(path) == 0 {
			// A bare-scalar document still gets a non-empty path: one
			// placeholder segment, rendering as the empty location.
			path = []string{""}
		}
		*out = append(*out, Entry{Path: path, Value: n})
	}
}

// child returns a fresh path slice so sibling branches never share backing
// arrays.
func child(prefix []string, key string) []string {
	path := make([]string, len(prefix)+1)
	copy(path, prefix)
	path[len(prefix)] = key
	return path
}
