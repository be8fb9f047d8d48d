package serial

import (
	"strconv"
	"strings"
)

// Lookup resolves a JSON path against the document's field view.
// Supported syntax: $.a.b nesting, [N] element access, [*] wildcard.
// A wildcard fans out; Lookup then returns the matched values flattened.
func (d Document) Lookup(path string) []any {
	segs, ok := splitPath(path)
	if !ok {
		return nil
	}
	return walk(d.fields, segs)
}

// Strings resolves a path and keeps only the non-empty string matches.
// Reference-edge recomputation uses this: handle lists in the document are
// arrays of strings or objects with a string ref field.
func (d Document) Strings(path string) []string {
	var out []string
	for _, v := range d.Lookup(path) {
		if s, ok := v.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// pathSeg is one step: a key, an index, or a wildcard.
type pathSeg struct {
	key      string
	index    int
	wildcard bool
	isIndex  bool
}

// splitPath parses "$.a.b[0].c[*]" into segments.
func splitPath(path string) ([]pathSeg, bool) {
	if !strings.HasPrefix(path, "$.") && path != "$" {
		return nil, false
	}
	rest := strings.TrimPrefix(path, "$")

	var segs []pathSeg
	for len(rest) > 0 {
		switch rest[0] {
		case '.':
			rest = rest[1:]
			end := strings.IndexAny(rest, ".[")
			if end == -1 {
				end = len(rest)
			}
			if end == 0 {
				return nil, false
			}
			segs = append(segs, pathSeg{key: rest[:end]})
			rest = rest[end:]
		case '[':
			end := strings.IndexByte(rest, ']')
			if end == -1 {
				return nil, false
			}
			inner := rest[1:end]
			if inner == "*" {
				segs = append(segs, pathSeg{wildcard: true})
			} else {
				n, err := strconv.Atoi(inner)
				if err != nil {
					return nil, false
				}
				segs = append(segs, pathSeg{index: n, isIndex: true})
			}
			rest = rest[end+1:]
		default:
			return nil, false
		}
	}
	return segs, true
}

// walk applies the remaining segments to a value.
func walk(v any, segs []pathSeg) []any {
	if len(segs) == 0 {
		if v == nil {
			return nil
		}
		return []any{v}
	}

	seg := segs[0]
	switch {
	case seg.wildcard:
		arr, ok := v.([]any)
		if !ok {
			return nil
		}
		var out []any
		for _, elem := range arr {
			out = append(out, walk(elem, segs[1:])...)
		}
		return out
	case seg.isIndex:
		arr, ok := v.([]any)
		if !ok || seg.index < 0 || seg.index >= len(arr) {
			return nil
		}
		return walk(arr[seg.index], segs[1:])
	default:
		obj, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		child, ok := obj[seg.key]
		if !ok {
			return nil
		}
		return walk(child, segs[1:])
	}
}
