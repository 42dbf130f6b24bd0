// Package mutator implements the Content Mutator (spec §4.A): a pure
// function that applies a single Operation to a hierarchical JSON-shaped
// value at a dotted path. It never looks at a Document, a lock table, or a
// clock — callers (pkg/document) own all of that.
package mutator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kolabhq/tilepad/pkg/model"
)

// Apply resolves op.Path against content and returns the new content. content
// may be nil, in which case it is treated as an empty mapping. The only
// error Apply ever returns is model.ErrPath, wrapped with the offending
// segment, when an intermediate path segment is present but is a scalar
// that cannot be traversed.
func Apply(content any, op *model.Operation) (any, error) {
	segments := splitPath(op.Path)
	if len(segments) == 0 {
		return content, fmt.Errorf("%w: empty path", model.ErrPath)
	}
	if content == nil {
		content = map[string]any{}
	}
	return applyAt(content, segments, op)
}

func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// applyAt walks container following segments, creating empty mappings for
// missing intermediate keys, and mutates the final segment per op.Type.
func applyAt(container any, segments []string, op *model.Operation) (any, error) {
	key := segments[0]
	rest := segments[1:]

	if len(rest) == 0 {
		return mutateAt(container, key, op)
	}

	child, err := getChild(container, key)
	if err != nil {
		return container, err
	}
	switch child.(type) {
	case nil:
		child = map[string]any{}
	case map[string]any, []any:
	default:
		return container, fmt.Errorf("%w: cannot descend into scalar at %q", model.ErrPath, key)
	}
	newChild, err := applyAt(child, rest, op)
	if err != nil {
		return container, err
	}
	return setChild(container, key, newChild)
}

// getChild returns the value currently stored at key within container, or
// nil if absent. Returns model.ErrPath if container is a scalar (cannot be
// traversed through).
func getChild(container any, key string) (any, error) {
	switch c := container.(type) {
	case map[string]any:
		return c[key], nil
	case []any:
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 0 || idx >= len(c) {
			return nil, nil
		}
		return c[idx], nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: cannot descend into scalar at %q", model.ErrPath, key)
	}
}

// setChild writes newChild at key within container, growing sequences as
// needed, and returns the (possibly reallocated) container.
func setChild(container any, key string, newChild any) (any, error) {
	switch c := container.(type) {
	case map[string]any:
		c[key] = newChild
		return c, nil
	case []any:
		idx, err := strconv.Atoi(key)
		if err != nil {
			return container, fmt.Errorf("%w: non-numeric index %q into sequence", model.ErrPath, key)
		}
		if idx < 0 {
			idx = 0
		}
		for idx >= len(c) {
			c = append(c, nil)
		}
		c[idx] = newChild
		return c, nil
	default:
		return container, fmt.Errorf("%w: cannot descend into scalar at %q", model.ErrPath, key)
	}
}

// mutateAt applies op to container[key], the terminal segment, per §4.A.
func mutateAt(container any, key string, op *model.Operation) (any, error) {
	switch c := container.(type) {
	case map[string]any:
		current := c[key]
		switch op.Type {
		case model.OpUpdate:
			c[key] = op.Value
		case model.OpInsert:
			c[key] = insertInto(current, op)
		case model.OpDelete:
			if removed, ok := deleteFrom(current, op); ok {
				c[key] = removed
			} else {
				delete(c, key)
			}
		default:
			c[key] = op.Value
		}
		return c, nil

	case []any:
		idx, err := strconv.Atoi(key)
		if err != nil {
			return container, fmt.Errorf("%w: non-numeric index %q into sequence", model.ErrPath, key)
		}
		if idx < 0 {
			idx = 0
		}
		for idx >= len(c) {
			c = append(c, nil)
		}
		current := c[idx]
		switch op.Type {
		case model.OpUpdate:
			c[idx] = op.Value
		case model.OpInsert:
			c[idx] = insertInto(current, op)
		case model.OpDelete:
			if removed, ok := deleteFrom(current, op); ok {
				c[idx] = removed
			} else {
				c = append(c[:idx], c[idx+1:]...)
			}
		default:
			c[idx] = op.Value
		}
		return c, nil

	default:
		// container is nil or a scalar and key addresses directly into it;
		// this only happens at the document root with a one-segment path.
		m := map[string]any{}
		mutated, err := mutateAt(m, key, op)
		return mutated, err
	}
}

// insertInto implements the insert branch of §4.A against the *current*
// value stored at the target slot.
func insertInto(current any, op *model.Operation) any {
	switch v := current.(type) {
	case []any:
		pos := 0
		if op.Position != nil {
			pos = *op.Position
		}
		pos = clamp(pos, 0, len(v))
		out := make([]any, 0, len(v)+1)
		out = append(out, v[:pos]...)
		out = append(out, op.Value)
		out = append(out, v[pos:]...)
		return out
	case string:
		runes := []rune(v)
		pos := 0
		if op.Position != nil {
			pos = *op.Position
		}
		pos = clamp(pos, 0, len(runes))
		insertStr, _ := op.Value.(string)
		return string(runes[:pos]) + insertStr + string(runes[pos:])
	default:
		return op.Value
	}
}

// deleteFrom implements the delete branch of §4.A. ok=true means the slot
// keeps a (possibly modified) value; ok=false means the caller should
// remove the slot entirely (map key deletion or sequence splice).
func deleteFrom(current any, op *model.Operation) (value any, ok bool) {
	switch v := current.(type) {
	case []any:
		length := 1
		if op.Length != nil {
			length = *op.Length
		}
		pos := 0
		if op.Position != nil {
			pos = *op.Position
		}
		pos = clamp(pos, 0, max(0, len(v)-1))
		if len(v) == 0 {
			return v, true
		}
		end := clamp(pos+length, pos, len(v))
		out := make([]any, 0, len(v)-(end-pos))
		out = append(out, v[:pos]...)
		out = append(out, v[end:]...)
		return out, true
	case string:
		runes := []rune(v)
		length := 1
		if op.Length != nil {
			length = *op.Length
		}
		pos := 0
		if op.Position != nil {
			pos = *op.Position
		}
		pos = clamp(pos, 0, max(0, len(runes)-1))
		if len(runes) == 0 {
			return v, true
		}
		end := clamp(pos+length, pos, len(runes))
		return string(runes[:pos]) + string(runes[end:]), true
	default:
		return nil, false
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
