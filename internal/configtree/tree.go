// Package configtree holds the normalized in-memory representation of a
// tool config file and the pure structural diff over it. All three file
// formats (JSON, TOML, env) are normalized to the same shape before any
// comparison or merge: map[string]any, []any, string, float64, bool, nil.
package configtree

import (
	"fmt"
	"reflect"
	"time"
)

// Tree is a parsed config document.
type Tree = map[string]any

// Normalize converts a decoded value into canonical form. Numbers become
// float64, TOML datetimes become RFC 3339 strings, and nested containers
// are normalized recursively. Needed so that a freshly decoded TOML tree
// compares equal to the same tree after a JSON snapshot round-trip.
func Normalize(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case bool:
		return x
	case string:
		return x
	case float64:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case int8:
		return float64(x)
	case int16:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case uint:
		return float64(x)
	case uint8:
		return float64(x)
	case uint16:
		return float64(x)
	case uint32:
		return float64(x)
	case uint64:
		return float64(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	case map[string]any:
		out := make(Tree, len(x))
		for k, val := range x {
			out[k] = Normalize(val)
		}
		return out
	case map[string]string:
		out := make(Tree, len(x))
		for k, val := range x {
			out[k] = val
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = Normalize(val)
		}
		return out
	}

	// Decoders occasionally hand back typed slices ([]map[string]any from
	// TOML arrays of tables); flatten them through reflection.
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = Normalize(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		out := make(Tree, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[fmt.Sprint(iter.Key().Interface())] = Normalize(iter.Value().Interface())
		}
		return out
	}
	return fmt.Sprint(v)
}

// NormalizeTree normalizes a document root. A nil map stays usable as an
// empty tree.
func NormalizeTree(t map[string]any) Tree {
	if t == nil {
		return Tree{}
	}
	return Normalize(t).(Tree)
}

// Equal compares two normalized values.
func Equal(a, b any) bool {
	return reflect.DeepEqual(Normalize(a), Normalize(b))
}

// Clone deep-copies a normalized value.
func Clone(v any) any {
	switch x := v.(type) {
	case Tree:
		out := make(Tree, len(x))
		for k, val := range x {
			out[k] = Clone(val)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = Clone(val)
		}
		return out
	default:
		return Normalize(v)
	}
}

// CloneTree deep-copies a document root.
func CloneTree(t Tree) Tree {
	if t == nil {
		return Tree{}
	}
	return Clone(t).(Tree)
}
