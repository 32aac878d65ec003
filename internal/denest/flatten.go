// Package denest flattens arbitrarily nested export records into flat,
// path-addressable maps and resolves partial field names against them.
//
// Platform exports nest the same logical field at wildly different depths
// from one record to the next. Flattening every record into delimiter-joined
// paths ("message-author-role") lets extractors look a field up by fragment
// instead of hard-coding one exact shape per export version.
package denest

import (
	"fmt"
	"sort"
	"strconv"
)

// Delimiter joins path segments in flattened keys.
const Delimiter = "-"

// FlatRecord is an ordered flat view of one nested record. Keys are the
// delimiter-joined ancestor paths of each leaf scalar, with the leading
// delimiter stripped. Iteration order is the traversal order of Flatten,
// which resolver tie-breaks depend on. A FlatRecord is never mutated after
// Flatten returns it.
type FlatRecord struct {
	keys       []string
	values     map[string]string
	collisions []string
}

// Len returns the number of flattened keys.
func (fr *FlatRecord) Len() int {
	if fr == nil {
		return 0
	}
	return len(fr.keys)
}

// Keys returns the flattened keys in traversal order.
func (fr *FlatRecord) Keys() []string {
	if fr == nil {
		return nil
	}
	return fr.keys
}

// Get returns the scalar stored under an exact path key.
func (fr *FlatRecord) Get(key string) (string, bool) {
	if fr == nil {
		return "", false
	}
	v, ok := fr.values[key]
	return v, ok
}

// Collisions returns the path keys that were written more than once during
// flattening. Later writes replace earlier ones; callers that care log the
// event rather than failing.
func (fr *FlatRecord) Collisions() []string {
	if fr == nil {
		return nil
	}
	return fr.collisions
}

func (fr *FlatRecord) set(key, value string) {
	if _, dup := fr.values[key]; dup {
		fr.collisions = append(fr.collisions, key)
		fr.values[key] = value
		return
	}
	fr.keys = append(fr.keys, key)
	fr.values[key] = value
}

// frame is one pending subtree in the flattening work list.
type frame struct {
	value any
	path  string
}

// Flatten converts a nested record (maps, slices, scalars, as produced by
// encoding/json) into a FlatRecord. Traversal is depth-first with an
// explicit work list, so adversarially deep input cannot overflow the goroutine
// stack. Map keys are visited in sorted order to keep traversal
// deterministic. A nil or scalar root is stored under the empty path. Empty
// maps and slices contribute nothing. Flatten never fails: unknown value
// kinds are coerced to their string form.
func Flatten(record any) *FlatRecord {
	fr := &FlatRecord{values: make(map[string]string)}

	stack := []frame{{value: record, path: ""}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch v := f.value.(type) {
		case map[string]any:
			// Reverse push keeps pop order equal to sorted key order.
			keys := make([]string, 0, len(v))
			for k := range v {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for i := len(keys) - 1; i >= 0; i-- {
				stack = append(stack, frame{value: v[keys[i]], path: f.path + Delimiter + keys[i]})
			}
		case []any:
			for i := len(v) - 1; i >= 0; i-- {
				stack = append(stack, frame{value: v[i], path: f.path + Delimiter + strconv.Itoa(i)})
			}
		default:
			key := f.path
			if len(key) > 0 && key[0] == Delimiter[0] {
				key = key[1:]
			}
			fr.set(key, CoerceScalar(f.value))
		}
	}

	return fr
}

// CoerceScalar renders a decoded JSON scalar as a string. Booleans render as
// "True"/"False" because extractors compare flag fields against those forms,
// matching the export tooling the archives come from. Null renders as the
// empty string. Integral floats drop their fractional part.
func CoerceScalar(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case bool:
		if s {
			return "True"
		}
		return "False"
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	default:
		return fmt.Sprintf("%v", v)
	}
}
