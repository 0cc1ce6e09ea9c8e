package record

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Field is one key/value pair of a decoded object.
type Field struct {
	Key   string
	Value any
}

// Fields returns the pairs of an object value: *Object keeps its decoded
// order, plain maps are returned sorted by key. It reports false for
// anything that is not an object.
func Fields(v any) ([]Field, bool) {
	switch o := v.(type) {
	case *Object:
		if o == nil {
			return nil, false
		}
		out := make([]Field, 0, o.Len())
		for p := o.Oldest(); p != nil; p = p.Next() {
			out = append(out, Field{Key: p.Key, Value: p.Value})
		}
		return out, true
	case map[string]any:
		out := make([]Field, 0, len(o))
		for k, val := range o {
			out = append(out, Field{Key: k, Value: val})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
		return out, true
	case map[any]any:
		out := make([]Field, 0, len(o))
		for k, val := range o {
			out = append(out, Field{Key: fmt.Sprint(k), Value: val})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
		return out, true
	}
	return nil, false
}

// Lookup returns the value stored under key in an object value.
func Lookup(v any, key string) (any, bool) {
	switch o := v.(type) {
	case *Object:
		if o == nil {
			return nil, false
		}
		return o.Get(key)
	case map[string]any:
		val, ok := o[key]
		return val, ok
	case map[any]any:
		val, ok := o[key]
		return val, ok
	}
	return nil, false
}

// List returns v as a slice when it is a JSON array.
func List(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	}
	return nil, false
}

// Int converts a scalar to an int. Integral floats, json.Number and
// numeric strings are accepted.
func Int(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case int32:
		return int(n), true
	case uint64:
		if n > math.MaxInt32 {
			return 0, false
		}
		return int(n), true
	case float64:
		if n != math.Trunc(n) || math.Abs(n) > math.MaxInt32 {
			return 0, false
		}
		return int(n), true
	case json.Number:
		if i, err := n.Int64(); err == nil && i <= math.MaxInt32 && i >= math.MinInt32 {
			return int(i), true
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return Int(f)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, false
		}
		return i, true
	}
	return 0, false
}

// String converts a scalar to its text form. Objects, arrays and null
// report false.
func String(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case json.Number:
		return s.String(), true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case int:
		return strconv.Itoa(s), true
	case int64:
		return strconv.FormatInt(s, 10), true
	case bool:
		return strconv.FormatBool(s), true
	}
	return "", false
}

// Kind names the JSON kind of v for diagnostics.
func Kind(v any) string {
	if v == nil {
		return "null"
	}
	if _, ok := Fields(v); ok {
		return "object"
	}
	if _, ok := List(v); ok {
		return "array"
	}
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "bool"
	case json.Number, float64, int, int64, int32, uint64:
		return "number"
	}
	return fmt.Sprintf("%T", v)
}
