// Package keypathcodec extracts values from items at a declared key path and
// serializes them into a total-order-preserving string, so that
// lexicographic ordering of the encoded string matches the ordering of the
// original value (or, for compound keys, the component-wise ordering of the
// original tuple).
package keypathcodec

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"golang.org/x/exp/constraints"

	"github.com/nosqlprovider-go/cupboard/pkg/schema"
)

// Sep separates compound-key components. It sorts below the "D", "N", "S"
// component-type tags, so tuple ordering is preserved component-by-component.
const Sep = "\x1f"

// Extract walks item through each dotted segment of keyPath. A single-element
// keyPath returns the extracted value directly; a compound keyPath returns
// []any with one entry per component. Extract returns (nil, false) when any
// intermediate segment is missing.
func Extract(item any, keyPath schema.KeyPath) (any, bool) {
	if len(keyPath) == 0 {
		return nil, false
	}
	if len(keyPath) == 1 {
		return extractPath(item, keyPath[0])
	}
	vals := make([]any, len(keyPath))
	for i, p := range keyPath {
		v, ok := extractPath(item, p)
		if !ok {
			return nil, false
		}
		vals[i] = v
	}
	return vals, true
}

func extractPath(item any, dotted string) (any, bool) {
	cur := item
	for _, seg := range strings.Split(dotted, ".") {
		m, ok := toMap(cur)
		if !ok {
			return nil, false
		}
		v, ok := m[seg]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

// toMap adapts a map[string]any or an arbitrary struct (addressed by its
// exported fields, honoring a "json" tag name when present) to a
// map[string]any so Extract can walk either shape uniformly.
func toMap(v any) (map[string]any, bool) {
	if m, ok := v.(map[string]any); ok {
		return m, true
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, false
	}
	t := rv.Type()
	out := make(map[string]any, rv.NumField())
	for i := 0; i < rv.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" {
			continue // unexported
		}
		name := f.Name
		if tag, ok := f.Tag.Lookup("json"); ok {
			if parts := strings.Split(tag, ","); parts[0] != "" {
				name = parts[0]
			}
		}
		out[name] = rv.Field(i).Interface()
	}
	return out, true
}

// Serialize produces a total-order-preserving string from value. For a
// single-component keyPath, value is one of string, time.Time, or a numeric
// kind. For a compound keyPath, value must be []any with one entry per
// component, in component order.
func Serialize(value any, keyPath schema.KeyPath) (string, error) {
	if len(keyPath) <= 1 {
		return serializeComponent(value)
	}
	vals, ok := value.([]any)
	if !ok || len(vals) != len(keyPath) {
		return "", fmt.Errorf("%w: compound key requires %d components", schema.ErrInvalidKey, len(keyPath))
	}
	parts := make([]string, len(vals))
	for i, v := range vals {
		s, err := serializeComponent(v)
		if err != nil {
			return "", fmt.Errorf("component %d: %w", i, err)
		}
		parts[i] = s
	}
	return strings.Join(parts, Sep), nil
}

func serializeComponent(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", fmt.Errorf("%w: nil key component", schema.ErrInvalidKey)
	case string:
		if strings.Contains(t, Sep) {
			return "", fmt.Errorf("%w: string key component contains the reserved separator", schema.ErrInvalidKey)
		}
		return "S:" + t, nil
	case time.Time:
		return "D:" + sortableFloat(t.UnixMilli()), nil
	case int:
		return "N:" + sortableFloat(t), nil
	case int8:
		return "N:" + sortableFloat(t), nil
	case int16:
		return "N:" + sortableFloat(t), nil
	case int32:
		return "N:" + sortableFloat(t), nil
	case int64:
		return "N:" + sortableFloat(t), nil
	case uint:
		return "N:" + sortableFloat(t), nil
	case uint8:
		return "N:" + sortableFloat(t), nil
	case uint16:
		return "N:" + sortableFloat(t), nil
	case uint32:
		return "N:" + sortableFloat(t), nil
	case uint64:
		return "N:" + sortableFloat(t), nil
	case float32:
		return "N:" + sortableFloat(t), nil
	case float64:
		return "N:" + sortableFloat(t), nil
	default:
		return "", fmt.Errorf("%w: unsupported key component type %T", schema.ErrInvalidKey, v)
	}
}

// sortableFloat bit-flip encodes v as a fixed-width hex string such that
// lexicographic order of the string matches numeric order of v: positive
// values flip the sign bit, negative values invert every bit.
func sortableFloat[T constraints.Integer | constraints.Float](v T) string {
	f := float64(v)
	bits := math.Float64bits(f)
	if !math.Signbit(f) {
		bits ^= 0x8000000000000000
	} else {
		bits = ^bits
	}
	return fmt.Sprintf("%016x", bits)
}

// ListOfKeys normalizes a bare key or a slice of keys into a serialized
// string per key, per keyPath. For a compound keyPath, a single key is a
// []any of exactly len(keyPath) scalars; a list of keys is a []any whose
// elements are themselves such tuples.
func ListOfKeys(keys any, keyPath schema.KeyPath) ([]string, error) {
	arr, isSlice := keys.([]any)
	if !isSlice {
		s, err := Serialize(keys, keyPath)
		if err != nil {
			return nil, err
		}
		return []string{s}, nil
	}

	if keyPath.Compound() && looksLikeSingleCompoundKey(arr, keyPath) {
		s, err := Serialize(keys, keyPath)
		if err != nil {
			return nil, err
		}
		return []string{s}, nil
	}

	out := make([]string, len(arr))
	for i, k := range arr {
		s, err := Serialize(k, keyPath)
		if err != nil {
			return nil, fmt.Errorf("key %d: %w", i, err)
		}
		out[i] = s
	}
	return out, nil
}

func looksLikeSingleCompoundKey(arr []any, keyPath schema.KeyPath) bool {
	if len(arr) != len(keyPath) {
		return false
	}
	for _, el := range arr {
		if _, ok := el.([]any); ok {
			return false
		}
	}
	return true
}
