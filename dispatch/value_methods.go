package dispatch

import (
	"fmt"
	"sort"
	"strings"
)

func (k ValueKind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindBool:
		return "boolean"
	case KindInt, KindFloat:
		return "number"
	case KindString:
		return "string"
	case KindArray, KindHash:
		return "table"
	case KindObject:
		return "userdata"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.data.(string)
	case KindNil:
		return "nil"
	case KindBool:
		if v.Bool() {
			return "true"
		}
		return "false"
	case KindInt:
		return fmt.Sprintf("%d", v.data.(int64))
	case KindFloat:
		return fmt.Sprintf("%g", v.data.(float64))
	case KindArray:
		elems := v.data.([]Value)
		parts := make([]string, len(elems))
		for i, e := range elems {
			parts[i] = e.String()
		}
		return fmt.Sprintf("[%s]", strings.Join(parts, ", "))
	case KindHash:
		entries := v.data.(map[string]Value)
		if len(entries) == 0 {
			return "{}"
		}
		keys := make([]string, 0, len(entries))
		for k := range entries {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(entries))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s: %s", k, entries[k].String()))
		}
		return fmt.Sprintf("{%s}", strings.Join(parts, ", "))
	case KindObject:
		return fmt.Sprintf("<%T>", v.data)
	default:
		return fmt.Sprintf("<%v>", v.kind)
	}
}

func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		if isNumber(v) && isNumber(other) {
			return v.Float() == other.Float()
		}
		return false
	}
	switch v.kind {
	case KindNil:
		return true
	case KindBool:
		return v.Bool() == other.Bool()
	case KindInt:
		return v.data.(int64) == other.data.(int64)
	case KindFloat:
		return v.data.(float64) == other.data.(float64)
	case KindString:
		return v.data.(string) == other.data.(string)
	case KindArray:
		a, b := v.Array(), other.Array()
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if !a[i].Equal(b[i]) {
				return false
			}
		}
		return true
	case KindHash:
		a, b := v.Hash(), other.Hash()
		if len(a) != len(b) {
			return false
		}
		for k, av := range a {
			bv, ok := b[k]
			if !ok || !av.Equal(bv) {
				return false
			}
		}
		return true
	default:
		return sameIdentity(v.data, other.data)
	}
}

func isNumber(v Value) bool {
	return v.kind == KindInt || v.kind == KindFloat
}

// ToValue converts host data returned by methods into boundary values.
// Unknown types are carried as opaque objects.
func ToValue(x any) Value {
	switch t := x.(type) {
	case nil:
		return NewNil()
	case Value:
		return t
	case bool:
		return NewBool(t)
	case int:
		return NewInt(int64(t))
	case int8:
		return NewInt(int64(t))
	case int16:
		return NewInt(int64(t))
	case int32:
		return NewInt(int64(t))
	case int64:
		return NewInt(t)
	case uint8:
		return NewInt(int64(t))
	case uint16:
		return NewInt(int64(t))
	case uint32:
		return NewInt(int64(t))
	case float32:
		return NewFloat(float64(t))
	case float64:
		return NewFloat(t)
	case string:
		return NewString(t)
	case []Value:
		return NewArray(t)
	case []any:
		out := make([]Value, len(t))
		for i, e := range t {
			out[i] = ToValue(e)
		}
		return NewArray(out)
	case []string:
		out := make([]Value, len(t))
		for i, e := range t {
			out[i] = NewString(e)
		}
		return NewArray(out)
	case map[string]Value:
		return NewHash(t)
	case map[string]any:
		out := make(map[string]Value, len(t))
		for k, e := range t {
			out[k] = ToValue(e)
		}
		return NewHash(out)
	default:
		return NewObject(t)
	}
}

// Interface converts a boundary value back into plain Go data: nil, bool,
// int64, float64, string, []any, map[string]any or the wrapped object.
func (v Value) Interface() any {
	switch v.kind {
	case KindNil:
		return nil
	case KindArray:
		elems := v.Array()
		out := make([]any, len(elems))
		for i, e := range elems {
			out[i] = e.Interface()
		}
		return out
	case KindHash:
		entries := v.Hash()
		out := make(map[string]any, len(entries))
		for k, e := range entries {
			out[k] = e.Interface()
		}
		return out
	default:
		return v.data
	}
}
