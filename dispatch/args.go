package dispatch

import (
	"fmt"
	"math"
)

// Argument helpers read script arguments by zero-based position. Errors
// report the one-based position scripts use.

func badArgument(index int, expected string, args []Value) error {
	got := "no value"
	if index < len(args) {
		got = args[index].Kind().String()
	}
	return &ArgumentError{Index: index + 1, Message: fmt.Sprintf("expected %s, got %s", expected, got)}
}

func argAt(args []Value, index int) (Value, bool) {
	if index < 0 || index >= len(args) {
		return NewNil(), false
	}
	return args[index], true
}

// IntArg reads an integer. Floats are accepted when they hold a whole
// number.
func IntArg(args []Value, index int) (int64, error) {
	v, _ := argAt(args, index)
	switch v.Kind() {
	case KindInt:
		return v.Int(), nil
	case KindFloat:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, &ArgumentError{Index: index + 1, Message: "number is not finite"}
		}
		if f != math.Trunc(f) || f < -(1<<63) || f >= 1<<63 {
			return 0, &ArgumentError{Index: index + 1, Message: "number has no integer representation"}
		}
		return int64(f), nil
	default:
		return 0, badArgument(index, "number", args)
	}
}

// OptIntArg reads an integer, returning def when the argument is missing
// or nil.
func OptIntArg(args []Value, index int, def int64) (int64, error) {
	if v, ok := argAt(args, index); !ok || v.IsNil() {
		return def, nil
	}
	return IntArg(args, index)
}

func FloatArg(args []Value, index int) (float64, error) {
	v, _ := argAt(args, index)
	switch v.Kind() {
	case KindInt:
		return float64(v.Int()), nil
	case KindFloat:
		return v.Float(), nil
	default:
		return 0, badArgument(index, "number", args)
	}
}

func StringArg(args []Value, index int) (string, error) {
	v, _ := argAt(args, index)
	if v.Kind() != KindString {
		return "", badArgument(index, "string", args)
	}
	return v.String(), nil
}

func OptStringArg(args []Value, index int, def string) (string, error) {
	if v, ok := argAt(args, index); !ok || v.IsNil() {
		return def, nil
	}
	return StringArg(args, index)
}

func BoolArg(args []Value, index int) (bool, error) {
	v, _ := argAt(args, index)
	if v.Kind() != KindBool {
		return false, badArgument(index, "boolean", args)
	}
	return v.Bool(), nil
}

// HashArg reads a table argument.
func HashArg(args []Value, index int) (map[string]Value, error) {
	v, _ := argAt(args, index)
	if v.Kind() != KindHash {
		return nil, badArgument(index, "table", args)
	}
	return v.Hash(), nil
}

// AssertBetween fails when value lies outside [min, max]. message is a
// format string receiving the allowed range, for example
// "X coordinate out of bounds (%s)".
func AssertBetween(value, min, max int64, message string) error {
	if value < min || value > max {
		return NewArgumentError(message, fmt.Sprintf("between %d and %d", min, max))
	}
	return nil
}
