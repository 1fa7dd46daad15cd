package dispatch

import "reflect"

// Class identifies the type of a context value. Classes are compared by
// type; matching a value is a type assertion, so an interface class matches
// every value implementing it.
type Class struct {
	typ reflect.Type
	is  func(any) bool
}

// ClassOf returns the class of T.
func ClassOf[T any]() Class {
	return Class{
		typ: reflect.TypeFor[T](),
		is: func(v any) bool {
			_, ok := v.(T)
			return ok
		},
	}
}

// Name is the Go type name of the class, or "" for the zero Class.
func (c Class) Name() string {
	if c.typ == nil {
		return ""
	}
	return c.typ.String()
}

// IsZero reports whether c was never assigned a type.
func (c Class) IsZero() bool { return c.typ == nil }

// Matches reports whether v is an instance of c.
func (c Class) Matches(v any) bool {
	return c.is != nil && c.is(v)
}

// Implements reports whether every instance of c is also an instance of
// other.
func (c Class) Implements(other Class) bool {
	if c.typ == nil || other.typ == nil {
		return false
	}
	if c.typ == other.typ {
		return true
	}
	return other.typ.Kind() == reflect.Interface && c.typ.Implements(other.typ)
}

// Equal reports whether both classes name the same type.
func (c Class) Equal(other Class) bool { return c.typ == other.typ }

// ContextInfo is one context requirement of a method: a class, optionally
// restricted to references stored under one of Keys.
type ContextInfo struct {
	Keys  []string
	Class Class
}

// Need builds a requirement for a T, either anywhere in the context or, when
// keys are given, under at least one of them.
func Need[T any](keys ...string) ContextInfo {
	return ContextInfo{Keys: keys, Class: ClassOf[T]()}
}
