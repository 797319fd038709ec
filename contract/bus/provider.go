package bus

import "reflect"

// HandlerSuffix is appended to a request type name to derive its handler name.
const HandlerSuffix = "Handler"

// DependencyProvider resolves handler and subscriber instances for the mediator and
// the event emitter. It is the only seam to whatever object lifecycle the host uses;
// callers must not assume singleton or per-call semantics.
type DependencyProvider interface {
	// SingleInstanceOf returns exactly one instance registered under name.
	SingleInstanceOf(name string) (any, error)
	// SubTypesOf lists the registered concrete types assignable to base.
	SubTypesOf(base reflect.Type) []reflect.Type
}

// TypeName returns the name of t with pointers stripped. Unnamed types fall back to t.String().
func TypeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}

	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	name := t.Name()
	if name == "" { // unnamed (e.g., map/struct literal)
		name = t.String()
	}

	return name
}

// NameOf returns the type name of v's runtime type.
func NameOf(v any) string { return TypeName(reflect.TypeOf(v)) }

// HandlerName derives the conventional handler name for a request, e.g. "GetUserHandler".
func HandlerName(request any) string { return NameOf(request) + HandlerSuffix }

// HandlerNameFor is HandlerName for a static type parameter.
func HandlerNameFor[T any]() string {
	return TypeName(reflect.TypeOf((*T)(nil)).Elem()) + HandlerSuffix
}
