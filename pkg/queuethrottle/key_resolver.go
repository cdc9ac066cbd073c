package queuethrottle

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/yourusername/queuethrottle/core"
)

// ResolverKind tells which strategy a KeyResolver uses.
type ResolverKind int

const (
	// ResolverNone always resolves to the default scope.
	ResolverNone ResolverKind = iota
	// ResolverFunc calls an extractor with the job arguments.
	ResolverFunc
	// ResolverField reads a named field from the first job argument.
	ResolverField
	// ResolverLiteral uses a fixed string.
	ResolverLiteral
)

func (k ResolverKind) String() string {
	switch k {
	case ResolverFunc:
		return "func"
	case ResolverField:
		return "field"
	case ResolverLiteral:
		return "literal"
	default:
		return "none"
	}
}

// KeyFunc derives a throttle scope from job arguments.
type KeyFunc func(args []any) (string, error)

// FieldGetter lets argument types expose named fields without reflection.
type FieldGetter interface {
	Field(name string) (any, bool)
}

// KeyResolver derives the scope a throttle counter is partitioned by, such as
// a user ID or API key. The zero value resolves every job to the default scope.
type KeyResolver struct {
	kind    ResolverKind
	fn      KeyFunc
	field   string
	literal string
}

// KeyFromFunc returns a resolver that calls fn with the job arguments.
func KeyFromFunc(fn KeyFunc) KeyResolver {
	if fn == nil {
		return KeyResolver{}
	}
	return KeyResolver{kind: ResolverFunc, fn: fn}
}

// KeyFromArg returns a resolver that uses the i-th positional argument.
func KeyFromArg(i int) KeyResolver {
	return KeyFromFunc(func(args []any) (string, error) {
		if i < 0 || i >= len(args) {
			return "", fmt.Errorf("argument %d out of range (%d args)", i, len(args))
		}
		return stringify(args[i]), nil
	})
}

// KeyFromField returns a resolver that reads a named field from the first
// argument. The argument must be a map[string]any, a map[string]string or a
// FieldGetter.
func KeyFromField(name string) KeyResolver {
	if name == "" {
		return KeyResolver{}
	}
	return KeyResolver{kind: ResolverField, field: name}
}

// KeyLiteral returns a resolver that always yields s.
func KeyLiteral(s string) KeyResolver {
	if s == "" {
		return KeyResolver{}
	}
	return KeyResolver{kind: ResolverLiteral, literal: s}
}

// Kind reports the resolver strategy.
func (k KeyResolver) Kind() ResolverKind { return k.kind }

// IsZero reports whether the resolver has no strategy.
func (k KeyResolver) IsZero() bool { return k.kind == ResolverNone }

// Resolve computes the scope for args. It never fails: anything that cannot
// be resolved to a non-empty string yields the default scope.
func (k KeyResolver) Resolve(args []any) (scope string) {
	defer func() {
		if recover() != nil {
			scope = core.DefaultScope
		}
	}()

	switch k.kind {
	case ResolverFunc:
		s, err := k.fn(args)
		if err != nil {
			return core.DefaultScope
		}
		scope = s
	case ResolverField:
		scope = resolveField(k.field, args)
	case ResolverLiteral:
		scope = k.literal
	}

	if scope == "" {
		return core.DefaultScope
	}
	return scope
}

func (k KeyResolver) String() string {
	switch k.kind {
	case ResolverField:
		return "field:" + k.field
	case ResolverLiteral:
		return "literal:" + k.literal
	default:
		return k.kind.String()
	}
}

func resolveField(name string, args []any) string {
	if len(args) == 0 {
		return ""
	}

	switch first := args[0].(type) {
	case map[string]any:
		if v, ok := first[name]; ok {
			return stringify(v)
		}
	case map[string]string:
		return first[name]
	case FieldGetter:
		if v, ok := first.Field(name); ok {
			return stringify(v)
		}
	}
	return ""
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// ParseKeyResolver creates a KeyResolver from a configuration string.
// Supported formats:
// - "" -> no resolver
// - "default" -> KeyLiteral("default"), every job shares one scope
// - "arg:0" -> KeyFromArg(0)
// - "field:user_id" -> KeyFromField("user_id")
// - "literal:global" or "static:global" -> KeyLiteral("global")
func ParseKeyResolver(config string) (KeyResolver, error) {
	switch config {
	case "":
		return KeyResolver{}, nil
	case core.DefaultScope:
		return KeyLiteral(core.DefaultScope), nil
	}

	kind, value, found := strings.Cut(config, ":")
	if !found || value == "" {
		return KeyResolver{}, fmt.Errorf("%w: key resolver %q requires format 'kind:value'", ErrInvalidConfig, config)
	}

	switch kind {
	case "arg":
		i, err := strconv.Atoi(value)
		if err != nil || i < 0 {
			return KeyResolver{}, fmt.Errorf("%w: arg resolver requires a non-negative index, got %q", ErrInvalidConfig, value)
		}
		return KeyFromArg(i), nil
	case "field":
		return KeyFromField(value), nil
	case "literal", "static":
		return KeyLiteral(value), nil
	default:
		return KeyResolver{}, fmt.Errorf("%w: unknown key resolver type: %s", ErrInvalidConfig, kind)
	}
}
