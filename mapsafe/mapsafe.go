package mapsafe

import "encoding/json"

// Get retrieves a typed value from a map[string]any.
// If the key is missing or the type cannot be converted, it returns the default value.
func Get[T any](m map[string]any, key string, defaultValue T) T {
	if v, ok := Lookup[T](m, key); ok {
		return v
	}
	return defaultValue
}

// Lookup is Get without a default. The boolean reports whether the key was
// present and convertible to T.
func Lookup[T any](m map[string]any, key string) (T, bool) {
	var zero T

	val, ok := m[key]
	if !ok || val == nil {
		return zero, false
	}

	switch any(zero).(type) {
	case int:
		switch x := val.(type) {
		case int:
			return any(x).(T), true
		case int64:
			return any(int(x)).(T), true
		case float64:
			return any(int(x)).(T), true
		case json.Number:
			if n, err := x.Int64(); err == nil {
				return any(int(n)).(T), true
			}
		}
	case float64:
		switch x := val.(type) {
		case float64:
			return any(x).(T), true
		case float32:
			return any(float64(x)).(T), true
		case int:
			return any(float64(x)).(T), true
		case int64:
			return any(float64(x)).(T), true
		case json.Number:
			if f, err := x.Float64(); err == nil {
				return any(f).(T), true
			}
		}
	case string:
		if s, ok := val.(string); ok {
			return any(s).(T), true
		}
	case bool:
		if b, ok := val.(bool); ok {
			return any(b).(T), true
		}
	default:
		// fallback: if type matches exactly
		if v2, ok := val.(T); ok {
			return v2, true
		}
	}

	return zero, false
}
