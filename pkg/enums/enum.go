package enums

import (
	"fmt"
	"slices"
)

// member reports whether v is one of the declared values.
func member[T ~string](values []T, v T) bool {
	return slices.Contains(values, v)
}

// parse matches raw against values exactly; enum input is case sensitive.
func parse[T ~string](kind, raw string, values []T) (T, error) {
	if v := T(raw); member(values, v) {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, raw)
}
