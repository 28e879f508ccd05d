package usecase

import "ragcore/internal/domain"

// matchesFilters evaluates a metadata record against a filter map. Every
// filter key must exist in the record (missing key is a non-match, never an
// error). A scalar filter value requires equality; a map value holds
// operators ($gte, $lte, $gt, $lt, $eq, $ne, $in) combined with implicit
// AND, as is the AND across filter keys.
func matchesFilters(meta domain.Metadata, filters map[string]any) bool {
	for key, want := range filters {
		got, ok := meta[key]
		if !ok {
			return false
		}

		if ops, isOps := want.(map[string]any); isOps {
			if !matchesOperators(got, ops) {
				return false
			}
		} else if !equalValues(got, want) {
			return false
		}
	}
	return true
}

func matchesOperators(got any, ops map[string]any) bool {
	for op, arg := range ops {
		switch op {
		case "$eq":
			if !equalValues(got, arg) {
				return false
			}
		case "$ne":
			if equalValues(got, arg) {
				return false
			}
		case "$gte":
			if c, ok := compareValues(got, arg); !ok || c < 0 {
				return false
			}
		case "$lte":
			if c, ok := compareValues(got, arg); !ok || c > 0 {
				return false
			}
		case "$gt":
			if c, ok := compareValues(got, arg); !ok || c <= 0 {
				return false
			}
		case "$lt":
			if c, ok := compareValues(got, arg); !ok || c >= 0 {
				return false
			}
		case "$in":
			list, ok := toSlice(arg)
			if !ok {
				return false
			}
			found := false
			for _, item := range list {
				if equalValues(got, item) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			// Unknown operator: fail closed.
			return false
		}
	}
	return true
}

// equalValues compares scalars with numeric coercion, so an int in metadata
// matches a float64 decoded from JSON filters.
func equalValues(a, b any) bool {
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		return ok && af == bf
	}
	return a == b
}

// compareValues orders two scalars: numerics by value, strings
// lexicographically. Incomparable pairs report !ok and fail closed.
func compareValues(a, b any) (int, bool) {
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		}
		return 0, true
	}

	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		switch {
		case as < bs:
			return -1, true
		case as > bs:
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func toSlice(v any) ([]any, bool) {
	switch list := v.(type) {
	case []any:
		return list, true
	case []string:
		out := make([]any, len(list))
		for i, s := range list {
			out[i] = s
		}
		return out, true
	case []int:
		out := make([]any, len(list))
		for i, n := range list {
			out[i] = n
		}
		return out, true
	case []float64:
		out := make([]any, len(list))
		for i, n := range list {
			out[i] = n
		}
		return out, true
	}
	return nil, false
}
