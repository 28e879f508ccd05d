package usecase

import (
	"testing"

	"ragcore/internal/domain"
)

func TestMatchesFilters_ScalarEquality(t *testing.T) {
	meta := domain.Metadata{"source": "doc.md", "chunk_id": 5}

	if !matchesFilters(meta, map[string]any{"source": "doc.md"}) {
		t.Error("expected scalar match")
	}
	if matchesFilters(meta, map[string]any{"source": "other.md"}) {
		t.Error("expected scalar mismatch")
	}
}

func TestMatchesFilters_MissingKeyFailsClosed(t *testing.T) {
	meta := domain.Metadata{"source": "doc.md"}

	if matchesFilters(meta, map[string]any{"author": "anyone"}) {
		t.Error("expected missing key to fail the filter")
	}
}

func TestMatchesFilters_NumericCoercion(t *testing.T) {
	// Metadata holds int, JSON-decoded filters hold float64.
	meta := domain.Metadata{"chunk_id": 5}

	if !matchesFilters(meta, map[string]any{"chunk_id": float64(5)}) {
		t.Error("expected int metadata to match float64 filter")
	}
}

func TestMatchesFilters_ComparisonOperators(t *testing.T) {
	meta := domain.Metadata{"chunk_id": 10}

	cases := []struct {
		name string
		ops  map[string]any
		want bool
	}{
		{"$gte equal", map[string]any{"$gte": 10}, true},
		{"$gte below", map[string]any{"$gte": 11}, false},
		{"$lte equal", map[string]any{"$lte": 10}, true},
		{"$lte above", map[string]any{"$lte": 9}, false},
		{"$gt strict", map[string]any{"$gt": 9}, true},
		{"$gt equal", map[string]any{"$gt": 10}, false},
		{"$lt strict", map[string]any{"$lt": 11}, true},
		{"$lt equal", map[string]any{"$lt": 10}, false},
		{"$eq", map[string]any{"$eq": 10}, true},
		{"$ne", map[string]any{"$ne": 10}, false},
		{"range hit", map[string]any{"$gte": 5, "$lt": 20}, true},
		{"range miss", map[string]any{"$gte": 5, "$lt": 10}, false},
	}

	for _, tc := range cases {
		got := matchesFilters(meta, map[string]any{"chunk_id": tc.ops})
		if got != tc.want {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestMatchesFilters_StringOrdering(t *testing.T) {
	meta := domain.Metadata{"source": "docs/b.md"}

	if !matchesFilters(meta, map[string]any{"source": map[string]any{"$gt": "docs/a.md"}}) {
		t.Error("expected lexicographic $gt to match")
	}
	if matchesFilters(meta, map[string]any{"source": map[string]any{"$lt": "docs/a.md"}}) {
		t.Error("expected lexicographic $lt to fail")
	}
}

func TestMatchesFilters_In(t *testing.T) {
	meta := domain.Metadata{"source": "b.md", "chunk_id": 2}

	if !matchesFilters(meta, map[string]any{"source": map[string]any{"$in": []any{"a.md", "b.md"}}}) {
		t.Error("expected $in membership to match")
	}
	if matchesFilters(meta, map[string]any{"source": map[string]any{"$in": []any{"c.md"}}}) {
		t.Error("expected $in non-membership to fail")
	}
	// Typed slices work too.
	if !matchesFilters(meta, map[string]any{"chunk_id": map[string]any{"$in": []int{1, 2, 3}}}) {
		t.Error("expected $in over []int to match")
	}
	// Non-list argument fails closed.
	if matchesFilters(meta, map[string]any{"source": map[string]any{"$in": "b.md"}}) {
		t.Error("expected non-list $in argument to fail")
	}
}

func TestMatchesFilters_UnknownOperatorFailsClosed(t *testing.T) {
	meta := domain.Metadata{"chunk_id": 5}

	if matchesFilters(meta, map[string]any{"chunk_id": map[string]any{"$regex": ".*"}}) {
		t.Error("expected unknown operator to fail closed")
	}
}

func TestMatchesFilters_IncomparableTypesFailClosed(t *testing.T) {
	meta := domain.Metadata{"source": "doc.md"}

	if matchesFilters(meta, map[string]any{"source": map[string]any{"$gt": 5}}) {
		t.Error("expected string-vs-number comparison to fail closed")
	}
}

func TestMatchesFilters_MultipleKeysAreANDed(t *testing.T) {
	meta := domain.Metadata{"source": "doc.md", "chunk_id": 3}

	if !matchesFilters(meta, map[string]any{"source": "doc.md", "chunk_id": 3}) {
		t.Error("expected both keys to match")
	}
	if matchesFilters(meta, map[string]any{"source": "doc.md", "chunk_id": 4}) {
		t.Error("expected one failing key to fail the whole filter")
	}
}

func TestMatchesFilters_EmptyFilters(t *testing.T) {
	if !matchesFilters(domain.Metadata{}, nil) {
		t.Error("expected nil filters to match everything")
	}
	if !matchesFilters(domain.Metadata{"a": 1}, map[string]any{}) {
		t.Error("expected empty filters to match everything")
	}
}
