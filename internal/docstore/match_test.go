package docstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustFilter(t *testing.T, f Filter) Filter {
	t.Helper()
	n, err := NormalizeFilter(f)
	require.NoError(t, err)
	return n
}

func TestMatch(t *testing.T) {
	doc := Document{
		"id":      "s1",
		"user_id": "u1",
		"count":   float64(3),
		"meta":    map[string]interface{}{"source": "web"},
		"tags":    []interface{}{"a", "b"},
		"tabs": []interface{}{
			map[string]interface{}{"id": "t1", "url": "https://a.test"},
			map[string]interface{}{"id": "t2", "url": "https://b.test"},
		},
	}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"empty filter", Filter{}, true},
		{"top level", Filter{"user_id": "u1"}, true},
		{"top level mismatch", Filter{"user_id": "u2"}, false},
		{"int normalizes to float", Filter{"count": 3}, true},
		{"nested object", Filter{"meta.source": "web"}, true},
		{"array element of objects", Filter{"tabs.id": "t2"}, true},
		{"array element missing", Filter{"tabs.id": "t3"}, false},
		{"scalar array contains", Filter{"tags": "b"}, true},
		{"whole array", Filter{"tags": []string{"a", "b"}}, true},
		{"missing matches nil", Filter{"deleted_at": nil}, true},
		{"present does not match nil", Filter{"user_id": nil}, false},
		{"all conditions", Filter{"user_id": "u1", "tabs.id": "t1", "meta.source": "web"}, true},
		{"one failing condition", Filter{"user_id": "u1", "tabs.id": "t9"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Match(doc, mustFilter(t, tt.filter)))
		})
	}
}

func TestSortDocuments(t *testing.T) {
	docs := []Document{
		{"id": "c", "at": "2025-01-01T00:00:05Z"},
		{"id": "a", "at": "2025-01-01T00:00:05Z"},
		{"id": "b", "at": "2025-01-01T00:00:09.5Z"},
		{"id": "d"},
	}

	SortDocuments(docs, []SortKey{Desc("at")})
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID()
	}
	assert.Equal(t, []string{"b", "a", "c", "d"}, ids)

	SortDocuments(docs, []SortKey{Asc("at")})
	for i, d := range docs {
		ids[i] = d.ID()
	}
	assert.Equal(t, []string{"d", "a", "c", "b"}, ids)
}

func TestCompareValuesTimestamps(t *testing.T) {
	// Fractional seconds sort before "Z" byte-wise
	assert.Equal(t, -1, compareValues("2025-01-01T00:00:09Z", "2025-01-01T00:00:09.5Z"))
	assert.Equal(t, 1, compareValues("b", "a"))
	assert.Less(t, compareValues(nil, false), 0)
	assert.Less(t, compareValues(true, float64(0)), 0)
	assert.Less(t, compareValues(float64(10), "a"), 0)
}
