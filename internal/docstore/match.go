package docstore

import (
	"reflect"
	"sort"
	"strings"
	"time"
)

// Match reports whether doc satisfies every condition in filter.
// Filter values must already be JSON-normalized.
func Match(doc Document, filter Filter) bool {
	for path, want := range filter {
		if !matchPath(map[string]interface{}(doc), splitPath(path), want) {
			return false
		}
	}
	return true
}

func splitPath(path string) []string {
	return strings.Split(path, ".")
}

func matchPath(cur interface{}, path []string, want interface{}) bool {
	if len(path) == 0 {
		if arr, ok := cur.([]interface{}); ok {
			if _, wantArr := want.([]interface{}); !wantArr {
				for _, el := range arr {
					if valuesEqual(el, want) {
						return true
					}
				}
				return false
			}
		}
		return valuesEqual(cur, want)
	}

	switch v := cur.(type) {
	case map[string]interface{}:
		next, ok := v[path[0]]
		if !ok {
			return want == nil
		}
		return matchPath(next, path[1:], want)
	case Document:
		return matchPath(map[string]interface{}(v), path, want)
	case []interface{}:
		for _, el := range v {
			if matchPath(el, path, want) {
				return true
			}
		}
		return false
	default:
		return want == nil
	}
}

func valuesEqual(a, b interface{}) bool {
	return reflect.DeepEqual(a, b)
}

// lookup resolves a dotted path through nested objects only.
func lookup(doc map[string]interface{}, path string) (interface{}, bool) {
	var cur interface{} = doc
	for _, seg := range splitPath(path) {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// SortDocuments orders docs by keys, then by id ascending.
func SortDocuments(docs []Document, keys []SortKey) {
	sort.SliceStable(docs, func(i, j int) bool {
		for _, k := range keys {
			a, _ := lookup(docs[i], k.Field)
			b, _ := lookup(docs[j], k.Field)
			c := compareValues(a, b)
			if c == 0 {
				continue
			}
			if k.Desc {
				return c > 0
			}
			return c < 0
		}
		return docs[i].ID() < docs[j].ID()
	})
}

// compareValues orders nil < bool < number < string. Strings that both parse as
// RFC 3339 timestamps compare chronologically.
func compareValues(a, b interface{}) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		return ra - rb
	}

	switch x := a.(type) {
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		default:
			return 1
		}
	case float64:
		y := b.(float64)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		default:
			return 0
		}
	case string:
		y := b.(string)
		if ta, err := time.Parse(time.RFC3339Nano, x); err == nil {
			if tb, err := time.Parse(time.RFC3339Nano, y); err == nil {
				return ta.Compare(tb)
			}
		}
		return strings.Compare(x, y)
	}
	return 0
}

func typeRank(v interface{}) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case float64:
		return 2
	case string:
		return 3
	default:
		return 4
	}
}
