package search

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

// metadataKeyPattern restricts filter keys to simple dotted paths
// ("schema.confidence"), the same key shape
// original_source/.../repository/metadata_filters.py validates before
// building a JSON path out of it.
var metadataKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+(\.[A-Za-z0-9_-]+)*$`)

// matchMetadataFilters evaluates spec.md §4.7's Mongo-style metadata filter
// operators ($in, $gt, $gte, $lt, $lte, $between), plain equality, and
// array-contains/contains-all shorthand against a row's decoded metadata,
// walking dotted paths ("author.name") one segment at a time. No library in
// the example pack implements this kind of ad-hoc predicate matcher, so it
// is plain Go over map[string]any — the filter shapes are small and fixed,
// and a dependency for evaluating six operators over JSON would be harder
// to audit than this function.
func matchMetadataFilters(metadata map[string]any, filters map[string]any) (bool, error) {
	for path, want := range filters {
		if !metadataKeyPattern.MatchString(path) {
			return false, fmt.Errorf("search: unsupported metadata filter key %q", path)
		}
		got, ok := lookupPath(metadata, path)
		if !ok {
			return false, nil
		}
		match, err := matchOne(got, want)
		if err != nil {
			return false, err
		}
		if !match {
			return false, nil
		}
	}
	return true, nil
}

func lookupPath(metadata map[string]any, path string) (any, bool) {
	segments := strings.Split(path, ".")
	var cur any = metadata
	for _, seg := range segments {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := m[seg]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

// matchOne dispatches on the shape of want: an operator map ({"$gt": ...}),
// a bare list (array-contains-all, spec.md §4.7's `{"tags": ["a", "b"]}`
// form), or a scalar (equality, which also matches when got is an array
// containing want — `{"tags": "a"}` against a stored ["a", "b"]).
func matchOne(got, want any) (bool, error) {
	if op, ok := want.(map[string]any); ok {
		return matchOperator(got, op)
	}
	if wantList, ok := asAnySlice(want); ok {
		return containsAll(got, wantList), nil
	}
	return containsEqual(got, want), nil
}

func matchOperator(got any, op map[string]any) (bool, error) {
	for k, v := range op {
		switch k {
		case "$in":
			list, ok := asAnySlice(v)
			if !ok {
				return false, fmt.Errorf("search: $in requires a list, got %T", v)
			}
			found := false
			for _, item := range list {
				if containsEqual(got, item) {
					found = true
					break
				}
			}
			if !found {
				return false, nil
			}
		case "$gt":
			if compareOrdered(got, v) <= 0 {
				return false, nil
			}
		case "$gte":
			if compareOrdered(got, v) < 0 {
				return false, nil
			}
		case "$lt":
			if compareOrdered(got, v) >= 0 {
				return false, nil
			}
		case "$lte":
			if compareOrdered(got, v) > 0 {
				return false, nil
			}
		case "$between":
			bounds, ok := asAnySlice(v)
			if !ok || len(bounds) != 2 {
				return false, fmt.Errorf("search: $between requires a [min, max] list")
			}
			if compareOrdered(got, bounds[0]) < 0 || compareOrdered(got, bounds[1]) > 0 {
				return false, nil
			}
		default:
			return false, fmt.Errorf("search: unsupported metadata filter operator %q", k)
		}
	}
	return true, nil
}

// containsEqual reports whether got equals want, or, when got is an array,
// whether any of its elements equals want (spec.md §4.7's single-value
// match against an array-valued metadata field, e.g. `{"tags": "security"}`
// against stored tags `["security", "oauth"]`).
func containsEqual(got, want any) bool {
	if list, ok := asAnySlice(got); ok {
		for _, item := range list {
			if compareEqual(item, want) {
				return true
			}
		}
		return false
	}
	return compareEqual(got, want)
}

// containsAll reports whether every item in want is present in got's array
// (spec.md §4.7's `{"tags": ["security", "oauth"]}` array-contains-all
// form). A scalar got can never satisfy a multi-value want.
func containsAll(got any, want []any) bool {
	list, ok := asAnySlice(got)
	if !ok {
		return false
	}
	for _, w := range want {
		found := false
		for _, item := range list {
			if compareEqual(item, w) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// asAnySlice normalizes any slice/array-kinded value (typically []any from
// decoded JSON, but also []string and friends from in-memory test fixtures)
// into []any for uniform comparison.
func asAnySlice(v any) ([]any, bool) {
	if v == nil {
		return nil, false
	}
	if list, ok := v.([]any); ok {
		return list, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func compareEqual(a, b any) bool {
	if af, aok := asFloatValue(a); aok {
		if bf, bok := asFloatValue(b); bok {
			return af == bf
		}
	}
	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			return as == bs
		}
	}
	if !isComparable(a) || !isComparable(b) {
		return reflect.DeepEqual(a, b)
	}
	return a == b
}

// isComparable guards compareEqual's `==` fallback: slice/map/func-kinded
// values (e.g. a nested JSON array or object stored as metadata) panic on
// `==`, so those fall back to reflect.DeepEqual instead.
func isComparable(v any) bool {
	if v == nil {
		return true
	}
	return reflect.TypeOf(v).Comparable()
}

// compareOrdered compares two values numerically when both parse as
// numbers, falling back to lexical string comparison (spec.md §4.7 allows
// ordered filters over both numeric and string metadata fields).
func compareOrdered(a, b any) int {
	af, aok := asFloatValue(a)
	bf, bok := asFloatValue(b)
	if s, ok := a.(string); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			af, aok = f, true
		}
	}
	if s, ok := b.(string); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			bf, bok = f, true
		}
	}
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	as, bs := toComparableString(a), toComparableString(b)
	return strings.Compare(as, bs)
}

func asFloatValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func toComparableString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
