package docstore

// Matcher reports whether doc satisfies query. The core delegates all query
// semantics to an injected Matcher (see [Config.Matcher]); it never
// interprets query operators itself.
type Matcher func(query, doc Document) bool

// DefaultMatcher is a minimal reference Matcher: every key in query must be
// present in doc with an equal value (exact top-level equality, conjunctive
// across keys - an implicit "$and"). An empty query matches everything.
//
// This is not a query engine. It exists so the package is usable and
// testable without a caller-supplied matcher; callers needing richer query
// semantics ($gt, nested paths, $or, projections, ...) supply their own
// [Matcher] via [Config.Matcher].
func DefaultMatcher(query, doc Document) bool {
	for k, want := range query {
		got, ok := doc[k]
		if !ok {
			return false
		}

		if !valuesEqual(got, want) {
			return false
		}
	}

	return true
}

func valuesEqual(a, b any) bool {
	ab, aok := a.([]byte)
	bb, bok := b.([]byte)

	if aok && bok {
		if len(ab) != len(bb) {
			return false
		}

		for i := range ab {
			if ab[i] != bb[i] {
				return false
			}
		}

		return true
	}

	return a == b
}
