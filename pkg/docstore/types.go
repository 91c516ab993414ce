package docstore

import "strings"

// Document is a mapping from field name to value. Values are one of:
// string, []byte, time.Time, bool, float64/int, Document (nested complex
// type), or a slice of any of those.
//
// The special key "$entitySet" is used only on the wire (see [Envelope]);
// it is never present in a Document returned through the collection API.
type Document map[string]any

const entitySetAttr = "$entitySet"

// validPublicKey reports whether name satisfies the filename-safe rule:
// non-empty, no path separators, no leading '~'.
func validPublicKey(name string) bool {
	if name == "" {
		return false
	}

	if strings.HasPrefix(name, "~") {
		return false
	}

	if strings.ContainsAny(name, "/\\") {
		return false
	}

	return true
}

func stringField(doc Document, field string) (string, bool) {
	v, ok := doc[field]
	if !ok {
		return "", false
	}

	s, ok := v.(string)

	return s, ok
}
