package docstore

import "time"

// cloneDocument performs a deep copy of doc so that callers can freely
// mutate what they're handed without affecting the index's canonical copy,
// and so the index's canonical copy is never aliased with whatever the
// caller passed into Insert/Update.
func cloneDocument(doc Document) Document {
	if doc == nil {
		return nil
	}

	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = cloneValue(v)
	}

	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case Document:
		return cloneDocument(val)
	case map[string]any:
		return cloneDocument(val)
	case []byte:
		out := make([]byte, len(val))
		copy(out, val)

		return out
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = cloneValue(e)
		}

		return out
	case time.Time:
		// time.Time is an immutable value type once copied; no deep copy needed.
		return val
	default:
		// strings, bools, numeric types are immutable value copies already.
		return val
	}
}
