package docstore

// Patcher applies patch to doc and returns the resulting document. The core
// never interprets patch operators itself; matching and patching semantics
// are both external collaborators (see [Config.Patcher], [Matcher]).
type Patcher func(doc, patch Document) Document

// DefaultPatcher is a minimal reference Patcher supporting a single
// operator, "$set": {"$set": {"field": value, ...}} shallow-merges the
// given fields into doc. A patch without a "$set" key is merged over a copy
// of doc the same way, so that fields not present in the patch survive -
// equivalent to "$set" of every key in patch.
//
// This is not a patch language. Callers needing nested paths, "$unset",
// array operators, etc. supply their own [Patcher] via [Config.Patcher].
func DefaultPatcher(doc, patch Document) Document {
	out := cloneDocument(doc)
	if out == nil {
		out = Document{}
	}

	set, ok := patch["$set"].(Document)
	if !ok {
		if m, isMap := patch["$set"].(map[string]any); isMap {
			set = Document(m)
			ok = true
		}
	}

	if !ok {
		set = patch
	}

	for k, v := range set {
		out[k] = cloneValue(v)
	}

	return out
}
