package docstore

// memoryIndex is the in-memory view of every entity set. Per entity set it
// holds a sequence of documents with the invariant that publicKey is unique
// within the set. It is mutated only by the write queue consumer (see
// queue.go); callers never touch it directly.
type memoryIndex struct {
	schema  *Schema
	matcher Matcher
	patcher Patcher
	sets    map[string][]Document
}

func newMemoryIndex(schema *Schema, matcher Matcher, patcher Patcher) *memoryIndex {
	return &memoryIndex{
		schema:  schema,
		matcher: matcher,
		patcher: patcher,
		sets:    make(map[string][]Document),
	}
}

// load replaces the contents of set with docs, asserting publicKey
// uniqueness. Used by the startup loader; docs are taken by reference
// (already owned, freshly decoded) rather than cloned.
func (idx *memoryIndex) load(set string, docs []Document) error {
	pkField, _ := idx.schema.PublicKeyField(set)

	seen := make(map[string]struct{}, len(docs))

	for _, doc := range docs {
		pk, _ := stringField(doc, pkField.Name)
		if _, dup := seen[pk]; dup {
			return duplicateKeyErr(set, pk)
		}

		seen[pk] = struct{}{}
	}

	idx.sets[set] = docs

	return nil
}

// find returns deep clones of every document in set matching query.
func (idx *memoryIndex) find(set string, query Document) ([]Document, error) {
	if _, ok := idx.schema.Set(set); !ok {
		return nil, schemaUnknownErr(set)
	}

	var out []Document

	for _, doc := range idx.sets[set] {
		if idx.matcher(query, doc) {
			out = append(out, cloneDocument(doc))
		}
	}

	return out, nil
}

// insert assigns a key if missing, fails DuplicateKey on publicKey
// collision, and stores a clone of doc. Returns a clone of the stored
// document (never the caller's object, never the index's own copy).
func (idx *memoryIndex) insert(set string, doc Document) (Document, error) {
	descriptor, ok := idx.schema.Set(set)
	if !ok {
		return nil, schemaUnknownErr(set)
	}

	keyField, hasKey := descriptor.keyField()
	pkField, _ := descriptor.publicKeyField()

	stored := cloneDocument(doc)
	if stored == nil {
		stored = Document{}
	}

	if hasKey {
		if _, present := stored[keyField.Name]; !present {
			stored[keyField.Name] = generateID()
		}
	}

	pk, _ := stringField(stored, pkField.Name)
	if !validPublicKey(pk) {
		return nil, invalidNameErr(set, pk)
	}

	for _, existing := range idx.sets[set] {
		existingPk, _ := stringField(existing, pkField.Name)
		if existingPk == pk {
			return nil, duplicateKeyErr(set, pk)
		}
	}

	idx.sets[set] = append(idx.sets[set], stored)

	return cloneDocument(stored), nil
}

// updateResult describes one document affected by update, for callers that
// need both the pre- and post-patch publicKey (to locate the on-disk
// representation) and the final document (to publish/encode).
type updateResult struct {
	oldPublicKey string
	newDoc       Document
}

// update applies patch to every document in set matching query.
//
// All matches are validated (post-patch publicKey is well-formed and does
// not collide with any other document in the set, including other matches
// of this same call) before any of them are mutated in the index, so a
// rejected update never leaves a partial application the caller cannot
// distinguish from a fully-applied one.
//
// When upsert is true and there are no matches, a document derived from
// query merged with patch is inserted instead.
func (idx *memoryIndex) update(set string, query, patch Document, upsert bool) ([]updateResult, error) {
	descriptor, ok := idx.schema.Set(set)
	if !ok {
		return nil, schemaUnknownErr(set)
	}

	pkField, _ := descriptor.publicKeyField()

	docs := idx.sets[set]

	var matchIdx []int

	for i, doc := range docs {
		if idx.matcher(query, doc) {
			matchIdx = append(matchIdx, i)
		}
	}

	if len(matchIdx) == 0 {
		if !upsert {
			return nil, nil
		}

		seed := idx.patcher(query, patch)

		inserted, err := idx.insert(set, seed)
		if err != nil {
			return nil, err
		}

		return []updateResult{{newDoc: inserted}}, nil
	}

	type planned struct {
		index        int
		oldPublicKey string
		newDoc       Document
	}

	plans := make([]planned, 0, len(matchIdx))
	newKeys := make(map[string]int, len(matchIdx))

	for _, i := range matchIdx {
		old := docs[i]
		oldPk, _ := stringField(old, pkField.Name)

		patched := idx.patcher(old, patch)

		newPk, _ := stringField(patched, pkField.Name)
		if !validPublicKey(newPk) {
			return nil, invalidNameErr(set, newPk)
		}

		if firstAt, dup := newKeys[newPk]; dup && firstAt != i {
			return nil, duplicateKeyErr(set, newPk)
		}

		newKeys[newPk] = i

		plans = append(plans, planned{index: i, oldPublicKey: oldPk, newDoc: patched})
	}

	changedKeys := make(map[string]bool, len(plans))
	for _, p := range plans {
		if newPk, _ := stringField(p.newDoc, pkField.Name); newPk != p.oldPublicKey {
			changedKeys[newPk] = true
		}
	}

	for pk := range changedKeys {
		for i, doc := range docs {
			if isMatchIndex(matchIdx, i) {
				continue
			}

			existingPk, _ := stringField(doc, pkField.Name)
			if existingPk == pk {
				return nil, duplicateKeyErr(set, pk)
			}
		}
	}

	results := make([]updateResult, 0, len(plans))

	for _, p := range plans {
		docs[p.index] = p.newDoc
		results = append(results, updateResult{oldPublicKey: p.oldPublicKey, newDoc: cloneDocument(p.newDoc)})
	}

	idx.sets[set] = docs

	return results, nil
}

func isMatchIndex(matchIdx []int, i int) bool {
	for _, m := range matchIdx {
		if m == i {
			return true
		}
	}

	return false
}

// remove deletes every document in set matching query and returns clones of
// the removed documents (for sync publish).
func (idx *memoryIndex) remove(set string, query Document) ([]Document, error) {
	if _, ok := idx.schema.Set(set); !ok {
		return nil, schemaUnknownErr(set)
	}

	docs := idx.sets[set]

	var (
		removed []Document
		kept    []Document
	)

	for _, doc := range docs {
		if idx.matcher(query, doc) {
			removed = append(removed, cloneDocument(doc))
		} else {
			kept = append(kept, doc)
		}
	}

	idx.sets[set] = kept

	return removed, nil
}
