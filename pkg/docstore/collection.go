package docstore

import (
	"context"
)

// Collection is a handle for reading and mutating one registered entity
// set, obtained via [Provider.Collection]. All methods are safe for
// concurrent use; every mutation is serialized through the provider's write
// queue.
type Collection struct {
	provider *Provider
	set      string
}

// Insert adds doc to the collection. If the key field is absent, a random
// id is generated. Returns a clone of the stored document,
// including any generated key.
func (c *Collection) Insert(ctx context.Context, doc Document) (Document, error) {
	descriptor, ok := c.provider.schema.Set(c.set)
	if !ok {
		return nil, schemaUnknownErr(c.set)
	}

	result, err := c.provider.queue.submit(ctx, func(ctx context.Context) (any, error) {
		stored, err := c.provider.idx.insert(c.set, doc)
		if err != nil {
			return nil, err
		}

		if err := c.provider.persist(descriptor, stored, ""); err != nil {
			_, _ = c.provider.idx.remove(c.set, pkQuery(c.provider.schema, c.set, stored))
			return nil, err
		}

		return stored, nil
	})
	if err != nil {
		return nil, err
	}

	stored := result.(Document)

	_ = c.provider.sync.Publish(Envelope{Action: ActionInsert, EntitySet: c.set, Doc: stored})

	return stored, nil
}

// Update applies patch to every document matching query, via the
// provider's configured [Patcher]. When upsert is true and nothing matches,
// a new document derived from query and patch is inserted instead. Returns
// clones of every resulting document.
func (c *Collection) Update(ctx context.Context, query, patch Document, upsert bool) ([]Document, error) {
	descriptor, ok := c.provider.schema.Set(c.set)
	if !ok {
		return nil, schemaUnknownErr(c.set)
	}

	result, err := c.provider.queue.submit(ctx, func(ctx context.Context) (any, error) {
		results, err := c.provider.idx.update(c.set, query, patch, upsert)
		if err != nil {
			return nil, err
		}

		for _, r := range results {
			if err := c.provider.persist(descriptor, r.newDoc, r.oldPublicKey); err != nil {
				return nil, err
			}
		}

		return results, nil
	})
	if err != nil {
		return nil, err
	}

	results := result.([]updateResult)
	docs := make([]Document, 0, len(results))

	for _, r := range results {
		docs = append(docs, r.newDoc)
		_ = c.provider.sync.Publish(Envelope{Action: ActionUpdate, EntitySet: c.set, Doc: r.newDoc})
	}

	return docs, nil
}

// Remove deletes every document matching query. Returns clones of the
// removed documents.
func (c *Collection) Remove(ctx context.Context, query Document) ([]Document, error) {
	descriptor, ok := c.provider.schema.Set(c.set)
	if !ok {
		return nil, schemaUnknownErr(c.set)
	}

	result, err := c.provider.queue.submit(ctx, func(ctx context.Context) (any, error) {
		removed, err := c.provider.idx.remove(c.set, query)
		if err != nil {
			return nil, err
		}

		for _, doc := range removed {
			if err := c.provider.destroy(descriptor, doc); err != nil {
				return nil, err
			}
		}

		return removed, nil
	})
	if err != nil {
		return nil, err
	}

	removed := result.([]Document)

	for _, doc := range removed {
		_ = c.provider.sync.Publish(Envelope{Action: ActionRemove, EntitySet: c.set, Doc: doc})
	}

	return removed, nil
}

// Find returns clones of every document matching query.
func (c *Collection) Find(ctx context.Context, query Document) ([]Document, error) {
	result, err := c.provider.queue.submit(ctx, func(ctx context.Context) (any, error) {
		return c.provider.idx.find(c.set, query)
	})
	if err != nil {
		return nil, err
	}

	return result.([]Document), nil
}

// Count returns the number of documents matching query.
func (c *Collection) Count(ctx context.Context, query Document) (int, error) {
	docs, err := c.Find(ctx, query)
	if err != nil {
		return 0, err
	}

	return len(docs), nil
}

func pkQuery(schema *Schema, set string, doc Document) Document {
	pkField, _ := schema.PublicKeyField(set)
	return Document{pkField.Name: doc[pkField.Name]}
}
