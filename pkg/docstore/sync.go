package docstore

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
)

// Action identifies what a sync [Envelope] describes.
type Action string

const (
	// ActionInsert carries a newly inserted document.
	ActionInsert Action = "insert"

	// ActionUpdate carries a document's new state after an update.
	ActionUpdate Action = "update"

	// ActionRemove carries a removed document (Doc holds the full document
	// as it was before removal).
	ActionRemove Action = "remove"

	// ActionRefresh replaces a Doc that would otherwise exceed
	// [Config.MessageSizeLimit]; subscribers must re-read the document
	// themselves (via Find) rather than applying Doc directly.
	ActionRefresh Action = "refresh"

	// ActionReload is published when the watcher (or [Provider.Reload])
	// re-reads a change from disk and the in-memory index has been
	// reconciled with it. It goes through [syncController.Publish] like the
	// other actions, so the configured [Transport] carries it too; it is
	// the notification for "an external edit landed and the index now
	// reflects it", kept on the same Subscribe channel as the other actions
	// because callers generally want one place to observe "the set
	// changed", whatever the cause.
	ActionReload Action = "reload"
)

// Envelope is published to every subscriber on a mutation (or external
// reload). EntitySet plus the document's publicKey is enough to locate the
// affected document; Doc additionally carries its content unless the
// action is refresh. A reload of a flat-mode set re-reads the whole file
// and carries no Doc at all.
type Envelope struct {
	Action    Action
	EntitySet string
	Doc       Document
}

// Transport carries [Envelope] values between Provider instances. The
// default, [NewInProcessTransport], only reaches subscribers within the
// same process; a cross-process transport (e.g. backed by a message
// broker) can be substituted via [Config.Transport].
type Transport interface {
	Publish(env Envelope) error
	Subscribe(fn func(Envelope)) (unsubscribe func())
}

// inProcessTransport fans out published envelopes to every subscriber
// synchronously, in publish order, within the calling goroutine.
type inProcessTransport struct {
	mu          sync.Mutex
	subscribers map[int]func(Envelope)
	nextID      int
}

// NewInProcessTransport returns a [Transport] that only delivers within the
// current process. It is the default when [Config.Transport] is unset.
func NewInProcessTransport() Transport {
	return &inProcessTransport{subscribers: make(map[int]func(Envelope))}
}

func (t *inProcessTransport) Publish(env Envelope) error {
	t.mu.Lock()
	fns := make([]func(Envelope), 0, len(t.subscribers))
	for _, fn := range t.subscribers {
		fns = append(fns, fn)
	}
	t.mu.Unlock()

	for _, fn := range fns {
		fn(env)
	}

	return nil
}

func (t *inProcessTransport) Subscribe(fn func(Envelope)) func() {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.subscribers[id] = fn
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		delete(t.subscribers, id)
		t.mu.Unlock()
	}
}

// syncController wraps a [Transport] with a message size limit and
// loop-prevention: Publish downgrades oversized envelopes to refresh, and
// Subscription applies a received envelope to the local index through the
// write queue without re-publishing it.
type syncController struct {
	transport Transport
	sizeLimit int
	schema    *Schema
	queue     *writeQueue
	index     *memoryIndex
	stopped   atomic.Bool
}

func newSyncController(transport Transport, sizeLimit int, schema *Schema, queue *writeQueue, index *memoryIndex) *syncController {
	return &syncController{
		transport: transport,
		sizeLimit: sizeLimit,
		schema:    schema,
		queue:     queue,
		index:     index,
	}
}

// Subscribe registers fn to be called for every published envelope,
// including ones this controller itself publishes. Returns a function to
// unsubscribe.
func (s *syncController) Subscribe(fn func(Envelope)) func() {
	return s.transport.Subscribe(fn)
}

// Stop disables further publishing and subscription delivery. Stop is
// idempotent.
func (s *syncController) Stop() {
	s.stopped.Store(true)
}

// Publish sends env over the transport, downgrading it to a refresh
// envelope first if its serialized size would exceed the configured limit.
// Publish is a no-op after [syncController.Stop].
func (s *syncController) Publish(env Envelope) error {
	if s.stopped.Load() {
		return nil
	}

	if env.Doc != nil && s.sizeLimit > 0 {
		data, err := json.Marshal(env)
		if err == nil && len(data) > s.sizeLimit {
			env = s.refreshEnvelope(env)
		}
	}

	return s.transport.Publish(env)
}

// refreshEnvelope reduces env.Doc to just its key and publicKey fields, the
// minimum needed for a subscriber to locate and re-fetch the document.
func (s *syncController) refreshEnvelope(env Envelope) Envelope {
	slim := Document{}

	if keyField, ok := s.schema.KeyField(env.EntitySet); ok {
		if v, present := env.Doc[keyField.Name]; present {
			slim[keyField.Name] = v
		}
	}

	if pkField, ok := s.schema.PublicKeyField(env.EntitySet); ok {
		if v, present := env.Doc[pkField.Name]; present {
			slim[pkField.Name] = v
		}
	}

	return Envelope{Action: ActionRefresh, EntitySet: env.EntitySet, Doc: slim}
}

// Subscription applies a received envelope to the local in-memory index
// through the write queue, without publishing it again - the write
// queue consumer is the only writer of idx.sets, so this must go through
// the same door as API-initiated mutations even though nothing is written
// to disk here.
func (s *syncController) Subscription(ctx context.Context, env Envelope) error {
	if s.stopped.Load() {
		return nil
	}

	_, err := s.queue.submit(ctx, func(ctx context.Context) (any, error) {
		pkField, ok := s.schema.PublicKeyField(env.EntitySet)
		if !ok {
			return nil, schemaUnknownErr(env.EntitySet)
		}

		// Update and remove envelopes are located by the key field when the
		// envelope carries it, and by the publicKey field otherwise.
		locate := func(doc Document) Document {
			if keyField, ok := s.schema.KeyField(env.EntitySet); ok {
				if v, present := doc[keyField.Name]; present {
					return Document{keyField.Name: v}
				}
			}

			return Document{pkField.Name: doc[pkField.Name]}
		}

		switch env.Action {
		case ActionRemove:
			if env.Doc != nil {
				_, _ = s.index.remove(env.EntitySet, locate(env.Doc))
			}
		case ActionInsert:
			if env.Doc != nil {
				_, _ = s.index.insert(env.EntitySet, env.Doc)
			}
		case ActionUpdate, ActionReload:
			if env.Doc != nil {
				results, err := s.index.update(env.EntitySet, locate(env.Doc), env.Doc, false)
				if err == nil && len(results) == 0 {
					// Not present locally yet (e.g. this replica missed the
					// insert); treat the reload as an insert instead.
					_, _ = s.index.insert(env.EntitySet, env.Doc)
				}
			}
		case ActionRefresh:
			// A refresh envelope by itself carries no usable content;
			// callers that need the authoritative state call Find/Reload.
		}

		return nil, nil
	})

	return err
}
