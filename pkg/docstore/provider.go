package docstore

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/jsreport/fsstore/pkg/fs"
)

// Provider is the top-level persistence provider. It owns the in-memory
// index, the single-consumer write queue, the transaction engine, the
// filesystem watcher, and the sync controller, and exposes a per-entity-set
// [Collection] API.
type Provider struct {
	cfg      Config
	schema   *Schema
	fsys     fs.FS
	locker   *fs.Locker
	lockPath string

	idx   *memoryIndex
	txn   *transactionEngine
	queue *writeQueue
	sync  *syncController
	watch *watcher

	closed atomic.Bool
}

// Open initializes a provider for cfg.DataDirectory: recovers any
// interrupted transaction left by a prior crash, loads every registered
// entity set into memory, and starts the filesystem watcher (unless
// [Config.DisableWatcher]). The cross-process advisory lock is acquired and
// released per mutation, not held for the provider's lifetime.
func Open(ctx context.Context, cfg Config) (*Provider, error) {
	if ctx == nil {
		return nil, fmt.Errorf("docstore: context is nil")
	}

	if cfg.DataDirectory == "" {
		return nil, fmt.Errorf("docstore: Config.DataDirectory is required")
	}

	cfg = cfg.withDefaults()

	schema := NewSchema(cfg.Schema, cfg.ExtensionResolvers...)

	fsys := fs.NewReal()

	if err := fsys.MkdirAll(cfg.DataDirectory, 0o755); err != nil {
		return nil, fmt.Errorf("docstore: creating data directory: %w", err)
	}

	p := &Provider{
		cfg:      cfg,
		schema:   schema,
		fsys:     fsys,
		locker:   fs.NewLocker(fsys),
		lockPath: filepath.Join(cfg.DataDirectory, storeDirName, lockFileName),
	}

	selfWrite := newSelfWriteTracker(cfg.SelfWriteSkipThreshold)
	p.txn = newTransactionEngine(fsys, cfg.DataDirectory, schema, selfWrite)

	p.idx = newMemoryIndex(schema, cfg.Matcher, cfg.Patcher)

	if err := p.withLock(func() error {
		return loadAll(fsys, cfg.DataDirectory, schema, p.txn, p.idx, cfg.Logger)
	}); err != nil {
		return nil, fmt.Errorf("docstore: loading data directory: %w", err)
	}

	p.queue = newWriteQueue(64)
	p.sync = newSyncController(cfg.Transport, cfg.MessageSizeLimit, schema, p.queue, p.idx)

	if !cfg.DisableWatcher {
		w, err := newWatcher(fsys, cfg.DataDirectory, schema, selfWrite, p.queue, cfg.Logger, p.reconcileExternalChange)
		if err != nil {
			p.queue.close()
			return nil, fmt.Errorf("docstore: starting watcher: %w", err)
		}

		p.watch = w
	}

	return p, nil
}

// withLock acquires the cross-process advisory lock, runs fn, and releases
// the lock before returning - the scope is exactly one transaction's
// stage+commit+swap sequence, or, at startup, the one-time recovery and
// load.
func (p *Provider) withLock(fn func() error) error {
	lock, err := p.locker.LockWithTimeout(p.lockPath, p.cfg.LockTimeout)
	if err != nil {
		return fmt.Errorf("docstore: acquiring store lock: %w", err)
	}

	defer func() { _ = lock.Close() }()

	return fn()
}

// Close stops the watcher, the sync controller and the write queue. A task
// already executing finishes first; tasks still waiting in the queue are
// not run, and their submitters receive [ErrClosed]. Close is idempotent.
func (p *Provider) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}

	if p.watch != nil {
		p.watch.Close()
	}

	p.sync.Stop()
	p.queue.close()

	return nil
}

// Collection returns a handle for reading and mutating one entity set.
func (p *Provider) Collection(name string) *Collection {
	return &Collection{provider: p, set: name}
}

// Sync returns the provider's sync controller for subscribing to and
// publishing change notifications.
func (p *Provider) Sync() *syncController {
	return p.sync
}

// Reload forces the provider to re-read one document from disk and apply it
// to the in-memory index and sync subscribers, as if the watcher had
// observed an external change to it. doc must carry "$entitySet" and its
// publicKey field; useful for tests and for callers that bypass the watcher
// (e.g. [Config.DisableWatcher]).
func (p *Provider) Reload(ctx context.Context, doc Document) error {
	entitySet, _ := stringField(doc, entitySetAttr)

	set, ok := p.schema.Set(entitySet)
	if !ok {
		return schemaUnknownErr(entitySet)
	}

	pkField, _ := p.schema.PublicKeyField(entitySet)
	publicKey, _ := stringField(doc, pkField.Name)

	return p.reconcileExternalChange(ctx, set, publicKey)
}

// reconcileExternalChange re-reads one document (or, for a flat set, the
// whole file) from disk and applies the result to the in-memory index,
// publishing a reload envelope to subscribers. This is the function the
// watcher calls once its debounce window for a path elapses.
func (p *Provider) reconcileExternalChange(ctx context.Context, set EntitySetDescriptor, publicKey string) error {
	_, err := p.queue.submit(ctx, func(ctx context.Context) (any, error) {
		if set.Mode == Flat {
			return nil, p.reconcileFlatLocked(set)
		}

		return nil, p.reconcileDirectoryLocked(set, publicKey)
	})

	return err
}

func (p *Provider) reconcileDirectoryLocked(set EntitySetDescriptor, publicKey string) error {
	var (
		exists bool
		doc    Document
	)

	if err := p.withLock(func() error {
		var err error

		exists, err = p.fsys.Exists(filepath.Join(p.cfg.DataDirectory, set.Name, publicKey))
		if err != nil {
			return ioErr(set.Name, publicKey, err)
		}

		if !exists {
			return nil
		}

		doc, err = p.txn.DecodeDirectory(set, publicKey)

		return err
	}); err != nil {
		return err
	}

	pkField, _ := p.schema.PublicKeyField(set.Name)

	if !exists {
		removed, err := p.idx.remove(set.Name, Document{pkField.Name: publicKey})
		if err != nil {
			return err
		}

		for _, doc := range removed {
			_ = p.sync.Publish(Envelope{Action: ActionReload, EntitySet: set.Name, Doc: doc})
		}

		return nil
	}

	results, err := p.idx.update(set.Name, Document{pkField.Name: publicKey}, doc, true)
	if err != nil {
		return err
	}

	for _, r := range results {
		_ = p.sync.Publish(Envelope{Action: ActionReload, EntitySet: set.Name, Doc: r.newDoc})
	}

	return nil
}

// persist durably writes doc for set, dispatching to the directory or flat
// codec per set.Mode. For directory sets, oldPublicKey == "" means a fresh
// insert; a non-empty, unchanged oldPublicKey still goes through the
// stage+commit+swap protocol (renaming the document's directory onto
// itself), keeping exactly one commit path for every directory write.
func (p *Provider) persist(set EntitySetDescriptor, doc Document, oldPublicKey string) error {
	pkField, _ := p.schema.PublicKeyField(set.Name)
	newPublicKey, _ := stringField(doc, pkField.Name)

	return p.withLock(func() error {
		if set.Mode == Flat {
			line, err := p.txn.flatCodec.EncodeRecord(set, doc)
			if err != nil {
				return ioErr(set.Name, newPublicKey, err)
			}

			return p.txn.AppendFlatRecord(set, line)
		}

		if oldPublicKey == "" {
			return p.txn.InsertDirectory(set, newPublicKey, doc)
		}

		return p.txn.UpdateDirectory(set, oldPublicKey, newPublicKey, doc)
	})
}

// destroy durably removes doc from set: deletes its directory (directory
// mode) or appends a tombstone record (flat mode).
func (p *Provider) destroy(set EntitySetDescriptor, doc Document) error {
	pkField, hasPk := set.publicKeyField()
	publicKey, _ := stringField(doc, pkField.Name)

	return p.withLock(func() error {
		if set.Mode == Flat {
			keyField, hasKey := set.keyField()
			if !hasKey {
				keyField = pkField
				hasKey = hasPk
			}

			line, err := p.txn.flatCodec.EncodeTombstone(set, keyField, doc[keyField.Name])
			if err != nil {
				return ioErr(set.Name, publicKey, err)
			}

			return p.txn.AppendFlatRecord(set, line)
		}

		return p.txn.RemoveDirectory(set, publicKey)
	})
}

// reconcileFlatLocked re-decodes a flat set's entire file and replaces the
// in-memory contents wholesale - a flat file has no per-document identity
// on disk cheaper to diff than "decode it all again".
func (p *Provider) reconcileFlatLocked(set EntitySetDescriptor) error {
	var docs []Document

	if err := p.withLock(func() error {
		var err error
		docs, err = p.txn.DecodeFlat(set)
		return err
	}); err != nil {
		return err
	}

	if err := p.idx.load(set.Name, docs); err != nil {
		return err
	}

	_ = p.sync.Publish(Envelope{Action: ActionReload, EntitySet: set.Name})

	return nil
}
