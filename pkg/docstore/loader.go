package docstore

import (
	"path/filepath"

	"github.com/jsreport/fsstore/pkg/fs"
)

// loadAll runs startup recovery and decodes every registered entity set into
// idx. Directory-mode sets are recovered (stale staging directories
// finalized or discarded) before being enumerated; flat-mode sets need no
// recovery since every append is already its own durable commit.
func loadAll(fsys fs.FS, dataDir string, schema *Schema, txn *transactionEngine, idx *memoryIndex, logger Logger) error {
	for _, set := range schemaSets(schema) {
		if err := recoverSet(fsys, dataDir, set); err != nil {
			return err
		}

		docs, err := loadSet(fsys, dataDir, set, txn, logger)
		if err != nil {
			return err
		}

		if err := idx.load(set.Name, docs); err != nil {
			return err
		}
	}

	return nil
}

func loadSet(fsys fs.FS, dataDir string, set EntitySetDescriptor, txn *transactionEngine, logger Logger) ([]Document, error) {
	if set.Mode == Flat {
		docs, err := txn.DecodeFlat(set)
		if err != nil {
			return nil, err
		}

		return docs, nil
	}

	setDir := filepath.Join(dataDir, set.Name)

	exists, err := fsys.Exists(setDir)
	if err != nil {
		return nil, ioErr(set.Name, "", err)
	}

	if !exists {
		return nil, nil
	}

	entries, err := fsys.ReadDir(setDir)
	if err != nil {
		return nil, ioErr(set.Name, "", err)
	}

	var docs []Document

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		doc, err := txn.DecodeDirectory(set, entry.Name())
		if err != nil {
			if logger != nil {
				logger.Warn("skipping malformed document", "set", set.Name, "key", entry.Name(), "err", err)
			}

			continue
		}

		docs = append(docs, doc)
	}

	return docs, nil
}

func schemaSets(schema *Schema) []EntitySetDescriptor {
	var sets []EntitySetDescriptor

	for name := range schema.sets {
		sets = append(sets, schema.sets[name])
	}

	return sets
}
