package docstore

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/jsreport/fsstore/pkg/fs"
)

// commitMarkerName is the zero-byte file whose presence is the sole oracle
// of "this staging directory should be finalized on recovery".
const commitMarkerName = ".commit"

// transactionEngine performs atomic group commits via a stage-then-rename
// protocol. Every durable write it performs also records a self-write
// timestamp so the watcher can suppress the resulting filesystem event.
type transactionEngine struct {
	fsys      fs.FS
	atomic    *fs.AtomicWriter
	dataDir   string
	dirCodec  *directoryCodec
	flatCodec flatCodec
	selfWrite *selfWriteTracker
}

func newTransactionEngine(fsys fs.FS, dataDir string, schema *Schema, selfWrite *selfWriteTracker) *transactionEngine {
	return &transactionEngine{
		fsys:      fsys,
		atomic:    fs.NewAtomicWriter(fsys),
		dataDir:   dataDir,
		dirCodec:  &directoryCodec{schema: schema},
		selfWrite: selfWrite,
	}
}

func (e *transactionEngine) setDir(set EntitySetDescriptor) string {
	return filepath.Join(e.dataDir, set.Name)
}

// InsertDirectory stages and commits a brand new document directory.
func (e *transactionEngine) InsertDirectory(set EntitySetDescriptor, publicKey string, doc Document) error {
	files, err := e.dirCodec.Encode(set, doc)
	if err != nil {
		return ioErr(set.Name, publicKey, err)
	}

	setDir := e.setDir(set)

	if err := e.fsys.MkdirAll(setDir, 0o755); err != nil {
		return ioErr(set.Name, publicKey, err)
	}

	stagingDir := filepath.Join(setDir, "~~"+publicKey)

	if err := e.stageAndCommit(set, publicKey, stagingDir, files); err != nil {
		return err
	}

	finalDir := filepath.Join(setDir, publicKey)

	return e.swap(set, publicKey, stagingDir, finalDir, "")
}

// UpdateDirectory stages and commits a document's new state, swapping it
// over the document's previous directory (which may have a different name,
// when the update renamed the publicKey field).
func (e *transactionEngine) UpdateDirectory(set EntitySetDescriptor, oldPublicKey, newPublicKey string, doc Document) error {
	files, err := e.dirCodec.Encode(set, doc)
	if err != nil {
		return ioErr(set.Name, newPublicKey, err)
	}

	setDir := e.setDir(set)
	stagingDir := filepath.Join(setDir, "~"+newPublicKey+"~"+oldPublicKey)

	if err := e.stageAndCommit(set, newPublicKey, stagingDir, files); err != nil {
		return err
	}

	finalDir := filepath.Join(setDir, newPublicKey)
	oldDir := filepath.Join(setDir, oldPublicKey)

	return e.swap(set, newPublicKey, stagingDir, finalDir, oldDir)
}

// RemoveDirectory deletes a document's directory outright.
func (e *transactionEngine) RemoveDirectory(set EntitySetDescriptor, publicKey string) error {
	dir := filepath.Join(e.setDir(set), publicKey)

	if err := e.fsys.RemoveAll(dir); err != nil {
		return ioErr(set.Name, publicKey, err)
	}

	e.selfWrite.record(dir)

	return nil
}

// DecodeDirectory reads a live (non-staging) document directory.
func (e *transactionEngine) DecodeDirectory(set EntitySetDescriptor, publicKey string) (Document, error) {
	dir := filepath.Join(e.setDir(set), publicKey)
	return e.dirCodec.Decode(e.fsys, set, dir)
}

// stageAndCommit writes every encoded file into a fresh staging directory,
// each through the atomic writer (temp-file-then-rename inside the staging
// directory), then writes the commit marker last. No observer outside the
// transaction engine ever sees a partially written file at its final
// staged name.
func (e *transactionEngine) stageAndCommit(set EntitySetDescriptor, publicKey, stagingDir string, files []encodedFile) error {
	if err := e.fsys.MkdirAll(stagingDir, 0o755); err != nil {
		return ioErr(set.Name, publicKey, err)
	}

	opts := e.atomic.DefaultOptions()

	for _, f := range files {
		path := filepath.Join(stagingDir, f.name)

		if err := e.atomic.Write(path, bytes.NewReader(f.data), opts); err != nil {
			return ioErr(set.Name, publicKey, err)
		}

		e.selfWrite.record(path)
	}

	commitPath := filepath.Join(stagingDir, commitMarkerName)

	if err := e.atomic.Write(commitPath, bytes.NewReader(nil), opts); err != nil {
		return ioErr(set.Name, publicKey, err)
	}

	e.selfWrite.record(commitPath)

	return nil
}

// swap finalizes a committed staging directory: delete the old directory
// if present, then rename staging to its final name.
func (e *transactionEngine) swap(set EntitySetDescriptor, publicKey, stagingDir, finalDir, oldDir string) error {
	if oldDir != "" {
		exists, err := e.fsys.Exists(oldDir)
		if err != nil {
			return ioErr(set.Name, publicKey, err)
		}

		if exists {
			if err := e.fsys.RemoveAll(oldDir); err != nil {
				return ioErr(set.Name, publicKey, err)
			}
		}
	}

	if err := e.fsys.Rename(stagingDir, finalDir); err != nil {
		return ioErr(set.Name, publicKey, err)
	}

	e.selfWrite.record(finalDir)

	return nil
}

// AppendFlatRecord appends one line to a flat entity set's file, syncing it
// to disk before returning - the append is its own commit, with the same
// crash-durability guarantee as a staged-and-renamed directory commit,
// without a separate write-ahead log.
func (e *transactionEngine) AppendFlatRecord(set EntitySetDescriptor, line []byte) error {
	path := e.setDir(set)

	f, err := e.fsys.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return ioErr(set.Name, "", err)
	}

	data := append(line, '\n')

	_, writeErr := f.Write(data)
	if writeErr == nil {
		writeErr = f.Sync()
	}

	closeErr := f.Close()

	if writeErr != nil {
		return ioErr(set.Name, "", writeErr)
	}

	if closeErr != nil {
		return ioErr(set.Name, "", closeErr)
	}

	e.selfWrite.record(path)

	return nil
}

// DecodeFlat reads and replays an entity set's flat file. A missing file
// decodes to an empty set (the set has never been written to).
func (e *transactionEngine) DecodeFlat(set EntitySetDescriptor) ([]Document, error) {
	data, err := e.fsys.ReadFile(e.setDir(set))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, ioErr(set.Name, "", err)
	}

	return e.flatCodec.Decode(set, data)
}
