// Package docstore provides a schema-aware document store that persists
// typed entity collections onto a human-readable directory tree.
//
// # Overview
//
// A Provider manages one or more entity sets, each bound to an entity type
// and a storage mode:
//   - directory mode: one subdirectory per document, a canonical config.json
//     plus one file per document-property field.
//   - flat mode: a single append-only newline-delimited JSON file.
//
// Documents are persisted so that the on-disk layout stays diff-friendly
// under source control and so that users can edit files directly with
// ordinary text tools; the provider reconciles external edits observed by
// its filesystem watcher with its in-memory view.
//
// # Data Directory
//
// Open is given a data directory. Each registered entity set gets either a
// subdirectory (directory mode) or a single file (flat mode) directly
// beneath it:
//
//	<root>/templates/my-doc/config.json
//	<root>/templates/my-doc/content.html
//	<root>/settings                        -- flat mode, one JSON line per record
//	<root>/.store/lock                     -- cross-process advisory lock, nothing else
//
// # Concurrency
//
// All mutations - local API calls and sync-subscription-applied events -
// flow through a single-consumer write queue so the filesystem observes a
// total order (see [Open], [Provider.Collection]). A cross-process advisory
// file lock additionally serializes the stage+commit+swap sequence of a
// transaction against other processes operating on the same directory.
//
// # Schema, Matching and Patching Are External
//
// The provider is handed a schema descriptor, a query-matcher callable and
// a patch-applier callable at construction time (see [Config]). It ships
// minimal default implementations of both (see [DefaultMatcher],
// [DefaultPatcher]) sufficient to exercise and test the engine, but a real
// query language and patch DSL are the caller's concern.
package docstore
