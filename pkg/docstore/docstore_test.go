package docstore_test

import (
	"context"
	"testing"

	"github.com/jsreport/fsstore/pkg/docstore"
)

// testSchema registers the same two shapes used throughout this test
// package: "templates" (directory mode, with a document property) and
// "settings" (flat mode, scalar fields only).
func testSchema() docstore.SchemaDescriptor {
	return docstore.SchemaDescriptor{
		Sets: []docstore.EntitySetDescriptor{
			{
				Name: "templates",
				Mode: docstore.Directory,
				Type: docstore.EntityTypeDescriptor{
					Name: "Template",
					Fields: []docstore.FieldDescriptor{
						{Name: "_id", Type: docstore.FieldString, Key: true},
						{Name: "name", Type: docstore.FieldString, PublicKey: true},
						{
							Name: "content",
							Type: docstore.FieldString,
							Document: &docstore.DocumentPropertyDescriptor{
								Field:     "content",
								Extension: "html",
							},
						},
					},
				},
			},
			{
				Name: "settings",
				Mode: docstore.Flat,
				Type: docstore.EntityTypeDescriptor{
					Name: "Setting",
					Fields: []docstore.FieldDescriptor{
						{Name: "key", Type: docstore.FieldString, Key: true, PublicKey: true},
						{Name: "value", Type: docstore.FieldString},
					},
				},
			},
		},
	}
}

// openTestProvider opens a provider rooted at a fresh temp directory with
// testSchema, applying opts on top of the defaults.
func openTestProvider(t *testing.T, opts ...func(*docstore.Config)) *docstore.Provider {
	t.Helper()

	cfg := docstore.Config{
		DataDirectory: t.TempDir(),
		Schema:        testSchema(),
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	p, err := docstore.Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	t.Cleanup(func() { _ = p.Close() })

	return p
}

func withDataDir(dir string) func(*docstore.Config) {
	return func(cfg *docstore.Config) { cfg.DataDirectory = dir }
}

func disableWatcher(cfg *docstore.Config) { cfg.DisableWatcher = true }
