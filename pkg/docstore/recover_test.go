package docstore_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jsreport/fsstore/pkg/docstore"
)

func Test_Open_Deletes_Uncommitted_Staging_Directory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	stagingDir := filepath.Join(dir, "templates", "~~a")
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		t.Fatalf("seeding staging directory: %v", err)
	}

	if err := os.WriteFile(filepath.Join(stagingDir, "config.json"), []byte(`{"$entitySet":"templates","name":"a"}`), 0o644); err != nil {
		t.Fatalf("seeding config.json: %v", err)
	}

	p, err := docstore.Open(context.Background(), docstore.Config{
		DataDirectory:  dir,
		Schema:         testSchema(),
		DisableWatcher: true,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })

	if _, err := os.Stat(stagingDir); !os.IsNotExist(err) {
		t.Fatalf("uncommitted staging directory survived Open: err=%v", err)
	}

	found, err := p.Collection("templates").Find(context.Background(), docstore.Document{})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}

	if len(found) != 0 {
		t.Fatalf("Find after recovery returned %d documents, want 0 (aborted transaction)", len(found))
	}
}

func Test_Open_Finalizes_Committed_Staging_Directory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	stagingDir := filepath.Join(dir, "templates", "~c~c")
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		t.Fatalf("seeding staging directory: %v", err)
	}

	if err := os.WriteFile(filepath.Join(stagingDir, "config.json"), []byte(`{"$entitySet":"templates","name":"c"}`), 0o644); err != nil {
		t.Fatalf("seeding config.json: %v", err)
	}

	if err := os.WriteFile(filepath.Join(stagingDir, "content.html"), []byte("changed"), 0o644); err != nil {
		t.Fatalf("seeding content.html: %v", err)
	}

	if err := os.WriteFile(filepath.Join(stagingDir, ".commit"), nil, 0o644); err != nil {
		t.Fatalf("seeding commit marker: %v", err)
	}

	p, err := docstore.Open(context.Background(), docstore.Config{
		DataDirectory:  dir,
		Schema:         testSchema(),
		DisableWatcher: true,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })

	if _, err := os.Stat(stagingDir); !os.IsNotExist(err) {
		t.Fatalf("staging directory %s still present after Open finalized it", stagingDir)
	}

	found, err := p.Collection("templates").Find(context.Background(), docstore.Document{"name": "c"})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}

	if len(found) != 1 {
		t.Fatalf("Find after recovery returned %d documents, want 1", len(found))
	}

	if found[0]["content"] != "changed" {
		t.Fatalf("content = %v, want %q", found[0]["content"], "changed")
	}
}

func Test_Open_Deletes_Staging_Directory_With_Unparseable_Name(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	stagingDir := filepath.Join(dir, "templates", "~")
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		t.Fatalf("seeding staging directory: %v", err)
	}

	p, err := docstore.Open(context.Background(), docstore.Config{
		DataDirectory:  dir,
		Schema:         testSchema(),
		DisableWatcher: true,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })

	if _, err := os.Stat(stagingDir); !os.IsNotExist(err) {
		t.Fatalf("unparseable staging directory survived Open: err=%v", err)
	}
}
