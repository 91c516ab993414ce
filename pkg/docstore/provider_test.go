package docstore_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jsreport/fsstore/pkg/docstore"
)

func Test_Open_Requires_DataDirectory(t *testing.T) {
	t.Parallel()

	_, err := docstore.Open(context.Background(), docstore.Config{Schema: testSchema()})
	if err == nil {
		t.Fatal("Open with empty DataDirectory should fail")
	}
}

func Test_Open_Requires_Context(t *testing.T) {
	t.Parallel()

	_, err := docstore.Open(nil, docstore.Config{DataDirectory: t.TempDir(), Schema: testSchema()})
	if err == nil {
		t.Fatal("Open(nil, ...) should fail")
	}
}

func Test_Close_Is_Idempotent(t *testing.T) {
	t.Parallel()

	p := openTestProvider(t, disableWatcher)

	if err := p.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}

	if err := p.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func Test_Collection_On_Unregistered_Set_Fails_With_SchemaUnknown(t *testing.T) {
	t.Parallel()

	p := openTestProvider(t, disableWatcher)

	_, err := p.Collection("nope").Insert(context.Background(), docstore.Document{"name": "x"})

	var dsErr *docstore.Error
	if !errors.As(err, &dsErr) || dsErr.Kind != docstore.KindSchemaUnknown {
		t.Fatalf("Insert on unregistered set error = %v, want Kind=SchemaUnknown", err)
	}
}

func Test_Reload_Picks_Up_State_Written_Directly_To_Disk(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := openTestProvider(t, withDataDir(dir), disableWatcher)

	ctx := context.Background()
	templates := p.Collection("templates")

	stored, err := templates.Insert(ctx, docstore.Document{"name": "test", "content": "foo"})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	contentPath := filepath.Join(dir, "templates", "test", "content.html")
	if err := os.WriteFile(contentPath, []byte("bar"), 0o644); err != nil {
		t.Fatalf("writing content.html directly: %v", err)
	}

	if err := p.Reload(ctx, docstore.Document{"$entitySet": "templates", "name": "test"}); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	found, err := templates.Find(ctx, docstore.Document{"name": "test"})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}

	if len(found) != 1 || found[0]["content"] != "bar" {
		t.Fatalf("Find after Reload = %v, want one document with content=bar", found)
	}

	_ = stored
}

func Test_Reload_Unregistered_Set_Fails_With_SchemaUnknown(t *testing.T) {
	t.Parallel()

	p := openTestProvider(t, disableWatcher)

	err := p.Reload(context.Background(), docstore.Document{"$entitySet": "nope", "name": "x"})

	var dsErr *docstore.Error
	if !errors.As(err, &dsErr) || dsErr.Kind != docstore.KindSchemaUnknown {
		t.Fatalf("Reload on unregistered set error = %v, want Kind=SchemaUnknown", err)
	}
}
