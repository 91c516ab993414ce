package docstore_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jsreport/fsstore/pkg/docstore"
)

func Test_Flat_Set_Appends_One_Line_Per_Mutation(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := openTestProvider(t, withDataDir(dir), disableWatcher)

	ctx := context.Background()
	settings := p.Collection("settings")

	if _, err := settings.Insert(ctx, docstore.Document{"key": "a", "value": "1"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if _, err := settings.Update(ctx, docstore.Document{"key": "a"}, docstore.Document{"value": "2"}, false); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if _, err := settings.Remove(ctx, docstore.Document{"key": "a"}); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "settings"))
	if err != nil {
		t.Fatalf("reading settings file: %v", err)
	}

	lines := bytes.Split(bytes.TrimRight(data, "\n"), []byte("\n"))
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3: %q", len(lines), data)
	}

	if !strings.Contains(string(lines[1]), `"value":"2"`) {
		t.Fatalf("second line = %q, want it to contain value:2", lines[1])
	}

	if !strings.Contains(string(lines[2]), `"$$deleted":true`) {
		t.Fatalf("third line = %q, want a $$deleted tombstone", lines[2])
	}

	found, err := settings.Find(ctx, docstore.Document{"key": "a"})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}

	if len(found) != 0 {
		t.Fatalf("Find after remove returned %d documents, want 0", len(found))
	}
}

func Test_Flat_Set_Replays_Last_Write_Wins_On_Reopen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	p1, err := docstore.Open(context.Background(), docstore.Config{
		DataDirectory:  dir,
		Schema:         testSchema(),
		DisableWatcher: true,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	ctx := context.Background()
	settings := p1.Collection("settings")

	if _, err := settings.Insert(ctx, docstore.Document{"key": "a", "value": "1"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if _, err := settings.Update(ctx, docstore.Document{"key": "a"}, docstore.Document{"value": "2"}, false); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if err := p1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	p2 := openTestProvider(t, withDataDir(dir), disableWatcher)

	found, err := p2.Collection("settings").Find(context.Background(), docstore.Document{"key": "a"})
	if err != nil {
		t.Fatalf("Find after reopen: %v", err)
	}

	if len(found) != 1 || found[0]["value"] != "2" {
		t.Fatalf("Find after reopen = %v, want one document with value=2", found)
	}
}
