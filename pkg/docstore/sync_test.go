package docstore_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jsreport/fsstore/pkg/docstore"
)

func Test_Insert_Publishes_Exactly_One_Envelope(t *testing.T) {
	t.Parallel()

	p := openTestProvider(t, disableWatcher)

	var envelopes []docstore.Envelope

	unsubscribe := p.Sync().Subscribe(func(env docstore.Envelope) {
		envelopes = append(envelopes, env)
	})
	defer unsubscribe()

	if _, err := p.Collection("templates").Insert(context.Background(), docstore.Document{"name": "test"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if len(envelopes) != 1 {
		t.Fatalf("got %d envelopes, want 1: %+v", len(envelopes), envelopes)
	}

	if envelopes[0].Action != docstore.ActionInsert {
		t.Fatalf("envelope action = %q, want %q", envelopes[0].Action, docstore.ActionInsert)
	}
}

func Test_Publish_Downgrades_To_Refresh_When_Over_Size_Limit(t *testing.T) {
	t.Parallel()

	p := openTestProvider(t, disableWatcher, func(cfg *docstore.Config) {
		cfg.MessageSizeLimit = 1
	})

	var envelopes []docstore.Envelope

	unsubscribe := p.Sync().Subscribe(func(env docstore.Envelope) {
		envelopes = append(envelopes, env)
	})
	defer unsubscribe()

	if _, err := p.Collection("templates").Insert(context.Background(), docstore.Document{"name": "test"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if len(envelopes) != 1 {
		t.Fatalf("got %d envelopes, want 1", len(envelopes))
	}

	env := envelopes[0]

	if env.Action != docstore.ActionRefresh {
		t.Fatalf("envelope action = %q, want %q", env.Action, docstore.ActionRefresh)
	}

	if _, hasContent := env.Doc["content"]; hasContent {
		t.Fatalf("refresh envelope carries unexpected field %q", "content")
	}

	if env.Doc["_id"] == nil {
		t.Fatalf("refresh envelope missing key field")
	}
}

func Test_Subscription_Applies_Envelope_Without_Republishing(t *testing.T) {
	t.Parallel()

	p := openTestProvider(t, disableWatcher)

	publishCount := 0

	unsubscribe := p.Sync().Subscribe(func(docstore.Envelope) {
		publishCount++
	})
	defer unsubscribe()

	err := p.Sync().Subscription(context.Background(), docstore.Envelope{
		Action:    docstore.ActionInsert,
		EntitySet: "templates",
		Doc:       docstore.Document{"_id": "remote-1", "name": "from-peer"},
	})
	if err != nil {
		t.Fatalf("Subscription: %v", err)
	}

	if publishCount != 0 {
		t.Fatalf("Subscription triggered %d publishes, want 0 (it must not re-publish)", publishCount)
	}

	found, err := p.Collection("templates").Find(context.Background(), docstore.Document{"name": "from-peer"})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}

	if len(found) != 1 {
		t.Fatalf("Find after Subscription returned %d documents, want 1", len(found))
	}
}

func Test_External_Edit_Triggers_Reload(t *testing.T) {
	dir := t.TempDir()

	p := openTestProvider(t, withDataDir(dir), func(cfg *docstore.Config) {
		cfg.SelfWriteSkipThreshold = time.Millisecond
	})

	ctx := context.Background()
	templates := p.Collection("templates")

	if _, err := templates.Insert(ctx, docstore.Document{"name": "test", "content": "foo"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	reloaded := make(chan docstore.Envelope, 4)

	unsubscribe := p.Sync().Subscribe(func(env docstore.Envelope) {
		if env.Action == docstore.ActionReload {
			reloaded <- env
		}
	})
	defer unsubscribe()

	time.Sleep(20 * time.Millisecond)

	configPath := filepath.Join(dir, "templates", "test", "config.json")

	if err := os.WriteFile(configPath, []byte(`{"$entitySet":"templates","name":"test-renamed-on-disk"}`), 0o644); err != nil {
		t.Fatalf("writing config.json directly: %v", err)
	}

	select {
	case env := <-reloaded:
		if env.Action != docstore.ActionReload {
			t.Fatalf("action = %q, want %q", env.Action, docstore.ActionReload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reload envelope after external edit")
	}
}

func Test_Stop_Silences_Further_Publish_And_Subscription(t *testing.T) {
	t.Parallel()

	p := openTestProvider(t, disableWatcher)

	publishCount := 0

	unsubscribe := p.Sync().Subscribe(func(docstore.Envelope) {
		publishCount++
	})
	defer unsubscribe()

	p.Sync().Stop()

	if _, err := p.Collection("templates").Insert(context.Background(), docstore.Document{"name": "test"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if publishCount != 0 {
		t.Fatalf("got %d publishes after Stop, want 0", publishCount)
	}

	if err := p.Sync().Subscription(context.Background(), docstore.Envelope{
		Action:    docstore.ActionInsert,
		EntitySet: "templates",
		Doc:       docstore.Document{"_id": "remote-1", "name": "from-peer"},
	}); err != nil {
		t.Fatalf("Subscription: %v", err)
	}

	found, err := p.Collection("templates").Find(context.Background(), docstore.Document{"name": "from-peer"})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}

	if len(found) != 0 {
		t.Fatalf("Find after Subscription on a stopped controller returned %d documents, want 0", len(found))
	}
}
