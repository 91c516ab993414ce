// Command docstore-demo exercises the docstore engine end to end against a
// scratch directory: it registers one directory-mode set ("templates") and
// one flat-mode set ("settings"), performs a handful of mutations through
// the API, prints where they landed on disk, then edits a file directly and shows
// the watcher reconciling it back into the in-memory index.
//
// There is no flag-driven surface; the scenario is fixed.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jsreport/fsstore/pkg/docstore"
)

const dataDir = "/tmp/docstore-demo"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if err := os.RemoveAll(dataDir); err != nil {
		return fmt.Errorf("clearing scratch directory: %w", err)
	}

	ctx := context.Background()

	logger := slogLogger{slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))}

	cfg := docstore.Config{
		DataDirectory:          dataDir,
		Schema:                 schema(),
		Logger:                 logger,
		SelfWriteSkipThreshold: 1 * time.Millisecond,
	}

	provider, err := docstore.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening provider: %w", err)
	}
	defer provider.Close()

	unsubscribe := provider.Sync().Subscribe(func(env docstore.Envelope) {
		fmt.Printf("sync: %s %s %v\n", env.Action, env.EntitySet, env.Doc)
	})
	defer unsubscribe()

	templates := provider.Collection("templates")
	settings := provider.Collection("settings")

	if err := demoSplitPersistence(ctx, templates); err != nil {
		return err
	}

	if err := demoFlatAppend(ctx, settings); err != nil {
		return err
	}

	if err := demoExternalEdit(ctx, templates); err != nil {
		return err
	}

	return nil
}

// demoSplitPersistence inserts a template and prints the path of the file
// its content property is split into, then renames it via update, removes
// it, and prints how many templates were removed.
func demoSplitPersistence(ctx context.Context, templates *docstore.Collection) error {
	stored, err := templates.Insert(ctx, docstore.Document{
		"name":    "welcome",
		"content": "Hello, {{.Name}}!",
	})
	if err != nil {
		return fmt.Errorf("insert template: %w", err)
	}

	contentPath := filepath.Join(dataDir, "templates", "welcome", "content.html")
	fmt.Printf("wrote %s\n", contentPath)

	_, err = templates.Update(ctx,
		docstore.Document{"name": "welcome"},
		docstore.Document{"name": "welcome-renamed"},
		false,
	)
	if err != nil {
		return fmt.Errorf("rename template: %w", err)
	}

	removed, err := templates.Remove(ctx, docstore.Document{"name": "welcome-renamed"})
	if err != nil {
		return fmt.Errorf("remove template: %w", err)
	}

	fmt.Printf("removed %d template(s), id was %v\n", len(removed), stored["_id"])

	return nil
}

// demoFlatAppend inserts, updates and removes a setting, which appends three
// lines to the flat file (the last a tombstone), then prints the flat
// file's path.
func demoFlatAppend(ctx context.Context, settings *docstore.Collection) error {
	if _, err := settings.Insert(ctx, docstore.Document{"key": "theme", "value": "dark"}); err != nil {
		return fmt.Errorf("insert setting: %w", err)
	}

	if _, err := settings.Update(ctx,
		docstore.Document{"key": "theme"},
		docstore.Document{"value": "light"},
		false,
	); err != nil {
		return fmt.Errorf("update setting: %w", err)
	}

	if _, err := settings.Remove(ctx, docstore.Document{"key": "theme"}); err != nil {
		return fmt.Errorf("remove setting: %w", err)
	}

	fmt.Printf("settings file: %s\n", filepath.Join(dataDir, "settings"))

	return nil
}

// demoExternalEdit inserts a template through the API, then edits its
// config.json directly with os.WriteFile - bypassing the provider entirely
// - and waits long enough for the watcher's debounce window to fire so the
// reload shows up on the sync subscription registered in run.
func demoExternalEdit(ctx context.Context, templates *docstore.Collection) error {
	if _, err := templates.Insert(ctx, docstore.Document{"name": "footer", "content": "(c) demo"}); err != nil {
		return fmt.Errorf("insert template: %w", err)
	}

	configPath := filepath.Join(dataDir, "templates", "footer", "config.json")

	time.Sleep(50 * time.Millisecond)

	edited := []byte(`{"$entitySet":"templates","name":"footer"}`)
	if err := os.WriteFile(configPath, edited, 0o644); err != nil {
		return fmt.Errorf("editing %s directly: %w", configPath, err)
	}

	time.Sleep(300 * time.Millisecond)

	found, err := templates.Find(ctx, docstore.Document{"name": "footer"})
	if err != nil {
		return fmt.Errorf("find after external edit: %w", err)
	}

	fmt.Printf("after external edit: %v\n", found)

	return nil
}

func schema() docstore.SchemaDescriptor {
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
								Field:      "content",
								Extension:  "html",
								EngineHint: "handlebars",
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

// slogLogger adapts a *slog.Logger to docstore.Logger.
type slogLogger struct {
	l *slog.Logger
}

func (s slogLogger) Debug(msg string, kv ...any) { s.l.Debug(msg, kv...) }
func (s slogLogger) Info(msg string, kv ...any)  { s.l.Info(msg, kv...) }
func (s slogLogger) Warn(msg string, kv ...any)  { s.l.Warn(msg, kv...) }
func (s slogLogger) Error(msg string, kv ...any) { s.l.Error(msg, kv...) }
