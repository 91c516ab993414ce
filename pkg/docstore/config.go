package docstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/tailscale/hujson"
)

const (
	// DefaultSelfWriteSkipThreshold is how long, after the provider writes
	// a path itself, a watcher event for that same path is suppressed.
	DefaultSelfWriteSkipThreshold = 250 * time.Millisecond

	// DefaultMessageSizeLimit is the maximum serialized envelope size (in
	// bytes) before publish falls back to a refresh envelope.
	DefaultMessageSizeLimit = 64 * 1024

	// DefaultLockTimeout bounds how long a transaction waits for another
	// process's in-flight commit.
	DefaultLockTimeout = 10 * time.Second

	// storeDirName is the provider's internal bookkeeping directory.
	storeDirName = ".store"

	// lockFileName is the cross-process advisory lock file, the sole
	// content of storeDirName.
	lockFileName = "lock"
)

// Config configures a [Provider].
type Config struct {
	// DataDirectory is the root of the persisted tree. Required.
	DataDirectory string

	// Schema describes the registered entity sets. Required.
	Schema SchemaDescriptor

	// ExtensionResolvers override a document property's file extension at
	// encode time; see [FileExtensionResolver].
	ExtensionResolvers []FileExtensionResolver

	// Logger receives structured diagnostics. Defaults to a no-op logger.
	Logger Logger

	// SelfWriteSkipThreshold bounds how long a watcher event for a path the
	// provider itself just wrote is suppressed. Defaults to
	// [DefaultSelfWriteSkipThreshold].
	SelfWriteSkipThreshold time.Duration

	// MessageSizeLimit bounds the serialized sync envelope size before
	// publish falls back to a refresh envelope. Defaults to
	// [DefaultMessageSizeLimit].
	MessageSizeLimit int

	// LockTimeout bounds how long a transaction waits to acquire the
	// cross-process advisory lock. Defaults to [DefaultLockTimeout].
	LockTimeout time.Duration

	// Transport carries sync envelopes between provider instances.
	// Defaults to an in-process fan-out usable within a single process.
	Transport Transport

	// Matcher implements query semantics for Find/Update/Remove. Defaults
	// to [DefaultMatcher].
	Matcher Matcher

	// Patcher applies a patch to a matched document. Defaults to
	// [DefaultPatcher].
	Patcher Patcher

	// DisableWatcher disables the filesystem watcher. Useful for tests
	// that don't exercise external-edit reconciliation and don't want a
	// background fsnotify goroutine.
	DisableWatcher bool
}

func (c Config) withDefaults() Config {
	if c.Logger == nil {
		c.Logger = noopLogger{}
	}

	if c.SelfWriteSkipThreshold == 0 {
		c.SelfWriteSkipThreshold = DefaultSelfWriteSkipThreshold
	}

	if c.MessageSizeLimit == 0 {
		c.MessageSizeLimit = DefaultMessageSizeLimit
	}

	if c.LockTimeout == 0 {
		c.LockTimeout = DefaultLockTimeout
	}

	if c.Transport == nil {
		c.Transport = NewInProcessTransport()
	}

	if c.Matcher == nil {
		c.Matcher = DefaultMatcher
	}

	if c.Patcher == nil {
		c.Patcher = DefaultPatcher
	}

	return c
}

// configFile is the subset of [Config] that can be loaded from a
// human-edited JSON-with-comments file. Schema, resolvers, transport,
// matcher and patcher are code-level collaborators and have no file
// representation.
type configFile struct {
	DataDirectory          string `json:"dataDirectory"`
	SelfWriteSkipThreshold string `json:"selfWriteSkipThreshold,omitempty"`
	MessageSizeLimit       int    `json:"messageSizeLimit,omitempty"`
	LockTimeout            string `json:"lockTimeout,omitempty"`
}

// LoadConfigFile reads a JSON-with-comments (JSONC) configuration file -
// trailing commas and //, /* */ comments allowed - standardizes it to
// strict JSON exactly once, then decodes it with unknown fields rejected
// so a typo in a hand-edited file surfaces immediately.
//
// The returned [Config] carries only the fields a config file can express;
// callers fill in Schema, Logger, Transport, Matcher and Patcher
// programmatically before passing it to [Open].
func LoadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("docstore: reading config file %q: %w", path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("docstore: invalid JSONC in %q: %w", path, err)
	}

	var raw configFile

	dec := json.NewDecoder(bytes.NewReader(standardized))
	dec.DisallowUnknownFields()

	if err := dec.Decode(&raw); err != nil {
		return Config{}, fmt.Errorf("docstore: invalid config %q: %w", path, err)
	}

	cfg := Config{
		DataDirectory:    raw.DataDirectory,
		MessageSizeLimit: raw.MessageSizeLimit,
	}

	if raw.SelfWriteSkipThreshold != "" {
		d, err := time.ParseDuration(raw.SelfWriteSkipThreshold)
		if err != nil {
			return Config{}, fmt.Errorf("docstore: invalid selfWriteSkipThreshold %q: %w", raw.SelfWriteSkipThreshold, err)
		}

		cfg.SelfWriteSkipThreshold = d
	}

	if raw.LockTimeout != "" {
		d, err := time.ParseDuration(raw.LockTimeout)
		if err != nil {
			return Config{}, fmt.Errorf("docstore: invalid lockTimeout %q: %w", raw.LockTimeout, err)
		}

		cfg.LockTimeout = d
	}

	return cfg, nil
}
