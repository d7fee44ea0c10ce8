// Package watch implements drift detection for the managed tools: a
// per-tool polling loop (with fsnotify-triggered immediate scans) that
// diffs active config files against the snapshot store, classifies the
// changes and hands them to the change queue.
package watch

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/confdrift/confdrift/internal/cferrors"
	"github.com/confdrift/confdrift/internal/tools"
)

const configFile = "watch.json"

// Mode selects how much drift gets surfaced.
type Mode string

const (
	// ModeDefault surfaces only sensitive-field drift.
	ModeDefault Mode = "default"
	// ModeFull surfaces everything that survives the blacklist.
	ModeFull Mode = "full"
)

// Config is the user-editable watch configuration. Blacklist and
// SensitiveFields map tool IDs to path patterns; blacklist always wins.
type Config struct {
	Enabled         bool                `json:"enabled"`
	Mode            Mode                `json:"mode"`
	ScanIntervalSec int                 `json:"scan_interval"`
	Blacklist       map[string][]string `json:"blacklist"`
	SensitiveFields map[string][]string `json:"sensitive_fields"`
}

// ScanInterval returns the polling interval as a duration, clamped to a
// sane floor.
func (c Config) ScanInterval() time.Duration {
	if c.ScanIntervalSec < 1 {
		return time.Second
	}
	return time.Duration(c.ScanIntervalSec) * time.Second
}

// BlacklistFor returns the blacklist patterns for a tool.
func (c Config) BlacklistFor(tool tools.ID) []string {
	return c.Blacklist[string(tool)]
}

// SensitiveFor returns the sensitive patterns for a tool.
func (c Config) SensitiveFor(tool tools.ID) []string {
	return c.SensitiveFields[string(tool)]
}

// DefaultConfig returns the shipped watch configuration: enabled, default
// mode, 30s scans, credentials and endpoints marked sensitive.
func DefaultConfig() Config {
	return Config{
		Enabled:         true,
		Mode:            ModeDefault,
		ScanIntervalSec: 30,
		Blacklist:       map[string][]string{},
		SensitiveFields: map[string][]string{
			string(tools.ClaudeCode): {
				"env.ANTHROPIC_AUTH_TOKEN",
				"env.ANTHROPIC_BASE_URL",
			},
			string(tools.Codex): {
				"auth.json:OPENAI_API_KEY",
				"model_provider",
				"model_providers.*",
			},
			// .env is the primary gemini file, so its paths carry no file
			// prefix.
			string(tools.GeminiCLI): {
				"GEMINI_API_KEY",
				"GOOGLE_GEMINI_BASE_URL",
			},
		},
	}
}

// ConfigStore persists the watch configuration in the engine data dir.
type ConfigStore struct {
	mu   sync.RWMutex
	path string
}

// NewConfigStore creates a config store rooted at dataDir.
func NewConfigStore(dataDir string) *ConfigStore {
	return &ConfigStore{path: filepath.Join(dataDir, configFile)}
}

// Get returns the persisted configuration, or the defaults if none has
// been saved yet.
func (s *ConfigStore) Get() (Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return Config{}, cferrors.IOf("read %s", s.path)
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, cferrors.Parsef("parse %s: %v", s.path, err)
	}
	if cfg.Mode != ModeFull {
		cfg.Mode = ModeDefault
	}
	if cfg.Blacklist == nil {
		cfg.Blacklist = map[string][]string{}
	}
	if cfg.SensitiveFields == nil {
		cfg.SensitiveFields = map[string][]string{}
	}
	return cfg, nil
}

// Update persists a new configuration.
func (s *ConfigStore) Update(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cfg.Mode != ModeFull {
		cfg.Mode = ModeDefault
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return cferrors.IOf("create dir for %s", s.path)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return cferrors.IOf("write %s", s.path)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return cferrors.IOf("rename %s", s.path)
	}
	return nil
}
