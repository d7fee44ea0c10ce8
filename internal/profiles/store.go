// Package profiles implements named, saved configurations per tool:
// saving the current managed field values under a name, activating a
// saved profile by merging its managed values over the active config, and
// listing/deleting the backup files that hold them.
package profiles

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/confdrift/confdrift/internal/snapshot"
	"github.com/confdrift/confdrift/internal/toolcfg"
	"github.com/confdrift/confdrift/internal/tools"
)

// Profile describes one saved profile for listing. The API key is masked.
type Profile struct {
	Tool          tools.ID `json:"tool_id"`
	Name          string   `json:"name"`
	APIKeyPreview string   `json:"api_key_preview,omitempty"`
	BaseURL       string   `json:"base_url,omitempty"`
	Model         string   `json:"model,omitempty"`
}

// Store performs profile operations. Every write to a tool's active
// config updates the snapshot in the same operation, which is what keeps
// the watcher from reporting our own writes as external drift. Callers
// serialize per tool.
type Store struct {
	snapshots *snapshot.Store
}

// NewStore creates a profile store backed by the given snapshot store.
func NewStore(snapshots *snapshot.Store) *Store {
	return &Store{snapshots: snapshots}
}

// Save merges the given managed values into the tool's active config,
// writes it, updates the snapshot, and records a minimal backup (managed
// fields only) under the profile name. The snapshot is not touched if the
// active write fails, including partial two-file failures.
func (s *Store) Save(t tools.Tool, name string, v toolcfg.Values) error {
	if err := tools.ValidateProfileName(t, name); err != nil {
		return err
	}
	adapter, err := toolcfg.New(t)
	if err != nil {
		return err
	}

	active, err := adapter.Load()
	if err != nil {
		return fmt.Errorf("load active config: %w", err)
	}
	merged := adapter.StoreManagedFields(active, v)
	if err := adapter.WriteActive(merged); err != nil {
		return fmt.Errorf("write active config: %w", err)
	}
	if err := s.snapshots.Save(string(t.ID), merged); err != nil {
		return fmt.Errorf("update snapshot: %w", err)
	}

	backup := adapter.StoreManagedFields(toolcfg.Files{}, v)
	if err := adapter.WriteBackup(name, backup); err != nil {
		return fmt.Errorf("write backup %q: %w", name, err)
	}

	log.Info().Str("tool", string(t.ID)).Str("profile", name).Msg("Profile saved")
	return nil
}

// Activate loads the named backup and merges its managed values over the
// current active config. Fields the user added to the active file by hand
// survive; only managed paths change. Returns ErrNotFound when the backup
// is absent and ErrInvalidFormat when it lacks required managed keys.
func (s *Store) Activate(t tools.Tool, name string) error {
	adapter, err := toolcfg.New(t)
	if err != nil {
		return err
	}

	backup, err := adapter.LoadBackup(name)
	if err != nil {
		return err
	}
	v, err := adapter.ExtractValues(backup)
	if err != nil {
		return fmt.Errorf("profile %q: %w", name, err)
	}

	active, err := adapter.Load()
	if err != nil {
		return fmt.Errorf("load active config: %w", err)
	}
	merged := adapter.StoreManagedFields(active, v)
	if err := adapter.WriteActive(merged); err != nil {
		return fmt.Errorf("write active config: %w", err)
	}
	if err := s.snapshots.Save(string(t.ID), merged); err != nil {
		return fmt.Errorf("update snapshot: %w", err)
	}

	log.Info().Str("tool", string(t.ID)).Str("profile", name).Msg("Profile activated")
	return nil
}

// List returns the saved profiles for a tool, sorted by name. Backups
// that no longer parse still list by name, just without a preview.
func (s *Store) List(t tools.Tool) ([]Profile, error) {
	adapter, err := toolcfg.New(t)
	if err != nil {
		return nil, err
	}
	names, err := adapter.ListBackups()
	if err != nil {
		return nil, err
	}

	out := make([]Profile, 0, len(names))
	for _, name := range names {
		p := Profile{Tool: t.ID, Name: name}
		if files, err := adapter.LoadBackup(name); err == nil {
			if v, err := adapter.ExtractValues(files); err == nil {
				p.APIKeyPreview = maskKey(v.APIKey)
				p.BaseURL = v.BaseURL
				p.Model = v.Model
			}
		}
		out = append(out, p)
	}
	return out, nil
}

// Delete removes the profile's backup file(s). The active config and the
// snapshot are untouched.
func (s *Store) Delete(t tools.Tool, name string) error {
	adapter, err := toolcfg.New(t)
	if err != nil {
		return err
	}
	if err := adapter.DeleteBackup(name); err != nil {
		return err
	}
	log.Info().Str("tool", string(t.ID)).Str("profile", name).Msg("Profile deleted")
	return nil
}

// maskKey shortens a secret for display: "sk-proj-abcd1234" -> "sk-p...1234".
func maskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
