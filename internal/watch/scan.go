package watch

import (
	"github.com/rs/zerolog/log"

	"github.com/confdrift/confdrift/internal/configtree"
	"github.com/confdrift/confdrift/internal/snapshot"
	"github.com/confdrift/confdrift/internal/toolcfg"
	"github.com/confdrift/confdrift/internal/tools"
)

// ExternalChange is one detected external edit to a tool's active config,
// after blacklist filtering and mode classification.
type ExternalChange struct {
	Tool          tools.ID                 `json:"tool_id"`
	Path          string                   `json:"path"`
	ChangedFields []configtree.FieldChange `json:"changed_fields"`
	IsSensitive   bool                     `json:"is_sensitive"`
}

// Scanner diffs a tool's on-disk config against its snapshot and applies
// the field policy. It never mutates the snapshot store for a tool that
// already has one; accepting drift is the resolution layer's job.
type Scanner struct {
	Snapshots *snapshot.Store
}

// SeedSnapshot records the tool's current on-disk state as its snapshot.
// Used at startup and for allow resolutions.
func (sc *Scanner) SeedSnapshot(t tools.Tool) error {
	adapter, err := toolcfg.New(t)
	if err != nil {
		return err
	}
	files, err := adapter.Load()
	if err != nil {
		return err
	}
	return sc.Snapshots.Save(string(t.ID), files)
}

// Scan runs one watcher tick for a tool. It returns nil when there is
// nothing to surface: no snapshot yet (one is seeded instead), no diff,
// everything blacklisted, or non-sensitive drift in default mode.
func (sc *Scanner) Scan(t tools.Tool, cfg Config) (*ExternalChange, error) {
	snap, err := sc.Snapshots.Get(string(t.ID))
	if err != nil {
		return nil, err
	}
	if snap == nil {
		log.Debug().Str("tool", string(t.ID)).Msg("No snapshot yet, seeding from disk")
		return nil, sc.SeedSnapshot(t)
	}

	adapter, err := toolcfg.New(t)
	if err != nil {
		return nil, err
	}
	current, err := adapter.Load()
	if err != nil {
		return nil, err
	}

	changes := diffFileSet(t, snap, current)
	changes = filterBlacklist(changes, cfg.BlacklistFor(t.ID))
	if len(changes) == 0 {
		return nil, nil
	}

	sensitivePatterns := cfg.SensitiveFor(t.ID)
	if cfg.Mode == ModeDefault {
		changes = retainSensitive(changes, sensitivePatterns)
		if len(changes) == 0 {
			return nil, nil
		}
	}

	isSensitive := cfg.Mode == ModeFull || anySensitive(changes, sensitivePatterns)
	return &ExternalChange{
		Tool:          t.ID,
		Path:          t.FilePath(t.Primary().Name),
		ChangedFields: changes,
		IsSensitive:   isSensitive,
	}, nil
}

// diffFileSet diffs every file in the tool's set against the snapshot.
// Changes in secondary files carry a "<filename>:" path prefix so one
// pattern list addresses the whole set.
func diffFileSet(t tools.Tool, snap *snapshot.Snapshot, current toolcfg.Files) []configtree.FieldChange {
	var all []configtree.FieldChange
	primary := t.Primary().Name

	for _, f := range t.Files {
		before, ok := snap.Files[f.Name]
		if !ok {
			// File appeared after the snapshot was taken; it will be
			// covered once the snapshot is refreshed by a resolution.
			log.Debug().Str("tool", string(t.ID)).Str("file", f.Name).Msg("File not in snapshot, skipping")
			continue
		}
		fileChanges := configtree.DiffTrees(before, current[f.Name])
		if f.Name != primary {
			for i := range fileChanges {
				fileChanges[i].Path = configtree.WithFilePrefix(f.Name, fileChanges[i].Path)
			}
		}
		all = append(all, fileChanges...)
	}
	return all
}

func filterBlacklist(changes []configtree.FieldChange, patterns []string) []configtree.FieldChange {
	if len(patterns) == 0 {
		return changes
	}
	kept := changes[:0]
	for _, c := range changes {
		if !configtree.MatchAny(c.Path, patterns) {
			kept = append(kept, c)
		}
	}
	return kept
}

func retainSensitive(changes []configtree.FieldChange, patterns []string) []configtree.FieldChange {
	if len(patterns) == 0 {
		return nil
	}
	kept := changes[:0]
	for _, c := range changes {
		if configtree.MatchAny(c.Path, patterns) {
			kept = append(kept, c)
		}
	}
	return kept
}

func anySensitive(changes []configtree.FieldChange, patterns []string) bool {
	for _, c := range changes {
		if configtree.MatchAny(c.Path, patterns) {
			return true
		}
	}
	return false
}

// Record flattens a change into its persisted form.
func (c *ExternalChange) Record() ([]string, map[string]any, map[string]any) {
	paths := make([]string, 0, len(c.ChangedFields))
	before := make(map[string]any)
	after := make(map[string]any)
	for _, f := range c.ChangedFields {
		paths = append(paths, f.Path)
		if f.OldValue != nil {
			before[f.Path] = f.OldValue
		}
		if f.NewValue != nil {
			after[f.Path] = f.NewValue
		}
	}
	return paths, before, after
}
