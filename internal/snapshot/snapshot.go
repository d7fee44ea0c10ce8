// Package snapshot persists the engine's last-accepted view of each
// tool's active config. The watcher diffs disk against it; block restores
// from it. Only programmatic writes and an explicit allow update it.
package snapshot

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/confdrift/confdrift/internal/cferrors"
	"github.com/confdrift/confdrift/internal/configtree"
)

const snapshotsFile = "config_snapshots.json"

// Snapshot is one tool's last-accepted config content, one tree per
// active file.
type Snapshot struct {
	Tool        string                     `json:"tool_id"`
	Files       map[string]configtree.Tree `json:"files"`
	LastUpdated time.Time                  `json:"last_updated"`
}

type store struct {
	Snapshots map[string]Snapshot `json:"snapshots"`
}

// Store reads and writes the snapshot file under the engine data dir.
type Store struct {
	mu   sync.RWMutex
	path string
}

// NewStore creates a snapshot store rooted at dataDir.
func NewStore(dataDir string) *Store {
	return &Store{path: filepath.Join(dataDir, snapshotsFile)}
}

// Get returns the snapshot for a tool, or nil if none has been taken.
func (s *Store) Get(tool string) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, err := s.load()
	if err != nil {
		return nil, err
	}
	snap, ok := st.Snapshots[tool]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

// Save replaces a tool's snapshot with the given file trees.
func (s *Store) Save(tool string, files map[string]configtree.Tree) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load()
	if err != nil {
		return err
	}
	normalized := make(map[string]configtree.Tree, len(files))
	for name, tree := range files {
		normalized[name] = configtree.CloneTree(tree)
	}
	st.Snapshots[tool] = Snapshot{
		Tool:        tool,
		Files:       normalized,
		LastUpdated: time.Now().UTC(),
	}
	if err := s.write(st); err != nil {
		return err
	}
	log.Debug().Str("tool", tool).Int("files", len(files)).Msg("Snapshot saved")
	return nil
}

// Delete removes a tool's snapshot.
func (s *Store) Delete(tool string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load()
	if err != nil {
		return err
	}
	delete(st.Snapshots, tool)
	return s.write(st)
}

func (s *Store) load() (*store, error) {
	st := &store{Snapshots: map[string]Snapshot{}}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return st, nil
		}
		return nil, cferrors.IOf("read %s", s.path)
	}
	if len(data) == 0 {
		return st, nil
	}
	if err := json.Unmarshal(data, st); err != nil {
		return nil, cferrors.Parsef("parse %s: %v", s.path, err)
	}
	if st.Snapshots == nil {
		st.Snapshots = map[string]Snapshot{}
	}
	return st, nil
}

func (s *Store) write(st *store) error {
	data, err := json.MarshalIndent(st, "", "  ")
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
