// Package changelog persists the bounded history of detected external
// config changes and the user's decisions about them.
package changelog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/confdrift/confdrift/internal/cferrors"
)

const (
	logFile = "config_watch_logs.json"

	// MaxRecords caps the log; the oldest records are evicted first.
	MaxRecords = 100
)

// Actions recorded against a change. An empty action means the change is
// still pending a user decision.
const (
	ActionAllow      = "allow"
	ActionBlock      = "block"
	ActionSuperseded = "superseded"
	ActionExpired    = "expired"
)

// Record is one detected external change, newest first in the log.
type Record struct {
	Tool          string         `json:"tool_id"`
	Timestamp     time.Time      `json:"timestamp"`
	ChangedFields []string       `json:"changed_fields"`
	IsSensitive   bool           `json:"is_sensitive"`
	BeforeValues  map[string]any `json:"before_values,omitempty"`
	AfterValues   map[string]any `json:"after_values,omitempty"`
	Action        string         `json:"action,omitempty"`
}

type logState struct {
	Records []Record `json:"records"`
}

// Store reads and writes the change log file under the engine data dir.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore creates a change log store rooted at dataDir.
func NewStore(dataDir string) *Store {
	return &Store{path: filepath.Join(dataDir, logFile)}
}

// Add appends a record. A still-pending record for the same tool is
// marked superseded first: only the newest drift per tool is actionable.
func (s *Store) Add(record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load()
	if err != nil {
		return err
	}
	for i := range st.Records {
		if st.Records[i].Tool == record.Tool && st.Records[i].Action == "" {
			st.Records[i].Action = ActionSuperseded
		}
	}
	st.Records = append([]Record{record}, st.Records...)
	if len(st.Records) > MaxRecords {
		st.Records = st.Records[:MaxRecords]
	}
	return s.write(st)
}

// UpdateAction resolves the newest pending record for a tool. Returns
// ErrNotFound when nothing is pending.
func (s *Store) UpdateAction(tool, action string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load()
	if err != nil {
		return err
	}
	for i := range st.Records {
		if st.Records[i].Tool == tool && st.Records[i].Action == "" {
			st.Records[i].Action = action
			return s.write(st)
		}
	}
	return cferrors.NotFoundf("no pending change record for %s", tool)
}

// MarkPendingExpired expires every pending record. Run at startup: a
// notification that survived a restart is no longer actionable.
func (s *Store) MarkPendingExpired() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load()
	if err != nil {
		return err
	}
	changed := false
	for i := range st.Records {
		if st.Records[i].Action == "" {
			st.Records[i].Action = ActionExpired
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return s.write(st)
}

// Page returns one page of records (newest first) and the total count.
// Pages are 1-based.
func (s *Store) Page(page, pageSize int) ([]Record, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load()
	if err != nil {
		return nil, 0, err
	}
	total := len(st.Records)
	if pageSize <= 0 {
		return nil, total, nil
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * pageSize
	if start >= total {
		return []Record{}, total, nil
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	out := make([]Record, end-start)
	copy(out, st.Records[start:end])
	return out, total, nil
}

// Recent returns up to limit newest records, optionally filtered by tool.
func (s *Store) Recent(tool string, limit int) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load()
	if err != nil {
		return nil, err
	}
	var out []Record
	for _, r := range st.Records {
		if tool != "" && r.Tool != tool {
			continue
		}
		out = append(out, r)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// ClearTool removes every record for one tool.
func (s *Store) ClearTool(tool string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load()
	if err != nil {
		return err
	}
	kept := st.Records[:0]
	for _, r := range st.Records {
		if r.Tool != tool {
			kept = append(kept, r)
		}
	}
	st.Records = kept
	return s.write(st)
}

// ClearAll removes every record.
func (s *Store) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(&logState{})
}

func (s *Store) load() (*logState, error) {
	st := &logState{}
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
	return st, nil
}

func (s *Store) write(st *logState) error {
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
