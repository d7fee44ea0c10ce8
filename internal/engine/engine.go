// Package engine is the programmatic surface of confdrift: profile CRUD,
// watch configuration, the change log, drift resolution (allow/block) and
// the change-notification stream. It owns the single-writer-per-tool
// discipline; every mutation of a tool's active config, snapshot or
// backups runs under that tool's lock. Different tools proceed in
// parallel.
package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/confdrift/confdrift/internal/cferrors"
	"github.com/confdrift/confdrift/internal/changelog"
	"github.com/confdrift/confdrift/internal/profiles"
	"github.com/confdrift/confdrift/internal/snapshot"
	"github.com/confdrift/confdrift/internal/toolcfg"
	"github.com/confdrift/confdrift/internal/tools"
	"github.com/confdrift/confdrift/internal/watch"
)

// Engine wires the profile store, snapshot tracker, watcher, change queue
// and change log together behind one API.
type Engine struct {
	dataDir  string
	registry []tools.Tool

	snapshots *snapshot.Store
	changeLog *changelog.Store
	watchCfg  *watch.ConfigStore
	profiles  *profiles.Store
	scanner   *watch.Scanner
	queue     *watch.PendingQueue
	watcher   *watch.Watcher

	lockMu sync.Mutex
	locks  map[tools.ID]*sync.Mutex

	subMu sync.RWMutex
	subs  map[chan watch.ExternalChange]struct{}
}

// DefaultDataDir returns the engine data dir: $CONFDRIFT_DATA_DIR or
// ~/.confdrift.
func DefaultDataDir() string {
	if dir := os.Getenv("CONFDRIFT_DATA_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".confdrift"
	}
	return filepath.Join(home, ".confdrift")
}

// New creates an engine over the default tool registry.
func New(dataDir string) *Engine {
	return NewWithTools(dataDir, tools.All())
}

// NewWithTools creates an engine over an explicit registry. Tests point
// the registry at temp directories.
func NewWithTools(dataDir string, registry []tools.Tool) *Engine {
	snapshots := snapshot.NewStore(dataDir)
	e := &Engine{
		dataDir:   dataDir,
		registry:  registry,
		snapshots: snapshots,
		changeLog: changelog.NewStore(dataDir),
		watchCfg:  watch.NewConfigStore(dataDir),
		profiles:  profiles.NewStore(snapshots),
		scanner:   &watch.Scanner{Snapshots: snapshots},
		queue:     watch.NewPendingQueue(),
		locks:     make(map[tools.ID]*sync.Mutex),
		subs:      make(map[chan watch.ExternalChange]struct{}),
	}
	e.watcher = watch.NewWatcher(e.scanner, e.watchCfg, registry, e, e.handleChange)
	return e
}

// Init prepares the engine at startup: the data dir exists, pending
// change records from a previous run are expired, and every tool without
// a snapshot gets one seeded from disk so the first scan has a baseline.
func (e *Engine) Init() error {
	if err := os.MkdirAll(e.dataDir, 0700); err != nil {
		return cferrors.IOf("create data dir %s", e.dataDir)
	}
	if err := e.changeLog.MarkPendingExpired(); err != nil {
		log.Warn().Err(err).Msg("Cannot expire stale pending change records")
	}
	for _, t := range e.registry {
		snap, err := e.snapshots.Get(string(t.ID))
		if err != nil {
			return err
		}
		if snap != nil {
			continue
		}
		if err := e.scanner.SeedSnapshot(t); err != nil {
			log.Warn().Err(err).Str("tool", string(t.ID)).Msg("Cannot seed config snapshot")
		}
	}
	return nil
}

// Tools returns the managed tool registry.
func (e *Engine) Tools() []tools.Tool {
	return e.registry
}

// Lock acquires the tool's mutation lock (watch.Locker).
func (e *Engine) Lock(tool tools.ID) {
	e.lockFor(tool).Lock()
}

// Unlock releases the tool's mutation lock (watch.Locker).
func (e *Engine) Unlock(tool tools.ID) {
	e.lockFor(tool).Unlock()
}

func (e *Engine) lockFor(tool tools.ID) *sync.Mutex {
	e.lockMu.Lock()
	defer e.lockMu.Unlock()
	mu, ok := e.locks[tool]
	if !ok {
		mu = &sync.Mutex{}
		e.locks[tool] = mu
	}
	return mu
}

func (e *Engine) tool(id tools.ID) (tools.Tool, error) {
	t, ok := tools.ByIDIn(e.registry, id)
	if !ok {
		return tools.Tool{}, fmt.Errorf("unknown tool %q", id)
	}
	return t, nil
}

// SaveProfile saves the given managed values as a named profile and makes
// them the tool's active config.
func (e *Engine) SaveProfile(id tools.ID, name string, v toolcfg.Values) error {
	t, err := e.tool(id)
	if err != nil {
		return err
	}
	e.Lock(id)
	defer e.Unlock(id)
	return e.profiles.Save(t, name, v)
}

// ActivateProfile switches the tool's active config to a saved profile's
// managed values, preserving unmanaged fields.
func (e *Engine) ActivateProfile(id tools.ID, name string) error {
	t, err := e.tool(id)
	if err != nil {
		return err
	}
	e.Lock(id)
	defer e.Unlock(id)
	return e.profiles.Activate(t, name)
}

// ListProfiles returns the saved profiles for a tool.
func (e *Engine) ListProfiles(id tools.ID) ([]profiles.Profile, error) {
	t, err := e.tool(id)
	if err != nil {
		return nil, err
	}
	return e.profiles.List(t)
}

// DeleteProfile removes a saved profile's backup files.
func (e *Engine) DeleteProfile(id tools.ID, name string) error {
	t, err := e.tool(id)
	if err != nil {
		return err
	}
	e.Lock(id)
	defer e.Unlock(id)
	return e.profiles.Delete(t, name)
}

// GetWatchConfig returns the current watch configuration.
func (e *Engine) GetWatchConfig() (watch.Config, error) {
	return e.watchCfg.Get()
}

// UpdateWatchConfig persists a new watch configuration and restarts the
// watcher so interval and enablement changes take effect.
func (e *Engine) UpdateWatchConfig(cfg watch.Config) error {
	if err := e.watchCfg.Update(cfg); err != nil {
		return err
	}
	if e.watcher.Running() {
		e.watcher.Stop()
	}
	return e.watcher.Start()
}

// StartWatcher launches the drift-detection loops.
func (e *Engine) StartWatcher() error {
	return e.watcher.Start()
}

// StopWatcher cancels the drift-detection loops.
func (e *Engine) StopWatcher() {
	e.watcher.Stop()
}

// ScanOnce runs a single watcher tick for a tool, as the periodic loop
// would. Intended for tests and for a manual "check now".
func (e *Engine) ScanOnce(id tools.ID) (*watch.ExternalChange, error) {
	t, err := e.tool(id)
	if err != nil {
		return nil, err
	}
	e.Lock(id)
	defer e.Unlock(id)

	cfg, err := e.watchCfg.Get()
	if err != nil {
		return nil, err
	}
	change, err := e.scanner.Scan(t, cfg)
	if err != nil {
		return nil, err
	}
	if change != nil {
		e.handleChange(change)
	}
	return change, nil
}

// handleChange is the watcher sink: record the change, queue it as the
// tool's pending entry, and notify subscribers.
func (e *Engine) handleChange(change *watch.ExternalChange) {
	paths, before, after := change.Record()
	record := changelog.Record{
		Tool:          string(change.Tool),
		Timestamp:     time.Now().UTC(),
		ChangedFields: paths,
		IsSensitive:   change.IsSensitive,
		BeforeValues:  before,
		AfterValues:   after,
	}
	if err := e.changeLog.Add(record); err != nil {
		log.Error().Err(err).Str("tool", string(change.Tool)).Msg("Cannot persist change record")
	}
	if superseded := e.queue.Put(change); superseded {
		log.Debug().Str("tool", string(change.Tool)).Msg("Pending change superseded by newer drift")
	}
	e.broadcast(*change)
}

// PendingChange returns the tool's unresolved external change, if any.
func (e *Engine) PendingChange(id tools.ID) *watch.ExternalChange {
	return e.queue.Get(id)
}

// Allow accepts the pending drift: the current on-disk state becomes the
// new snapshot baseline and the log records the decision.
func (e *Engine) Allow(id tools.ID) error {
	t, err := e.tool(id)
	if err != nil {
		return err
	}
	e.Lock(id)
	defer e.Unlock(id)

	if err := e.scanner.SeedSnapshot(t); err != nil {
		return fmt.Errorf("accept drift: %w", err)
	}
	e.queue.Take(id)
	if err := e.changeLog.UpdateAction(string(id), changelog.ActionAllow); err != nil {
		log.Warn().Err(err).Str("tool", string(id)).Msg("No pending change record to resolve")
	}
	log.Info().Str("tool", string(id)).Msg("External change allowed, snapshot updated")
	return nil
}

// Block rejects the pending drift: every managed path is restored to the
// exact value the snapshot holds, set-if-missing defaults included.
// Unmanaged fields the external edit introduced stay; only managed paths
// are overwritten.
func (e *Engine) Block(id tools.ID) error {
	t, err := e.tool(id)
	if err != nil {
		return err
	}
	e.Lock(id)
	defer e.Unlock(id)

	snap, err := e.snapshots.Get(string(id))
	if err != nil {
		return err
	}
	if snap == nil {
		return cferrors.NotFoundf("no snapshot for %s", id)
	}

	adapter, err := toolcfg.New(t)
	if err != nil {
		return err
	}
	active, err := adapter.Load()
	if err != nil {
		return err
	}
	merged := adapter.RestoreManagedFields(active, toolcfg.Files(snap.Files))
	if err := adapter.WriteActive(merged); err != nil {
		return fmt.Errorf("restore active config: %w", err)
	}
	if err := e.snapshots.Save(string(id), merged); err != nil {
		return fmt.Errorf("update snapshot: %w", err)
	}

	e.queue.Take(id)
	if err := e.changeLog.UpdateAction(string(id), changelog.ActionBlock); err != nil {
		log.Warn().Err(err).Str("tool", string(id)).Msg("No pending change record to resolve")
	}
	log.Info().Str("tool", string(id)).Msg("External change blocked, managed fields restored")
	return nil
}

// GetChangeLogPage returns one page of change records and the total count.
func (e *Engine) GetChangeLogPage(page, pageSize int) ([]changelog.Record, int, error) {
	return e.changeLog.Page(page, pageSize)
}

// RecentChanges returns up to limit newest change records, optionally
// filtered to one tool.
func (e *Engine) RecentChanges(id tools.ID, limit int) ([]changelog.Record, error) {
	return e.changeLog.Recent(string(id), limit)
}

// ClearChangeLogs removes change records, all of them or one tool's.
func (e *Engine) ClearChangeLogs(id tools.ID) error {
	if id == "" {
		return e.changeLog.ClearAll()
	}
	return e.changeLog.ClearTool(string(id))
}

// Subscribe registers a change-notification channel. The returned cancel
// function unregisters it. Slow subscribers drop notifications rather
// than stalling the watcher.
func (e *Engine) Subscribe() (<-chan watch.ExternalChange, func()) {
	ch := make(chan watch.ExternalChange, 16)
	e.subMu.Lock()
	e.subs[ch] = struct{}{}
	e.subMu.Unlock()

	cancel := func() {
		e.subMu.Lock()
		if _, ok := e.subs[ch]; ok {
			delete(e.subs, ch)
			close(ch)
		}
		e.subMu.Unlock()
	}
	return ch, cancel
}

func (e *Engine) broadcast(change watch.ExternalChange) {
	e.subMu.RLock()
	defer e.subMu.RUnlock()
	for ch := range e.subs {
		select {
		case ch <- change:
		default:
		}
	}
}
