package watch

import (
	"testing"

	"github.com/confdrift/confdrift/internal/snapshot"
	"github.com/confdrift/confdrift/internal/tools"
)

type noopLocker struct{}

func (noopLocker) Lock(tools.ID)   {}
func (noopLocker) Unlock(tools.ID) {}

func TestWatcherLifecycle(t *testing.T) {
	registry := tools.AllIn(t.TempDir())
	scanner := &Scanner{Snapshots: snapshot.NewStore(t.TempDir())}
	cfgStore := NewConfigStore(t.TempDir())

	w := NewWatcher(scanner, cfgStore, registry, noopLocker{}, func(*ExternalChange) {})

	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !w.Running() {
		t.Fatal("watcher not running after Start")
	}

	// Start is idempotent.
	if err := w.Start(); err != nil {
		t.Fatalf("second Start: %v", err)
	}

	w.Stop()
	if w.Running() {
		t.Fatal("watcher still running after Stop")
	}
	// Stop is idempotent.
	w.Stop()
}

func TestWatcherDisabledIsNoop(t *testing.T) {
	registry := tools.AllIn(t.TempDir())
	scanner := &Scanner{Snapshots: snapshot.NewStore(t.TempDir())}
	cfgStore := NewConfigStore(t.TempDir())

	cfg := DefaultConfig()
	cfg.Enabled = false
	if err := cfgStore.Update(cfg); err != nil {
		t.Fatalf("Update: %v", err)
	}

	w := NewWatcher(scanner, cfgStore, registry, noopLocker{}, func(*ExternalChange) {})
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if w.Running() {
		t.Fatal("disabled watcher must not run")
	}
}
