package watch

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/confdrift/confdrift/internal/tools"
)

// debounce delays event-triggered scans so a burst of writes from an
// editor lands as one scan.
const debounce = 500 * time.Millisecond

// Locker serializes per-tool mutations. The engine passes its per-tool
// mutexes so a scan never interleaves with a save, activate or block.
type Locker interface {
	Lock(tool tools.ID)
	Unlock(tool tools.ID)
}

// Watcher runs one cancellable periodic scan loop per tool, with fsnotify
// events triggering immediate (debounced) scans between ticks. Detected
// changes go to the sink; the watcher itself never touches the snapshot
// of a tool that already has one.
type Watcher struct {
	scanner  *Scanner
	cfgStore *ConfigStore
	toolset  []tools.Tool
	locker   Locker
	sink     func(*ExternalChange)

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	fsw      *fsnotify.Watcher
}

// NewWatcher wires a watcher. The sink receives every surfaced change and
// is responsible for recording and queueing it.
func NewWatcher(scanner *Scanner, cfgStore *ConfigStore, toolset []tools.Tool, locker Locker, sink func(*ExternalChange)) *Watcher {
	return &Watcher{
		scanner:  scanner,
		cfgStore: cfgStore,
		toolset:  toolset,
		locker:   locker,
		sink:     sink,
	}
}

// Start launches the scan loops. A disabled watch config makes Start a
// no-op; call Start again after enabling.
func (w *Watcher) Start() error {
	cfg, err := w.cfgStore.Get()
	if err != nil {
		return err
	}
	if !cfg.Enabled {
		log.Info().Msg("Config watch disabled, not starting watcher")
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warn().Err(err).Msg("fsnotify unavailable, relying on polling only")
		fsw = nil
	}

	w.stopChan = make(chan struct{})
	w.fsw = fsw
	w.running = true

	triggers := make(map[tools.ID]chan struct{}, len(w.toolset))
	for _, t := range w.toolset {
		trigger := make(chan struct{}, 1)
		triggers[t.ID] = trigger
		if fsw != nil {
			if err := fsw.Add(t.ConfigDir); err != nil {
				log.Debug().Err(err).Str("dir", t.ConfigDir).Msg("Cannot watch config dir")
			}
		}
		go w.watchTool(t, trigger, cfg.ScanInterval())
	}
	if fsw != nil {
		go w.dispatchEvents(triggers)
	}

	log.Info().
		Dur("interval", cfg.ScanInterval()).
		Str("mode", string(cfg.Mode)).
		Msg("Config watcher started")
	return nil
}

// Stop cancels all scan loops. Safe to call when not running.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	close(w.stopChan)
	if w.fsw != nil {
		w.fsw.Close()
		w.fsw = nil
	}
	w.running = false
	log.Info().Msg("Config watcher stopped")
}

// Running reports whether the scan loops are active.
func (w *Watcher) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// dispatchEvents routes fsnotify events to the owning tool's trigger
// channel.
func (w *Watcher) dispatchEvents(triggers map[tools.ID]chan struct{}) {
	fsw := w.fsw
	for {
		select {
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			for _, t := range w.toolset {
				if !w.isToolFile(t, event.Name) {
					continue
				}
				select {
				case triggers[t.ID] <- struct{}{}:
				default:
				}
				break
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("Config watcher fsnotify error")
		case <-w.stopChan:
			return
		}
	}
}

func (w *Watcher) isToolFile(t tools.Tool, path string) bool {
	for _, f := range t.Files {
		if t.FilePath(f.Name) == path {
			return true
		}
	}
	return false
}

// watchTool is the per-tool loop: Idle until the ticker fires or an event
// arrives, then one scan, then Idle again.
func (w *Watcher) watchTool(t tools.Tool, trigger <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.runScan(t)
		case <-trigger:
			// Let the external writer finish before reading.
			time.Sleep(debounce)
			select {
			case <-trigger:
			default:
			}
			w.runScan(t)
		case <-w.stopChan:
			return
		}
	}
}

// runScan executes one tick under the tool's lock. Scan errors are local:
// logged, never fatal to the loop.
func (w *Watcher) runScan(t tools.Tool) {
	w.locker.Lock(t.ID)
	defer w.locker.Unlock(t.ID)

	cfg, err := w.cfgStore.Get()
	if err != nil {
		log.Warn().Err(err).Msg("Cannot read watch config, skipping scan")
		return
	}
	if !cfg.Enabled {
		return
	}

	change, err := w.scanner.Scan(t, cfg)
	if err != nil {
		log.Warn().Err(err).Str("tool", string(t.ID)).Msg("Config scan failed")
		return
	}
	if change == nil {
		return
	}

	log.Info().
		Str("tool", string(t.ID)).
		Int("fields", len(change.ChangedFields)).
		Bool("sensitive", change.IsSensitive).
		Msg("Detected external config change")
	w.sink(change)
}
