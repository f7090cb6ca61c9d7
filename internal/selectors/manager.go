package selectors

import (
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// ReloadStats reports how an external override file has been behaving.
type ReloadStats struct {
	LastReloadTime time.Time
	ReloadCount    int64
	LastError      error
}

// Manager serves the current MapSelectors, optionally overridden by an
// external YAML file that is hot-reloaded on write. Reads are lock-free
// (atomic.Value); mu guards only the reload stats and the closed flag.
type Manager struct {
	embedded     *MapSelectors
	current      atomic.Value // *MapSelectors
	externalPath string
	watcher      *fsnotify.Watcher
	stopCh       chan struct{}
	wg           sync.WaitGroup

	mu     sync.Mutex
	stats  ReloadStats
	closed bool
}

// NewManager builds a Manager seeded with the embedded defaults. If
// externalPath is non-empty it is loaded immediately, and if hotReload is
// true the file is watched for subsequent writes.
func NewManager(externalPath string, hotReload bool) (*Manager, error) {
	m := &Manager{
		embedded:     Get(),
		externalPath: externalPath,
		stopCh:       make(chan struct{}),
	}
	m.current.Store(m.embedded)

	if externalPath == "" {
		return m, nil
	}

	if err := m.reloadExternal(); err != nil {
		log.Warn().Err(err).Str("path", externalPath).Msg("failed to load external selectors, using embedded defaults")
	} else {
		log.Info().Str("path", externalPath).Msg("loaded external selector override")
	}

	if hotReload {
		if err := m.startWatcher(); err != nil {
			log.Warn().Err(err).Str("path", externalPath).Msg("failed to start selector file watcher")
		}
	}

	return m, nil
}

// Current returns the active selector set.
func (m *Manager) Current() *MapSelectors {
	return m.current.Load().(*MapSelectors)
}

// Stats returns a snapshot of reload activity.
func (m *Manager) Stats() ReloadStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// Close stops the file watcher, if any.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	close(m.stopCh)
	m.wg.Wait()
	if m.watcher != nil {
		return m.watcher.Close()
	}
	return nil
}

func (m *Manager) reloadExternal() error {
	data, err := os.ReadFile(m.externalPath)
	if err != nil {
		return err
	}
	merged := *m.embedded
	if err := yaml.Unmarshal(data, &merged); err != nil {
		return err
	}

	m.current.Store(&merged)

	m.mu.Lock()
	m.stats.LastReloadTime = time.Now()
	m.stats.ReloadCount++
	m.stats.LastError = nil
	m.mu.Unlock()
	return nil
}

func (m *Manager) startWatcher() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(m.externalPath); err != nil {
		_ = w.Close()
		return err
	}
	m.watcher = w

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for {
			select {
			case <-m.stopCh:
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := m.reloadExternal(); err != nil {
					m.mu.Lock()
					m.stats.LastError = err
					m.mu.Unlock()
					log.Warn().Err(err).Msg("selector hot-reload failed")
				} else {
					log.Info().Msg("selectors hot-reloaded")
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Msg("selector file watcher error")
			}
		}
	}()
	return nil
}
