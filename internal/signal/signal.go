// Package signal coordinates out-of-band run control through the workspace
// metadata directory. A stop file asks the orchestrator to halt at the next
// state transition; a pause file asks it to hold before starting new work.
// Signals are plain files so a second process (or the user) can set them.
package signal

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Manager watches a workspace's signal directory for stop and pause files.
type Manager struct {
	signalsDir string

	mu    sync.RWMutex
	stop  bool
	pause bool

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewManager creates a signal manager rooted at the workspace's .quill
// directory. The fsnotify watcher is best effort: when it cannot start, the
// manager still works through the stat fallback in ShouldStop/ShouldPause.
func NewManager(workspaceRoot string) (*Manager, error) {
	signalsDir := filepath.Join(workspaceRoot, ".quill", "signals")
	if err := os.MkdirAll(signalsDir, 0755); err != nil {
		return nil, err
	}

	m := &Manager{
		signalsDir: signalsDir,
		done:       make(chan struct{}),
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return m, nil
	}
	if err := watcher.Add(signalsDir); err != nil {
		watcher.Close()
		return m, nil
	}
	m.watcher = watcher
	go m.watch()

	return m, nil
}

// watch monitors the signals directory for stop/pause files.
func (m *Manager) watch() {
	for {
		select {
		case <-m.done:
			return
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			m.mu.Lock()
			switch filepath.Base(event.Name) {
			case "stop":
				m.stop = true
			case "pause":
				m.pause = true
			}
			m.mu.Unlock()
		case <-m.watcher.Errors:
			// Keep watching; ShouldStop stats the file anyway.
		}
	}
}

// ShouldStop reports whether a stop signal is set. The signal file is
// stat'ed directly as well, in case the watcher missed the event.
func (m *Manager) ShouldStop() bool {
	if _, err := os.Stat(filepath.Join(m.signalsDir, "stop")); err == nil {
		m.mu.Lock()
		m.stop = true
		m.mu.Unlock()
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stop
}

// ShouldPause reports whether a pause signal is set.
func (m *Manager) ShouldPause() bool {
	if _, err := os.Stat(filepath.Join(m.signalsDir, "pause")); err == nil {
		m.mu.Lock()
		m.pause = true
		m.mu.Unlock()
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pause
}

// SendStop creates the stop signal file.
func (m *Manager) SendStop() error {
	path := filepath.Join(m.signalsDir, "stop")
	return os.WriteFile(path, []byte(time.Now().Format(time.RFC3339)), 0644)
}

// SendPause creates the pause signal file.
func (m *Manager) SendPause() error {
	path := filepath.Join(m.signalsDir, "pause")
	return os.WriteFile(path, []byte(time.Now().Format(time.RFC3339)), 0644)
}

// Clear removes all signal files and resets in-memory state.
func (m *Manager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stop = false
	m.pause = false

	for _, name := range []string{"stop", "pause"} {
		path := filepath.Join(m.signalsDir, name)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// Close shuts down the watcher.
func (m *Manager) Close() {
	close(m.done)
	if m.watcher != nil {
		m.watcher.Close()
	}
}
