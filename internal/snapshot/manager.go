// Package snapshot drives CoolCache's RDB save lifecycle: synchronous
// SAVE, background BGSAVE with point-in-time isolation, and the
// (seconds, changes) auto-save schedule's periodic tick.
package snapshot

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/coolcache/coolcache/internal/config"
	"github.com/coolcache/coolcache/internal/keyspace"
	"github.com/coolcache/coolcache/internal/rdb"
)

// now is overridable by tests.
var now = time.Now

// Manager owns the save path and last-save bookkeeping. It does not own
// the keyspace; Snapshot() is called against whatever *keyspace.Keyspace
// the caller hands it, so tests don't need a running server.
type Manager struct {
	mu       sync.Mutex
	path     string
	schedule []config.SavePoint
	log      *slog.Logger

	lastSave  time.Time
	bgRunning bool
}

func New(path string, schedule []config.SavePoint, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{path: path, schedule: schedule, log: log, lastSave: now()}
}

// Save performs a synchronous SAVE: snapshot, write to a temp file, fsync,
// atomic rename over the configured path. It blocks the caller for the
// duration of the write, matching SAVE's documented behavior of blocking
// the server.
func (m *Manager) Save(ks *keyspace.Keyspace) error {
	records := ks.Snapshot()
	if err := m.writeAtomic(records); err != nil {
		return err
	}
	m.mu.Lock()
	m.lastSave = now()
	m.mu.Unlock()
	ks.ResetChangeCounter()
	return nil
}

// BGSave takes the point-in-time snapshot synchronously (cheap: a
// structural clone under the keyspace's own lock) then hands the slow disk
// write to a goroutine, returning immediately. onDone is invoked with the
// result so the caller can log it; it may be nil.
func (m *Manager) BGSave(ks *keyspace.Keyspace, onDone func(error)) {
	m.mu.Lock()
	if m.bgRunning {
		m.mu.Unlock()
		if onDone != nil {
			onDone(fmt.Errorf("snapshot: background save already in progress"))
		}
		return
	}
	m.bgRunning = true
	m.mu.Unlock()

	records := ks.Snapshot()

	go func() {
		err := m.writeAtomic(records)
		m.mu.Lock()
		m.bgRunning = false
		if err == nil {
			m.lastSave = now()
		}
		m.mu.Unlock()
		if err == nil {
			ks.ResetChangeCounter()
		}
		if onDone != nil {
			onDone(err)
		}
	}()
}

func (m *Manager) writeAtomic(records []keyspace.Record) error {
	m.mu.Lock()
	path := m.path
	m.mu.Unlock()
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "coolcache-*.rdb.tmp")
	if err != nil {
		return fmt.Errorf("snapshot: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if err := rdb.Write(tmp, records); err != nil {
		tmp.Close()
		return fmt.Errorf("snapshot: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("snapshot: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("snapshot: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("snapshot: rename: %w", err)
	}
	return nil
}

// SetSchedule replaces the auto-save schedule at runtime (CONFIG SET save).
func (m *Manager) SetSchedule(schedule []config.SavePoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedule = schedule
}

// Schedule returns the current auto-save schedule (CONFIG GET save).
func (m *Manager) Schedule() []config.SavePoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]config.SavePoint(nil), m.schedule...)
}

// SetPath repoints future saves at a new file (CONFIG SET dir/dbfilename).
// The dataset already on disk at the old path is left untouched.
func (m *Manager) SetPath(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.path = path
}

// LastSave returns the unix timestamp (seconds) of the last completed save.
func (m *Manager) LastSave() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSave.Unix()
}

// Load reads the configured RDB path into the keyspace at startup.
// A missing file is not an error: the server simply starts empty.
func (m *Manager) Load(ks *keyspace.Keyspace) error {
	f, err := os.Open(m.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	records, err := rdb.Load(f)
	if err != nil {
		m.log.Error("rdb load failed, starting with an empty keyspace", "path", m.path, "err", err)
		return nil
	}
	ks.Load(records)
	return nil
}

// RunAutoSave blocks, ticking every interval and firing BGSave whenever the
// schedule's condition is met, until ctx-like done channel closes. The
// caller runs it in its own goroutine.
func (m *Manager) RunAutoSave(ks *keyspace.Keyspace, interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			m.maybeAutoSave(ks)
		}
	}
}

func (m *Manager) maybeAutoSave(ks *keyspace.Keyspace) {
	changes := ks.ChangeCounter()
	if changes == 0 {
		return
	}
	m.mu.Lock()
	last := m.lastSave
	schedule := m.schedule
	m.mu.Unlock()
	sinceLastSave := now().Sub(last)

	for _, p := range schedule {
		if sinceLastSave >= time.Duration(p.Seconds)*time.Second && int(changes) >= p.Changes {
			m.log.Info("auto-save triggered", "seconds", p.Seconds, "changes", p.Changes, "actual_changes", changes)
			m.BGSave(ks, func(err error) {
				if err != nil {
					m.log.Error("auto-save failed", "err", err)
				}
			})
			return
		}
	}
}
