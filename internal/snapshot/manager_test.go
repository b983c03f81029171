package snapshot

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/coolcache/coolcache/internal/config"
	"github.com/coolcache/coolcache/internal/keyspace"
)

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dump.rdb")

	ks := keyspace.New()
	ks.Set("greeting", []byte("hello"), keyspace.SetOptions{})

	m := New(path, nil, nil)
	if err := m.Save(ks); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected rdb file to exist: %v", err)
	}
	if ks.ChangeCounter() != 0 {
		t.Fatalf("expected change counter reset after save")
	}

	ks2 := keyspace.New()
	m2 := New(path, nil, nil)
	if err := m2.Load(ks2); err != nil {
		t.Fatalf("Load: %v", err)
	}
	v, ok := ks2.Get("greeting")
	if !ok || string(v) != "hello" {
		t.Fatalf("expected loaded value hello, got %q ok=%v", v, ok)
	}
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	m := New(filepath.Join(t.TempDir(), "missing.rdb"), nil, nil)
	ks := keyspace.New()
	if err := m.Load(ks); err != nil {
		t.Fatalf("expected no error for a missing file, got %v", err)
	}
}

func TestBGSaveCompletesAsynchronously(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dump.rdb")
	ks := keyspace.New()
	ks.Set("k", []byte("v"), keyspace.SetOptions{})

	m := New(path, nil, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	var saveErr error
	m.BGSave(ks, func(err error) {
		saveErr = err
		wg.Done()
	})
	wg.Wait()

	if saveErr != nil {
		t.Fatalf("BGSave: %v", saveErr)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected rdb file after bgsave: %v", err)
	}
}

func TestScheduleAccessorsCopy(t *testing.T) {
	m := New("unused.rdb", []config.SavePoint{{Seconds: 900, Changes: 1}}, nil)

	got := m.Schedule()
	if len(got) != 1 || got[0].Seconds != 900 {
		t.Fatalf("unexpected schedule: %v", got)
	}
	got[0].Seconds = 5
	if m.Schedule()[0].Seconds != 900 {
		t.Fatal("Schedule must return a copy, not the live slice")
	}

	m.SetSchedule(nil)
	if len(m.Schedule()) != 0 {
		t.Fatalf("expected cleared schedule, got %v", m.Schedule())
	}
}

func TestSetPathRedirectsFutureSaves(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "old.rdb")
	newPath := filepath.Join(dir, "new.rdb")

	ks := keyspace.New()
	ks.Set("k", []byte("v"), keyspace.SetOptions{})

	m := New(oldPath, nil, nil)
	m.SetPath(newPath)
	if err := m.Save(ks); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(newPath); err != nil {
		t.Fatalf("expected save at new path: %v", err)
	}
	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Fatal("old path must be untouched after SetPath")
	}
}

func TestAutoSaveFiresWhenThresholdMet(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dump.rdb")

	ks := keyspace.New()
	ks.Set("k", []byte("v"), keyspace.SetOptions{})

	m := New(path, []config.SavePoint{{Seconds: 1, Changes: 1}}, nil)
	past := time.Now().Add(-2 * time.Second)
	m.mu.Lock()
	m.lastSave = past
	m.mu.Unlock()

	m.maybeAutoSave(ks)

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := os.Stat(path); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("auto-save never produced the rdb file")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestAutoSaveSkipsWhenNoChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dump.rdb")

	ks := keyspace.New() // change counter is zero
	m := New(path, []config.SavePoint{{Seconds: 0, Changes: 0}}, nil)
	m.maybeAutoSave(ks)

	time.Sleep(50 * time.Millisecond)
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("auto-save must not fire with zero changes")
	}
}

func TestLastSaveAdvances(t *testing.T) {
	dir := t.TempDir()
	m := New(filepath.Join(dir, "dump.rdb"), nil, nil)
	before := m.LastSave()
	fixed := time.Unix(before+100, 0)
	now = func() time.Time { return fixed }
	defer func() { now = time.Now }()

	ks := keyspace.New()
	if err := m.Save(ks); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if m.LastSave() != fixed.Unix() {
		t.Fatalf("expected lastsave %d, got %d", fixed.Unix(), m.LastSave())
	}
}
