package cache

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"emperror.dev/errors"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	s, err := NewStore(dir, logger)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestPutGet(t *testing.T) {
	s := newTestStore(t)

	original := payload{Name: "test", Count: 42}
	if err := s.Put("mykey", original); err != nil {
		t.Fatalf("Put: %v", err)
	}

	var got payload
	mod, err := s.Get("mykey", &got)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != original {
		t.Errorf("got %+v, want %+v", got, original)
	}
	if time.Since(mod) > time.Minute {
		t.Errorf("modification time %v is not recent", mod)
	}
}

func TestGetTyped(t *testing.T) {
	s := newTestStore(t)

	if err := s.Put("typed", payload{Name: "x", Count: 7}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, _, err := GetTyped[payload](s, "typed")
	if err != nil {
		t.Fatalf("GetTyped: %v", err)
	}
	if got.Count != 7 {
		t.Errorf("Count = %d, want 7", got.Count)
	}
}

func TestGetMissing(t *testing.T) {
	s := newTestStore(t)

	var got payload
	_, err := s.Get("nope", &got)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get missing: err = %v, want ErrNotFound", err)
	}
}

func TestCorruptedFileIsRemoved(t *testing.T) {
	s := newTestStore(t)

	path := filepath.Join(s.Dir(), "broken.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	var got payload
	if _, err := s.Get("broken", &got); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get corrupted: err = %v, want ErrNotFound", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("corrupted file should have been removed")
	}
}

func TestAtomicWriteConcurrency(t *testing.T) {
	s := newTestStore(t)

	const goroutines = 20
	const iterations = 50

	var wg sync.WaitGroup
	wg.Add(goroutines)

	for g := 0; g < goroutines; g++ {
		go func(id int) {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				if err := s.Put("concurrent", payload{Name: "writer", Count: id*iterations + i}); err != nil {
					t.Errorf("goroutine %d iteration %d: Put: %v", id, i, err)
					return
				}
			}
		}(g)
	}

	wg.Wait()

	var got payload
	if _, err := s.Get("concurrent", &got); err != nil {
		t.Fatalf("final value unreadable: %v", err)
	}

	// No temp files may be left behind.
	matches, _ := filepath.Glob(filepath.Join(s.Dir(), ".tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestAge(t *testing.T) {
	s := newTestStore(t)

	if age := s.Age("missing"); age != 0 {
		t.Errorf("Age(missing) = %v, want 0", age)
	}

	if err := s.Put("aged", payload{}); err != nil {
		t.Fatal(err)
	}
	past := time.Now().Add(-10 * time.Minute)
	if err := os.Chtimes(filepath.Join(s.Dir(), "aged.json"), past, past); err != nil {
		t.Fatal(err)
	}
	if age := s.Age("aged"); age < 9*time.Minute {
		t.Errorf("Age = %v, want about 10m", age)
	}
}

func TestRemove(t *testing.T) {
	s := newTestStore(t)

	if err := s.Put("gone", payload{}); err != nil {
		t.Fatal(err)
	}
	if err := s.Remove("gone"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := s.Remove("gone"); err != nil {
		t.Fatalf("second Remove: %v", err)
	}
	var got payload
	if _, err := s.Get("gone", &got); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Remove: err = %v", err)
	}
}

func TestFilePermissions(t *testing.T) {
	s := newTestStore(t)

	if err := s.Put("perm", payload{}); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(filepath.Join(s.Dir(), "perm.json"))
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("file permissions = %o, want 600", perm)
	}
}

func TestDirectoryPermissions(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "cache")
	if _, err := NewStore(dir, nil); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o700 {
		t.Errorf("directory permissions = %o, want 700", perm)
	}
}
