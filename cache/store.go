// Package cache persists the latest monitor results as small JSON files so
// that other processes (status checks, shell prompts) can read them without
// talking to the running monitor.
package cache

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"emperror.dev/errors"
)

// ErrNotFound is returned when a key has never been written or its file
// was unreadable and has been discarded.
var ErrNotFound = errors.Sentinel("cache entry not found")

// Store is a flat directory of JSON documents, one per key:
//
//	~/.cache/host-pulse/
//	  snapshot.json
//	  health.json
//
// Writes are atomic, so a reader never sees a half-written document.
type Store struct {
	dir    string
	logger *slog.Logger
}

// NewStore creates a cache store at the given directory.
// The directory is created with 0700 permissions if it does not exist.
// If logger is nil, a no-op logger is used.
func NewStore(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrapf(err, "cache: create directory %s", dir)
	}
	return &Store{dir: dir, logger: logger}, nil
}

// Dir returns the store directory.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) keyPath(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// Put encodes v and replaces the document for key. The temp file is
// renamed into place only after a complete write.
func (s *Store) Put(key string, v any) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "cache: marshal %s", key)
	}

	tmp, err := os.CreateTemp(s.dir, ".tmp-"+key+"-*.json")
	if err != nil {
		return errors.Wrapf(err, "cache: create temp for %s", key)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpName)
		}
	}()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return errors.Wrapf(err, "cache: chmod temp for %s", key)
	}
	if _, err := tmp.Write(encoded); err != nil {
		_ = tmp.Close()
		return errors.Wrapf(err, "cache: write temp for %s", key)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "cache: close temp for %s", key)
	}
	if err := os.Rename(tmpName, s.keyPath(key)); err != nil {
		return errors.Wrapf(err, "cache: rename temp for %s", key)
	}

	success = true
	return nil
}

// Get decodes the document for key into v and returns its write time.
// A document that no longer decodes is removed and reported as
// ErrNotFound.
func (s *Store) Get(key string, v any) (time.Time, error) {
	path := s.keyPath(key)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return time.Time{}, ErrNotFound
	}
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "cache: stat %s", key)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "cache: read %s", key)
	}

	if err := json.Unmarshal(data, v); err != nil {
		s.logger.Warn("cache: removing corrupted entry", "key", key, "error", err)
		_ = os.Remove(path)
		return time.Time{}, ErrNotFound
	}
	return info.ModTime(), nil
}

// GetTyped decodes the document for key as a T.
func GetTyped[T any](s *Store, key string) (*T, time.Time, error) {
	var out T
	mod, err := s.Get(key, &out)
	if err != nil {
		return nil, time.Time{}, err
	}
	return &out, mod, nil
}

// Age returns how old a cache entry is based on file modification time.
// Returns 0 if the entry does not exist.
func (s *Store) Age(key string) time.Duration {
	info, err := os.Stat(s.keyPath(key))
	if err != nil {
		return 0
	}
	return time.Since(info.ModTime())
}

// Remove deletes the document for key. Missing keys are not an error.
func (s *Store) Remove(key string) error {
	if err := os.Remove(s.keyPath(key)); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "cache: remove %s", key)
	}
	return nil
}
