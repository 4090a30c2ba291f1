package cache

import (
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const fileSuffix = ".json"

// FileStore keeps one JSON envelope per entry in a directory.
type FileStore struct {
	dir string
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates the directory if needed and returns a store over it.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("cache: resolve cache dir: %w", err)
		}
		dir = filepath.Join(base, "go-ogc-client")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("cache: create %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the directory holding the entries.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) Get(_ context.Context, key string) (*Entry, error) {
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("cache: read %s: %w", key, err)
	}
	e, err := decodeEnvelope(data)
	if err != nil {
		return nil, fmt.Errorf("cache: decode %s: %w", key, err)
	}
	// Distinct keys can sanitize to the same file name.
	if e.Key != key {
		return nil, ErrNotFound
	}
	return e, nil
}

func (s *FileStore) Set(_ context.Context, e *Entry) error {
	data, err := encodeEnvelope(e)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", e.Key, err)
	}

	// Write to a temporary file first, then rename.
	path := s.path(e.Key)
	tmpPath := path + fmt.Sprintf(".tmp.%d", rand.Int())
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("cache: write %s: %w", e.Key, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("cache: write %s: %w", e.Key, err)
	}
	return nil
}

func (s *FileStore) Delete(_ context.Context, key string) error {
	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("cache: delete %s: %w", key, err)
	}
	return nil
}

func (s *FileStore) Purge(_ context.Context, now time.Time) (int, error) {
	names, err := s.entryFiles()
	if err != nil {
		return 0, err
	}
	var n int
	for _, path := range names {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		e, err := decodeEnvelope(data)
		if err != nil || e.Expired(now) {
			if os.Remove(path) == nil {
				n++
			}
		}
	}
	return n, nil
}

func (s *FileStore) Clear(_ context.Context) error {
	names, err := s.entryFiles()
	if err != nil {
		return err
	}
	for _, path := range names {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("cache: clear: %w", err)
		}
	}
	return nil
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) entryFiles() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("cache: list %s: %w", s.dir, err)
	}
	var paths []string
	for _, de := range entries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), fileSuffix) {
			continue
		}
		paths = append(paths, filepath.Join(s.dir, de.Name()))
	}
	return paths, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, sanitizeKey(key)+fileSuffix)
}

// sanitizeKey makes key usable as a file name. Long keys are hashed to stay
// within file system limits.
func sanitizeKey(key string) string {
	if len(key) > 200 {
		return fmt.Sprintf("hash_%x", md5.Sum([]byte(key)))
	}
	replacer := strings.NewReplacer(
		"/", "_", "\\", "_", ":", "_", "?", "_", "&", "_", "=", "_",
		"#", "_", "<", "_", ">", "_", "|", "_", "*", "_", "\"", "_",
	)
	return replacer.Replace(key)
}
