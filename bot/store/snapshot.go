// Package store persists whole-file JSON snapshots. A snapshot is rewritten
// in full on every mutation: the writer serializes into a temporary file in
// the same directory and renames it over the target, so readers never observe
// a partially written file. A missing file reads as an empty store.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/telefoot/telefoot-bot/core/logger"
)

// Snapshot binds a JSON snapshot to a file path.
type Snapshot struct {
	path string
}

// NewSnapshot returns a snapshot handle for the given path. The parent
// directory is created if it does not exist.
func NewSnapshot(path string) (*Snapshot, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create dir %s: %w", dir, err)
	}
	return &Snapshot{path: path}, nil
}

// Path returns the backing file path.
func (s *Snapshot) Path() string {
	return s.path
}

// Exists reports whether the backing file is present on disk.
func (s *Snapshot) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Load decodes the snapshot into v. A missing file is not an error; it
// reports found=false and leaves v untouched.
func (s *Snapshot) Load(v any) (found bool, err error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("store: read %s: %w", s.path, err)
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("store: decode %s: %w", s.path, err)
	}
	return true, nil
}

// Save writes v as the new snapshot. The write is atomic at the file level:
// temp file, fsync, rename.
func (s *Snapshot) Save(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", s.path, err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("store: temp file for %s: %w", s.path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("store: write %s: %w", s.path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("store: sync %s: %w", s.path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("store: close %s: %w", s.path, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("store: replace %s: %w", s.path, err)
	}

	logger.Debug(context.Background(), "store", "store.save",
		slog.String("path", s.path),
		slog.Int("bytes", len(data)),
	)
	return nil
}
