// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pdiddy/paperwatch/pkg/types"
)

// DefaultFilePath is the history file used when none is configured.
const DefaultFilePath = "sent_history.json"

// FileStore keeps the history as a JSON array of keys in a local file.
type FileStore struct {
	path string
	keySet
}

// NewFileStore returns a store backed by the JSON file at path. The file
// is not read until Load.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the history file location.
func (s *FileStore) Path() string { return s.path }

// Load reads the history file. A missing file is an empty history.
func (s *FileStore) Load(_ context.Context) error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.reset(nil, false)
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading history %s: %w", s.path, err)
	}
	entries, err := decodeEntries(data)
	if err != nil {
		return fmt.Errorf("parsing history %s: %w", s.path, err)
	}
	s.reset(entries, true)
	return nil
}

// Contains reports whether p has been sent before.
func (s *FileStore) Contains(p types.CandidatePaper) bool { return s.contains(p) }

// Record buffers p for Persist.
func (s *FileStore) Record(p types.CandidatePaper) { s.record(p) }

// Len returns the number of known keys.
func (s *FileStore) Len() int { return s.len() }

// Keys returns every known key, sorted.
func (s *FileStore) Keys() []string { return s.keys() }

// Persist rewrites the file with every known key. The new content goes to
// a temporary file in the same directory which is then renamed over the
// old one, so a crash leaves either the old or the new history.
func (s *FileStore) Persist(_ context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}
	if !s.loaded {
		return ErrNotLoaded
	}
	data, err := encodeEntries(s.keys())
	if err != nil {
		return err
	}
	if err := writeFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("writing history %s: %w", s.path, err)
	}
	s.pending = nil
	return nil
}

// Close is a no-op.
func (s *FileStore) Close() error { return nil }

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".history-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// decodeEntries parses a JSON array of strings. An empty document is an
// empty history.
func decodeEntries(data []byte) ([]string, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var entries []string
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func encodeEntries(keys []string) ([]byte, error) {
	if keys == nil {
		keys = []string{}
	}
	data, err := json.MarshalIndent(keys, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding history: %w", err)
	}
	return append(data, '\n'), nil
}
