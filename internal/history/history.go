// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package history remembers which papers have already been emailed so a
// paper is never sent twice. A store is loaded once at the start of a run
// and persisted once after the digest is delivered; entries are never
// removed.
package history

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/pdiddy/paperwatch/internal/textutil"
	"github.com/pdiddy/paperwatch/pkg/types"
)

// Store is the persistent set of already-sent papers.
type Store interface {
	// Load reads the persisted history. A missing file or object is an
	// empty history, not an error.
	Load(ctx context.Context) error

	// Contains reports whether any key of p is in the history.
	Contains(p types.CandidatePaper) bool

	// Record buffers p for the next Persist.
	Record(p types.CandidatePaper)

	// Persist writes the loaded keys plus everything recorded since the
	// last Persist. It is a no-op when nothing was recorded.
	Persist(ctx context.Context) error

	// Len returns the number of distinct keys known to the store.
	Len() int

	// Keys returns every known key, sorted.
	Keys() []string

	Close() error
}

const titlePrefix = "title:"

// ErrNotLoaded is returned by Persist when Load was never called.
var ErrNotLoaded = errors.New("history persisted before load")

// Keys returns the history keys identifying p: its ID and its normalized
// title. Matching on either key catches the same paper reported by two
// backends under different IDs.
func Keys(p types.CandidatePaper) []string {
	var keys []string
	if id := strings.TrimSpace(p.ID); id != "" {
		keys = append(keys, id)
	}
	if t := textutil.NormalizeTitle(p.Title); t != "" {
		k := titlePrefix + t
		if !slices.Contains(keys, k) {
			keys = append(keys, k)
		}
	}
	return keys
}

// knownPrefixes mark entries written by this program. Anything else found
// in a JSON history is a bare paper title from the older title-list format.
var knownPrefixes = []string{titlePrefix, "arxiv:", "s2:", "openalex:", "10."}

// normalizeKey maps a stored entry to a key, converting legacy bare titles
// to their title key.
func normalizeKey(entry string) string {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return ""
	}
	for _, prefix := range knownPrefixes {
		if strings.HasPrefix(entry, prefix) {
			return entry
		}
	}
	if t := textutil.NormalizeTitle(entry); t != "" {
		return titlePrefix + t
	}
	return ""
}

// keySet is the in-memory state shared by every backend.
type keySet struct {
	known   map[string]struct{}
	pending []string
	loaded  bool
}

func (s *keySet) reset(entries []string, legacy bool) {
	s.known = make(map[string]struct{}, len(entries))
	s.pending = nil
	s.loaded = true
	for _, e := range entries {
		if legacy {
			e = normalizeKey(e)
		}
		if e != "" {
			s.known[e] = struct{}{}
		}
	}
}

func (s *keySet) contains(p types.CandidatePaper) bool {
	for _, k := range Keys(p) {
		if _, ok := s.known[k]; ok {
			return true
		}
	}
	return false
}

func (s *keySet) record(p types.CandidatePaper) {
	if s.known == nil {
		s.known = make(map[string]struct{})
	}
	for _, k := range Keys(p) {
		if _, ok := s.known[k]; ok {
			continue
		}
		s.known[k] = struct{}{}
		s.pending = append(s.pending, k)
	}
}

func (s *keySet) len() int { return len(s.known) }

func (s *keySet) keys() []string {
	out := make([]string, 0, len(s.known))
	for k := range s.known {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// New opens the store selected by cfg.Backend.
func New(cfg types.HistoryConfig) (Store, error) {
	switch cfg.Backend {
	case types.HistoryFile, "":
		path := cfg.Path
		if path == "" {
			path = DefaultFilePath
		}
		return NewFileStore(path), nil
	case types.HistorySQLite:
		path := cfg.Path
		if path == "" {
			path = DefaultSQLitePath
		}
		return NewSQLiteStore(path)
	case types.HistoryS3:
		return NewObjectStore(cfg)
	default:
		return nil, fmt.Errorf("unsupported history backend: %s", cfg.Backend)
	}
}
