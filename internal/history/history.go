// Package history keeps the receive history: completed incoming transfers,
// newest first, capped at a fixed number of entries.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/jsonc"

	"github.com/deckshare/localsend-bridge/internal/constants"
	"github.com/deckshare/localsend-bridge/internal/util/atomicfile"
)

// ErrNotFound is returned when deleting an id that is not in the history.
var ErrNotFound = errors.New("item not found")

// Entry is one completed transfer.
type Entry struct {
	ID         string   `json:"id"`
	Timestamp  float64  `json:"timestamp"` // seconds since the epoch
	Title      string   `json:"title"`
	FolderPath string   `json:"folderPath"`
	FileCount  int      `json:"fileCount"`
	Files      []string `json:"files"`
}

// Time converts Timestamp back to a time.Time.
func (e Entry) Time() time.Time {
	sec := int64(e.Timestamp)
	nsec := int64((e.Timestamp - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec)
}

// Store is the in-memory history mirrored to a JSON array on disk. The
// in-memory list is authoritative for the process lifetime; every mutation
// is flushed and a failed flush leaves the mutation in place.
type Store struct {
	mu      sync.RWMutex
	path    string
	limit   int
	entries []Entry
	now     func() time.Time
}

// NewStore creates an empty store backed by path.
func NewStore(path string) *Store {
	return &Store{
		path:    path,
		limit:   constants.MaxHistoryEntries,
		entries: []Entry{},
		now:     time.Now,
	}
}

// Path returns the history file location.
func (s *Store) Path() string {
	return s.path
}

// Load replaces the in-memory list with the file contents. A missing file
// is an empty history; an unreadable one leaves the history empty and
// returns the error.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = []Entry{}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read history: %w", err)
	}

	var entries []Entry
	if err := json.Unmarshal(jsonc.ToJSON(data), &entries); err != nil {
		return fmt.Errorf("failed to parse history: %w", err)
	}
	if len(entries) > s.limit {
		entries = entries[:s.limit]
	}
	s.entries = entries
	return nil
}

// Add records a transfer at the head of the list and truncates the tail.
// The entry is returned even when the flush fails.
func (s *Store) Add(folderPath string, files []string, title string) (Entry, error) {
	if title == "" {
		title = constants.DefaultHistoryTitle
	}
	if files == nil {
		files = []string{}
	}
	now := s.now()
	entry := Entry{
		ID:         fmt.Sprintf("recv-%d-%s", now.UnixMilli(), uuid.NewString()[:8]),
		Timestamp:  float64(now.UnixMilli()) / 1000,
		Title:      title,
		FolderPath: folderPath,
		FileCount:  len(files),
		Files:      files,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append([]Entry{entry}, s.entries...)
	if len(s.entries) > s.limit {
		s.entries = s.entries[:s.limit]
	}
	return entry, s.saveLocked()
}

// List returns a copy of the history, newest first.
func (s *Store) List() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Clear empties the history and flushes.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = []Entry{}
	return s.saveLocked()
}

// Delete removes the entry with id. It returns ErrNotFound, without
// touching the file, when no entry matches.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(s.entries) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.entries = kept
	return s.saveLocked()
}

// Reset drops the in-memory list and deletes the file.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = []Entry{}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete history: %w", err)
	}
	return nil
}

// saveLocked must be called with s.mu held.
func (s *Store) saveLocked() error {
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}
	if err := atomicfile.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("failed to save history: %w", err)
	}
	return nil
}
