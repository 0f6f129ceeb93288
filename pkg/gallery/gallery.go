// Package gallery persists captured images on disk together with a
// JSON index, pruning entries past a retention period.
package gallery

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Kind classifies how a capture was produced.
type Kind string

const (
	KindStill     Kind = "still"
	KindSample    Kind = "sample"
	KindTimelapse Kind = "timelapse"
	KindVideo     Kind = "video"
)

// Capture is one indexed entry.
type Capture struct {
	Name      string    `json:"name"`
	Kind      Kind      `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
}

// Store keeps capture files in a directory alongside an index.json.
// All file access is mutex-guarded; a corrupted index is treated as
// empty and overwritten by the next Add.
type Store struct {
	mu        sync.Mutex
	dir       string
	indexPath string
}

// New creates a store rooted at dir.
func New(dir string) *Store {
	return &Store{
		dir:       dir,
		indexPath: filepath.Join(dir, "index.json"),
	}
}

// Dir returns the store's root directory.
func (s *Store) Dir() string { return s.dir }

// Add writes data under name, records it in the index and prunes
// entries older than retention together with their files.
func (s *Store) Add(name string, kind Kind, data []byte, retention time.Duration) error {
	if err := validName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0644); err != nil {
		return err
	}

	items := s.readIndexLocked()
	items = append(items, Capture{Name: name, Kind: kind, Timestamp: time.Now()})

	cutoff := time.Now().Add(-retention)
	var recent []Capture
	for _, c := range items {
		if c.Timestamp.After(cutoff) {
			recent = append(recent, c)
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, c.Name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("prune %s: %w", c.Name, err)
		}
	}

	return s.writeIndexLocked(recent)
}

// Captures lists indexed entries in insertion order.
func (s *Store) Captures() ([]Capture, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readIndexLocked(), nil
}

// Path resolves name to a file inside the store, rejecting anything
// that would escape the directory.
func (s *Store) Path(name string) (string, error) {
	if err := validName(name); err != nil {
		return "", err
	}
	path := filepath.Join(s.dir, name)
	if _, err := os.Stat(path); err != nil {
		return "", err
	}
	return path, nil
}

func validName(name string) error {
	if name == "" || name == "index.json" ||
		strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return fmt.Errorf("invalid capture name %q", name)
	}
	return nil
}

func (s *Store) readIndexLocked() []Capture {
	data, err := os.ReadFile(s.indexPath)
	if err != nil || len(data) == 0 {
		return nil
	}
	var items []Capture
	if err := json.Unmarshal(data, &items); err != nil {
		// Corrupted index. Start fresh and let the next write replace it.
		return nil
	}
	return items
}

func (s *Store) writeIndexLocked(items []Capture) error {
	if items == nil {
		items = []Capture{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.indexPath, data, 0644)
}
