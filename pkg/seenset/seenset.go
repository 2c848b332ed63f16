// Package seenset tracks listing identities that have already produced
// an alert. Entries are never removed.
package seenset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Set is the durable already-alerted set, loaded whole at run start and
// written whole on Flush.
type Set struct {
	path  string
	items map[string]struct{}
}

// Load reads the set from path. A missing file yields an empty set.
func Load(path string) (*Set, error) {
	s := &Set{
		path:  path,
		items: make(map[string]struct{}),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read seen set: %w", err)
	}

	var urls []string
	if err := json.Unmarshal(data, &urls); err != nil {
		return nil, fmt.Errorf("failed to parse seen set: %w", err)
	}
	for _, u := range urls {
		s.items[u] = struct{}{}
	}
	return s, nil
}

// Contains reports whether url has already produced an alert.
func (s *Set) Contains(url string) bool {
	_, ok := s.items[url]
	return ok
}

// Add marks url as alerted. Durable only after Flush.
func (s *Set) Add(url string) {
	s.items[url] = struct{}{}
}

// Len returns the number of alerted identities.
func (s *Set) Len() int { return len(s.items) }

// Items returns the alerted identities in sorted order.
func (s *Set) Items() []string {
	urls := make([]string, 0, len(s.items))
	for u := range s.items {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return urls
}

// Snapshot returns an exclusion copy for the paginator. Mutating the
// set afterwards does not affect the snapshot.
func (s *Set) Snapshot() map[string]struct{} {
	snap := make(map[string]struct{}, len(s.items))
	for u := range s.items {
		snap[u] = struct{}{}
	}
	return snap
}

// Flush atomically writes the whole set as a sorted JSON array.
func (s *Set) Flush() error {
	data, err := json.MarshalIndent(s.Items(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal seen set: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "sent-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to write seen set: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write seen set: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write seen set: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write seen set: %w", err)
	}
	return nil
}
