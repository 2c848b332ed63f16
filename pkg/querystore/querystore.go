// Package querystore reads and writes the saved interest queries. The
// pipeline only ever reads; the write path serves the queries command.
package querystore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"carwatch/models"
)

// Load reads the ordered query list from path. A missing file yields an
// empty list. Query order is significant: the matcher reports the first
// matching query.
func Load(path string) ([]models.Query, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read queries: %w", err)
	}

	var queries []models.Query
	if err := json.Unmarshal(data, &queries); err != nil {
		return nil, fmt.Errorf("failed to parse queries: %w", err)
	}
	return queries, nil
}

// Save atomically writes the query list to path.
func Save(path string, queries []models.Query) error {
	if queries == nil {
		queries = []models.Query{}
	}
	data, err := json.MarshalIndent(queries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal queries: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "queries-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to write queries: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write queries: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write queries: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write queries: %w", err)
	}
	return nil
}
