// Package recordstore persists extracted Records in rollover-bounded
// YAML shard files, deduplicating on write.
package recordstore

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"carwatch/models"
)

// ErrWrite marks a storage write failure. It is fatal: the run must
// abort rather than risk a half-written shard.
var ErrWrite = errors.New("record store write failed")

// DefaultCapacity is the record limit of one shard file.
const DefaultCapacity = 3000

const (
	shardPrefix = "vehicles_data_"
	shardSuffix = ".yaml"
)

// Store is a durable, append-only record store. One shard file is
// active at a time; a shard is never reopened once rolled.
type Store struct {
	dir      string
	capacity int
	shardNum int
	records  map[string]models.Record
	dirty    bool
	logger   *slog.Logger
}

// Open prepares the store in dir, resuming the highest-numbered shard
// if one exists. capacity <= 0 selects DefaultCapacity.
func Open(dir string, capacity int, logger *slog.Logger) (*Store, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWrite, err)
	}

	s := &Store{
		dir:      dir,
		capacity: capacity,
		shardNum: 1,
		records:  make(map[string]models.Record),
		logger:   logger.With("component", "recordstore"),
	}

	latest, err := latestShard(dir)
	if err != nil {
		return nil, err
	}
	if latest > 0 {
		s.shardNum = latest
		data, err := os.ReadFile(s.shardPath(latest))
		if err != nil {
			return nil, fmt.Errorf("failed to read shard %d: %w", latest, err)
		}
		if err := yaml.Unmarshal(data, &s.records); err != nil {
			return nil, fmt.Errorf("failed to parse shard %d: %w", latest, err)
		}
		if s.records == nil {
			s.records = make(map[string]models.Record)
		}
	}
	return s, nil
}

// AppendBatch stores the batch's records, skipping identities already
// in the active shard, and returns the number of newly written records.
// Re-appending an already-stored batch is a no-op.
func (s *Store) AppendBatch(records []models.Record) (int, error) {
	added := 0
	for _, rec := range records {
		if _, ok := s.records[rec.URL]; ok {
			continue
		}
		s.records[rec.URL] = rec
		s.dirty = true
		added++

		if len(s.records) >= s.capacity {
			if err := s.persist(); err != nil {
				return added, err
			}
			s.logger.Info("shard rolled over",
				"shard", s.shardNum, "records", len(s.records))
			s.shardNum++
			s.records = make(map[string]models.Record)
			s.dirty = false
		}
	}

	if s.dirty {
		if err := s.persist(); err != nil {
			return added, err
		}
		s.dirty = false
		s.logger.Info("appended records", "added", added, "shard", s.shardNum)
	}
	return added, nil
}

// ActiveShard returns the number of the shard currently accepting
// writes.
func (s *Store) ActiveShard() int { return s.shardNum }

// ActiveCount returns the record count of the active shard.
func (s *Store) ActiveCount() int { return len(s.records) }

// persist atomically publishes the active shard: write to a temp file
// in the same directory, then rename over the target.
func (s *Store) persist() error {
	data, err := yaml.Marshal(s.records)
	if err != nil {
		return fmt.Errorf("%w: marshal shard %d: %v", ErrWrite, s.shardNum, err)
	}

	target := s.shardPath(s.shardNum)
	tmp, err := os.CreateTemp(s.dir, shardPrefix+"*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	return nil
}

func (s *Store) shardPath(n int) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s%d%s", shardPrefix, n, shardSuffix))
}

// latestShard returns the highest shard number present in dir, or 0.
func latestShard(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to list shards: %w", err)
	}

	var nums []int
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, shardPrefix) || !strings.HasSuffix(name, shardSuffix) {
			continue
		}
		raw := strings.TrimSuffix(strings.TrimPrefix(name, shardPrefix), shardSuffix)
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			continue
		}
		nums = append(nums, n)
	}
	if len(nums) == 0 {
		return 0, nil
	}
	sort.Ints(nums)
	return nums[len(nums)-1], nil
}
