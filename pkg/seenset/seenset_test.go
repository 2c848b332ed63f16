package seenset

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFile(t *testing.T) {
	set, err := Load(filepath.Join(t.TempDir(), "sent.json"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if set.Len() != 0 {
		t.Errorf("Len() = %d, want 0", set.Len())
	}
}

func TestAddFlushReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sent.json")

	set, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	set.Add("https://catalog.example/item/2/details")
	set.Add("https://catalog.example/item/1/details")
	set.Add("https://catalog.example/item/1/details") // duplicate
	if err := set.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() after flush error = %v", err)
	}
	if reloaded.Len() != 2 {
		t.Errorf("Len() = %d, want 2", reloaded.Len())
	}
	if !reloaded.Contains("https://catalog.example/item/1/details") {
		t.Error("Contains() = false for flushed identity")
	}

	// File is a sorted JSON array.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read file: %v", err)
	}
	var urls []string
	if err := json.Unmarshal(data, &urls); err != nil {
		t.Fatalf("file is not a JSON array: %v", err)
	}
	want := []string{
		"https://catalog.example/item/1/details",
		"https://catalog.example/item/2/details",
	}
	if len(urls) != len(want) {
		t.Fatalf("file holds %d entries, want %d", len(urls), len(want))
	}
	for i := range want {
		if urls[i] != want[i] {
			t.Errorf("entry %d = %q, want %q", i, urls[i], want[i])
		}
	}
}

func TestSnapshot_Independent(t *testing.T) {
	set, err := Load(filepath.Join(t.TempDir(), "sent.json"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	set.Add("a")

	snap := set.Snapshot()
	set.Add("b")

	if _, ok := snap["a"]; !ok {
		t.Error("snapshot is missing existing entry")
	}
	if _, ok := snap["b"]; ok {
		t.Error("snapshot picked up entry added after it was taken")
	}
}
