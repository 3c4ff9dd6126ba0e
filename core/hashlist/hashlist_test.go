package hashlist

import (
	"path/filepath"
	"testing"

	"github.com/arcmesh/transport/core/wire"
)

func hashOf(b byte) wire.FullHash {
	var h wire.FullHash
	h[0] = b
	return h
}

func TestAddAndContains(t *testing.T) {
	h := New(10)
	a := hashOf(1)
	if h.Contains(a) {
		t.Fatal("Contains() = true before Add")
	}
	h.Add(a)
	if !h.Contains(a) {
		t.Fatal("Contains() = false after Add")
	}
	if h.Len() != 1 {
		t.Errorf("Len() = %d, want 1", h.Len())
	}
}

func TestEvictsOldestOnOverflow(t *testing.T) {
	h := New(3)
	for i := byte(0); i < 5; i++ {
		h.Add(hashOf(i))
	}
	if h.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", h.Len())
	}
	if h.Contains(hashOf(0)) || h.Contains(hashOf(1)) {
		t.Error("oldest entries were not evicted")
	}
	for i := byte(2); i < 5; i++ {
		if !h.Contains(hashOf(i)) {
			t.Errorf("expected hash %d to still be present", i)
		}
	}
}

func TestDuplicateAddIsNoOp(t *testing.T) {
	h := New(10)
	a := hashOf(7)
	h.Add(a)
	h.Add(a)
	if h.Len() != 1 {
		t.Errorf("Len() = %d, want 1 after duplicate Add", h.Len())
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "packet_hashlist")

	h := New(100)
	for i := byte(0); i < 10; i++ {
		h.Add(hashOf(i))
	}
	if err := h.SaveTo(path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}

	loaded, err := LoadFrom(path, 100)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if loaded.Len() != h.Len() {
		t.Fatalf("loaded Len() = %d, want %d", loaded.Len(), h.Len())
	}
	for i := byte(0); i < 10; i++ {
		if !loaded.Contains(hashOf(i)) {
			t.Errorf("loaded hashlist missing hash %d", i)
		}
	}
}

func TestLoadFromMissingFileReturnsEmpty(t *testing.T) {
	h, err := LoadFrom(filepath.Join(t.TempDir(), "does-not-exist"), 50)
	if err != nil {
		t.Fatalf("LoadFrom on missing file: %v", err)
	}
	if h.Len() != 0 {
		t.Errorf("Len() = %d, want 0", h.Len())
	}
}
