package chunkgraph

import (
	"encoding/json"
	"testing"
)

func TestDynamicModifiedReflectsOwnTimestamp(t *testing.T) {
	db := NewDB()
	c, _, _, _ := db.SetChunk(0, "# Leaf", "alice")

	raw, err := db.Dynamic(c.ID, "alice", "modified")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var v int64
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != c.Modified {
		t.Fatalf("expected modified=%d, got %d", c.Modified, v)
	}
}

func TestDynamicModifiedBubblesUpFromChildren(t *testing.T) {
	db := NewDB()
	parent, _, _, _ := db.SetChunk(0, "# Parent", "alice")
	child, _, _, _ := db.SetChunk(0, "# Child -> "+idDecimal(parent.ID), "alice")

	// Touch the child so its Modified timestamp moves ahead of the parent's.
	updated, _, _, err := db.SetChunk(child.ID, "# Child -> "+idDecimal(parent.ID)+"\nnew body", "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	raw, err := db.Dynamic(parent.ID, "alice", "modified")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var v int64
	json.Unmarshal(raw, &v)
	if v != updated.Modified {
		t.Fatalf("expected parent's dynamic modified to bubble up to %d, got %d", updated.Modified, v)
	}
}

func TestDynamicUnknownKeyErrors(t *testing.T) {
	db := NewDB()
	c, _, _, _ := db.SetChunk(0, "# Leaf", "alice")
	if _, err := db.Dynamic(c.ID, "alice", "nonexistent"); err == nil {
		t.Fatal("expected an unknown dynamic key to error")
	}
}

func TestInvalidateClearsCache(t *testing.T) {
	db := NewDB()
	c, _, _, _ := db.SetChunk(0, "# Leaf", "alice")

	if _, err := db.Dynamic(c.ID, "alice", "modified"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	db.Invalidate(c.ID, false)

	// No direct way to observe cache-clearing from outside, but re-fetching
	// must still succeed after invalidation.
	if _, err := db.Dynamic(c.ID, "alice", "modified"); err != nil {
		t.Fatalf("unexpected error after invalidate: %v", err)
	}
}
