package chunkgraph

import (
	"strconv"
	"testing"
)

func TestSetChunkCreateAndGet(t *testing.T) {
	db := NewDB()
	c, changed, script, err := db.SetChunk(0, "# Hello\nsome body text", "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Title != "Hello" {
		t.Fatalf("expected title Hello, got %q", c.Title)
	}
	if c.Owner != "alice" {
		t.Fatalf("expected owner alice, got %q", c.Owner)
	}
	if script != "" {
		t.Fatalf("expected no diff script on creation, got %q", script)
	}
	if !changed["alice"] {
		t.Fatal("expected creating user to be in the changed set")
	}

	got, ok := db.Get(c.ID)
	if !ok || got.Title != "Hello" {
		t.Fatal("expected to fetch the created chunk back")
	}
}

func TestSetChunkParsesParentsAndLinks(t *testing.T) {
	db := NewDB()
	parent, _, _, _ := db.SetChunk(0, "# Parent", "alice")
	child, _, _, err := db.SetChunk(0, "# Child -> "+idDecimal(parent.ID), "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	gotParent, _ := db.Get(parent.ID)
	found := false
	for _, cid := range gotParent.Children {
		if cid == child.ID {
			found = true
		}
	}
	if !found {
		t.Fatal("expected parent to have child edge installed")
	}

	gotChild, _ := db.Get(child.ID)
	foundParentEdge := false
	for _, pid := range gotChild.Parents {
		if pid == parent.ID {
			foundParentEdge = true
		}
	}
	if !foundParentEdge {
		t.Fatal("expected child to have parent edge installed")
	}
}

func TestSetChunkRejectsSelfParent(t *testing.T) {
	db := NewDB()
	c, _, _, _ := db.SetChunk(0, "# Loop", "alice")
	_, _, _, err := db.SetChunk(c.ID, "# Loop -> "+idDecimal(c.ID), "alice")
	if err == nil {
		t.Fatal("expected a chunk linking to itself to be rejected")
	}
}

func TestSetChunkRejectsCircularParents(t *testing.T) {
	db := NewDB()
	a, _, _, _ := db.SetChunk(0, "# A", "alice")
	b, _, _, err := db.SetChunk(0, "# B -> "+idDecimal(a.ID), "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Now try to make A a child of B, creating a cycle A -> B -> A.
	_, _, _, err = db.SetChunk(a.ID, "# A -> "+idDecimal(b.ID), "alice")
	if err == nil {
		t.Fatal("expected a circular parent reference to be rejected")
	}
}

func TestSetChunkDanglingParentSilentlyDropped(t *testing.T) {
	db := NewDB()
	_, _, _, err := db.SetChunk(0, "# Orphan -> 999999", "alice")
	if err != nil {
		t.Fatalf("expected a dangling parent reference not to error, got %v", err)
	}
}

func TestSetChunkWriteAccessCannotChangeTitle(t *testing.T) {
	db := NewDB()
	c, _, _, _ := db.SetChunk(0, "# Original\nshare: bob write", "alice")

	if _, _, _, err := db.SetChunk(c.ID, "# Renamed\nshare: bob write\nbody", "bob"); err == nil {
		t.Fatal("expected write-level access to be unable to rename the chunk")
	}
}

func TestSetChunkWriteAccessCanChangeBody(t *testing.T) {
	db := NewDB()
	c, _, _, _ := db.SetChunk(0, "# Original\nshare: bob write", "alice")

	updated, _, script, err := db.SetChunk(c.ID, "# Original\nshare: bob write\nnew body", "bob")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Title != "Original" {
		t.Fatalf("expected title unchanged, got %q", updated.Title)
	}
	if script == "" {
		t.Fatal("expected a non-empty diff script for a body change")
	}
}

func TestSetChunkAdminCannotRemoveOwnAccess(t *testing.T) {
	db := NewDB()
	c, _, _, _ := db.SetChunk(0, "# Original\nshare: bob admin", "alice")

	if _, _, _, err := db.SetChunk(c.ID, "# Original\nshare: bob write", "bob"); err == nil {
		t.Fatal("expected admin-level access to be unable to demote its own access away")
	}
}

func TestSetChunkNoAccessRejected(t *testing.T) {
	db := NewDB()
	c, _, _, _ := db.SetChunk(0, "# Original", "alice")

	if _, _, _, err := db.SetChunk(c.ID, "# Original\nbody", "mallory"); err == nil {
		t.Fatal("expected a user with no access to be rejected")
	}
}

func TestDelChunkOwnerRemovesOutright(t *testing.T) {
	db := NewDB()
	c, _, _, _ := db.SetChunk(0, "# Gone", "alice")

	if _, err := db.DelChunk([]ChunkID{c.ID}, "alice"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := db.Get(c.ID); ok {
		t.Fatal("expected chunk to be deleted")
	}
}

func TestDelChunkLesserAccessSelfExits(t *testing.T) {
	db := NewDB()
	c, _, _, _ := db.SetChunk(0, "# Shared\nshare: bob write", "alice")

	if _, err := db.DelChunk([]ChunkID{c.ID}, "bob"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, ok := db.Get(c.ID)
	if !ok {
		t.Fatal("expected chunk to still exist after a lesser-access self-exit")
	}
	if got.HasAccess("bob", Read) {
		t.Fatal("expected bob's access entry to be removed")
	}
}

func TestOverrideRejectsOnceLinked(t *testing.T) {
	db := NewDB()
	c, _, _, _ := db.SetChunk(0, "# Linked", "alice")

	if err := db.Override(c.ID, "title", "New Title"); err == nil {
		t.Fatal("expected Override to fail once a chunk is linked")
	}
}

func TestOverrideAccessRewritesShareLine(t *testing.T) {
	db := NewDB()
	c, _, _, _ := db.SetChunk(0, "# Unlinked", "alice")
	db.chunks[c.ID].Linked = false // SetChunk links; Override needs an unlinked chunk

	if err := db.Override(c.ID, "access", "bob write, carol admin"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := db.Get(c.ID)
	reparsed := parseStatic(got.Value)
	if reparsed.Access["bob"] != Write || reparsed.Access["carol"] != Admin {
		t.Fatalf("expected reparsed value to reflect the override, got %v", reparsed.Access)
	}
}

func TestSetChunkRejectsPublic(t *testing.T) {
	db := NewDB()
	if _, _, _, err := db.SetChunk(0, "# Root", publicUser); err == nil {
		t.Fatal("expected the public principal to be rejected from creating a chunk")
	}
}

func TestDelChunkRejectsPublic(t *testing.T) {
	db := NewDB()
	c, _, _, _ := db.SetChunk(0, "# Root\nshare: public admin", "alice")
	if _, err := db.DelChunk([]ChunkID{c.ID}, publicUser); err == nil {
		t.Fatal("expected the public principal to be rejected from deleting a chunk, even with an admin share")
	}
}

func TestListAccessibleRejectsPublic(t *testing.T) {
	db := NewDB()
	db.SetChunk(0, "# Root\nshare: public read", "alice")
	if out := db.ListAccessible(publicUser); out != nil {
		t.Fatalf("expected the public principal to get no listing, got %d chunks", len(out))
	}
}

// idDecimal renders a ChunkID the way parseStatic expects it in a "-> parents"
// suffix: plain base-10, not proquint.
func idDecimal(id ChunkID) string {
	return strconv.FormatUint(uint64(id), 10)
}
