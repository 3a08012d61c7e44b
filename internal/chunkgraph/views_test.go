package chunkgraph

import "testing"

func TestSubtreePublicUserGetsNil(t *testing.T) {
	db := NewDB()
	db.SetChunk(0, "# Root\nshare: public read", "alice")

	view := db.Subtree(nil, "public", SortModifiedDesc, ViewNotes, 2)
	if view.Node != nil || view.Children != nil {
		t.Fatal("expected the public principal to get (nil, nil) even with a public share")
	}
}

func TestSubtreeRootNilFindsAccessibleRoots(t *testing.T) {
	db := NewDB()
	root, _, _, _ := db.SetChunk(0, "# Root", "alice")
	db.SetChunk(0, "# Child -> "+idDecimal(root.ID), "alice")

	view := db.Subtree(nil, "alice", SortModifiedDesc, ViewNotes, 2)
	if len(view.Children) != 1 {
		t.Fatalf("expected exactly one root-level chunk, got %d", len(view.Children))
	}
	note, ok := view.Children[0].Node.(NotesView)
	if !ok {
		t.Fatalf("expected a NotesView node, got %T", view.Children[0].Node)
	}
	if note.ID != root.ID {
		t.Fatalf("expected root chunk id %v, got %v", root.ID, note.ID)
	}
}

func TestSubtreeDescendsToChildren(t *testing.T) {
	db := NewDB()
	root, _, _, _ := db.SetChunk(0, "# Root", "alice")
	child, _, _, _ := db.SetChunk(0, "# Child -> "+idDecimal(root.ID), "alice")

	view := db.Subtree(&root.ID, "alice", SortModifiedDesc, ViewNotes, 2)
	if len(view.Children) != 1 {
		t.Fatalf("expected one child, got %d", len(view.Children))
	}
	note := view.Children[0].Node.(NotesView)
	if note.ID != child.ID {
		t.Fatalf("expected child id %v, got %v", child.ID, note.ID)
	}
}

func TestSubtreeDepthZeroHasNoChildren(t *testing.T) {
	db := NewDB()
	root, _, _, _ := db.SetChunk(0, "# Root", "alice")
	db.SetChunk(0, "# Child -> "+idDecimal(root.ID), "alice")

	view := db.Subtree(&root.ID, "alice", SortModifiedDesc, ViewNotes, 0)
	if view.Children != nil {
		t.Fatalf("expected depth 0 to return no children, got %v", view.Children)
	}
}

func TestSubtreeHidesInaccessibleChildren(t *testing.T) {
	db := NewDB()
	root, _, _, _ := db.SetChunk(0, "# Root", "alice")
	db.SetChunk(0, "# Child -> "+idDecimal(root.ID), "bob")

	view := db.Subtree(&root.ID, "alice", SortModifiedDesc, ViewNotes, 2)
	if len(view.Children) != 0 {
		t.Fatalf("expected bob's private child to be hidden from alice, got %d children", len(view.Children))
	}
}

func TestAccessLabelNilForOwner(t *testing.T) {
	db := NewDB()
	root, _, _, _ := db.SetChunk(0, "# Root", "alice")
	got, _ := db.Get(root.ID)
	if accessLabel(got, "alice") != nil {
		t.Fatal("expected nil access label for the owner")
	}
}

func TestAccessLabelForSharedUser(t *testing.T) {
	db := NewDB()
	root, _, _, _ := db.SetChunk(0, "# Root\nshare: bob write", "alice")
	got, _ := db.Get(root.ID)
	label := accessLabel(got, "bob")
	if label == nil || *label != "write" {
		t.Fatalf("expected write label, got %v", label)
	}
}
