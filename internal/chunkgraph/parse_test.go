package chunkgraph

import "testing"

func TestParseStaticTitleAndParents(t *testing.T) {
	p := parseStatic("# My Title -> 1, 2, 3\nbody text")
	if p.Title != "My Title" {
		t.Fatalf("expected title %q, got %q", "My Title", p.Title)
	}
	if len(p.ParentIDs) != 3 {
		t.Fatalf("expected 3 parent ids, got %d", len(p.ParentIDs))
	}
	if p.ParentIDs[0] != 1 || p.ParentIDs[1] != 2 || p.ParentIDs[2] != 3 {
		t.Fatalf("unexpected parent ids: %v", p.ParentIDs)
	}
}

func TestParseStaticAccessLine(t *testing.T) {
	p := parseStatic("# Title\nshare: bob write, carol admin")
	if p.Access["bob"] != Write {
		t.Fatalf("expected bob=write, got %v", p.Access["bob"])
	}
	if p.Access["carol"] != Admin {
		t.Fatalf("expected carol=admin, got %v", p.Access["carol"])
	}
}

func TestParseStaticProperties(t *testing.T) {
	p := parseStatic("# Title\ncolor: blue\nshare: bob read")
	if p.Props["color"] != "blue" {
		t.Fatalf("expected color=blue, got %q", p.Props["color"])
	}
	if _, ok := p.Props["share"]; ok {
		t.Fatal("expected the share line not to be captured as a generic property")
	}
}

func TestGrantAccessNeverDowngrades(t *testing.T) {
	access := map[string]AccessLevel{}
	grantAccess(access, "bob", Admin)
	grantAccess(access, "bob", Read)
	if access["bob"] != Admin {
		t.Fatalf("expected bob to remain at admin, got %v", access["bob"])
	}
}

func TestParseAccessLevel(t *testing.T) {
	cases := map[string]AccessLevel{"r": Read, "read": Read, "w": Write, "write": Write, "a": Admin, "admin": Admin}
	for in, want := range cases {
		got, ok := ParseAccessLevel(in)
		if !ok || got != want {
			t.Errorf("ParseAccessLevel(%q) = %v, %v; want %v, true", in, got, ok, want)
		}
	}
	if _, ok := ParseAccessLevel("owner"); ok {
		t.Fatal("expected \"owner\" not to be a parseable share-line level")
	}
}
