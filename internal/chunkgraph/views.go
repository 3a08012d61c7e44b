package chunkgraph

import (
	"encoding/json"
	"sort"
	"strings"
)

// ViewType selects which projection Subtree renders each visible node as.
type ViewType int

const (
	ViewEdit ViewType = iota
	ViewNotes
	ViewWell
	ViewGraph
)

// SortType orders sibling sets within one Subtree call.
type SortType int

const (
	SortModifiedDesc SortType = iota
	SortCreatedDesc
	SortTitleAsc
)

// GraphView is the (node, children) tuple from the subtree contract: Children
// nil means "not queried", an empty-but-non-nil slice means "queried, none
// visible".
type GraphView struct {
	Node     any          `json:"node"`
	Children []*GraphView `json:"children,omitempty"`
}

// EditView is the full-edit projection: everything the owner/editor needs
// to render and save a chunk.
type EditView struct {
	ID             ChunkID           `json:"id"`
	Value          string            `json:"value"`
	Props          map[string]string `json:"props"`
	PropsDynamic   map[string]any    `json:"props_dynamic"`
	Owner          string            `json:"owner"`
	ParentCount    int               `json:"parent_count"`
	ChildCount     int               `json:"child_count"`
	Created        int64             `json:"created"`
	Modified       int64             `json:"modified"`
}

// NotesView is the compact listing projection.
type NotesView struct {
	ID       ChunkID `json:"id"`
	Modified int64   `json:"modified"`
	Value    string  `json:"value"` // truncated to 10 newlines
	Access   *string `json:"access,omitempty"`
}

// WellView sits between Notes and Edit: a preview plus structural counts.
type WellView struct {
	ID           ChunkID           `json:"id"`
	Props        map[string]string `json:"props"`
	PropsDynamic map[string]any    `json:"props_dynamic"`
	Value        string            `json:"value"` // truncated
	Owner        string            `json:"owner"`
	Created      int64             `json:"created"`
	Modified     int64             `json:"modified"`
	ParentCount  int               `json:"parent_count"`
	ChildCount   int               `json:"child_count"`
	Access       *string           `json:"access,omitempty"`
}

// GraphNodeView is the minimal projection used for the structural graph view.
type GraphNodeView struct {
	ID           ChunkID           `json:"id"`
	Created      int64             `json:"created"`
	Props        map[string]string `json:"props"`
	PropsDynamic map[string]any    `json:"props_dynamic"`
	ParentCount  int               `json:"parent_count"`
	ChildCount   int               `json:"child_count"`
}

func truncateLines(value string, n int) string {
	lines := strings.Split(value, "\n")
	if len(lines) <= n {
		return value
	}
	return strings.Join(lines[:n], "\n")
}

// accessLabel returns nil for the owner (access isn't meaningful to show
// yourself) and the level name otherwise.
func accessLabel(c *DBChunk, user string) *string {
	lvl, ok := c.userAccess(user)
	if !ok || lvl == Owner {
		return nil
	}
	s := lvl.String()
	return &s
}

func (db *DB) project(c *DBChunk, user string, view ViewType) any {
	modified := c.Modified
	if raw, err := db.dynamicLocked(c, user, "modified"); err == nil {
		var v int64
		if json.Unmarshal(raw, &v) == nil {
			modified = v
		}
	}
	dynamic := map[string]any{"modified": modified}

	switch view {
	case ViewEdit:
		return EditView{
			ID: c.ID, Value: c.Value, Props: c.Props, PropsDynamic: dynamic,
			Owner: c.Owner, ParentCount: len(c.Parents), ChildCount: len(c.Children),
			Created: c.Created, Modified: c.Modified,
		}
	case ViewNotes:
		return NotesView{ID: c.ID, Modified: c.Modified, Value: truncateLines(c.Value, 10), Access: accessLabel(c, user)}
	case ViewWell:
		return WellView{
			ID: c.ID, Props: c.Props, PropsDynamic: dynamic, Value: truncateLines(c.Value, 10),
			Owner: c.Owner, Created: c.Created, Modified: c.Modified,
			ParentCount: len(c.Parents), ChildCount: len(c.Children), Access: accessLabel(c, user),
		}
	case ViewGraph:
		return GraphNodeView{ID: c.ID, Created: c.Created, Props: c.Props, PropsDynamic: dynamic, ParentCount: len(c.Parents), ChildCount: len(c.Children)}
	default:
		return nil
	}
}

func sortChildren(db *DB, ids []ChunkID, user string, order SortType) []ChunkID {
	out := append([]ChunkID(nil), ids...)
	sort.Slice(out, func(i, j int) bool {
		ci, cj := db.chunks[out[i]], db.chunks[out[j]]
		if ci == nil || cj == nil {
			return false
		}
		switch order {
		case SortCreatedDesc:
			return ci.Created > cj.Created
		case SortTitleAsc:
			return ci.Title < cj.Title
		default:
			mi, _ := db.dynamicLocked(ci, user, "modified")
			mj, _ := db.dynamicLocked(cj, user, "modified")
			return string(mi) > string(mj)
		}
	})
	return out
}

// Subtree renders the view-projected tree rooted at root (or the accessible
// roots, when root is nil) down to depth levels. The public principal
// (user == "public", an unauthenticated caller) always gets (nil, nil).
func (db *DB) Subtree(root *ChunkID, user string, order SortType, view ViewType, depth int) *GraphView {
	db.mu.Lock()
	defer db.mu.Unlock()

	if user == publicUser {
		return &GraphView{Node: nil, Children: nil}
	}

	if root == nil {
		var roots []ChunkID
		for id, c := range db.chunks {
			if !c.HasAccess(user, Read) {
				continue
			}
			hasAccessibleParent := false
			for _, pid := range resolveEdges(db, &c.Parents) {
				if p, ok := db.chunks[pid]; ok && p.HasAccess(user, Read) {
					hasAccessibleParent = true
					break
				}
			}
			if !hasAccessibleParent {
				roots = append(roots, id)
			}
		}
		ordered := sortChildren(db, roots, user, order)
		children := make([]*GraphView, 0, len(ordered))
		for _, id := range ordered {
			children = append(children, db.subtreeRec(db.chunks[id], user, order, view, depth))
		}
		return &GraphView{Node: nil, Children: children}
	}

	c, ok := db.chunks[*root]
	if !ok || !c.HasAccess(user, Read) {
		return &GraphView{Node: nil, Children: nil}
	}
	return db.subtreeRec(c, user, order, view, depth)
}

func (db *DB) subtreeRec(c *DBChunk, user string, order SortType, view ViewType, depth int) *GraphView {
	node := db.project(c, user, view)
	if depth <= 0 {
		return &GraphView{Node: node, Children: nil}
	}

	visible := make([]ChunkID, 0, len(c.Children))
	for _, cid := range resolveEdges(db, &c.Children) {
		if child, ok := db.chunks[cid]; ok && child.HasAccess(user, Read) {
			visible = append(visible, cid)
		}
	}
	ordered := sortChildren(db, visible, user, order)
	children := make([]*GraphView, 0, len(ordered))
	for _, cid := range ordered {
		children = append(children, db.subtreeRec(db.chunks[cid], user, order, view, depth-1))
	}
	return &GraphView{Node: node, Children: children}
}
