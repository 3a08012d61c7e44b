package chunkgraph

import (
	"strings"
	"time"

	"github.com/talebox/slepau/internal/common/diff"
	"github.com/talebox/slepau/internal/common/proquint"
	"github.com/talebox/slepau/internal/common/regexes"
	"github.com/talebox/slepau/internal/common/slepauerr"
)

func chunkNotFound(id ChunkID) error {
	return slepauerr.NotFound("chunk not found")
}

// Get returns a snapshot copy of one chunk, or (nil, false).
func (db *DB) Get(id ChunkID) (*DBChunk, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	c, ok := db.chunks[id]
	if !ok {
		return nil, false
	}
	return c.clone(), true
}

// ListAccessible returns a snapshot copy of every chunk user holds at least
// Read on (owned chunks included), in no particular order. The public
// principal never gets a listing, even of chunks shared with "public".
func (db *DB) ListAccessible(user string) []*DBChunk {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if user == publicUser {
		return nil
	}
	var out []*DBChunk
	for _, c := range db.chunks {
		if c.HasAccess(user, Read) {
			out = append(out, c.clone())
		}
	}
	return out
}

func addEdge(edges *[]ChunkID, id ChunkID) {
	for _, e := range *edges {
		if e == id {
			return
		}
	}
	*edges = append(*edges, id)
}

// linkChunk resolves c's ParentIDs to live chunks and installs symmetric
// weak parent/child edges, rejecting self-parents and cycles. Must be
// called with db.mu held for writing.
func (db *DB) linkChunk(c *DBChunk) error {
	if c.Linked {
		return nil
	}
	if err := db.linkRec(c, c.ID); err != nil {
		return err
	}
	c.Linked = true
	return nil
}

func (db *DB) linkRec(c *DBChunk, originalDescendant ChunkID) error {
	for _, pid := range c.ParentIDs {
		if pid == c.ID {
			return slepauerr.InvalidChunk("links to itself")
		}
		if pid == originalDescendant && c.ID != originalDescendant {
			return slepauerr.InvalidChunk("circular")
		}
		parent, ok := db.chunks[pid]
		if !ok {
			continue // dangling parent reference: silently dropped
		}
		if err := db.linkRec(parent, originalDescendant); err != nil {
			return err
		}
		addEdge(&c.Parents, pid)
		addEdge(&parent.Children, c.ID)
	}
	return nil
}

// tryCloneTo is the authoritative mutation check: candidate must already
// carry the freshly parsed static fields for the proposed new value.
func tryCloneTo(old, candidate *DBChunk, byUser string) (*DBChunk, error) {
	candidate.ID = old.ID
	candidate.Owner = old.Owner
	candidate.Created = old.Created
	candidate.Children = append([]ChunkID(nil), old.Children...)

	lvl, ok := old.userAccess(byUser)
	if !ok {
		return nil, slepauerr.Auth("no access to this chunk")
	}

	switch {
	case lvl == Owner:
		// allowed unconditionally
	case lvl == Admin:
		newLvl, stillOk := candidate.userAccess(byUser)
		if !stillOk || newLvl < Admin {
			return nil, slepauerr.Auth("change would remove your own admin access")
		}
	case lvl == Write:
		if !accessEqual(old.Access, candidate.Access) || old.Title != candidate.Title || !parentsEqual(old.ParentIDs, candidate.ParentIDs) {
			return nil, slepauerr.Auth("write access may not change title, parents, or sharing")
		}
	default:
		return nil, slepauerr.Auth("insufficient access")
	}
	return candidate, nil
}

func accessEqual(a, b map[string]AccessLevel) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

func parentsEqual(a, b []ChunkID) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[ChunkID]int, len(a))
	for _, id := range a {
		seen[id]++
	}
	for _, id := range b {
		seen[id]--
	}
	for _, n := range seen {
		if n != 0 {
			return false
		}
	}
	return true
}

// accessDiff returns the symmetric difference of access-holding usernames
// between old and new (including owner, since owner never changes here it
// contributes nothing, but every explicit access entry does), used to
// drive which users' visibility notifications fire.
func accessDiff(old, new map[string]AccessLevel) map[string]bool {
	diffSet := make(map[string]bool)
	for u := range old {
		if _, ok := new[u]; !ok {
			diffSet[u] = true
		}
	}
	for u := range new {
		if _, ok := old[u]; !ok {
			diffSet[u] = true
		}
	}
	return diffSet
}

// SetChunk creates (id==0) or updates a chunk, returning the stored
// DBChunk, the set of users whose visibility may have changed, and the
// diff script against the prior value (empty on creation).
func (db *DB) SetChunk(id ChunkID, value string, user string) (*DBChunk, map[string]bool, string, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if user == publicUser {
		return nil, nil, "", slepauerr.Auth("public cannot create or edit chunks")
	}

	now := time.Now().Unix()
	parsed := parseStatic(value)

	old, exists := db.chunks[id]
	if !exists {
		if id == 0 {
			id = ChunkID(proquint.RandomUint32())
		}
		c := newDBChunk(id, user, now)
		c.Value = value
		c.applyStatic(parsed)
		db.chunks[id] = c
		if err := db.linkChunk(c); err != nil {
			delete(db.chunks, id)
			return nil, nil, "", err
		}
		db.invalidateLocked(id, true, make(map[ChunkID]bool))
		changed := map[string]bool{user: true}
		for u := range c.Access {
			changed[u] = true
		}
		return c.clone(), changed, "", nil
	}

	candidate := old.clone()
	candidate.Value = value
	candidate.applyStatic(parsed)
	candidate.Modified = now

	result, err := tryCloneTo(old, candidate, user)
	if err != nil {
		return nil, nil, "", err
	}

	changed := accessDiff(old.Access, result.Access)
	for u := range old.Access {
		changed[u] = true
	}
	for u := range result.Access {
		changed[u] = true
	}
	changed[old.Owner] = true

	script := diff.Calc(old.Value, result.Value)

	db.chunks[id] = result
	result.Linked = false
	result.ParentIDs = append([]ChunkID(nil), result.ParentIDs...)
	if err := db.linkChunk(result); err != nil {
		db.chunks[id] = old
		return nil, nil, "", err
	}
	db.invalidateLocked(id, true, make(map[ChunkID]bool))

	return result.clone(), changed, script, nil
}

// DelChunk removes ids the caller administers/owns outright, or strips the
// caller's own access entry from ids they hold lesser access to (a
// self-exit from a share). Returns the union of users whose visibility may
// have changed.
func (db *DB) DelChunk(ids []ChunkID, user string) (map[string]bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if user == publicUser {
		return nil, slepauerr.Auth("public cannot delete chunks")
	}

	changed := make(map[string]bool)
	for _, id := range ids {
		c, ok := db.chunks[id]
		if !ok {
			return nil, chunkNotFound(id)
		}
		lvl, ok := c.userAccess(user)
		if !ok {
			return nil, slepauerr.Auth("no access to this chunk")
		}
		for u := range c.Access {
			changed[u] = true
		}
		changed[c.Owner] = true

		if lvl >= Admin {
			delete(db.chunks, id)
			for _, pid := range c.Parents {
				if p, ok := db.chunks[pid]; ok {
					removeEdge(&p.Children, id)
				}
			}
			for _, cid := range c.Children {
				if child, ok := db.chunks[cid]; ok {
					removeEdge(&child.Parents, id)
				}
			}
		} else {
			delete(c.Access, user)
		}
	}
	return changed, nil
}

func removeEdge(edges *[]ChunkID, id ChunkID) {
	out := (*edges)[:0]
	for _, e := range *edges {
		if e != id {
			out = append(out, e)
		}
	}
	*edges = out
}

// UpdateChunk is SetChunk's convenience wrapper returning the diff and the
// affected users in the order the live fan-out needs them.
func (db *DB) UpdateChunk(id ChunkID, value, user string) (changedUsers map[string]bool, script string, updated *DBChunk, err error) {
	updated, changedUsers, script, err = db.SetChunk(id, value, user)
	return
}

// Override rewrites one static field while the chunk is still unlinked.
// For "access" the argument is a "user level, user level" list exactly as
// it would appear after "share:"; it replaces the access set wholesale and
// rewrites (or removes, or appends) the "share:" line in c.Value so the
// stored text still reparses to the same access set.
func (db *DB) Override(id ChunkID, key, value string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	c, ok := db.chunks[id]
	if !ok {
		return chunkNotFound(id)
	}
	if c.Linked {
		return slepauerr.InvalidChunk("cannot override a linked chunk")
	}
	switch key {
	case "title":
		c.Title = value
		c.Ref = regexes.Standardize(value)
	case "access":
		newAccess := make(map[string]AccessLevel)
		for _, pair := range regexes.AccessPair.FindAllStringSubmatch(value, -1) {
			user := pair[1]
			if lvl, ok := ParseAccessLevel(pair[2]); ok {
				grantAccess(newAccess, user, lvl)
			}
		}
		c.Access = newAccess
		line := renderAccessLine(newAccess)
		switch {
		case regexes.Access.MatchString(c.Value):
			c.Value = regexes.Access.ReplaceAllLiteralString(c.Value, line)
		case line != "":
			if c.Value != "" && !strings.HasSuffix(c.Value, "\n") {
				c.Value += "\n"
			}
			c.Value += line
		}
	default:
		c.Props[key] = value
	}
	return nil
}
