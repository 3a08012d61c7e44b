package chunkgraph

import (
	"encoding/json"
	"fmt"
)

// direction names which edge a dynamic property derives along.
type direction int

const (
	down direction = iota // derived from children
	up                    // derived from parents
)

// dynamicDescriptor is one entry in the registry: a name, the edge it
// derives along, and the function that computes it given the chunk and its
// already-resolved relatives.
type dynamicDescriptor struct {
	key       string
	dir       direction
	compute   func(db *DB, c *DBChunk, user string) (json.RawMessage, error)
}

// registry is fixed at init time; "modified" is the one built-in the
// content graph ships with.
var registry []dynamicDescriptor

func init() {
	registry = []dynamicDescriptor{
		{key: "modified", dir: down, compute: computeModified},
	}
}

func computeModified(db *DB, c *DBChunk, user string) (json.RawMessage, error) {
	max := c.Modified
	for _, childID := range resolveEdges(db, &c.Children) {
		child := db.chunks[childID]
		if child == nil || !child.HasAccess(user, Read) {
			continue
		}
		raw, err := db.dynamicLocked(child, user, "modified")
		if err != nil {
			continue
		}
		var v int64
		if json.Unmarshal(raw, &v) == nil && v > max {
			max = v
		}
	}
	return json.Marshal(max)
}

// resolveEdges prunes stale ids out of edges in place and returns the
// surviving list — the "self-healing weak pointer" behavior from the
// linking contract, applied lazily on every traversal.
func resolveEdges(db *DB, edges *[]ChunkID) []ChunkID {
	kept := (*edges)[:0]
	for _, id := range *edges {
		if _, ok := db.chunks[id]; ok {
			kept = append(kept, id)
		}
	}
	*edges = kept
	return kept
}

// Dynamic returns the value of a dynamic property for user on chunk id,
// using the per-(user,key) cache when present. Callers must not hold db's
// lock.
func (db *DB) Dynamic(id ChunkID, user, key string) (json.RawMessage, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	c, ok := db.chunks[id]
	if !ok {
		return nil, chunkNotFound(id)
	}
	return db.dynamicLocked(c, user, key)
}

func (db *DB) dynamicLocked(c *DBChunk, user, key string) (json.RawMessage, error) {
	if byUser, ok := c.dynamic[user]; ok {
		if v, ok := byUser[key]; ok {
			return v, nil
		}
	}
	var descriptor *dynamicDescriptor
	for i := range registry {
		if registry[i].key == key {
			descriptor = &registry[i]
			break
		}
	}
	if descriptor == nil {
		return nil, fmt.Errorf("chunkgraph: unknown dynamic property %q", key)
	}
	value, err := descriptor.compute(db, c, user)
	if err != nil {
		return nil, err
	}
	if c.dynamic[user] == nil {
		c.dynamic[user] = make(map[string]json.RawMessage)
	}
	c.dynamic[user][key] = value
	return value, nil
}

// Invalidate clears the whole per-user dynamic cache of chunk id (clearing
// the full cache rather than one key is semantically equivalent to
// selective invalidation here, since every descriptor is cheap to
// recompute) and, when up is true, recurses along parent edges.
func (db *DB) Invalidate(id ChunkID, up bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.invalidateLocked(id, up, make(map[ChunkID]bool))
}

func (db *DB) invalidateLocked(id ChunkID, up bool, seen map[ChunkID]bool) {
	if seen[id] {
		return
	}
	seen[id] = true
	c, ok := db.chunks[id]
	if !ok {
		return
	}
	c.dynamic = make(map[string]map[string]json.RawMessage)
	if !up {
		return
	}
	for _, pid := range resolveEdges(db, &c.Parents) {
		db.invalidateLocked(pid, up, seen)
	}
}
