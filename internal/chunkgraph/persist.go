package chunkgraph

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/talebox/slepau/internal/common/snapshot"
)

// dbChunkData is the on-disk shape: chunks keyed by id, parsed fields and
// edges included so a reload never has to re-parse or re-link anything
// that was already validated before the last save.
type dbChunkData struct {
	Chunks map[ChunkID]*DBChunk `json:"chunks"`
}

// Snapshot returns a point-in-time copy suitable for snapshot.Save /
// snapshot.MirrorHandler.
func (db *DB) Snapshot() any {
	db.mu.RLock()
	defer db.mu.RUnlock()
	chunks := make(map[ChunkID]*DBChunk, len(db.chunks))
	for id, c := range db.chunks {
		chunks[id] = c.clone()
	}
	return dbChunkData{Chunks: chunks}
}

// Load replaces the graph's contents from the configured source, following
// the mirror-then-file-then-empty precedence. Loaded chunks are trusted as
// already linked and parsed; dynamic caches start cold.
func (db *DB) Load(ctx context.Context, opts snapshot.Options, logger *slog.Logger) {
	var data dbChunkData
	snapshot.Load(ctx, opts, &data, logger)

	db.mu.Lock()
	defer db.mu.Unlock()
	if data.Chunks == nil {
		db.chunks = make(map[ChunkID]*DBChunk)
		return
	}
	for _, c := range data.Chunks {
		if c.dynamic == nil {
			c.dynamic = make(map[string]map[string]json.RawMessage)
		}
	}
	db.chunks = data.Chunks
}

// Save persists the current contents atomically to opts.Path.
func (db *DB) Save(opts snapshot.Options, logger *slog.Logger) error {
	return snapshot.Save(opts, db.Snapshot(), logger)
}
