package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/talebox/slepau/internal/accessstore"
	"github.com/talebox/slepau/internal/chunkgraph"
	"github.com/talebox/slepau/internal/common/slepauerr"
	"github.com/talebox/slepau/internal/common/snapshot"
	"github.com/talebox/slepau/internal/fanout"
	"github.com/talebox/slepau/internal/tokenkernel"
)

// ChunkAPI wires the content-graph HTTP surface: the chunk CRUD endpoints,
// the live fan-out WebSocket upgrade, and the mirror snapshot used by a
// cold-starting replica.
type ChunkAPI struct {
	Graph     *chunkgraph.DB
	Bus       *fanout.Bus
	Fanout    *fanout.Handler
	MagicBean string
	Logger    *slog.Logger
}

// Mount installs /api/chunks, /api/chunks/:id, /api/stream, and
// /api/mirror/:bean. Callers must install Kernel.WithClaims and
// WithShutdown on the parent router first.
func (c *ChunkAPI) Mount(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.With(tokenkernel.AuthRequired).Get("/chunks", c.listChunks)
		r.Get("/chunks/{id}", c.getChunk)
		r.With(tokenkernel.AuthRequired).Put("/chunks", c.putChunk)
		r.With(tokenkernel.AuthRequired).Delete("/chunks", c.deleteChunks)
		r.Get("/stream", c.stream)
		r.Get("/mirror/{bean}", c.mirror)
	})
}

func parseChunkID(s string) (chunkgraph.ChunkID, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, slepauerr.InvalidChunk("malformed chunk id")
	}
	return chunkgraph.ChunkID(v), nil
}

func (c *ChunkAPI) listChunks(w http.ResponseWriter, r *http.Request) {
	claims := tokenkernel.FromContext(r.Context())
	writeJSON(w, http.StatusOK, c.Graph.ListAccessible(claims.User))
}

func (c *ChunkAPI) getChunk(w http.ResponseWriter, r *http.Request) {
	id, err := parseChunkID(chi.URLParam(r, "id"))
	if err != nil {
		slepauerr.WriteHTTP(w, err)
		return
	}
	chunk, ok := c.Graph.Get(id)
	if !ok {
		slepauerr.WriteHTTP(w, slepauerr.NotFound("chunk not found"))
		return
	}
	claims := tokenkernel.FromContext(r.Context())
	if !chunk.HasAccess(claims.User, chunkgraph.Read) {
		slepauerr.WriteHTTP(w, slepauerr.Auth("no access to this chunk"))
		return
	}
	writeJSON(w, http.StatusOK, chunk)
}

func (c *ChunkAPI) putChunk(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ID    chunkgraph.ChunkID `json:"id,omitempty"`
		Value string             `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		slepauerr.WriteHTTP(w, slepauerr.Custom("malformed body, expected {id?, value}"))
		return
	}
	claims := tokenkernel.FromContext(r.Context())

	updated, changedUsers, script, err := c.Graph.SetChunk(body.ID, body.Value, claims.User)
	if err != nil {
		slepauerr.WriteHTTP(w, err)
		return
	}

	idStr := strconv.FormatUint(uint64(updated.ID), 10)
	accessors := accessorsOf(updated)
	c.publish("chunks/"+idStr+"/value/diff", script, true, accessors)
	editJSON, _ := json.Marshal(updated)
	c.publish("chunks/"+idStr, string(editJSON), true, accessors)
	c.publish("chunks", "", false, setToSlice(changedUsers))

	writeJSON(w, http.StatusOK, updated)
}

func (c *ChunkAPI) deleteChunks(w http.ResponseWriter, r *http.Request) {
	var ids []chunkgraph.ChunkID
	if err := json.NewDecoder(r.Body).Decode(&ids); err != nil {
		slepauerr.WriteHTTP(w, slepauerr.Custom("malformed body, expected [id,...]"))
		return
	}
	claims := tokenkernel.FromContext(r.Context())
	changedUsers, err := c.Graph.DelChunk(ids, claims.User)
	if err != nil {
		slepauerr.WriteHTTP(w, err)
		return
	}
	c.publish("chunks", "", false, setToSlice(changedUsers))
	w.WriteHeader(http.StatusOK)
}

// publish reserves a sequence number and fans a resource-change message out
// to every subscribed socket, mirroring fanout's own websocket-originated
// broadcasts so REST and WebSocket mutations stay indistinguishable to
// observers.
func (c *ChunkAPI) publish(resource, value string, hasValue bool, users []string) {
	seq := c.Bus.NextSeq()
	c.Bus.Publish(fanout.Message{Seq: seq, Resource: resource, Value: value, HasValue: hasValue, Users: users})
}

func accessorsOf(c *chunkgraph.DBChunk) []string {
	users := make([]string, 0, len(c.Access)+1)
	users = append(users, c.Owner)
	for u := range c.Access {
		users = append(users, u)
	}
	return users
}

func setToSlice(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for u := range set {
		out = append(out, u)
	}
	return out
}

func (c *ChunkAPI) stream(w http.ResponseWriter, r *http.Request) {
	claims := tokenkernel.FromContext(r.Context())
	var site accessstore.SiteID
	if claims.Site != nil {
		site = *claims.Site
	}
	c.Fanout.ServeHTTP(w, r, claims.User, site, shutdownFromContext(r.Context()))
}

func (c *ChunkAPI) mirror(w http.ResponseWriter, r *http.Request) {
	r.SetPathValue("bean", chi.URLParam(r, "bean"))
	snapshot.MirrorHandler(c.MagicBean, c.Graph.Snapshot)(w, r)
}
