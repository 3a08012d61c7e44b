package fanout

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talebox/slepau/internal/accessstore"
	"github.com/talebox/slepau/internal/chunkgraph"
)

var (
	errUnknownResource = errors.New("unknown resource")
	errBadChunkID      = errors.New("malformed chunk id")
	errNoAccess        = errors.New("no access to this chunk")
)

const pingPeriod = 20 * time.Second

// Envelope is the per-connection message shape: id mirrors request/response
// pairs so ordering is preserved by construction, type distinguishes an Ok
// reply from an Error one, resource is the slash-separated path, and value
// carries an arbitrary string payload (often itself JSON).
type Envelope struct {
	ID       string `json:"id,omitempty"`
	Type     string `json:"type,omitempty"`
	Resource string `json:"resource"`
	Value    string `json:"value,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler wires the socket loop to the stores it serves queries from and
// the bus it both publishes to and listens on.
type Handler struct {
	Bus    *Bus
	Graph  *chunkgraph.DB
	Access *accessstore.Store
	Logger *slog.Logger
}

// ServeHTTP upgrades the request and runs the connection's event loop until
// it closes, the bus tells it to disconnect, or shutdown is closed.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request, user string, site accessstore.SiteID, shutdown <-chan struct{}) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sub := h.Bus.Subscribe(user, 32)
	defer h.Bus.Unsubscribe(sub)

	c := &connection{
		h:        h,
		conn:     conn,
		user:     user,
		site:     site,
		sub:      sub,
		selfSeqs: make(map[uint64]struct{}),
	}
	c.run(shutdown)
}

type connection struct {
	h        *Handler
	conn     *websocket.Conn
	user     string
	site     accessstore.SiteID
	sub      *Subscriber
	selfSeqs map[uint64]struct{}
}

func (c *connection) run(shutdown <-chan struct{}) {
	incoming := make(chan Envelope)
	readErr := make(chan struct{})
	go func() {
		defer close(readErr)
		for {
			var env Envelope
			if err := c.conn.ReadJSON(&env); err != nil {
				return
			}
			incoming <- env
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-shutdown:
			return
		case <-c.sub.CloseMe:
			return
		case <-readErr:
			return
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case msg := <-c.sub.C:
			if _, mine := c.selfSeqs[msg.Seq]; mine {
				delete(c.selfSeqs, msg.Seq)
				continue
			}
			env := Envelope{Resource: msg.Resource}
			if msg.HasValue {
				env.Value = msg.Value
			}
			if err := c.conn.WriteJSON(env); err != nil {
				return
			}
		case env := <-incoming:
			reply := c.dispatch(env)
			if err := c.conn.WriteJSON(reply); err != nil {
				return
			}
		}
	}
}

func (c *connection) ok(id, resource, value string) Envelope {
	return Envelope{ID: id, Type: "Ok", Resource: resource, Value: value}
}

func (c *connection) errReply(id, resource string, err error) Envelope {
	return Envelope{ID: id, Type: "Error", Resource: resource, Value: err.Error()}
}

// broadcast reserves a sequence number, remembers it as self-originated so
// the echo arriving back on c.sub.C is suppressed, and publishes.
func (c *connection) broadcast(resource, value string, hasValue bool, users []string) {
	seq := c.h.Bus.NextSeq()
	c.selfSeqs[seq] = struct{}{}
	c.h.Bus.Publish(Message{Seq: seq, Resource: resource, Value: value, HasValue: hasValue, Users: users})
}

func (c *connection) dispatch(env Envelope) Envelope {
	parts := strings.Split(strings.Trim(env.Resource, "/"), "/")
	switch {
	case len(parts) == 3 && parts[0] == "chunks" && parts[2] == "value":
		return c.handleChunkValue(env, parts[1])
	case len(parts) == 2 && parts[0] == "chunks":
		return c.handleChunkGet(env, parts[1])
	case len(parts) == 2 && parts[0] == "views" && parts[1] == "notes":
		return c.handleNotes(env)
	case len(parts) >= 2 && parts[0] == "views" && parts[1] == "well":
		return c.handleSubtree(env, chunkgraph.ViewWell, parts)
	case len(parts) >= 2 && parts[0] == "views" && parts[1] == "graph":
		return c.handleSubtree(env, chunkgraph.ViewGraph, parts)
	case len(parts) == 1 && parts[0] == "user":
		return c.handleUser(env)
	default:
		return c.errReply(env.ID, env.Resource, errUnknownResource)
	}
}

// handleChunkValue serves both directions of chunks/<id>/value: an
// incoming envelope with type "Put" carries the new value to write, any
// other incoming type is a read.
func (c *connection) handleChunkValue(env Envelope, idStr string) Envelope {
	id, err := parseChunkID(idStr)
	if err != nil {
		return c.errReply(env.ID, env.Resource, err)
	}
	if env.Type != "Put" {
		chunk, ok := c.h.Graph.Get(id)
		if !ok || !chunk.HasAccess(c.user, chunkgraph.Read) {
			return c.errReply(env.ID, env.Resource, errNoAccess)
		}
		return c.ok(env.ID, env.Resource, chunk.Value)
	}

	changedUsers, script, updated, err := c.h.Graph.UpdateChunk(id, env.Value, c.user)
	if err != nil {
		return c.errReply(env.ID, env.Resource, err)
	}

	accessors := accessorsOf(updated)
	c.broadcast("chunks/"+idStr+"/value/diff", script, true, accessors)
	editJSON, _ := json.Marshal(updated)
	c.broadcast("chunks/"+idStr, string(editJSON), true, accessors)
	c.broadcast("chunks", "", false, setToSlice(changedUsers))

	return c.ok(env.ID, env.Resource, "")
}

func (c *connection) handleChunkGet(env Envelope, idStr string) Envelope {
	id, err := parseChunkID(idStr)
	if err != nil {
		return c.errReply(env.ID, env.Resource, err)
	}
	chunk, ok := c.h.Graph.Get(id)
	if !ok || !chunk.HasAccess(c.user, chunkgraph.Read) {
		return c.errReply(env.ID, env.Resource, errNoAccess)
	}
	editJSON, _ := json.Marshal(chunk)
	return c.ok(env.ID, env.Resource, string(editJSON))
}

func (c *connection) handleNotes(env Envelope) Envelope {
	view := c.h.Graph.Subtree(nil, c.user, chunkgraph.SortModifiedDesc, chunkgraph.ViewNotes, 1)
	out, _ := json.Marshal(view)
	return c.ok(env.ID, env.Resource, string(out))
}

func (c *connection) handleSubtree(env Envelope, view chunkgraph.ViewType, parts []string) Envelope {
	var root *chunkgraph.ChunkID
	if len(parts) >= 3 && parts[2] != "" {
		id, err := parseChunkID(parts[2])
		if err != nil {
			return c.errReply(env.ID, env.Resource, err)
		}
		root = &id
	}
	result := c.h.Graph.Subtree(root, c.user, chunkgraph.SortModifiedDesc, view, 1)
	out, _ := json.Marshal(result)
	return c.ok(env.ID, env.Resource, string(out))
}

func (c *connection) handleUser(env Envelope) Envelope {
	payload := map[string]any{"user": c.user}
	out, _ := json.Marshal(payload)
	return c.ok(env.ID, env.Resource, string(out))
}

func parseChunkID(s string) (chunkgraph.ChunkID, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, errBadChunkID
	}
	return chunkgraph.ChunkID(v), nil
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
