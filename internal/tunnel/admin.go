package tunnel

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// AdminRoutes mounts a super-only view of the currently connected devices,
// plus a live feed of their health-state transitions.
// Callers are expected to wrap the returned router with their own
// authentication/authorization middleware (see tokenkernel.OnlySupers).
func (s *Server) AdminRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", s.handleListDevices)
	r.Get("/events", s.handleDeviceEvents)
	return r
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	ids := s.Registry.ListDevices()
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		s.Logger.Warn("encode device list failed", "error", err)
	}
}

// handleDeviceEvents streams health_change events (device connect/disconnect
// transitions recorded via Health) as server-sent events, until the client
// disconnects. Returns 503 if this server was built without an event bus.
func (s *Server) handleDeviceEvents(w http.ResponseWriter, r *http.Request) {
	if s.Events == nil {
		http.Error(w, "event stream not enabled", http.StatusServiceUnavailable)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sub := s.Events.Subscribe(16)
	defer s.Events.Unsubscribe(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-sub.C:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", e.JSON())
			flusher.Flush()
		}
	}
}
