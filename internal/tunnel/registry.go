package tunnel

import (
	"net"
	"sync"
)

// Registry holds the two maps the mux needs: connected devices' control
// sockets, and the one-shot delivery slots for sessions awaiting their
// device-side data connection. Each map gets its own reader/writer lock,
// matching the concurrency policy for the rest of the substrate.
type Registry struct {
	devicesMu sync.RWMutex
	devices   map[DeviceID]net.Conn

	pendingMu sync.RWMutex
	pending   map[SessionID]chan net.Conn
}

func NewRegistry() *Registry {
	return &Registry{
		devices: make(map[DeviceID]net.Conn),
		pending: make(map[SessionID]chan net.Conn),
	}
}

// PutDevice registers id's control connection, replacing (and leaving the
// caller to close) any prior connection for the same id.
func (r *Registry) PutDevice(id DeviceID, conn net.Conn) net.Conn {
	r.devicesMu.Lock()
	defer r.devicesMu.Unlock()
	old := r.devices[id]
	r.devices[id] = conn
	return old
}

// RemoveDevice drops id's entry if it still points at conn (a later
// reconnect may have already replaced it, in which case this is a no-op).
func (r *Registry) RemoveDevice(id DeviceID, conn net.Conn) {
	r.devicesMu.Lock()
	defer r.devicesMu.Unlock()
	if r.devices[id] == conn {
		delete(r.devices, id)
	}
}

func (r *Registry) GetDevice(id DeviceID) (net.Conn, bool) {
	r.devicesMu.RLock()
	defer r.devicesMu.RUnlock()
	c, ok := r.devices[id]
	return c, ok
}

// ListDevices returns the ids of every currently connected device, for the
// super-only admin listing endpoint.
func (r *Registry) ListDevices() []DeviceID {
	r.devicesMu.RLock()
	defer r.devicesMu.RUnlock()
	out := make([]DeviceID, 0, len(r.devices))
	for id := range r.devices {
		out = append(out, id)
	}
	return out
}

// NewPending allocates a one-shot delivery slot for a newly accepted client
// connection awaiting its device-side counterpart.
func (r *Registry) NewPending() (SessionID, chan net.Conn) {
	r.pendingMu.Lock()
	defer r.pendingMu.Unlock()
	id := NewSessionID()
	for {
		if _, exists := r.pending[id]; !exists {
			break
		}
		id = NewSessionID()
	}
	slot := make(chan net.Conn, 1)
	r.pending[id] = slot
	return id, slot
}

// TakePending removes and returns the slot for id, if still pending (a
// device that races past the 30s timeout finds nothing to deliver to).
func (r *Registry) TakePending(id SessionID) (chan net.Conn, bool) {
	r.pendingMu.Lock()
	defer r.pendingMu.Unlock()
	slot, ok := r.pending[id]
	if ok {
		delete(r.pending, id)
	}
	return slot, ok
}

// CancelPending removes id's slot without delivering anything, used after
// the 30-second client-side wait times out.
func (r *Registry) CancelPending(id SessionID) {
	r.pendingMu.Lock()
	defer r.pendingMu.Unlock()
	delete(r.pending, id)
}
