package tunnel

import (
	"net"
	"testing"
)

func TestPutGetRemoveDevice(t *testing.T) {
	r := NewRegistry()
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	id := DeviceID(42)
	if old := r.PutDevice(id, a); old != nil {
		t.Fatalf("expected no prior connection, got %v", old)
	}

	got, ok := r.GetDevice(id)
	if !ok || got != a {
		t.Fatalf("expected to find registered device connection")
	}

	ids := r.ListDevices()
	if len(ids) != 1 || ids[0] != id {
		t.Fatalf("expected [%v], got %v", id, ids)
	}

	r.RemoveDevice(id, a)
	if _, ok := r.GetDevice(id); ok {
		t.Fatal("expected device to be removed")
	}
}

func TestRemoveDeviceNoopOnReplaced(t *testing.T) {
	r := NewRegistry()
	a, aPeer := net.Pipe()
	b, bPeer := net.Pipe()
	defer a.Close()
	defer aPeer.Close()
	defer b.Close()
	defer bPeer.Close()

	id := DeviceID(7)
	r.PutDevice(id, a)
	old := r.PutDevice(id, b)
	if old != a {
		t.Fatal("expected PutDevice to return the replaced connection")
	}

	// Removing the stale connection must not disturb the newer one.
	r.RemoveDevice(id, a)
	got, ok := r.GetDevice(id)
	if !ok || got != b {
		t.Fatal("expected newer connection to remain registered")
	}
}

func TestPendingSessionLifecycle(t *testing.T) {
	r := NewRegistry()

	id, slot := r.NewPending()

	taken, ok := r.TakePending(id)
	if !ok || taken != slot {
		t.Fatal("expected to take the pending slot just created")
	}

	if _, ok := r.TakePending(id); ok {
		t.Fatal("expected second take to fail, slot already consumed")
	}
}

func TestCancelPending(t *testing.T) {
	r := NewRegistry()
	id, _ := r.NewPending()
	r.CancelPending(id)
	if _, ok := r.TakePending(id); ok {
		t.Fatal("expected cancelled session to be gone")
	}
}
