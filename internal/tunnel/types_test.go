package tunnel

import "testing"

func TestDeviceIDRoundTrip(t *testing.T) {
	id := DeviceID(1234)
	parsed, err := ParseDeviceID(id.String())
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if parsed != id {
		t.Fatalf("expected %v, got %v", id, parsed)
	}
}

func TestSessionIDRoundTrip(t *testing.T) {
	id := NewSessionID()
	parsed, err := ParseSessionID(id.String())
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if parsed != id {
		t.Fatalf("expected %v, got %v", id, parsed)
	}
}

func TestParseDeviceIDRejectsGarbage(t *testing.T) {
	if _, err := ParseDeviceID("not-a-proquint!!"); err == nil {
		t.Fatal("expected an error for malformed input")
	}
}
