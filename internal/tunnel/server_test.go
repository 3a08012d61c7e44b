package tunnel

import "testing"

func TestExtractHostHeader(t *testing.T) {
	req := "GET / HTTP/1.1\r\nHost: babab-lusak.example.com\r\nUser-Agent: curl\r\n\r\n"
	host, err := extractHostHeader(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if host != "babab-lusak.example.com" {
		t.Fatalf("got %q", host)
	}
}

func TestExtractHostHeaderMissing(t *testing.T) {
	req := "GET / HTTP/1.1\r\nUser-Agent: curl\r\n\r\n"
	if _, err := extractHostHeader(req); err != errMissingHostHeader {
		t.Fatalf("expected errMissingHostHeader, got %v", err)
	}
}

func TestDecodeDeviceIDFromSubdomainFirstLabel(t *testing.T) {
	id := DeviceID(99)
	host := id.String() + ".tunnel.example.com"
	got, err := decodeDeviceIDFromSubdomain(host)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != id {
		t.Fatalf("expected %v, got %v", id, got)
	}
}

func TestDecodeDeviceIDFromSubdomainSecondLabelFallback(t *testing.T) {
	id := DeviceID(99)
	// First label isn't a valid proquint (e.g. a service prefix); the
	// decoder falls back to the second label.
	host := "api." + id.String() + ".example.com"
	got, err := decodeDeviceIDFromSubdomain(host)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != id {
		t.Fatalf("expected %v, got %v", id, got)
	}
}

func TestDecodeDeviceIDFromSubdomainInvalid(t *testing.T) {
	if _, err := decodeDeviceIDFromSubdomain("totally-bogus.example.com"); err != errInvalidHostFormat {
		t.Fatalf("expected errInvalidHostFormat, got %v", err)
	}
}
