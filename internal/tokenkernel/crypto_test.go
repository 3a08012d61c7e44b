package tokenkernel

import "testing"

func TestSealOpenRoundTrip(t *testing.T) {
	key := make([]byte, 32)
	s, err := newSealer(key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	claims := Claims{Issuer: issuer, Audience: "example.com", User: "alice"}
	token, err := s.seal(claims)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := s.open(token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.User != "alice" || got.Audience != "example.com" {
		t.Fatalf("unexpected round-tripped claims: %+v", got)
	}
}

func TestNewSealerRejectsWrongKeySize(t *testing.T) {
	if _, err := newSealer(make([]byte, 16)); err == nil {
		t.Fatal("expected a 16-byte key to be rejected")
	}
}

func TestOpenRejectsTamperedToken(t *testing.T) {
	key := make([]byte, 32)
	s, _ := newSealer(key)
	token, _ := s.seal(Claims{User: "alice"})

	tampered := []byte(token)
	tampered[len(tampered)-1] ^= 0xFF
	if _, err := s.open(string(tampered)); err == nil {
		t.Fatal("expected a tampered token to fail to decrypt")
	}
}

func TestOpenRejectsGarbage(t *testing.T) {
	key := make([]byte, 32)
	s, _ := newSealer(key)
	if _, err := s.open("not-valid-base64!!!"); err == nil {
		t.Fatal("expected garbage input to fail")
	}
}
