package accessstore

import "testing"

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := hashPassword("correcthorse")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !verifyPassword("correcthorse", hash) {
		t.Fatal("expected correct password to verify")
	}
	if verifyPassword("wrongpassword", hash) {
		t.Fatal("expected incorrect password to fail verification")
	}
}

func TestHashPasswordUsesDistinctSalts(t *testing.T) {
	a, _ := hashPassword("correcthorse")
	b, _ := hashPassword("correcthorse")
	if a == b {
		t.Fatal("expected two hashes of the same password to differ due to random salt")
	}
}

func TestValidateUsername(t *testing.T) {
	if err := validateUsername("alice"); err != nil {
		t.Fatalf("expected a valid username to pass, got %v", err)
	}
	if err := validateUsername("a"); err == nil {
		t.Fatal("expected a too-short username to fail")
	}
	if err := validateUsername("Alice!"); err == nil {
		t.Fatal("expected an invalid-character username to fail")
	}
}

func TestValidatePassword(t *testing.T) {
	if err := validatePassword("correcthorse"); err != nil {
		t.Fatalf("expected a valid password to pass, got %v", err)
	}
	if err := validatePassword("abc"); err == nil {
		t.Fatal("expected a too-short password to fail")
	}
}
