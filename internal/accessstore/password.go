package accessstore

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/talebox/slepau/internal/common/regexes"
	"github.com/talebox/slepau/internal/common/slepauerr"
)

// Argon2id parameters, matching the OWASP-recommended minimums already used
// for vault key derivation elsewhere in this codebase's ancestry.
const (
	argon2Time    = 3
	argon2Memory  = 64 * 1024
	argon2Threads = 4
	argon2KeyLen  = 32
	saltLen       = 16
)

// hashPassword returns a self-describing Argon2id hash string of the form
// "$argon2id$v=19$m=65536,t=3,p=4$<salt>$<hash>", analogous to the
// reference libsodium/argon2 encoding.
func hashPassword(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("accessstore: generate salt: %w", err)
	}
	hash := argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
	encoded := fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		argon2Memory, argon2Time, argon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	)
	return encoded, nil
}

// verifyPassword checks password against a hash produced by hashPassword.
func verifyPassword(password, encoded string) bool {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false
	}
	var mem uint32
	var t uint32
	var p uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &t, &p); err != nil {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}
	got := argon2.IDKey([]byte(password), salt, t, mem, p, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}

// validateUsername enforces the username regex and the substring blacklist.
func validateUsername(username string) error {
	if !regexes.Username.MatchString(username) {
		return slepauerr.InvalidUsername("must be 3-32 lowercase alphanumeric/underscore characters")
	}
	for _, blocked := range regexes.UsernameBlacklist {
		if strings.Contains(username, blocked) {
			return slepauerr.InvalidUsername("username not allowed")
		}
	}
	return nil
}

// validatePassword enforces the password length regex.
func validatePassword(password string) error {
	if !regexes.Password.MatchString(password) {
		return slepauerr.InvalidPassword("must be 6-64 characters")
	}
	return nil
}
