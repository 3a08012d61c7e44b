// Package proquint renders unsigned integers as pronounceable identifiers
// ("PRO-nouncable QUINT-uplets") suitable for opaque ids handed to clients:
// site ids, chunk ids, device ids, session ids.
package proquint

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"strings"
)

const consonants = "bdfghjklmnprstvz"
const vowels = "aiou"

// encodeWord renders the low 16 bits of v as a 5-letter consonant-vowel word.
func encodeWord(v uint16) string {
	var b [5]byte
	b[0] = consonants[(v>>12)&0xF]
	b[1] = vowels[(v>>10)&0x3]
	b[2] = consonants[(v>>6)&0xF]
	b[3] = vowels[(v>>4)&0x3]
	b[4] = consonants[v&0xF]
	return string(b[:])
}

func decodeWord(s string) (uint16, error) {
	if len(s) != 5 {
		return 0, fmt.Errorf("proquint: word %q must be 5 characters", s)
	}
	ci := func(c byte) (uint16, bool) {
		i := strings.IndexByte(consonants, c)
		if i < 0 {
			return 0, false
		}
		return uint16(i), true
	}
	vi := func(c byte) (uint16, bool) {
		i := strings.IndexByte(vowels, c)
		if i < 0 {
			return 0, false
		}
		return uint16(i), true
	}
	c0, ok := ci(s[0])
	if !ok {
		return 0, fmt.Errorf("proquint: invalid consonant %q", s[0])
	}
	v0, ok := vi(s[1])
	if !ok {
		return 0, fmt.Errorf("proquint: invalid vowel %q", s[1])
	}
	c1, ok := ci(s[2])
	if !ok {
		return 0, fmt.Errorf("proquint: invalid consonant %q", s[2])
	}
	v1, ok := vi(s[3])
	if !ok {
		return 0, fmt.Errorf("proquint: invalid vowel %q", s[3])
	}
	c2, ok := ci(s[4])
	if !ok {
		return 0, fmt.Errorf("proquint: invalid consonant %q", s[4])
	}
	return (c0 << 12) | (v0 << 10) | (c1 << 6) | (v1 << 4) | c2, nil
}

// EncodeUint16 renders v as a single proquint word, e.g. "lusab".
func EncodeUint16(v uint16) string {
	return encodeWord(v)
}

// DecodeUint16 parses a single proquint word back into its value.
func DecodeUint16(s string) (uint16, error) {
	return decodeWord(s)
}

// EncodeUint32 renders v as two proquint words joined by a hyphen,
// e.g. "lusab-lomad".
func EncodeUint32(v uint32) string {
	hi := uint16(v >> 16)
	lo := uint16(v)
	return encodeWord(hi) + "-" + encodeWord(lo)
}

// DecodeUint32 parses a two-word proquint back into its value.
func DecodeUint32(s string) (uint32, error) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("proquint: %q is not a two-word proquint", s)
	}
	hi, err := decodeWord(parts[0])
	if err != nil {
		return 0, err
	}
	lo, err := decodeWord(parts[1])
	if err != nil {
		return 0, err
	}
	return uint32(hi)<<16 | uint32(lo), nil
}

// RandomUint16 returns a cryptographically random 16-bit id.
func RandomUint16() uint16 {
	var b [2]byte
	_, _ = rand.Read(b[:])
	return binary.BigEndian.Uint16(b[:])
}

// RandomUint32 returns a cryptographically random 32-bit id.
func RandomUint32() uint32 {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return binary.BigEndian.Uint32(b[:])
}
