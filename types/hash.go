package types

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	// UInt160Size is the size of a script hash in bytes.
	UInt160Size = 20
	// UInt256Size is the size of a transaction or block hash in bytes.
	UInt256Size = 32
)

// ErrInvalidHash is returned when a hash string cannot be parsed.
var ErrInvalidHash = errors.New("invalid hash")

// UInt160 is a 20-byte script hash kept in the node's internal (little
// endian) byte order. Its textual form is 0x-prefixed, byte-reversed hex.
type UInt160 [UInt160Size]byte

// UInt160FromBytes copies b into a UInt160. b must be exactly 20 bytes.
func UInt160FromBytes(b []byte) (UInt160, error) {
	var u UInt160
	if len(b) != UInt160Size {
		return u, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidHash, UInt160Size, len(b))
	}
	copy(u[:], b)
	return u, nil
}

// ParseUInt160 parses the 0x-prefixed (or bare) big endian hex form.
func ParseUInt160(s string) (UInt160, error) {
	var u UInt160
	b, err := parseReversedHex(s, UInt160Size)
	if err != nil {
		return u, err
	}
	copy(u[:], b)
	return u, nil
}

// Bytes returns the hash in internal byte order.
func (u UInt160) Bytes() []byte { return append([]byte{}, u[:]...) }

func (u UInt160) String() string { return reversedHex(u[:]) }

// UInt256 is a 32-byte hash kept in internal (little endian) byte order.
type UInt256 [UInt256Size]byte

// UInt256FromBytes copies b into a UInt256. b must be exactly 32 bytes.
func UInt256FromBytes(b []byte) (UInt256, error) {
	var u UInt256
	if len(b) != UInt256Size {
		return u, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidHash, UInt256Size, len(b))
	}
	copy(u[:], b)
	return u, nil
}

// ParseUInt256 parses the 0x-prefixed (or bare) big endian hex form.
func ParseUInt256(s string) (UInt256, error) {
	var u UInt256
	b, err := parseReversedHex(s, UInt256Size)
	if err != nil {
		return u, err
	}
	copy(u[:], b)
	return u, nil
}

// Bytes returns the hash in internal byte order.
func (u UInt256) Bytes() []byte { return append([]byte{}, u[:]...) }

func (u UInt256) String() string { return reversedHex(u[:]) }

func reversedHex(b []byte) string {
	r := make([]byte, len(b))
	for i := range b {
		r[len(b)-1-i] = b[i]
	}
	return "0x" + hex.EncodeToString(r)
}

func parseReversedHex(s string, size int) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s) != size*2 {
		return nil, fmt.Errorf("%w: expected %d hex characters, got %d", ErrInvalidHash, size*2, len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return b, nil
}
