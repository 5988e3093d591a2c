package types

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcutil/base58"
)

// AddressVersion is the version byte prepended to script hashes before
// base58check encoding.
const AddressVersion byte = 0x17

// AddressLength is the length of a base58check encoded address.
const AddressLength = 34

// ErrInvalidAddress is returned when a string is not a valid wallet address.
var ErrInvalidAddress = errors.New("invalid address")

// ToAddress encodes a script hash as a wallet address.
func ToAddress(scriptHash UInt160) string {
	return base58.CheckEncode(scriptHash[:], AddressVersion)
}

// AddressToScriptHash decodes a wallet address back into its script hash.
func AddressToScriptHash(address string) (UInt160, error) {
	payload, version, err := base58.CheckDecode(address)
	if err != nil {
		return UInt160{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if version != AddressVersion {
		return UInt160{}, fmt.Errorf("%w: unexpected version byte 0x%02x", ErrInvalidAddress, version)
	}
	hash, err := UInt160FromBytes(payload)
	if err != nil {
		return UInt160{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return hash, nil
}

// ParseAddressOrHash accepts either a 34-character wallet address or a hex
// script hash, as the query API does.
func ParseAddressOrHash(s string) (UInt160, error) {
	if len(s) == AddressLength {
		return AddressToScriptHash(s)
	}
	return ParseUInt160(s)
}
