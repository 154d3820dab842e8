// Copyright 2026 The Attenda Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// addressBytes is the fixed byte length of ledger addresses and object
// IDs. The ledger uses 32-byte account addresses; the canonical text
// form is "0x" followed by 64 lowercase hex digits.
const addressBytes = 32

// Address is a validated ledger account address. It identifies a ticket
// holder or organizer on the chain.
//
// Address is an immutable value type. The zero value is not valid; use
// IsZero to check.
type Address struct {
	hex string // canonical "0x" + 64 lowercase hex digits
}

// ParseAddress validates and wraps a raw address string. Accepts the
// canonical form with the "0x" prefix, in any hex case; the parsed
// value is normalized to lowercase. Short forms are rejected — the
// ledger's own short-address display forms are ambiguous and must be
// expanded by the caller before they reach this core.
func ParseAddress(raw string) (Address, error) {
	normalized, err := parseHex32("address", raw)
	if err != nil {
		return Address{}, err
	}
	return Address{hex: normalized}, nil
}

// MustParseAddress is like ParseAddress but panics on error. Use in
// tests and static initialization where the input is known-valid.
func MustParseAddress(raw string) Address {
	a, err := ParseAddress(raw)
	if err != nil {
		panic(fmt.Sprintf("ref.MustParseAddress(%q): %v", raw, err))
	}
	return a
}

// AddressFromBytes wraps 32 raw address bytes, as produced by address
// derivation from a wallet public key.
func AddressFromBytes(raw []byte) (Address, error) {
	if len(raw) != addressBytes {
		return Address{}, fmt.Errorf("address must be %d bytes, got %d", addressBytes, len(raw))
	}
	return Address{hex: "0x" + hex.EncodeToString(raw)}, nil
}

// String returns the canonical address string ("0x" + 64 hex digits).
func (a Address) String() string { return a.hex }

// IsZero reports whether the Address is the zero value (uninitialized).
func (a Address) IsZero() bool { return a.hex == "" }

// Bytes returns the 32 raw address bytes.
func (a Address) Bytes() []byte {
	raw, err := hex.DecodeString(strings.TrimPrefix(a.hex, "0x"))
	if err != nil {
		// Unreachable: the constructor validated the hex.
		panic(fmt.Sprintf("ref: corrupt address %q: %v", a.hex, err))
	}
	return raw
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	if a.hex == "" {
		return nil, nil
	}
	return []byte(a.hex), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. An empty input
// produces the zero value (unset address).
func (a *Address) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*a = Address{}
		return nil
	}
	parsed, err := ParseAddress(string(data))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// parseHex32 validates a "0x"-prefixed 32-byte hex identifier and
// returns the normalized lowercase form. Shared by Address and
// ObjectID, which have identical wire formats but must not be
// interchangeable as Go types.
func parseHex32(kind, raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("empty %s", kind)
	}
	if !strings.HasPrefix(raw, "0x") {
		return "", fmt.Errorf("%s must start with \"0x\": %q", kind, raw)
	}
	digits := raw[2:]
	if len(digits) != 2*addressBytes {
		return "", fmt.Errorf("%s must have %d hex digits, got %d: %q", kind, 2*addressBytes, len(digits), raw)
	}
	if _, err := hex.DecodeString(digits); err != nil {
		return "", fmt.Errorf("%s is not valid hex: %q", kind, raw)
	}
	return "0x" + strings.ToLower(digits), nil
}
