// Copyright 2026 The Attenda Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// ObjectID is a validated ledger object ID. Events, tickets, access
// policies, and key-server registrations are all ledger objects
// identified this way. The wire format is identical to Address ("0x" +
// 64 hex digits) but the two are distinct Go types: an object ID is
// never a valid signer and an address is never a valid object
// reference.
//
// ObjectID is an immutable value type. The zero value is not valid;
// use IsZero to check.
type ObjectID struct {
	hex string
}

// ParseObjectID validates and wraps a raw object ID string. Accepts
// the canonical "0x"-prefixed form in any hex case and normalizes to
// lowercase.
func ParseObjectID(raw string) (ObjectID, error) {
	normalized, err := parseHex32("object ID", raw)
	if err != nil {
		return ObjectID{}, err
	}
	return ObjectID{hex: normalized}, nil
}

// ObjectIDFromBytes wraps 32 raw object ID bytes. This is the inverse
// of Bytes; envelope parsing uses it to recover the policy reference
// from an encryption ID prefix.
func ObjectIDFromBytes(raw []byte) (ObjectID, error) {
	if len(raw) != 32 {
		return ObjectID{}, fmt.Errorf("object ID must be 32 bytes, got %d", len(raw))
	}
	return ObjectID{hex: "0x" + hex.EncodeToString(raw)}, nil
}

// MustParseObjectID is like ParseObjectID but panics on error. Use in
// tests and static initialization where the input is known-valid.
func MustParseObjectID(raw string) ObjectID {
	o, err := ParseObjectID(raw)
	if err != nil {
		panic(fmt.Sprintf("ref.MustParseObjectID(%q): %v", raw, err))
	}
	return o
}

// String returns the canonical object ID string ("0x" + 64 hex digits).
func (o ObjectID) String() string { return o.hex }

// IsZero reports whether the ObjectID is the zero value (uninitialized).
func (o ObjectID) IsZero() bool { return o.hex == "" }

// Bytes returns the 32 raw object ID bytes. These are the bytes that
// prefix every encryption ID bound to a policy object.
func (o ObjectID) Bytes() []byte {
	raw, err := hex.DecodeString(strings.TrimPrefix(o.hex, "0x"))
	if err != nil {
		// Unreachable: the constructor validated the hex.
		panic(fmt.Sprintf("ref: corrupt object ID %q: %v", o.hex, err))
	}
	return raw
}

// MarshalText implements encoding.TextMarshaler.
func (o ObjectID) MarshalText() ([]byte, error) {
	if o.hex == "" {
		return nil, nil
	}
	return []byte(o.hex), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. An empty input
// produces the zero value (unset object ID).
func (o *ObjectID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*o = ObjectID{}
		return nil
	}
	parsed, err := ParseObjectID(string(data))
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}
