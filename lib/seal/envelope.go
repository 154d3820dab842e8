// Copyright 2026 The Attenda Authors
// SPDX-License-Identifier: Apache-2.0

package seal

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/attenda-foundation/attenda/lib/codec"
	"github.com/attenda-foundation/attenda/lib/ref"
)

// ErrParse is returned when ciphertext bytes are not a well-formed
// envelope: truncated, an unknown version, or a corrupt header. The
// blob is unusable; there is nothing to retry.
var ErrParse = errors.New("seal: malformed envelope")

// Envelope format constants. Changing any of these orphans every
// envelope already in the blob store.
const (
	// envelopeVersion is the leading format byte.
	envelopeVersion = 0x01

	// NonceSize is the length of the random suffix appended to the
	// policy bytes to form an encryption ID.
	NonceSize = 5

	// EncryptionIDSize is the full ID length: 32 policy object bytes
	// plus the nonce.
	EncryptionIDSize = 32 + NonceSize
)

// envelopeHeader is the CBOR header embedded in every ciphertext. It
// is authenticated (the serialized prefix up to and including these
// bytes is the AEAD additional data) but not secret.
type envelopeHeader struct {
	// EncryptionID is the raw ID: policy bytes ++ nonce.
	EncryptionID []byte `cbor:"1,keyasint"`

	// PackageID is the contract package whose seal_approve governs
	// this envelope.
	PackageID ref.ObjectID `cbor:"2,keyasint"`

	// Threshold is the share weight required to reconstruct the key.
	Threshold int `cbor:"3,keyasint"`

	// TotalWeight is the combined weight of all registered shares.
	TotalWeight int `cbor:"4,keyasint"`
}

// Envelope is a sealed ticket payload plus everything its header
// declares. Envelopes are immutable: metadata changes mean a new
// encryption, a new ID, a new envelope.
type Envelope struct {
	// PolicyID is the access policy this envelope is bound to,
	// recovered from the encryption ID prefix.
	PolicyID ref.ObjectID

	// EncryptionID is the raw ID bytes (policy prefix ++ nonce).
	EncryptionID []byte

	// PackageID is the contract package whose seal_approve governs
	// this envelope.
	PackageID ref.ObjectID

	// Threshold is the share weight required to decrypt.
	Threshold int

	// TotalWeight is the combined weight of all registered shares.
	TotalWeight int

	// Ciphertext is the complete self-describing envelope: version
	// byte, header length, header, AEAD nonce, sealed payload.
	Ciphertext []byte

	// headerEnd is the offset one past the CBOR header. Bytes before
	// it are the AEAD additional data; the AEAD nonce starts here.
	headerEnd int
}

// EncryptionIDHex returns the hex form of the encryption ID, the
// spelling used in key-server URLs and logs.
func (e *Envelope) EncryptionIDHex() string {
	return hex.EncodeToString(e.EncryptionID)
}

// encodeEnvelopePrefix assembles the authenticated prefix:
//
//	byte  0       version (0x01)
//	bytes 1..2    big-endian uint16 header length
//	...           CBOR header
//
// The AEAD nonce and sealed payload follow it on the wire.
func encodeEnvelopePrefix(header *envelopeHeader) ([]byte, error) {
	headerBytes, err := codec.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("seal: encoding envelope header: %w", err)
	}
	if len(headerBytes) > 0xffff {
		return nil, fmt.Errorf("seal: envelope header is %d bytes, limit is 65535", len(headerBytes))
	}

	prefix := make([]byte, 3+len(headerBytes))
	prefix[0] = envelopeVersion
	binary.BigEndian.PutUint16(prefix[1:3], uint16(len(headerBytes)))
	copy(prefix[3:], headerBytes)
	return prefix, nil
}

// ParseEnvelope validates ciphertext bytes and recovers the envelope
// identifiers without decrypting anything. The encryption ID always
// comes from the ciphertext itself, never from an external index, so
// a swapped or corrupted blob fails here rather than producing a
// plausible-looking decrypt against the wrong policy.
//
// EncryptionID and Ciphertext alias the input slice.
func ParseEnvelope(ciphertext []byte) (*Envelope, error) {
	if len(ciphertext) < 3 {
		return nil, fmt.Errorf("%w: %d bytes is shorter than any envelope", ErrParse, len(ciphertext))
	}
	if ciphertext[0] != envelopeVersion {
		return nil, fmt.Errorf("%w: unknown version 0x%02x", ErrParse, ciphertext[0])
	}

	headerLength := int(binary.BigEndian.Uint16(ciphertext[1:3]))
	if len(ciphertext) < 3+headerLength {
		return nil, fmt.Errorf("%w: truncated header", ErrParse)
	}

	var header envelopeHeader
	if err := codec.Unmarshal(ciphertext[3:3+headerLength], &header); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrParse, err)
	}
	if len(header.EncryptionID) != EncryptionIDSize {
		return nil, fmt.Errorf("%w: encryption ID has %d bytes, want %d",
			ErrParse, len(header.EncryptionID), EncryptionIDSize)
	}
	if header.PackageID.IsZero() || header.Threshold < 1 || header.TotalWeight < header.Threshold {
		return nil, fmt.Errorf("%w: inconsistent header", ErrParse)
	}

	policyID, err := ref.ObjectIDFromBytes(header.EncryptionID[:32])
	if err != nil {
		return nil, fmt.Errorf("%w: policy prefix: %v", ErrParse, err)
	}

	return &Envelope{
		PolicyID:     policyID,
		EncryptionID: header.EncryptionID,
		PackageID:    header.PackageID,
		Threshold:    header.Threshold,
		TotalWeight:  header.TotalWeight,
		Ciphertext:   ciphertext,
		headerEnd:    3 + headerLength,
	}, nil
}

// commitmentContext is the BLAKE3 key-derivation context for
// encryption-ID commitments. Fixed: ledger objects written under it
// are verified under it forever.
const commitmentContext = "attenda 2026-01-12 encryption id commitment"

// CommitEncryptionID returns the 32-byte commitment of an encryption
// ID, the value the ledger ticket object records at mint time. The
// commitment hides nothing (the ID is not secret) but pins the ticket
// object to exactly one envelope.
func CommitEncryptionID(encryptionID []byte) []byte {
	out := make([]byte, 32)
	blake3.DeriveKey(commitmentContext, encryptionID, out)
	return out
}
