// Copyright 2026 The Attenda Authors
// SPDX-License-Identifier: Apache-2.0

package seal

import (
	"github.com/attenda-foundation/attenda/lib/ref"
	"github.com/attenda-foundation/attenda/lib/session"
)

// Key-server protocol bodies. Both sides encode with deterministic
// CBOR; the client owns these types and servers (including sealtest
// and cmd/attenda-keyserver) decode into them.
//
// Routes:
//
//	PUT  /v1/shares/{idHex}        ShareRegistration, at encrypt time
//	POST /v1/shares/{idHex}/fetch  FetchRequest -> FetchResponse
//
// {idHex} is the hex encryption ID; it must match the ID inside the
// body (registration) or the descriptor (fetch).

// ShareRegistration stores one server's key shares for an envelope.
// Shares are keyed by their Shamir x-coordinate; a server registered
// with weight w receives w entries.
type ShareRegistration struct {
	// EncryptionID is the raw ID the shares belong to.
	EncryptionID []byte `cbor:"1,keyasint"`

	// PackageID is the contract package evaluated for release.
	PackageID ref.ObjectID `cbor:"2,keyasint"`

	// Threshold is the weight required to reconstruct the key,
	// recorded so servers can refuse nonsensical registrations.
	Threshold int `cbor:"3,keyasint"`

	// TotalWeight is the combined weight across all servers.
	TotalWeight int `cbor:"4,keyasint"`

	// Shares holds this server's shares by x-coordinate.
	Shares map[byte][]byte `cbor:"5,keyasint"`
}

// FetchRequest asks a server to release its shares for the envelope
// named in the URL. The server verifies the credential, checks the
// request signature against the credential's ephemeral key, evaluates
// the descriptor against ledger state, and only then responds.
type FetchRequest struct {
	// Descriptor is the serialized approval descriptor
	// (policy.Descriptor bytes). Its encryption ID must match the
	// URL.
	Descriptor []byte `cbor:"1,keyasint"`

	// Credential is the signed session credential.
	Credential session.Credential `cbor:"2,keyasint"`

	// Signature is the ephemeral-key signature over Descriptor.
	Signature []byte `cbor:"3,keyasint"`
}

// FetchResponse releases a server's shares after approval.
type FetchResponse struct {
	// Shares holds the releasing server's shares by x-coordinate.
	Shares map[byte][]byte `cbor:"1,keyasint"`
}
