// Copyright 2026 The Attenda Authors
// SPDX-License-Identifier: Apache-2.0

// Package ref provides strongly typed, immutable identity references for
// the objects the ticket core touches: ledger addresses, ledger object
// IDs (events, tickets, access policies, key-server registrations), and
// blob store IDs.
//
// All constructors validate their inputs and return errors for invalid
// identifiers. Once constructed, a ref is immutable. Address and
// ObjectID are 32-byte values carried in the canonical "0x" + 64 hex
// digit form; BlobID is an opaque store-assigned string.
//
// The canonical serialization form is the string form. JSON and CBOR
// marshaling use it via encoding.TextMarshaler, so wire formats carry
// identifiers as text, never as raw structs.
package ref
