// Copyright 2026 The Attenda Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides Attenda's standard CBOR encoding configuration.
//
// The ticket core uses two serialization formats with a clear boundary:
//
//   - JSON for external interfaces: the QR check-in payload (parsed by
//     scanning devices that never see this code), the blob store HTTP
//     API, and the ticket metadata blob itself (fixed by the original
//     deployment's readers).
//   - CBOR for internal wire formats: envelope headers, session
//     challenges and credentials, approval descriptors, and the
//     key-server share protocol.
//
// This package provides the shared CBOR encoding and decoding modes so
// that every package encodes identically without duplicating
// configuration. The encoder uses Core Deterministic Encoding (RFC 8949
// §4.2): sorted map keys, smallest integer encoding, no
// indefinite-length items. Same logical data always produces identical
// bytes — which is what makes approval descriptor bytes and session
// challenge bytes stable enough to sign and to evaluate independently
// on every key server.
//
// For buffer-oriented operations:
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// Types that are only ever CBOR use `cbor` struct tags; types that
// serve both JSON and CBOR use `json` tags (fxamacker/cbor reads them
// as fallback). Never both on the same field.
package codec
