// Copyright 2026 The Attenda Authors
// SPDX-License-Identifier: Apache-2.0

// Package seal is the threshold encryption client. It encrypts ticket
// payloads under a fresh data encryption key, binds each ciphertext to
// an on-ledger access policy through its encryption ID, splits the key
// across a weighted set of independent key servers, and recombines
// enough shares to decrypt once the servers have approved a session's
// request.
//
// The encryption ID is the load-bearing construct: policy object bytes
// followed by a per-envelope random nonce. The prefix makes the
// ciphertext-to-policy binding checkable by anyone holding the ID; the
// nonce makes every envelope distinct even for identical plaintext
// under the same policy. The ID travels inside the ciphertext header,
// so decryption never depends on an external index.
//
// No share, key, or plaintext is ever cached. Decrypt derives what it
// needs, uses it, and zeros it. The only durable artifacts are the
// envelope (in the blob store) and the registered shares (on the key
// servers), and neither alone decrypts anything.
package seal
