// Copyright 2026 The Attenda Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret provides a memory-safe buffer for sensitive data:
// data encryption keys, reconstructed key shares, and decrypted ticket
// plaintext.
//
// [Buffer] allocates memory outside the Go heap via mmap(MAP_ANONYMOUS),
// locks it into physical RAM via mlock (preventing swap), and marks it
// excluded from core dumps via madvise(MADV_DONTDUMP). On Close, the
// memory is zeroed, unlocked, and unmapped. Because the memory lives
// outside the Go heap, the garbage collector cannot copy or relocate
// it, guaranteeing secret material does not persist after release.
//
// Constructors:
//
//   - [New] — allocates a zero-filled buffer of a given size
//   - [NewFromBytes] — copies into protected memory, zeros the source
//   - [NewRandom] — fills a fresh buffer from crypto/rand
//
// Access via [Buffer.Bytes] (slice into mmap region) or
// [Buffer.String] (heap copy for API boundaries). After Close, any
// access panics. Close is idempotent.
//
// Depends on golang.org/x/sys/unix. Imported by lib/seal for DEK
// handling and by lib/escrow for recovery bundle plaintext.
package secret
