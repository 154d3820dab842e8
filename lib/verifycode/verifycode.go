// Copyright 2026 The Attenda Authors
// SPDX-License-Identifier: Apache-2.0

// Package verifycode generates the short human-readable verification
// codes embedded in ticket QR payloads. A code is shown by the holder
// and read aloud or typed at check-in when scanning fails.
//
// Codes are statistically unique over realistic ticket volumes but
// carry no global uniqueness guarantee: nothing tracks issued codes,
// and two tickets for the same event can collide. Check-in
// disambiguation rests on the ticket ID, never on the code alone.
package verifycode

import (
	"crypto/rand"
	"fmt"
)

// Length is the fixed number of characters in a verification code.
const Length = 8

// alphabet is the code character set: uppercase letters and digits,
// which survive handwriting, phone screens, and spoken exchange
// better than mixed case.
const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// rejectAbove is the rejection-sampling cutoff: the largest multiple
// of the alphabet size that fits in a byte. Bytes at or above it are
// discarded; reducing them modulo the alphabet would skew the draw
// toward the first 256 mod 36 characters.
const rejectAbove = byte(len(alphabet) * (256 / len(alphabet)))

// New returns a fresh verification code: Length characters drawn
// uniformly from the uppercase alphanumeric alphabet using
// crypto/rand. It never fails in practice; an unreadable system
// random source panics, since no ticket must ever be issued with a
// predictable code.
func New() string {
	code := make([]byte, 0, Length)
	raw := make([]byte, Length)
	for len(code) < Length {
		if _, err := rand.Read(raw); err != nil {
			panic(fmt.Sprintf("verifycode: system random source unavailable: %v", err))
		}
		for _, b := range raw {
			if b >= rejectAbove {
				continue
			}
			code = append(code, alphabet[int(b)%len(alphabet)])
			if len(code) == Length {
				break
			}
		}
	}
	return string(code)
}

// Valid reports whether s has the shape of a verification code:
// exactly Length characters from the code alphabet. It says nothing
// about whether the code was ever issued.
func Valid(s string) bool {
	if len(s) != Length {
		return false
	}
	for _, r := range s {
		if !((r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	return true
}
