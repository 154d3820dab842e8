// Copyright 2026 The Attenda Authors
// SPDX-License-Identifier: Apache-2.0

// Package qrticket defines the check-in QR payload and renders it as
// an image-embeddable PNG data URL.
//
// The JSON field names are load-bearing: check-in scanners parse the
// payload independently of this code, so ticketId, eventId, holder,
// timestamp (integer milliseconds), and verificationCode must never
// change. The payload travels inside the encrypted portion of the
// ticket metadata; it is never stored on the ledger.
package qrticket

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/attenda-foundation/attenda/lib/ref"
	"github.com/attenda-foundation/attenda/lib/verifycode"
)

// ErrEncoding is returned when a payload cannot be serialized or a
// scanned payload cannot be parsed back. Not retryable: the input is
// malformed.
var ErrEncoding = errors.New("qrticket: malformed payload")

// imageSize is the rendered QR image edge length in pixels. Large
// enough for a phone screen held at arm's length and for 300dpi
// printing at wallet-card size.
const imageSize = 300

// Payload is the check-in payload embedded in a ticket's QR image.
// Serialized as JSON with these exact field names; external scanning
// devices depend on them.
type Payload struct {
	// TicketID is the ledger ticket object ID string.
	TicketID string `json:"ticketId"`

	// EventID is the ledger event object ID string.
	EventID string `json:"eventId"`

	// Holder is the ticket holder's ledger address.
	Holder ref.Address `json:"holder"`

	// Timestamp is the payload creation time in Unix milliseconds.
	Timestamp int64 `json:"timestamp"`

	// VerificationCode is the human-readable fallback code. It is
	// generated once, together with this payload, and mirrored in
	// the ticket's encrypted metadata — the two are never
	// regenerated independently.
	VerificationCode string `json:"verificationCode"`
}

// validate checks the payload invariants shared by encode and decode.
func (p *Payload) validate() error {
	if p.TicketID == "" {
		return fmt.Errorf("%w: missing ticketId", ErrEncoding)
	}
	if p.EventID == "" {
		return fmt.Errorf("%w: missing eventId", ErrEncoding)
	}
	if p.Holder.IsZero() {
		return fmt.Errorf("%w: missing holder", ErrEncoding)
	}
	if p.Timestamp <= 0 {
		return fmt.Errorf("%w: timestamp must be positive, got %d", ErrEncoding, p.Timestamp)
	}
	if !verifycode.Valid(p.VerificationCode) {
		return fmt.Errorf("%w: verification code %q is not %d uppercase alphanumerics", ErrEncoding, p.VerificationCode, verifycode.Length)
	}
	return nil
}

// Encode serializes the payload to its canonical JSON form — the
// exact bytes embedded in the QR image. Deterministic given the
// payload (encoding/json emits struct fields in declaration order).
func Encode(p *Payload) ([]byte, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	return data, nil
}

// Decode parses a scanned payload back into its structured form and
// re-validates it. Scanners feed the raw QR content here.
func Decode(data []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// DataURL renders the payload as a PNG QR image and returns it as a
// base64 data URL suitable for embedding in the encrypted metadata.
// Error-correction level H (30% recovery) so printed tickets survive
// creasing and smudges. No network access; rendering is local.
func DataURL(p *Payload) (string, error) {
	content, err := Encode(p)
	if err != nil {
		return "", err
	}
	png, err := qrcode.Encode(string(content), qrcode.Highest, imageSize)
	if err != nil {
		return "", fmt.Errorf("%w: rendering QR image: %v", ErrEncoding, err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

// Verify reports whether raw QR content names the expected ticket and
// carries a plausible timestamp. This is the cheap first-pass check a
// scanner runs before any ledger lookup; a true result is not proof
// of validity.
func Verify(content []byte, ticketID string) bool {
	p, err := Decode(content)
	if err != nil {
		return false
	}
	return p.TicketID == ticketID && p.Timestamp > 0
}
