// Copyright 2026 The Attenda Authors
// SPDX-License-Identifier: Apache-2.0

// Package ticketmeta assembles the two-tier ticket metadata record:
// public fields that are safe to expose, and the private payload
// (venue, QR image, access link, verification code) that only ever
// leaves this process threshold-encrypted.
//
// Assembly is pure construction. Encryption, storage, and ledger
// writes are delegated to lib/seal, lib/blobstore, and the caller —
// nothing here performs I/O beyond rendering the QR image.
//
// The whole record, public tier included, goes inside the encrypted
// envelope; the ledger ticket object carries only a commitment of the
// encryption ID. The JSON field names below are the blob format the
// original deployment's readers parse and are fixed.
package ticketmeta

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/attenda-foundation/attenda/lib/clock"
	"github.com/attenda-foundation/attenda/lib/qrticket"
	"github.com/attenda-foundation/attenda/lib/ref"
	"github.com/attenda-foundation/attenda/lib/verifycode"
)

// ErrInvalidInput is returned when assembly parameters are incomplete.
// Not retryable: the caller must supply the missing field.
var ErrInvalidInput = errors.New("ticketmeta: invalid input")

// Format discriminators carried in every record.
const (
	// FormatVersion is the metadata schema version.
	FormatVersion = "1.0"

	// FormatType tags the record so readers can reject blobs that
	// are not ticket metadata.
	FormatType = "attenda-ticket"
)

// Defaults applied by Assemble when optional fields are absent.
const (
	// DefaultTicketType is the public ticket class when the event
	// does not define tiers.
	DefaultTicketType = "General Admission"

	// DefaultLocation stands in until the organizer announces the
	// venue.
	DefaultLocation = "TBA"

	// defaultSecretNote is embedded in every private payload.
	defaultSecretNote = "This is your encrypted ticket. Keep it safe!"
)

// PublicInfo is the tier of the record that would be safe to expose
// unencrypted. It still travels inside the envelope in this design.
type PublicInfo struct {
	EventName  string `json:"eventName"`
	TicketType string `json:"ticketType"`
	Status     string `json:"status"`
}

// PrivatePayload is the protected tier: everything a venue gate or
// stream link could be abused from.
type PrivatePayload struct {
	// Location is the venue, or DefaultLocation when unannounced.
	Location string `json:"location"`

	// QRCode is the check-in QR image as a PNG data URL.
	QRCode string `json:"qrCode"`

	// QRPayload is the canonical JSON embedded in QRCode. Carried
	// alongside the image so the pairing invariant below is
	// checkable without scanning pixels.
	QRPayload json.RawMessage `json:"qrPayload"`

	// AccessLink is the holder's entry URL (stream link, door
	// code page).
	AccessLink string `json:"accessLink"`

	// VerificationCode mirrors the code inside QRPayload. The two
	// are generated together, exactly once, and never regenerated
	// independently.
	VerificationCode string `json:"verificationCode"`

	// StartTime is the event start in RFC 3339 form.
	StartTime string `json:"startTime"`

	// SecretNote is a fixed holder-facing note proving decryption
	// produced the real payload.
	SecretNote string `json:"secretNote"`
}

// TicketMetadata is the complete assembled record, plaintext form.
// Immutable once assembled: a changed ticket is a new record under a
// new envelope.
type TicketMetadata struct {
	Version    string `json:"version"`
	Type       string `json:"type"`
	EventTitle string `json:"eventTitle"`
	EventID    string `json:"eventId"`
	TicketID   string `json:"ticketId"`

	// Holder is the address the ticket is bound to. Decryption is
	// only ever granted to this address by the policy object.
	Holder ref.Address `json:"holder"`

	// IssuedAt is the assembly timestamp, RFC 3339.
	IssuedAt string `json:"issuedAt"`

	PublicInfo    PublicInfo     `json:"publicInfo"`
	EncryptedData PrivatePayload `json:"encryptedData"`
}

// Params are the inputs to Assemble. EventID, TicketID, Holder, and
// PolicyID are required; the rest defaults sensibly.
type Params struct {
	EventID    string
	TicketID   string
	EventTitle string
	Holder     ref.Address

	// PolicyID is the access policy object the encrypted record
	// will be bound to. Assembly itself never touches it, but a
	// record that cannot be bound to a policy must not exist, so
	// its absence fails assembly rather than a later encrypt call.
	PolicyID ref.ObjectID

	// Location, AccessLink, StartTime, and TicketType are optional.
	Location   string
	AccessLink string
	StartTime  time.Time
	TicketType string
}

// Assemble generates one verification code and one QR payload, renders
// the QR image, and composes the two-tier record. The code appears in
// exactly two places — the QR payload and the private payload — and
// both come from the same draw.
func Assemble(params Params, clk clock.Clock) (*TicketMetadata, error) {
	if params.EventID == "" {
		return nil, fmt.Errorf("%w: event ID is required", ErrInvalidInput)
	}
	if params.TicketID == "" {
		return nil, fmt.Errorf("%w: ticket ID is required", ErrInvalidInput)
	}
	if params.Holder.IsZero() {
		return nil, fmt.Errorf("%w: holder address is required", ErrInvalidInput)
	}
	if params.PolicyID.IsZero() {
		return nil, fmt.Errorf("%w: policy ID is required, encryption cannot be bound to anything", ErrInvalidInput)
	}

	now := clk.Now().UTC()

	code := verifycode.New()
	payload := &qrticket.Payload{
		TicketID:         params.TicketID,
		EventID:          params.EventID,
		Holder:           params.Holder,
		Timestamp:        now.UnixMilli(),
		VerificationCode: code,
	}
	payloadJSON, err := qrticket.Encode(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding QR payload: %w", err)
	}
	qrImage, err := qrticket.DataURL(payload)
	if err != nil {
		return nil, fmt.Errorf("rendering QR image: %w", err)
	}

	location := params.Location
	if location == "" {
		location = DefaultLocation
	}
	accessLink := params.AccessLink
	if accessLink == "" {
		accessLink = fmt.Sprintf("https://attenda.app/events/%s/access", params.EventID)
	}
	startTime := params.StartTime
	if startTime.IsZero() {
		startTime = now
	}
	ticketType := params.TicketType
	if ticketType == "" {
		ticketType = DefaultTicketType
	}

	return &TicketMetadata{
		Version:    FormatVersion,
		Type:       FormatType,
		EventTitle: params.EventTitle,
		EventID:    params.EventID,
		TicketID:   params.TicketID,
		Holder:     params.Holder,
		IssuedAt:   now.Format(time.RFC3339),
		PublicInfo: PublicInfo{
			EventName:  params.EventTitle,
			TicketType: ticketType,
			Status:     "Valid",
		},
		EncryptedData: PrivatePayload{
			Location:         location,
			QRCode:           qrImage,
			QRPayload:        payloadJSON,
			AccessLink:       accessLink,
			VerificationCode: code,
			StartTime:        startTime.UTC().Format(time.RFC3339),
			SecretNote:       defaultSecretNote,
		},
	}, nil
}

// Encode serializes the record to the JSON blob format — the exact
// bytes handed to the threshold encryption client.
func (m *TicketMetadata) Encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("ticketmeta: encoding record: %w", err)
	}
	return data, nil
}

// Decode parses a decrypted blob back into a record and checks the
// format discriminators and the verification-code pairing invariant.
func Decode(data []byte) (*TicketMetadata, error) {
	var m TicketMetadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("ticketmeta: parsing record: %w", err)
	}
	if m.Type != FormatType {
		return nil, fmt.Errorf("ticketmeta: record type %q, want %q", m.Type, FormatType)
	}
	if err := m.CheckCodePairing(); err != nil {
		return nil, err
	}
	return &m, nil
}

// CheckCodePairing verifies that the private payload's verification
// code equals the code embedded in its QR payload. A mismatch means
// the record was tampered with or assembled outside this package.
func (m *TicketMetadata) CheckCodePairing() error {
	embedded, err := qrticket.Decode(m.EncryptedData.QRPayload)
	if err != nil {
		return fmt.Errorf("ticketmeta: QR payload in record: %w", err)
	}
	if embedded.VerificationCode != m.EncryptedData.VerificationCode {
		return fmt.Errorf("ticketmeta: verification code %q does not match QR payload code %q",
			m.EncryptedData.VerificationCode, embedded.VerificationCode)
	}
	return nil
}
