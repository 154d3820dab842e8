// Copyright 2026 The Attenda Authors
// SPDX-License-Identifier: Apache-2.0

// Package ledger defines the read-only view of the chain this core
// consumes. The ledger itself — object storage, ownership transfer,
// transaction execution — is an external collaborator; this package
// holds only the typed object shapes and the Client interface the
// rest of the repo accepts. Implementations belong to the embedding
// application; tests and the CLI's offline mode use ledgertest.Fake.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/attenda-foundation/attenda/lib/ref"
)

// ErrObjectNotFound is returned when no object exists under the
// requested ID.
var ErrObjectNotFound = errors.New("ledger: object not found")

// TicketStatus is the on-chain ticket state enum. Values are fixed by
// the contract.
type TicketStatus uint8

const (
	// StatusValid — issued and usable.
	StatusValid TicketStatus = 0
	// StatusUsed — consumed at check-in.
	StatusUsed TicketStatus = 1
	// StatusRevoked — invalidated by the organizer.
	StatusRevoked TicketStatus = 2
)

// String returns the display name for the status.
func (s TicketStatus) String() string {
	switch s {
	case StatusValid:
		return "Valid"
	case StatusUsed:
		return "Used"
	case StatusRevoked:
		return "Revoked"
	default:
		return fmt.Sprintf("TicketStatus(%d)", uint8(s))
	}
}

// TicketObject is the ledger-side ticket. Note what is absent: no
// venue, no QR, no access link. The private payload lives only in the
// blob store, threshold-encrypted; the ledger carries the blob
// reference and a commitment of the encryption ID.
type TicketObject struct {
	// ID is the ticket object ID.
	ID ref.ObjectID `json:"id"`

	// EventID is the event this ticket admits to.
	EventID ref.ObjectID `json:"event_id"`

	// Owner is the current holder. Transfers update this field on
	// chain; the policy evaluation reads it live, which is why a
	// transferred ticket's old owner loses decryption access
	// without any re-encryption.
	Owner ref.Address `json:"owner"`

	// BlobRef is the blob store ID of the encrypted metadata.
	BlobRef ref.BlobID `json:"walrus_blob_id"`

	// MetadataCommitment is the BLAKE3 commitment of the encryption
	// ID, written at mint time. Opaque to the chain.
	MetadataCommitment []byte `json:"encrypted_meta_hash"`

	// TicketType is the contract's ticket class discriminator.
	TicketType uint8 `json:"ticket_type"`

	// Status is the ticket lifecycle state.
	Status TicketStatus `json:"status"`

	// CreatedAt is the mint time.
	CreatedAt time.Time `json:"created_at"`
}

// PolicyObject is the on-ledger access policy evaluated by key
// servers. Its field values are the contract's business; this core
// only ever references it by ID.
type PolicyObject struct {
	// ID is the policy object ID — the value ticket envelopes are
	// bound to.
	ID ref.ObjectID `json:"policy_id"`

	// EventID is the event the policy governs.
	EventID ref.ObjectID `json:"event_id"`
}

// Client is the read interface the ticket core needs from the chain.
// All methods are point reads of live state; none mutate anything.
type Client interface {
	// Ticket fetches a ticket object by ID. Returns
	// ErrObjectNotFound if no such object exists.
	Ticket(ctx context.Context, id ref.ObjectID) (*TicketObject, error)

	// Policy fetches an access policy object by ID. Returns
	// ErrObjectNotFound if no such object exists.
	Policy(ctx context.Context, id ref.ObjectID) (*PolicyObject, error)
}
