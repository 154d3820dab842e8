// Copyright 2026 The Attenda Authors
// SPDX-License-Identifier: Apache-2.0

// Package ticketvault orchestrates the ticket lifecycle end to end:
// assemble the metadata record, threshold-encrypt it bound to the
// event's access policy, store the envelope in the blob store, and
// later fetch, authorize, and decrypt it for the holder. Each flow is
// a straight-line chain with network calls as the only suspension
// points; nothing is shared between concurrent flows.
//
// The vault never writes the ledger. Minting the ticket object (with
// the blob reference and commitment the vault returns) is the
// embedding application's transaction to submit.
package ticketvault

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	"github.com/attenda-foundation/attenda/lib/blobstore"
	"github.com/attenda-foundation/attenda/lib/clock"
	"github.com/attenda-foundation/attenda/lib/escrow"
	"github.com/attenda-foundation/attenda/lib/ledger"
	"github.com/attenda-foundation/attenda/lib/policy"
	"github.com/attenda-foundation/attenda/lib/ref"
	"github.com/attenda-foundation/attenda/lib/seal"
	"github.com/attenda-foundation/attenda/lib/session"
	"github.com/attenda-foundation/attenda/lib/ticketmeta"
)

// Config wires a vault.
type Config struct {
	// Seal is the threshold encryption client.
	Seal *seal.Client

	// Blobs is the blob store gateway.
	Blobs *blobstore.Client

	// Ledger reads ticket and policy objects. Optional: only Verify
	// needs it.
	Ledger ledger.Client

	// Clock drives issuance timestamps.
	Clock clock.Clock

	// RecoveryKeys are organizer age recovery keys. When set, Issue
	// emits a recovery bundle alongside the envelope.
	RecoveryKeys []string
}

// Vault issues and opens encrypted tickets. Safe for concurrent use.
type Vault struct {
	seal         *seal.Client
	blobs        *blobstore.Client
	ledger       ledger.Client
	clock        clock.Clock
	recoveryKeys []string
}

// New validates the wiring, including every configured recovery key:
// a bad key must fail deployment startup, not the first issuance.
func New(cfg Config) (*Vault, error) {
	if cfg.Seal == nil {
		return nil, fmt.Errorf("ticketvault: seal client is required")
	}
	if cfg.Blobs == nil {
		return nil, fmt.Errorf("ticketvault: blob store client is required")
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	for _, key := range cfg.RecoveryKeys {
		if err := escrow.ValidateRecoveryKey(key); err != nil {
			return nil, fmt.Errorf("ticketvault: %w", err)
		}
	}
	return &Vault{
		seal:         cfg.Seal,
		blobs:        cfg.Blobs,
		ledger:       cfg.Ledger,
		clock:        clk,
		recoveryKeys: cfg.RecoveryKeys,
	}, nil
}

// IssueResult is everything the caller needs to mint the ticket
// object and hand the holder their access path.
type IssueResult struct {
	// BlobID is the stored envelope's blob reference.
	BlobID ref.BlobID

	// URL is the blob store's direct read URL.
	URL string

	// EncryptionID is the envelope's raw encryption ID.
	EncryptionID []byte

	// Commitment is the BLAKE3 commitment of the encryption ID, the
	// value to write into the ticket object at mint.
	Commitment []byte

	// RecoveryBundle is the organizer escrow copy of the plaintext
	// record. Empty when no recovery keys are configured.
	RecoveryBundle string
}

// Issue assembles, encrypts, and stores one ticket. On any failure
// nothing usable is returned and nothing should be minted; shares or
// blobs registered by the failed attempt are unreferenced garbage.
func (v *Vault) Issue(ctx context.Context, params ticketmeta.Params) (*IssueResult, error) {
	record, err := ticketmeta.Assemble(params, v.clock)
	if err != nil {
		return nil, err
	}
	plaintext, err := record.Encode()
	if err != nil {
		return nil, err
	}

	// Escrow before any network traffic: a failed local seal should
	// not leave shares registered on key servers.
	recoveryBundle := ""
	if len(v.recoveryKeys) > 0 {
		recoveryBundle, err = escrow.Seal(plaintext, v.recoveryKeys)
		if err != nil {
			return nil, err
		}
	}

	envelope, err := v.seal.Encrypt(ctx, params.PolicyID, plaintext)
	if err != nil {
		return nil, err
	}

	reference, err := v.blobs.Put(ctx, envelope.Ciphertext, blobstore.Tags{
		"type":         ticketmeta.FormatType,
		"encrypted":    "true",
		"encryptionId": envelope.EncryptionIDHex(),
		"eventId":      params.EventID,
		"ticketId":     params.TicketID,
		"holder":       params.Holder.String(),
		"timestamp":    strconv.FormatInt(v.clock.Now().UTC().UnixMilli(), 10),
	})
	if err != nil {
		return nil, err
	}

	return &IssueResult{
		BlobID:         reference.BlobID,
		URL:            reference.URL,
		EncryptionID:   envelope.EncryptionID,
		Commitment:     seal.CommitEncryptionID(envelope.EncryptionID),
		RecoveryBundle: recoveryBundle,
	}, nil
}

// Open fetches, authorizes, and decrypts a stored ticket for the
// session's holder. The approval descriptor is built fresh from the
// envelope's own ID; the policyID argument must match the policy the
// envelope was bound to or the binding check fails before any key
// server is contacted.
func (v *Vault) Open(ctx context.Context, blobID ref.BlobID, credential *session.Credential, policyID ref.ObjectID) (*ticketmeta.TicketMetadata, error) {
	data, err := v.blobs.Get(ctx, blobID)
	if err != nil {
		return nil, err
	}

	envelope, err := seal.ParseEnvelope(data)
	if err != nil {
		return nil, err
	}

	approval, err := policy.Approval(envelope.PackageID, envelope.EncryptionID, policyID)
	if err != nil {
		return nil, err
	}

	plaintext, err := v.seal.Decrypt(ctx, data, credential, approval)
	if err != nil {
		return nil, err
	}

	record, err := ticketmeta.Decode(plaintext)
	if err != nil {
		return nil, err
	}
	if err := record.CheckCodePairing(); err != nil {
		return nil, err
	}
	return record, nil
}

// Verify cross-checks a minted ticket object against its stored
// envelope: the blob must exist, parse, and carry the encryption ID
// the ledger committed to. It needs no session — nothing here
// decrypts. Returns the ticket object so callers can also inspect
// status and ownership.
func (v *Vault) Verify(ctx context.Context, ticketID ref.ObjectID) (*ledger.TicketObject, error) {
	if v.ledger == nil {
		return nil, fmt.Errorf("ticketvault: no ledger client configured")
	}

	ticket, err := v.ledger.Ticket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	data, err := v.blobs.Get(ctx, ticket.BlobRef)
	if err != nil {
		return nil, err
	}
	envelope, err := seal.ParseEnvelope(data)
	if err != nil {
		return nil, err
	}

	commitment := seal.CommitEncryptionID(envelope.EncryptionID)
	if !bytes.Equal(commitment, ticket.MetadataCommitment) {
		return nil, fmt.Errorf("ticketvault: ticket %s: stored envelope does not match the ledger commitment", ticketID)
	}
	return ticket, nil
}
