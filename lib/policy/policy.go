// Copyright 2026 The Attenda Authors
// SPDX-License-Identifier: Apache-2.0

// Package policy builds the unsigned, ledger-native authorization
// descriptors that accompany every share fetch. A descriptor invokes
// the deployment's seal_approve entry point with the raw encryption ID
// and a reference to the policy object; each key server simulates it
// against current ledger state to decide whether the requester
// satisfies the policy. Nothing here touches the ledger: descriptors
// are constructed locally, never signed, and never submitted as real
// transactions.
//
// Descriptors are single-attempt by design. They are evaluated against
// live ledger state, so a cached descriptor can embed a stale view of
// the world; build a fresh one for every decrypt.
package policy

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/attenda-foundation/attenda/lib/codec"
	"github.com/attenda-foundation/attenda/lib/ref"
)

// Ledger module and entry point evaluated by key servers. Fixed by the
// deployed contract package.
const (
	// ModuleName is the contract module holding the approval logic.
	ModuleName = "ticket_seal"

	// ApproveEntryPoint is the entry function key servers simulate.
	ApproveEntryPoint = "seal_approve"
)

// ErrBinding is returned when an encryption ID is not bound to the
// claimed policy object (its policy-derived prefix differs).
var ErrBinding = errors.New("policy: encryption ID is not bound to policy object")

// Descriptor is an unsigned approval call. It is handed to key
// servers as opaque bytes; they evaluate it, the caller never does.
type Descriptor struct {
	// Target is the fully qualified entry point:
	// "{package}::ticket_seal::seal_approve".
	Target string `cbor:"1,keyasint"`

	// EncryptionID is the raw encryption ID bytes — the first
	// argument to the entry point.
	EncryptionID []byte `cbor:"2,keyasint"`

	// PolicyObject is the reference to the access policy object —
	// the second argument.
	PolicyObject ref.ObjectID `cbor:"3,keyasint"`
}

// Approval builds the descriptor proving entitlement to the data
// bound to policyObject. Construction is shape-validation only: a
// policy object that is missing, of the wrong type, or unrelated to
// the requester surfaces later, when key servers evaluate the
// descriptor — as an access denial, not a construction error.
func Approval(packageID ref.ObjectID, encryptionID []byte, policyObject ref.ObjectID) (*Descriptor, error) {
	if packageID.IsZero() {
		return nil, fmt.Errorf("policy: package ID is required")
	}
	if policyObject.IsZero() {
		return nil, fmt.Errorf("policy: policy object ID is required")
	}
	if err := CheckBinding(encryptionID, policyObject); err != nil {
		return nil, err
	}

	return &Descriptor{
		Target:       fmt.Sprintf("%s::%s::%s", packageID, ModuleName, ApproveEntryPoint),
		EncryptionID: append([]byte(nil), encryptionID...),
		PolicyObject: policyObject,
	}, nil
}

// CheckBinding verifies that the encryption ID carries the policy
// object's bytes as its prefix — the length-checkable binding that
// ties every ciphertext to exactly one policy. The suffix is the
// per-envelope nonce and must be non-empty.
func CheckBinding(encryptionID []byte, policyObject ref.ObjectID) error {
	prefix := policyObject.Bytes()
	if len(encryptionID) <= len(prefix) {
		return fmt.Errorf("%w: ID has %d bytes, need more than the %d-byte policy prefix",
			ErrBinding, len(encryptionID), len(prefix))
	}
	if !bytes.Equal(encryptionID[:len(prefix)], prefix) {
		return fmt.Errorf("%w: prefix mismatch", ErrBinding)
	}
	return nil
}

// Bytes returns the deterministic CBOR encoding of the descriptor —
// the exact bytes every key server receives and evaluates. Identical
// descriptors always encode identically, so servers evaluating the
// same attempt see the same call.
func (d *Descriptor) Bytes() ([]byte, error) {
	data, err := codec.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("policy: encoding descriptor: %w", err)
	}
	return data, nil
}

// Parse decodes descriptor bytes. Key servers use this before
// evaluation.
func Parse(data []byte) (*Descriptor, error) {
	var d Descriptor
	if err := codec.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("policy: parsing descriptor: %w", err)
	}
	if d.Target == "" || len(d.EncryptionID) == 0 || d.PolicyObject.IsZero() {
		return nil, fmt.Errorf("policy: descriptor is incomplete")
	}
	return &d, nil
}
