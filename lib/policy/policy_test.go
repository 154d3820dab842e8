// Copyright 2026 The Attenda Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/attenda-foundation/attenda/lib/ref"
)

var (
	testPackage = ref.MustParseObjectID("0x" + strings.Repeat("0f", 32))
	testPolicy  = ref.MustParseObjectID("0x" + strings.Repeat("cd", 32))
)

// boundID returns an encryption ID bound to testPolicy with the given
// nonce suffix.
func boundID(nonce ...byte) []byte {
	return append(testPolicy.Bytes(), nonce...)
}

func TestApproval(t *testing.T) {
	id := boundID(1, 2, 3, 4, 5)
	d, err := Approval(testPackage, id, testPolicy)
	if err != nil {
		t.Fatalf("Approval error: %v", err)
	}

	wantTarget := testPackage.String() + "::ticket_seal::seal_approve"
	if d.Target != wantTarget {
		t.Errorf("Target = %q, want %q", d.Target, wantTarget)
	}
	if !bytes.Equal(d.EncryptionID, id) {
		t.Error("descriptor does not carry the raw encryption ID")
	}
	if d.PolicyObject != testPolicy {
		t.Error("descriptor does not reference the policy object")
	}

	// The descriptor owns its copy of the ID.
	id[0] ^= 0xff
	if bytes.Equal(d.EncryptionID[:1], id[:1]) {
		t.Error("descriptor aliases the caller's ID slice")
	}
}

func TestApprovalValidation(t *testing.T) {
	id := boundID(1, 2, 3, 4, 5)
	if _, err := Approval(ref.ObjectID{}, id, testPolicy); err == nil {
		t.Error("Approval accepted zero package ID")
	}
	if _, err := Approval(testPackage, id, ref.ObjectID{}); err == nil {
		t.Error("Approval accepted zero policy object")
	}
	if _, err := Approval(testPackage, nil, testPolicy); !errors.Is(err, ErrBinding) {
		t.Error("Approval accepted empty encryption ID")
	}
}

func TestCheckBinding(t *testing.T) {
	if err := CheckBinding(boundID(9, 9, 9, 9, 9), testPolicy); err != nil {
		t.Errorf("CheckBinding on bound ID: %v", err)
	}

	// Prefix of a different policy.
	other := ref.MustParseObjectID("0x" + strings.Repeat("ee", 32))
	if err := CheckBinding(boundID(9, 9, 9, 9, 9), other); !errors.Is(err, ErrBinding) {
		t.Errorf("CheckBinding with wrong policy = %v, want ErrBinding", err)
	}

	// Exactly the prefix, no nonce suffix.
	if err := CheckBinding(testPolicy.Bytes(), testPolicy); !errors.Is(err, ErrBinding) {
		t.Errorf("CheckBinding without nonce = %v, want ErrBinding", err)
	}
}

func TestBytesDeterministicAndParseable(t *testing.T) {
	d, err := Approval(testPackage, boundID(1, 2, 3, 4, 5), testPolicy)
	if err != nil {
		t.Fatalf("Approval error: %v", err)
	}

	first, err := d.Bytes()
	if err != nil {
		t.Fatalf("Bytes error: %v", err)
	}
	second, err := d.Bytes()
	if err != nil {
		t.Fatalf("Bytes error: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("descriptor encoding is not deterministic")
	}

	parsed, err := Parse(first)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if parsed.Target != d.Target || parsed.PolicyObject != d.PolicyObject {
		t.Error("parsed descriptor differs from original")
	}
}

func TestParseRejectsIncomplete(t *testing.T) {
	if _, err := Parse([]byte{0xa0}); err == nil { // empty CBOR map
		t.Error("Parse accepted empty descriptor")
	}
	if _, err := Parse([]byte("garbage")); err == nil {
		t.Error("Parse accepted non-CBOR bytes")
	}
}
