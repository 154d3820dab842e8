// Copyright 2026 The Attenda Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/attenda-foundation/attenda/lib/clock"
	"github.com/attenda-foundation/attenda/lib/codec"
	"github.com/attenda-foundation/attenda/lib/ref"
)

var (
	testPackage = ref.MustParseObjectID("0x" + strings.Repeat("0f", 32))
	testEpoch   = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
)

// testWallet returns an Ed25519 wallet keypair, the address it
// derives, and a SignFunc backed by it.
func testWallet(t *testing.T) (ed25519.PublicKey, ref.Address, SignFunc) {
	t.Helper()
	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generating wallet key: %v", err)
	}
	address, err := WalletAddress(public)
	if err != nil {
		t.Fatalf("deriving wallet address: %v", err)
	}
	return public, address, func(message []byte) ([]byte, error) {
		return ed25519.Sign(private, message), nil
	}
}

func createSigned(t *testing.T, clk clock.Clock) *Credential {
	t.Helper()
	walletKey, address, signFn := testWallet(t)
	s, err := Create(address, testPackage, 10*time.Minute, clk)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	credential, err := s.Sign(walletKey, signFn)
	if err != nil {
		t.Fatalf("Sign error: %v", err)
	}
	return credential
}

func TestWalletAddress(t *testing.T) {
	walletKey, address, _ := testWallet(t)

	again, err := WalletAddress(walletKey)
	if err != nil {
		t.Fatalf("WalletAddress error: %v", err)
	}
	if again != address {
		t.Error("derivation is not deterministic")
	}

	_, otherAddress, _ := testWallet(t)
	if otherAddress == address {
		t.Error("distinct wallet keys derived the same address")
	}

	if _, err := WalletAddress([]byte("short")); err == nil {
		t.Error("WalletAddress accepted a malformed key")
	}
}

func TestCreateValidation(t *testing.T) {
	clk := clock.Fake(testEpoch)
	_, address, _ := testWallet(t)
	if _, err := Create(ref.Address{}, testPackage, time.Minute, clk); err == nil {
		t.Error("Create accepted zero address")
	}
	if _, err := Create(address, ref.ObjectID{}, time.Minute, clk); err == nil {
		t.Error("Create accepted zero package ID")
	}
	if _, err := Create(address, testPackage, 0, clk); err == nil {
		t.Error("Create accepted zero TTL")
	}
}

func TestSignAndVerify(t *testing.T) {
	clk := clock.Fake(testEpoch)
	credential := createSigned(t, clk)

	if err := credential.Verify(clk.Now()); err != nil {
		t.Fatalf("Verify error: %v", err)
	}

	wantExpiry := testEpoch.Add(10 * time.Minute)
	if !credential.ExpiresAt().Equal(wantExpiry) {
		t.Errorf("ExpiresAt = %v, want %v", credential.ExpiresAt(), wantExpiry)
	}
}

func TestSignRejectsForeignWallet(t *testing.T) {
	// A wallet can only sign sessions for the address it derives.
	clk := clock.Fake(testEpoch)
	walletKey, _, signFn := testWallet(t)
	_, otherAddress, _ := testWallet(t)

	s, err := Create(otherAddress, testPackage, 10*time.Minute, clk)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if _, err := s.Sign(walletKey, signFn); !errors.Is(err, ErrAuthenticationDeclined) {
		t.Errorf("Sign with foreign wallet = %v, want ErrAuthenticationDeclined", err)
	}
}

func TestVerifyRejectsForgedAddress(t *testing.T) {
	// An attacker holds a valid credential for their own address and
	// rewrites the address field to someone else's. The wallet key
	// inside the credential still derives the attacker's address, so
	// verification must fail.
	clk := clock.Fake(testEpoch)
	credential := createSigned(t, clk)
	_, victimAddress, _ := testWallet(t)

	forged := *credential
	forged.Address = victimAddress
	if err := forged.Verify(clk.Now()); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("Verify with forged address = %v, want ErrInvalidSignature", err)
	}
}

func TestVerifyRejectsSwappedWalletKey(t *testing.T) {
	// Swapping in a different wallet key breaks the address binding
	// even before the signature check.
	clk := clock.Fake(testEpoch)
	credential := createSigned(t, clk)
	otherKey, _, _ := testWallet(t)

	swapped := *credential
	swapped.WalletKey = otherKey
	if err := swapped.Verify(clk.Now()); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("Verify with swapped wallet key = %v, want ErrInvalidSignature", err)
	}
}

func TestExpiry(t *testing.T) {
	clk := clock.Fake(testEpoch)
	credential := createSigned(t, clk)

	if credential.Expired(clk.Now()) {
		t.Fatal("fresh credential reports expired")
	}

	clk.Advance(9 * time.Minute)
	if credential.Expired(clk.Now()) {
		t.Error("credential expired before TTL")
	}

	clk.Advance(time.Minute)
	if !credential.Expired(clk.Now()) {
		t.Error("credential not expired at TTL")
	}
	if err := credential.Verify(clk.Now()); !errors.Is(err, ErrExpired) {
		t.Errorf("Verify after TTL = %v, want ErrExpired", err)
	}
}

func TestSignDeclined(t *testing.T) {
	clk := clock.Fake(testEpoch)
	walletKey, address, _ := testWallet(t)
	s, err := Create(address, testPackage, 10*time.Minute, clk)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	declined := func([]byte) ([]byte, error) {
		return nil, errors.New("user dismissed the prompt")
	}
	if _, err := s.Sign(walletKey, declined); !errors.Is(err, ErrAuthenticationDeclined) {
		t.Errorf("Sign with declining wallet = %v, want ErrAuthenticationDeclined", err)
	}

	empty := func([]byte) ([]byte, error) { return nil, nil }
	if _, err := s.Sign(walletKey, empty); !errors.Is(err, ErrAuthenticationDeclined) {
		t.Errorf("Sign with empty signature = %v, want ErrAuthenticationDeclined", err)
	}

	// A wallet returning garbage bytes is caught locally too.
	garbage := func([]byte) ([]byte, error) { return []byte("not a signature"), nil }
	if _, err := s.Sign(walletKey, garbage); !errors.Is(err, ErrAuthenticationDeclined) {
		t.Errorf("Sign with unverifiable signature = %v, want ErrAuthenticationDeclined", err)
	}
}

func TestRequestSignatures(t *testing.T) {
	clk := clock.Fake(testEpoch)
	credential := createSigned(t, clk)

	request := []byte("fetch shares for 0xabc")
	signature := credential.SignRequest(request)
	if err := credential.VerifyRequest(request, signature); err != nil {
		t.Fatalf("VerifyRequest error: %v", err)
	}
	if err := credential.VerifyRequest([]byte("different request"), signature); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("VerifyRequest on altered request = %v, want ErrInvalidSignature", err)
	}
}

func TestWireCredentialCannotSign(t *testing.T) {
	clk := clock.Fake(testEpoch)
	credential := createSigned(t, clk)

	data, err := codec.Marshal(credential)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	var decoded Credential
	if err := codec.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}

	// The wire form still verifies...
	if err := decoded.Verify(clk.Now()); err != nil {
		t.Fatalf("Verify on wire credential: %v", err)
	}
	// ...but cannot mint request signatures.
	defer func() {
		if recover() == nil {
			t.Error("SignRequest on wire credential did not panic")
		}
	}()
	decoded.SignRequest([]byte("request"))
}

func TestChallengeBindsAllFields(t *testing.T) {
	clk := clock.Fake(testEpoch)
	credential := createSigned(t, clk)

	tampered := *credential
	tampered.TTLMinutes = 600
	if err := tampered.Verify(clk.Now()); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("Verify with stretched TTL = %v, want ErrInvalidSignature", err)
	}

	tampered = *credential
	tampered.RequestKey = append([]byte(nil), credential.RequestKey...)
	tampered.RequestKey[0] ^= 0xff
	if err := tampered.Verify(clk.Now()); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("Verify with swapped request key = %v, want ErrInvalidSignature", err)
	}
}
