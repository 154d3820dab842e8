// Copyright 2026 The Attenda Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/attenda-foundation/attenda/lib/clock"
	"github.com/attenda-foundation/attenda/lib/codec"
	"github.com/attenda-foundation/attenda/lib/policy"
	"github.com/attenda-foundation/attenda/lib/ref"
	"github.com/attenda-foundation/attenda/lib/seal"
	"github.com/attenda-foundation/attenda/lib/session"
)

var (
	testPackage = ref.MustParseObjectID("0x" + strings.Repeat("ab", 32))
	testPolicy  = ref.MustParseObjectID("0x" + strings.Repeat("cd", 32))
)

type serverFixture struct {
	clock     *clock.FakeClock
	server    *Server
	id        []byte
	idHex     string
	holder    ref.Address
	walletKey ed25519.PrivateKey
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()
	clk := clock.Fake(time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC))
	id := append(testPolicy.Bytes(), 1, 2, 3, 4, 5)

	walletPub, walletPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	holder, err := session.WalletAddress(walletPub)
	if err != nil {
		t.Fatalf("deriving holder address: %v", err)
	}
	return &serverFixture{
		clock:     clk,
		server:    NewServer(testPackage, structuralEvaluator(), clk, slog.New(slog.NewTextHandler(io.Discard, nil))),
		id:        id,
		idHex:     "cdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcd" + "0102030405",
		holder:    holder,
		walletKey: walletPriv,
	}
}

func (f *serverFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	encoded, err := codec.Marshal(body)
	if err != nil {
		t.Fatalf("encoding request body: %v", err)
	}
	request := httptest.NewRequest(method, path, bytes.NewReader(encoded))
	recorder := httptest.NewRecorder()
	f.server.ServeHTTP(recorder, request)
	return recorder
}

func (f *serverFixture) register(t *testing.T) {
	t.Helper()
	recorder := f.do(t, http.MethodPut, "/v1/shares/"+f.idHex, &seal.ShareRegistration{
		EncryptionID: f.id,
		PackageID:    testPackage,
		Threshold:    2,
		TotalWeight:  2,
		Shares:       map[byte][]byte{1: {0xaa, 0xbb}, 2: {0xcc, 0xdd}},
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("registration returned %d: %s", recorder.Code, recorder.Body)
	}
}

func (f *serverFixture) fetchRequest(t *testing.T, ttl time.Duration) *seal.FetchRequest {
	t.Helper()
	s, err := session.Create(f.holder, testPackage, ttl, f.clock)
	if err != nil {
		t.Fatal(err)
	}
	credential, err := s.Sign(f.walletKey.Public().(ed25519.PublicKey), func(message []byte) ([]byte, error) {
		return ed25519.Sign(f.walletKey, message), nil
	})
	if err != nil {
		t.Fatal(err)
	}

	descriptor, err := policy.Approval(testPackage, f.id, testPolicy)
	if err != nil {
		t.Fatal(err)
	}
	descriptorBytes, err := descriptor.Bytes()
	if err != nil {
		t.Fatal(err)
	}

	return &seal.FetchRequest{
		Descriptor: descriptorBytes,
		Credential: *credential,
		Signature:  credential.SignRequest(descriptorBytes),
	}
}

func TestRegisterAndFetch(t *testing.T) {
	f := newServerFixture(t)
	f.register(t)

	recorder := f.do(t, http.MethodPost, "/v1/shares/"+f.idHex+"/fetch", f.fetchRequest(t, 10*time.Minute))
	if recorder.Code != http.StatusOK {
		t.Fatalf("fetch returned %d: %s", recorder.Code, recorder.Body)
	}

	var response seal.FetchResponse
	if err := codec.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(response.Shares) != 2 {
		t.Errorf("released %d shares, want 2", len(response.Shares))
	}
}

func TestRegisterIsWriteOnce(t *testing.T) {
	f := newServerFixture(t)
	f.register(t)

	recorder := f.do(t, http.MethodPut, "/v1/shares/"+f.idHex, &seal.ShareRegistration{
		EncryptionID: f.id,
		PackageID:    testPackage,
		Threshold:    2,
		TotalWeight:  2,
		Shares:       map[byte][]byte{1: {0x00, 0x00}, 2: {0x00, 0x00}},
	})
	if recorder.Code != http.StatusConflict {
		t.Errorf("re-registration returned %d, want 409", recorder.Code)
	}
}

func TestRegisterValidation(t *testing.T) {
	f := newServerFixture(t)

	cases := map[string]*seal.ShareRegistration{
		"wrong package": {
			EncryptionID: f.id, PackageID: testPolicy,
			Threshold: 2, TotalWeight: 2, Shares: map[byte][]byte{1: {0x01}},
		},
		"no shares": {
			EncryptionID: f.id, PackageID: testPackage,
			Threshold: 2, TotalWeight: 2,
		},
		"threshold above weight": {
			EncryptionID: f.id, PackageID: testPackage,
			Threshold: 3, TotalWeight: 2, Shares: map[byte][]byte{1: {0x01}},
		},
		"ID mismatch": {
			EncryptionID: append(testPolicy.Bytes(), 9, 9, 9, 9, 9), PackageID: testPackage,
			Threshold: 2, TotalWeight: 2, Shares: map[byte][]byte{1: {0x01}},
		},
	}
	for name, registration := range cases {
		recorder := f.do(t, http.MethodPut, "/v1/shares/"+f.idHex, registration)
		if recorder.Code != http.StatusBadRequest {
			t.Errorf("%s: returned %d, want 400", name, recorder.Code)
		}
	}
}

func TestFetchExpiredCredential(t *testing.T) {
	f := newServerFixture(t)
	f.register(t)

	fetch := f.fetchRequest(t, 10*time.Minute)
	f.clock.Advance(11 * time.Minute)

	recorder := f.do(t, http.MethodPost, "/v1/shares/"+f.idHex+"/fetch", fetch)
	if recorder.Code != http.StatusUnauthorized {
		t.Errorf("expired fetch returned %d, want 401", recorder.Code)
	}
}

func TestFetchBadRequestSignature(t *testing.T) {
	f := newServerFixture(t)
	f.register(t)

	fetch := f.fetchRequest(t, 10*time.Minute)
	fetch.Signature[0] ^= 0xff

	recorder := f.do(t, http.MethodPost, "/v1/shares/"+f.idHex+"/fetch", fetch)
	if recorder.Code != http.StatusUnauthorized {
		t.Errorf("tampered signature returned %d, want 401", recorder.Code)
	}
}

func TestFetchForgedAddress(t *testing.T) {
	// A credential claiming an address its wallet key does not derive
	// must be refused as a denial before any policy evaluation.
	f := newServerFixture(t)
	f.register(t)

	fetch := f.fetchRequest(t, 10*time.Minute)
	_, victimKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	victim, err := session.WalletAddress(victimKey.Public().(ed25519.PublicKey))
	if err != nil {
		t.Fatal(err)
	}
	fetch.Credential.Address = victim

	recorder := f.do(t, http.MethodPost, "/v1/shares/"+f.idHex+"/fetch", fetch)
	if recorder.Code != http.StatusForbidden {
		t.Errorf("forged-address fetch returned %d, want 403", recorder.Code)
	}
}

func TestFetchDeniedByEvaluator(t *testing.T) {
	f := newServerFixture(t)
	f.register(t)
	f.server.evaluate = EvaluatorFunc(func(context.Context, *policy.Descriptor, *session.Credential) error {
		return errors.New("address does not hold a ticket for this event")
	})

	recorder := f.do(t, http.MethodPost, "/v1/shares/"+f.idHex+"/fetch", f.fetchRequest(t, 10*time.Minute))
	if recorder.Code != http.StatusForbidden {
		t.Errorf("denied fetch returned %d, want 403", recorder.Code)
	}
}

func TestFetchUnknownID(t *testing.T) {
	f := newServerFixture(t)
	// No registration.
	recorder := f.do(t, http.MethodPost, "/v1/shares/"+f.idHex+"/fetch", f.fetchRequest(t, 10*time.Minute))
	if recorder.Code != http.StatusNotFound {
		t.Errorf("fetch without registration returned %d, want 404", recorder.Code)
	}
}
