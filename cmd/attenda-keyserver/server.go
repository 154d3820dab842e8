// Copyright 2026 The Attenda Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/attenda-foundation/attenda/lib/clock"
	"github.com/attenda-foundation/attenda/lib/codec"
	"github.com/attenda-foundation/attenda/lib/policy"
	"github.com/attenda-foundation/attenda/lib/ref"
	"github.com/attenda-foundation/attenda/lib/seal"
	"github.com/attenda-foundation/attenda/lib/session"
)

// Evaluator decides whether an approval descriptor entitles a
// credential to key shares. The reference binary installs
// structuralEvaluator; production deployments evaluate the descriptor
// against ledger state.
type Evaluator interface {
	Evaluate(ctx context.Context, descriptor *policy.Descriptor, credential *session.Credential) error
}

// EvaluatorFunc adapts a function to the Evaluator interface.
type EvaluatorFunc func(ctx context.Context, descriptor *policy.Descriptor, credential *session.Credential) error

// Evaluate implements Evaluator.
func (f EvaluatorFunc) Evaluate(ctx context.Context, descriptor *policy.Descriptor, credential *session.Credential) error {
	return f(ctx, descriptor, credential)
}

// structuralEvaluator approves any request whose descriptor is
// well-formed and bound. It performs no ownership check and exists so
// the reference server is runnable end to end; the log line at startup
// makes the posture unmissable.
func structuralEvaluator() Evaluator {
	return EvaluatorFunc(func(context.Context, *policy.Descriptor, *session.Credential) error {
		return nil
	})
}

// Server holds registered shares and answers the share protocol.
// Safe for concurrent use.
type Server struct {
	packageID ref.ObjectID
	clock     clock.Clock
	log       *slog.Logger
	evaluate  Evaluator

	mu     sync.Mutex
	shares map[string]seal.ShareRegistration
}

// NewServer constructs a key server scoped to one contract package.
func NewServer(packageID ref.ObjectID, evaluate Evaluator, clk clock.Clock, log *slog.Logger) *Server {
	return &Server{
		packageID: packageID,
		clock:     clk,
		log:       log,
		evaluate:  evaluate,
		shares:    make(map[string]seal.ShareRegistration),
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path, ok := strings.CutPrefix(r.URL.Path, "/v1/shares/")
	if !ok {
		http.NotFound(w, r)
		return
	}

	switch {
	case r.Method == http.MethodPut && !strings.Contains(path, "/"):
		s.handleRegister(w, r, path)
	case r.Method == http.MethodPost && strings.HasSuffix(path, "/fetch"):
		s.handleFetch(w, r, strings.TrimSuffix(path, "/fetch"))
	default:
		http.Error(w, "unexpected route", http.StatusNotFound)
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request, idHex string) {
	var registration seal.ShareRegistration
	if err := codec.NewDecoder(r.Body).Decode(&registration); err != nil {
		http.Error(w, "malformed registration", http.StatusBadRequest)
		return
	}

	if err := s.checkRegistration(&registration, idHex); err != nil {
		s.log.Warn("rejected share registration", "id", idHex, "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	_, exists := s.shares[idHex]
	if !exists {
		s.shares[idHex] = registration
	}
	s.mu.Unlock()

	// Re-registration under an existing ID is refused: shares are
	// write-once, or a compromised issuer could swap key material
	// under an envelope already minted.
	if exists {
		http.Error(w, "shares already registered for this ID", http.StatusConflict)
		return
	}

	s.log.Info("registered shares", "id", idHex, "count", len(registration.Shares),
		"threshold", registration.Threshold)
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) checkRegistration(registration *seal.ShareRegistration, idHex string) error {
	if fmt.Sprintf("%x", registration.EncryptionID) != idHex {
		return fmt.Errorf("encryption ID does not match URL")
	}
	if len(registration.EncryptionID) != seal.EncryptionIDSize {
		return fmt.Errorf("encryption ID has %d bytes, want %d",
			len(registration.EncryptionID), seal.EncryptionIDSize)
	}
	if registration.PackageID != s.packageID {
		return fmt.Errorf("registration is for package %s, this server serves %s",
			registration.PackageID, s.packageID)
	}
	if registration.Threshold < 2 || registration.TotalWeight < registration.Threshold {
		return fmt.Errorf("inconsistent threshold %d / total weight %d",
			registration.Threshold, registration.TotalWeight)
	}
	if len(registration.Shares) == 0 {
		return fmt.Errorf("no shares in registration")
	}
	return nil
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request, idHex string) {
	var fetch seal.FetchRequest
	if err := codec.NewDecoder(r.Body).Decode(&fetch); err != nil {
		http.Error(w, "malformed fetch request", http.StatusBadRequest)
		return
	}

	// Credential checks precede everything: no policy evaluation on
	// behalf of an expired or unproven session.
	now := s.clock.Now()
	if fetch.Credential.Expired(now) {
		http.Error(w, "session credential expired", http.StatusUnauthorized)
		return
	}
	if fetch.Credential.PackageID != s.packageID {
		http.Error(w, "credential is scoped to a different package", http.StatusUnauthorized)
		return
	}
	// A credential whose wallet key does not derive (and sign for)
	// its claimed address is an impersonation attempt, so the answer
	// is a denial, not a retryable authentication failure.
	if err := fetch.Credential.Verify(now); err != nil {
		s.log.Info("denied share fetch", "id", idHex, "address", fetch.Credential.Address, "reason", err)
		http.Error(w, "credential does not authenticate the claimed address", http.StatusForbidden)
		return
	}
	if err := fetch.Credential.VerifyRequest(fetch.Descriptor, fetch.Signature); err != nil {
		http.Error(w, "request signature does not verify", http.StatusUnauthorized)
		return
	}

	descriptor, err := policy.Parse(fetch.Descriptor)
	if err != nil {
		http.Error(w, "malformed descriptor", http.StatusBadRequest)
		return
	}
	if fmt.Sprintf("%x", descriptor.EncryptionID) != idHex {
		http.Error(w, "descriptor is for a different envelope", http.StatusBadRequest)
		return
	}
	if err := policy.CheckBinding(descriptor.EncryptionID, descriptor.PolicyObject); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	wantTarget := fmt.Sprintf("%s::%s::%s", s.packageID, policy.ModuleName, policy.ApproveEntryPoint)
	if descriptor.Target != wantTarget {
		http.Error(w, "descriptor targets an unknown entry point", http.StatusBadRequest)
		return
	}

	if err := s.evaluate.Evaluate(r.Context(), descriptor, &fetch.Credential); err != nil {
		s.log.Info("denied share fetch", "id", idHex, "address", fetch.Credential.Address, "reason", err)
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}

	s.mu.Lock()
	registration, ok := s.shares[idHex]
	s.mu.Unlock()
	if !ok {
		http.Error(w, "no shares registered for this ID", http.StatusNotFound)
		return
	}

	body, err := codec.Marshal(&seal.FetchResponse{Shares: registration.Shares})
	if err != nil {
		http.Error(w, "encoding response", http.StatusInternalServerError)
		return
	}
	s.log.Info("released shares", "id", idHex, "address", fetch.Credential.Address)
	w.Header().Set("Content-Type", "application/cbor")
	w.Write(body)
}
