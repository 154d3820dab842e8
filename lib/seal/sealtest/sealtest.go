// Copyright 2026 The Attenda Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealtest runs in-process key servers for tests. Each fake
// server speaks the real share protocol over httptest, verifies
// credentials and request signatures the way a production server
// would, and delegates
// the policy verdict to an injectable evaluator, so client tests can
// exercise denial, shortfall, and expiry paths without a ledger.
package sealtest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/attenda-foundation/attenda/lib/clock"
	"github.com/attenda-foundation/attenda/lib/codec"
	"github.com/attenda-foundation/attenda/lib/policy"
	"github.com/attenda-foundation/attenda/lib/ref"
	"github.com/attenda-foundation/attenda/lib/seal"
	"github.com/attenda-foundation/attenda/lib/session"
)

// Evaluator decides whether a fetch request's descriptor entitles the
// credential's address to the shares. Returning an error denies the
// request with 403. A nil Evaluator allows everything.
type Evaluator func(descriptor *policy.Descriptor, credential *session.Credential) error

// Server is one fake key server. Create it through NewCluster.
type Server struct {
	id     ref.ObjectID
	weight int
	clock  clock.Clock

	mu       sync.Mutex
	shares   map[string]seal.ShareRegistration
	evaluate Evaluator
	offline  bool

	httpServer *httptest.Server
}

// SetEvaluator replaces the server's policy verdict.
func (s *Server) SetEvaluator(evaluate Evaluator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evaluate = evaluate
}

// SetOffline makes the server answer 503 to every request, simulating
// an unreachable committee member.
func (s *Server) SetOffline(offline bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offline = offline
}

// Registered reports whether the server holds shares for the hex
// encryption ID.
func (s *Server) Registered(idHex string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.shares[idHex]
	return ok
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	offline := s.offline
	s.mu.Unlock()
	if offline {
		http.Error(w, "server offline", http.StatusServiceUnavailable)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/v1/shares/")
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
		http.Error(w, "bad registration body", http.StatusBadRequest)
		return
	}
	if fmt.Sprintf("%x", registration.EncryptionID) != idHex {
		http.Error(w, "ID mismatch between URL and body", http.StatusBadRequest)
		return
	}
	if len(registration.Shares) != s.weight {
		http.Error(w, fmt.Sprintf("got %d shares, server weight is %d", len(registration.Shares), s.weight),
			http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.shares[idHex] = registration
	s.mu.Unlock()
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request, idHex string) {
	var fetch seal.FetchRequest
	if err := codec.NewDecoder(r.Body).Decode(&fetch); err != nil {
		http.Error(w, "bad fetch body", http.StatusBadRequest)
		return
	}

	// The same checks a production server runs, in the same order:
	// credential expiry, wallet-to-address binding, request
	// signature, descriptor consistency, then the policy verdict.
	if fetch.Credential.Expired(s.clock.Now()) {
		http.Error(w, "credential expired", http.StatusUnauthorized)
		return
	}
	if err := fetch.Credential.Verify(s.clock.Now()); err != nil {
		http.Error(w, "credential does not authenticate the claimed address", http.StatusForbidden)
		return
	}
	if err := fetch.Credential.VerifyRequest(fetch.Descriptor, fetch.Signature); err != nil {
		http.Error(w, "bad request signature", http.StatusUnauthorized)
		return
	}
	descriptor, err := policy.Parse(fetch.Descriptor)
	if err != nil {
		http.Error(w, "bad descriptor", http.StatusBadRequest)
		return
	}
	if fmt.Sprintf("%x", descriptor.EncryptionID) != idHex {
		http.Error(w, "descriptor is for a different envelope", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	registration, ok := s.shares[idHex]
	evaluate := s.evaluate
	s.mu.Unlock()

	if !ok {
		http.Error(w, "no shares registered", http.StatusNotFound)
		return
	}
	if evaluate != nil {
		if err := evaluate(descriptor, &fetch.Credential); err != nil {
			http.Error(w, err.Error(), http.StatusForbidden)
			return
		}
	}

	body, err := codec.Marshal(&seal.FetchResponse{Shares: registration.Shares})
	if err != nil {
		http.Error(w, "encoding response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/cbor")
	w.Write(body)
}

// Cluster is a set of fake key servers sharing a clock.
type Cluster struct {
	servers []*Server
}

// NewCluster starts one fake server per weight entry. Server IDs are
// deterministic. The caller owns shutdown via Close.
func NewCluster(clk clock.Clock, weights ...int) *Cluster {
	cluster := &Cluster{}
	for i, weight := range weights {
		server := &Server{
			id:     ref.MustParseObjectID(fmt.Sprintf("0x%064x", i+1)),
			weight: weight,
			clock:  clk,
			shares: make(map[string]seal.ShareRegistration),
		}
		server.httpServer = httptest.NewServer(server)
		cluster.servers = append(cluster.servers, server)
	}
	return cluster
}

// Close shuts down every server.
func (c *Cluster) Close() {
	for _, server := range c.servers {
		server.httpServer.Close()
	}
}

// Server returns the i'th fake server for per-server manipulation.
func (c *Cluster) Server(i int) *Server { return c.servers[i] }

// ServerConfigs returns the committee description for seal.Config.
func (c *Cluster) ServerConfigs() []seal.ServerConfig {
	configs := make([]seal.ServerConfig, len(c.servers))
	for i, server := range c.servers {
		configs[i] = seal.ServerConfig{
			ID:     server.id,
			URL:    server.httpServer.URL,
			Weight: server.weight,
		}
	}
	return configs
}

// DenyAll is an Evaluator that refuses every request, for exercising
// the access-denied path.
func DenyAll(*policy.Descriptor, *session.Credential) error {
	return fmt.Errorf("policy denies access")
}

// AllowOnly returns an Evaluator admitting a single holder address,
// the shape of the real owner check.
func AllowOnly(owner ref.Address) Evaluator {
	return func(_ *policy.Descriptor, credential *session.Credential) error {
		if credential.Address != owner {
			return fmt.Errorf("address %s does not own the ticket", credential.Address)
		}
		return nil
	}
}

