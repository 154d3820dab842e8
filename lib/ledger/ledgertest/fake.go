// Copyright 2026 The Attenda Authors
// SPDX-License-Identifier: Apache-2.0

// Package ledgertest provides an in-memory ledger.Client for tests
// and for the CLI's offline mode.
package ledgertest

import (
	"context"
	"sync"

	"github.com/attenda-foundation/attenda/lib/ledger"
	"github.com/attenda-foundation/attenda/lib/ref"
)

// Fake is an in-memory ledger.Client. Objects are added by tests;
// reads return copies so callers cannot mutate stored state.
//
// Safe for concurrent use.
type Fake struct {
	mu       sync.Mutex
	tickets  map[ref.ObjectID]ledger.TicketObject
	policies map[ref.ObjectID]ledger.PolicyObject
}

// New returns an empty Fake.
func New() *Fake {
	return &Fake{
		tickets:  make(map[ref.ObjectID]ledger.TicketObject),
		policies: make(map[ref.ObjectID]ledger.PolicyObject),
	}
}

// PutTicket stores or replaces a ticket object.
func (f *Fake) PutTicket(t ledger.TicketObject) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tickets[t.ID] = t
}

// PutPolicy stores or replaces a policy object.
func (f *Fake) PutPolicy(p ledger.PolicyObject) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.policies[p.ID] = p
}

// Ticket implements ledger.Client.
func (f *Fake) Ticket(_ context.Context, id ref.ObjectID) (*ledger.TicketObject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tickets[id]
	if !ok {
		return nil, ledger.ErrObjectNotFound
	}
	copied := t
	return &copied, nil
}

// Policy implements ledger.Client.
func (f *Fake) Policy(_ context.Context, id ref.ObjectID) (*ledger.PolicyObject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.policies[id]
	if !ok {
		return nil, ledger.ErrObjectNotFound
	}
	copied := p
	return &copied, nil
}
