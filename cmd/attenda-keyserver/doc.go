// Copyright 2026 The Attenda Authors
// SPDX-License-Identifier: Apache-2.0

// attenda-keyserver is the reference key server. It stores Shamir key
// shares registered at encrypt time and releases them to holders whose
// session credential and approval descriptor pass verification plus a
// pluggable policy evaluation.
//
// The reference evaluator checks structural validity only: descriptor
// binding, target entry point, and credential signatures. Production
// deployments replace it with one that simulates seal_approve against
// live ledger state; each operator runs their own instance, and no
// instance alone can decrypt anything.
package main
