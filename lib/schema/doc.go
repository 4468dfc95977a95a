// Copyright 2026 The Sandpool Authors
// SPDX-License-Identifier: Apache-2.0

// Package schema defines the persistent record types and domain
// events that constitute the Sandpool protocol: [Lease], [Account],
// [LeaseTemplate], their status enumerations, and the legality rules
// for status transitions.
//
// The transition rules are pure functions; the package holds no
// state. The leasing facade consults them before asking a collaborator
// (the OU mover, the record store) to perform a transition, and the
// collaborator independently verifies the expected current state.
//
// This package depends on no other Sandpool packages.
package schema
