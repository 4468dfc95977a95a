// Copyright 2026 The Sandpool Authors
// SPDX-License-Identifier: Apache-2.0

// Package store persists Lease, Account, and LeaseTemplate records.
//
// The interfaces ([LeaseStore], [AccountStore], [TemplateStore]) are
// what the leasing facade consumes; [Open] returns a SQLite-backed
// implementation of all three. Records are stored as deterministic
// CBOR blobs with the queryable columns (status, user, account id)
// extracted alongside, so filtered lookups stay indexed while the
// record shape can evolve without schema migrations.
//
// Every record carries a Version counter. Update requires the caller
// to present the version it read; a stale version fails with
// [ErrVersionConflict] instead of silently overwriting a concurrent
// write. This is the store's half of the module-wide optimistic
// concurrency scheme (the OU mover's expected-current-OU check is the
// other half).
package store
