// Copyright 2026 The Sandpool Authors
// SPDX-License-Identifier: Apache-2.0

// Package saga executes an ordered list of commit/rollback step pairs
// as an approximation of an atomic transaction across collaborators
// that share no transactional boundary (the record store, the OU
// mover, the access granter).
//
// On the first commit failure, already-committed steps are rolled
// back in strict reverse order. Compensation is best-effort: a
// rollback failure is logged and collected but never stops the
// remaining rollbacks, and never masks the original commit error.
// The guarantee is therefore not atomicity but "no silent partial
// success without attempted cleanup."
//
// Callers must order steps from easiest-to-compensate to hardest,
// because a step's effect becomes visible to concurrent operations
// the moment it commits. In practice the record-store mutation, the
// point where a new Lease or Account status becomes visible to reads,
// goes last, after the OU move and access changes.
package saga
