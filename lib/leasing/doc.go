// Copyright 2026 The Sandpool Authors
// SPDX-License-Identifier: Apache-2.0

// Package leasing is the lease/account lifecycle orchestrator: the
// top-level operations (register, request, approve, publish, reset,
// freeze, unfreeze, terminate, deny, eject, quarantine, recycle) that
// compose the saga coordinator, the account pool selector, and the
// schema state machines over a set of collaborator interfaces: the
// record store, the OU mover, the access granter, the event
// publisher, and the blueprint deployment service.
//
// Every operation follows the same shape: validate preconditions
// (fail fast, before any mutation), gather data from collaborators,
// build a saga transaction from collaborator-supplied forward and
// compensating steps, complete it, then publish domain events and
// return the updated records. On a mid-saga failure the transaction
// has already rolled back and the commit error propagates; events are
// advisory and are never published for a failed operation.
//
// There is no in-process locking. Two operations racing for the same
// account are arbitrated by the collaborators' own concurrency
// control: the store's record versions and the OU mover's
// expected-current-placement check, either of which fails one of the
// two conflicting transactions and triggers its rollback.
package leasing
