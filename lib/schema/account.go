// Copyright 2026 The Sandpool Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

// AccountStatus is the organizational placement of a pooled account.
// Every status maps one-to-one to an organizational unit; "moving" an
// account changes its OU and its recorded status together.
type AccountStatus string

const (
	// AccountEntry is a freshly registered account not yet cleaned.
	AccountEntry AccountStatus = "Entry"

	// AccountCleanUp is an account being wiped by the external
	// cleanup pipeline.
	AccountCleanUp AccountStatus = "CleanUp"

	// AccountAvailable is a cleaned account in the pool, ready for
	// lease assignment.
	AccountAvailable AccountStatus = "Available"

	// AccountActive is an account assigned to a running lease.
	AccountActive AccountStatus = "Active"

	// AccountFrozen mirrors a frozen lease: assigned, access revoked.
	AccountFrozen AccountStatus = "Frozen"

	// AccountQuarantine holds accounts pulled from circulation after
	// drift detection or a policy violation.
	AccountQuarantine AccountStatus = "Quarantine"

	// AccountExit is terminal: the account has left the pool and
	// never re-enters.
	AccountExit AccountStatus = "Exit"
)

// accountStatuses is the set of valid statuses, used by validation.
var accountStatuses = map[AccountStatus]bool{
	AccountEntry:      true,
	AccountCleanUp:    true,
	AccountAvailable:  true,
	AccountActive:     true,
	AccountFrozen:     true,
	AccountQuarantine: true,
	AccountExit:       true,
}

// Valid reports whether s is a known account status.
func (s AccountStatus) Valid() bool { return accountStatuses[s] }

// CanMoveTo reports whether an account may legally move from s to
// target. The rules:
//
//   - Exit is terminal: nothing moves out of it.
//   - CleanUp is reachable from every non-Exit status (registration
//     moves Entry there, lease termination moves the others, and a
//     re-clean of a CleanUp account is a legal no-op move).
//   - Quarantine and Exit are reachable from every status except
//     CleanUp (and Exit). Ejecting or quarantining an account that is
//     mid-cleanup is rejected because the cleanup pipeline owns it.
//   - Available -> Active on lease approval; Active <-> Frozen mirror
//     the lease; CleanUp -> Available when cleanup completes.
func (s AccountStatus) CanMoveTo(target AccountStatus) bool {
	if s == AccountExit {
		return false
	}
	switch target {
	case AccountCleanUp:
		return true
	case AccountQuarantine, AccountExit:
		return s != AccountCleanUp
	case AccountAvailable:
		return s == AccountCleanUp
	case AccountActive:
		return s == AccountAvailable || s == AccountFrozen
	case AccountFrozen:
		return s == AccountActive
	}
	return false
}

// CleanupExecution records the most recent cleanup run against an
// account. The pool selector uses ExecutionStartTime to prefer
// accounts whose cost meter has had time to settle since cleanup.
type CleanupExecution struct {
	// ExecutionID identifies the cleanup pipeline run.
	ExecutionID string `json:"executionId"`

	// ExecutionStartTime is when the run started.
	ExecutionStartTime time.Time `json:"executionStartTime"`
}

// accountIDPattern matches a 12-digit AWS account ID.
var accountIDPattern = regexp.MustCompile(`^\d{12}$`)

// ValidAccountID reports whether id is a well-formed AWS account ID.
func ValidAccountID(id string) bool { return accountIDPattern.MatchString(id) }

// Account is one pooled cloud account.
type Account struct {
	// AWSAccountID is the immutable identity.
	AWSAccountID string `json:"awsAccountId"`

	// Status is the organizational placement.
	Status AccountStatus `json:"status"`

	// Email and Name mirror the account's registration in the
	// external inventory. Informational.
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`

	// DriftAtLastScan is set when the account's actual placement
	// disagreed with its recorded status at the last reconciliation
	// scan.
	DriftAtLastScan bool `json:"driftAtLastScan,omitempty"`

	// CleanupExecutionContext records the most recent cleanup run,
	// or nil if the account has never been cleaned.
	CleanupExecutionContext *CleanupExecution `json:"cleanupExecutionContext,omitempty"`

	// Version is the optimistic-concurrency counter maintained by the
	// record store.
	Version int64 `json:"version"`
}

// Validate checks structural invariants. Returns an error describing
// the first violation found.
func (a *Account) Validate() error {
	if a.AWSAccountID == "" {
		return errors.New("account: awsAccountId is required")
	}
	if !ValidAccountID(a.AWSAccountID) {
		return fmt.Errorf("account: malformed awsAccountId %q", a.AWSAccountID)
	}
	if !a.Status.Valid() {
		return fmt.Errorf("account: unknown status %q", a.Status)
	}
	if a.CleanupExecutionContext != nil {
		if a.CleanupExecutionContext.ExecutionID == "" {
			return errors.New("account: cleanupExecutionContext.executionId is required")
		}
		if a.CleanupExecutionContext.ExecutionStartTime.IsZero() {
			return errors.New("account: cleanupExecutionContext.executionStartTime is required")
		}
	}
	return nil
}
