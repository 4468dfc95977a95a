// Copyright 2026 The Sandpool Authors
// SPDX-License-Identifier: Apache-2.0

package leasing

import (
	"errors"
	"fmt"
)

// Kind discriminates orchestration errors. Callers render a precise
// message from the kind without parsing error text.
type Kind string

const (
	// KindNoAccountsAvailable: the Available pool is empty.
	KindNoAccountsAvailable Kind = "NoAccountsAvailable"

	// KindMaxNumberOfLeasesExceeded: the user already holds the
	// maximum number of active-or-pending leases.
	KindMaxNumberOfLeasesExceeded Kind = "MaxNumberOfLeasesExceeded"

	// KindAccountNotInQuarantine: recycle requires a quarantined
	// account.
	KindAccountNotInQuarantine Kind = "AccountNotInQuarantine"

	// KindAccountInCleanUp: the cleanup pipeline owns the account;
	// ejection and quarantine are rejected until it finishes.
	KindAccountInCleanUp Kind = "AccountInCleanUp"

	// KindAccountNotInActive: freeze requires an Active lease.
	KindAccountNotInActive Kind = "AccountNotInActive"

	// KindAccountNotInFrozen: unfreeze requires a Frozen lease.
	KindAccountNotInFrozen Kind = "AccountNotInFrozen"

	// KindCouldNotFindAccount: no account record with the given ID.
	KindCouldNotFindAccount Kind = "CouldNotFindAccount"

	// KindCouldNotRetrieveUser: the identity store has no user for
	// the lease's email.
	KindCouldNotRetrieveUser Kind = "CouldNotRetrieveUser"
)

// Error is the base orchestration error. Extract with errors.As:
//
//	var leaseErr *leasing.Error
//	if errors.As(err, &leaseErr) && leaseErr.Kind == leasing.KindNoAccountsAvailable { ... }
type Error struct {
	// Kind is the discriminant.
	Kind Kind

	// Message is the operator-facing detail.
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("leasing: %s: %s", e.Kind, e.Message)
}

// newError builds a discriminated orchestration error.
func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// IsKind reports whether err is (or wraps) an orchestration error of
// the given kind.
func IsKind(err error, kind Kind) bool {
	var leaseErr *Error
	return errors.As(err, &leaseErr) && leaseErr.Kind == kind
}
