// Copyright 2026 The Sandpool Authors
// SPDX-License-Identifier: Apache-2.0

package leasing

import (
	"context"
	"errors"
	"fmt"

	"github.com/sandpool-project/sandpool/lib/schema"
)

// Access group names for the identity-center granter. Manager and
// Admin group access is assigned at account registration and revoked
// at ejection.
const (
	GroupManager = "Manager"
	GroupAdmin   = "Admin"
)

// MovePreconditionError is returned by an OU mover when the account's
// actual placement does not match the expected placement because a
// concurrent operation moved it first. The orchestrator treats this
// as a hard failure (the losing transaction rolls back); it is never
// retried automatically.
type MovePreconditionError struct {
	AWSAccountID string
	Expected     schema.AccountStatus
	Actual       schema.AccountStatus
}

func (e *MovePreconditionError) Error() string {
	return fmt.Sprintf("account %s: expected placement %s, found %s",
		e.AWSAccountID, e.Expected, e.Actual)
}

// IsMovePrecondition reports whether err is (or wraps) a mover
// precondition failure.
func IsMovePrecondition(err error) bool {
	var moveErr *MovePreconditionError
	return errors.As(err, &moveErr)
}

// OUMover moves accounts between the organizational units that back
// each account status. The mover verifies the account is actually in
// the expected placement before moving it (the cloud-side half of the
// module's optimistic concurrency) and fails with
// *MovePreconditionError on a mismatch.
type OUMover interface {
	// Move verifies placement, moves the account, and returns a copy
	// of the record with Status set to target. The copy is not
	// persisted; the caller's saga includes a separate record-store
	// step.
	Move(ctx context.Context, account *schema.Account, expected, target schema.AccountStatus) (*schema.Account, error)

	// PerformMove is the non-transactional variant used by flows that
	// manage their own compensation (ejection) and by saga rollbacks.
	// No placement verification.
	PerformMove(ctx context.Context, awsAccountID string, current, target schema.AccountStatus) error
}

// AccessGranter manages identity-center access to pooled accounts.
type AccessGranter interface {
	// GrantUserAccess gives the user sandbox access to the account.
	GrantUserAccess(ctx context.Context, awsAccountID, userEmail string) error

	// RevokeAllUserAccess removes every end-user grant on the
	// account. Operator group access is unaffected.
	RevokeAllUserAccess(ctx context.Context, awsAccountID string) error

	// AssignGroupAccess gives the named operator groups access to the
	// account.
	AssignGroupAccess(ctx context.Context, awsAccountID string, groups ...string) error

	// RevokeGroupAccess removes the named operator groups' access.
	RevokeGroupAccess(ctx context.Context, awsAccountID string, groups ...string) error

	// GetUserFromEmail resolves an end user. Returns (nil, nil) when
	// no user exists for the email.
	GetUserFromEmail(ctx context.Context, email string) (*schema.User, error)
}

// EventPublisher delivers domain events to downstream consumers.
// Delivery is at-least-once and advisory: the orchestrator logs a
// publish failure and moves on, and a published event is never rolled
// back.
type EventPublisher interface {
	Publish(ctx context.Context, events ...schema.Event) error
}

// BlueprintService validates and cleans up blueprint deployments. The
// deployment itself runs externally; the orchestrator only dispatches
// a BlueprintDeploymentRequest event and is called back via
// PublishLease or ResetLease.
type BlueprintService interface {
	// ValidateForDeployment checks that the blueprint exists and is
	// deployable before an approval commits to it.
	ValidateForDeployment(ctx context.Context, blueprintID string) error

	// DeleteStackInstancesMetadata clears the deployment bookkeeping
	// for a failed provisioning run.
	DeleteStackInstancesMetadata(ctx context.Context, blueprintID, awsAccountID string) error
}
