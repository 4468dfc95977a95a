// Copyright 2026 The Sandpool Authors
// SPDX-License-Identifier: Apache-2.0

// Package orgs moves pooled accounts between the AWS Organizations
// OUs that back each account status. It is the production OUMover:
// Move verifies the account's actual parent OU before moving, which is
// the cloud-side half of the orchestrator's optimistic concurrency.
package orgs

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/organizations"
)

// API is the slice of the Organizations client the mover uses.
// Satisfied by *organizations.Client; tests substitute a fake.
type API interface {
	ListParents(ctx context.Context, input *organizations.ListParentsInput, opts ...func(*organizations.Options)) (*organizations.ListParentsOutput, error)
	MoveAccount(ctx context.Context, input *organizations.MoveAccountInput, opts ...func(*organizations.Options)) (*organizations.MoveAccountOutput, error)
}
