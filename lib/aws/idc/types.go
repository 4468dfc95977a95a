// Copyright 2026 The Sandpool Authors
// SPDX-License-Identifier: Apache-2.0

// Package idc grants and revokes sandbox access through IAM Identity
// Center. A single permission set carries all sandbox access; users
// get per-account assignments for the lifetime of a lease, operator
// groups get assignments for the lifetime of the pooled account.
package idc

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/identitystore"
	"github.com/aws/aws-sdk-go-v2/service/ssoadmin"
)

// IdentityStoreAPI is the slice of the identity store client the
// granter uses. Satisfied by *identitystore.Client.
type IdentityStoreAPI interface {
	ListUsers(ctx context.Context, input *identitystore.ListUsersInput, opts ...func(*identitystore.Options)) (*identitystore.ListUsersOutput, error)
}

// SSOAdminAPI is the slice of the SSO admin client the granter uses.
// Satisfied by *ssoadmin.Client.
type SSOAdminAPI interface {
	CreateAccountAssignment(ctx context.Context, input *ssoadmin.CreateAccountAssignmentInput, opts ...func(*ssoadmin.Options)) (*ssoadmin.CreateAccountAssignmentOutput, error)
	DeleteAccountAssignment(ctx context.Context, input *ssoadmin.DeleteAccountAssignmentInput, opts ...func(*ssoadmin.Options)) (*ssoadmin.DeleteAccountAssignmentOutput, error)
	ListAccountAssignments(ctx context.Context, input *ssoadmin.ListAccountAssignmentsInput, opts ...func(*ssoadmin.Options)) (*ssoadmin.ListAccountAssignmentsOutput, error)
}
