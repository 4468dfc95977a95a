// Copyright 2026 The Sandpool Authors
// SPDX-License-Identifier: Apache-2.0

package idc

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/identitystore"
	idtypes "github.com/aws/aws-sdk-go-v2/service/identitystore/types"
	"github.com/aws/aws-sdk-go-v2/service/ssoadmin"
	ssotypes "github.com/aws/aws-sdk-go-v2/service/ssoadmin/types"

	"github.com/sandpool-project/sandpool/lib/schema"
)

// Granter implements leasing.AccessGranter against IAM Identity
// Center.
type Granter struct {
	identity IdentityStoreAPI
	sso      SSOAdminAPI

	identityStoreID  string
	instanceARN      string
	permissionSetARN string
	groupIDs         map[string]string

	logger *slog.Logger
}

// Config carries the Identity Center coordinates the granter needs.
type Config struct {
	IdentityStoreID  string
	SSOInstanceARN   string
	PermissionSetARN string

	// GroupIDs maps operator group names to identity store group IDs.
	GroupIDs map[string]string
}

// New builds a granter from an AWS config.
func New(awscfg aws.Config, cfg Config, logger *slog.Logger) *Granter {
	return NewWithClients(identitystore.NewFromConfig(awscfg), ssoadmin.NewFromConfig(awscfg), cfg, logger)
}

// NewWithClients builds a granter around existing clients. Tests use
// this with fakes.
func NewWithClients(identity IdentityStoreAPI, sso SSOAdminAPI, cfg Config, logger *slog.Logger) *Granter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Granter{
		identity:         identity,
		sso:              sso,
		identityStoreID:  cfg.IdentityStoreID,
		instanceARN:      cfg.SSOInstanceARN,
		permissionSetARN: cfg.PermissionSetARN,
		groupIDs:         cfg.GroupIDs,
		logger:           logger,
	}
}

// GetUserFromEmail resolves an identity store user by email. Returns
// (nil, nil) when no user exists.
func (g *Granter) GetUserFromEmail(ctx context.Context, email string) (*schema.User, error) {
	out, err := g.identity.ListUsers(ctx, &identitystore.ListUsersInput{
		IdentityStoreId: aws.String(g.identityStoreID),
		Filters: []idtypes.Filter{{
			AttributePath:  aws.String("UserName"),
			AttributeValue: aws.String(email),
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("looking up user %s: %w", email, err)
	}
	if len(out.Users) == 0 {
		return nil, nil
	}
	user := out.Users[0]
	resolved := &schema.User{
		UserID: aws.ToString(user.UserId),
		Email:  email,
	}
	if user.DisplayName != nil {
		resolved.DisplayName = aws.ToString(user.DisplayName)
	}
	return resolved, nil
}

// GrantUserAccess assigns the sandbox permission set to the user on
// the account.
func (g *Granter) GrantUserAccess(ctx context.Context, awsAccountID, userEmail string) error {
	user, err := g.GetUserFromEmail(ctx, userEmail)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("no identity store user for %s", userEmail)
	}
	if err := g.assign(ctx, awsAccountID, user.UserID, ssotypes.PrincipalTypeUser); err != nil {
		return fmt.Errorf("granting %s access to account %s: %w", userEmail, awsAccountID, err)
	}
	g.logger.Info("granted user access",
		"aws_account_id", awsAccountID,
		"user_email", userEmail)
	return nil
}

// RevokeAllUserAccess removes every user assignment on the account.
// Group assignments survive.
func (g *Granter) RevokeAllUserAccess(ctx context.Context, awsAccountID string) error {
	var token *string
	for {
		out, err := g.sso.ListAccountAssignments(ctx, &ssoadmin.ListAccountAssignmentsInput{
			AccountId:        aws.String(awsAccountID),
			InstanceArn:      aws.String(g.instanceARN),
			PermissionSetArn: aws.String(g.permissionSetARN),
			NextToken:        token,
		})
		if err != nil {
			return fmt.Errorf("listing assignments on account %s: %w", awsAccountID, err)
		}
		for _, assignment := range out.AccountAssignments {
			if assignment.PrincipalType != ssotypes.PrincipalTypeUser {
				continue
			}
			if err := g.unassign(ctx, awsAccountID, aws.ToString(assignment.PrincipalId), ssotypes.PrincipalTypeUser); err != nil {
				return fmt.Errorf("revoking user access on account %s: %w", awsAccountID, err)
			}
		}
		token = out.NextToken
		if token == nil {
			break
		}
	}
	g.logger.Info("revoked user access", "aws_account_id", awsAccountID)
	return nil
}

// AssignGroupAccess assigns the permission set to the named operator
// groups on the account.
func (g *Granter) AssignGroupAccess(ctx context.Context, awsAccountID string, groups ...string) error {
	for _, group := range groups {
		groupID, ok := g.groupIDs[group]
		if !ok {
			return fmt.Errorf("no identity store group configured for %s", group)
		}
		if err := g.assign(ctx, awsAccountID, groupID, ssotypes.PrincipalTypeGroup); err != nil {
			return fmt.Errorf("granting group %s access to account %s: %w", group, awsAccountID, err)
		}
	}
	return nil
}

// RevokeGroupAccess removes the named operator groups' assignments on
// the account.
func (g *Granter) RevokeGroupAccess(ctx context.Context, awsAccountID string, groups ...string) error {
	for _, group := range groups {
		groupID, ok := g.groupIDs[group]
		if !ok {
			return fmt.Errorf("no identity store group configured for %s", group)
		}
		if err := g.unassign(ctx, awsAccountID, groupID, ssotypes.PrincipalTypeGroup); err != nil {
			return fmt.Errorf("revoking group %s access on account %s: %w", group, awsAccountID, err)
		}
	}
	return nil
}

func (g *Granter) assign(ctx context.Context, awsAccountID, principalID string, principalType ssotypes.PrincipalType) error {
	_, err := g.sso.CreateAccountAssignment(ctx, &ssoadmin.CreateAccountAssignmentInput{
		InstanceArn:      aws.String(g.instanceARN),
		PermissionSetArn: aws.String(g.permissionSetARN),
		PrincipalId:      aws.String(principalID),
		PrincipalType:    principalType,
		TargetId:         aws.String(awsAccountID),
		TargetType:       ssotypes.TargetTypeAwsAccount,
	})
	return err
}

func (g *Granter) unassign(ctx context.Context, awsAccountID, principalID string, principalType ssotypes.PrincipalType) error {
	_, err := g.sso.DeleteAccountAssignment(ctx, &ssoadmin.DeleteAccountAssignmentInput{
		InstanceArn:      aws.String(g.instanceARN),
		PermissionSetArn: aws.String(g.permissionSetARN),
		PrincipalId:      aws.String(principalID),
		PrincipalType:    principalType,
		TargetId:         aws.String(awsAccountID),
		TargetType:       ssotypes.TargetTypeAwsAccount,
	})
	return err
}
