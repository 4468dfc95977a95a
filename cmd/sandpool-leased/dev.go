// Copyright 2026 The Sandpool Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sandpool-project/sandpool/lib/leasing"
	"github.com/sandpool-project/sandpool/lib/schema"
)

// Dev-mode stand-ins for the AWS collaborators. They keep just enough
// state in memory for the full lease lifecycle to run on a laptop with
// no AWS account.

// devMover tracks placements in memory. An account seen for the first
// time is assumed to sit where the caller expects it.
type devMover struct {
	mu        sync.Mutex
	placement map[string]schema.AccountStatus
}

func newDevMover() *devMover {
	return &devMover{placement: make(map[string]schema.AccountStatus)}
}

func (m *devMover) Move(ctx context.Context, account *schema.Account, expected, target schema.AccountStatus) (*schema.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.placement[account.AWSAccountID]
	if !ok {
		current = expected
	}
	if current != expected {
		return nil, &leasing.MovePreconditionError{
			AWSAccountID: account.AWSAccountID,
			Expected:     expected,
			Actual:       current,
		}
	}
	m.placement[account.AWSAccountID] = target
	moved := *account
	moved.Status = target
	return &moved, nil
}

func (m *devMover) PerformMove(ctx context.Context, awsAccountID string, current, target schema.AccountStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.placement[awsAccountID] = target
	return nil
}

// devAccess resolves any email to a synthetic user and tracks grants
// in memory.
type devAccess struct {
	mu     sync.Mutex
	grants map[string][]string
}

func newDevAccess() *devAccess {
	return &devAccess{grants: make(map[string][]string)}
}

func (a *devAccess) GetUserFromEmail(ctx context.Context, email string) (*schema.User, error) {
	return &schema.User{UserID: "dev-" + email, Email: email, DisplayName: email}, nil
}

func (a *devAccess) GrantUserAccess(ctx context.Context, awsAccountID, userEmail string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.grants[awsAccountID] = append(a.grants[awsAccountID], userEmail)
	return nil
}

func (a *devAccess) RevokeAllUserAccess(ctx context.Context, awsAccountID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.grants, awsAccountID)
	return nil
}

func (a *devAccess) AssignGroupAccess(ctx context.Context, awsAccountID string, groups ...string) error {
	return nil
}

func (a *devAccess) RevokeGroupAccess(ctx context.Context, awsAccountID string, groups ...string) error {
	return nil
}

// devPublisher logs events instead of publishing them.
type devPublisher struct {
	logger *slog.Logger
}

func (p *devPublisher) Publish(ctx context.Context, events ...schema.Event) error {
	for _, event := range events {
		p.logger.Info("event", "detail_type", event.EventType(), "detail", event)
	}
	return nil
}

// devBlueprints accepts every blueprint.
type devBlueprints struct{}

func (devBlueprints) ValidateForDeployment(ctx context.Context, blueprintID string) error {
	return nil
}

func (devBlueprints) DeleteStackInstancesMetadata(ctx context.Context, blueprintID, awsAccountID string) error {
	return nil
}

// devCosts reports zero spend, so budget thresholds never fire in dev
// mode.
type devCosts struct{}

func (devCosts) AccountCost(ctx context.Context, awsAccountID string, start, end time.Time) (decimal.Decimal, error) {
	return decimal.Zero, nil
}
