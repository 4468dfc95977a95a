// Copyright 2026 The Sandpool Authors
// SPDX-License-Identifier: Apache-2.0

package leasing

import (
	"context"
	"fmt"

	"github.com/sandpool-project/sandpool/lib/saga"
	"github.com/sandpool-project/sandpool/lib/schema"
)

// RegisterAccount brings an account from the external inventory into
// the pool: it moves the account from the Entry placement to CleanUp,
// grants the Manager and Admin operator groups access, creates the
// account record, and asks the cleanup pipeline to wipe it. The
// account reaches Available only when the pipeline reports success.
func (s *Service) RegisterAccount(ctx context.Context, awsAccountID, email, name string) (*schema.Account, error) {
	return run(ctx, s, "RegisterAccount", func(ctx context.Context) (*schema.Account, error) {
		return s.registerAccount(ctx, awsAccountID, email, name)
	})
}

func (s *Service) registerAccount(ctx context.Context, awsAccountID, email, name string) (*schema.Account, error) {
	account := &schema.Account{
		AWSAccountID: awsAccountID,
		Status:       schema.AccountEntry,
		Email:        email,
		Name:         name,
	}
	if err := account.Validate(); err != nil {
		return nil, err
	}

	transaction := saga.New(s.logger,
		s.moveAccountStep("move account to cleanup", &account,
			schema.AccountEntry, schema.AccountCleanUp),
		saga.Step{
			Name: "grant operator group access",
			Commit: func(ctx context.Context) error {
				return s.access.AssignGroupAccess(ctx, awsAccountID, GroupManager, GroupAdmin)
			},
			Rollback: func(ctx context.Context) error {
				return s.access.RevokeGroupAccess(ctx, awsAccountID, GroupManager, GroupAdmin)
			},
		},
		saga.Step{
			Name: "create account record",
			Commit: func(ctx context.Context) error {
				if err := s.accounts.Create(ctx, account); err != nil {
					return fmt.Errorf("creating account record %s: %w", awsAccountID, err)
				}
				return nil
			},
			Rollback: func(ctx context.Context) error {
				return s.accounts.Delete(ctx, awsAccountID)
			},
		},
	)
	if err := transaction.Complete(ctx); err != nil {
		return nil, err
	}

	s.publish(ctx, schema.CleanAccountRequest{
		AWSAccountID: awsAccountID,
		Reason:       "registration",
	})
	return account, nil
}

// MarkAccountClean records a successful cleanup run: the account moves
// from CleanUp back into the Available pool and remembers the run so
// the pool selector can apply its cooldown.
func (s *Service) MarkAccountClean(ctx context.Context, awsAccountID string, execution schema.CleanupExecution) (*schema.Account, error) {
	return run(ctx, s, "MarkAccountClean", func(ctx context.Context) (*schema.Account, error) {
		return s.markAccountClean(ctx, awsAccountID, execution)
	})
}

func (s *Service) markAccountClean(ctx context.Context, awsAccountID string, execution schema.CleanupExecution) (*schema.Account, error) {
	account, err := s.getAccount(ctx, awsAccountID)
	if err != nil {
		return nil, err
	}
	if account.Status != schema.AccountCleanUp {
		return nil, fmt.Errorf("account %s is %s, not CleanUp", awsAccountID, account.Status)
	}

	transaction := saga.New(s.logger,
		s.moveAccountStep("move account to available", &account,
			schema.AccountCleanUp, schema.AccountAvailable),
		saga.Step{
			Name: "update account record",
			Commit: func(ctx context.Context) error {
				account.CleanupExecutionContext = &execution
				account.DriftAtLastScan = false
				result, err := s.accounts.Update(ctx, account)
				if err != nil {
					return err
				}
				account = result.NewItem
				return nil
			},
			// Last step, nothing to compensate.
		},
	)
	if err := transaction.Complete(ctx); err != nil {
		return nil, err
	}
	return account, nil
}

// ListAccounts returns account records filtered by status, or all
// records when no statuses are given.
func (s *Service) ListAccounts(ctx context.Context, statuses ...schema.AccountStatus) ([]*schema.Account, error) {
	if len(statuses) == 0 {
		statuses = []schema.AccountStatus{
			schema.AccountEntry, schema.AccountCleanUp, schema.AccountAvailable,
			schema.AccountActive, schema.AccountFrozen, schema.AccountQuarantine,
			schema.AccountExit,
		}
	}
	return s.accounts.ListByStatus(ctx, statuses...)
}

// GetAccount returns the account record for awsAccountID.
func (s *Service) GetAccount(ctx context.Context, awsAccountID string) (*schema.Account, error) {
	return s.getAccount(ctx, awsAccountID)
}
