// Copyright 2026 The Sandpool Authors
// SPDX-License-Identifier: Apache-2.0

package leasing

import (
	"context"

	"github.com/sandpool-project/sandpool/lib/saga"
	"github.com/sandpool-project/sandpool/lib/schema"
)

// FreezeLease suspends an Active lease: access is revoked, the account
// moves to the Frozen placement, and the lease record follows. The
// monitor calls this for Freeze threshold breaches; operators call it
// manually. Reversible with UnfreezeLease.
//
// Fails with AccountNotInActive, before any mutation, when the lease
// is not Active.
func (s *Service) FreezeLease(ctx context.Context, key schema.LeaseKey, reason string) (*schema.Lease, error) {
	return run(ctx, s, "FreezeLease", func(ctx context.Context) (*schema.Lease, error) {
		return s.freezeLease(ctx, key, reason)
	})
}

func (s *Service) freezeLease(ctx context.Context, key schema.LeaseKey, reason string) (*schema.Lease, error) {
	lease, err := s.getLease(ctx, key)
	if err != nil {
		return nil, err
	}
	if lease.Status != schema.LeaseActive {
		return nil, newError(KindAccountNotInActive,
			"lease %s is %s, freeze requires Active", key, lease.Status)
	}
	account, err := s.getAccount(ctx, lease.AWSAccountID)
	if err != nil {
		return nil, err
	}

	transaction := saga.New(s.logger,
		saga.Step{
			Name: "revoke user access",
			Commit: func(ctx context.Context) error {
				return s.access.RevokeAllUserAccess(ctx, lease.AWSAccountID)
			},
			Rollback: func(ctx context.Context) error {
				return s.access.GrantUserAccess(ctx, lease.AWSAccountID, lease.UserEmail)
			},
		},
		s.moveAccountStep("move account to frozen", &account,
			schema.AccountActive, schema.AccountFrozen),
		s.updateAccountStep("update account record", &account),
		saga.Step{
			Name: "update lease record",
			Commit: func(ctx context.Context) error {
				lease.Status = schema.LeaseFrozen
				result, err := s.leases.Update(ctx, lease)
				if err != nil {
					return err
				}
				lease = result.NewItem
				return nil
			},
		},
	)
	if err := transaction.Complete(ctx); err != nil {
		return nil, err
	}

	s.publish(ctx, schema.LeaseFrozenEvent{
		Lease:        lease.Key(),
		AWSAccountID: lease.AWSAccountID,
		Reason:       reason,
	})
	return lease, nil
}

// UnfreezeLease resumes a Frozen lease: the account moves back to the
// Active placement and user access is restored.
//
// Fails with AccountNotInFrozen, before any mutation, when the lease
// is not Frozen.
func (s *Service) UnfreezeLease(ctx context.Context, key schema.LeaseKey) (*schema.Lease, error) {
	return run(ctx, s, "UnfreezeLease", func(ctx context.Context) (*schema.Lease, error) {
		return s.unfreezeLease(ctx, key)
	})
}

func (s *Service) unfreezeLease(ctx context.Context, key schema.LeaseKey) (*schema.Lease, error) {
	lease, err := s.getLease(ctx, key)
	if err != nil {
		return nil, err
	}
	if lease.Status != schema.LeaseFrozen {
		return nil, newError(KindAccountNotInFrozen,
			"lease %s is %s, unfreeze requires Frozen", key, lease.Status)
	}
	account, err := s.getAccount(ctx, lease.AWSAccountID)
	if err != nil {
		return nil, err
	}

	transaction := saga.New(s.logger,
		s.moveAccountStep("move account to active", &account,
			schema.AccountFrozen, schema.AccountActive),
		saga.Step{
			Name: "grant user access",
			Commit: func(ctx context.Context) error {
				return s.access.GrantUserAccess(ctx, lease.AWSAccountID, lease.UserEmail)
			},
			Rollback: func(ctx context.Context) error {
				return s.access.RevokeAllUserAccess(ctx, lease.AWSAccountID)
			},
		},
		s.updateAccountStep("update account record", &account),
		saga.Step{
			Name: "update lease record",
			Commit: func(ctx context.Context) error {
				lease.Status = schema.LeaseActive
				result, err := s.leases.Update(ctx, lease)
				if err != nil {
					return err
				}
				lease = result.NewItem
				return nil
			},
		},
	)
	if err := transaction.Complete(ctx); err != nil {
		return nil, err
	}

	s.publish(ctx, schema.LeaseUnfrozen{
		Lease:        lease.Key(),
		AWSAccountID: lease.AWSAccountID,
	})
	return lease, nil
}
