// Copyright 2026 The Sandpool Authors
// SPDX-License-Identifier: Apache-2.0

package leasing

import (
	"context"
	"fmt"

	"github.com/sandpool-project/sandpool/lib/saga"
	"github.com/sandpool-project/sandpool/lib/schema"
)

// TerminateLease ends a monitored lease with the given terminal
// status: user access is revoked, the account goes back through the
// cleanup pipeline, and the lease record is stamped with its end date
// and retention TTL. The monitor calls this for Terminate threshold
// breaches (Expired, BudgetExceeded); operators and users call it with
// ManuallyTerminated.
func (s *Service) TerminateLease(ctx context.Context, key schema.LeaseKey, final schema.LeaseStatus) (*schema.Lease, error) {
	return run(ctx, s, "TerminateLease", func(ctx context.Context) (*schema.Lease, error) {
		lease, err := s.getLease(ctx, key)
		if err != nil {
			return nil, err
		}
		return s.terminate(ctx, lease, final, true)
	})
}

// terminate is the shared termination saga. autoCleanup moves the
// account to CleanUp and requests a wipe; eject and quarantine pass
// false because they perform their own placement change, and the
// CleanAccountRequest event is suppressed with it.
func (s *Service) terminate(ctx context.Context, lease *schema.Lease, final schema.LeaseStatus, autoCleanup bool) (*schema.Lease, error) {
	if !lease.Status.Monitored() {
		return nil, fmt.Errorf("lease %s is %s, terminate requires a monitored status", lease.Key(), lease.Status)
	}
	if !final.Terminal() {
		return nil, fmt.Errorf("%s is not a terminal lease status", final)
	}
	if !lease.Status.CanTransitionTo(final) {
		return nil, fmt.Errorf("lease %s cannot move %s -> %s", lease.Key(), lease.Status, final)
	}

	wasActive := lease.Status == schema.LeaseActive
	steps := []saga.Step{
		{
			Name: "revoke user access",
			Commit: func(ctx context.Context) error {
				return s.access.RevokeAllUserAccess(ctx, lease.AWSAccountID)
			},
			// Frozen and Provisioning leases had no access to lose;
			// restoring it on rollback would grant, not restore.
			Rollback: func(ctx context.Context) error {
				if !wasActive {
					return nil
				}
				return s.access.GrantUserAccess(ctx, lease.AWSAccountID, lease.UserEmail)
			},
		},
	}

	var account *schema.Account
	if autoCleanup {
		fetched, err := s.getAccount(ctx, lease.AWSAccountID)
		if err != nil {
			return nil, err
		}
		account = fetched
		steps = append(steps,
			s.moveAccountStep("move account to cleanup", &account,
				account.Status, schema.AccountCleanUp),
			s.updateAccountStep("update account record", &account),
		)
	}

	steps = append(steps, saga.Step{
		Name: "update lease record",
		Commit: func(ctx context.Context) error {
			s.stampTerminal(lease, final)
			result, err := s.leases.Update(ctx, lease)
			if err != nil {
				return err
			}
			lease = result.NewItem
			return nil
		},
	})

	if err := saga.New(s.logger, steps...).Complete(ctx); err != nil {
		return nil, err
	}

	events := []schema.Event{}
	if autoCleanup {
		events = append(events, schema.CleanAccountRequest{
			AWSAccountID: lease.AWSAccountID,
			Reason:       "lease termination",
		})
	}
	events = append(events, schema.LeaseTerminated{
		Lease:        lease.Key(),
		AWSAccountID: lease.AWSAccountID,
		FinalStatus:  final,
	})
	s.publish(ctx, events...)
	return lease, nil
}

// DenyLease rejects a pending lease request. No account was ever
// assigned, so the only mutation is the lease record itself.
func (s *Service) DenyLease(ctx context.Context, key schema.LeaseKey, deniedBy string) (*schema.Lease, error) {
	return run(ctx, s, "DenyLease", func(ctx context.Context) (*schema.Lease, error) {
		return s.denyLease(ctx, key, deniedBy)
	})
}

func (s *Service) denyLease(ctx context.Context, key schema.LeaseKey, deniedBy string) (*schema.Lease, error) {
	lease, err := s.getLease(ctx, key)
	if err != nil {
		return nil, err
	}
	if lease.Status != schema.LeasePendingApproval {
		return nil, fmt.Errorf("lease %s is %s, deny requires PendingApproval", key, lease.Status)
	}

	s.stampTerminal(lease, schema.LeaseApprovalDenied)
	result, err := s.leases.Update(ctx, lease)
	if err != nil {
		return nil, err
	}
	lease = result.NewItem

	s.publish(ctx, schema.LeaseDenied{
		Lease:    lease.Key(),
		DeniedBy: deniedBy,
	})
	return lease, nil
}
