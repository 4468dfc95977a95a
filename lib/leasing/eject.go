// Copyright 2026 The Sandpool Authors
// SPDX-License-Identifier: Apache-2.0

package leasing

import (
	"context"
	"errors"
	"fmt"

	"github.com/sandpool-project/sandpool/lib/saga"
	"github.com/sandpool-project/sandpool/lib/schema"
	"github.com/sandpool-project/sandpool/lib/store"
)

// EjectAccount permanently removes an account from the pool: any
// monitored lease holding it is terminated as Ejected, the account
// moves to the Exit placement, operator group access is revoked, and
// the record is deleted. The account never re-enters the pool, so no
// cleanup is requested.
//
// Lease-termination failures are logged and do not block the
// ejection: the account is leaving regardless.
//
// Fails with AccountInCleanUp when the cleanup pipeline owns the
// account, and with CouldNotFindAccount when no record exists.
func (s *Service) EjectAccount(ctx context.Context, awsAccountID string) error {
	_, err := run(ctx, s, "EjectAccount", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.ejectAccount(ctx, awsAccountID)
	})
	return err
}

func (s *Service) ejectAccount(ctx context.Context, awsAccountID string) error {
	account, err := s.getAccount(ctx, awsAccountID)
	if err != nil {
		return err
	}
	if account.Status == schema.AccountCleanUp {
		return newError(KindAccountInCleanUp,
			"account %s is mid-cleanup, eject after the pipeline finishes", awsAccountID)
	}

	s.terminateAssociated(ctx, awsAccountID, schema.LeaseEjected, false)

	// Not a saga: the account is leaving the pool whatever happens, so
	// nothing here is compensated.
	if err := s.mover.PerformMove(ctx, awsAccountID, account.Status, schema.AccountExit); err != nil {
		return fmt.Errorf("moving account %s to exit: %w", awsAccountID, err)
	}
	if err := s.access.RevokeGroupAccess(ctx, awsAccountID, GroupManager, GroupAdmin); err != nil {
		return fmt.Errorf("revoking operator group access on %s: %w", awsAccountID, err)
	}
	if err := s.accounts.Delete(ctx, awsAccountID); err != nil {
		return fmt.Errorf("deleting account record %s: %w", awsAccountID, err)
	}
	return nil
}

// QuarantineAccount pulls an account from circulation after drift
// detection or a policy violation. Any monitored lease holding it is
// terminated as AccountQuarantined; unlike ejection, a termination
// failure aborts the quarantine so the operator sees the account is
// still live. An account with no record (drift against the store
// itself) gets a transient record created directly in Quarantine with
// DriftAtLastScan set.
func (s *Service) QuarantineAccount(ctx context.Context, awsAccountID, reason string) (*schema.Account, error) {
	return run(ctx, s, "QuarantineAccount", func(ctx context.Context) (*schema.Account, error) {
		return s.quarantineAccount(ctx, awsAccountID, reason)
	})
}

func (s *Service) quarantineAccount(ctx context.Context, awsAccountID, reason string) (*schema.Account, error) {
	account, err := s.accounts.Get(ctx, awsAccountID)
	if errors.Is(err, store.ErrNotFound) {
		return s.quarantineUnknown(ctx, awsAccountID, reason)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching account %s: %w", awsAccountID, err)
	}
	if account.Status == schema.AccountCleanUp {
		return nil, newError(KindAccountInCleanUp,
			"account %s is mid-cleanup, quarantine after the pipeline finishes", awsAccountID)
	}

	if err := s.terminateAssociated(ctx, awsAccountID, schema.LeaseAccountQuarantined, true); err != nil {
		return nil, err
	}

	transaction := saga.New(s.logger,
		s.moveAccountStep("move account to quarantine", &account,
			account.Status, schema.AccountQuarantine),
		s.updateAccountStep("update account record", &account),
	)
	if err := transaction.Complete(ctx); err != nil {
		return nil, err
	}

	s.publish(ctx, schema.AccountQuarantined{
		AWSAccountID: awsAccountID,
		DetectedAt:   s.clock.Now(),
		Reason:       reason,
	})
	return account, nil
}

// quarantineUnknown handles quarantine of an account the store has
// never seen. Its actual placement is unknown, so no verified move is
// possible; the record is created directly in Quarantine with the
// drift flag set, and the lease scan still runs (it finds nothing for
// an unknown account when the single-holder invariant is intact).
func (s *Service) quarantineUnknown(ctx context.Context, awsAccountID, reason string) (*schema.Account, error) {
	if err := s.terminateAssociated(ctx, awsAccountID, schema.LeaseAccountQuarantined, true); err != nil {
		return nil, err
	}

	account := &schema.Account{
		AWSAccountID:    awsAccountID,
		Status:          schema.AccountQuarantine,
		DriftAtLastScan: true,
	}
	if err := account.Validate(); err != nil {
		return nil, err
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, fmt.Errorf("creating quarantine record for %s: %w", awsAccountID, err)
	}

	s.publish(ctx, schema.AccountQuarantined{
		AWSAccountID: awsAccountID,
		DetectedAt:   s.clock.Now(),
		Reason:       reason,
	})
	return account, nil
}

// RecycleAccount requeues a quarantined account for cleanup after an
// operator has resolved whatever put it there. The account rejoins the
// pool when the cleanup pipeline reports success.
//
// Fails with AccountNotInQuarantine when the account is anywhere else.
func (s *Service) RecycleAccount(ctx context.Context, awsAccountID string) (*schema.Account, error) {
	return run(ctx, s, "RecycleAccount", func(ctx context.Context) (*schema.Account, error) {
		return s.recycleAccount(ctx, awsAccountID)
	})
}

func (s *Service) recycleAccount(ctx context.Context, awsAccountID string) (*schema.Account, error) {
	account, err := s.getAccount(ctx, awsAccountID)
	if err != nil {
		return nil, err
	}
	if account.Status != schema.AccountQuarantine {
		return nil, newError(KindAccountNotInQuarantine,
			"account %s is %s, recycle requires Quarantine", awsAccountID, account.Status)
	}

	transaction := saga.New(s.logger,
		s.moveAccountStep("move account to cleanup", &account,
			schema.AccountQuarantine, schema.AccountCleanUp),
		saga.Step{
			Name: "update account record",
			Commit: func(ctx context.Context) error {
				account.DriftAtLastScan = false
				result, err := s.accounts.Update(ctx, account)
				if err != nil {
					return err
				}
				account = result.NewItem
				return nil
			},
		},
	)
	if err := transaction.Complete(ctx); err != nil {
		return nil, err
	}

	s.publish(ctx, schema.CleanAccountRequest{
		AWSAccountID: awsAccountID,
		Reason:       "recycle",
	})
	return account, nil
}

// terminateAssociated ends every monitored lease holding the account.
// With the single-holder invariant intact the scan yields at most one
// lease; a lease whose status changed between the scan and the
// re-check lost a race with a concurrent transition and is skipped
// with a warning. propagate controls whether a termination failure
// aborts the caller (quarantine) or is merely logged (eject).
func (s *Service) terminateAssociated(ctx context.Context, awsAccountID string, final schema.LeaseStatus, propagate bool) error {
	leases, err := s.leases.ListByStatusAndAccount(ctx, awsAccountID, schema.MonitoredLeaseStatuses()...)
	if err != nil {
		if propagate {
			return fmt.Errorf("scanning leases for account %s: %w", awsAccountID, err)
		}
		s.logger.Error("scanning leases for account", "aws_account_id", awsAccountID, "error", err)
		return nil
	}

	for _, lease := range leases {
		if !lease.Status.Monitored() {
			s.logger.Warn("associated lease no longer monitored, skipping termination",
				"lease", lease.Key().String(), "status", lease.Status)
			continue
		}
		if _, err := s.terminate(ctx, lease, final, false); err != nil {
			if propagate {
				return fmt.Errorf("terminating lease %s: %w", lease.Key(), err)
			}
			s.logger.Error("terminating associated lease",
				"lease", lease.Key().String(), "error", err)
		}
	}
	return nil
}
