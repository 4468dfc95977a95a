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

// ApproveLease grants a pending lease an account from the Available
// pool. Plain leases come back Active with access granted; blueprint
// leases come back Provisioning with a deployment request dispatched,
// and reach Active through PublishLease once the deployer calls back.
func (s *Service) ApproveLease(ctx context.Context, key schema.LeaseKey, approvedBy string) (*schema.Lease, error) {
	return run(ctx, s, "ApproveLease", func(ctx context.Context) (*schema.Lease, error) {
		lease, err := s.getLease(ctx, key)
		if err != nil {
			return nil, err
		}
		if lease.Status != schema.LeasePendingApproval {
			return nil, fmt.Errorf("lease %s is %s, not PendingApproval", key, lease.Status)
		}
		return s.approve(ctx, lease, approvedBy)
	})
}

// approve runs the shared approval saga for ApproveLease and the
// auto-approval path of RequestLease. The user lookup and the pool
// scan have no ordering dependency, so they run concurrently.
func (s *Service) approve(ctx context.Context, lease *schema.Lease, approvedBy string) (*schema.Lease, error) {
	type userResult struct {
		user *schema.User
		err  error
	}
	userCh := make(chan userResult, 1)
	go func() {
		user, err := s.getUser(ctx, lease.UserEmail)
		userCh <- userResult{user, err}
	}()

	candidates, err := s.accounts.ListByStatus(ctx, schema.AccountAvailable)
	if err != nil {
		<-userCh
		return nil, fmt.Errorf("listing available accounts: %w", err)
	}

	resolved := <-userCh
	if resolved.err != nil {
		return nil, resolved.err
	}

	account, err := s.selector.Acquire(candidates)
	if err != nil {
		return nil, err
	}

	if lease.BlueprintID != "" {
		if s.blueprints == nil {
			return nil, fmt.Errorf("lease %s carries blueprint %s but no blueprint service is configured",
				lease.Key(), lease.BlueprintID)
		}
		if err := s.blueprints.ValidateForDeployment(ctx, lease.BlueprintID); err != nil {
			return nil, fmt.Errorf("validating blueprint %s: %w", lease.BlueprintID, err)
		}
	}

	steps := []saga.Step{
		s.moveAccountStep("move account to active", &account,
			schema.AccountAvailable, schema.AccountActive),
	}
	if lease.BlueprintID == "" {
		steps = append(steps, saga.Step{
			Name: "grant user access",
			Commit: func(ctx context.Context) error {
				return s.access.GrantUserAccess(ctx, account.AWSAccountID, lease.UserEmail)
			},
			Rollback: func(ctx context.Context) error {
				return s.access.RevokeAllUserAccess(ctx, account.AWSAccountID)
			},
		})
	}
	steps = append(steps,
		s.updateAccountStep("update account record", &account),
		saga.Step{
			Name: "update lease record",
			Commit: func(ctx context.Context) error {
				lease.AWSAccountID = account.AWSAccountID
				lease.ApprovedBy = approvedBy
				if lease.BlueprintID == "" {
					s.activate(lease)
				} else {
					lease.Status = schema.LeaseProvisioning
				}
				result, err := s.leases.Update(ctx, lease)
				if err != nil {
					return err
				}
				lease = result.NewItem
				return nil
			},
			// Last step, nothing to compensate.
		},
	)

	if err := saga.New(s.logger, steps...).Complete(ctx); err != nil {
		return nil, err
	}

	if lease.BlueprintID == "" {
		s.publish(ctx, schema.LeaseApproved{
			Lease:        lease.Key(),
			AWSAccountID: lease.AWSAccountID,
			ApprovedBy:   approvedBy,
		})
	} else {
		s.publish(ctx, schema.BlueprintDeploymentRequest{
			Lease:        lease.Key(),
			AWSAccountID: lease.AWSAccountID,
			BlueprintID:  lease.BlueprintID,
		})
	}
	return lease, nil
}

// PublishLease activates a Provisioning lease once its blueprint
// deployment has completed: user access is granted and the start and
// expiration dates are stamped.
func (s *Service) PublishLease(ctx context.Context, key schema.LeaseKey) (*schema.Lease, error) {
	return run(ctx, s, "PublishLease", func(ctx context.Context) (*schema.Lease, error) {
		return s.publishLease(ctx, key)
	})
}

func (s *Service) publishLease(ctx context.Context, key schema.LeaseKey) (*schema.Lease, error) {
	lease, err := s.getLease(ctx, key)
	if err != nil {
		return nil, err
	}
	if lease.Status != schema.LeaseProvisioning {
		return nil, fmt.Errorf("lease %s is %s, not Provisioning", key, lease.Status)
	}

	transaction := saga.New(s.logger,
		saga.Step{
			Name: "grant user access",
			Commit: func(ctx context.Context) error {
				return s.access.GrantUserAccess(ctx, lease.AWSAccountID, lease.UserEmail)
			},
			Rollback: func(ctx context.Context) error {
				return s.access.RevokeAllUserAccess(ctx, lease.AWSAccountID)
			},
		},
		saga.Step{
			Name: "update lease record",
			Commit: func(ctx context.Context) error {
				s.activate(lease)
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

	s.publish(ctx, schema.LeaseApproved{
		Lease:        lease.Key(),
		AWSAccountID: lease.AWSAccountID,
		ApprovedBy:   lease.ApprovedBy,
	})
	return lease, nil
}

// ResetLease returns a Provisioning lease whose blueprint deployment
// failed to PendingApproval: the account goes back through cleanup and
// the lease sheds its account assignment, approver, and dates so it
// can be approved again onto a fresh account.
func (s *Service) ResetLease(ctx context.Context, key schema.LeaseKey, reason string) (*schema.Lease, error) {
	return run(ctx, s, "ResetLease", func(ctx context.Context) (*schema.Lease, error) {
		return s.resetLease(ctx, key, reason)
	})
}

func (s *Service) resetLease(ctx context.Context, key schema.LeaseKey, reason string) (*schema.Lease, error) {
	lease, err := s.getLease(ctx, key)
	if err != nil {
		return nil, err
	}
	if lease.Status != schema.LeaseProvisioning {
		return nil, fmt.Errorf("lease %s is %s, not Provisioning", key, lease.Status)
	}
	account, err := s.getAccount(ctx, lease.AWSAccountID)
	if err != nil {
		return nil, err
	}
	awsAccountID := account.AWSAccountID

	if s.blueprints != nil && lease.BlueprintID != "" {
		// Best-effort: stale stack metadata does not block the reset.
		if err := s.blueprints.DeleteStackInstancesMetadata(ctx, lease.BlueprintID, awsAccountID); err != nil {
			s.logger.Warn("deleting stack instance metadata",
				"blueprint", lease.BlueprintID, "aws_account_id", awsAccountID, "error", err)
		}
	}

	transaction := saga.New(s.logger,
		s.moveAccountStep("move account to cleanup", &account,
			account.Status, schema.AccountCleanUp),
		s.updateAccountStep("update account record", &account),
		saga.Step{
			Name: "update lease record",
			Commit: func(ctx context.Context) error {
				lease.Status = schema.LeasePendingApproval
				lease.AWSAccountID = ""
				lease.ApprovedBy = ""
				lease.StartDate = nil
				lease.ExpirationDate = nil
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

	s.publish(ctx,
		schema.CleanAccountRequest{AWSAccountID: awsAccountID, Reason: "provisioning failure"},
		schema.LeaseProvisioningFailed{
			Lease:        lease.Key(),
			AWSAccountID: awsAccountID,
			Reason:       reason,
		},
	)
	return lease, nil
}

// getLease fetches a fresh lease record.
func (s *Service) getLease(ctx context.Context, key schema.LeaseKey) (*schema.Lease, error) {
	lease, err := s.leases.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("no lease %s", key)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching lease %s: %w", key, err)
	}
	return lease, nil
}
