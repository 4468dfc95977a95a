// Copyright 2026 The Sandpool Authors
// SPDX-License-Identifier: Apache-2.0

package leasing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/sandpool-project/sandpool/lib/schema"
	"github.com/sandpool-project/sandpool/lib/store"
)

// RequestLease creates a lease in PendingApproval from the named
// template. Templates that require no approval are approved in the
// same call; if that approval fails for any reason the created record
// is deleted so a failed auto-approval leaves nothing behind.
//
// Fails with MaxNumberOfLeasesExceeded before any mutation when the
// user already holds the maximum number of leases in a quota-counting
// status (Active, PendingApproval, Frozen, Provisioning).
func (s *Service) RequestLease(ctx context.Context, userEmail, templateUUID, comments string) (*schema.Lease, error) {
	return run(ctx, s, "RequestLease", func(ctx context.Context) (*schema.Lease, error) {
		return s.requestLease(ctx, userEmail, templateUUID, comments)
	})
}

func (s *Service) requestLease(ctx context.Context, userEmail, templateUUID, comments string) (*schema.Lease, error) {
	held, err := s.leases.ListByUser(ctx, userEmail)
	if err != nil {
		return nil, fmt.Errorf("listing leases for %s: %w", userEmail, err)
	}
	counted := 0
	for _, lease := range held {
		if lease.Status.CountsAgainstQuota() {
			counted++
		}
	}
	if counted >= s.maxPer {
		return nil, newError(KindMaxNumberOfLeasesExceeded,
			"%s holds %d leases, maximum is %d", userEmail, counted, s.maxPer)
	}

	template, err := s.templates.Get(ctx, templateUUID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("no lease template %s", templateUUID)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching template %s: %w", templateUUID, err)
	}

	lease := template.NewLease(userEmail, uuid.NewString(), comments)
	if err := lease.Validate(); err != nil {
		return nil, err
	}
	if err := s.leases.Create(ctx, lease); err != nil {
		return nil, fmt.Errorf("creating lease %s: %w", lease.Key(), err)
	}

	if template.RequiresApproval {
		s.publish(ctx, schema.LeaseRequested{
			Lease:            lease.Key(),
			TemplateUUID:     template.UUID,
			RequiresApproval: true,
		})
		return lease, nil
	}

	approved, err := s.approve(ctx, lease, AutoApproved)
	if err != nil {
		// Auto-approval compensated its own steps; remove the record
		// the request created so nothing is left pending.
		if deleteErr := s.leases.Delete(ctx, lease.Key()); deleteErr != nil {
			s.logger.Error("deleting lease after failed auto-approval",
				"lease", lease.Key().String(), "error", deleteErr)
		}
		return nil, err
	}
	return approved, nil
}
