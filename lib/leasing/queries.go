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

// GetLease returns the lease record for key.
func (s *Service) GetLease(ctx context.Context, key schema.LeaseKey) (*schema.Lease, error) {
	return s.getLease(ctx, key)
}

// ListLeasesByUser returns every lease belonging to the user.
func (s *Service) ListLeasesByUser(ctx context.Context, userEmail string) ([]*schema.Lease, error) {
	return s.leases.ListByUser(ctx, userEmail)
}

// ListLeasesByStatus returns every lease in the given statuses.
func (s *Service) ListLeasesByStatus(ctx context.Context, statuses ...schema.LeaseStatus) ([]*schema.Lease, error) {
	return s.leases.ListByStatus(ctx, statuses...)
}

// CreateTemplate validates and stores a new lease template, assigning
// its UUID.
func (s *Service) CreateTemplate(ctx context.Context, template *schema.LeaseTemplate) (*schema.LeaseTemplate, error) {
	if template.UUID == "" {
		template.UUID = uuid.NewString()
	}
	if err := template.Validate(); err != nil {
		return nil, err
	}
	if template.BlueprintID != "" && s.blueprints != nil {
		if err := s.blueprints.ValidateForDeployment(ctx, template.BlueprintID); err != nil {
			return nil, fmt.Errorf("validating blueprint %s: %w", template.BlueprintID, err)
		}
	}
	if err := s.templates.Create(ctx, template); err != nil {
		return nil, fmt.Errorf("creating template %s: %w", template.UUID, err)
	}
	return template, nil
}

// GetTemplate returns the lease template with the given UUID.
func (s *Service) GetTemplate(ctx context.Context, templateUUID string) (*schema.LeaseTemplate, error) {
	template, err := s.templates.Get(ctx, templateUUID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("no lease template %s", templateUUID)
	}
	return template, err
}

// ListTemplates returns every lease template.
func (s *Service) ListTemplates(ctx context.Context) ([]*schema.LeaseTemplate, error) {
	return s.templates.List(ctx)
}

// DeleteTemplate removes a lease template. Existing leases keep the
// budget and duration configuration copied at request time.
func (s *Service) DeleteTemplate(ctx context.Context, templateUUID string) error {
	if err := s.templates.Delete(ctx, templateUUID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no lease template %s", templateUUID)
		}
		return err
	}
	return nil
}
