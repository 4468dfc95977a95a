// Copyright 2026 The Sandpool Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// LeaseTemplate is a named preset from which leases are requested.
// Budget and duration fields are copied onto the lease at request
// time; later template edits do not affect existing leases.
type LeaseTemplate struct {
	// UUID is the immutable identity.
	UUID string `json:"uuid"`

	// Name is the operator-facing display name.
	Name string `json:"name"`

	// Description explains what the template is for.
	Description string `json:"description,omitempty"`

	// RequiresApproval gates the lease behind a manager decision.
	// When false, RequestLease approves the lease in the same call.
	RequiresApproval bool `json:"requiresApproval"`

	// MaxSpend is the budget cap copied to leases. Nil means
	// unbounded.
	MaxSpend *decimal.Decimal `json:"maxSpend,omitempty"`

	// BudgetThresholds are ordered ascending by AmountSpent.
	BudgetThresholds []BudgetThreshold `json:"budgetThresholds,omitempty"`

	// LeaseDurationInHours bounds lease lifetime. Zero means
	// unbounded.
	LeaseDurationInHours float64 `json:"leaseDurationInHours,omitempty"`

	// DurationThresholds are ordered descending by HoursRemaining.
	DurationThresholds []DurationThreshold `json:"durationThresholds,omitempty"`

	// BlueprintID and BlueprintName select the infrastructure
	// deployed into the account before access is granted. Empty for
	// plain templates.
	BlueprintID   string `json:"blueprintId,omitempty"`
	BlueprintName string `json:"blueprintName,omitempty"`

	// CreatedBy is the email of the operator who defined the
	// template.
	CreatedBy string `json:"createdBy,omitempty"`

	// Version is the optimistic-concurrency counter maintained by the
	// record store.
	Version int64 `json:"version"`
}

// Validate checks structural invariants. Returns an error describing
// the first violation found.
func (t *LeaseTemplate) Validate() error {
	if t.UUID == "" {
		return errors.New("lease template: uuid is required")
	}
	if t.Name == "" {
		return errors.New("lease template: name is required")
	}
	if t.MaxSpend != nil && t.MaxSpend.Sign() <= 0 {
		return fmt.Errorf("lease template: maxSpend must be positive, got %s", t.MaxSpend)
	}
	if t.LeaseDurationInHours < 0 {
		return fmt.Errorf("lease template: leaseDurationInHours must be >= 0, got %v", t.LeaseDurationInHours)
	}
	if t.BlueprintID == "" && t.BlueprintName != "" {
		return errors.New("lease template: blueprintName without blueprintId")
	}
	return nil
}

// NewLease instantiates a pending lease from the template, copying the
// budget and duration configuration. The caller assigns the UUID and
// persists the result.
func (t *LeaseTemplate) NewLease(userEmail, leaseUUID, comments string) *Lease {
	return &Lease{
		UserEmail:                 userEmail,
		UUID:                      leaseUUID,
		Status:                    LeasePendingApproval,
		OriginalLeaseTemplateUUID: t.UUID,
		OriginalLeaseTemplateName: t.Name,
		Comments:                  comments,
		BlueprintID:               t.BlueprintID,
		BlueprintName:             t.BlueprintName,
		MaxSpend:                  t.MaxSpend,
		BudgetThresholds:          append([]BudgetThreshold(nil), t.BudgetThresholds...),
		LeaseDurationInHours:      t.LeaseDurationInHours,
		DurationThresholds:        append([]DurationThreshold(nil), t.DurationThresholds...),
	}
}

// User is an end user resolved from the identity store.
type User struct {
	// UserID is the identity-store identifier.
	UserID string `json:"userId"`

	// Email is the user's primary email, the half of every lease key.
	Email string `json:"email"`

	// DisplayName is informational.
	DisplayName string `json:"displayName,omitempty"`
}
