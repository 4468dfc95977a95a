// Copyright 2026 The Sandpool Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/shopspring/decimal"
)

// LeaseStatus is the lifecycle state of a lease.
type LeaseStatus string

const (
	// LeasePendingApproval is the initial state of a requested lease
	// awaiting a manager decision (or auto-approval).
	LeasePendingApproval LeaseStatus = "PendingApproval"

	// LeaseProvisioning is an approved lease whose account is being
	// prepared by an asynchronous blueprint deployment. The user has
	// no access yet.
	LeaseProvisioning LeaseStatus = "Provisioning"

	// LeaseActive is a running lease: the user has access to the
	// account and the monitor tracks budget and duration.
	LeaseActive LeaseStatus = "Active"

	// LeaseFrozen is a suspended lease: access revoked but the
	// account still assigned. Reversible back to Active.
	LeaseFrozen LeaseStatus = "Frozen"

	// LeaseApprovalDenied is terminal: the request was rejected
	// before any account was assigned.
	LeaseApprovalDenied LeaseStatus = "ApprovalDenied"

	// LeaseExpired is terminal: the lease duration elapsed.
	LeaseExpired LeaseStatus = "Expired"

	// LeaseBudgetExceeded is terminal: accrued cost crossed the
	// lease's maximum spend.
	LeaseBudgetExceeded LeaseStatus = "BudgetExceeded"

	// LeaseManuallyTerminated is terminal: an operator or the user
	// ended the lease.
	LeaseManuallyTerminated LeaseStatus = "ManuallyTerminated"

	// LeaseEjected is terminal: the underlying account was ejected
	// from the pool while this lease held it.
	LeaseEjected LeaseStatus = "Ejected"

	// LeaseAccountQuarantined is terminal: the underlying account was
	// quarantined while this lease held it.
	LeaseAccountQuarantined LeaseStatus = "AccountQuarantined"
)

// leaseStatuses is the set of valid statuses, used by validation.
var leaseStatuses = map[LeaseStatus]bool{
	LeasePendingApproval:    true,
	LeaseProvisioning:       true,
	LeaseActive:             true,
	LeaseFrozen:             true,
	LeaseApprovalDenied:     true,
	LeaseExpired:            true,
	LeaseBudgetExceeded:     true,
	LeaseManuallyTerminated: true,
	LeaseEjected:            true,
	LeaseAccountQuarantined: true,
}

// Valid reports whether s is a known lease status.
func (s LeaseStatus) Valid() bool { return leaseStatuses[s] }

// Monitored reports whether a lease in this status holds an account
// that the monitor tracks. At most one monitored lease may reference a
// given account at any time.
func (s LeaseStatus) Monitored() bool {
	return s == LeaseActive || s == LeaseFrozen || s == LeaseProvisioning
}

// Terminal reports whether the status is an end state. A terminal
// lease never transitions again.
func (s LeaseStatus) Terminal() bool {
	switch s {
	case LeaseApprovalDenied, LeaseExpired, LeaseBudgetExceeded,
		LeaseManuallyTerminated, LeaseEjected, LeaseAccountQuarantined:
		return true
	}
	return false
}

// CountsAgainstQuota reports whether a lease in this status consumes
// one slot of the per-user lease limit.
func (s LeaseStatus) CountsAgainstQuota() bool {
	return s == LeaseActive || s == LeasePendingApproval ||
		s == LeaseFrozen || s == LeaseProvisioning
}

// MonitoredLeaseStatuses lists the statuses for which a lease holds an
// account, in a stable order for store queries.
func MonitoredLeaseStatuses() []LeaseStatus {
	return []LeaseStatus{LeaseActive, LeaseFrozen, LeaseProvisioning}
}

// QuotaLeaseStatuses lists the statuses counted by the per-user lease
// limit, in a stable order for store queries.
func QuotaLeaseStatuses() []LeaseStatus {
	return []LeaseStatus{LeaseActive, LeasePendingApproval, LeaseFrozen, LeaseProvisioning}
}

// CanTransitionTo reports whether a lease may move from s to target.
// Terminal statuses allow no further transitions. Provisioning may
// return to PendingApproval (blueprint deployment failure reset); all
// monitored statuses may move to any terminal status.
func (s LeaseStatus) CanTransitionTo(target LeaseStatus) bool {
	if s.Terminal() {
		return false
	}
	switch s {
	case LeasePendingApproval:
		return target == LeaseProvisioning || target == LeaseActive ||
			target == LeaseApprovalDenied
	case LeaseProvisioning:
		return target == LeaseActive || target == LeasePendingApproval ||
			target.Terminal()
	case LeaseActive:
		return target == LeaseFrozen || target.Terminal()
	case LeaseFrozen:
		return target == LeaseActive || target.Terminal()
	}
	return false
}

// ThresholdAction is what the monitor does when a budget or duration
// threshold is crossed.
type ThresholdAction string

const (
	// ThresholdAlert emits a LeaseAlert event and nothing else.
	ThresholdAlert ThresholdAction = "Alert"

	// ThresholdFreeze freezes the lease (revokes access, keeps the
	// account assigned).
	ThresholdFreeze ThresholdAction = "Freeze"
)

// Valid reports whether a is a known threshold action.
func (a ThresholdAction) Valid() bool {
	return a == ThresholdAlert || a == ThresholdFreeze
}

// BudgetThreshold triggers an action once accrued cost reaches
// AmountSpent. Thresholds are stored in ascending AmountSpent order.
// Crossing MaxSpend itself terminates the lease with BudgetExceeded
// and needs no threshold entry.
type BudgetThreshold struct {
	// AmountSpent is the accrued-cost trigger point in the deployment
	// currency.
	AmountSpent decimal.Decimal `json:"amountSpent"`

	// Action is taken when TotalCostAccrued >= AmountSpent.
	Action ThresholdAction `json:"action"`
}

// DurationThreshold triggers an action when the remaining lease time
// drops to HoursRemaining. Thresholds are stored in descending
// HoursRemaining order. Reaching the expiration date itself terminates
// the lease with Expired and needs no threshold entry.
type DurationThreshold struct {
	// HoursRemaining is the remaining-time trigger point.
	HoursRemaining float64 `json:"hoursRemaining"`

	// Action is taken when the time left on the lease is at most
	// HoursRemaining hours.
	Action ThresholdAction `json:"action"`
}

// LeaseKey is the composite identity of a lease. Immutable after
// creation.
type LeaseKey struct {
	UserEmail string `json:"userEmail"`
	UUID      string `json:"uuid"`
}

// String renders the key for logs.
func (k LeaseKey) String() string { return k.UserEmail + "/" + k.UUID }

// Lease is one user's temporary claim on a pooled account.
type Lease struct {
	// UserEmail and UUID form the composite key.
	UserEmail string `json:"userEmail"`
	UUID      string `json:"uuid"`

	// Status is the lifecycle state.
	Status LeaseStatus `json:"status"`

	// OriginalLeaseTemplateUUID and OriginalLeaseTemplateName record
	// the template the lease was requested from. Informational; the
	// budget and duration fields below are copied at request time and
	// do not track later template edits.
	OriginalLeaseTemplateUUID string `json:"originalLeaseTemplateUuid"`
	OriginalLeaseTemplateName string `json:"originalLeaseTemplateName"`

	// Comments is the free-form justification supplied with the
	// request.
	Comments string `json:"comments,omitempty"`

	// ApprovedBy is the email of the approver, or "AUTO_APPROVED" for
	// templates that require no approval.
	ApprovedBy string `json:"approvedBy,omitempty"`

	// AWSAccountID is the pooled account assigned at approval time.
	// Empty until the lease is approved; a lease never holds two
	// different accounts.
	AWSAccountID string `json:"awsAccountId,omitempty"`

	// BlueprintID and BlueprintName identify the infrastructure
	// template deployed into the account before access is granted.
	// Empty for plain leases.
	BlueprintID   string `json:"blueprintId,omitempty"`
	BlueprintName string `json:"blueprintName,omitempty"`

	// MaxSpend is the budget cap. Nil means unbounded.
	MaxSpend *decimal.Decimal `json:"maxSpend,omitempty"`

	// BudgetThresholds are ordered ascending by AmountSpent.
	BudgetThresholds []BudgetThreshold `json:"budgetThresholds,omitempty"`

	// LeaseDurationInHours bounds the lease lifetime from StartDate.
	// Zero means unbounded.
	LeaseDurationInHours float64 `json:"leaseDurationInHours,omitempty"`

	// DurationThresholds are ordered descending by HoursRemaining.
	DurationThresholds []DurationThreshold `json:"durationThresholds,omitempty"`

	// TotalCostAccrued is the monitor's latest cost reading. It never
	// decreases while the lease is monitored.
	TotalCostAccrued decimal.Decimal `json:"totalCostAccrued"`

	// StartDate is set when user access is first granted.
	StartDate *time.Time `json:"startDate,omitempty"`

	// ExpirationDate is StartDate + LeaseDurationInHours, absent for
	// unbounded leases.
	ExpirationDate *time.Time `json:"expirationDate,omitempty"`

	// EndDate is set on transition to a terminal status.
	EndDate *time.Time `json:"endDate,omitempty"`

	// LastCheckedDate is the last time the monitor evaluated this
	// lease's thresholds.
	LastCheckedDate *time.Time `json:"lastCheckedDate,omitempty"`

	// TTL is the record expiry epoch-seconds stamp set on terminal
	// transition, consumed by the store's retention sweep.
	TTL int64 `json:"ttl,omitempty"`

	// Version is the optimistic-concurrency counter maintained by the
	// record store. Updates carrying a stale version are rejected.
	Version int64 `json:"version"`
}

// Key returns the lease's composite identity.
func (l *Lease) Key() LeaseKey {
	return LeaseKey{UserEmail: l.UserEmail, UUID: l.UUID}
}

// Validate checks structural invariants: required identity fields,
// known status, account assignment consistent with status, and
// threshold ordering. Returns an error describing the first violation
// found.
func (l *Lease) Validate() error {
	if l.UserEmail == "" {
		return errors.New("lease: userEmail is required")
	}
	if _, err := mail.ParseAddress(l.UserEmail); err != nil {
		return fmt.Errorf("lease: invalid userEmail %q: %w", l.UserEmail, err)
	}
	if l.UUID == "" {
		return errors.New("lease: uuid is required")
	}
	if !l.Status.Valid() {
		return fmt.Errorf("lease: unknown status %q", l.Status)
	}
	if l.Status.Monitored() && l.AWSAccountID == "" {
		return fmt.Errorf("lease: status %s requires an assigned account", l.Status)
	}
	if (l.Status == LeasePendingApproval || l.Status == LeaseApprovalDenied) && l.AWSAccountID != "" {
		return fmt.Errorf("lease: status %s must not hold an account", l.Status)
	}
	if l.MaxSpend != nil && l.MaxSpend.Sign() <= 0 {
		return fmt.Errorf("lease: maxSpend must be positive, got %s", l.MaxSpend)
	}
	if l.LeaseDurationInHours < 0 {
		return fmt.Errorf("lease: leaseDurationInHours must be >= 0, got %v", l.LeaseDurationInHours)
	}
	for i, threshold := range l.BudgetThresholds {
		if !threshold.Action.Valid() {
			return fmt.Errorf("lease: budgetThresholds[%d]: unknown action %q", i, threshold.Action)
		}
		if i > 0 && threshold.AmountSpent.LessThan(l.BudgetThresholds[i-1].AmountSpent) {
			return fmt.Errorf("lease: budgetThresholds must be ascending by amountSpent (index %d)", i)
		}
	}
	for i, threshold := range l.DurationThresholds {
		if !threshold.Action.Valid() {
			return fmt.Errorf("lease: durationThresholds[%d]: unknown action %q", i, threshold.Action)
		}
		if i > 0 && threshold.HoursRemaining > l.DurationThresholds[i-1].HoursRemaining {
			return fmt.Errorf("lease: durationThresholds must be descending by hoursRemaining (index %d)", i)
		}
	}
	return nil
}
