// Copyright 2026 The Sandpool Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func money(t *testing.T, value string) *decimal.Decimal {
	t.Helper()
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		t.Fatalf("decimal.NewFromString(%q): %v", value, err)
	}
	return &parsed
}

func validLease() *Lease {
	return &Lease{
		UserEmail:                 "dev@example.com",
		UUID:                      "7c1f7f6e-9a3b-4d8a-b6cf-0f4f0a2d5a11",
		Status:                    LeasePendingApproval,
		OriginalLeaseTemplateUUID: "template-1",
		OriginalLeaseTemplateName: "Short experiment",
	}
}

func TestLeaseStatusPredicates(t *testing.T) {
	tests := []struct {
		status    LeaseStatus
		monitored bool
		terminal  bool
		quota     bool
	}{
		{LeasePendingApproval, false, false, true},
		{LeaseProvisioning, true, false, true},
		{LeaseActive, true, false, true},
		{LeaseFrozen, true, false, true},
		{LeaseApprovalDenied, false, true, false},
		{LeaseExpired, false, true, false},
		{LeaseBudgetExceeded, false, true, false},
		{LeaseManuallyTerminated, false, true, false},
		{LeaseEjected, false, true, false},
		{LeaseAccountQuarantined, false, true, false},
	}
	for _, test := range tests {
		t.Run(string(test.status), func(t *testing.T) {
			if got := test.status.Monitored(); got != test.monitored {
				t.Errorf("Monitored() = %v, want %v", got, test.monitored)
			}
			if got := test.status.Terminal(); got != test.terminal {
				t.Errorf("Terminal() = %v, want %v", got, test.terminal)
			}
			if got := test.status.CountsAgainstQuota(); got != test.quota {
				t.Errorf("CountsAgainstQuota() = %v, want %v", got, test.quota)
			}
		})
	}
}

func TestLeaseTransitions(t *testing.T) {
	allowed := []struct{ from, to LeaseStatus }{
		{LeasePendingApproval, LeaseProvisioning},
		{LeasePendingApproval, LeaseActive},
		{LeasePendingApproval, LeaseApprovalDenied},
		{LeaseProvisioning, LeaseActive},
		{LeaseProvisioning, LeasePendingApproval},
		{LeaseProvisioning, LeaseEjected},
		{LeaseActive, LeaseFrozen},
		{LeaseActive, LeaseExpired},
		{LeaseActive, LeaseBudgetExceeded},
		{LeaseActive, LeaseManuallyTerminated},
		{LeaseFrozen, LeaseActive},
		{LeaseFrozen, LeaseAccountQuarantined},
	}
	for _, transition := range allowed {
		if !transition.from.CanTransitionTo(transition.to) {
			t.Errorf("CanTransitionTo(%s -> %s) = false, want true", transition.from, transition.to)
		}
	}

	denied := []struct{ from, to LeaseStatus }{
		{LeasePendingApproval, LeaseFrozen},
		{LeasePendingApproval, LeaseExpired},
		{LeaseActive, LeasePendingApproval},
		{LeaseActive, LeaseProvisioning},
		{LeaseFrozen, LeaseProvisioning},
		{LeaseExpired, LeaseActive},
		{LeaseManuallyTerminated, LeasePendingApproval},
		{LeaseEjected, LeaseEjected},
	}
	for _, transition := range denied {
		if transition.from.CanTransitionTo(transition.to) {
			t.Errorf("CanTransitionTo(%s -> %s) = true, want false", transition.from, transition.to)
		}
	}
}

func TestLeaseValidate(t *testing.T) {
	t.Run("valid_pending", func(t *testing.T) {
		if err := validLease().Validate(); err != nil {
			t.Errorf("Validate() = %v, want nil", err)
		}
	})

	t.Run("valid_active", func(t *testing.T) {
		lease := validLease()
		lease.Status = LeaseActive
		lease.AWSAccountID = "111122223333"
		start := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
		lease.StartDate = &start
		if err := lease.Validate(); err != nil {
			t.Errorf("Validate() = %v, want nil", err)
		}
	})

	tests := []struct {
		name    string
		mutate  func(*Lease)
		wantErr string
	}{
		{"missing_email", func(l *Lease) { l.UserEmail = "" }, "userEmail is required"},
		{"malformed_email", func(l *Lease) { l.UserEmail = "not an address" }, "invalid userEmail"},
		{"missing_uuid", func(l *Lease) { l.UUID = "" }, "uuid is required"},
		{"unknown_status", func(l *Lease) { l.Status = "Paused" }, "unknown status"},
		{"monitored_without_account", func(l *Lease) { l.Status = LeaseActive }, "requires an assigned account"},
		{
			"pending_with_account",
			func(l *Lease) { l.AWSAccountID = "111122223333" },
			"must not hold an account",
		},
		{
			"nonpositive_max_spend",
			func(l *Lease) { l.MaxSpend = money(t, "0") },
			"maxSpend must be positive",
		},
		{
			"negative_duration",
			func(l *Lease) { l.LeaseDurationInHours = -1 },
			"leaseDurationInHours must be >= 0",
		},
		{
			"unordered_budget_thresholds",
			func(l *Lease) {
				l.BudgetThresholds = []BudgetThreshold{
					{AmountSpent: *money(t, "50"), Action: ThresholdAlert},
					{AmountSpent: *money(t, "25"), Action: ThresholdFreeze},
				}
			},
			"ascending by amountSpent",
		},
		{
			"unordered_duration_thresholds",
			func(l *Lease) {
				l.DurationThresholds = []DurationThreshold{
					{HoursRemaining: 2, Action: ThresholdAlert},
					{HoursRemaining: 8, Action: ThresholdFreeze},
				}
			},
			"descending by hoursRemaining",
		},
		{
			"unknown_threshold_action",
			func(l *Lease) {
				l.BudgetThresholds = []BudgetThreshold{
					{AmountSpent: *money(t, "10"), Action: "Explode"},
				}
			},
			"unknown action",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			lease := validLease()
			test.mutate(lease)
			err := lease.Validate()
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", test.wantErr)
			}
			if !strings.Contains(err.Error(), test.wantErr) {
				t.Errorf("Validate() = %q, want error containing %q", err, test.wantErr)
			}
		})
	}
}

func TestTemplateNewLeaseCopiesThresholds(t *testing.T) {
	template := &LeaseTemplate{
		UUID:                 "template-1",
		Name:                 "Workshop",
		MaxSpend:             money(t, "100"),
		LeaseDurationInHours: 48,
		BudgetThresholds: []BudgetThreshold{
			{AmountSpent: *money(t, "50"), Action: ThresholdAlert},
			{AmountSpent: *money(t, "90"), Action: ThresholdFreeze},
		},
		DurationThresholds: []DurationThreshold{
			{HoursRemaining: 8, Action: ThresholdAlert},
		},
	}

	lease := template.NewLease("dev@example.com", "lease-uuid-1", "workshop seat")
	if lease.Status != LeasePendingApproval {
		t.Errorf("new lease status = %s, want %s", lease.Status, LeasePendingApproval)
	}
	if lease.OriginalLeaseTemplateUUID != template.UUID {
		t.Errorf("template uuid = %q, want %q", lease.OriginalLeaseTemplateUUID, template.UUID)
	}
	if len(lease.BudgetThresholds) != 2 || len(lease.DurationThresholds) != 1 {
		t.Fatalf("thresholds not copied: %+v", lease)
	}

	// The copies must be independent of the template's slices.
	lease.BudgetThresholds[0].Action = ThresholdFreeze
	if template.BudgetThresholds[0].Action != ThresholdAlert {
		t.Error("mutating lease thresholds changed the template")
	}
}
