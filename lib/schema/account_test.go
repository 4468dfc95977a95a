// Copyright 2026 The Sandpool Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"strings"
	"testing"
	"time"
)

func TestAccountCanMoveTo(t *testing.T) {
	all := []AccountStatus{
		AccountEntry, AccountCleanUp, AccountAvailable, AccountActive,
		AccountFrozen, AccountQuarantine, AccountExit,
	}

	t.Run("exit_is_terminal", func(t *testing.T) {
		for _, target := range all {
			if AccountExit.CanMoveTo(target) {
				t.Errorf("CanMoveTo(Exit -> %s) = true, want false", target)
			}
		}
	})

	t.Run("cleanup_reachable_from_all_but_exit", func(t *testing.T) {
		for _, from := range all {
			want := from != AccountExit
			if got := from.CanMoveTo(AccountCleanUp); got != want {
				t.Errorf("CanMoveTo(%s -> CleanUp) = %v, want %v", from, got, want)
			}
		}
	})

	t.Run("cleanup_cannot_be_ejected_or_quarantined", func(t *testing.T) {
		if AccountCleanUp.CanMoveTo(AccountExit) {
			t.Error("CanMoveTo(CleanUp -> Exit) = true, want false")
		}
		if AccountCleanUp.CanMoveTo(AccountQuarantine) {
			t.Error("CanMoveTo(CleanUp -> Quarantine) = true, want false")
		}
	})

	t.Run("pool_flow", func(t *testing.T) {
		flow := []struct {
			from, to AccountStatus
			want     bool
		}{
			{AccountEntry, AccountCleanUp, true},
			{AccountCleanUp, AccountAvailable, true},
			{AccountAvailable, AccountActive, true},
			{AccountActive, AccountFrozen, true},
			{AccountFrozen, AccountActive, true},
			{AccountActive, AccountQuarantine, true},
			{AccountAvailable, AccountExit, true},
			{AccountEntry, AccountAvailable, false},
			{AccountEntry, AccountActive, false},
			{AccountAvailable, AccountFrozen, false},
			{AccountQuarantine, AccountActive, false},
			{AccountFrozen, AccountAvailable, false},
		}
		for _, transition := range flow {
			if got := transition.from.CanMoveTo(transition.to); got != transition.want {
				t.Errorf("CanMoveTo(%s -> %s) = %v, want %v",
					transition.from, transition.to, got, transition.want)
			}
		}
	})
}

func TestAccountValidate(t *testing.T) {
	valid := func() *Account {
		return &Account{
			AWSAccountID: "111122223333",
			Status:       AccountAvailable,
		}
	}

	if err := valid().Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}

	t.Run("with_cleanup_context", func(t *testing.T) {
		account := valid()
		account.CleanupExecutionContext = &CleanupExecution{
			ExecutionID:        "exec-42",
			ExecutionStartTime: time.Date(2026, time.March, 1, 6, 0, 0, 0, time.UTC),
		}
		if err := account.Validate(); err != nil {
			t.Errorf("Validate() = %v, want nil", err)
		}
	})

	tests := []struct {
		name    string
		mutate  func(*Account)
		wantErr string
	}{
		{"missing_id", func(a *Account) { a.AWSAccountID = "" }, "awsAccountId is required"},
		{"short_id", func(a *Account) { a.AWSAccountID = "12345" }, "malformed awsAccountId"},
		{"alpha_id", func(a *Account) { a.AWSAccountID = "11112222333x" }, "malformed awsAccountId"},
		{"unknown_status", func(a *Account) { a.Status = "Parked" }, "unknown status"},
		{
			"cleanup_context_missing_id",
			func(a *Account) {
				a.CleanupExecutionContext = &CleanupExecution{
					ExecutionStartTime: time.Now(),
				}
			},
			"executionId is required",
		},
		{
			"cleanup_context_missing_start",
			func(a *Account) {
				a.CleanupExecutionContext = &CleanupExecution{ExecutionID: "exec-1"}
			},
			"executionStartTime is required",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			account := valid()
			test.mutate(account)
			err := account.Validate()
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", test.wantErr)
			}
			if !strings.Contains(err.Error(), test.wantErr) {
				t.Errorf("Validate() = %q, want error containing %q", err, test.wantErr)
			}
		})
	}
}
