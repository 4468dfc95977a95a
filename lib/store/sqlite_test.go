// Copyright 2026 The Sandpool Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sandpool-project/sandpool/lib/schema"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{Path: filepath.Join(t.TempDir(), "store.db"), PoolSize: 1})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return s
}

func testLease(userEmail, uuid string) *schema.Lease {
	return &schema.Lease{
		UserEmail:                 userEmail,
		UUID:                      uuid,
		Status:                    schema.LeasePendingApproval,
		OriginalLeaseTemplateUUID: "template-1",
		OriginalLeaseTemplateName: "Sandbox",
	}
}

func TestLeaseCRUD(t *testing.T) {
	ctx := context.Background()
	leases := openTestStore(t).Leases()

	lease := testLease("dev@example.com", "lease-1")
	maxSpend := decimal.RequireFromString("250.00")
	lease.MaxSpend = &maxSpend
	lease.BudgetThresholds = []schema.BudgetThreshold{
		{AmountSpent: decimal.RequireFromString("200"), Action: schema.ThresholdFreeze},
	}

	if err := leases.Create(ctx, lease); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if lease.Version != 1 {
		t.Errorf("Version after Create = %d, want 1", lease.Version)
	}

	loaded, err := leases.Get(ctx, lease.Key())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if loaded.OriginalLeaseTemplateName != "Sandbox" {
		t.Errorf("template name = %q, want %q", loaded.OriginalLeaseTemplateName, "Sandbox")
	}
	if loaded.MaxSpend == nil || !loaded.MaxSpend.Equal(maxSpend) {
		t.Errorf("maxSpend = %v, want %s", loaded.MaxSpend, maxSpend)
	}
	if len(loaded.BudgetThresholds) != 1 || loaded.BudgetThresholds[0].Action != schema.ThresholdFreeze {
		t.Errorf("budget thresholds did not round-trip: %+v", loaded.BudgetThresholds)
	}

	loaded.Status = schema.LeaseApprovalDenied
	result, err := leases.Update(ctx, loaded)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if result.NewItem.Version != 2 {
		t.Errorf("NewItem.Version = %d, want 2", result.NewItem.Version)
	}
	if result.OldItem.Status != schema.LeasePendingApproval {
		t.Errorf("OldItem.Status = %s, want %s", result.OldItem.Status, schema.LeasePendingApproval)
	}

	if err := leases.Delete(ctx, lease.Key()); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := leases.Get(ctx, lease.Key()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Delete = %v, want ErrNotFound", err)
	}
}

func TestLeaseCreateDuplicate(t *testing.T) {
	ctx := context.Background()
	leases := openTestStore(t).Leases()

	if err := leases.Create(ctx, testLease("dev@example.com", "lease-1")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	err := leases.Create(ctx, testLease("dev@example.com", "lease-1"))
	if !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("duplicate Create = %v, want ErrAlreadyExists", err)
	}
}

func TestLeaseUpdateVersionConflict(t *testing.T) {
	ctx := context.Background()
	leases := openTestStore(t).Leases()

	lease := testLease("dev@example.com", "lease-1")
	if err := leases.Create(ctx, lease); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Two readers load version 1; the first update wins, the second
	// must fail with a version conflict.
	first, err := leases.Get(ctx, lease.Key())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	second, err := leases.Get(ctx, lease.Key())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	first.Comments = "first writer"
	if _, err := leases.Update(ctx, first); err != nil {
		t.Fatalf("first Update: %v", err)
	}

	second.Comments = "second writer"
	_, err = leases.Update(ctx, second)
	if !errors.Is(err, ErrVersionConflict) {
		t.Errorf("stale Update = %v, want ErrVersionConflict", err)
	}
}

func TestLeaseUpdateMissing(t *testing.T) {
	ctx := context.Background()
	leases := openTestStore(t).Leases()

	ghost := testLease("dev@example.com", "never-created")
	ghost.Version = 1
	if _, err := leases.Update(ctx, ghost); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update of missing lease = %v, want ErrNotFound", err)
	}
}

func TestLeaseListFilters(t *testing.T) {
	ctx := context.Background()
	leases := openTestStore(t).Leases()

	seed := []*schema.Lease{
		testLease("alice@example.com", "lease-a1"),
		testLease("alice@example.com", "lease-a2"),
		testLease("bob@example.com", "lease-b1"),
	}
	seed[1].Status = schema.LeaseActive
	seed[1].AWSAccountID = "111122223333"
	seed[2].Status = schema.LeaseFrozen
	seed[2].AWSAccountID = "111122223333"
	for _, lease := range seed {
		if err := leases.Create(ctx, lease); err != nil {
			t.Fatalf("Create(%s): %v", lease.UUID, err)
		}
	}

	byUser, err := leases.ListByUser(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(byUser) != 2 {
		t.Errorf("ListByUser returned %d leases, want 2", len(byUser))
	}

	monitored, err := leases.ListByStatus(ctx, schema.MonitoredLeaseStatuses()...)
	if err != nil {
		t.Fatalf("ListByStatus: %v", err)
	}
	if len(monitored) != 2 {
		t.Errorf("ListByStatus(monitored) returned %d leases, want 2", len(monitored))
	}

	holders, err := leases.ListByStatusAndAccount(ctx, "111122223333", schema.LeaseFrozen)
	if err != nil {
		t.Fatalf("ListByStatusAndAccount: %v", err)
	}
	if len(holders) != 1 || holders[0].UUID != "lease-b1" {
		t.Errorf("ListByStatusAndAccount = %+v, want only lease-b1", holders)
	}

	none, err := leases.ListByStatus(ctx)
	if err != nil {
		t.Fatalf("ListByStatus with no statuses: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("ListByStatus() returned %d leases, want 0", len(none))
	}
}

func TestLeasePurgeExpired(t *testing.T) {
	ctx := context.Background()
	leases := openTestStore(t).Leases()
	now := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)

	expired := testLease("alice@example.com", "lease-old")
	expired.Status = schema.LeaseExpired
	expired.TTL = now.Add(-time.Hour).Unix()
	fresh := testLease("alice@example.com", "lease-new")
	fresh.Status = schema.LeaseExpired
	fresh.TTL = now.Add(time.Hour).Unix()
	unstamped := testLease("alice@example.com", "lease-live")

	for _, lease := range []*schema.Lease{expired, fresh, unstamped} {
		if err := leases.Create(ctx, lease); err != nil {
			t.Fatalf("Create(%s): %v", lease.UUID, err)
		}
	}

	removed, err := leases.PurgeExpired(ctx, now)
	if err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if removed != 1 {
		t.Errorf("PurgeExpired removed %d, want 1", removed)
	}
	if _, err := leases.Get(ctx, expired.Key()); !errors.Is(err, ErrNotFound) {
		t.Errorf("expired lease still present: %v", err)
	}
	if _, err := leases.Get(ctx, fresh.Key()); err != nil {
		t.Errorf("fresh lease purged: %v", err)
	}
}

func TestAccountCRUD(t *testing.T) {
	ctx := context.Background()
	accounts := openTestStore(t).Accounts()

	account := &schema.Account{
		AWSAccountID: "111122223333",
		Status:       schema.AccountEntry,
		Email:        "pool+1@example.com",
	}
	if err := accounts.Create(ctx, account); err != nil {
		t.Fatalf("Create: %v", err)
	}

	loaded, err := accounts.Get(ctx, account.AWSAccountID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	loaded.Status = schema.AccountCleanUp
	loaded.CleanupExecutionContext = &schema.CleanupExecution{
		ExecutionID:        "exec-7",
		ExecutionStartTime: time.Date(2026, time.June, 1, 3, 0, 0, 0, time.UTC),
	}
	result, err := accounts.Update(ctx, loaded)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if result.OldItem.Status != schema.AccountEntry || result.NewItem.Status != schema.AccountCleanUp {
		t.Errorf("update result statuses = %s -> %s", result.OldItem.Status, result.NewItem.Status)
	}

	reloaded, err := accounts.Get(ctx, account.AWSAccountID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if reloaded.CleanupExecutionContext == nil || reloaded.CleanupExecutionContext.ExecutionID != "exec-7" {
		t.Errorf("cleanup context did not round-trip: %+v", reloaded.CleanupExecutionContext)
	}

	available, err := accounts.ListByStatus(ctx, schema.AccountAvailable)
	if err != nil {
		t.Fatalf("ListByStatus: %v", err)
	}
	if len(available) != 0 {
		t.Errorf("ListByStatus(Available) = %d accounts, want 0", len(available))
	}

	if err := accounts.Delete(ctx, account.AWSAccountID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := accounts.Delete(ctx, account.AWSAccountID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete = %v, want ErrNotFound", err)
	}
}

func TestAccountUpdateVersionConflict(t *testing.T) {
	ctx := context.Background()
	accounts := openTestStore(t).Accounts()

	account := &schema.Account{AWSAccountID: "111122223333", Status: schema.AccountAvailable}
	if err := accounts.Create(ctx, account); err != nil {
		t.Fatalf("Create: %v", err)
	}

	stale := *account
	account.Status = schema.AccountActive
	if _, err := accounts.Update(ctx, account); err != nil {
		t.Fatalf("Update: %v", err)
	}

	stale.Status = schema.AccountQuarantine
	if _, err := accounts.Update(ctx, &stale); !errors.Is(err, ErrVersionConflict) {
		t.Errorf("stale Update = %v, want ErrVersionConflict", err)
	}
}

func TestTemplateCRUD(t *testing.T) {
	ctx := context.Background()
	templates := openTestStore(t).Templates()

	template := &schema.LeaseTemplate{
		UUID:                 "template-1",
		Name:                 "Short experiment",
		RequiresApproval:     true,
		LeaseDurationInHours: 72,
	}
	if err := templates.Create(ctx, template); err != nil {
		t.Fatalf("Create: %v", err)
	}

	loaded, err := templates.Get(ctx, template.UUID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !loaded.RequiresApproval || loaded.LeaseDurationInHours != 72 {
		t.Errorf("template did not round-trip: %+v", loaded)
	}

	loaded.Name = "Long experiment"
	if _, err := templates.Update(ctx, loaded); err != nil {
		t.Fatalf("Update: %v", err)
	}

	all, err := templates.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 1 || all[0].Name != "Long experiment" {
		t.Errorf("List = %+v, want the renamed template", all)
	}

	if err := templates.Delete(ctx, template.UUID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := templates.Get(ctx, template.UUID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Delete = %v, want ErrNotFound", err)
	}
}
