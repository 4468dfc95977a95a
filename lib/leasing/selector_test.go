// Copyright 2026 The Sandpool Authors
// SPDX-License-Identifier: Apache-2.0

package leasing

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/sandpool-project/sandpool/lib/clock"
	"github.com/sandpool-project/sandpool/lib/schema"
)

func testAccount(id string, cleanedAgo time.Duration, now time.Time) *schema.Account {
	account := &schema.Account{
		AWSAccountID: id,
		Status:       schema.AccountAvailable,
		Email:        "pool+" + id + "@example.com",
		Name:         "pool-" + id,
	}
	if cleanedAgo >= 0 {
		account.CleanupExecutionContext = &schema.CleanupExecution{
			ExecutionID:        "exec-" + id,
			ExecutionStartTime: now.Add(-cleanedAgo),
		}
	}
	return account
}

func newTestSelector(clk clock.Clock, seed uint64) *Selector {
	return NewSelector(clk, rand.NewPCG(seed, seed), nil)
}

func TestSelectorEmptyPool(t *testing.T) {
	selector := newTestSelector(clock.Fake(time.Unix(1700000000, 0)), 1)
	_, err := selector.Acquire(nil)
	if !IsKind(err, KindNoAccountsAvailable) {
		t.Fatalf("expected NoAccountsAvailable, got %v", err)
	}
}

func TestSelectorPrefersSettledAccounts(t *testing.T) {
	now := time.Unix(1700000000, 0)
	clk := clock.Fake(now)
	candidates := []*schema.Account{
		testAccount("111111111111", 2*time.Hour, now),
		testAccount("222222222222", 48*time.Hour, now),
		testAccount("333333333333", time.Hour, now),
	}
	for seed := uint64(1); seed <= 20; seed++ {
		selector := newTestSelector(clk, seed)
		account, err := selector.Acquire(candidates)
		if err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		if account.AWSAccountID != "222222222222" {
			t.Fatalf("seed %d: selected cooled-down account %s", seed, account.AWSAccountID)
		}
	}
}

func TestSelectorNeverCleanedIsPreferred(t *testing.T) {
	now := time.Unix(1700000000, 0)
	clk := clock.Fake(now)
	candidates := []*schema.Account{
		testAccount("111111111111", time.Hour, now),
		testAccount("444444444444", -1, now), // no cleanup context
	}
	for seed := uint64(1); seed <= 20; seed++ {
		account, err := newTestSelector(clk, seed).Acquire(candidates)
		if err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		if account.AWSAccountID != "444444444444" {
			t.Fatalf("seed %d: selected %s over the never-cleaned account", seed, account.AWSAccountID)
		}
	}
}

func TestSelectorFallsBackInsideCooldown(t *testing.T) {
	now := time.Unix(1700000000, 0)
	clk := clock.Fake(now)
	candidates := []*schema.Account{
		testAccount("111111111111", time.Hour, now),
		testAccount("222222222222", 2*time.Hour, now),
	}
	seen := map[string]bool{}
	for seed := uint64(1); seed <= 40; seed++ {
		account, err := newTestSelector(clk, seed).Acquire(candidates)
		if err != nil {
			t.Fatalf("seed %d: selection failed inside cooldown: %v", seed, err)
		}
		seen[account.AWSAccountID] = true
	}
	if len(seen) != 2 {
		t.Fatalf("fallback selection not uniform across seeds: %v", seen)
	}
}

func TestSelectorDeterministicWithSeededSource(t *testing.T) {
	now := time.Unix(1700000000, 0)
	clk := clock.Fake(now)
	candidates := []*schema.Account{
		testAccount("111111111111", 48*time.Hour, now),
		testAccount("222222222222", 48*time.Hour, now),
		testAccount("333333333333", -1, now),
	}
	first, err := newTestSelector(clk, 7).Acquire(candidates)
	if err != nil {
		t.Fatal(err)
	}
	second, err := newTestSelector(clk, 7).Acquire(candidates)
	if err != nil {
		t.Fatal(err)
	}
	if first.AWSAccountID != second.AWSAccountID {
		t.Fatalf("same seed selected %s then %s", first.AWSAccountID, second.AWSAccountID)
	}
}
