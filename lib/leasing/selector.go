// Copyright 2026 The Sandpool Authors
// SPDX-License-Identifier: Apache-2.0

package leasing

import (
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/sandpool-project/sandpool/lib/clock"
	"github.com/sandpool-project/sandpool/lib/schema"
)

// DefaultCooldown is how long after a cleanup run an account's cost
// meter is considered unsettled. Accounts cleaned more recently than
// this are only selected when nothing better is available.
const DefaultCooldown = 24 * time.Hour

// Selector picks an account from the Available pool, spreading load
// to reduce cost-attribution bleed between consecutive leases.
//
// The cooldown is soft: a pool where every account was cleaned
// recently still yields an account (with a warning about imprecise
// cost data) rather than blocking lease approval.
type Selector struct {
	clock    clock.Clock
	rand     *rand.Rand
	cooldown time.Duration
	logger   *slog.Logger
}

// NewSelector creates a selector with the default cooldown. A nil
// source seeds a PCG generator from the clock; tests inject a seeded
// source for deterministic selection.
func NewSelector(clk clock.Clock, source rand.Source, logger *slog.Logger) *Selector {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if source == nil {
		now := clk.Now()
		source = rand.NewPCG(uint64(now.UnixNano()), uint64(now.Unix()))
	}
	return &Selector{
		clock:    clk,
		rand:     rand.New(source),
		cooldown: DefaultCooldown,
		logger:   logger,
	}
}

// Acquire selects one account from candidates, uniformly at random
// from those outside the cleanup cooldown when any exist, otherwise
// uniformly at random from the rest. Fails with NoAccountsAvailable
// only when candidates is empty, never because of the cooldown.
func (s *Selector) Acquire(candidates []*schema.Account) (*schema.Account, error) {
	if len(candidates) == 0 {
		return nil, newError(KindNoAccountsAvailable, "no accounts in the Available pool")
	}

	cutoff := s.clock.Now().Add(-s.cooldown)

	var preferred, fallback []*schema.Account
	for _, account := range candidates {
		execution := account.CleanupExecutionContext
		if execution == nil || execution.ExecutionStartTime.Before(cutoff) {
			preferred = append(preferred, account)
			continue
		}
		fallback = append(fallback, account)
	}

	if len(preferred) > 0 {
		return preferred[s.rand.IntN(len(preferred))], nil
	}

	selected := fallback[s.rand.IntN(len(fallback))]
	s.logger.Warn("all available accounts are within the cleanup cooldown, cost data may be imprecise",
		"aws_account_id", selected.AWSAccountID,
		"cooldown", s.cooldown,
	)
	return selected, nil
}
