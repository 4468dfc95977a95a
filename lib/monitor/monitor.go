// Copyright 2026 The Sandpool Authors
// SPDX-License-Identifier: Apache-2.0

// Package monitor sweeps monitored leases on an interval, pulling
// accrued cost from a cost source and driving threshold actions
// through the orchestrator: Alert thresholds publish a LeaseAlert
// event, Freeze thresholds freeze the lease, and crossing the budget
// cap or the expiration date terminates it.
//
// The monitor computes whether a threshold has been crossed; the
// transitions themselves go through the same facade operations manual
// actions use, so every state change carries the same saga guarantees.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sandpool-project/sandpool/lib/clock"
	"github.com/sandpool-project/sandpool/lib/schema"
	"github.com/sandpool-project/sandpool/lib/store"
)

// DefaultInterval is the sweep cadence.
const DefaultInterval = 5 * time.Minute

// DefaultCostFailureLimit is the number of consecutive failed cost
// lookups for one lease before the monitor freezes it rather than let
// spend run unmetered.
const DefaultCostFailureLimit = 3

// CostSource reports accrued cost per account. Backed by Cost
// Explorer in production.
type CostSource interface {
	// AccountCost returns the total unblended cost accrued by the
	// account between start and end.
	AccountCost(ctx context.Context, awsAccountID string, start, end time.Time) (decimal.Decimal, error)
}

// LeaseActions is the slice of the orchestrator the monitor drives.
type LeaseActions interface {
	FreezeLease(ctx context.Context, key schema.LeaseKey, reason string) (*schema.Lease, error)
	TerminateLease(ctx context.Context, key schema.LeaseKey, final schema.LeaseStatus) (*schema.Lease, error)
}

// LeaseSource is the slice of the lease store the monitor reads and
// stamps. Satisfied by store.LeaseStore.
type LeaseSource interface {
	ListByStatus(ctx context.Context, statuses ...schema.LeaseStatus) ([]*schema.Lease, error)
	Update(ctx context.Context, lease *schema.Lease) (*store.PutResult[schema.Lease], error)
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

// EventPublisher publishes LeaseAlert events.
type EventPublisher interface {
	Publish(ctx context.Context, events ...schema.Event) error
}

// Config carries the monitor's collaborators.
type Config struct {
	Leases  LeaseSource
	Actions LeaseActions
	Costs   CostSource
	Events  EventPublisher

	// Interval defaults to DefaultInterval.
	Interval time.Duration

	// CostFailureLimit defaults to DefaultCostFailureLimit.
	CostFailureLimit int

	// Clock defaults to the real clock.
	Clock clock.Clock

	// Logger defaults to discard.
	Logger *slog.Logger
}

// Monitor is the threshold sweeper. Create with New, drive with Run.
// Not safe for concurrent sweeps; Run drives it from one goroutine.
type Monitor struct {
	leases           LeaseSource
	actions          LeaseActions
	costs            CostSource
	events           EventPublisher
	interval         time.Duration
	costFailureLimit int
	clock            clock.Clock
	logger           *slog.Logger

	// costFailures counts consecutive failed cost lookups per lease
	// key. Cleared on the next successful lookup.
	costFailures map[string]int
}

// New builds a Monitor from cfg, applying defaults for Interval,
// Clock, and Logger.
func New(cfg Config) (*Monitor, error) {
	switch {
	case cfg.Leases == nil:
		return nil, fmt.Errorf("monitor: Config.Leases is required")
	case cfg.Actions == nil:
		return nil, fmt.Errorf("monitor: Config.Actions is required")
	case cfg.Costs == nil:
		return nil, fmt.Errorf("monitor: Config.Costs is required")
	case cfg.Events == nil:
		return nil, fmt.Errorf("monitor: Config.Events is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.CostFailureLimit <= 0 {
		cfg.CostFailureLimit = DefaultCostFailureLimit
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Monitor{
		leases:           cfg.Leases,
		actions:          cfg.Actions,
		costs:            cfg.Costs,
		events:           cfg.Events,
		interval:         cfg.Interval,
		costFailureLimit: cfg.CostFailureLimit,
		clock:            cfg.Clock,
		logger:           cfg.Logger,
		costFailures:     make(map[string]int),
	}, nil
}

// Run sweeps immediately, then on every interval tick until ctx is
// canceled. Always returns ctx.Err().
func (m *Monitor) Run(ctx context.Context) error {
	m.Sweep(ctx)
	ticker := m.clock.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Sweep evaluates every Active and Frozen lease once and purges
// expired terminal records. Per-lease failures are logged and skipped
// so one broken lease cannot starve the rest of the pool.
func (m *Monitor) Sweep(ctx context.Context) {
	now := m.clock.Now()
	leases, err := m.leases.ListByStatus(ctx, schema.LeaseActive, schema.LeaseFrozen)
	if err != nil {
		m.logger.Error("listing monitored leases", "error", err)
		return
	}
	for _, lease := range leases {
		if err := m.check(ctx, lease, now); err != nil {
			m.logger.Error("checking lease", "lease", lease.Key().String(), "error", err)
		}
	}

	purged, err := m.leases.PurgeExpired(ctx, now)
	if err != nil {
		m.logger.Error("purging expired lease records", "error", err)
	} else if purged > 0 {
		m.logger.Info("purged expired lease records", "count", purged)
	}
}

// check evaluates one lease: refresh accrued cost, stamp the check
// date, then apply at most one transition in severity order (budget
// cap, expiration, Freeze threshold) plus any newly crossed alerts.
func (m *Monitor) check(ctx context.Context, lease *schema.Lease, now time.Time) error {
	previous := lease.TotalCostAccrued
	previousChecked := lease.StartDate
	if lease.LastCheckedDate != nil {
		previousChecked = lease.LastCheckedDate
	}

	if lease.StartDate != nil && lease.AWSAccountID != "" {
		cost, err := m.costs.AccountCost(ctx, lease.AWSAccountID, *lease.StartDate, now)
		if err != nil {
			return m.costFetchFailed(ctx, lease, err)
		}
		delete(m.costFailures, lease.Key().String())
		// Monotonic: a cost source returning a lower figure (late
		// records dropping out of the window) never winds the meter
		// back.
		if cost.GreaterThan(lease.TotalCostAccrued) {
			lease.TotalCostAccrued = cost
		}
	}

	lease.LastCheckedDate = &now
	result, err := m.leases.Update(ctx, lease)
	if err != nil {
		// A version conflict means some operation transitioned the
		// lease mid-sweep; the next sweep sees the fresh record.
		return fmt.Errorf("stamping check: %w", err)
	}
	lease = result.NewItem

	if lease.MaxSpend != nil && lease.TotalCostAccrued.GreaterThanOrEqual(*lease.MaxSpend) {
		_, err := m.actions.TerminateLease(ctx, lease.Key(), schema.LeaseBudgetExceeded)
		return err
	}
	if lease.ExpirationDate != nil && !now.Before(*lease.ExpirationDate) {
		_, err := m.actions.TerminateLease(ctx, lease.Key(), schema.LeaseExpired)
		return err
	}

	var alerts []schema.Event
	freeze := ""

	for _, threshold := range lease.BudgetThresholds {
		crossed := previous.LessThan(threshold.AmountSpent) &&
			lease.TotalCostAccrued.GreaterThanOrEqual(threshold.AmountSpent)
		if !crossed {
			continue
		}
		switch threshold.Action {
		case schema.ThresholdAlert:
			alerts = append(alerts, schema.LeaseAlert{
				Lease:     lease.Key(),
				Kind:      "budget",
				Threshold: threshold.AmountSpent.String(),
			})
		case schema.ThresholdFreeze:
			freeze = fmt.Sprintf("budget threshold %s reached", threshold.AmountSpent)
		}
	}

	if previousChecked != nil && lease.ExpirationDate != nil {
		remaining := lease.ExpirationDate.Sub(now).Hours()
		lastRemaining := lease.ExpirationDate.Sub(*previousChecked).Hours()
		for _, threshold := range lease.DurationThresholds {
			crossed := remaining <= threshold.HoursRemaining &&
				lastRemaining > threshold.HoursRemaining
			if !crossed {
				continue
			}
			switch threshold.Action {
			case schema.ThresholdAlert:
				alerts = append(alerts, schema.LeaseAlert{
					Lease:     lease.Key(),
					Kind:      "duration",
					Threshold: fmt.Sprintf("%gh", threshold.HoursRemaining),
				})
			case schema.ThresholdFreeze:
				freeze = fmt.Sprintf("%g hours remaining", threshold.HoursRemaining)
			}
		}
	}

	if len(alerts) > 0 {
		if err := m.events.Publish(ctx, alerts...); err != nil {
			m.logger.Error("publishing lease alerts", "lease", lease.Key().String(), "error", err)
		}
	}
	if freeze != "" && lease.Status == schema.LeaseActive {
		if _, err := m.actions.FreezeLease(ctx, lease.Key(), freeze); err != nil {
			return fmt.Errorf("freezing: %w", err)
		}
	}
	return nil
}

// costFetchFailed counts a consecutive cost-lookup failure. Once the
// limit is reached on an Active lease it is frozen, so spend cannot
// run unmetered while the cost source is down. The fetch error is
// returned either way.
func (m *Monitor) costFetchFailed(ctx context.Context, lease *schema.Lease, cause error) error {
	key := lease.Key().String()
	m.costFailures[key]++
	failures := m.costFailures[key]
	if failures >= m.costFailureLimit && lease.Status == schema.LeaseActive {
		delete(m.costFailures, key)
		reason := fmt.Sprintf("cost source unavailable for %d consecutive sweeps", failures)
		if _, err := m.actions.FreezeLease(ctx, lease.Key(), reason); err != nil {
			return fmt.Errorf("freezing after %d failed cost lookups: %w", failures, err)
		}
		m.logger.Warn("froze lease after repeated cost lookup failures",
			"lease", key,
			"failures", failures,
			"error", cause,
		)
	}
	return fmt.Errorf("fetching cost for %s: %w", lease.AWSAccountID, cause)
}
