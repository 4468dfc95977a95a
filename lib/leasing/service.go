// Copyright 2026 The Sandpool Authors
// SPDX-License-Identifier: Apache-2.0

package leasing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sandpool-project/sandpool/lib/clock"
	"github.com/sandpool-project/sandpool/lib/saga"
	"github.com/sandpool-project/sandpool/lib/schema"
	"github.com/sandpool-project/sandpool/lib/store"
)

// DefaultMaxLeasesPerUser bounds the number of leases a user may hold
// in a quota-counting status at once.
const DefaultMaxLeasesPerUser = 3

// terminalRetention is how long a terminal lease record is kept before
// the store's retention sweep removes it.
const terminalRetention = 30 * 24 * time.Hour

// AutoApproved is recorded as the approver for leases from templates
// that require no approval.
const AutoApproved = "AUTO_APPROVED"

// Config carries the collaborators for a Service. Leases, Accounts,
// Templates, Mover, Access, and Events are required; Blueprints may be
// nil when no template carries a blueprint.
type Config struct {
	Leases    store.LeaseStore
	Accounts  store.AccountStore
	Templates store.TemplateStore

	Mover      OUMover
	Access     AccessGranter
	Events     EventPublisher
	Blueprints BlueprintService

	// Selector picks accounts from the Available pool. Defaults to
	// NewSelector with the real clock.
	Selector *Selector

	// Clock defaults to the real clock.
	Clock clock.Clock

	// Logger defaults to discard.
	Logger *slog.Logger

	// MaxLeasesPerUser defaults to DefaultMaxLeasesPerUser.
	MaxLeasesPerUser int
}

// Service is the lease/account lifecycle orchestrator. It is stateless
// apart from its collaborators and safe for concurrent use; racing
// operations are arbitrated by the store's record versions and the
// mover's placement checks, not by in-process locking.
type Service struct {
	leases    store.LeaseStore
	accounts  store.AccountStore
	templates store.TemplateStore

	mover      OUMover
	access     AccessGranter
	events     EventPublisher
	blueprints BlueprintService

	selector *Selector
	clock    clock.Clock
	logger   *slog.Logger
	maxPer   int
}

// New builds a Service from cfg, applying defaults for Selector,
// Clock, Logger, and MaxLeasesPerUser.
func New(cfg Config) (*Service, error) {
	switch {
	case cfg.Leases == nil:
		return nil, errors.New("leasing: Config.Leases is required")
	case cfg.Accounts == nil:
		return nil, errors.New("leasing: Config.Accounts is required")
	case cfg.Templates == nil:
		return nil, errors.New("leasing: Config.Templates is required")
	case cfg.Mover == nil:
		return nil, errors.New("leasing: Config.Mover is required")
	case cfg.Access == nil:
		return nil, errors.New("leasing: Config.Access is required")
	case cfg.Events == nil:
		return nil, errors.New("leasing: Config.Events is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Selector == nil {
		cfg.Selector = NewSelector(cfg.Clock, nil, cfg.Logger)
	}
	if cfg.MaxLeasesPerUser <= 0 {
		cfg.MaxLeasesPerUser = DefaultMaxLeasesPerUser
	}
	return &Service{
		leases:     cfg.Leases,
		accounts:   cfg.Accounts,
		templates:  cfg.Templates,
		mover:      cfg.Mover,
		access:     cfg.Access,
		events:     cfg.Events,
		blueprints: cfg.Blueprints,
		selector:   cfg.Selector,
		clock:      cfg.Clock,
		logger:     cfg.Logger,
		maxPer:     cfg.MaxLeasesPerUser,
	}, nil
}

// run wraps every public operation: execute, log on error, propagate
// unchanged.
func run[T any](ctx context.Context, s *Service, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	result, err := fn(ctx)
	if err != nil {
		s.logger.Error("operation failed", "operation", op, "error", err)
	}
	return result, err
}

// publish delivers events best-effort. Events are advisory: a publish
// failure is logged and never fails the operation that raised it.
func (s *Service) publish(ctx context.Context, events ...schema.Event) {
	if len(events) == 0 {
		return
	}
	if err := s.events.Publish(ctx, events...); err != nil {
		s.logger.Error("event publish failed", "count", len(events), "error", err)
	}
}

// getAccount fetches a fresh account record, mapping a missing record
// to CouldNotFindAccount.
func (s *Service) getAccount(ctx context.Context, awsAccountID string) (*schema.Account, error) {
	account, err := s.accounts.Get(ctx, awsAccountID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, newError(KindCouldNotFindAccount, "no account record for %s", awsAccountID)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching account %s: %w", awsAccountID, err)
	}
	return account, nil
}

// getUser resolves the lease's user, mapping an absent identity to
// CouldNotRetrieveUser.
func (s *Service) getUser(ctx context.Context, email string) (*schema.User, error) {
	user, err := s.access.GetUserFromEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("resolving user %s: %w", email, err)
	}
	if user == nil {
		return nil, newError(KindCouldNotRetrieveUser, "no identity-store user for %s", email)
	}
	return user, nil
}

// updateLeaseStep builds the saga step that persists *lease. On
// commit, *lease is replaced with the stored record (version bumped).
// The rollback restores the prior content at the bumped version, so a
// compensated record is structurally old but version-wise newer, and
// any concurrent writer that read mid-saga still loses its update.
func (s *Service) updateLeaseStep(name string, lease **schema.Lease) saga.Step {
	var put *store.PutResult[schema.Lease]
	return saga.Step{
		Name: name,
		Commit: func(ctx context.Context) error {
			result, err := s.leases.Update(ctx, *lease)
			if err != nil {
				return err
			}
			put = result
			*lease = result.NewItem
			return nil
		},
		Rollback: func(ctx context.Context) error {
			restored := *put.OldItem
			restored.Version = put.NewItem.Version
			_, err := s.leases.Update(ctx, &restored)
			return err
		},
	}
}

// updateAccountStep is updateLeaseStep for account records.
func (s *Service) updateAccountStep(name string, account **schema.Account) saga.Step {
	var put *store.PutResult[schema.Account]
	return saga.Step{
		Name: name,
		Commit: func(ctx context.Context) error {
			result, err := s.accounts.Update(ctx, *account)
			if err != nil {
				return err
			}
			put = result
			*account = result.NewItem
			return nil
		},
		Rollback: func(ctx context.Context) error {
			restored := *put.OldItem
			restored.Version = put.NewItem.Version
			_, err := s.accounts.Update(ctx, &restored)
			return err
		},
	}
}

// moveAccountStep builds the saga step that moves an account between
// placements. On commit, *account is replaced with the mover's updated
// copy (still unpersisted; pair with updateAccountStep). The rollback
// is an unverified reverse move.
func (s *Service) moveAccountStep(name string, account **schema.Account, expected, target schema.AccountStatus) saga.Step {
	return saga.Step{
		Name: name,
		Commit: func(ctx context.Context) error {
			moved, err := s.mover.Move(ctx, *account, expected, target)
			if err != nil {
				return err
			}
			*account = moved
			return nil
		},
		Rollback: func(ctx context.Context) error {
			return s.mover.PerformMove(ctx, (*account).AWSAccountID, target, expected)
		},
	}
}

// stampTerminal marks the lease terminal: final status, end date, and
// the retention TTL consumed by the store's expiry sweep.
func (s *Service) stampTerminal(lease *schema.Lease, final schema.LeaseStatus) {
	now := s.clock.Now()
	lease.Status = final
	lease.EndDate = &now
	lease.TTL = now.Add(terminalRetention).Unix()
}

// activate marks the lease running: Active status, start date, and the
// expiration date derived from the lease duration. Unbounded leases
// get no expiration date.
func (s *Service) activate(lease *schema.Lease) {
	now := s.clock.Now()
	lease.Status = schema.LeaseActive
	lease.StartDate = &now
	if lease.LeaseDurationInHours > 0 {
		expiration := now.Add(time.Duration(lease.LeaseDurationInHours * float64(time.Hour)))
		lease.ExpirationDate = &expiration
	}
}
