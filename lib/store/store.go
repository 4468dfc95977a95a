// Copyright 2026 The Sandpool Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"errors"
	"time"

	"github.com/sandpool-project/sandpool/lib/schema"
)

// Sentinel errors returned by store implementations. Callers test
// with errors.Is.
var (
	// ErrNotFound is returned by Get, Update, and Delete when no
	// record has the given key. For Update this signals "unknown
	// item": the caller's record was deleted out from under it.
	ErrNotFound = errors.New("store: record not found")

	// ErrAlreadyExists is returned by Create when the key is taken.
	ErrAlreadyExists = errors.New("store: record already exists")

	// ErrVersionConflict is returned by Update when the caller's
	// record version is stale; a concurrent writer got there first.
	// The caller must re-read and re-validate before retrying.
	ErrVersionConflict = errors.New("store: version conflict")
)

// PutResult reports both sides of a successful update so that saga
// steps can compensate by restoring OldItem.
type PutResult[T any] struct {
	// NewItem is the record as persisted, version already bumped.
	NewItem *T

	// OldItem is the record as it was before the update.
	OldItem *T
}

// LeaseStore persists lease records keyed by (userEmail, uuid).
type LeaseStore interface {
	// Get returns the lease or ErrNotFound.
	Get(ctx context.Context, key schema.LeaseKey) (*schema.Lease, error)

	// Create inserts a new lease, stamping lease.Version to 1. Fails
	// with ErrAlreadyExists if the key is taken.
	Create(ctx context.Context, lease *schema.Lease) error

	// Update overwrites the lease if lease.Version matches the stored
	// version, bumping the version by one. Fails with ErrNotFound or
	// ErrVersionConflict.
	Update(ctx context.Context, lease *schema.Lease) (*PutResult[schema.Lease], error)

	// Delete removes the lease. Fails with ErrNotFound.
	Delete(ctx context.Context, key schema.LeaseKey) error

	// ListByUser returns every lease belonging to the user, in
	// unspecified order.
	ListByUser(ctx context.Context, userEmail string) ([]*schema.Lease, error)

	// ListByStatus returns every lease whose status is in statuses.
	ListByStatus(ctx context.Context, statuses ...schema.LeaseStatus) ([]*schema.Lease, error)

	// ListByStatusAndAccount returns every lease referencing the
	// account whose status is in statuses. With the monitored
	// statuses this yields at most one lease when the single-holder
	// invariant is intact.
	ListByStatusAndAccount(ctx context.Context, awsAccountID string, statuses ...schema.LeaseStatus) ([]*schema.Lease, error)

	// PurgeExpired deletes terminal leases whose TTL stamp is at or
	// before now. Returns the number of records removed.
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

// AccountStore persists pooled account records keyed by AWS account
// ID.
type AccountStore interface {
	// Get returns the account or ErrNotFound.
	Get(ctx context.Context, awsAccountID string) (*schema.Account, error)

	// Create inserts a new account, stamping account.Version to 1.
	// Fails with ErrAlreadyExists if the ID is taken.
	Create(ctx context.Context, account *schema.Account) error

	// Update overwrites the account if account.Version matches the
	// stored version, bumping the version by one. Fails with
	// ErrNotFound or ErrVersionConflict.
	Update(ctx context.Context, account *schema.Account) (*PutResult[schema.Account], error)

	// Delete removes the account. Fails with ErrNotFound.
	Delete(ctx context.Context, awsAccountID string) error

	// ListByStatus returns every account whose status is in statuses.
	ListByStatus(ctx context.Context, statuses ...schema.AccountStatus) ([]*schema.Account, error)
}

// TemplateStore persists lease templates keyed by UUID.
type TemplateStore interface {
	// Get returns the template or ErrNotFound.
	Get(ctx context.Context, uuid string) (*schema.LeaseTemplate, error)

	// Create inserts a new template, stamping template.Version to 1.
	// Fails with ErrAlreadyExists if the UUID is taken.
	Create(ctx context.Context, template *schema.LeaseTemplate) error

	// Update overwrites the template if template.Version matches the
	// stored version. Fails with ErrNotFound or ErrVersionConflict.
	Update(ctx context.Context, template *schema.LeaseTemplate) (*PutResult[schema.LeaseTemplate], error)

	// Delete removes the template. Fails with ErrNotFound.
	Delete(ctx context.Context, uuid string) error

	// List returns every template, in unspecified order.
	List(ctx context.Context) ([]*schema.LeaseTemplate, error)
}
