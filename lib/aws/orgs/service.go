// Copyright 2026 The Sandpool Authors
// SPDX-License-Identifier: Apache-2.0

package orgs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/organizations"

	"github.com/sandpool-project/sandpool/lib/leasing"
	"github.com/sandpool-project/sandpool/lib/schema"
)

// Mover implements leasing.OUMover on top of AWS Organizations. Each
// account status maps to exactly one organizational unit.
type Mover struct {
	client API
	units  map[schema.AccountStatus]string
	logger *slog.Logger
}

// New builds a mover from an AWS config. The units map gives the OU ID
// backing each account status; every status an operation can move
// through must have an entry.
func New(cfg aws.Config, units map[schema.AccountStatus]string, logger *slog.Logger) *Mover {
	return NewWithClient(organizations.NewFromConfig(cfg), units, logger)
}

// NewWithClient builds a mover around an existing client. Tests use
// this with a fake.
func NewWithClient(client API, units map[schema.AccountStatus]string, logger *slog.Logger) *Mover {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Mover{client: client, units: units, logger: logger}
}

func (m *Mover) unit(status schema.AccountStatus) (string, error) {
	id, ok := m.units[status]
	if !ok {
		return "", fmt.Errorf("no organizational unit configured for status %s", status)
	}
	return id, nil
}

// statusOf is the reverse lookup, for reporting where a drifted
// account actually sits. Returns "" for an OU outside the pool.
func (m *Mover) statusOf(unitID string) schema.AccountStatus {
	for status, id := range m.units {
		if id == unitID {
			return status
		}
	}
	return ""
}

// Move verifies the account's parent OU matches expected, moves it to
// the target OU, and returns an unpersisted copy of the record with
// Status set to target.
func (m *Mover) Move(ctx context.Context, account *schema.Account, expected, target schema.AccountStatus) (*schema.Account, error) {
	expectedUnit, err := m.unit(expected)
	if err != nil {
		return nil, err
	}
	targetUnit, err := m.unit(target)
	if err != nil {
		return nil, err
	}

	parents, err := m.client.ListParents(ctx, &organizations.ListParentsInput{
		ChildId: aws.String(account.AWSAccountID),
	})
	if err != nil {
		return nil, fmt.Errorf("listing parents of account %s: %w", account.AWSAccountID, err)
	}
	if len(parents.Parents) == 0 {
		return nil, fmt.Errorf("account %s has no parent in the organization", account.AWSAccountID)
	}
	actualUnit := aws.ToString(parents.Parents[0].Id)
	if actualUnit != expectedUnit {
		return nil, &leasing.MovePreconditionError{
			AWSAccountID: account.AWSAccountID,
			Expected:     expected,
			Actual:       m.statusOf(actualUnit),
		}
	}

	_, err = m.client.MoveAccount(ctx, &organizations.MoveAccountInput{
		AccountId:           aws.String(account.AWSAccountID),
		SourceParentId:      aws.String(expectedUnit),
		DestinationParentId: aws.String(targetUnit),
	})
	if err != nil {
		return nil, fmt.Errorf("moving account %s from %s to %s: %w", account.AWSAccountID, expected, target, err)
	}
	m.logger.Info("moved account",
		"aws_account_id", account.AWSAccountID,
		"from", expected,
		"to", target)

	moved := *account
	moved.Status = target
	return &moved, nil
}

// PerformMove moves the account without verifying its current
// placement.
func (m *Mover) PerformMove(ctx context.Context, awsAccountID string, current, target schema.AccountStatus) error {
	currentUnit, err := m.unit(current)
	if err != nil {
		return err
	}
	targetUnit, err := m.unit(target)
	if err != nil {
		return err
	}
	_, err = m.client.MoveAccount(ctx, &organizations.MoveAccountInput{
		AccountId:           aws.String(awsAccountID),
		SourceParentId:      aws.String(currentUnit),
		DestinationParentId: aws.String(targetUnit),
	})
	if err != nil {
		return fmt.Errorf("moving account %s from %s to %s: %w", awsAccountID, current, target, err)
	}
	m.logger.Info("moved account",
		"aws_account_id", awsAccountID,
		"from", current,
		"to", target)
	return nil
}
