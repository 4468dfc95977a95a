// Copyright 2026 The Sandpool Authors
// SPDX-License-Identifier: Apache-2.0

package orgs

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	orgtypes "github.com/aws/aws-sdk-go-v2/service/organizations/types"

	"github.com/sandpool-project/sandpool/lib/leasing"
	"github.com/sandpool-project/sandpool/lib/schema"
)

type fakeOrgs struct {
	// parent holds each account's current OU ID.
	parent map[string]string
	moves  []organizations.MoveAccountInput
}

func (f *fakeOrgs) ListParents(ctx context.Context, input *organizations.ListParentsInput, opts ...func(*organizations.Options)) (*organizations.ListParentsOutput, error) {
	unit, ok := f.parent[aws.ToString(input.ChildId)]
	if !ok {
		return &organizations.ListParentsOutput{}, nil
	}
	return &organizations.ListParentsOutput{
		Parents: []orgtypes.Parent{{Id: aws.String(unit), Type: orgtypes.ParentTypeOrganizationalUnit}},
	}, nil
}

func (f *fakeOrgs) MoveAccount(ctx context.Context, input *organizations.MoveAccountInput, opts ...func(*organizations.Options)) (*organizations.MoveAccountOutput, error) {
	f.moves = append(f.moves, *input)
	f.parent[aws.ToString(input.AccountId)] = aws.ToString(input.DestinationParentId)
	return &organizations.MoveAccountOutput{}, nil
}

var testUnits = map[schema.AccountStatus]string{
	schema.AccountEntry:      "ou-entry",
	schema.AccountCleanUp:    "ou-cleanup",
	schema.AccountAvailable:  "ou-available",
	schema.AccountActive:     "ou-active",
	schema.AccountFrozen:     "ou-frozen",
	schema.AccountQuarantine: "ou-quarantine",
	schema.AccountExit:       "ou-exit",
}

func TestMove(t *testing.T) {
	client := &fakeOrgs{parent: map[string]string{"111122223333": "ou-available"}}
	mover := NewWithClient(client, testUnits, nil)

	account := &schema.Account{AWSAccountID: "111122223333", Status: schema.AccountAvailable}
	moved, err := mover.Move(context.Background(), account, schema.AccountAvailable, schema.AccountActive)
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if moved.Status != schema.AccountActive {
		t.Errorf("moved copy status = %s, want Active", moved.Status)
	}
	if account.Status != schema.AccountAvailable {
		t.Errorf("input account mutated to %s", account.Status)
	}
	if got := client.parent["111122223333"]; got != "ou-active" {
		t.Errorf("account in OU %s, want ou-active", got)
	}
}

func TestMovePreconditionFailure(t *testing.T) {
	client := &fakeOrgs{parent: map[string]string{"111122223333": "ou-quarantine"}}
	mover := NewWithClient(client, testUnits, nil)

	account := &schema.Account{AWSAccountID: "111122223333", Status: schema.AccountAvailable}
	_, err := mover.Move(context.Background(), account, schema.AccountAvailable, schema.AccountActive)
	var moveErr *leasing.MovePreconditionError
	if !errors.As(err, &moveErr) {
		t.Fatalf("Move returned %v, want MovePreconditionError", err)
	}
	if moveErr.Actual != schema.AccountQuarantine {
		t.Errorf("Actual = %s, want Quarantine", moveErr.Actual)
	}
	if len(client.moves) != 0 {
		t.Errorf("MoveAccount called %d times after failed precondition", len(client.moves))
	}
}

func TestMoveUnconfiguredStatus(t *testing.T) {
	client := &fakeOrgs{parent: map[string]string{"111122223333": "ou-available"}}
	mover := NewWithClient(client, map[schema.AccountStatus]string{}, nil)

	account := &schema.Account{AWSAccountID: "111122223333", Status: schema.AccountAvailable}
	if _, err := mover.Move(context.Background(), account, schema.AccountAvailable, schema.AccountActive); err == nil {
		t.Fatal("Move succeeded with no configured units")
	}
}

func TestPerformMoveSkipsVerification(t *testing.T) {
	// The account actually sits in quarantine, but PerformMove does
	// not check.
	client := &fakeOrgs{parent: map[string]string{"111122223333": "ou-quarantine"}}
	mover := NewWithClient(client, testUnits, nil)

	err := mover.PerformMove(context.Background(), "111122223333", schema.AccountActive, schema.AccountCleanUp)
	if err != nil {
		t.Fatalf("PerformMove: %v", err)
	}
	if len(client.moves) != 1 {
		t.Fatalf("MoveAccount called %d times, want 1", len(client.moves))
	}
	move := client.moves[0]
	if aws.ToString(move.SourceParentId) != "ou-active" || aws.ToString(move.DestinationParentId) != "ou-cleanup" {
		t.Errorf("move %s -> %s, want ou-active -> ou-cleanup",
			aws.ToString(move.SourceParentId), aws.ToString(move.DestinationParentId))
	}
}
