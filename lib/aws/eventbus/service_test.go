// Copyright 2026 The Sandpool Authors
// SPDX-License-Identifier: Apache-2.0

package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	ebtypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"

	"github.com/sandpool-project/sandpool/lib/schema"
)

type fakeBus struct {
	calls   []eventbridge.PutEventsInput
	entries []ebtypes.PutEventsRequestEntry

	// reject marks detail-types the bus refuses.
	reject map[string]bool
}

func (f *fakeBus) PutEvents(ctx context.Context, input *eventbridge.PutEventsInput, opts ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	f.calls = append(f.calls, *input)
	f.entries = append(f.entries, input.Entries...)
	out := &eventbridge.PutEventsOutput{
		Entries: make([]ebtypes.PutEventsResultEntry, len(input.Entries)),
	}
	for i, entry := range input.Entries {
		if f.reject[aws.ToString(entry.DetailType)] {
			out.FailedEntryCount++
			out.Entries[i] = ebtypes.PutEventsResultEntry{
				ErrorCode:    aws.String("InternalFailure"),
				ErrorMessage: aws.String("rejected"),
			}
			continue
		}
		out.Entries[i] = ebtypes.PutEventsResultEntry{EventId: aws.String(fmt.Sprintf("evt-%d", i))}
	}
	return out, nil
}

func TestPublish(t *testing.T) {
	bus := &fakeBus{}
	publisher := NewWithClient(bus, "sandpool", "sandpool.leasing", nil)

	err := publisher.Publish(context.Background(),
		schema.CleanAccountRequest{AWSAccountID: "111122223333", Reason: "registration"},
		schema.LeaseApproved{
			Lease:        schema.LeaseKey{UserEmail: "dev@example.com", UUID: "lease-1"},
			AWSAccountID: "111122223333",
			ApprovedBy:   "ops@example.com",
		},
	)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(bus.entries) != 2 {
		t.Fatalf("bus received %d entries, want 2", len(bus.entries))
	}

	first := bus.entries[0]
	if got := aws.ToString(first.DetailType); got != "CleanAccountRequest" {
		t.Errorf("detail-type = %s", got)
	}
	if got := aws.ToString(first.EventBusName); got != "sandpool" {
		t.Errorf("bus name = %s", got)
	}
	if got := aws.ToString(first.Source); got != "sandpool.leasing" {
		t.Errorf("source = %s", got)
	}

	var detail schema.CleanAccountRequest
	if err := json.Unmarshal([]byte(aws.ToString(first.Detail)), &detail); err != nil {
		t.Fatalf("decoding detail: %v", err)
	}
	if detail.AWSAccountID != "111122223333" || detail.Reason != "registration" {
		t.Errorf("detail = %+v", detail)
	}
}

func TestPublishBatches(t *testing.T) {
	bus := &fakeBus{}
	publisher := NewWithClient(bus, "sandpool", "sandpool.leasing", nil)

	events := make([]schema.Event, 23)
	for i := range events {
		events[i] = schema.CleanAccountRequest{AWSAccountID: "111122223333"}
	}
	if err := publisher.Publish(context.Background(), events...); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(bus.calls) != 3 {
		t.Errorf("PutEvents called %d times, want 3", len(bus.calls))
	}
	if len(bus.entries) != 23 {
		t.Errorf("bus received %d entries, want 23", len(bus.entries))
	}
	for _, call := range bus.calls {
		if len(call.Entries) > 10 {
			t.Errorf("batch of %d entries exceeds the PutEvents limit", len(call.Entries))
		}
	}
}

func TestPublishReportsRejectedEntries(t *testing.T) {
	bus := &fakeBus{reject: map[string]bool{"AccountQuarantined": true}}
	publisher := NewWithClient(bus, "sandpool", "sandpool.leasing", nil)

	err := publisher.Publish(context.Background(),
		schema.CleanAccountRequest{AWSAccountID: "111122223333"},
		schema.AccountQuarantined{AWSAccountID: "111122223333", Reason: "drift"},
	)
	if err == nil {
		t.Fatal("Publish succeeded despite a rejected entry")
	}
}

func TestPublishNothing(t *testing.T) {
	bus := &fakeBus{}
	publisher := NewWithClient(bus, "sandpool", "sandpool.leasing", nil)

	if err := publisher.Publish(context.Background()); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(bus.calls) != 0 {
		t.Errorf("PutEvents called %d times for zero events", len(bus.calls))
	}
}
