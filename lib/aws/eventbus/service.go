// Copyright 2026 The Sandpool Authors
// SPDX-License-Identifier: Apache-2.0

package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	ebtypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"

	"github.com/sandpool-project/sandpool/lib/schema"
)

// PutEvents rejects batches over ten entries.
const maxBatchSize = 10

// Publisher implements leasing.EventPublisher on top of EventBridge.
type Publisher struct {
	client  API
	busName string
	source  string
	logger  *slog.Logger
}

// New builds a publisher from an AWS config.
func New(cfg aws.Config, busName, source string, logger *slog.Logger) *Publisher {
	return NewWithClient(eventbridge.NewFromConfig(cfg), busName, source, logger)
}

// NewWithClient builds a publisher around an existing client. Tests
// use this with a fake.
func NewWithClient(client API, busName, source string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Publisher{client: client, busName: busName, source: source, logger: logger}
}

// Publish sends the events to the bus, batching to the PutEvents
// limit. Partial failures within a batch are reported as an error; the
// caller treats publishing as best-effort.
func (p *Publisher) Publish(ctx context.Context, events ...schema.Event) error {
	for start := 0; start < len(events); start += maxBatchSize {
		end := min(start+maxBatchSize, len(events))
		if err := p.publishBatch(ctx, events[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (p *Publisher) publishBatch(ctx context.Context, events []schema.Event) error {
	entries := make([]ebtypes.PutEventsRequestEntry, 0, len(events))
	for _, event := range events {
		detail, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("encoding %s event: %w", event.EventType(), err)
		}
		entries = append(entries, ebtypes.PutEventsRequestEntry{
			EventBusName: aws.String(p.busName),
			Source:       aws.String(p.source),
			DetailType:   aws.String(string(event.EventType())),
			Detail:       aws.String(string(detail)),
		})
	}

	out, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{Entries: entries})
	if err != nil {
		return fmt.Errorf("publishing %d events: %w", len(entries), err)
	}
	if out.FailedEntryCount > 0 {
		for i, result := range out.Entries {
			if result.ErrorCode == nil {
				continue
			}
			p.logger.Error("event rejected by bus",
				"detail_type", events[i].EventType(),
				"error_code", aws.ToString(result.ErrorCode),
				"error_message", aws.ToString(result.ErrorMessage))
		}
		return fmt.Errorf("event bus rejected %d of %d events", out.FailedEntryCount, len(entries))
	}
	return nil
}
