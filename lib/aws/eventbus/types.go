// Copyright 2026 The Sandpool Authors
// SPDX-License-Identifier: Apache-2.0

// Package eventbus publishes domain events to an EventBridge bus. The
// event's EventType becomes the entry's detail-type and the event
// struct, JSON-encoded, becomes the detail, so downstream rules can
// match on detail-type alone.
package eventbus

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
)

// API is the slice of the EventBridge client the publisher uses.
// Satisfied by *eventbridge.Client.
type API interface {
	PutEvents(ctx context.Context, input *eventbridge.PutEventsInput, opts ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}
