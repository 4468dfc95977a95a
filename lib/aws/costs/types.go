// Copyright 2026 The Sandpool Authors
// SPDX-License-Identifier: Apache-2.0

// Package costs reads per-account spend from Cost Explorer for the
// lease monitor's budget checks.
package costs

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
)

// API is the slice of the Cost Explorer client the source uses.
// Satisfied by *costexplorer.Client.
type API interface {
	GetCostAndUsage(ctx context.Context, input *costexplorer.GetCostAndUsageInput, opts ...func(*costexplorer.Options)) (*costexplorer.GetCostAndUsageOutput, error)
}
