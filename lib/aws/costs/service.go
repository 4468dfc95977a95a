// Copyright 2026 The Sandpool Authors
// SPDX-License-Identifier: Apache-2.0

package costs

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	cetypes "github.com/aws/aws-sdk-go-v2/service/costexplorer/types"
	"github.com/shopspring/decimal"
)

const dateFormat = "2006-01-02"

// Source implements monitor.CostSource on top of Cost Explorer,
// summing the account's daily unblended cost over the lease window.
type Source struct {
	client API
}

// New builds a source from an AWS config.
func New(cfg aws.Config) *Source {
	return NewWithClient(costexplorer.NewFromConfig(cfg))
}

// NewWithClient builds a source around an existing client. Tests use
// this with a fake.
func NewWithClient(client API) *Source {
	return &Source{client: client}
}

// AccountCost returns the account's total unblended cost between start
// and end. Cost Explorer works on whole days with an exclusive end
// date, so the window is widened to cover both endpoints; the figure
// can include spend from earlier the same day the lease started.
func (s *Source) AccountCost(ctx context.Context, awsAccountID string, start, end time.Time) (decimal.Decimal, error) {
	windowStart := start.UTC().Truncate(24 * time.Hour)
	windowEnd := end.UTC().Truncate(24 * time.Hour).AddDate(0, 0, 1)

	total := decimal.Zero
	var token *string
	for {
		out, err := s.client.GetCostAndUsage(ctx, &costexplorer.GetCostAndUsageInput{
			Granularity: cetypes.GranularityDaily,
			Metrics:     []string{"UnblendedCost"},
			TimePeriod: &cetypes.DateInterval{
				Start: aws.String(windowStart.Format(dateFormat)),
				End:   aws.String(windowEnd.Format(dateFormat)),
			},
			Filter: &cetypes.Expression{
				Dimensions: &cetypes.DimensionValues{
					Key:    cetypes.DimensionLinkedAccount,
					Values: []string{awsAccountID},
				},
			},
			NextPageToken: token,
		})
		if err != nil {
			return decimal.Zero, fmt.Errorf("fetching cost for account %s: %w", awsAccountID, err)
		}
		for _, result := range out.ResultsByTime {
			metric, ok := result.Total["UnblendedCost"]
			if !ok {
				continue
			}
			amount, err := decimal.NewFromString(aws.ToString(metric.Amount))
			if err != nil {
				return decimal.Zero, fmt.Errorf("parsing cost amount %q for account %s: %w",
					aws.ToString(metric.Amount), awsAccountID, err)
			}
			total = total.Add(amount)
		}
		token = out.NextPageToken
		if token == nil {
			break
		}
	}
	return total, nil
}
