// Copyright 2026 The Sandpool Authors
// SPDX-License-Identifier: Apache-2.0

package saga

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Step is one unit of a transaction: a forward mutation and its
// compensation. Steps capture their results through closures: a step
// that produces an updated entity writes it to a variable owned by the
// caller, which later steps may read because commits run strictly in
// order.
type Step struct {
	// Name identifies the step in logs and errors.
	Name string

	// Commit performs the forward mutation.
	Commit func(ctx context.Context) error

	// Rollback compensates a committed mutation. Nil for steps with
	// no compensation (the coordinator skips them during rollback).
	Rollback func(ctx context.Context) error
}

// RollbackError records one failed compensation during an abort.
type RollbackError struct {
	// Step is the name of the step whose rollback failed.
	Step string

	// Err is the rollback failure.
	Err error
}

func (e RollbackError) Error() string {
	return fmt.Sprintf("rollback of step %q: %v", e.Step, e.Err)
}

// AbortError is returned by Complete when a commit fails. It carries
// the original commit error (reachable through Unwrap, so errors.As
// and errors.Is see through it) plus every rollback failure collected
// during compensation.
type AbortError struct {
	// Step is the name of the step whose commit failed.
	Step string

	// Cause is the original commit error.
	Cause error

	// RollbackErrors lists compensations that themselves failed, in
	// the order they were attempted (reverse commit order). Empty
	// when every rollback succeeded.
	RollbackErrors []RollbackError
}

func (e *AbortError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "transaction aborted at step %q: %v", e.Step, e.Cause)
	if len(e.RollbackErrors) > 0 {
		fmt.Fprintf(&b, " (%d rollback failure(s):", len(e.RollbackErrors))
		for _, rollbackErr := range e.RollbackErrors {
			fmt.Fprintf(&b, " %v;", rollbackErr)
		}
		b.WriteString(")")
	}
	return b.String()
}

// Unwrap exposes the original commit error so precondition error kinds
// survive the abort wrapping.
func (e *AbortError) Unwrap() error { return e.Cause }

// Transaction is an ephemeral, in-memory list of steps. It is built,
// completed once, and discarded within a single facade operation; it
// is never persisted and is not safe for concurrent use.
type Transaction struct {
	steps  []Step
	logger *slog.Logger
	done   bool
}

// New creates a transaction over the given steps. A nil logger
// discards rollback diagnostics.
func New(logger *slog.Logger, steps ...Step) *Transaction {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Transaction{steps: steps, logger: logger}
}

// Complete executes every step's commit in order. On the first commit
// failure it rolls back the already-committed steps 0..i-1 in strict
// reverse order and returns an *AbortError wrapping the commit error.
// On success it returns nil; results live in the variables the step
// closures wrote to.
//
// Complete may be called at most once.
func (t *Transaction) Complete(ctx context.Context) error {
	if t.done {
		panic("saga: Complete called twice on the same Transaction")
	}
	t.done = true

	for i, step := range t.steps {
		err := step.Commit(ctx)
		if err == nil {
			continue
		}

		t.logger.Error("transaction step failed, rolling back",
			"step", step.Name,
			"committed_steps", i,
			"error", err,
		)
		return &AbortError{
			Step:           step.Name,
			Cause:          err,
			RollbackErrors: t.rollback(ctx, i),
		}
	}
	return nil
}

// rollback compensates steps 0..committed-1 in reverse order,
// collecting failures. Each failure is logged individually; none stop
// the remaining rollbacks.
func (t *Transaction) rollback(ctx context.Context, committed int) []RollbackError {
	var failures []RollbackError
	for i := committed - 1; i >= 0; i-- {
		step := t.steps[i]
		if step.Rollback == nil {
			continue
		}
		if err := step.Rollback(ctx); err != nil {
			t.logger.Warn("rollback step failed, continuing",
				"step", step.Name,
				"error", err,
			)
			failures = append(failures, RollbackError{Step: step.Name, Err: err})
		}
	}
	return failures
}
