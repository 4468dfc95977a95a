// Copyright 2026 The Sandpool Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds small helpers shared by tests across the
// module: channel receive/close assertions with timeout safety valves
// so that a hung goroutine fails the test instead of hanging the run.
package testutil
