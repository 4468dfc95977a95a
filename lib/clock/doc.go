// Copyright 2026 The Sandpool Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source. Production code
// uses [Real]; tests use [Fake] to control time deterministically,
// which keeps cooldown windows, lease expiry computation, and monitor
// scheduling testable without real sleeps.
package clock
