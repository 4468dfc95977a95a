// Copyright 2026 The Sandpool Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides deterministic CBOR encoding shared by the
// record store's structured blob columns and the admin socket
// protocol. Consumers import only this package, not fxamacker/cbor
// directly, so encoder options stay consistent module-wide.
package codec
