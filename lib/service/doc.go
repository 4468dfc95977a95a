// Copyright 2026 The Sandpool Authors
// SPDX-License-Identifier: Apache-2.0

// Package service implements the CBOR request-response protocol spoken
// over the sandpool-leased control socket.
//
// Each connection carries exactly one request-response cycle: the
// client writes a single CBOR map carrying an "action" field plus
// action-specific fields, the server routes it to the registered
// handler and writes a single CBOR [Response], and the connection
// closes. CBOR is self-delimiting, so there is no framing protocol.
//
// [SocketServer] is the daemon side; [Client] is used by the sandpool
// CLI and by tests.
package service
