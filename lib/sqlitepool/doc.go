// Copyright 2026 The Sandpool Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool provides the Sandpool-standard SQLite connection
// pool.
//
// It wraps zombiezen.com/go/sqlite with production defaults: WAL
// journal mode, NORMAL synchronous for process-crash durability
// without fsync-per-commit overhead, memory-mapped I/O for read
// performance, and a busy timeout so write contention surfaces as a
// wait instead of SQLITE_BUSY.
//
// The pool is built on zombiezen's sqlitex.Pool, which manages a
// fixed-size set of connections. Callers [Pool.Take] a connection,
// perform work, and [Pool.Put] it back. Connections are NOT safe for
// concurrent use. Each goroutine must hold its own connection for the
// duration of its work.
//
// # Pragmas
//
// Every connection in the pool is initialized with these pragmas:
//
//   - journal_mode=WAL: write-ahead logging for concurrent readers
//     and a single writer. Reads never block writes; writes never
//     block reads.
//   - synchronous=NORMAL: transactions survive process crashes. Not
//     durable across OS crashes or power failure; the record store
//     can be reconciled against actual OU placement, so that trade
//     is acceptable.
//   - busy_timeout=5000: wait up to 5 seconds for a write lock
//     instead of returning SQLITE_BUSY immediately.
//   - foreign_keys=OFF: the record store keeps referential integrity
//     in the orchestrator's sagas, not in the schema.
//   - cache_size=-8192: 8 MB page cache per connection.
//   - mmap_size=268435456: 256 MB memory-mapped I/O for reads.
//   - temp_store=MEMORY: temporary tables and indexes in memory.
//
// Use the Config.OnConnect hook for schema creation and any further
// per-connection setup.
package sqlitepool
