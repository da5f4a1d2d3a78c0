// Package store provides SQLite-backed durable storage for retouch documents
// and their edit history.
//
// The store holds:
//   - Documents: one row per known image, keyed by its normalized identifier
//   - History actions: the append-only edit log of each document
//   - Restoration points: full lossless snapshots, independent of the log
//   - History state: current/max position per document
//   - Preferences: global key/value settings
//
// # Ordering
//
// Log order is the per-document seq column, never the timestamp.
// Every log query uses ORDER BY seq ASC, id ASC so that two actions written
// within the same clock tick keep their insertion order.
//
// # Transactions
//
// Read and write helpers live on Queries, which is bound either to the
// database handle (Store embeds one) or to a transaction inside RunTx.
// Callers group a multi-statement mutation into one RunTx call; nothing
// spans several RunTx calls.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout: Wait for locks (default 5 seconds)
//   - foreign_keys=ON: Cascade deletes from documents
package store
