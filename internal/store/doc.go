// Package store is the embedded object store behind the persistence gateway,
// built on SQLite.
//
// Every record lives in a single records table keyed by (kind, key). Bodies
// are canonical JSON produced by internal/record, so equal objects always
// have equal bytes.
//
// # Writes
//
// Update runs a closure inside one transaction. A context returned to the
// closure carries the transaction; calling Update or Query with that context
// joins the open transaction instead of starting another one. Using any other
// context from inside the closure blocks, because the store holds a single
// connection.
//
// # Observers
//
// Observe registers a callback for a query. The first delivery is the
// initial result set. After every commit that changed rows the query is
// re-run on the observer's scheduler and the difference is delivered as
// deletions (old indices), insertions (new indices) and modifications (old
// indices of rows whose seq changed).
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout: Wait for locks (default 5 seconds)
//   - One open connection: SQLite has a single writer
package store
