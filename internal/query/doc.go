// Package query is the filter language the gateway and store share: a
// record kind, an optional predicate tree and an optional ordering.
//
// Queries are plain values with no captured state, so they can cross
// execution contexts freely. Backends (internal/querysql) compile them;
// Match evaluates them in memory against a record.Object.
package query
