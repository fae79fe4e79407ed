// Package changeset implements the diff engine that turns successive states
// of an ordered collection into index-correct edit scripts.
//
// Two signals are supported:
//
// Snapshot diffing:
// Diff and Differ compare two full snapshots with an equality comparator and
// produce the shortest edit script (Myers, O((N+M)·D)). Matched elements are
// neither deleted nor inserted. A content change at a stable position shows
// up as a delete+insert pair; pass a comparator that treats changed records
// as unequal if that is what the caller wants to see.
//
// Notification correction:
// When the store already reports deletions, insertions and raw modification
// indices, CorrectModifications maps the modification indices into the
// post-update index space.
//
// INDEX SPACES:
//   - Deleted indices refer to the pre-update array.
//   - Inserted and Modified indices refer to the post-update array.
//
// Apply is the single materialization routine: delete (descending), then
// insert (ascending), then modify. Every consumer holding a live array must
// use it so the order stays identical everywhere.
package changeset
