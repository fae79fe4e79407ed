// Package harness runs scripted scenarios against the persistence gateway
// and records what its subscriptions emit.
//
// A scenario is a YAML file: setup writes, the watches to subscribe, steps
// that each perform one gateway write, and assertions on the final store.
// Every step is followed by a barrier that drains the listen worker and the
// regular queue, so the emissions a step causes are attributed to it and
// the trace is deterministic.
//
// Changeset watches are replayed with changeset.Apply as they arrive. After
// every step the replayed state must equal a fresh query of the store; a
// mismatch means an index in some changeset was wrong.
//
// Traces render one line per emission and are compared against golden
// files with goldie:
//
//	scenario: child-edits
//	[0] users: initial [{"id":"u1"}]
//	[1] users: update deleted=[] inserted=[1:{"id":"u2"}] modified=[]
package harness
