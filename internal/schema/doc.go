// Package schema defines the record kinds a store knows about.
//
// Kinds are declared in CUE under a top-level "kind" struct. A kind with a
// primaryKey is keyed: saves upsert by that body field. A kind without one is
// keyless and every save appends. Lists names the body fields holding
// embedded ordered child lists of container records.
package schema
