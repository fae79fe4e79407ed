// Package gateway is the persistence gateway: reactive reads, writes and
// subscriptions over an internal/store Store.
//
// Point reads and writes return a reactive.Single and run on the regular
// execution context, a serial queue by default. Subscriptions return a
// reactive.Observable: the store observer is registered on a pooled listen
// worker, and every change hops to the regular context before it is mapped,
// diffed and delivered. Cancelling a subscription unregisters the observer
// on the worker and releases the worker reference.
//
// Mappers between stored objects and domain values are plain functions
// passed by value:
//
//	users := gateway.ListenArray(g, query.All("User"), nil, record.JSONDecoder[User]())
//
// Go methods cannot take type parameters, so typed operations are package
// functions taking the *Gateway first.
package gateway
