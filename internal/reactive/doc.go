// Package reactive provides the two delivery contracts used by the
// persistence gateway: Observable (zero or more values until cancelled)
// and Single (exactly one value or one error).
//
// Execution contexts are modelled as Schedulers. SerialQueue is the default
// "regular" context; worker handles are Schedulers too, so listen work can
// be pinned to a dedicated worker and re-delivered on a SerialQueue with
// ReceiveOn.
//
// Observables are lazy. Each Subscribe runs the producer once; Cancel on
// the returned Subscription runs its teardown exactly once.
package reactive
