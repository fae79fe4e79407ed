//go:build bgrealm_debug

package reactive

const panicOnEmptySequence = true
