package testutil

import (
	"fmt"
	"sync/atomic"
)

// SequentialNames returns a worker name function yielding name-1, name-2,
// and so on. The counter is shared by every name.
//
// Thread-safety: the returned function is safe for concurrent use.
func SequentialNames() func(name string) string {
	var n atomic.Int64
	return func(name string) string {
		return fmt.Sprintf("%s-%d", name, n.Add(1))
	}
}

// FixedName returns a name function that ignores its input and always
// yields id. Useful when golden output embeds worker names.
func FixedName(id string) func(string) string {
	if id == "" {
		id = "worker-default"
	}
	return func(string) string { return id }
}
