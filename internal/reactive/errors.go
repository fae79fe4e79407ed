package reactive

import "errors"

// EmptySequenceError reports that the upstream of a Single completed
// without producing a value. It signals a broken producer, not a runtime
// condition a caller can recover from.
type EmptySequenceError struct {
	// Op names the operation whose producer came up empty, if known.
	Op string
}

func (e *EmptySequenceError) Error() string {
	if e.Op != "" {
		return "single: " + e.Op + ": sequence completed without a value"
	}
	return "single: sequence completed without a value"
}

// IsEmptySequence reports whether err is an EmptySequenceError.
func IsEmptySequence(err error) bool {
	var es *EmptySequenceError
	return errors.As(err, &es)
}
