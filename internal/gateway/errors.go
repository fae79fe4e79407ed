package gateway

import (
	"errors"
	"fmt"

	"github.com/AppleFlash/BackgroundRealm/internal/record"
)

// ContainerNotFoundError is returned by container child operations when the
// container query matches nothing.
type ContainerNotFoundError struct {
	Kind string
}

func (e *ContainerNotFoundError) Error() string {
	return fmt.Sprintf("container %s not found", e.Kind)
}

// ChildNotFoundError is returned when an update or delete addresses a child
// that is not in the container's list.
type ChildNotFoundError struct {
	Container string
	List      string
	Key       record.Value
}

func (e *ChildNotFoundError) Error() string {
	key, err := record.MarshalValue(e.Key)
	if err != nil {
		key = []byte(fmt.Sprint(e.Key))
	}
	return fmt.Sprintf("child %s not found in %s.%s", key, e.Container, e.List)
}

// IsContainerNotFound returns true if err is or wraps a
// *ContainerNotFoundError.
func IsContainerNotFound(err error) bool {
	var ce *ContainerNotFoundError
	return errors.As(err, &ce)
}

// IsChildNotFound returns true if err is or wraps a *ChildNotFoundError.
func IsChildNotFound(err error) bool {
	var ce *ChildNotFoundError
	return errors.As(err, &ce)
}
