package docker

import (
	"errors"
	"fmt"
)

var (
	// Image errors
	ErrImageNotFound = errors.New("image not found")
	ErrBuildFailed   = errors.New("image build failed")
	ErrPushFailed    = errors.New("image push failed")
	ErrPushDenied    = errors.New("image push denied by registry")

	// Container errors
	ErrContainerNotFound      = errors.New("container not found")
	ErrContainerAlreadyExists = errors.New("container already exists")
	ErrPortAlreadyAllocated   = errors.New("port is already allocated")

	// Connection errors
	ErrDaemonUnreachable = errors.New("docker daemon unreachable")
)

// DockerError wraps engine API errors with operation context.
type DockerError struct {
	Op      string // Operation that failed
	Entity  string // Entity type (image, container, daemon)
	ID      string // Entity reference if applicable
	Message string
	Err     error
}

func (e *DockerError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %s %s: %s", e.Op, e.Entity, e.ID, e.Message)
	}
	if e.Entity != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Entity, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *DockerError) Unwrap() error {
	return e.Err
}

// NewDockerError creates a new DockerError.
func NewDockerError(op, entity, id, message string, err error) *DockerError {
	return &DockerError{
		Op:      op,
		Entity:  entity,
		ID:      id,
		Message: message,
		Err:     err,
	}
}
