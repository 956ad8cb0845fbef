// Package runtime describes the container runtime capabilities the grader
// needs. Implementations live in their own packages.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// ErrNoSuchImage is matched by errors reported when a container is created
// from an image the runtime does not have.
var ErrNoSuchImage = errors.New("no such image")

// Error is any failure reported by the container runtime. Msg preserves the
// runtime's own message.
type Error struct {
	Op  string
	Msg string
	Err error
}

func (e *Error) Error() string {
	if e.Msg == "" && e.Err != nil {
		return fmt.Sprintf("runtime %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("runtime %s: %s", e.Op, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ExitError reports an exec'd command that ran but exited with a non-zero
// status. It is not a runtime failure.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("command exited with status %d", e.Code)
}

// ContainerInfo is the subset of container state the lifecycle manager uses.
type ContainerInfo struct {
	ID        string
	ImageID   string
	CreatedAt time.Time
}

// ContainerSpec describes a container to create.
type ContainerSpec struct {
	Image  string
	Name   string
	Labels map[string]string
}

// ExecSpec describes a command to run inside a started container.
type ExecSpec struct {
	Cmd []string
	// User overrides the image's default user when non-empty.
	User string
}

// Runtime is the capability surface of a container runtime.
type Runtime interface {
	// FindContainers returns the ids of all containers, running or not,
	// that carry the "key=value" label.
	FindContainers(ctx context.Context, labelFilter string) ([]string, error)
	CreateContainer(ctx context.Context, spec ContainerSpec) (string, error)
	StartContainer(ctx context.Context, id string) error
	StopContainer(ctx context.Context, id string) error
	RemoveContainer(ctx context.Context, id string, force bool) error
	InspectContainer(ctx context.Context, id string) (ContainerInfo, error)
	// InspectImage resolves an image reference to its id.
	InspectImage(ctx context.Context, ref string) (string, error)
	// Exec runs a command and streams its combined stdout and stderr. The
	// caller must close the returned reader. Close waits for the command
	// and returns an *ExitError for a non-zero exit status or an *Error if
	// the runtime failed.
	Exec(ctx context.Context, containerID string, spec ExecSpec) (io.ReadCloser, error)
	// PutArchive extracts a tar archive (optionally gzip-compressed) into
	// destDir of the container.
	PutArchive(ctx context.Context, containerID string, destDir string, archive io.Reader) error
}
