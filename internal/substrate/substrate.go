package substrate

import (
	"context"
	"errors"
	"fmt"
)

// Substrate is the execution-environment provider the scheduler
// delegates run execution to. The scheduler depends on exactly these
// operations and nothing else about the backing technology.
type Substrate interface {
	// Create provisions a new isolated environment and returns its handle.
	// seedImage, when non-empty, names a checkpointed image to start from.
	Create(ctx context.Context, seedImage string) (string, error)

	// WriteFile places data at path inside the environment.
	WriteFile(ctx context.Context, handle, path string, data []byte) error

	// Run starts a shell command in the environment. Success means
	// "accepted", not "finished"; completion is observed later by
	// reading the result file.
	Run(ctx context.Context, handle, command string) error

	// ReadFile reads a file out of the environment. A file the command
	// has not produced yet yields a KindNotFound error.
	ReadFile(ctx context.Context, handle, path string) ([]byte, error)

	// Checkpoint snapshots the environment to a reusable image.
	Checkpoint(ctx context.Context, handle, destination string) (string, error)

	// Destroy releases the environment.
	Destroy(ctx context.Context, handle string) error
}

// ErrorKind classifies substrate failures so callers never have to
// sniff error strings.
type ErrorKind int

const (
	// KindNotFound means the requested file does not exist yet. For a
	// result-file read this is "still pending", not a failure.
	KindNotFound ErrorKind = iota

	// KindTransient means the operation may succeed if retried.
	KindTransient

	// KindFatal means the environment or operation is unrecoverable.
	KindFatal
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindTransient:
		return "transient"
	case KindFatal:
		return "fatal"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Error is a classified substrate failure.
type Error struct {
	Kind   ErrorKind
	Op     string // "create", "write", "run", "read", "checkpoint", "destroy"
	Handle string
	Path   string
	Err    error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("substrate %s %s:%s: %s: %v", e.Op, e.Handle, e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("substrate %s %s: %s: %v", e.Op, e.Handle, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is a substrate error of kind
// KindNotFound.
func IsNotFound(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == KindNotFound
}

// KindOf returns the error kind, defaulting to KindFatal for errors
// that did not come from a substrate.
func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindFatal
}
