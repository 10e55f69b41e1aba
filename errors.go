package reroaring

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrClosed is returned by operations on a closed DB.
	ErrClosed = errors.New("reroaring: closed")

	// ErrNoSnapshotStore is returned by Save and Load when no snapshot
	// store is configured.
	ErrNoSnapshotStore = errors.New("reroaring: no snapshot store configured")

	// ErrNoAOF is returned by RewriteAOF when no append-only log is
	// configured.
	ErrNoAOF = errors.New("reroaring: no append-only log configured")

	// ErrPersistence marks commands whose in-memory effect was applied but
	// could not be logged.
	ErrPersistence = errors.New("MISCONF write applied but not persisted")
)

// CommandError is an error reply of a command. Its message is the text a
// Redis client would see.
//
// The original underlying error can be accessed via errors.Unwrap.
type CommandError struct {
	Command string
	cause   error
}

func (e *CommandError) Error() string { return e.cause.Error() }

func (e *CommandError) Unwrap() error { return e.cause }

// RecoveryError reports an append-only log entry that failed to replay.
//
// The original underlying error can be accessed via errors.Unwrap.
type RecoveryError struct {
	Seq   uint64
	Args  []string
	cause error
}

func (e *RecoveryError) Error() string {
	name := ""
	if len(e.Args) > 0 {
		name = e.Args[0]
	}
	return fmt.Sprintf("reroaring: replay entry %d (%s): %v", e.Seq, name, e.cause)
}

func (e *RecoveryError) Unwrap() error { return e.cause }

// translateError turns handler failures into command error replies. Log
// failures stay persistence errors.
func translateError(args []string, err error) error {
	if err == nil || errors.Is(err, ErrPersistence) {
		return err
	}
	var ce *CommandError
	if errors.As(err, &ce) {
		return err
	}
	name := ""
	if len(args) > 0 {
		name = strings.ToUpper(args[0])
	}
	return &CommandError{Command: name, cause: err}
}
