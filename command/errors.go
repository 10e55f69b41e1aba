package command

import (
	"errors"
	"fmt"

	"github.com/hupe1980/reroaring/internal/bitmap"
)

var (
	// ErrWrongType is returned when a key holds a value of another kind.
	ErrWrongType = errors.New("WRONGTYPE Operation against a key holding the wrong kind of value")
	// ErrWrongArity is wrapped by *ArityError.
	ErrWrongArity = errors.New("wrong number of arguments")
	// ErrSyntax is returned for an unknown sub-operation or option.
	ErrSyntax = errors.New("ERR syntax error")
	// ErrNoSuchKey is returned by commands that require an existing key.
	ErrNoSuchKey = errors.New("ERR no such key")
	// ErrKeyNotExist is returned by STAT on a missing key.
	ErrKeyNotExist = errors.New("ERR key does not exist")
	// ErrKeyExists is returned by SETFULL when the key is already set.
	ErrKeyExists = errors.New("key exists")
	// ErrUnknownCommand is wrapped by *UnknownCommandError.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrEmptyCommand is returned when no arguments are given.
	ErrEmptyCommand = errors.New("ERR empty command")
	// ErrRangeTooLarge is returned by RANGEINTARRAY when the requested span
	// exceeds MaxRangeSize.
	ErrRangeTooLarge = fmt.Errorf("ERR range too large: maximum %d elements", MaxRangeSize)
	// ErrBitArrayTooLarge is returned by GETBITARRAY when max+1 exceeds
	// bitmap.MaxBitArrayLen.
	ErrBitArrayTooLarge = fmt.Errorf("ERR bit array too large: maximum %d bits", bitmap.MaxBitArrayLen)
)

// ArityError reports a wrong number of arguments.
type ArityError struct {
	Command string
}

func (e *ArityError) Error() string {
	return fmt.Sprintf("ERR wrong number of arguments for '%s' command", e.Command)
}

func (e *ArityError) Unwrap() error { return ErrWrongArity }

// UnknownCommandError reports a command name missing from the registry.
type UnknownCommandError struct {
	Name string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("ERR unknown command '%s'", e.Name)
}

func (e *UnknownCommandError) Unwrap() error { return ErrUnknownCommand }

// ArgError reports an argument that failed to parse or validate.
//
// The original parse error (if any) can be accessed via errors.Unwrap.
type ArgError struct {
	Name   string
	Reason string
	cause  error
}

func (e *ArgError) Error() string {
	return fmt.Sprintf("ERR invalid %s: %s", e.Name, e.Reason)
}

func (e *ArgError) Unwrap() error { return e.cause }

// ModeError reports an unknown CONTAINS mode.
type ModeError struct {
	Mode string
}

func (e *ModeError) Error() string {
	return fmt.Sprintf("ERR invalid mode argument: %s", e.Mode)
}
