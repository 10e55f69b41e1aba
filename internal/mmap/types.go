package mmap

import "errors"

// AccessPattern is a paging hint passed to Advise.
type AccessPattern int

const (
	// AccessDefault clears any previous hint.
	AccessDefault AccessPattern = iota
	// AccessSequential is the pattern of a snapshot decode.
	AccessSequential
	// AccessRandom disables read-ahead.
	AccessRandom
	// AccessWillNeed asks the kernel to fault pages in early.
	AccessWillNeed
	// AccessDontNeed lets the kernel drop pages already read.
	AccessDontNeed
)

var (
	// ErrClosed is returned by accessors of a closed mapping.
	ErrClosed = errors.New("mmap: mapping is closed")
	// ErrInvalidSize is returned for files whose size cannot be mapped.
	ErrInvalidSize = errors.New("mmap: invalid file size")
	// ErrInvalidOffset is returned for negative read offsets.
	ErrInvalidOffset = errors.New("mmap: invalid offset")
)
