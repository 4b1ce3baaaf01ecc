package mmap

import "errors"

// AccessPattern is a hint on how a mapping will be read.
type AccessPattern int

const (
	AccessNormal AccessPattern = iota
	// AccessSequential suits partition files decoded front to back.
	AccessSequential
	// AccessWillNeed asks the kernel to start reading ahead.
	AccessWillNeed
)

var (
	// ErrClosed is returned by reads on a closed mapping.
	ErrClosed = errors.New("mmap: mapping is closed")
	// ErrInvalidOffset is returned for negative read offsets.
	ErrInvalidOffset = errors.New("mmap: invalid offset")
)
