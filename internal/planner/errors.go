package planner

import (
	"errors"

	"github.com/Leealpha1/TinyG/internal/errext"
	"github.com/Leealpha1/TinyG/internal/errext/exitcodes"
)

var errBufferFull = errext.WithExitCodeIfNone(
	errext.WithHint(
		errors.New("planner: no empty slot available"),
		"caller must gate submission on QueueHasSpace() before calling Submit*",
	),
	exitcodes.BufferFull,
)

// ErrInternal is returned by the runtime executor when it reaches a
// state spec.md §4.5 does not define, or an unregistered MCode handler.
var ErrInternal = errext.WithExitCodeIfNone(
	errors.New("planner: internal executor error"),
	exitcodes.Internal,
)
