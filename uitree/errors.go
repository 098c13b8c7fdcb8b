package uitree

import "errors"

var (
	// ErrEmptyGeneration indicates that a generation pass ended without ever
	// producing a rooted tree.
	ErrEmptyGeneration = errors.New("generation produced no tree")

	// ErrUnknownPosition indicates a drop position outside before/after/inside.
	ErrUnknownPosition = errors.New("unknown drop position")
)
