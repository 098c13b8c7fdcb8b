package generator

import "errors"

var (
	// ErrNoTree is returned by edits attempted before any tree has settled.
	ErrNoTree = errors.New("session has no settled tree")

	// ErrNoPlan is returned by Regenerate before the planning stages ran.
	ErrNoPlan = errors.New("session has no plan")

	// ErrBadPlan is returned when a planning stage reply is not the JSON
	// object asked for.
	ErrBadPlan = errors.New("planning reply is not valid JSON")

	// ErrRejected is returned when an edit left the tree unchanged.
	ErrRejected = errors.New("edit rejected")

	// ErrBusy is returned when a session is already running a generation pass.
	ErrBusy = errors.New("session is busy generating")
)
