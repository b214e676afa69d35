package main

import "errors"

// Validation failures raised by the engines. The dispatcher maps each one
// onto the rejection event sent back to the offending peer; anything not in
// that table is treated as protocol misuse and dropped.
var (
	ErrWrongPhase      = errors.New("action not allowed in this phase")
	ErrNotSeated       = errors.New("connection is not in a room")
	ErrInvalidPasscode = errors.New("invalid passcode")
	ErrRoomFull        = errors.New("room full")
	ErrServerFull      = errors.New("too many active rooms")

	ErrShapeCap       = errors.New("shape limit reached")
	ErrDrawingEnded   = errors.New("drawing phase ended for player")
	ErrNoSession      = errors.New("no active drawing session")
	ErrOutOfBounds    = errors.New("coordinates outside the world")
	ErrEmptyPath      = errors.New("drawing session has no segments")
	ErrNothingToErase = errors.New("no shape to erase")

	ErrNotYourTurn       = errors.New("not your turn")
	ErrActionPending     = errors.New("an action is already pending")
	ErrNoPending         = errors.New("no pending action")
	ErrInvalidClick      = errors.New("click is not on an eligible unit")
	ErrInvalidActionMode = errors.New("unknown action mode")
	ErrActionTooSmall    = errors.New("drag too short")

	ErrLoginDisabled   = errors.New("admin login disabled")
	ErrBadCredentials  = errors.New("invalid password")
	ErrTooManyAttempts = errors.New("too many login attempts, try again later")
)
