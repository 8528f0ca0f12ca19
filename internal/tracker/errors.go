package tracker

import "errors"

// ErrNotFound is the store-level sentinel for a missing row. The
// repository maps pgx.ErrNoRows to it so the service never imports the
// driver.
var ErrNotFound = errors.New("not_found")

var (
	ErrAlreadyCheckedIn  = errors.New("already_checked_in")
	ErrNotCheckedIn      = errors.New("not_checked_in")
	ErrAlreadyCheckedOut = errors.New("already_checked_out")
	ErrSessionActive     = errors.New("session_already_active")
	ErrNoActiveSession   = errors.New("no_active_session")
	ErrSessionNotFound   = errors.New("session_not_found")
	ErrNotSessionOwner   = errors.New("not_session_owner")
)
