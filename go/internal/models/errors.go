package models

import "errors"

var (
	// ErrAuth is returned for a wrong password or an unknown bearer token.
	ErrAuth = errors.New("authentication failed")
	// ErrSessionInactive is returned when there is no active session to act on.
	ErrSessionInactive = errors.New("session inactive")
	// ErrSessionExpired is returned when the session window has closed.
	ErrSessionExpired = errors.New("session expired")
	// ErrInvalidState is returned when an operation does not apply right now.
	ErrInvalidState = errors.New("invalid state")
	// ErrNotFound is returned for unknown rooms and players.
	ErrNotFound = errors.New("not found")
	// ErrNicknameInvalid is returned when a nickname is empty or too long.
	ErrNicknameInvalid = errors.New("nickname invalid")
	// ErrInvalidArgument is returned for malformed request values.
	ErrInvalidArgument = errors.New("invalid argument")
)

// ErrNetwork marks a call that never got a classified answer from the server.
// It is transient: callers retry and never treat it as expiry.
var ErrNetwork = errors.New("network error")
