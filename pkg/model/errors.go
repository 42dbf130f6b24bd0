package model

import "errors"

// Error taxonomy shared by every engine component (spec §7). Components
// return one of these, wrapped with context via fmt.Errorf("...: %w", ...),
// never a bespoke error type of their own — callers at the transport edge
// switch on errors.Is against this small fixed set.
var (
	// ErrNotFound means the document or session referenced does not exist.
	ErrNotFound = errors.New("not found")
	// ErrLocked means the path is currently held by another user.
	ErrLocked = errors.New("locked")
	// ErrPath means the operation's path attempts to descend through a scalar.
	ErrPath = errors.New("path error")
	// ErrMutate means content mutation failed for a reason other than path.
	ErrMutate = errors.New("mutate error")
	// ErrProtocol means an inbound message arrived out of sequence or with a
	// malformed payload. The offending message is dropped, not the connection.
	ErrProtocol = errors.New("protocol error")
)
