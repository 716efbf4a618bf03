package vid

import "errors"

var (
	// ErrEmptyID means an identifier string was empty.
	ErrEmptyID = errors.New("vid: empty identifier")
	// ErrBadTransport means a transport URL is missing or uses an
	// unrecognised scheme.
	ErrBadTransport = errors.New("vid: unrecognised transport")
	// ErrInvalidVid means an identifier string is malformed.
	ErrInvalidVid = errors.New("vid: invalid identifier")
	// ErrUnresolvable means the identifier's scheme needs an online
	// resolver and none was supplied.
	ErrUnresolvable = errors.New("vid: identifier cannot be verified offline")
)
