package core

import (
	"errors"
)

// ErrMalformedMessage means the raw bytes could not be decoded as an email
// message at all. It is the only fatal error an analysis can produce; every
// deeper per-field failure degrades to a default instead.
var ErrMalformedMessage = errors.New("malformed message")
