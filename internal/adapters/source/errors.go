package source

import "github.com/pkg/errors"

// Sentinel errors of the source boundary.
var (
	ErrNotFound = errors.New("source: not found")
	ErrDecode   = errors.New("source: decode failed")
)
