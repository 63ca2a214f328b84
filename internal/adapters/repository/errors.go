package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound     = errors.New("timeline not found")
	ErrInvalidLimit = errors.New("invalid listing limit")
	ErrInvalidBoss  = errors.New("boss id is required")
)
