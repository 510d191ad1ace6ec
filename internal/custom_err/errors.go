package custom_err

import "errors"

var (
	// Input errors
	ErrInputNotFound   = errors.New("input file not found")
	ErrInputUnreadable = errors.New("input file unreadable")
	ErrPathOutsideData = errors.New("path outside the data directory")

	// Store errors
	ErrDuplicateTransfer = errors.New("transaction id already persisted")
	ErrNotFound          = errors.New("resource not found")

	// Run errors
	ErrRunInProgress = errors.New("a batch run is already in progress")

	// Operator errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
