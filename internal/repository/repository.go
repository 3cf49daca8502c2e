package repository

import "errors"

// Storage-level sentinels. Services translate these into domain error kinds;
// the GORM implementations translate driver errors into them.
var (
	ErrNotFound            = errors.New("record not found")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrDuplicateActiveCart = errors.New("user already has an active cart")
	ErrDuplicateEmail      = errors.New("email already registered")
)
