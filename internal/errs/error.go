package errs

import (
	"errors"
)

var (
	ErrBookNotFound   = errors.New("book not found")
	ErrUserNotFound   = errors.New("user not found")
	ErrRentalNotFound = errors.New("rental not found")

	ErrBookUnavailable = errors.New("book is not available")
	ErrRentalClosed    = errors.New("rental is already closed")
	ErrBookRented      = errors.New("book is currently rented")
	ErrUserExists      = errors.New("user already exists")

	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrTxConflict marks a storage-level conflict (serialization
	// failure, deadlock) that is safe to retry with a fresh read.
	ErrTxConflict = errors.New("transaction conflict")
)

// NotFound reports whether err resolves to a missing entity.
func NotFound(err error) bool {
	return errors.Is(err, ErrBookNotFound) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrRentalNotFound)
}

// Conflict reports whether err is a state-violating request.
func Conflict(err error) bool {
	return errors.Is(err, ErrBookUnavailable) ||
		errors.Is(err, ErrRentalClosed) ||
		errors.Is(err, ErrBookRented) ||
		errors.Is(err, ErrUserExists) ||
		errors.Is(err, ErrTxConflict)
}
