package errors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrPermission   = errors.New("permission denied")
	ErrInvalid      = errors.New("invalid")
	ErrInvalidState = errors.New("invalid state")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrRevoked      = errors.New("revoked")
	ErrPassword     = errors.New("password error")
	ErrTooMany      = errors.New("too many requests")
	ErrInternal     = errors.New("internal")
)

var (
	ErrPasswordRequired  = fmt.Errorf("%w: password required", ErrPassword)
	ErrPasswordIncorrect = fmt.Errorf("%w: password incorrect", ErrPassword)
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
