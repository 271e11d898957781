package models

import (
	"errors"
	"fmt"
)

var (
	ErrPostNotFound    = errors.New("post not found")
	ErrInvalidToken    = errors.New("invalid anti-forgery token")
	ErrSessionNotFound = errors.New("session not found or expired")
)

// ValidationError reports why a submission was rejected
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// StoreConnectionError is returned when the board store cannot be opened
type StoreConnectionError struct {
	Driver string
	Err    error
}

func (e *StoreConnectionError) Error() string {
	return fmt.Sprintf("error establishing %s database connection: %v", e.Driver, e.Err)
}

func (e *StoreConnectionError) Unwrap() error {
	return e.Err
}
