package domain

import "errors"

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionExists      = errors.New("session already exists")
	ErrSessionClosed      = errors.New("session closed")
	ErrInvalidConstraints = errors.New("invalid layout constraints")
)
