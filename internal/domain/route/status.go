package route

import (
	"errors"
	"strings"
)

// Status is the lifecycle state of a route session.
type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
)

var ErrInvalidStatus = errors.New("invalid session status")

// ParseStatus normalizes (lowercases+trims) and validates a status string.
func ParseStatus(in string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(in)))
	if status.Valid() {
		return status, nil
	}
	return "", ErrInvalidStatus
}

// Valid reports whether the status is one of the allowed status constants.
func (status Status) Valid() bool {
	switch status {
	case StatusActive, StatusPaused, StatusCompleted:
		return true
	default:
		return false
	}
}

// Open reports whether a session in this status still belongs to its rider's current route.
// At most one open session per employee may exist.
func (status Status) Open() bool {
	return status == StatusActive || status == StatusPaused
}

// Terminal indicates that the session can no longer change.
func (status Status) Terminal() bool {
	return status == StatusCompleted
}

// String returns the string representation of the Status.
func (status Status) String() string {
	return string(status)
}
