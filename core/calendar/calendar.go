// Package calendar holds the contract types shared by availability checker
// implementations.
package calendar

import (
	"errors"
	"time"
)

// ErrUnavailable signals that the calendar backend could not be consulted at
// all (auth failure, backend down). Distinct from a slot being busy, which is
// a normal answer.
var ErrUnavailable = errors.New("calendar unavailable")

// Event is the minimal booking record persisted after a confirmed call.
type Event struct {
	Title              string
	Location           string
	Notes              string
	Start              time.Time
	Duration           time.Duration
	ConfirmationNumber string
}
