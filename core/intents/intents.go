// Package intents defines the structured booking intent extracted from a
// spoken utterance and the contract types shared by extractor
// implementations.
package intents

import (
	"fmt"
	"time"
)

// Intent is the structured form of a booking request. Fields are empty until
// an extractor populates them; Resolved reports whether enough of the intent
// is present to drive a booking.
type Intent struct {
	ServiceType   string  `json:"service_type" jsonschema_description:"Kind of service requested, e.g. haircut, italian restaurant"`
	PartySize     int     `json:"party_size" jsonschema_description:"Number of people the booking is for"`
	RequestedDate string  `json:"requested_date" jsonschema_description:"Requested date in YYYY-MM-DD format"`
	RequestedTime string  `json:"requested_time" jsonschema_description:"Requested time of day in HH:MM 24h format"`
	Location      string  `json:"location" jsonschema_description:"Area to search in, empty if not mentioned"`
	Confidence    float64 `json:"confidence" jsonschema_description:"Extractor confidence between 0 and 1"`
}

// Resolved reports whether service type, party size and a requested date and
// time have all been extracted.
func (i Intent) Resolved() bool {
	return i.ServiceType != "" &&
		i.PartySize > 0 &&
		i.RequestedDate != "" &&
		i.RequestedTime != ""
}

// StartTime parses the requested date and time into a concrete moment in the
// local timezone.
func (i Intent) StartTime() (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02 15:04",
		i.RequestedDate+" "+i.RequestedTime, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse requested slot: %w", err)
	}
	return t, nil
}

// Merge overlays the non-empty fields of other onto i. Used when the user
// supplies a correction, e.g. an alternative time after a calendar conflict.
func (i Intent) Merge(other Intent) Intent {
	merged := i
	if other.ServiceType != "" {
		merged.ServiceType = other.ServiceType
	}
	if other.PartySize > 0 {
		merged.PartySize = other.PartySize
	}
	if other.RequestedDate != "" {
		merged.RequestedDate = other.RequestedDate
	}
	if other.RequestedTime != "" {
		merged.RequestedTime = other.RequestedTime
	}
	if other.Location != "" {
		merged.Location = other.Location
	}
	return merged
}

// ParseError signals that an utterance could not be turned into a usable
// intent. It is user-correctable: callers should re-prompt rather than fail
// the session.
type ParseError struct {
	Utterance string
	Reason    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse intent from %q: %s", e.Utterance, e.Reason)
}
