package booking

import (
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"

	"github.com/hiyadrive/hiya-core/core/directory"
	"github.com/hiyadrive/hiya-core/core/intents"
	"github.com/hiyadrive/hiya-core/core/telephony"
)

// SessionStatus is the lifecycle status of one booking session. It is
// terminal once Completed or Failed.
type SessionStatus string

const (
	StatusActive    SessionStatus = "active"
	StatusCompleted SessionStatus = "completed"
	StatusFailed    SessionStatus = "failed"
)

// ErrorKind classifies an error record for recovery decisions.
type ErrorKind string

const (
	ErrorKindIntent      ErrorKind = "intent"
	ErrorKindSpeech      ErrorKind = "speech"
	ErrorKindCalendar    ErrorKind = "calendar"
	ErrorKindSearch      ErrorKind = "search"
	ErrorKindCall        ErrorKind = "call"
	ErrorKindNegotiation ErrorKind = "negotiation"
	ErrorKindPersistence ErrorKind = "persistence"
	ErrorKindCancelled   ErrorKind = "cancelled"
)

// ErrorRecord is one entry of the append-only error trail. Only the most
// recent record drives routing; none are ever removed.
type ErrorRecord struct {
	Kind      ErrorKind
	Message   string
	Stage     Stage
	Retriable bool
	At        time.Time
}

// TranscriptEntry is one utterance of the negotiation exchange.
type TranscriptEntry struct {
	Role    string // "assistant" or "provider"
	Content string
}

// BookingState is the single record threaded through every workflow stage.
// It is owned by the engine for the lifetime of one session, mutated only by
// handlers and read by the router; it is never shared across sessions.
type BookingState struct {
	SessionID string
	Status    SessionStatus
	StartedAt time.Time

	RawUtterance string
	Intent       intents.Intent

	CalendarFree       bool
	CalendarRetryCount int
	MaxCalendarRetries int

	CandidateProviders []directory.Provider
	SelectedProvider   *directory.Provider
	SearchExpansions   int

	CallScript   string
	CallApproved bool
	// CallHandle is the live call channel, exclusively owned by the
	// negotiate stage for its duration. Nil outside an active call.
	CallHandle telephony.Call `copier:"-"`
	CallID     string

	ConfirmationNumber string

	Errors     []ErrorRecord
	TurnCount  int
	Transcript []TranscriptEntry

	// StageRetries tracks how often each stage has been re-entered through
	// error recovery; the router compares it against the session retry
	// budget.
	StageRetries map[Stage]int

	// IntentDenials counts denied or failed intent read-backs, compared
	// against the confirmation budget. Separate from StageRetries so a
	// denial never consumes error-recovery budget.
	IntentDenials int
}

func newBookingState(utterance string, maxCalendarRetries int) *BookingState {
	return &BookingState{
		SessionID:          uuid.NewString(),
		Status:             StatusActive,
		StartedAt:          time.Now(),
		RawUtterance:       utterance,
		MaxCalendarRetries: maxCalendarRetries,
		StageRetries:       map[Stage]int{},
	}
}

// Terminal reports whether the session has reached a final status. Once
// terminal, handlers refuse to mutate the state any further.
func (s *BookingState) Terminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusFailed
}

// IntentResolved reports whether enough of the intent has been extracted to
// proceed past parsing.
func (s *BookingState) IntentResolved() bool {
	return s.Intent.Resolved()
}

func (s *BookingState) appendError(kind ErrorKind, stage Stage, message string, retriable bool) {
	s.Errors = append(s.Errors, ErrorRecord{
		Kind:      kind,
		Message:   message,
		Stage:     stage,
		Retriable: retriable,
		At:        time.Now(),
	})
}

// lastError returns the most recent error record, or nil.
func (s *BookingState) lastError() *ErrorRecord {
	if len(s.Errors) == 0 {
		return nil
	}
	return &s.Errors[len(s.Errors)-1]
}

func (s *BookingState) addTranscript(role, content string) {
	s.Transcript = append(s.Transcript, TranscriptEntry{Role: role, Content: content})
}

func (s *BookingState) transcriptLines() []string {
	lines := make([]string, 0, len(s.Transcript))
	for _, entry := range s.Transcript {
		lines = append(lines, entry.Role+": "+entry.Content)
	}
	return lines
}

// topCandidates returns the first n candidates in search-rank order. The
// shortlist is derived, never stored separately.
func (s *BookingState) topCandidates(n int) []directory.Provider {
	if len(s.CandidateProviders) < n {
		n = len(s.CandidateProviders)
	}
	return s.CandidateProviders[:n]
}

// resetForRestart clears the per-booking fields so a fresh request can run in
// the same session. The session identity and the error trail survive.
func (s *BookingState) resetForRestart() {
	s.RawUtterance = ""
	s.Intent = intents.Intent{}
	s.CalendarFree = false
	s.CalendarRetryCount = 0
	s.CandidateProviders = nil
	s.SelectedProvider = nil
	s.SearchExpansions = 0
	s.CallScript = ""
	s.CallApproved = false
	s.CallHandle = nil
	s.CallID = ""
	s.ConfirmationNumber = ""
	s.TurnCount = 0
	s.Transcript = nil
	s.IntentDenials = 0
}

// Snapshot returns a deep copy of the state for read-only inspection. The
// live call handle is not carried over.
func (s *BookingState) Snapshot() BookingState {
	var snapshot BookingState
	if err := copier.CopyWithOption(&snapshot, s, copier.Option{DeepCopy: true}); err != nil {
		// Copying a plain value struct cannot realistically fail; fall back
		// to the shallow copy rather than surfacing an error to readers.
		snapshot = *s
	}
	snapshot.CallHandle = nil
	return snapshot
}
