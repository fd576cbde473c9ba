package booking

// Stage names one step of the booking workflow. Exactly one handler executes
// per non-terminal stage; end_ok and end_fail terminate the session.
type Stage string

const (
	StageParseIntent     Stage = "parse_intent"
	StageCheckCalendar   Stage = "check_calendar"
	StageSearchProviders Stage = "search_providers"
	StageSelectProvider  Stage = "select_provider"
	StagePrepareScript   Stage = "prepare_script"
	StagePlaceCall       Stage = "place_call"
	StageNegotiate       Stage = "negotiate"
	StageFinalizeBooking Stage = "finalize_booking"
	StageHandleError     Stage = "handle_error"
	StageCloseSession    Stage = "close_session"

	StageEndOK   Stage = "end_ok"
	StageEndFail Stage = "end_fail"
)

// Terminal reports whether no further handler may execute after this stage.
func (s Stage) Terminal() bool {
	return s == StageEndOK || s == StageEndFail
}

// Outcome is the tagged result a handler returns; the router consumes it to
// pick the next stage.
type Outcome string

const (
	// parse_intent
	OutcomeConfirmed Outcome = "confirmed"
	OutcomeDenied    Outcome = "denied"
	OutcomeError     Outcome = "error"

	// check_calendar
	OutcomeFree          Outcome = "free"
	OutcomeBusyRetry     Outcome = "busy_retry"
	OutcomeBusyExhausted Outcome = "busy_exhausted"

	// search_providers
	OutcomeFound Outcome = "found"
	OutcomeEmpty Outcome = "empty"

	// select_provider
	OutcomeSelected    Outcome = "selected"
	OutcomeRejectedAll Outcome = "rejected_all"

	// prepare_script
	OutcomeApproved Outcome = "approved"
	OutcomeRejected Outcome = "rejected"

	// place_call
	OutcomeConnected Outcome = "connected"
	OutcomeFailed    Outcome = "failed"

	// negotiate (shares "confirmed" and "error" with parse_intent)
	OutcomeNeedAlternatives Outcome = "need_alternatives"
	OutcomeTimeout          Outcome = "timeout"

	// finalize_booking
	OutcomeSaved              Outcome = "saved"
	OutcomeSaveFailedNonfatal Outcome = "save_failed_nonfatal"

	// handle_error
	OutcomeRetry    Outcome = "retry"
	OutcomeFallback Outcome = "fallback"
	OutcomeAbandon  Outcome = "abandon"

	// close_session
	OutcomeRestart Outcome = "restart"
	OutcomeEnd     Outcome = "end"
)

// outcomeCancelled is recorded in the trace when the session context is
// cancelled mid-flight. It never enters the router.
const outcomeCancelled Outcome = "cancelled"

// outcomeSessionClosed is returned by the terminal-state guard wrapped around
// every handler. It never enters the router either: the engine stops before
// invoking handlers on a terminal session, the guard only protects direct
// invocation.
const outcomeSessionClosed Outcome = "session_closed"
