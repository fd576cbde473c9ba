package booking

import "fmt"

// edge is one (stage, outcome) pair of the transition table.
type edge struct {
	stage   Stage
	outcome Outcome
}

// stageOutcomes declares the complete outcome vocabulary per stage. The
// router is validated against it at engine construction: a declared pair
// without a transition is a programming error, caught before any session
// runs.
var stageOutcomes = map[Stage][]Outcome{
	StageParseIntent:     {OutcomeConfirmed, OutcomeDenied, OutcomeError},
	StageCheckCalendar:   {OutcomeFree, OutcomeBusyRetry, OutcomeBusyExhausted, OutcomeError},
	StageSearchProviders: {OutcomeFound, OutcomeEmpty, OutcomeError},
	StageSelectProvider:  {OutcomeSelected, OutcomeRejectedAll},
	StagePrepareScript:   {OutcomeApproved, OutcomeRejected},
	StagePlaceCall:       {OutcomeConnected, OutcomeFailed},
	StageNegotiate:       {OutcomeConfirmed, OutcomeNeedAlternatives, OutcomeTimeout, OutcomeError},
	StageFinalizeBooking: {OutcomeSaved, OutcomeSaveFailedNonfatal},
	StageHandleError:     {OutcomeRetry, OutcomeFallback, OutcomeAbandon},
	StageCloseSession:    {OutcomeRestart, OutcomeEnd},
}

// router maps (stage, outcome) to the next stage. Most edges are static;
// the few that must inspect state are conditional functions. The router
// never mutates state.
type router struct {
	static      map[edge]Stage
	conditional map[edge]func(*BookingState) Stage
}

func newRouter(cfg config) router {
	return router{
		static: map[edge]Stage{
			{StageParseIntent, OutcomeConfirmed}: StageCheckCalendar,
			{StageParseIntent, OutcomeError}:     StageHandleError,

			{StageCheckCalendar, OutcomeFree}:          StageSearchProviders,
			{StageCheckCalendar, OutcomeBusyExhausted}: StageEndFail,
			{StageCheckCalendar, OutcomeError}:         StageHandleError,

			{StageSearchProviders, OutcomeFound}: StageSelectProvider,
			{StageSearchProviders, OutcomeError}: StageHandleError,

			{StageSelectProvider, OutcomeSelected}: StagePrepareScript,

			{StagePrepareScript, OutcomeApproved}: StagePlaceCall,
			{StagePrepareScript, OutcomeRejected}: StageCloseSession,

			{StagePlaceCall, OutcomeConnected}: StageNegotiate,
			{StagePlaceCall, OutcomeFailed}:    StageHandleError,

			{StageNegotiate, OutcomeConfirmed}:        StageFinalizeBooking,
			{StageNegotiate, OutcomeNeedAlternatives}: StageSearchProviders,
			{StageNegotiate, OutcomeTimeout}:          StageHandleError,
			{StageNegotiate, OutcomeError}:            StageHandleError,

			{StageFinalizeBooking, OutcomeSaved}:              StageCloseSession,
			{StageFinalizeBooking, OutcomeSaveFailedNonfatal}: StageCloseSession,

			{StageHandleError, OutcomeFallback}: StageFinalizeBooking,
			{StageHandleError, OutcomeAbandon}:  StageEndFail,

			{StageCloseSession, OutcomeRestart}: StageParseIntent,
		},
		conditional: map[edge]func(*BookingState) Stage{
			// Re-confirm the intent only within the confirmation budget,
			// then hand the repeated denial to error recovery.
			{StageParseIntent, OutcomeDenied}: func(s *BookingState) Stage {
				if s.IntentDenials <= cfg.confirmBudget {
					return StageParseIntent
				}
				return StageHandleError
			},

			// The retry branch of the calendar check. The handler already
			// emits busy_exhausted at the limit; the count comparison here
			// guarantees the bound holds regardless.
			{StageCheckCalendar, OutcomeBusyRetry}: func(s *BookingState) Stage {
				if s.CalendarRetryCount <= s.MaxCalendarRetries {
					return StageCheckCalendar
				}
				return StageEndFail
			},

			// Broadened re-search is capped; past the budget the miss is an
			// error condition.
			{StageSearchProviders, OutcomeEmpty}: func(s *BookingState) Stage {
				if s.SearchExpansions <= cfg.searchExpansionBudget {
					return StageSearchProviders
				}
				return StageHandleError
			},
			{StageSelectProvider, OutcomeRejectedAll}: func(s *BookingState) Stage {
				if s.SearchExpansions <= cfg.searchExpansionBudget {
					return StageSearchProviders
				}
				return StageHandleError
			},

			// Retry returns to the stage named by the most recent error
			// record.
			{StageHandleError, OutcomeRetry}: func(s *BookingState) Stage {
				if last := s.lastError(); last != nil && !last.Stage.Terminal() && last.Stage != "" {
					return last.Stage
				}
				return StageEndFail
			},

			// The session ends well only if a booking was actually made.
			{StageCloseSession, OutcomeEnd}: func(s *BookingState) Stage {
				if s.ConfirmationNumber != "" {
					return StageEndOK
				}
				return StageEndFail
			},
		},
	}
}

// next resolves the transition for one handler outcome. An unmapped pair is
// a defect, not a runtime condition, and is the only error the engine can
// surface.
func (r router) next(stage Stage, outcome Outcome, s *BookingState) (Stage, error) {
	key := edge{stage, outcome}
	if decide, ok := r.conditional[key]; ok {
		return decide(s), nil
	}
	if next, ok := r.static[key]; ok {
		return next, nil
	}
	return "", fmt.Errorf("no transition defined for stage %q outcome %q", stage, outcome)
}

// validate checks the transition table against the declared outcome
// vocabulary: every reachable (stage, outcome) pair must map to a defined
// next stage, and no transition may originate from a terminal stage.
func (r router) validate() error {
	for stage, outcomes := range stageOutcomes {
		for _, outcome := range outcomes {
			key := edge{stage, outcome}
			_, static := r.static[key]
			_, conditional := r.conditional[key]
			if !static && !conditional {
				return fmt.Errorf("transition table incomplete: stage %q outcome %q unmapped", stage, outcome)
			}
			if static && conditional {
				return fmt.Errorf("transition table ambiguous: stage %q outcome %q mapped twice", stage, outcome)
			}
		}
	}
	for key := range r.static {
		if key.stage.Terminal() {
			return fmt.Errorf("transition table invalid: terminal stage %q has outgoing edge", key.stage)
		}
	}
	for key := range r.conditional {
		if key.stage.Terminal() {
			return fmt.Errorf("transition table invalid: terminal stage %q has outgoing edge", key.stage)
		}
	}
	return nil
}
