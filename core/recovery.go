package booking

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	"github.com/hiyadrive/hiya-core/core/messages"
	"github.com/hiyadrive/hiya-core/core/speech"
)

// handleError decides what to do about the most recent error record. A
// retriable error with budget left re-enters the stage that failed; a
// confirmed booking falls forward to finalization so the reservation the
// provider already holds is not lost; everything else abandons the session
// with an apology. The apology never repeats the diagnostic message.
func (e *Engine) handleError(ctx context.Context, s *BookingState) Outcome {
	ctx, span := tracer.Start(ctx, "handle error")
	defer span.End()

	last := s.lastError()
	if last == nil {
		// Routed here without an error record, e.g. through the exhausted
		// intent confirmation budget. Still one apology before giving up.
		e.speak(ctx, messages.KindApology, messageContext(s))
		logger.WarnContext(ctx, "abandoning session without an error record",
			"session_id", s.SessionID)
		return OutcomeAbandon
	}
	span.SetAttributes(
		attribute.String("error.kind", string(last.Kind)),
		attribute.String("error.stage", string(last.Stage)),
		attribute.Bool("error.retriable", last.Retriable),
	)

	if last.Retriable && s.StageRetries[last.Stage] < e.config.stageRetryBudget {
		s.StageRetries[last.Stage]++
		e.speak(ctx, messages.KindRetrying, messageContext(s))
		logger.InfoContext(ctx, "retrying failed stage",
			"session_id", s.SessionID,
			"stage", string(last.Stage),
			"attempt", s.StageRetries[last.Stage])
		return OutcomeRetry
	}

	if s.ConfirmationNumber != "" {
		logger.InfoContext(ctx, "error after confirmed call, falling forward to finalization",
			"session_id", s.SessionID, "confirmation", s.ConfirmationNumber)
		return OutcomeFallback
	}

	e.speak(ctx, messages.KindApology, messageContext(s))
	logger.WarnContext(ctx, "abandoning session",
		"session_id", s.SessionID,
		"kind", string(last.Kind),
		"stage", string(last.Stage),
		"error", last.Message)
	return OutcomeAbandon
}

// closeSession says goodbye, offers a fresh start and either resets the
// per-booking fields or lets the session reach its terminal stage. The
// terminal stage itself is picked by the router from whether a confirmation
// number was obtained.
func (e *Engine) closeSession(ctx context.Context, s *BookingState) Outcome {
	ctx, span := tracer.Start(ctx, "close session")
	defer span.End()

	e.speak(ctx, messages.KindGoodbye, messageContext(s))
	e.speak(ctx, messages.KindRestartPrompt, messageContext(s))

	reply, err := e.speechIn.Listen(ctx, e.config.listenTimeout)
	if err != nil && !errors.Is(err, speech.ErrTimeout) {
		logger.WarnContext(ctx, "failed to hear restart answer, ending session",
			"session_id", s.SessionID, "error", err)
	}

	if isAffirmative(reply) {
		logger.InfoContext(ctx, "restarting session for a new request",
			"session_id", s.SessionID)
		s.resetForRestart()
		return OutcomeRestart
	}
	return OutcomeEnd
}
