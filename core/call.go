package booking

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/hiyadrive/hiya-core/core/messages"
	"github.com/hiyadrive/hiya-core/core/speech"
)

// prepareScript generates the call opening script, previews it to the user
// and asks for permission to dial. Approval must be explicit: silence or
// anything but a clear yes cancels the call.
func (e *Engine) prepareScript(ctx context.Context, s *BookingState) Outcome {
	ctx, span := tracer.Start(ctx, "prepare call script")
	defer span.End()

	s.CallScript = e.generator.Generate(ctx, messages.KindCallScript, messageContext(s))

	preview := messageContext(s)
	preview.LastUtterance = s.CallScript
	e.speak(ctx, messages.KindScriptPreview, preview)
	e.speak(ctx, messages.KindCallApproval, messageContext(s))

	reply, err := e.speechIn.Listen(ctx, e.config.listenTimeout)
	if err != nil && !errors.Is(err, speech.ErrTimeout) {
		logger.WarnContext(ctx, "failed to hear call approval, treating as declined",
			"session_id", s.SessionID, "error", err)
	}

	if !isAffirmative(reply) {
		e.speak(ctx, messages.KindCallCancelled, messageContext(s))
		logger.InfoContext(ctx, "call declined by user", "session_id", s.SessionID)
		return OutcomeRejected
	}

	s.CallApproved = true
	return OutcomeApproved
}

// placeCall dials the selected provider. The approval invariant is enforced
// here a second time: without explicit approval no call is ever placed.
func (e *Engine) placeCall(ctx context.Context, s *BookingState) Outcome {
	ctx, span := tracer.Start(ctx, "place call")
	defer span.End()

	if !s.CallApproved {
		s.appendError(ErrorKindCall, StagePlaceCall, "call placement without approval", false)
		return OutcomeFailed
	}
	if s.SelectedProvider == nil || s.SelectedProvider.Phone == "" {
		s.appendError(ErrorKindCall, StagePlaceCall, "no provider phone number to call", false)
		return OutcomeFailed
	}

	span.SetAttributes(attribute.String("call.provider", s.SelectedProvider.Name))
	call, err := e.calls.Place(ctx, s.SelectedProvider.Phone)
	if err != nil {
		recordedErr := fmt.Errorf("failed to place call to %s: %w", s.SelectedProvider.Name, err)
		span.RecordError(recordedErr)
		span.SetStatus(codes.Error, recordedErr.Error())
		s.appendError(ErrorKindCall, StagePlaceCall, recordedErr.Error(), true)
		return OutcomeFailed
	}

	s.CallHandle = call
	s.CallID = call.ID()
	e.speak(ctx, messages.KindCallConnected, messageContext(s))
	logger.InfoContext(ctx, "call connected",
		"session_id", s.SessionID, "call_id", s.CallID)
	return OutcomeConnected
}
