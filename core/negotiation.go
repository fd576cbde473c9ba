package booking

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hiyadrive/hiya-core/core/messages"
	"github.com/hiyadrive/hiya-core/core/telephony"
)

// confirmationTokenPattern extracts a bounded alphanumeric confirmation
// token from phrases like "your confirmation number is 4892". A pattern
// match, not inference: routing never depends on free-form model output.
var confirmationTokenPattern = regexp.MustCompile(
	`(?i)confirmation(?:\s+(?:number|code))?(?:\s+is)?[:\s#]*([A-Za-z0-9]{3,10})\b`)

// negotiate runs the bounded turn-based exchange with the provider over the
// live call. Each turn waits for the provider, generates a reply from the
// accumulated transcript, speaks it into the call and scans it for a
// terminal marker. The call handle is owned exclusively by this stage and
// is hung up on every exit path.
func (e *Engine) negotiate(ctx context.Context, s *BookingState) Outcome {
	ctx, span := tracer.Start(ctx, "negotiate")
	defer span.End()

	call := s.CallHandle
	if call == nil {
		s.appendError(ErrorKindNegotiation, StageNegotiate, "negotiation without an active call", false)
		return OutcomeError
	}
	defer func() {
		if err := call.Hangup(); err != nil {
			logger.WarnContext(ctx, "failed to hang up call",
				"session_id", s.SessionID, "call_id", s.CallID, "error", err)
		}
		s.CallHandle = nil
	}()

	ctx, cancel := context.WithTimeout(ctx, e.config.negotiationTimeout)
	defer cancel()

	s.TurnCount = 0
	if s.CallScript != "" {
		if err := call.Send(ctx, s.CallScript); err != nil {
			return e.abortNegotiation(ctx, span, s, err)
		}
		s.addTranscript("assistant", s.CallScript)
	}

	consecutiveTimeouts := 0
	for s.TurnCount < e.config.turnCap {
		if ctx.Err() != nil {
			span.SetAttributes(attribute.Int("negotiation.turns", s.TurnCount))
			return e.timeoutNegotiation(ctx, s, "negotiation wall clock expired")
		}

		utterance, err := call.Receive(ctx, e.config.silenceTimeout)
		if err != nil {
			if errors.Is(err, telephony.ErrReceiveTimeout) {
				consecutiveTimeouts++
				if consecutiveTimeouts >= 2 {
					return e.timeoutNegotiation(ctx, s, "provider went silent")
				}
				prompt := e.generator.Generate(ctx, messages.KindStillThere, messageContext(s))
				if sendErr := call.Send(ctx, prompt); sendErr != nil {
					return e.abortNegotiation(ctx, span, s, sendErr)
				}
				continue
			}
			if ctx.Err() != nil {
				return e.timeoutNegotiation(ctx, s, "negotiation wall clock expired")
			}
			return e.abortNegotiation(ctx, span, s, err)
		}
		consecutiveTimeouts = 0
		s.TurnCount++
		s.addTranscript("provider", utterance)

		c := messageContext(s)
		c.LastUtterance = utterance
		c.Transcript = s.transcriptLines()
		reply := e.generator.Generate(ctx, messages.KindNegotiationReply, c)
		s.addTranscript("assistant", reply)

		if err := call.Send(ctx, stripMarkers(reply)); err != nil {
			return e.abortNegotiation(ctx, span, s, err)
		}

		switch {
		case strings.Contains(reply, messages.MarkerConfirmed):
			s.ConfirmationNumber = extractConfirmationToken(s.Transcript)
			span.SetAttributes(
				attribute.Int("negotiation.turns", s.TurnCount),
				attribute.String("negotiation.confirmation", s.ConfirmationNumber),
			)
			logger.InfoContext(ctx, "booking confirmed on call",
				"session_id", s.SessionID,
				"turns", s.TurnCount,
				"confirmation", s.ConfirmationNumber)
			return OutcomeConfirmed

		case strings.Contains(reply, messages.MarkerAlternatives),
			strings.Contains(reply, messages.MarkerDeclined):
			logger.InfoContext(ctx, "provider declined, looking for alternatives",
				"session_id", s.SessionID, "turns", s.TurnCount)
			return OutcomeNeedAlternatives
		}
	}

	span.SetAttributes(attribute.Int("negotiation.turns", s.TurnCount))
	return e.timeoutNegotiation(ctx, s, "negotiation turn cap reached")
}

// timeoutNegotiation records an expired negotiation as a fatal error;
// recovery reads the most recent record, never an older one.
func (e *Engine) timeoutNegotiation(ctx context.Context, s *BookingState, reason string) Outcome {
	s.appendError(ErrorKindNegotiation, StageNegotiate, reason, false)
	logger.InfoContext(ctx, "negotiation timed out",
		"session_id", s.SessionID,
		"call_id", s.CallID,
		"turns", s.TurnCount,
		"reason", reason)
	return OutcomeTimeout
}

// abortNegotiation converts a channel failure mid-negotiation into an error
// outcome. Disconnection aborts immediately regardless of turn position.
func (e *Engine) abortNegotiation(ctx context.Context, span trace.Span, s *BookingState, err error) Outcome {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	s.appendError(ErrorKindNegotiation, StageNegotiate, err.Error(),
		!errors.Is(err, telephony.ErrDisconnected))
	logger.WarnContext(ctx, "negotiation aborted",
		"session_id", s.SessionID, "call_id", s.CallID, "error", err)
	return OutcomeError
}

// stripMarkers removes routing markers before text reaches the wire; the
// remote party never hears them.
func stripMarkers(reply string) string {
	for _, marker := range []string{
		messages.MarkerConfirmed, messages.MarkerAlternatives, messages.MarkerDeclined,
	} {
		reply = strings.ReplaceAll(reply, marker, "")
	}
	return strings.TrimSpace(reply)
}

// extractConfirmationToken scans the transcript newest-first for a
// confirmation token spoken by the provider.
func extractConfirmationToken(transcript []TranscriptEntry) string {
	for i := len(transcript) - 1; i >= 0; i-- {
		if transcript[i].Role != "provider" {
			continue
		}
		if match := confirmationTokenPattern.FindStringSubmatch(transcript[i].Content); match != nil {
			return match[1]
		}
	}
	return ""
}
