package booking

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/hiyadrive/hiya-core/core/calendar"
	"github.com/hiyadrive/hiya-core/core/messages"
	"github.com/hiyadrive/hiya-core/core/speech"
)

// checkCalendar verifies the user is free at the requested slot. On a
// conflict it asks for an alternative time, folds the reply into the intent
// and loops back through the router, up to MaxCalendarRetries alternatives.
// A booking is never attempted without confirmed availability.
func (e *Engine) checkCalendar(ctx context.Context, s *BookingState) Outcome {
	ctx, span := tracer.Start(ctx, "check calendar")
	defer span.End()
	span.SetAttributes(attribute.Int("calendar.retry_count", s.CalendarRetryCount))

	start, err := s.Intent.StartTime()
	if err != nil {
		s.appendError(ErrorKindCalendar, StageCheckCalendar, err.Error(), false)
		return OutcomeError
	}

	free, err := e.availability.IsFree(ctx, start, e.config.bookingDuration)
	if err != nil {
		recordedErr := fmt.Errorf("calendar check failed: %w", err)
		span.RecordError(recordedErr)
		span.SetStatus(codes.Error, recordedErr.Error())
		retriable := !errors.Is(err, calendar.ErrUnavailable)
		s.appendError(ErrorKindCalendar, StageCheckCalendar, recordedErr.Error(), retriable)
		return OutcomeError
	}

	if free {
		s.CalendarFree = true
		e.speak(ctx, messages.KindCalendarFree, messageContext(s))
		return OutcomeFree
	}

	s.CalendarFree = false
	if s.CalendarRetryCount >= s.MaxCalendarRetries {
		e.speak(ctx, messages.KindCalendarExhausted, messageContext(s))
		return OutcomeBusyExhausted
	}
	s.CalendarRetryCount++

	e.speak(ctx, messages.KindCalendarBusy, messageContext(s))
	reply, err := e.speechIn.Listen(ctx, e.config.listenTimeout)
	if err != nil {
		if errors.Is(err, speech.ErrTimeout) {
			// No alternative offered; re-check consumes the retry either
			// way so the bound holds.
			return OutcomeBusyRetry
		}
		s.appendError(ErrorKindSpeech, StageCheckCalendar, err.Error(), true)
		return OutcomeError
	}

	alternative, err := e.intents.Extract(ctx, reply)
	if err == nil {
		s.Intent = s.Intent.Merge(alternative)
	} else {
		logger.WarnContext(ctx, "could not parse alternative time, re-checking requested slot",
			"session_id", s.SessionID, "error", err)
	}
	return OutcomeBusyRetry
}

// finalizeBooking persists the confirmed booking to the calendar and tells
// the user. Persistence failure after a confirmed call is non-fatal: the
// provider already holds the reservation, so the session still completes.
func (e *Engine) finalizeBooking(ctx context.Context, s *BookingState) Outcome {
	ctx, span := tracer.Start(ctx, "finalize booking")
	defer span.End()

	c := messageContext(s)
	e.speak(ctx, messages.KindBookingConfirmed, c)

	event := calendar.Event{
		Title:              bookingTitle(s),
		Duration:           e.config.bookingDuration,
		ConfirmationNumber: s.ConfirmationNumber,
	}
	if s.SelectedProvider != nil {
		event.Location = s.SelectedProvider.Address
		event.Notes = "Booked by HiyaDrive, phone " + s.SelectedProvider.Phone
	}
	if start, err := s.Intent.StartTime(); err == nil {
		event.Start = start
	}

	if err := e.availability.SaveEvent(ctx, event); err != nil {
		recordedErr := fmt.Errorf("failed to save booking event: %w", err)
		span.RecordError(recordedErr)
		span.SetStatus(codes.Error, recordedErr.Error())
		s.appendError(ErrorKindPersistence, StageFinalizeBooking, recordedErr.Error(), false)
		logger.WarnContext(ctx, "booking confirmed but not persisted",
			"session_id", s.SessionID, "error", err)
		return OutcomeSaveFailedNonfatal
	}

	logger.InfoContext(ctx, "booking saved",
		"session_id", s.SessionID, "confirmation", s.ConfirmationNumber)
	return OutcomeSaved
}

func bookingTitle(s *BookingState) string {
	if s.SelectedProvider != nil {
		return fmt.Sprintf("%s at %s", s.Intent.ServiceType, s.SelectedProvider.Name)
	}
	return s.Intent.ServiceType
}
