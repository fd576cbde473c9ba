package booking

import (
	"context"
	"errors"
	"strings"

	"github.com/hiyadrive/hiya-core/core/intents"
	"github.com/hiyadrive/hiya-core/core/messages"
	"github.com/hiyadrive/hiya-core/core/speech"
)

// parseIntent extracts a structured intent from the user's utterance, reads
// it back and waits for a yes/no. A denial or an unparseable utterance
// clears the utterance and loops back through the router so the user can
// rephrase; only port failures become errors.
func (e *Engine) parseIntent(ctx context.Context, s *BookingState) Outcome {
	ctx, span := tracer.Start(ctx, "parse intent")
	defer span.End()

	if s.RawUtterance == "" {
		e.speak(ctx, messages.KindGreeting, messageContext(s))
		utterance, err := e.speechIn.Listen(ctx, e.config.listenTimeout)
		if err != nil {
			if errors.Is(err, speech.ErrTimeout) {
				s.IntentDenials++
				return OutcomeDenied
			}
			s.appendError(ErrorKindSpeech, StageParseIntent, err.Error(), true)
			return OutcomeError
		}
		s.RawUtterance = utterance
	}

	intent, err := e.intents.Extract(ctx, s.RawUtterance)
	if err != nil {
		var parseErr *intents.ParseError
		if errors.As(err, &parseErr) {
			// User-correctable: re-prompt instead of failing the session.
			e.speak(ctx, messages.KindClarify, messageContext(s))
			s.RawUtterance = ""
			s.IntentDenials++
			return OutcomeDenied
		}
		s.appendError(ErrorKindIntent, StageParseIntent, err.Error(), true)
		return OutcomeError
	}

	s.Intent = s.Intent.Merge(intent)
	if !s.IntentResolved() {
		e.speak(ctx, messages.KindClarify, messageContext(s))
		s.RawUtterance = ""
		s.IntentDenials++
		return OutcomeDenied
	}

	e.speak(ctx, messages.KindIntentConfirmation, messageContext(s))
	reply, err := e.speechIn.Listen(ctx, e.config.listenTimeout)
	if err != nil && !errors.Is(err, speech.ErrTimeout) {
		s.appendError(ErrorKindSpeech, StageParseIntent, err.Error(), true)
		return OutcomeError
	}

	// Silence counts as assent: the user is hands-free and has already
	// heard the read-back.
	if isNegative(reply) {
		e.speak(ctx, messages.KindClarify, messageContext(s))
		s.RawUtterance = ""
		s.Intent = intents.Intent{}
		s.IntentDenials++
		return OutcomeDenied
	}

	logger.InfoContext(ctx, "intent confirmed",
		"session_id", s.SessionID,
		"service_type", s.Intent.ServiceType,
		"party_size", s.Intent.PartySize,
		"date", s.Intent.RequestedDate,
		"time", s.Intent.RequestedTime)
	return OutcomeConfirmed
}

func isNegative(reply string) bool {
	reply = strings.ToLower(reply)
	for _, word := range []string{"no", "nope", "wrong", "incorrect", "cancel"} {
		if containsWord(reply, word) {
			return true
		}
	}
	return false
}

func isAffirmative(reply string) bool {
	reply = strings.ToLower(reply)
	for _, word := range []string{"yes", "yeah", "yep", "sure", "okay", "ok", "correct", "go ahead", "please do"} {
		if containsWord(reply, word) {
			return true
		}
	}
	return false
}

// containsWord matches on word boundaries so "no" does not fire inside
// "another" or "now". Works for multi-word phrases too.
func containsWord(haystack, word string) bool {
	cleaned := strings.Map(func(r rune) rune {
		if ('a' <= r && r <= 'z') || ('0' <= r && r <= '9') {
			return r
		}
		return ' '
	}, haystack)
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	return strings.Contains(" "+cleaned+" ", " "+word+" ")
}
