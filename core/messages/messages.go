// Package messages defines the spoken-message contract used by the booking
// workflow: the template kinds a generator can be asked for, the context
// handed to it, and a deterministic fallback for every kind so a generator
// failure never blocks a session.
package messages

import (
	"context"
	"fmt"
	"strings"
)

// Kind identifies a message template. Generators may phrase the message
// freely but must preserve its meaning; for KindNegotiationReply they must
// also embed exactly one terminal marker when the exchange has concluded.
type Kind string

const (
	KindGreeting           Kind = "greeting"
	KindIntentConfirmation Kind = "intent_confirmation"
	KindClarify            Kind = "clarify"
	KindCalendarFree       Kind = "calendar_free"
	KindCalendarBusy       Kind = "calendar_busy"
	KindCalendarExhausted  Kind = "calendar_exhausted"
	KindSearching          Kind = "searching"
	KindSearchResults      Kind = "search_results"
	KindSearchBroadened    Kind = "search_broadened"
	KindProviderOption     Kind = "provider_option"
	KindSelectionPrompt    Kind = "selection_prompt"
	KindSelectionRejected  Kind = "selection_rejected"
	KindProviderSelected   Kind = "provider_selected"
	KindCallScript         Kind = "call_script"
	KindScriptPreview      Kind = "script_preview"
	KindCallApproval       Kind = "call_approval"
	KindCallCancelled      Kind = "call_cancelled"
	KindCallConnected      Kind = "call_connected"
	KindNegotiationReply   Kind = "negotiation_reply"
	KindStillThere         Kind = "still_there"
	KindBookingConfirmed   Kind = "booking_confirmed"
	KindRetrying           Kind = "retrying"
	KindApology            Kind = "apology"
	KindGoodbye            Kind = "goodbye"
	KindRestartPrompt      Kind = "restart_prompt"
)

// Terminal markers scanned for in negotiation replies. Marker matching is a
// deterministic string comparison so routing never depends on free-form
// inference.
const (
	MarkerConfirmed    = "[BOOKING_CONFIRMED]"
	MarkerAlternatives = "[NEED_ALTERNATIVES]"
	MarkerDeclined     = "[DECLINED]"
)

// Context carries the state fields a template may interpolate. Only the
// fields relevant to the requested kind need to be set.
type Context struct {
	ServiceType        string
	PartySize          int
	Date               string
	Time               string
	Location           string
	ProviderName       string
	ProviderAddress    string
	ProviderRating     float64
	OptionIndex        int
	ResultCount        int
	ConfirmationNumber string
	LastUtterance      string
	Transcript         []string
}

// Fallback returns the deterministic message for a kind. It never fails and
// never returns an empty string, which makes it both the degraded path for
// LLM-backed generators and a usable generator on its own.
func Fallback(kind Kind, c Context) string {
	switch kind {
	case KindGreeting:
		return "Hi! I can find and book an appointment for you. What would you like?"
	case KindIntentConfirmation:
		return fmt.Sprintf(
			"I understood a booking for %d, %s, on %s at %s. Is that correct?",
			c.PartySize, c.ServiceType, c.Date, c.Time)
	case KindClarify:
		return "Sorry, I didn't quite catch that. Could you tell me again what you'd like to book?"
	case KindCalendarFree:
		return fmt.Sprintf("Good news, you're free on %s at %s.", c.Date, c.Time)
	case KindCalendarBusy:
		return fmt.Sprintf(
			"It looks like you already have something on %s at %s. What other time would work?",
			c.Date, c.Time)
	case KindCalendarExhausted:
		return "I couldn't find a time that fits your calendar, so I'll stop here."
	case KindSearching:
		return fmt.Sprintf("Searching for %s near %s...", c.ServiceType, c.Location)
	case KindSearchResults:
		return fmt.Sprintf("I found %d options for you.", c.ResultCount)
	case KindSearchBroadened:
		return "Nothing came up, let me widen the search a little."
	case KindProviderOption:
		return fmt.Sprintf("Option %d: %s, rated %.1f stars, at %s.",
			c.OptionIndex, c.ProviderName, c.ProviderRating, c.ProviderAddress)
	case KindSelectionPrompt:
		return "Say an option number, or I'll go with the highest rated one."
	case KindSelectionRejected:
		return "No problem, let me look for some different options."
	case KindProviderSelected:
		return fmt.Sprintf("Alright, going with %s, rated %.1f stars.",
			c.ProviderName, c.ProviderRating)
	case KindCallScript:
		return fmt.Sprintf(
			"Hello, I'd like to make a reservation for %d for %s on %s at %s.",
			c.PartySize, c.ServiceType, c.Date, c.Time)
	case KindScriptPreview:
		return "I will say: " + c.LastUtterance
	case KindCallApproval:
		return fmt.Sprintf("Should I call %s now?", c.ProviderName)
	case KindCallCancelled:
		return "No problem, I won't call. Nothing has been booked."
	case KindCallConnected:
		return fmt.Sprintf("Connected to %s.", c.ProviderName)
	case KindNegotiationReply:
		return fallbackNegotiationReply(c)
	case KindStillThere:
		return "Hello, are you still there?"
	case KindBookingConfirmed:
		if c.ConfirmationNumber != "" {
			return fmt.Sprintf(
				"Your booking at %s is confirmed, confirmation number %s.",
				c.ProviderName, c.ConfirmationNumber)
		}
		return fmt.Sprintf("Your booking at %s is confirmed.", c.ProviderName)
	case KindRetrying:
		return "Something went wrong, let me try that again."
	case KindApology:
		// Spoken on fatal failures. Internal error detail never reaches the
		// spoken surface.
		return "I'm sorry, I couldn't complete your booking. Please try again later."
	case KindGoodbye:
		return "Thanks for using HiyaDrive. Goodbye!"
	case KindRestartPrompt:
		return "Is there anything else I can book for you?"
	}
	return "Okay."
}

// fallbackNegotiationReply is a scripted negotiation turn. It keys off
// unambiguous phrases in the provider's last utterance and otherwise keeps
// the exchange going, leaving marker decisions to the caller's turn cap.
func fallbackNegotiationReply(c Context) string {
	utterance := strings.ToLower(c.LastUtterance)
	switch {
	case strings.Contains(utterance, "confirmation number"),
		strings.Contains(utterance, "confirmation code"),
		strings.Contains(utterance, "you're all set"),
		strings.Contains(utterance, "you are all set"):
		return MarkerConfirmed + " Wonderful, thank you so much. Goodbye!"
	case strings.Contains(utterance, "fully booked"),
		strings.Contains(utterance, "no availability"),
		strings.Contains(utterance, "we're closed"),
		strings.Contains(utterance, "we are closed"),
		strings.Contains(utterance, "can't take"),
		strings.Contains(utterance, "cannot take"):
		return MarkerDeclined + " I understand, thanks anyway. Goodbye!"
	case strings.Contains(utterance, "how many"):
		return fmt.Sprintf("%d people, please.", c.PartySize)
	case strings.Contains(utterance, "what name"),
		strings.Contains(utterance, "name for"):
		return "Under the name Alex, please."
	case strings.Contains(utterance, "what time"),
		strings.Contains(utterance, "which time"):
		return fmt.Sprintf("At %s on %s, please.", c.Time, c.Date)
	default:
		return fmt.Sprintf(
			"I'd like to book for %d people on %s at %s. Would that work?",
			c.PartySize, c.Date, c.Time)
	}
}

// StaticGenerator produces messages straight from the fallback table. It is
// the default generator and the deterministic stand-in used in tests.
type StaticGenerator struct{}

func (StaticGenerator) Generate(_ context.Context, kind Kind, c Context) string {
	return Fallback(kind, c)
}
