package messages

import (
	"strings"
	"testing"
)

var allKinds = []Kind{
	KindGreeting, KindIntentConfirmation, KindClarify,
	KindCalendarFree, KindCalendarBusy, KindCalendarExhausted,
	KindSearching, KindSearchResults, KindSearchBroadened,
	KindProviderOption, KindSelectionPrompt, KindSelectionRejected, KindProviderSelected,
	KindCallScript, KindScriptPreview, KindCallApproval, KindCallCancelled, KindCallConnected,
	KindNegotiationReply, KindStillThere, KindBookingConfirmed,
	KindRetrying, KindApology, KindGoodbye, KindRestartPrompt,
}

func TestFallbackNeverEmpty(t *testing.T) {
	for _, kind := range allKinds {
		if Fallback(kind, Context{}) == "" {
			t.Fatalf("expected a fallback message for %s", kind)
		}
	}
}

func TestNegotiationFallbackMarkers(t *testing.T) {
	cases := []struct {
		utterance string
		marker    string
	}{
		{"Great, your confirmation number is 4892", MarkerConfirmed},
		{"You're all set for 7pm", MarkerConfirmed},
		{"Sorry, we're fully booked tonight", MarkerDeclined},
		{"We have no availability this week", MarkerDeclined},
	}
	for _, c := range cases {
		reply := Fallback(KindNegotiationReply, Context{LastUtterance: c.utterance})
		if !strings.Contains(reply, c.marker) {
			t.Fatalf("expected %q to produce marker %s, got %q", c.utterance, c.marker, reply)
		}
	}
}

func TestNegotiationFallbackAnswersQuestions(t *testing.T) {
	c := Context{PartySize: 2, Date: "2026-09-01", Time: "19:00"}

	reply := Fallback(KindNegotiationReply, Context{LastUtterance: "How many people?", PartySize: 2})
	if !strings.Contains(reply, "2") {
		t.Fatalf("expected the party size in the reply, got %q", reply)
	}

	reply = Fallback(KindNegotiationReply, Context{LastUtterance: "For what time?", Time: c.Time, Date: c.Date})
	if !strings.Contains(reply, "19:00") {
		t.Fatalf("expected the requested time in the reply, got %q", reply)
	}

	reply = Fallback(KindNegotiationReply, c)
	for _, marker := range []string{MarkerConfirmed, MarkerAlternatives, MarkerDeclined} {
		if strings.Contains(reply, marker) {
			t.Fatalf("expected no marker on an open exchange, got %q", reply)
		}
	}
}

func TestApologyCarriesNoDiagnostics(t *testing.T) {
	apology := Fallback(KindApology, Context{LastUtterance: "connection refused: dial tcp"})
	if strings.Contains(apology, "connection refused") {
		t.Fatalf("expected internal errors to stay out of spoken output, got %q", apology)
	}
}
