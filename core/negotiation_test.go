package booking

import (
	"context"
	"testing"
	"time"

	"github.com/hiyadrive/hiya-core/core/directory"
	"github.com/hiyadrive/hiya-core/core/messages"
	"github.com/hiyadrive/hiya-core/core/telephony"
)

func negotiationState(call telephony.Call) *BookingState {
	state := newBookingState("book me a haircut", 3)
	state.Intent = testIntent()
	provider := testProviders()[0]
	state.SelectedProvider = &provider
	state.CallScript = "Hello, I'd like to make a reservation."
	state.CallApproved = true
	state.CallHandle = call
	state.CallID = call.ID()
	return state
}

func TestNegotiateConfirmsAndExtractsToken(t *testing.T) {
	ports := newTestPorts()
	engine := ports.engine(t)

	call := newCallStub("Sure thing. Your confirmation number is 4892. See you then!")
	state := negotiationState(call)

	outcome := engine.negotiate(context.Background(), state)
	if outcome != OutcomeConfirmed {
		t.Fatalf("expected confirmed outcome, got %s", outcome)
	}
	if state.ConfirmationNumber != "4892" {
		t.Fatalf("expected confirmation number 4892, got %q", state.ConfirmationNumber)
	}
	if call.hangups != 1 {
		t.Fatalf("expected the call to be hung up exactly once, got %d", call.hangups)
	}
	if state.CallHandle != nil {
		t.Fatalf("expected the call handle to be released")
	}
	if len(call.sent) == 0 || call.sent[0] != state.CallScript {
		t.Fatalf("expected the call script to open the exchange, got %v", call.sent)
	}
	for _, sent := range call.sent {
		if sent != stripMarkers(sent) {
			t.Fatalf("expected no markers on the wire, got %q", sent)
		}
	}
}

func TestNegotiateDeclinedSeeksAlternatives(t *testing.T) {
	ports := newTestPorts()
	engine := ports.engine(t)

	call := newCallStub("Sorry, we're fully booked that evening.")
	state := negotiationState(call)

	outcome := engine.negotiate(context.Background(), state)
	if outcome != OutcomeNeedAlternatives {
		t.Fatalf("expected need_alternatives outcome, got %s", outcome)
	}
	if call.hangups != 1 {
		t.Fatalf("expected the call to be hung up, got %d hangups", call.hangups)
	}
}

func TestNegotiateTwoSilencesTimeOut(t *testing.T) {
	ports := newTestPorts()
	engine := ports.engine(t)

	call := newCallStub()
	call.receive = func(context.Context, time.Duration) (string, error) {
		return "", telephony.ErrReceiveTimeout
	}
	state := negotiationState(call)

	outcome := engine.negotiate(context.Background(), state)
	if outcome != OutcomeTimeout {
		t.Fatalf("expected timeout outcome, got %s", outcome)
	}
	if len(call.sent) != 2 {
		t.Fatalf("expected the script and one are-you-there prompt, got %v", call.sent)
	}
	if call.sent[1] != messages.Fallback(messages.KindStillThere, messages.Context{}) {
		t.Fatalf("expected an are-you-there prompt after the first silence, got %q", call.sent[1])
	}
	last := state.lastError()
	if last == nil || last.Kind != ErrorKindNegotiation || last.Stage != StageNegotiate {
		t.Fatalf("expected a negotiation error record for the silence, got %+v", last)
	}
	if last.Retriable {
		t.Fatalf("expected a silent provider not to be retriable")
	}
	if call.hangups != 1 {
		t.Fatalf("expected the call to be hung up, got %d hangups", call.hangups)
	}
}

func TestNegotiateTurnCapStopsExchange(t *testing.T) {
	ports := newTestPorts()
	engine := ports.engine(t, WithNegotiationLimits(4, time.Minute))

	call := newCallStub()
	call.receive = func(context.Context, time.Duration) (string, error) {
		return "Hmm, let me check with the manager.", nil
	}
	state := negotiationState(call)

	outcome := engine.negotiate(context.Background(), state)
	if outcome != OutcomeTimeout {
		t.Fatalf("expected timeout outcome at the turn cap, got %s", outcome)
	}
	if state.TurnCount != 4 {
		t.Fatalf("expected exactly 4 turns, got %d", state.TurnCount)
	}
	last := state.lastError()
	if last == nil || last.Kind != ErrorKindNegotiation || last.Retriable {
		t.Fatalf("expected a fatal negotiation error record at the turn cap, got %+v", last)
	}
	if call.hangups != 1 {
		t.Fatalf("expected the call to be hung up, got %d hangups", call.hangups)
	}
}

func TestNegotiateDisconnectAborts(t *testing.T) {
	ports := newTestPorts()
	engine := ports.engine(t)

	call := newCallStub()
	call.receive = func(context.Context, time.Duration) (string, error) {
		return "", telephony.ErrDisconnected
	}
	state := negotiationState(call)

	outcome := engine.negotiate(context.Background(), state)
	if outcome != OutcomeError {
		t.Fatalf("expected error outcome on disconnect, got %s", outcome)
	}
	last := state.lastError()
	if last == nil || last.Kind != ErrorKindNegotiation {
		t.Fatalf("expected a negotiation error record, got %+v", last)
	}
	if last.Retriable {
		t.Fatalf("expected a disconnect not to be retriable")
	}
	if call.hangups != 1 {
		t.Fatalf("expected the call to be hung up, got %d hangups", call.hangups)
	}
}

func TestNegotiateWithoutCallFails(t *testing.T) {
	ports := newTestPorts()
	engine := ports.engine(t)

	state := newBookingState("book me a haircut", 3)
	if outcome := engine.negotiate(context.Background(), state); outcome != OutcomeError {
		t.Fatalf("expected error outcome without an active call, got %s", outcome)
	}
}

func TestExtractConfirmationToken(t *testing.T) {
	transcript := []TranscriptEntry{
		{Role: "assistant", Content: "Do you have a confirmation number ABC for me?"},
		{Role: "provider", Content: "Your confirmation code is XK42. Anything else?"},
		{Role: "assistant", Content: "No, thank you."},
	}
	if got := extractConfirmationToken(transcript); got != "XK42" {
		t.Fatalf("expected the provider's token, got %q", got)
	}

	if got := extractConfirmationToken(nil); got != "" {
		t.Fatalf("expected no token from an empty transcript, got %q", got)
	}
}

func TestBestRatedPrefersCloserOnTie(t *testing.T) {
	pick := bestRated([]directory.Provider{
		{Name: "A", Rating: 4.8, DistanceKM: 2.5},
		{Name: "B", Rating: 4.8, DistanceKM: 0.8},
		{Name: "C", Rating: 4.4, DistanceKM: 0.1},
	})
	if pick.Name != "B" {
		t.Fatalf("expected the closer of the top-rated pair, got %s", pick.Name)
	}
}
