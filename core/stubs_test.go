package booking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hiyadrive/hiya-core/core/calendar"
	"github.com/hiyadrive/hiya-core/core/directory"
	"github.com/hiyadrive/hiya-core/core/intents"
	"github.com/hiyadrive/hiya-core/core/speech"
	"github.com/hiyadrive/hiya-core/core/telephony"
)

type intentExtractorStub struct {
	extract  func(ctx context.Context, utterance string) (intents.Intent, error)
	extracts int
}

func (s *intentExtractorStub) Extract(ctx context.Context, utterance string) (intents.Intent, error) {
	s.extracts++
	if s.extract != nil {
		return s.extract(ctx, utterance)
	}
	return testIntent(), nil
}

func testIntent() intents.Intent {
	return intents.Intent{
		ServiceType:   "haircut",
		PartySize:     1,
		RequestedDate: "2026-09-01",
		RequestedTime: "19:00",
		Location:      "downtown",
		Confidence:    0.92,
	}
}

// speechInputStub pops scripted replies in order; an exhausted queue behaves
// like silence.
type speechInputStub struct {
	replies []string
	listens int
}

func (s *speechInputStub) Listen(_ context.Context, _ time.Duration) (string, error) {
	s.listens++
	if len(s.replies) == 0 {
		return "", speech.ErrTimeout
	}
	reply := s.replies[0]
	s.replies = s.replies[1:]
	return reply, nil
}

type speechOutputStub struct {
	spoken []string
	err    error
}

func (s *speechOutputStub) Speak(_ context.Context, text string) error {
	s.spoken = append(s.spoken, text)
	return s.err
}

type availabilityStub struct {
	isFree    func(ctx context.Context, start time.Time, duration time.Duration) (bool, error)
	saveEvent func(ctx context.Context, event calendar.Event) error

	freeChecks int
	saves      []calendar.Event
}

func (s *availabilityStub) IsFree(ctx context.Context, start time.Time, duration time.Duration) (bool, error) {
	s.freeChecks++
	if s.isFree != nil {
		return s.isFree(ctx, start, duration)
	}
	return true, nil
}

func (s *availabilityStub) SaveEvent(ctx context.Context, event calendar.Event) error {
	s.saves = append(s.saves, event)
	if s.saveEvent != nil {
		return s.saveEvent(ctx, event)
	}
	return nil
}

type directoryStub struct {
	search   func(ctx context.Context, query directory.Query) ([]directory.Provider, error)
	queries  []directory.Query
	searches int
}

func (s *directoryStub) Search(ctx context.Context, query directory.Query) ([]directory.Provider, error) {
	s.searches++
	s.queries = append(s.queries, query)
	if s.search != nil {
		return s.search(ctx, query)
	}
	return testProviders(), nil
}

func testProviders() []directory.Provider {
	return []directory.Provider{
		{Name: "Clipper's Corner", Phone: "+15550001111", Rating: 4.4, Address: "12 Main St", DistanceKM: 1.2},
		{Name: "Shear Bliss", Phone: "+15550002222", Rating: 4.8, Address: "7 Oak Ave", DistanceKM: 2.5},
		{Name: "The Buzz", Phone: "+15550003333", Rating: 4.8, Address: "99 Elm Rd", DistanceKM: 0.8},
	}
}

type callChannelStub struct {
	place  func(ctx context.Context, number string) (telephony.Call, error)
	placed []string
}

func (s *callChannelStub) Place(ctx context.Context, number string) (telephony.Call, error) {
	s.placed = append(s.placed, number)
	if s.place != nil {
		return s.place(ctx, number)
	}
	return newCallStub(), nil
}

// callStub scripts the remote side of a negotiation. Receive pops utterances
// in order; an exhausted queue times out.
type callStub struct {
	mu         sync.Mutex
	utterances []string
	receive    func(ctx context.Context, timeout time.Duration) (string, error)

	sent    []string
	hangups int
}

func newCallStub(utterances ...string) *callStub {
	if len(utterances) == 0 {
		utterances = []string{"Sure, we can do that. Your confirmation number is 4892."}
	}
	return &callStub{utterances: utterances}
}

func (s *callStub) ID() string { return "call-stub-1" }

func (s *callStub) Send(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, text)
	return nil
}

func (s *callStub) Receive(ctx context.Context, timeout time.Duration) (string, error) {
	if s.receive != nil {
		return s.receive(ctx, timeout)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.utterances) == 0 {
		return "", telephony.ErrReceiveTimeout
	}
	utterance := s.utterances[0]
	s.utterances = s.utterances[1:]
	return utterance, nil
}

func (s *callStub) Hangup() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hangups++
	return nil
}

// testPorts bundles the stubbed capability ports behind one engine.
type testPorts struct {
	intents      *intentExtractorStub
	speechIn     *speechInputStub
	speechOut    *speechOutputStub
	availability *availabilityStub
	directory    *directoryStub
	calls        *callChannelStub
}

func newTestPorts() *testPorts {
	return &testPorts{
		intents:      &intentExtractorStub{},
		speechIn:     &speechInputStub{},
		speechOut:    &speechOutputStub{},
		availability: &availabilityStub{},
		directory:    &directoryStub{},
		calls:        &callChannelStub{},
	}
}

func (p *testPorts) engine(t *testing.T, opts ...EngineOption) *Engine {
	t.Helper()
	options := append([]EngineOption{
		WithIntentExtractor(p.intents),
		WithSpeech(p.speechIn, p.speechOut),
		WithAvailabilityChecker(p.availability),
		WithProviderDirectory(p.directory),
		WithCallChannel(p.calls),
	}, opts...)

	engine, err := NewEngine(options...)
	if err != nil {
		t.Fatalf("expected engine construction to succeed, got %v", err)
	}
	return engine
}
