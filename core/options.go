package booking

import (
	"context"
	"time"

	"github.com/hiyadrive/hiya-core/core/calendar"
	"github.com/hiyadrive/hiya-core/core/directory"
	"github.com/hiyadrive/hiya-core/core/intents"
	"github.com/hiyadrive/hiya-core/core/messages"
	"github.com/hiyadrive/hiya-core/core/telephony"
)

// IntentExtractor turns a raw utterance into a structured booking intent.
// Unparseable input fails with *intents.ParseError.
type IntentExtractor interface {
	Extract(ctx context.Context, utterance string) (intents.Intent, error)
}

// MessageGenerator produces the next spoken message for a template kind. It
// never fails: implementations return a deterministic fallback rather than
// blocking the session.
type MessageGenerator interface {
	Generate(ctx context.Context, kind messages.Kind, c messages.Context) string
}

// SpeechInput listens for one user utterance. Returns speech.ErrTimeout when
// nothing was said within the window.
type SpeechInput interface {
	Listen(ctx context.Context, timeout time.Duration) (string, error)
}

// SpeechOutput speaks one message to the user.
type SpeechOutput interface {
	Speak(ctx context.Context, text string) error
}

// AvailabilityChecker answers calendar availability questions and persists
// the final booking record. IsFree fails with calendar.ErrUnavailable when
// the backend cannot be consulted; SaveEvent failures are non-fatal to the
// session.
type AvailabilityChecker interface {
	IsFree(ctx context.Context, start time.Time, duration time.Duration) (bool, error)
	SaveEvent(ctx context.Context, event calendar.Event) error
}

// ProviderDirectory searches for matching service providers. An empty result
// is a normal answer, not an error.
type ProviderDirectory interface {
	Search(ctx context.Context, query directory.Query) ([]directory.Provider, error)
}

// CallChannel places outbound calls. Place fails with
// telephony.ErrConnectFailed when the call does not connect.
type CallChannel interface {
	Place(ctx context.Context, number string) (telephony.Call, error)
}

type config struct {
	maxCalendarRetries    int
	stageRetryBudget      int
	searchExpansionBudget int
	confirmBudget         int

	listenTimeout      time.Duration
	silenceTimeout     time.Duration
	negotiationTimeout time.Duration
	turnCap            int

	bookingDuration time.Duration
	searchRadiusKM  float64
}

func defaultConfig() config {
	return config{
		maxCalendarRetries:    3,
		stageRetryBudget:      2,
		searchExpansionBudget: 2,
		confirmBudget:         2,
		listenTimeout:         5 * time.Second,
		silenceTimeout:        10 * time.Second,
		negotiationTimeout:    2 * time.Minute,
		turnCap:               10,
		bookingDuration:       90 * time.Minute,
		searchRadiusKM:        5,
	}
}

// EngineOption configures an Engine at construction time.
type EngineOption func(*Engine)

// WithIntentExtractor wires the intent extraction port. Required.
func WithIntentExtractor(client IntentExtractor) EngineOption {
	return func(e *Engine) { e.intents = client }
}

// WithMessageGenerator wires the message generation port. Defaults to the
// deterministic fallback generator when unset.
func WithMessageGenerator(client MessageGenerator) EngineOption {
	return func(e *Engine) { e.generator = client }
}

// WithSpeech wires the user-facing speech input and output ports. Required.
func WithSpeech(input SpeechInput, output SpeechOutput) EngineOption {
	return func(e *Engine) {
		e.speechIn = input
		e.speechOut = output
	}
}

// WithAvailabilityChecker wires the calendar port. Required.
func WithAvailabilityChecker(client AvailabilityChecker) EngineOption {
	return func(e *Engine) { e.availability = client }
}

// WithProviderDirectory wires the provider search port. Required.
func WithProviderDirectory(client ProviderDirectory) EngineOption {
	return func(e *Engine) { e.directory = client }
}

// WithCallChannel wires the outbound telephony port. Required.
func WithCallChannel(client CallChannel) EngineOption {
	return func(e *Engine) { e.calls = client }
}

// WithMaxCalendarRetries overrides how many alternative times are tried after
// a calendar conflict before the session fails.
func WithMaxCalendarRetries(n int) EngineOption {
	return func(e *Engine) { e.config.maxCalendarRetries = n }
}

// WithStageRetryBudget overrides how often a failed stage is retried through
// error recovery before the session is abandoned.
func WithStageRetryBudget(n int) EngineOption {
	return func(e *Engine) { e.config.stageRetryBudget = n }
}

// WithSearchExpansionBudget overrides how often an empty or rejected search
// is re-run with broadened parameters.
func WithSearchExpansionBudget(n int) EngineOption {
	return func(e *Engine) { e.config.searchExpansionBudget = n }
}

// WithNegotiationLimits overrides the negotiation turn cap and wall-clock
// budget.
func WithNegotiationLimits(turnCap int, wallClock time.Duration) EngineOption {
	return func(e *Engine) {
		e.config.turnCap = turnCap
		e.config.negotiationTimeout = wallClock
	}
}

// WithSilenceTimeout overrides the per-turn receive window during
// negotiation.
func WithSilenceTimeout(d time.Duration) EngineOption {
	return func(e *Engine) { e.config.silenceTimeout = d }
}

// WithListenTimeout overrides how long the engine waits for a user reply at
// confirmation points.
func WithListenTimeout(d time.Duration) EngineOption {
	return func(e *Engine) { e.config.listenTimeout = d }
}
