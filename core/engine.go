package booking

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/hiyadrive/hiya-core/core/messages"
)

// Transition is one entry of the session trace: the stage that executed, the
// outcome its handler returned and when the transition was taken.
type Transition struct {
	Stage   Stage
	Outcome Outcome
	At      time.Time
}

// handlerFunc executes one workflow stage against the session state and
// returns the tagged outcome the router consumes. Handlers never propagate
// errors past the engine boundary; failures become error records plus an
// error outcome.
type handlerFunc func(ctx context.Context, s *BookingState) Outcome

// Engine drives one booking session through the workflow: invoke the current
// stage's handler, hand the outcome to the router, transition, repeat until
// a terminal stage. The engine performs no business logic itself.
//
// Contract: one session at a time per engine. Sessions for different users
// should each run on their own engine value; state is never shared between
// them.
type Engine struct {
	intents      IntentExtractor
	generator    MessageGenerator
	speechIn     SpeechInput
	speechOut    SpeechOutput
	availability AvailabilityChecker
	directory    ProviderDirectory
	calls        CallChannel

	config   config
	router   router
	handlers map[Stage]handlerFunc

	trace []Transition
}

// NewEngine assembles an engine from capability ports and options. It fails
// fast when a required port is missing or the transition table is
// incomplete.
func NewEngine(opts ...EngineOption) (*Engine, error) {
	e := &Engine{
		config:    defaultConfig(),
		generator: messages.StaticGenerator{},
	}
	for _, opt := range opts {
		opt(e)
	}

	switch {
	case e.intents == nil:
		return nil, fmt.Errorf("engine misconfigured: intent extractor missing")
	case e.speechIn == nil || e.speechOut == nil:
		return nil, fmt.Errorf("engine misconfigured: speech input/output missing")
	case e.availability == nil:
		return nil, fmt.Errorf("engine misconfigured: availability checker missing")
	case e.directory == nil:
		return nil, fmt.Errorf("engine misconfigured: provider directory missing")
	case e.calls == nil:
		return nil, fmt.Errorf("engine misconfigured: call channel missing")
	}

	e.router = newRouter(e.config)
	if err := e.router.validate(); err != nil {
		return nil, err
	}

	e.handlers = map[Stage]handlerFunc{
		StageParseIntent:     e.guarded(e.parseIntent),
		StageCheckCalendar:   e.guarded(e.checkCalendar),
		StageSearchProviders: e.guarded(e.searchProviders),
		StageSelectProvider:  e.guarded(e.selectProvider),
		StagePrepareScript:   e.guarded(e.prepareScript),
		StagePlaceCall:       e.guarded(e.placeCall),
		StageNegotiate:       e.guarded(e.negotiate),
		StageFinalizeBooking: e.guarded(e.finalizeBooking),
		StageHandleError:     e.guarded(e.handleError),
		StageCloseSession:    e.guarded(e.closeSession),
	}

	return e, nil
}

// guarded enforces the idempotent-close invariant: once the session status
// is terminal no handler may mutate any field, so invocation becomes a
// no-op.
func (e *Engine) guarded(h handlerFunc) handlerFunc {
	return func(ctx context.Context, s *BookingState) Outcome {
		if s.Terminal() {
			return outcomeSessionClosed
		}
		return h(ctx, s)
	}
}

// Run drives one complete booking session from the initial utterance to a
// terminal stage and returns the final state. The only error it can return
// is a router lookup miss, which is a defect rather than a runtime
// condition; every operational failure is absorbed into the state's error
// trail and routing.
//
// Cancelling ctx aborts the current suspension point and forces the terminal
// failed stage without further handler execution.
func (e *Engine) Run(ctx context.Context, utterance string) (*BookingState, error) {
	ctx, span := tracer.Start(ctx, "booking session")
	defer span.End()

	state := newBookingState(utterance, e.config.maxCalendarRetries)
	span.SetAttributes(attribute.String("session.id", state.SessionID))
	logger.InfoContext(ctx, "starting booking session",
		"session_id", state.SessionID, "utterance", utterance)

	e.trace = nil
	stage := StageParseIntent
	for !stage.Terminal() {
		if ctx.Err() != nil {
			state.appendError(ErrorKindCancelled, stage, "session cancelled", false)
			e.record(stage, outcomeCancelled)
			stage = StageEndFail
			break
		}

		handler, ok := e.handlers[stage]
		if !ok {
			err := fmt.Errorf("no handler registered for stage %q", stage)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return state, err
		}

		outcome := handler(ctx, state)
		e.record(stage, outcome)

		next, err := e.router.next(stage, outcome, state)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return state, err
		}

		logger.DebugContext(ctx, "stage transition",
			"session_id", state.SessionID,
			"stage", string(stage), "outcome", string(outcome), "next", string(next))
		stage = next
	}

	if stage == StageEndOK {
		state.Status = StatusCompleted
	} else {
		state.Status = StatusFailed
	}
	e.record(stage, OutcomeEnd)

	span.SetAttributes(attribute.String("session.status", string(state.Status)))
	logger.InfoContext(ctx, "booking session finished",
		"session_id", state.SessionID,
		"status", string(state.Status),
		"confirmation", state.ConfirmationNumber)
	return state, nil
}

func (e *Engine) record(stage Stage, outcome Outcome) {
	e.trace = append(e.trace, Transition{Stage: stage, Outcome: outcome, At: time.Now()})
}

// Trace returns a copy of the transition trace of the most recent run.
func (e *Engine) Trace() []Transition {
	trace := make([]Transition, len(e.trace))
	copy(trace, e.trace)
	return trace
}

// speak generates and voices one message to the user. Speech output failure
// is logged but never interrupts the workflow; the session can complete on
// the transcript alone.
func (e *Engine) speak(ctx context.Context, kind messages.Kind, c messages.Context) {
	text := e.generator.Generate(ctx, kind, c)
	if err := e.speechOut.Speak(ctx, text); err != nil {
		logger.WarnContext(ctx, "failed to speak message",
			"kind", string(kind), "error", err)
	}
}

// messageContext seeds a template context from the session state.
func messageContext(s *BookingState) messages.Context {
	c := messages.Context{
		ServiceType: s.Intent.ServiceType,
		PartySize:   s.Intent.PartySize,
		Date:        s.Intent.RequestedDate,
		Time:        s.Intent.RequestedTime,
		Location:    s.Intent.Location,
		ResultCount: len(s.CandidateProviders),
	}
	if s.SelectedProvider != nil {
		c.ProviderName = s.SelectedProvider.Name
		c.ProviderAddress = s.SelectedProvider.Address
		c.ProviderRating = s.SelectedProvider.Rating
	}
	c.ConfirmationNumber = s.ConfirmationNumber
	return c
}
