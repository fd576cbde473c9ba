package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/invopop/jsonschema"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hiyadrive/hiya-core/core/intents"
)

const (
	url = "https://api.groq.com/openai/v1/chat/completions"

	defaultModel = "llama-3.3-70b-versatile"

	systemPrompt = `You extract booking intents from spoken requests made while driving.
Fill in only what the user actually said. Dates are YYYY-MM-DD, times are HH:MM
in 24-hour format. Confidence is your overall certainty between 0 and 1; use a
value below 0.3 when the utterance is not a booking request at all.`

	// minConfidence separates an utterance worth re-prompting about from one
	// the model actually understood.
	minConfidence = 0.3
)

// Extractor turns free-form utterances into structured booking intents using
// groq's JSON-schema constrained chat completions.
type Extractor struct {
	apiKey string
	model  string
}

type ExtractorOption func(*Extractor)

func WithModel(model string) ExtractorOption {
	return func(e *Extractor) { e.model = model }
}

func NewExtractor(apiKey string, opts ...ExtractorOption) *Extractor {
	extractor := &Extractor{apiKey: apiKey, model: defaultModel}
	for _, opt := range opts {
		opt(extractor)
	}
	return extractor
}

func (e *Extractor) Extract(ctx context.Context, utterance string) (intents.Intent, error) {
	ctx, span := tracer.Start(ctx, "extract intent")
	defer span.End()

	reflector := jsonschema.Reflector{DoNotReference: true}
	schema := reflector.Reflect(intents.Intent{})

	reqBody := requestBody{
		Model: e.model,
		Messages: []message{
			{Role: messageRoleSystem, Content: systemPrompt},
			{Role: messageRoleUser, Content: utterance},
		},
		ResponseFormat: &responseFormat{
			Type: "json_schema",
			JSONSchema: &jsonSchemaFormat{
				Name:   "Intent",
				Schema: *schema,
				Strict: true,
			},
		},
	}

	span.SetAttributes(attribute.String("request.model", e.model))

	requestBodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		err = fmt.Errorf("error marshalling JSON: %w", err)
		span.RecordError(err)
		span.SetAttributes(attribute.String("error", err.Error()))
		return intents.Intent{}, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		err = fmt.Errorf("error creating HTTP request: %w", err)
		span.RecordError(err)
		span.SetAttributes(attribute.String("error", err.Error()))
		return intents.Intent{}, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	client := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	resp, err := client.Do(req)
	if err != nil {
		err = fmt.Errorf("error sending request: %w", err)
		span.RecordError(err)
		span.SetAttributes(attribute.String("error", err.Error()))
		return intents.Intent{}, err
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
	if resp.StatusCode != http.StatusOK {
		if errorBody, readErr := io.ReadAll(resp.Body); readErr == nil {
			span.SetAttributes(attribute.String("response.error", string(errorBody)))
		}
		err := fmt.Errorf("non-OK HTTP status: %s", resp.Status)
		span.RecordError(err)
		span.SetAttributes(attribute.String("error", err.Error()))
		return intents.Intent{}, err
	}

	respBodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		err = fmt.Errorf("error reading response body: %w", err)
		span.RecordError(err)
		span.SetAttributes(attribute.String("error", err.Error()))
		return intents.Intent{}, err
	}

	var response responseBody
	if err := json.Unmarshal(respBodyBytes, &response); err != nil {
		err = fmt.Errorf("error unmarshalling response: %w", err)
		span.RecordError(err)
		span.SetAttributes(attribute.String("error", err.Error()))
		return intents.Intent{}, err
	}
	if len(response.Choices) == 0 {
		err := fmt.Errorf("response contained no choices")
		span.RecordError(err)
		return intents.Intent{}, err
	}

	content := response.Choices[0].Message.Content
	if split := strings.Split(content, "```"); len(split) > 1 {
		content = split[1]
	}

	var intent intents.Intent
	if err := json.Unmarshal([]byte(content), &intent); err != nil {
		err = fmt.Errorf("error unmarshalling intent: %w", err)
		span.RecordError(err)
		span.SetAttributes(attribute.String("error", err.Error()))
		return intents.Intent{}, err
	}

	span.SetAttributes(
		attribute.String("intent.service_type", intent.ServiceType),
		attribute.Float64("intent.confidence", intent.Confidence),
	)

	if intent.Confidence < minConfidence || intent.ServiceType == "" {
		logger.InfoContext(ctx, "utterance not recognized as a booking request",
			"utterance", utterance, "confidence", intent.Confidence)
		return intents.Intent{}, &intents.ParseError{
			Utterance: utterance,
			Reason:    "no booking request recognized",
		}
	}

	return intent, nil
}

type requestBody struct {
	Model          string          `json:"model"`
	Messages       []message       `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type message struct {
	Role    messageRole `json:"role"`
	Content string      `json:"content"`
}

type messageRole string

const (
	messageRoleSystem messageRole = "system"
	messageRoleUser   messageRole = "user"
)

type responseFormat struct {
	Type       string            `json:"type"`
	JSONSchema *jsonSchemaFormat `json:"json_schema,omitempty"`
}

type jsonSchemaFormat struct {
	Name   string            `json:"name"`
	Schema jsonschema.Schema `json:"schema"`
	Strict bool              `json:"strict"`
}

type responseBody struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role,omitempty"`
			Content string `json:"content,omitempty"`
		} `json:"message"`
	} `json:"choices"`
}
