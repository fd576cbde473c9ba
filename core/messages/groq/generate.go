package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hiyadrive/hiya-core/core/messages"
)

const (
	url = "https://api.groq.com/openai/v1/chat/completions"

	defaultModel = "llama-3.3-70b-versatile"

	systemPrompt = `You are the voice of HiyaDrive, a hands-free booking assistant
talking to a driver. Keep every message short, natural and easy to follow by
ear. One or two sentences, no lists, no formatting.`

	negotiationPrompt = `You are a polite booking assistant on a phone call with a
business, negotiating a reservation on behalf of your user. Keep replies short
and spoken-sounding. When the business confirms the booking, include the exact
marker [BOOKING_CONFIRMED] in your reply. When they cannot accommodate the
request at all, include [DECLINED]. When they offer nothing workable and you
want to try a different business instead, include [NEED_ALTERNATIVES]. Include
at most one marker, and only when the exchange has actually concluded.`
)

// Generator phrases workflow messages with groq chat completions. Every
// failure degrades to the deterministic fallback table, so a generated
// message is never the difference between a session completing or not.
type Generator struct {
	apiKey string
	model  string
}

type GeneratorOption func(*Generator)

func WithModel(model string) GeneratorOption {
	return func(g *Generator) { g.model = model }
}

func NewGenerator(apiKey string, opts ...GeneratorOption) *Generator {
	generator := &Generator{apiKey: apiKey, model: defaultModel}
	for _, opt := range opts {
		opt(generator)
	}
	return generator
}

func (g *Generator) Generate(ctx context.Context, kind messages.Kind, c messages.Context) string {
	ctx, span := tracer.Start(ctx, "generate message")
	defer span.End()
	span.SetAttributes(attribute.String("message.kind", string(kind)))

	generated, err := g.complete(ctx, kind, c)
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String("error", err.Error()))
		logger.WarnContext(ctx, "message generation failed, using fallback",
			"kind", string(kind), "error", err)
		return messages.Fallback(kind, c)
	}
	if generated == "" {
		return messages.Fallback(kind, c)
	}
	return generated
}

func (g *Generator) complete(ctx context.Context, kind messages.Kind, c messages.Context) (string, error) {
	reqBody := requestBody{
		Model:    g.model,
		Messages: toMessages(kind, c),
	}

	requestBodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("error marshalling JSON: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		return "", fmt.Errorf("error creating HTTP request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	client := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("non-OK HTTP status: %s", resp.Status)
	}

	respBodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error reading response body: %w", err)
	}

	var response responseBody
	if err := json.Unmarshal(respBodyBytes, &response); err != nil {
		return "", fmt.Errorf("error unmarshalling response: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("response contained no choices")
	}

	return strings.TrimSpace(response.Choices[0].Message.Content), nil
}

// toMessages builds the chat turns for one message kind. The negotiation
// reply carries the whole call transcript so the model can follow the
// exchange; every other kind is a single instruction seeded with the
// deterministic fallback as the meaning to preserve.
func toMessages(kind messages.Kind, c messages.Context) []message {
	if kind == messages.KindNegotiationReply {
		msgs := []message{{Role: messageRoleSystem, Content: negotiationPrompt + "\n\n" + bookingDetails(c)}}
		for _, line := range c.Transcript {
			role := messageRoleUser
			if rest, ok := strings.CutPrefix(line, "assistant: "); ok {
				msgs = append(msgs, message{Role: messageRoleAssistant, Content: rest})
				continue
			} else if rest, ok := strings.CutPrefix(line, "provider: "); ok {
				line = rest
			}
			msgs = append(msgs, message{Role: role, Content: line})
		}
		if len(msgs) == 1 && c.LastUtterance != "" {
			msgs = append(msgs, message{Role: messageRoleUser, Content: c.LastUtterance})
		}
		return msgs
	}

	return []message{
		{Role: messageRoleSystem, Content: systemPrompt},
		{Role: messageRoleUser, Content: fmt.Sprintf(
			"Rephrase this message naturally, keeping its exact meaning: %q",
			messages.Fallback(kind, c))},
	}
}

func bookingDetails(c messages.Context) string {
	return fmt.Sprintf(
		"Booking details: %s for %d people on %s at %s near %s. Business: %s.",
		c.ServiceType, c.PartySize, c.Date, c.Time, c.Location, c.ProviderName)
}

type requestBody struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
}

type message struct {
	Role    messageRole `json:"role"`
	Content string      `json:"content"`
}

type messageRole string

const (
	messageRoleSystem    messageRole = "system"
	messageRoleUser      messageRole = "user"
	messageRoleAssistant messageRole = "assistant"
)

type responseBody struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role,omitempty"`
			Content string `json:"content,omitempty"`
		} `json:"message"`
	} `json:"choices"`
}
