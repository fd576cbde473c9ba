package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
)

// Speak synthesizes text through the deepgram speak endpoint and writes the
// raw audio to the configured sink. It returns once the whole utterance has
// been written.
func (c *Client) Speak(ctx context.Context, text string) error {
	ctx, span := tracer.Start(ctx, "speak")
	defer span.End()
	span.SetAttributes(attribute.Int("text.length", len(text)))

	speakURL, _ := url.Parse("https://api.deepgram.com/v1/speak")
	queryParams := speakURL.Query()
	queryParams.Set("model", c.voice)
	queryParams.Set("encoding", "linear16")
	queryParams.Set("sample_rate", strconv.Itoa(c.sampleRate))
	queryParams.Set("container", "none")
	speakURL.RawQuery = queryParams.Encode()

	requestBodyBytes, err := json.Marshal(struct {
		Text string `json:"text"`
	}{Text: text})
	if err != nil {
		err = fmt.Errorf("error marshalling JSON: %w", err)
		span.RecordError(err)
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", speakURL.String(), bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		err = fmt.Errorf("error creating HTTP request: %w", err)
		span.RecordError(err)
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+c.apiKey)

	client := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	resp, err := client.Do(req)
	if err != nil {
		err = fmt.Errorf("error sending request: %w", err)
		span.RecordError(err)
		return err
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("non-OK HTTP status: %s", resp.Status)
		span.RecordError(err)
		return err
	}

	if _, err := io.Copy(c.sink, resp.Body); err != nil {
		err = fmt.Errorf("error writing audio to sink: %w", err)
		span.RecordError(err)
		return err
	}
	return nil
}
