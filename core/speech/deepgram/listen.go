package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hiyadrive/hiya-core/core/speech"
)

// Listen streams microphone audio to the deepgram listen websocket and
// returns the first complete utterance. A fresh connection is opened per
// invocation; the workflow listens in short, well-separated windows, so the
// connection churn is irrelevant next to the speech itself. No speech within
// the timeout returns speech.ErrTimeout.
func (c *Client) Listen(ctx context.Context, timeout time.Duration) (string, error) {
	ctx, span := tracer.Start(ctx, "listen")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := c.connectListenWebsocket()
	if err != nil {
		err = fmt.Errorf("failed to open websocket: %w", err)
		span.RecordError(err)
		return "", err
	}
	defer conn.Close()

	go streamAudio(ctx, conn, c.source)

	transcripts := make(chan string, 1)
	readErrs := make(chan error, 1)
	go readTranscript(conn, transcripts, readErrs)

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", speech.ErrTimeout
		}
		return "", ctx.Err()
	case err := <-readErrs:
		span.RecordError(err)
		return "", err
	case transcript := <-transcripts:
		span.SetAttributes(attribute.Int("transcript.length", len(transcript)))
		return transcript, nil
	}
}

func (c *Client) connectListenWebsocket() (*websocket.Conn, error) {
	listenURL, _ := url.Parse("wss://api.deepgram.com/v1/listen")
	queryParams := listenURL.Query()
	queryParams.Set("encoding", "linear16")
	queryParams.Set("sample_rate", strconv.Itoa(c.sampleRate))
	queryParams.Set("channels", "1")
	queryParams.Set("model", "nova-3")
	queryParams.Set("language", "en-US")
	queryParams.Set("smart_format", "true")
	queryParams.Set("endpointing", "300")
	queryParams.Set("utterance_end_ms", "1000")
	queryParams.Set("interim_results", "true")

	listenURL.RawQuery = queryParams.Encode()
	conn, _, err := websocket.DefaultDialer.Dial(listenURL.String(),
		http.Header{"Authorization": {"Token " + c.apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}
	return conn, nil
}

// streamAudio copies source audio onto the websocket in small chunks until
// the context ends or the source dries up.
func streamAudio(ctx context.Context, conn *websocket.Conn, source io.Reader) {
	chunk := make([]byte, 4096)
	for {
		if ctx.Err() != nil {
			return
		}
		n, err := source.Read(chunk)
		if n > 0 {
			if err := conn.WriteMessage(websocket.BinaryMessage, chunk[:n]); err != nil {
				logger.Warn("failed to write audio to deepgram", "error", err)
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Warn("failed to read audio source", "error", err)
			}
			return
		}
	}
}

// readTranscript accumulates final transcript segments until deepgram
// signals the utterance ended, then delivers the whole utterance.
func readTranscript(conn *websocket.Conn, transcripts chan<- string, readErrs chan<- error) {
	var accumulated strings.Builder
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			readErrs <- fmt.Errorf("failed to read deepgram websocket message: %w", err)
			return
		}
		if msgType == websocket.BinaryMessage {
			continue
		}

		var parsedMsg struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(msg, &parsedMsg); err != nil {
			logger.Warn("failed to unmarshal deepgram message", "error", err)
			continue
		}

		switch api.TypeResponse(parsedMsg.Type) {
		case api.TypeMessageResponse:
			var msgResp api.MessageResponse
			if err := json.Unmarshal(msg, &msgResp); err != nil {
				logger.Warn("failed to unmarshal deepgram message", "error", err)
				continue
			}
			if !msgResp.IsFinal || len(msgResp.Channel.Alternatives) == 0 {
				continue
			}
			transcript := strings.TrimSpace(msgResp.Channel.Alternatives[0].Transcript)
			if len(transcript) > 0 {
				if accumulated.Len() > 0 {
					accumulated.WriteString(" ")
				}
				accumulated.WriteString(transcript)
			}
			if msgResp.SpeechFinal && accumulated.Len() > 0 {
				transcripts <- accumulated.String()
				return
			}

		case api.TypeUtteranceEndResponse:
			if accumulated.Len() > 0 {
				transcripts <- accumulated.String()
				return
			}
		}
	}
}
