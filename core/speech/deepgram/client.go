package deepgram

import (
	"io"
	"os"
)

const (
	defaultSampleRate = 16000
	defaultVoice      = "aura-2-thalia-en"
)

// Client talks to deepgram for both directions of the voice channel:
// streaming transcription over the listen websocket and speech synthesis over
// the speak endpoint. Raw audio flows through the configured source and sink,
// so the client itself stays free of any audio device handling.
type Client struct {
	apiKey     string
	sampleRate int
	voice      string

	source io.Reader
	sink   io.Writer
}

type ClientOption func(*Client)

// WithAudioSource sets the reader microphone audio is streamed from during
// Listen. Linear16 mono at the configured sample rate.
func WithAudioSource(source io.Reader) ClientOption {
	return func(c *Client) { c.source = source }
}

// WithAudioSink sets the writer synthesized speech is written to during
// Speak.
func WithAudioSink(sink io.Writer) ClientOption {
	return func(c *Client) { c.sink = sink }
}

func WithSampleRate(sampleRate int) ClientOption {
	return func(c *Client) { c.sampleRate = sampleRate }
}

func WithVoice(voice string) ClientOption {
	return func(c *Client) { c.voice = voice }
}

func NewClient(apiKey string, opts ...ClientOption) *Client {
	client := &Client{
		apiKey:     apiKey,
		sampleRate: defaultSampleRate,
		voice:      defaultVoice,
		source:     os.Stdin,
		sink:       os.Stdout,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}
