package twilio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hiyadrive/hiya-core/core/telephony"
)

// activeCall is one live call with its conversation relay attached. Text
// spoken by the remote party arrives as relay prompt messages; text sent is
// synthesized by Twilio on the call.
type activeCall struct {
	channel *Channel
	sid     string

	conn   *websocket.Conn
	connMu sync.Mutex

	incoming chan string
	closed   chan struct{}

	hangupOnce sync.Once
}

func newActiveCall(channel *Channel, sid string, conn *websocket.Conn) *activeCall {
	return &activeCall{
		channel:  channel,
		sid:      sid,
		conn:     conn,
		incoming: make(chan string, 8),
		closed:   make(chan struct{}),
	}
}

func (c *activeCall) ID() string { return c.sid }

// Send speaks text on the call through the relay.
func (c *activeCall) Send(ctx context.Context, text string) error {
	select {
	case <-c.closed:
		return telephony.ErrDisconnected
	default:
	}

	c.connMu.Lock()
	defer c.connMu.Unlock()
	if err := c.conn.WriteJSON(struct {
		Type  string `json:"type"`
		Token string `json:"token"`
		Last  bool   `json:"last"`
	}{Type: "text", Token: text, Last: true}); err != nil {
		return fmt.Errorf("failed to write to relay: %w: %v", telephony.ErrDisconnected, err)
	}
	return nil
}

// Receive waits for the remote party's next utterance.
func (c *activeCall) Receive(ctx context.Context, timeout time.Duration) (string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case utterance := <-c.incoming:
		return utterance, nil
	case <-c.closed:
		return "", telephony.ErrDisconnected
	case <-timer.C:
		return "", telephony.ErrReceiveTimeout
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Hangup ends the call on the Twilio side and drops the relay connection.
// Safe to call more than once.
func (c *activeCall) Hangup() error {
	c.hangupOnce.Do(func() {
		c.channel.endCall(c.sid)
		c.conn.Close()
	})
	return nil
}

// readIncoming pumps relay messages into the incoming channel until the
// connection drops. Only completed voice prompts are surfaced.
func (c *activeCall) readIncoming() {
	defer close(c.closed)
	for {
		var msg struct {
			Type        string `json:"type"`
			VoicePrompt string `json:"voicePrompt"`
			Last        bool   `json:"last"`
		}
		if err := c.conn.ReadJSON(&msg); err != nil {
			logger.Info("relay connection closed", "call_sid", c.sid, "error", err)
			return
		}
		if msg.Type != "prompt" || msg.VoicePrompt == "" {
			continue
		}
		select {
		case c.incoming <- msg.VoicePrompt:
		default:
			logger.Warn("dropping relay prompt, receiver not keeping up", "call_sid", c.sid)
		}
	}
}
