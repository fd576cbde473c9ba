package twilio

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hiyadrive/hiya-core/core/telephony"
)

const twimlTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<Response>
    <Connect>
        <ConversationRelay url=%q welcomeGreeting="" />
    </Connect>
</Response>`

// Channel places outbound calls through the Twilio Voice API and exchanges
// conversation text over ConversationRelay websockets. The channel is also an
// http.Handler: Twilio connects the relay for each placed call back to the
// configured relayURL, which must route to this handler.
type Channel struct {
	client   *twilio.RestClient
	from     string
	relayURL string

	upgrader websocket.Upgrader

	mu      sync.Mutex
	waiting map[string]chan *activeCall

	// connectTimeout bounds how long Place waits for the relay websocket of
	// a created call to arrive.
	connectTimeout time.Duration
}

type ChannelOption func(*Channel)

func WithConnectTimeout(timeout time.Duration) ChannelOption {
	return func(c *Channel) { c.connectTimeout = timeout }
}

// NewChannel builds a call channel. relayURL is the public wss address Twilio
// should connect the conversation relay to.
func NewChannel(accountSID, authToken, fromNumber, relayURL string, opts ...ChannelOption) *Channel {
	channel := &Channel{
		client: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: accountSID,
			Password: authToken,
		}),
		from:           fromNumber,
		relayURL:       relayURL,
		waiting:        map[string]chan *activeCall{},
		connectTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(channel)
	}
	return channel
}

// Place creates the outbound call and waits for its conversation relay to
// connect. The returned call is live and ready for Send and Receive.
func (c *Channel) Place(ctx context.Context, number string) (telephony.Call, error) {
	ctx, span := tracer.Start(ctx, "place call")
	defer span.End()

	params := &api.CreateCallParams{}
	params.SetTo(number)
	params.SetFrom(c.from)
	params.SetTwiml(fmt.Sprintf(twimlTemplate, c.relayURL))

	resp, err := c.client.Api.CreateCall(params)
	if err != nil {
		err = fmt.Errorf("failed to create call: %w: %v", telephony.ErrConnectFailed, err)
		span.RecordError(err)
		return nil, err
	}
	if resp.Sid == nil {
		err := fmt.Errorf("created call has no sid")
		span.RecordError(err)
		return nil, err
	}
	sid := *resp.Sid
	span.SetAttributes(attribute.String("call.sid", sid))

	connected := make(chan *activeCall, 1)
	c.mu.Lock()
	c.waiting[sid] = connected
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.waiting, sid)
		c.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, c.connectTimeout)
	defer cancel()

	select {
	case call := <-connected:
		logger.InfoContext(ctx, "call relay connected", "call_sid", sid)
		return call, nil
	case <-ctx.Done():
		c.endCall(sid)
		err := fmt.Errorf("call %s relay never connected: %w", sid, telephony.ErrConnectFailed)
		span.RecordError(err)
		return nil, err
	}
}

// ServeHTTP accepts a ConversationRelay websocket, reads the setup message
// and hands the connection to the Place invocation waiting for its call sid.
// Connections for unknown calls are dropped.
func (c *Channel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("failed to upgrade relay websocket", "error", err)
		return
	}

	var setup struct {
		Type    string `json:"type"`
		CallSid string `json:"callSid"`
	}
	if err := conn.ReadJSON(&setup); err != nil || setup.Type != "setup" {
		logger.Warn("relay connection without setup message", "error", err)
		conn.Close()
		return
	}

	c.mu.Lock()
	connected, ok := c.waiting[setup.CallSid]
	c.mu.Unlock()
	if !ok {
		logger.Warn("relay connection for unknown call", "call_sid", setup.CallSid)
		conn.Close()
		return
	}

	call := newActiveCall(c, setup.CallSid, conn)
	go call.readIncoming()
	connected <- call
}

func (c *Channel) endCall(sid string) {
	params := &api.UpdateCallParams{}
	params.SetStatus("completed")
	if _, err := c.client.Api.UpdateCall(sid, params); err != nil {
		logger.Warn("failed to end call", "call_sid", sid, "error", err)
	}
}
