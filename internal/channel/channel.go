// Package channel layers the structured event stream over one ordered
// message transport: it decodes inbound server events and dispatches them
// by type, and serializes outbound client commands.
package channel

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/mahanpro/NeuroLens2/internal/domain"
)

// Channel is the event stream for one session. Inbound frames arrive via
// the transport handlers and are dispatched in arrival order; the
// transport delivers them sequentially, so dispatch is single-threaded.
type Channel struct {
	handler  domain.EventHandler
	observer domain.ChannelObserver

	mu        sync.Mutex
	transport domain.Transport
	closed    bool
}

// New creates a channel that dispatches to handler and reports lifecycle
// transitions to observer. The transport is attached separately once it
// exists; events cannot be sent until then.
func New(handler domain.EventHandler, observer domain.ChannelObserver) *Channel {
	return &Channel{handler: handler, observer: observer}
}

// TransportHandlers returns the callbacks to register on the transport
// carrying this channel.
func (c *Channel) TransportHandlers() domain.TransportHandlers {
	return domain.TransportHandlers{
		OnMessage: c.handleMessage,
		OnOpen: func() {
			log.Printf("[channel] open")
			c.observer.OnChannelOpen()
		},
		OnClose: func() {
			log.Printf("[channel] closed")
			c.observer.OnChannelClosed()
		},
		OnError: func(err error) {
			log.Printf("[channel] transport error: %v", err)
			c.observer.OnChannelError(err)
		},
	}
}

// SetTransport attaches the transport. Completes the circular wiring
// between channel and transport construction.
func (c *Channel) SetTransport(t domain.Transport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transport = t
}

// Send serializes one command onto the transport. It fails when the
// channel is not open; commands are never queued for later.
func (c *Channel) Send(cmd domain.OutboundCommand) error {
	const op = "channel.send"

	c.mu.Lock()
	t := c.transport
	closed := c.closed
	c.mu.Unlock()

	if closed || t == nil || !t.IsOpen() {
		return domain.Errorf(domain.KindChannelNotOpen, op, "channel not open for %s", cmd.Type)
	}

	data, err := json.Marshal(cmd)
	if err != nil {
		return domain.E(domain.KindChannelNotOpen, op, "marshal command", err)
	}
	if err := t.Send(data); err != nil {
		return domain.E(domain.KindTransport, op, "send "+cmd.Type, err)
	}
	return nil
}

// Close shuts down the transport under the channel. Idempotent.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	t := c.transport
	c.mu.Unlock()

	if t == nil {
		return nil
	}
	return t.Close()
}

// handleMessage decodes one inbound frame and dispatches it by type.
// Malformed frames are dropped with a log line; unknown types are
// ignored so protocol growth never breaks the session.
func (c *Channel) handleMessage(data []byte) {
	var ev domain.InboundEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		log.Printf("[channel] dropping malformed event: %v", err)
		return
	}
	if ev.Type == "" {
		log.Printf("[channel] dropping event without type")
		return
	}

	switch ev.Type {
	case domain.EventSessionCreated:
		if ev.Session == nil {
			log.Printf("[channel] session.created without session body")
			return
		}
		c.handler.OnSessionCreated(ev.Session.ID)

	case domain.EventResponseCreated:
		c.handler.OnResponseCreated()

	case domain.EventTranscriptDelta:
		c.handler.OnTranscriptDelta(ev.Delta)

	case domain.EventTextDelta:
		c.handler.OnTextDelta(ev.Delta)

	case domain.EventResponseDone:
		c.handler.OnResponseDone(domain.FinalValues(ev.Response))

	case domain.EventError:
		code, message := "", ""
		if ev.Error != nil {
			code, message = ev.Error.Code, ev.Error.Message
		}
		c.handler.OnServerError(code, message)

	default:
		// unknown variants are part of normal protocol traffic
	}
}
