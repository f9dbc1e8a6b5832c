// Package twilio implements the carrier.Connection interface over a Twilio
// Media Streams WebSocket.
//
// Twilio connects to our server and exchanges JSON messages: start/media/
// stop/mark inbound, media/clear outbound. Audio payloads are base64-encoded
// G.711 μ-law at 8 kHz and pass through unmodified. Unknown inbound events
// (e.g. the initial "connected" message) are skipped.
package twilio

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/coder/websocket"

	"github.com/ganalabs/claimvoice/pkg/provider/carrier"
)

// Compile-time assertion that Connection satisfies carrier.Connection.
var _ carrier.Connection = (*Connection)(nil)

// ── Protocol message types ─────────────────────────────────────────────────────

type inboundMessage struct {
	Event string `json:"event"`
	Start *struct {
		StreamSID string `json:"streamSid"`
		CallSID   string `json:"callSid"`
	} `json:"start,omitempty"`
	Media *struct {
		Payload string `json:"payload"`
	} `json:"media,omitempty"`
	Mark *struct {
		Name string `json:"name"`
	} `json:"mark,omitempty"`
}

type mediaMessage struct {
	Event     string       `json:"event"`
	StreamSID string       `json:"streamSid"`
	Media     mediaPayload `json:"media"`
}

type mediaPayload struct {
	Payload string `json:"payload"`
}

type clearMessage struct {
	Event     string `json:"event"`
	StreamSID string `json:"streamSid"`
}

// ── Connection ─────────────────────────────────────────────────────────────────

// Connection wraps an accepted Twilio Media Streams WebSocket.
type Connection struct {
	conn *websocket.Conn

	mu        sync.Mutex
	streamSID string
	closed    bool
}

// NewConnection wraps an already-accepted WebSocket connection. The caller
// keeps ownership of the underlying HTTP request lifecycle.
func NewConnection(conn *websocket.Conn) *Connection {
	return &Connection{conn: conn}
}

// ReadFrame reads inbound messages until a start/media/stop/mark frame
// arrives. The stream SID from the start frame is retained for outbound
// messages.
func (c *Connection) ReadFrame(ctx context.Context) (carrier.Frame, error) {
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			return carrier.Frame{}, fmt.Errorf("twilio: read: %w", err)
		}

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch msg.Event {
		case "start":
			frame := carrier.Frame{Kind: carrier.FrameStart}
			if msg.Start != nil {
				frame.CallSID = msg.Start.CallSID
				frame.StreamSID = msg.Start.StreamSID
			}
			c.mu.Lock()
			c.streamSID = frame.StreamSID
			c.mu.Unlock()
			return frame, nil

		case "media":
			if msg.Media == nil || msg.Media.Payload == "" {
				continue
			}
			return carrier.Frame{Kind: carrier.FrameMedia, Audio: msg.Media.Payload}, nil

		case "stop":
			return carrier.Frame{Kind: carrier.FrameStop}, nil

		case "mark":
			frame := carrier.Frame{Kind: carrier.FrameMark}
			if msg.Mark != nil {
				frame.Mark = msg.Mark.Name
			}
			return frame, nil
		}
	}
}

// WriteMedia sends one media message for playback.
func (c *Connection) WriteMedia(ctx context.Context, audioB64 string) error {
	sid, err := c.currentStreamSID()
	if err != nil {
		return err
	}
	return c.writeJSON(ctx, mediaMessage{
		Event:     "media",
		StreamSID: sid,
		Media:     mediaPayload{Payload: audioB64},
	})
}

// WriteClear tells Twilio to drop its buffered playback audio.
func (c *Connection) WriteClear(ctx context.Context) error {
	sid, err := c.currentStreamSID()
	if err != nil {
		return err
	}
	return c.writeJSON(ctx, clearMessage{Event: "clear", StreamSID: sid})
}

func (c *Connection) currentStreamSID() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return "", fmt.Errorf("twilio: connection closed")
	}
	if c.streamSID == "" {
		return "", fmt.Errorf("twilio: no stream started")
	}
	return c.streamSID, nil
}

func (c *Connection) writeJSON(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("twilio: marshal: %w", err)
	}
	if err := c.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("twilio: write: %w", err)
	}
	return nil
}

// Close terminates the media stream. Idempotent.
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.conn.Close(websocket.StatusNormalClosure, "stream closed")
	return nil
}
