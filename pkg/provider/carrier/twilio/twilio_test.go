package twilio_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/ganalabs/claimvoice/pkg/provider/carrier"
	"github.com/ganalabs/claimvoice/pkg/provider/carrier/twilio"
)

// dialPair spins up a server that wraps the accepted socket in a
// twilio.Connection and hands it to the test, plus a client socket playing
// the Twilio side.
func dialPair(t *testing.T) (*twilio.Connection, *websocket.Conn) {
	t.Helper()

	connCh := make(chan *twilio.Connection, 1)
	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			return
		}
		connCh <- twilio.NewConnection(ws)
		<-done
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(done) })

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	client, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { client.Close(websocket.StatusNormalClosure, "done") })

	select {
	case conn := <-connCh:
		t.Cleanup(func() { conn.Close() })
		return conn, client
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for server connection")
		return nil, nil
	}
}

func send(t *testing.T, client *websocket.Conn, v any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	data, _ := json.Marshal(v)
	if err := client.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("client write: %v", err)
	}
}

func recv(t *testing.T, client *websocket.Conn, v any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, data, err := client.Read(ctx)
	if err != nil {
		t.Fatalf("client read: %v", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("client unmarshal: %v", err)
	}
}

func readFrame(t *testing.T, conn *twilio.Connection) carrier.Frame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	frame, err := conn.ReadFrame(ctx)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	return frame
}

func TestReadFrame_ParsesEvents(t *testing.T) {
	t.Parallel()
	conn, client := dialPair(t)

	// Twilio sends "connected" before "start"; it must be skipped.
	send(t, client, map[string]any{"event": "connected", "protocol": "Call"})
	send(t, client, map[string]any{
		"event": "start",
		"start": map[string]any{"streamSid": "MZ123", "callSid": "CA456"},
	})
	send(t, client, map[string]any{
		"event": "media",
		"media": map[string]any{"payload": "q83v"},
	})
	send(t, client, map[string]any{
		"event": "mark",
		"mark":  map[string]any{"name": "greeting-done"},
	})
	send(t, client, map[string]any{"event": "stop"})

	start := readFrame(t, conn)
	if start.Kind != carrier.FrameStart || start.CallSID != "CA456" || start.StreamSID != "MZ123" {
		t.Fatalf("start frame = %+v", start)
	}
	media := readFrame(t, conn)
	if media.Kind != carrier.FrameMedia || media.Audio != "q83v" {
		t.Fatalf("media frame = %+v", media)
	}
	mark := readFrame(t, conn)
	if mark.Kind != carrier.FrameMark || mark.Mark != "greeting-done" {
		t.Fatalf("mark frame = %+v", mark)
	}
	stop := readFrame(t, conn)
	if stop.Kind != carrier.FrameStop {
		t.Fatalf("stop frame = %+v", stop)
	}
}

func TestWriteMedia_UsesStreamSID(t *testing.T) {
	t.Parallel()
	conn, client := dialPair(t)

	send(t, client, map[string]any{
		"event": "start",
		"start": map[string]any{"streamSid": "MZ999", "callSid": "CA111"},
	})
	readFrame(t, conn)

	ctx := context.Background()
	if err := conn.WriteMedia(ctx, "AAAA"); err != nil {
		t.Fatalf("WriteMedia: %v", err)
	}

	var msg struct {
		Event     string `json:"event"`
		StreamSID string `json:"streamSid"`
		Media     struct {
			Payload string `json:"payload"`
		} `json:"media"`
	}
	recv(t, client, &msg)
	if msg.Event != "media" || msg.StreamSID != "MZ999" || msg.Media.Payload != "AAAA" {
		t.Fatalf("media message = %+v", msg)
	}
}

func TestWriteClear(t *testing.T) {
	t.Parallel()
	conn, client := dialPair(t)

	send(t, client, map[string]any{
		"event": "start",
		"start": map[string]any{"streamSid": "MZ777", "callSid": "CA111"},
	})
	readFrame(t, conn)

	if err := conn.WriteClear(context.Background()); err != nil {
		t.Fatalf("WriteClear: %v", err)
	}

	var msg struct {
		Event     string `json:"event"`
		StreamSID string `json:"streamSid"`
	}
	recv(t, client, &msg)
	if msg.Event != "clear" || msg.StreamSID != "MZ777" {
		t.Fatalf("clear message = %+v", msg)
	}
}

func TestWriteMedia_BeforeStart_ReturnsError(t *testing.T) {
	t.Parallel()
	conn, _ := dialPair(t)

	if err := conn.WriteMedia(context.Background(), "AAAA"); err == nil {
		t.Fatal("WriteMedia before start frame should return an error")
	}
}

func TestClose_Idempotent(t *testing.T) {
	t.Parallel()
	conn, _ := dialPair(t)

	if err := conn.Close(); err != nil {
		t.Fatalf("first Close() returned error: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("second Close() returned error: %v", err)
	}
}
