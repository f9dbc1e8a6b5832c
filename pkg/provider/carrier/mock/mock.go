// Package mock provides a test double for the carrier.Connection interface.
//
// Pre-populate FramesCh with the frames the bridge should read, then close
// it (or send a stop frame) to end the call. Outbound media and clear calls
// are recorded for inspection.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/ganalabs/claimvoice/pkg/provider/carrier"
)

// Connection is a mock implementation of carrier.Connection.
type Connection struct {
	mu sync.Mutex

	// FramesCh feeds ReadFrame. Callers own this channel; closing it makes
	// ReadFrame return an error, like a carrier hangup.
	FramesCh chan carrier.Frame

	// WriteMediaErr, if non-nil, is returned by every WriteMedia call.
	WriteMediaErr error

	// WriteClearErr, if non-nil, is returned by every WriteClear call.
	WriteClearErr error

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// MediaWritten records the payload of every WriteMedia call in order.
	MediaWritten []string

	// ClearCallCount is the number of times WriteClear was called.
	ClearCallCount int

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// ReadFrame returns the next frame from FramesCh.
func (c *Connection) ReadFrame(ctx context.Context) (carrier.Frame, error) {
	select {
	case frame, ok := <-c.FramesCh:
		if !ok {
			return carrier.Frame{}, fmt.Errorf("mock: stream closed")
		}
		return frame, nil
	case <-ctx.Done():
		return carrier.Frame{}, ctx.Err()
	}
}

// WriteMedia records the call and returns WriteMediaErr.
func (c *Connection) WriteMedia(_ context.Context, audioB64 string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.MediaWritten = append(c.MediaWritten, audioB64)
	return c.WriteMediaErr
}

// WriteClear records the call and returns WriteClearErr.
func (c *Connection) WriteClear(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ClearCallCount++
	return c.WriteClearErr
}

// Close records the call and returns CloseErr.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CloseCallCount++
	return c.CloseErr
}

// Media returns a copy of MediaWritten. Thread-safe.
func (c *Connection) Media() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.MediaWritten...)
}

// Clears returns ClearCallCount. Thread-safe.
func (c *Connection) Clears() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ClearCallCount
}

// Ensure Connection implements carrier.Connection at compile time.
var _ carrier.Connection = (*Connection)(nil)
