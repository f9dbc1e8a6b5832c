// Package carrier defines the connection interface for telephony media
// stream backends.
//
// A carrier connection is the phone leg of a call: an already-accepted
// stream over which the carrier pushes caller audio frames and accepts
// synthesised audio for playback. Audio payloads are base64-encoded G.711
// μ-law in both directions and are never decoded inside the bridge.
package carrier

import "context"

// FrameKind discriminates inbound carrier frames.
type FrameKind string

const (
	// FrameStart opens the media stream and carries the call identifiers.
	FrameStart FrameKind = "start"
	// FrameMedia carries one chunk of caller audio.
	FrameMedia FrameKind = "media"
	// FrameStop signals that the caller hung up or the stream was torn down.
	FrameStop FrameKind = "stop"
	// FrameMark acknowledges a playback marker.
	FrameMark FrameKind = "mark"
)

// Frame is one inbound message from the carrier.
type Frame struct {
	Kind FrameKind

	// CallSID and StreamSID identify the call. Set on FrameStart.
	CallSID   string
	StreamSID string

	// Audio is the base64-encoded μ-law payload. Set on FrameMedia.
	Audio string

	// Mark is the marker name. Set on FrameMark.
	Mark string
}

// Connection is an open media stream with the carrier. Implementations must
// be safe for one concurrent reader plus concurrent writers.
//
// Callers must call Close when the connection is no longer needed.
type Connection interface {
	// ReadFrame blocks until the next frame arrives. It returns an error
	// when the stream ends or ctx is cancelled; after a FrameStop the next
	// read typically fails.
	ReadFrame(ctx context.Context) (Frame, error)

	// WriteMedia queues one base64-encoded μ-law payload for playback to the
	// caller. Valid only after the start frame has been read.
	WriteMedia(ctx context.Context, audioB64 string) error

	// WriteClear discards all audio the carrier has buffered for playback.
	// Used on barge-in so the agent stops speaking immediately.
	WriteClear(ctx context.Context) error

	// Close terminates the media stream. Calling Close more than once is
	// safe and returns nil.
	Close() error
}
