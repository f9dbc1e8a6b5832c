// Package model defines the Provider interface for realtime speech model
// backends.
//
// A model provider wraps a speech-to-speech service that accepts telephone
// audio and returns synthesised speech in a single, stateful session. The
// central abstraction is Session: a bidirectional connection that surfaces
// everything the bridge reacts to (audio, turn boundaries, transcripts,
// barge-in signals) as a single ordered event stream.
//
// All implementations must be safe for concurrent use.
package model

import "context"

// EventKind discriminates the events a session emits.
type EventKind string

const (
	// EventAudioDelta carries a chunk of synthesised speech.
	EventAudioDelta EventKind = "audio_delta"
	// EventAudioDone marks the end of the current spoken response.
	EventAudioDone EventKind = "audio_done"
	// EventSpeechStarted fires when the provider's VAD detects the caller
	// speaking. The bridge uses it for barge-in.
	EventSpeechStarted EventKind = "speech_started"
	// EventCallerTranscript carries the completed transcription of one
	// caller utterance.
	EventCallerTranscript EventKind = "caller_transcript"
	// EventModelTranscript carries the text of one completed model response.
	EventModelTranscript EventKind = "model_transcript"
	// EventResponseDone marks the end of a full model turn, audio included.
	EventResponseDone EventKind = "response_done"
	// EventError carries a non-fatal provider error.
	EventError EventKind = "error"
)

// Event is one item on the session's event stream.
type Event struct {
	Kind EventKind

	// Audio is the base64-encoded G.711 audio payload for EventAudioDelta.
	// It stays encoded so the bridge can forward it to the carrier verbatim.
	Audio string

	// Text is the transcript text for EventCallerTranscript and
	// EventModelTranscript.
	Text string

	// Err is set for EventError.
	Err error
}

// SessionConfig is the initial configuration for a new model session.
type SessionConfig struct {
	// Voice selects the synthesised voice.
	Voice string

	// Instructions is the system prompt defining the agent persona and the
	// intake script.
	Instructions string

	// SilenceDurationMs tunes how long the provider's VAD waits before
	// treating the caller as done speaking. Zero keeps the provider default.
	SilenceDurationMs int
}

// Session is an open model session. Interface so bridge tests can supply a
// mock without a live provider connection.
//
// The session is the hot path of a live call; every method must return
// quickly. Events are channel-based so the bridge never blocks the carrier's
// media loop. All methods must be safe for concurrent use.
//
// Callers must call Close when the session is no longer needed.
type Session interface {
	// SendAudio forwards one base64-encoded G.711 audio payload from the
	// carrier to the model. Returns an error if the session is closed or the
	// write fails.
	SendAudio(audioB64 string) error

	// SendText injects a text message into the conversation with the given
	// role ("user", "assistant" or "system").
	SendText(role, text string) error

	// UpdateInstructions replaces the system instructions mid-session.
	// Effective for the next model turn.
	UpdateInstructions(instructions string) error

	// CreateResponse asks the model to produce a response now, outside the
	// normal VAD-triggered cadence.
	CreateResponse() error

	// CancelResponse aborts the in-flight model response. Used on barge-in;
	// already-buffered carrier audio must be cleared separately.
	CancelResponse() error

	// Events returns the ordered event stream. The channel is closed when
	// the session ends; call Err afterwards to check whether it ended
	// cleanly. Consumers must drain promptly.
	Events() <-chan Event

	// Err returns the error that terminated the event stream, or nil for a
	// clean shutdown.
	Err() error

	// Close terminates the session and closes the event channel. Calling
	// Close more than once is safe and returns nil.
	Close() error
}

// Provider is the abstraction over any realtime speech model backend.
type Provider interface {
	// Connect establishes a new session. The returned Session is ready to
	// accept audio immediately. The caller owns it and must call Close.
	Connect(ctx context.Context, cfg SessionConfig) (Session, error)
}
