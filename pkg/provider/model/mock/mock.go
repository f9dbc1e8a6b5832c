// Package mock provides test doubles for the model package interfaces.
//
// Use Provider to verify Connect calls and feed controlled sessions. Use
// Session to drive the event stream and inspect which methods the bridge
// invoked.
//
// Example:
//
//	sess := &mock.Session{EventsCh: make(chan model.Event, 16)}
//	p := &mock.Provider{Sess: sess}
//	handle, _ := p.Connect(ctx, cfg)
package mock

import (
	"context"
	"sync"

	"github.com/ganalabs/claimvoice/pkg/provider/model"
)

// ConnectCall records a single invocation of Provider.Connect.
type ConnectCall struct {
	// Ctx is the context passed to Connect.
	Ctx context.Context
	// Cfg is the SessionConfig passed to Connect.
	Cfg model.SessionConfig
}

// Provider is a mock implementation of model.Provider.
type Provider struct {
	mu sync.Mutex

	// Sess is the Session returned by Connect. If nil, Connect returns a new
	// default Session with a buffered event channel.
	Sess model.Session

	// ConnectErr, if non-nil, is returned as the error from Connect.
	ConnectErr error

	// ConnectCalls records every call to Connect in order.
	ConnectCalls []ConnectCall
}

// Connect records the call and returns Sess, ConnectErr.
func (p *Provider) Connect(ctx context.Context, cfg model.SessionConfig) (model.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ConnectCalls = append(p.ConnectCalls, ConnectCall{Ctx: ctx, Cfg: cfg})
	if p.ConnectErr != nil {
		return nil, p.ConnectErr
	}
	if p.Sess != nil {
		return p.Sess, nil
	}
	return &Session{EventsCh: make(chan model.Event, 64)}, nil
}

// Ensure Provider implements model.Provider at compile time.
var _ model.Provider = (*Provider)(nil)

// SendTextCall records a single invocation of Session.SendText.
type SendTextCall struct {
	Role string
	Text string
}

// Session is a mock implementation of model.Session. Callers should
// pre-populate EventsCh, then close it to signal end-of-session.
type Session struct {
	mu sync.Mutex

	// EventsCh is the channel returned by Events(). Callers own this channel.
	EventsCh chan model.Event

	// ErrVal is returned by Err().
	ErrVal error

	// --- Configurable errors ---

	// SendAudioErr, if non-nil, is returned by every SendAudio call.
	SendAudioErr error

	// SendTextErr, if non-nil, is returned by every SendText call.
	SendTextErr error

	// UpdateInstructionsErr, if non-nil, is returned by every
	// UpdateInstructions call.
	UpdateInstructionsErr error

	// CreateResponseErr, if non-nil, is returned by every CreateResponse call.
	CreateResponseErr error

	// CancelResponseErr, if non-nil, is returned by every CancelResponse call.
	CancelResponseErr error

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// --- Call records ---

	// SendAudioCalls records the payload of every SendAudio call in order.
	SendAudioCalls []string

	// SendTextCalls records every call to SendText in order.
	SendTextCalls []SendTextCall

	// UpdateInstructionsCalls records the instructions of every
	// UpdateInstructions call in order.
	UpdateInstructionsCalls []string

	// CreateResponseCallCount is the number of times CreateResponse was called.
	CreateResponseCallCount int

	// CancelResponseCallCount is the number of times CancelResponse was called.
	CancelResponseCallCount int

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// SendAudio records the call and returns SendAudioErr.
func (s *Session) SendAudio(audioB64 string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SendAudioCalls = append(s.SendAudioCalls, audioB64)
	return s.SendAudioErr
}

// SendText records the call and returns SendTextErr.
func (s *Session) SendText(role, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SendTextCalls = append(s.SendTextCalls, SendTextCall{Role: role, Text: text})
	return s.SendTextErr
}

// UpdateInstructions records the call and returns UpdateInstructionsErr.
func (s *Session) UpdateInstructions(instructions string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.UpdateInstructionsCalls = append(s.UpdateInstructionsCalls, instructions)
	return s.UpdateInstructionsErr
}

// CreateResponse records the call and returns CreateResponseErr.
func (s *Session) CreateResponse() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CreateResponseCallCount++
	return s.CreateResponseErr
}

// CancelResponse records the call and returns CancelResponseErr.
func (s *Session) CancelResponse() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CancelResponseCallCount++
	return s.CancelResponseErr
}

// Events returns EventsCh.
func (s *Session) Events() <-chan model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.EventsCh
}

// Err returns ErrVal.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ErrVal
}

// Close records the call and returns CloseErr.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCallCount++
	return s.CloseErr
}

// Instructions returns a copy of UpdateInstructionsCalls. Thread-safe.
func (s *Session) Instructions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.UpdateInstructionsCalls...)
}

// AudioSent returns a copy of SendAudioCalls. Thread-safe.
func (s *Session) AudioSent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.SendAudioCalls...)
}

// Cancels returns CancelResponseCallCount. Thread-safe.
func (s *Session) Cancels() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CancelResponseCallCount
}

// Ensure Session implements model.Session at compile time.
var _ model.Session = (*Session)(nil)
