// Package bridge coordinates one live claim intake call: it shuttles audio
// between the carrier stream and the realtime speech model, handles barge-in,
// feeds caller transcripts through field extraction into the intake engine,
// and steers the agent with instruction updates built from the claim's
// completeness.
//
// One Bridge serves exactly one call. Construct it with New, hand the
// accepted carrier connection to Run, and read the final claim with Finalize
// after Run returns.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ganalabs/claimvoice/internal/checker"
	"github.com/ganalabs/claimvoice/internal/intake"
	"github.com/ganalabs/claimvoice/internal/observe"
	"github.com/ganalabs/claimvoice/internal/prompts"
	"github.com/ganalabs/claimvoice/pkg/provider/carrier"
	"github.com/ganalabs/claimvoice/pkg/provider/extract"
	"github.com/ganalabs/claimvoice/pkg/provider/model"
)

// CompletenessThreshold is the checker score at which the agent switches to
// wrap-up mode.
const CompletenessThreshold = 0.75

// contextTurns is how many transcript entries are handed to the extractor.
const contextTurns = 4

// Default timings.
const (
	defaultGoodbyeTimeout = 5 * time.Second
	defaultEndGrace       = 1 * time.Second
	defaultGreetingDelay  = 500 * time.Millisecond
	defaultVoice          = "alloy"
)

// Goodbye phrase lists differ per side: callers often close with a plain
// "thanks", agents never do.
var (
	agentGoodbyePhrases  = []string{"bye", "goodbye", "take care", "have a good", "talk soon"}
	callerGoodbyePhrases = []string{"bye", "goodbye", "take care", "thank you", "thanks"}
)

// errCallEnded signals a normal end of call inside the forwarding loops.
var errCallEnded = errors.New("bridge: call ended")

// StartedCall announces that a carrier start frame arrived and the call SID
// is known. The supervisor owning the active-call registry receives these on
// the channel passed to WithStartNotify.
type StartedCall struct {
	CallSID string
	Bridge  *Bridge
}

// Option is a functional option for Bridge.
type Option func(*Bridge)

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(log *slog.Logger) Option {
	return func(b *Bridge) { b.log = log }
}

// WithVoice selects the synthesised voice.
func WithVoice(voice string) Option {
	return func(b *Bridge) { b.voice = voice }
}

// WithSilenceDuration tunes the model VAD silence window in milliseconds.
func WithSilenceDuration(ms int) Option {
	return func(b *Bridge) { b.silenceMs = ms }
}

// WithGoodbyeTimeout sets how long to wait for the caller's goodbye after the
// agent has said theirs.
func WithGoodbyeTimeout(d time.Duration) Option {
	return func(b *Bridge) { b.goodbyeTimeout = d }
}

// WithEndGrace sets the pause between the mutual goodbye and hanging up.
func WithEndGrace(d time.Duration) Option {
	return func(b *Bridge) { b.endGrace = d }
}

// WithGreetingDelay sets how long after connecting the greeting is requested.
func WithGreetingDelay(d time.Duration) Option {
	return func(b *Bridge) { b.greetingDelay = d }
}

// WithStartNotify registers the channel that receives the started-call
// announcement. The send is non-blocking; a full channel drops the
// announcement with a warning.
func WithStartNotify(ch chan<- StartedCall) Option {
	return func(b *Bridge) { b.startNotify = ch }
}

// WithMetrics attaches telemetry instruments. Without it no metrics are
// recorded.
func WithMetrics(m *observe.Metrics) Option {
	return func(b *Bridge) { b.metrics = m }
}

// WithCompletenessThreshold overrides the checker score at which the agent
// switches to wrap-up mode. Values outside (0, 1] are ignored.
func WithCompletenessThreshold(t float64) Option {
	return func(b *Bridge) {
		if t > 0 && t <= 1 {
			b.threshold = t
		}
	}
}

// Bridge runs one claim intake call.
type Bridge struct {
	provider  model.Provider
	extractor extract.Extractor
	engine    *intake.Engine
	log       *slog.Logger

	voice          string
	silenceMs      int
	threshold      float64
	goodbyeTimeout time.Duration
	endGrace       time.Duration
	greetingDelay  time.Duration
	startNotify    chan<- StartedCall
	metrics        *observe.Metrics

	mu           sync.Mutex
	speaking     bool
	pending      []string
	notified     bool
	shouldEnd    bool
	agentGoodbye bool
	userGoodbye  bool
	goodbyeTimer *time.Timer
	lastReport   *checker.Report
	bargeIns     int
	finalized    bool
	finalSnap    intake.Snapshot
}

// New creates a bridge for a single call. The call SID is learned from the
// carrier start frame.
func New(provider model.Provider, extractor extract.Extractor, opts ...Option) *Bridge {
	b := &Bridge{
		provider:       provider,
		extractor:      extractor,
		engine:         intake.NewEngine("", ""),
		log:            slog.Default(),
		voice:          defaultVoice,
		threshold:      CompletenessThreshold,
		goodbyeTimeout: defaultGoodbyeTimeout,
		endGrace:       defaultEndGrace,
		greetingDelay:  defaultGreetingDelay,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// ClaimID returns the id of the claim under collection.
func (b *Bridge) ClaimID() string { return b.engine.ClaimID() }

// Summary returns a human-readable recap of the collected claim.
func (b *Bridge) Summary() string { return b.engine.Summary() }

// Snapshot exports the current intake state.
func (b *Bridge) Snapshot() intake.Snapshot { return b.engine.Snapshot() }

// LastReport returns the most recent completeness report, if any check has
// run yet.
func (b *Bridge) LastReport() (checker.Report, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.lastReport == nil {
		return checker.Report{}, false
	}
	return *b.lastReport, true
}

// BargeIns returns how many times the caller interrupted the agent.
func (b *Bridge) BargeIns() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bargeIns
}

// Finalize recomputes the evidence checklist and returns the closing intake
// snapshot. Safe to call more than once; the snapshot is taken on the first
// call.
func (b *Bridge) Finalize() intake.Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.finalized {
		b.finalSnap = b.engine.Finalize()
		b.finalized = true
	}
	return b.finalSnap
}

// Run drives the call until the carrier hangs up, the model session fails,
// or the goodbye handshake completes. A normal end of call returns nil.
func (b *Bridge) Run(ctx context.Context, conn carrier.Connection) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sess, err := b.provider.Connect(ctx, model.SessionConfig{
		Voice:             b.voice,
		Instructions:      prompts.Base,
		SilenceDurationMs: b.silenceMs,
	})
	if err != nil {
		return fmt.Errorf("bridge: connect model: %w", err)
	}
	defer sess.Close()
	defer b.stopGoodbyeTimer()

	start := time.Now()
	if b.metrics != nil {
		b.metrics.ActiveCalls.Add(ctx, 1)
	}
	defer func() {
		if b.metrics != nil {
			b.metrics.ActiveCalls.Add(context.Background(), -1)
			b.metrics.CallDuration.Record(context.Background(), time.Since(start).Seconds())
		}
		b.log.Info("call ended",
			"claim_id", b.engine.ClaimID(),
			"completion_pct", b.engine.CompletionPercentage())
	}()

	g, ctx := errgroup.WithContext(ctx)

	// Greeting: the model speaks first, once the session has settled.
	g.Go(func() error {
		select {
		case <-time.After(b.greetingDelay):
			if err := sess.CreateResponse(); err != nil {
				b.log.Error("request initial greeting", "error", err)
			}
		case <-ctx.Done():
		}
		return nil
	})

	g.Go(func() error { return b.carrierLoop(ctx, conn, sess) })
	g.Go(func() error { return b.modelLoop(ctx, conn, sess) })

	err = g.Wait()
	if err == nil || errors.Is(err, errCallEnded) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// ── carrier → model ────────────────────────────────────────────────────────────

func (b *Bridge) carrierLoop(ctx context.Context, conn carrier.Connection, sess model.Session) error {
	for {
		frame, err := conn.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			b.log.Info("carrier stream closed", "error", err)
			return errCallEnded
		}

		switch frame.Kind {
		case carrier.FrameStart:
			b.engine.SetCallInfo(frame.CallSID, frame.StreamSID)
			b.log.Info("carrier stream started",
				"call_sid", frame.CallSID, "stream_sid", frame.StreamSID)
			if b.startNotify != nil && frame.CallSID != "" {
				select {
				case b.startNotify <- StartedCall{CallSID: frame.CallSID, Bridge: b}:
				default:
					b.log.Warn("start notification dropped, channel full",
						"call_sid", frame.CallSID)
				}
			}
		case carrier.FrameMedia:
			if frame.Audio == "" {
				continue
			}
			if err := sess.SendAudio(frame.Audio); err != nil {
				return fmt.Errorf("bridge: forward caller audio: %w", err)
			}
		case carrier.FrameStop:
			b.log.Info("carrier stream stopped")
			return errCallEnded
		case carrier.FrameMark:
			b.log.Debug("playback mark reached", "mark", frame.Mark)
		}
	}
}

// ── model → carrier ────────────────────────────────────────────────────────────

func (b *Bridge) modelLoop(ctx context.Context, conn carrier.Connection, sess model.Session) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-sess.Events():
			if !ok {
				if err := sess.Err(); err != nil {
					return fmt.Errorf("bridge: model session: %w", err)
				}
				return errCallEnded
			}

			switch ev.Kind {
			case model.EventAudioDelta:
				b.setSpeaking(true)
				if err := conn.WriteMedia(ctx, ev.Audio); err != nil {
					b.log.Error("write audio to carrier", "error", err)
				}

			case model.EventAudioDone:
				b.setSpeaking(false)
				b.processPending(ctx, sess)

			case model.EventSpeechStarted:
				b.handleBargeIn(ctx, conn, sess)

			case model.EventCallerTranscript:
				b.handleCallerTranscript(ctx, sess, ev.Text)

			case model.EventModelTranscript:
				b.handleAgentTranscript(conn, ev.Text)

			case model.EventResponseDone:
				if b.readyToEnd() {
					b.log.Info("both parties said goodbye, ending call")
					select {
					case <-time.After(b.endGrace):
					case <-ctx.Done():
					}
					b.endCall(conn)
					return errCallEnded
				}

			case model.EventError:
				b.log.Error("model session error event", "error", ev.Err)
			}
		}
	}
}

// handleBargeIn reacts to caller speech while the agent is talking: flush the
// carrier's buffered playback and abort the in-flight response. The agent's
// instructions tell it how to resume after an interruption.
func (b *Bridge) handleBargeIn(ctx context.Context, conn carrier.Connection, sess model.Session) {
	b.mu.Lock()
	if !b.speaking {
		b.mu.Unlock()
		return
	}
	b.speaking = false
	b.bargeIns++
	b.mu.Unlock()

	b.log.Info("caller interrupted, stopping agent speech")
	if b.metrics != nil {
		b.metrics.RecordBargeIn(ctx)
	}
	if err := conn.WriteClear(ctx); err != nil {
		b.log.Error("clear carrier playback", "error", err)
	}
	if err := sess.CancelResponse(); err != nil {
		b.log.Error("cancel model response", "error", err)
	}
}

// handleCallerTranscript queues the transcript for extraction and tracks the
// caller's side of the goodbye handshake. Extraction runs immediately when
// the agent is silent, otherwise once the current response finishes.
func (b *Bridge) handleCallerTranscript(ctx context.Context, sess model.Session, text string) {
	if text == "" {
		return
	}
	b.engine.AddTranscript(intake.RoleCaller, text)

	b.mu.Lock()
	b.pending = append(b.pending, text)
	if containsAny(strings.ToLower(text), callerGoodbyePhrases) {
		b.userGoodbye = true
		if b.agentGoodbye {
			b.shouldEnd = true
		}
	}
	speaking := b.speaking
	b.mu.Unlock()

	if !speaking {
		b.processPending(ctx, sess)
	}
}

// handleAgentTranscript records the agent's utterance and watches for the
// END_CALL directive and the agent's goodbye. The agent saying goodbye first
// arms a timeout that force-ends the call if the caller never answers.
func (b *Bridge) handleAgentTranscript(conn carrier.Connection, text string) {
	if text == "" {
		return
	}
	b.engine.AddTranscript(intake.RoleAgent, text)

	upper := strings.ToUpper(text)
	saidGoodbye := containsAny(strings.ToLower(text), agentGoodbyePhrases)

	b.mu.Lock()
	defer b.mu.Unlock()

	if strings.Contains(upper, "END_CALL") || strings.Contains(upper, "END CALL") {
		b.log.Info("agent signalled end of call")
		b.shouldEnd = true
	}
	if !saidGoodbye {
		return
	}
	b.agentGoodbye = true
	if b.userGoodbye {
		b.shouldEnd = true
		return
	}
	if b.goodbyeTimer == nil {
		b.goodbyeTimer = time.AfterFunc(b.goodbyeTimeout, func() {
			b.goodbyeExpired(conn)
		})
	}
}

// goodbyeExpired fires when the caller stays silent after the agent's
// goodbye. Forcing the caller flag lets the normal end path run; closing the
// carrier covers the case where no further model response arrives.
func (b *Bridge) goodbyeExpired(conn carrier.Connection) {
	b.mu.Lock()
	fire := b.agentGoodbye && !b.userGoodbye
	if fire {
		b.shouldEnd = true
		b.userGoodbye = true
	}
	b.mu.Unlock()

	if fire {
		b.log.Info("goodbye timeout, caller did not respond, ending call")
		if err := conn.Close(); err != nil {
			b.log.Warn("close carrier after goodbye timeout", "error", err)
		}
	}
}

// processPending combines queued caller transcripts, runs field extraction,
// and pushes refreshed instructions to the agent. Extraction failures are
// logged and the call proceeds.
func (b *Bridge) processPending(ctx context.Context, sess model.Session) {
	b.mu.Lock()
	if len(b.pending) == 0 {
		b.mu.Unlock()
		return
	}
	combined := strings.Join(b.pending, " ")
	b.pending = nil
	b.mu.Unlock()

	known := b.engine.KnownFields()
	recent := recentContext(b.engine.RecentTurns(contextTurns))

	extractStart := time.Now()
	patch, err := b.extractor.Extract(ctx, combined, known, recent)
	if b.metrics != nil {
		b.metrics.ExtractionDuration.Record(ctx, time.Since(extractStart).Seconds())
	}
	if err != nil {
		b.log.Error("extract claim fields", "error", err)
		return
	}
	if len(patch) == 0 {
		b.log.Debug("no fields extracted from transcript")
		return
	}

	updated := b.engine.ApplyPatch(patch)
	b.log.Info("claim fields updated", "fields", updated)

	b.updateAgentContext(sess)
}

// updateAgentContext runs a completeness check and replaces the agent's
// instructions. Once the score crosses the threshold the prompt switches to
// wrap-up mode and stays there.
func (b *Bridge) updateAgentContext(sess model.Session) {
	snap := b.engine.Snapshot()
	report := checker.Check(&snap.Claim)

	b.mu.Lock()
	b.lastReport = &report
	if report.Score >= b.threshold && !b.notified {
		b.notified = true
		b.log.Info("claim sufficiently complete, switching to wrap-up",
			"score", report.Score)
	}
	wrapUp := b.notified
	b.mu.Unlock()

	var instr string
	if wrapUp {
		instr = prompts.WrapUp(report.RecommendedQuestions)
	} else {
		instr = prompts.Collecting(b.collectingStatus(report))
	}

	if err := sess.UpdateInstructions(instr); err != nil {
		b.log.Warn("update agent instructions", "error", err)
	}
}

func (b *Bridge) collectingStatus(report checker.Report) prompts.Status {
	st := prompts.Status{Score: report.Score, Contradictions: report.Contradictions}

	for _, fs := range b.engine.MissingFields(true) {
		st.MissingFields = append(st.MissingFields, fs.ID)
	}
	if next, ok := b.engine.NextQuestion(); ok {
		st.NextQuestion = next.Question
	}
	for _, tag := range report.MissingEvidence {
		switch tag {
		case checker.TagDamagePhotos, checker.TagIncidentDescription,
			checker.TagDamageType, checker.TagPropertyType:
			st.CriticalMissing = append(st.CriticalMissing, tag)
		}
	}
	if len(report.RecommendedQuestions) > 0 {
		st.AlternativeQuestion = report.RecommendedQuestions[0]
	}
	return st
}

func (b *Bridge) setSpeaking(v bool) {
	b.mu.Lock()
	b.speaking = v
	b.mu.Unlock()
}

func (b *Bridge) readyToEnd() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.shouldEnd && b.agentGoodbye && b.userGoodbye
}

func (b *Bridge) stopGoodbyeTimer() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.goodbyeTimer != nil {
		b.goodbyeTimer.Stop()
	}
}

func (b *Bridge) endCall(conn carrier.Connection) {
	b.stopGoodbyeTimer()
	if err := conn.Close(); err != nil {
		b.log.Warn("close carrier connection", "error", err)
	}
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func recentContext(entries []intake.TranscriptEntry) []extract.Turn {
	turns := make([]extract.Turn, len(entries))
	for i, e := range entries {
		turns[i] = extract.Turn{Role: e.Role, Content: e.Content}
	}
	return turns
}
