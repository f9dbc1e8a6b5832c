package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/ganalabs/claimvoice/internal/bridge"
	"github.com/ganalabs/claimvoice/internal/checker"
	"github.com/ganalabs/claimvoice/pkg/provider/carrier/twilio"
)

// twimlTemplate connects the inbound call to the media stream. No <Say>
// element: the agent greets naturally over the realtime session.
const twimlTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<Response>
    <Connect>
        <Stream url="wss://%s/twilio/stream">
            <Parameter name="callSid" value="%s" />
        </Stream>
    </Connect>
</Response>`

// terminalCallStatuses are the carrier statuses after which a call cannot
// resume.
var terminalCallStatuses = map[string]bool{
	"completed": true,
	"failed":    true,
	"busy":      true,
	"no-answer": true,
	"canceled":  true,
}

// handleVoiceWebhook answers the carrier's incoming-call webhook with TwiML
// that opens a bidirectional media stream back to this server.
func (s *Server) handleVoiceWebhook(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "malformed form body")
		return
	}
	callSID := r.PostFormValue("CallSid")
	from := r.PostFormValue("From")
	s.log.Info("incoming call", "call_sid", callSID, "from", from)

	w.Header().Set("Content-Type", "application/xml")
	fmt.Fprintf(w, twimlTemplate, s.cfg.Server.PublicHost, callSID)
}

// handleStatusCallback receives carrier call-status updates and drops ended
// calls from the active registry.
func (s *Server) handleStatusCallback(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "malformed form body")
		return
	}
	callSID := r.PostFormValue("CallSid")
	status := r.PostFormValue("CallStatus")
	s.log.Info("call status update", "call_sid", callSID, "status", status)

	if terminalCallStatuses[status] {
		if _, ok := s.lookupActive(callSID); ok {
			s.removeActive(callSID)
			s.log.Info("call cleaned up after terminal status", "call_sid", callSID)
		}
	}
	w.WriteHeader(http.StatusOK)
}

// handleStream accepts the carrier's media-stream websocket and runs one
// bridge for the call's full duration. When the bridge returns the claim is
// finalized, persisted, and run through the post-call workflow; each step is
// guarded independently so one failure never loses the others' work.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Error("accept media stream websocket", "error", err)
		return
	}

	conn := twilio.NewConnection(ws)
	b := bridge.New(s.provider, s.extractor,
		bridge.WithLogger(s.log),
		bridge.WithVoice(s.cfg.Intake.Voice),
		bridge.WithSilenceDuration(s.cfg.Intake.SilenceDurationMs),
		bridge.WithCompletenessThreshold(s.cfg.Intake.CompletenessThreshold),
		bridge.WithStartNotify(s.started),
		bridge.WithMetrics(s.metrics),
		s.goodbyeTimeoutOption(),
	)

	if err := b.Run(r.Context(), conn); err != nil {
		s.log.Error("bridge terminated abnormally", "error", err)
	}
	conn.Close()

	s.finishCall(r, b)
}

func (s *Server) goodbyeTimeoutOption() bridge.Option {
	if sec := s.cfg.Intake.GoodbyeTimeoutSec; sec > 0 {
		return bridge.WithGoodbyeTimeout(time.Duration(sec) * time.Second)
	}
	return func(*bridge.Bridge) {}
}

// finishCall runs the post-call sequence: finalize, persist, process, attach
// results.
func (s *Server) finishCall(r *http.Request, b *bridge.Bridge) {
	snap := b.Finalize()
	callSID := snap.Metadata.CallSID
	if callSID != "" {
		s.removeActive(callSID)
	}

	report := checker.Check(&snap.Claim)
	if s.metrics != nil {
		s.metrics.CompletenessScore.Record(r.Context(), report.Score)
	}
	s.log.Info("call finished",
		"call_sid", callSID,
		"claim_id", snap.Claim.ID,
		"completeness", report.Score)

	// Persistence and processing outlive the websocket request context.
	ctx := context.WithoutCancel(r.Context())

	var claimID string
	if s.store != nil {
		id, err := s.store.Save(ctx, snap, "voice", "")
		if err != nil {
			s.log.Error("save claim", "call_sid", callSID, "error", err)
		} else {
			claimID = id
		}
	}

	res := s.processor.Process(ctx, &snap.Claim, callSID)
	if callSID != "" {
		s.storeProcessed(callSID, res)
	}
	if s.metrics != nil {
		s.metrics.RecordClaimProcessed(ctx, string(res.Decision), string(res.Priority))
	}

	if s.store != nil && claimID != "" {
		if _, err := s.store.SaveProcessingResult(ctx, claimID, res); err != nil {
			s.log.Error("save processing result", "claim_id", claimID, "error", err)
		}
		if _, err := s.store.UpdateStatus(ctx, claimID, res.FinalStatus, ""); err != nil {
			s.log.Error("update claim status", "claim_id", claimID, "error", err)
		}
	}
}
