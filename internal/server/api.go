package server

import (
	"encoding/json"
	"net/http"

	"github.com/ganalabs/claimvoice/internal/bridge"
)

// callSummary is the monitoring view of one in-progress call.
type callSummary struct {
	CallSID      string   `json:"call_sid"`
	ClaimID      string   `json:"claim_id"`
	Completeness float64  `json:"completeness_score"`
	BargeIns     int      `json:"barge_ins"`
	Missing      []string `json:"missing_evidence,omitempty"`
}

func (s *Server) summarize(sid string, b *bridge.Bridge) callSummary {
	cs := callSummary{
		CallSID:  sid,
		ClaimID:  b.ClaimID(),
		BargeIns: b.BargeIns(),
	}
	if report, ok := b.LastReport(); ok {
		cs.Completeness = report.Score
		cs.Missing = report.MissingEvidence
	}
	return cs
}

// handleListCalls reports all calls currently in progress.
func (s *Server) handleListCalls(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	summaries := make([]callSummary, 0, len(s.active))
	for sid, b := range s.active {
		summaries = append(summaries, s.summarize(sid, b))
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"active_calls": summaries,
		"count":        len(summaries),
	})
}

// handleGetCall reports one in-progress call with its human-readable recap.
func (s *Server) handleGetCall(w http.ResponseWriter, r *http.Request) {
	sid := r.PathValue("sid")
	b, ok := s.lookupActive(sid)
	if !ok {
		writeError(w, http.StatusNotFound, "no active call with that sid")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"call":    s.summarize(sid, b),
		"summary": b.Summary(),
	})
}

// handleGetFNOL exports the first-notice-of-loss document for an in-progress
// call: the full claim with call metadata and transcript.
func (s *Server) handleGetFNOL(w http.ResponseWriter, r *http.Request) {
	sid := r.PathValue("sid")
	b, ok := s.lookupActive(sid)
	if !ok {
		writeError(w, http.StatusNotFound, "no active call with that sid")
		return
	}
	writeJSON(w, http.StatusOK, b.Snapshot())
}

// handleListProcessed reports the workflow results of calls that have ended.
func (s *Server) handleListProcessed(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	results := make([]any, 0, len(s.processed))
	for _, res := range s.processed {
		results = append(results, res)
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"processed": results,
		"count":     len(results),
	})
}

// handleGetProcessed reports one processed call by SID.
func (s *Server) handleGetProcessed(w http.ResponseWriter, r *http.Request) {
	sid := r.PathValue("sid")

	s.mu.Lock()
	res, ok := s.processed[sid]
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "no processed claim with that sid")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleProcess runs the post-call workflow on demand against an in-progress
// call's current claim state. Useful for previewing the routing outcome
// before the call ends.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CallSID string `json:"call_sid"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CallSID == "" {
		writeError(w, http.StatusBadRequest, "body must be {\"call_sid\": \"...\"}")
		return
	}

	b, ok := s.lookupActive(req.CallSID)
	if !ok {
		writeError(w, http.StatusNotFound, "no active call with that sid")
		return
	}

	snap := b.Snapshot()
	res := s.processor.Process(r.Context(), &snap.Claim, req.CallSID)
	s.storeProcessed(req.CallSID, res)
	writeJSON(w, http.StatusOK, res)
}
