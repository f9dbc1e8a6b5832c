// Package server wires the ClaimVoice subsystems into the HTTP surface: the
// telephony webhooks, the media-stream websocket that runs one bridge per
// call, the monitoring API, and the health and metrics endpoints.
//
// The Server also acts as the call supervisor: it owns the active-call
// registry, fed by each bridge's started-call announcement channel. Run the
// supervisor loop with Supervise alongside the HTTP listener.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ganalabs/claimvoice/internal/bridge"
	"github.com/ganalabs/claimvoice/internal/config"
	"github.com/ganalabs/claimvoice/internal/health"
	"github.com/ganalabs/claimvoice/internal/intake"
	"github.com/ganalabs/claimvoice/internal/observe"
	"github.com/ganalabs/claimvoice/internal/routing"
	"github.com/ganalabs/claimvoice/pkg/provider/extract"
	"github.com/ganalabs/claimvoice/pkg/provider/model"
)

// startedBuffer sizes the started-call channel. Announcements are dropped
// when the supervisor falls this far behind.
const startedBuffer = 16

// ClaimStore is the persistence surface the server needs after a call ends.
// Satisfied by [github.com/ganalabs/claimvoice/internal/store.Store].
type ClaimStore interface {
	Save(ctx context.Context, snap intake.Snapshot, source, sessionID string) (string, error)
	SaveProcessingResult(ctx context.Context, claimID string, res routing.Result) (bool, error)
	UpdateStatus(ctx context.Context, claimID, status, notes string) (bool, error)
}

// Option is a functional option for Server.
type Option func(*Server)

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// WithStore enables claim persistence. Without it claims live only in memory
// for the lifetime of the process.
func WithStore(cs ClaimStore) Option {
	return func(s *Server) { s.store = cs }
}

// WithProcessor sets the post-call workflow processor. Defaults to a
// processor without fraud analysis.
func WithProcessor(p *routing.Processor) Option {
	return func(s *Server) { s.processor = p }
}

// WithMetrics attaches telemetry instruments.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithHealthCheckers registers readiness checkers on /readyz.
func WithHealthCheckers(checkers ...health.Checker) Option {
	return func(s *Server) { s.health = health.New(checkers...) }
}

// Server hosts the ClaimVoice HTTP surface and supervises active calls.
type Server struct {
	cfg       *config.Config
	provider  model.Provider
	extractor extract.Extractor
	processor *routing.Processor
	store     ClaimStore
	metrics   *observe.Metrics
	health    *health.Handler
	log       *slog.Logger

	started chan bridge.StartedCall

	mu        sync.Mutex
	active    map[string]*bridge.Bridge
	processed map[string]routing.Result
}

// New creates a Server. The provider drives live calls; the extractor turns
// caller speech into claim fields.
func New(cfg *config.Config, provider model.Provider, extractor extract.Extractor, opts ...Option) *Server {
	s := &Server{
		cfg:       cfg,
		provider:  provider,
		extractor: extractor,
		processor: routing.NewProcessor(nil),
		health:    health.New(),
		log:       slog.Default(),
		started:   make(chan bridge.StartedCall, startedBuffer),
		active:    make(map[string]*bridge.Bridge),
		processed: make(map[string]routing.Result),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler returns the full route table wrapped in the telemetry middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleRoot)

	mux.HandleFunc("POST /twilio/voice", s.handleVoiceWebhook)
	mux.HandleFunc("POST /twilio/status", s.handleStatusCallback)
	mux.HandleFunc("GET /twilio/stream", s.handleStream)

	mux.HandleFunc("GET /calls", s.handleListCalls)
	mux.HandleFunc("GET /calls/{sid}", s.handleGetCall)
	mux.HandleFunc("GET /calls/{sid}/fnol", s.handleGetFNOL)
	mux.HandleFunc("GET /processed", s.handleListProcessed)
	mux.HandleFunc("GET /processed/{sid}", s.handleGetProcessed)
	mux.HandleFunc("POST /process", s.handleProcess)

	s.health.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	if s.metrics != nil {
		return observe.Middleware(s.metrics)(mux)
	}
	return mux
}

// Supervise drains started-call announcements into the active-call registry
// until ctx is cancelled. Run it in its own goroutine next to the listener.
func (s *Server) Supervise(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case sc := <-s.started:
			s.mu.Lock()
			s.active[sc.CallSID] = sc.Bridge
			s.mu.Unlock()
			s.log.Info("call registered", "call_sid", sc.CallSID, "claim_id", sc.Bridge.ClaimID())
		}
	}
}

// ActiveCalls returns the SIDs of calls currently in progress.
func (s *Server) ActiveCalls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	sids := make([]string, 0, len(s.active))
	for sid := range s.active {
		sids = append(sids, sid)
	}
	return sids
}

func (s *Server) lookupActive(sid string) (*bridge.Bridge, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.active[sid]
	return b, ok
}

func (s *Server) removeActive(sid string) {
	s.mu.Lock()
	delete(s.active, sid)
	s.mu.Unlock()
}

func (s *Server) storeProcessed(sid string, res routing.Result) {
	s.mu.Lock()
	s.processed[sid] = res
	s.mu.Unlock()
}

// ── shared JSON plumbing ───────────────────────────────────────────────────────

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "claimvoice",
		"status":  "running",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failed"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
