package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/ganalabs/claimvoice/internal/bridge"
	"github.com/ganalabs/claimvoice/internal/config"
	"github.com/ganalabs/claimvoice/internal/intake"
	"github.com/ganalabs/claimvoice/internal/routing"
	extractmock "github.com/ganalabs/claimvoice/pkg/provider/extract/mock"
	modelmock "github.com/ganalabs/claimvoice/pkg/provider/model/mock"
)

// stubStore records persistence calls.
type stubStore struct {
	mu          sync.Mutex
	saveCalls   []string // sources
	savedClaim  string
	resultCalls []string // claim ids
	statusCalls []string // "claimID:status"
	saveErr     error
}

func (s *stubStore) Save(_ context.Context, snap intake.Snapshot, source, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveCalls = append(s.saveCalls, source)
	if s.saveErr != nil {
		return "", s.saveErr
	}
	s.savedClaim = snap.Claim.ID
	return snap.Claim.ID, nil
}

func (s *stubStore) SaveProcessingResult(_ context.Context, claimID string, _ routing.Result) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resultCalls = append(s.resultCalls, claimID)
	return true, nil
}

func (s *stubStore) UpdateStatus(_ context.Context, claimID, status, _ string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusCalls = append(s.statusCalls, claimID+":"+status)
	return true, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			ListenAddr: ":8080",
			PublicHost: "claims.example.com",
		},
		Intake: config.IntakeConfig{Voice: "alloy"},
	}
}

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	provider := &modelmock.Provider{}
	extractor := &extractmock.Extractor{}
	return New(testConfig(), provider, extractor, opts...)
}

// seedBridge creates an idle bridge for registry tests.
func seedBridge() *bridge.Bridge {
	return bridge.New(&modelmock.Provider{}, &extractmock.Extractor{})
}

func TestRoot_ReportsService(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "claimvoice") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestVoiceWebhook_ReturnsTwiML(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	form := strings.NewReader("CallSid=CA123&From=%2B15551234567")
	req := httptest.NewRequest("POST", "/twilio/voice", form)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/xml" {
		t.Errorf("Content-Type = %q, want application/xml", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `wss://claims.example.com/twilio/stream`) {
		t.Errorf("TwiML missing stream url: %s", body)
	}
	if !strings.Contains(body, `value="CA123"`) {
		t.Errorf("TwiML missing callSid parameter: %s", body)
	}
	if !strings.Contains(body, "<Connect>") {
		t.Errorf("TwiML missing Connect verb: %s", body)
	}
}

func TestStatusCallback_CleansUpTerminalCall(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	s.active["CA1"] = seedBridge()

	form := strings.NewReader("CallSid=CA1&CallStatus=completed")
	req := httptest.NewRequest("POST", "/twilio/status", form)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if _, ok := s.lookupActive("CA1"); ok {
		t.Error("call still active after terminal status")
	}
}

func TestStatusCallback_KeepsLiveCall(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	s.active["CA2"] = seedBridge()

	form := strings.NewReader("CallSid=CA2&CallStatus=in-progress")
	req := httptest.NewRequest("POST", "/twilio/status", form)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if _, ok := s.lookupActive("CA2"); !ok {
		t.Error("live call was removed by non-terminal status")
	}
}

func TestListCalls(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	s.active["CA1"] = seedBridge()
	s.active["CA2"] = seedBridge()

	req := httptest.NewRequest("GET", "/calls", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var body struct {
		Count int `json:"count"`
		Calls []struct {
			CallSID string `json:"call_sid"`
			ClaimID string `json:"claim_id"`
		} `json:"active_calls"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Count != 2 || len(body.Calls) != 2 {
		t.Fatalf("count = %d, calls = %d; want 2", body.Count, len(body.Calls))
	}
	for _, c := range body.Calls {
		if c.ClaimID == "" {
			t.Errorf("call %s missing claim id", c.CallSID)
		}
	}
}

func TestGetCall_NotFound(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	req := httptest.NewRequest("GET", "/calls/CA404", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestGetFNOL_ExportsSnapshot(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	b := seedBridge()
	s.active["CA5"] = b

	req := httptest.NewRequest("GET", "/calls/CA5/fnol", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var snap intake.Snapshot
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.Claim.ID != b.ClaimID() {
		t.Errorf("claim id = %q, want %q", snap.Claim.ID, b.ClaimID())
	}
}

func TestProcess_ActiveCall(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	s.active["CA7"] = seedBridge()

	req := httptest.NewRequest("POST", "/process", strings.NewReader(`{"call_sid":"CA7"}`))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body = %s", rec.Code, rec.Body.String())
	}
	var res routing.Result
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	// An empty claim is incomplete and must land in human review.
	if res.Decision != routing.DecisionHumanReview {
		t.Errorf("decision = %q, want human_review", res.Decision)
	}

	s.mu.Lock()
	_, stored := s.processed["CA7"]
	s.mu.Unlock()
	if !stored {
		t.Error("result was not retained for /processed")
	}
}

func TestProcess_BadRequest(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	req := httptest.NewRequest("POST", "/process", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGetProcessed(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	s.processed["CA9"] = routing.Result{CallSID: "CA9", Decision: routing.DecisionStandardQueue}

	req := httptest.NewRequest("GET", "/processed/CA9", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var res routing.Result
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.CallSID != "CA9" || res.Decision != routing.DecisionStandardQueue {
		t.Errorf("result = %+v", res)
	}

	req = httptest.NewRequest("GET", "/processed/CA404", nil)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing sid status = %d, want 404", rec.Code)
	}
}

func TestSupervise_RegistersStartedCalls(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Supervise(ctx)

	b := seedBridge()
	s.started <- bridge.StartedCall{CallSID: "CA11", Bridge: b}

	deadline := time.After(2 * time.Second)
	for {
		if got, ok := s.lookupActive("CA11"); ok {
			if got != b {
				t.Fatalf("registered bridge = %p, want %p", got, b)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("call was never registered")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest("GET", path, nil)
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, rec.Code)
		}
	}
}

// TestStream_FullCall drives the websocket endpoint with the carrier's wire
// protocol and verifies the post-call sequence runs.
func TestStream_FullCall(t *testing.T) {
	t.Parallel()

	store := &stubStore{}
	s := newTestServer(t, WithStore(store))
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/twilio/stream"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial stream: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	start := `{"event":"start","start":{"streamSid":"MZ1","callSid":"CA99"}}`
	stop := `{"event":"stop"}`
	if err := conn.Write(ctx, websocket.MessageText, []byte(start)); err != nil {
		t.Fatalf("write start: %v", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, []byte(stop)); err != nil {
		t.Fatalf("write stop: %v", err)
	}

	// The handler finishes asynchronously; poll for the processed result.
	deadline := time.After(4 * time.Second)
	for {
		s.mu.Lock()
		res, ok := s.processed["CA99"]
		s.mu.Unlock()
		if ok {
			if res.CallSID != "CA99" {
				t.Fatalf("processed call sid = %q", res.CallSID)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("call was never processed")
		case <-time.After(10 * time.Millisecond):
		}
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.saveCalls) != 1 || store.saveCalls[0] != "voice" {
		t.Fatalf("save calls = %v; want one with source voice", store.saveCalls)
	}
	if len(store.resultCalls) != 1 || store.resultCalls[0] != store.savedClaim {
		t.Fatalf("result calls = %v; want [%s]", store.resultCalls, store.savedClaim)
	}
	if len(store.statusCalls) != 1 || !strings.HasPrefix(store.statusCalls[0], store.savedClaim+":") {
		t.Fatalf("status calls = %v", store.statusCalls)
	}
}
