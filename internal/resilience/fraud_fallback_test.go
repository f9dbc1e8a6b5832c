package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/ganalabs/claimvoice/internal/routing"
	"github.com/ganalabs/claimvoice/pkg/claim"
)

// stubAnalyzer is a configurable FraudAnalyzer for tests.
type stubAnalyzer struct {
	analysis routing.FraudAnalysis
	err      error
	calls    int
}

func (a *stubAnalyzer) Analyze(_ context.Context, _ *claim.Claim) (routing.FraudAnalysis, error) {
	a.calls++
	if a.err != nil {
		return routing.FraudAnalysis{}, a.err
	}
	return a.analysis, nil
}

func TestFraudFallback_PrimarySuccess(t *testing.T) {
	primary := &stubAnalyzer{analysis: routing.FraudAnalysis{Score: 0.2}}
	secondary := &stubAnalyzer{analysis: routing.FraudAnalysis{Score: 0.9}}

	fb := NewFraudFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	analysis, err := fb.Analyze(context.Background(), claim.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if analysis.Score != 0.2 {
		t.Fatalf("score = %v, want 0.2", analysis.Score)
	}
	if secondary.calls != 0 {
		t.Fatalf("secondary called %d times, want 0", secondary.calls)
	}
}

func TestFraudFallback_Failover(t *testing.T) {
	primary := &stubAnalyzer{err: errors.New("primary down")}
	secondary := &stubAnalyzer{analysis: routing.FraudAnalysis{
		Score:      0.7,
		Indicators: []string{"repair cost inconsistent with severity"},
	}}

	fb := NewFraudFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	analysis, err := fb.Analyze(context.Background(), claim.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if analysis.Score != 0.7 {
		t.Fatalf("score = %v, want 0.7", analysis.Score)
	}
	if len(analysis.Indicators) != 1 {
		t.Fatalf("indicators = %v, want one entry", analysis.Indicators)
	}
}

func TestFraudFallback_AllFail(t *testing.T) {
	primary := &stubAnalyzer{err: errors.New("primary down")}
	secondary := &stubAnalyzer{err: errors.New("secondary down")}

	fb := NewFraudFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	_, err := fb.Analyze(context.Background(), claim.New())
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}
