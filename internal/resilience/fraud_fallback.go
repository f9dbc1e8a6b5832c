package resilience

import (
	"context"

	"github.com/ganalabs/claimvoice/internal/routing"
	"github.com/ganalabs/claimvoice/pkg/claim"
)

// FraudFallback implements [routing.FraudAnalyzer] with automatic failover
// across multiple scoring backends. Fraud analysis runs once per call after
// hangup, so the breaker mostly protects the post-call workflow from a
// provider outage rather than from per-turn latency.
type FraudFallback struct {
	group *FallbackGroup[routing.FraudAnalyzer]
}

// Compile-time interface assertion.
var _ routing.FraudAnalyzer = (*FraudFallback)(nil)

// NewFraudFallback creates a [FraudFallback] with primary as the preferred
// backend.
func NewFraudFallback(primary routing.FraudAnalyzer, primaryName string, cfg FallbackConfig) *FraudFallback {
	return &FraudFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional analyzer as a fallback.
func (f *FraudFallback) AddFallback(name string, a routing.FraudAnalyzer) {
	f.group.AddFallback(name, a)
}

// Analyze scores the claim with the first healthy analyzer. If the primary
// fails, subsequent fallbacks are tried.
func (f *FraudFallback) Analyze(ctx context.Context, c *claim.Claim) (routing.FraudAnalysis, error) {
	return ExecuteWithResult(f.group, func(a routing.FraudAnalyzer) (routing.FraudAnalysis, error) {
		return a.Analyze(ctx, c)
	})
}
