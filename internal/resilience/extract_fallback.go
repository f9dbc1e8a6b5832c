package resilience

import (
	"context"

	"github.com/ganalabs/claimvoice/pkg/provider/extract"
)

// ExtractorFallback implements [extract.Extractor] with automatic failover
// across multiple extraction backends. Each backend has its own circuit
// breaker; when the primary fails or its breaker is open, the next healthy
// fallback is tried.
//
// Extraction runs on every caller utterance during a live call, so a flapping
// backend would otherwise stall the conversation on each turn.
type ExtractorFallback struct {
	group *FallbackGroup[extract.Extractor]
}

// Compile-time interface assertion.
var _ extract.Extractor = (*ExtractorFallback)(nil)

// NewExtractorFallback creates an [ExtractorFallback] with primary as the
// preferred backend.
func NewExtractorFallback(primary extract.Extractor, primaryName string, cfg FallbackConfig) *ExtractorFallback {
	return &ExtractorFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional extractor as a fallback.
func (f *ExtractorFallback) AddFallback(name string, e extract.Extractor) {
	f.group.AddFallback(name, e)
}

// Extract sends the utterance to the first healthy extractor and returns its
// patch. If the primary fails, subsequent fallbacks are tried.
func (f *ExtractorFallback) Extract(ctx context.Context, utterance string, known map[string]any, recent []extract.Turn) (map[string]any, error) {
	return ExecuteWithResult(f.group, func(e extract.Extractor) (map[string]any, error) {
		return e.Extract(ctx, utterance, known, recent)
	})
}
