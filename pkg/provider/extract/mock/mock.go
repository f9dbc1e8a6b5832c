// Package mock provides a test double for the extract.Extractor interface.
//
// Configure Patch (or PatchFn for per-call behavior) and inspect
// ExtractCalls to verify what the bridge asked the extractor to process.
package mock

import (
	"context"
	"sync"

	"github.com/ganalabs/claimvoice/pkg/provider/extract"
)

// ExtractCall records a single invocation of Extractor.Extract.
type ExtractCall struct {
	// Utterance is the caller statement passed to Extract.
	Utterance string
	// Known is the already-collected field map passed to Extract.
	Known map[string]any
	// Recent is the conversation context passed to Extract.
	Recent []extract.Turn
}

// Extractor is a mock implementation of extract.Extractor.
type Extractor struct {
	mu sync.Mutex

	// Patch is returned by every Extract call when PatchFn is nil.
	Patch map[string]any

	// PatchFn, if set, computes the patch per call and takes precedence
	// over Patch.
	PatchFn func(utterance string) map[string]any

	// ExtractErr, if non-nil, is returned as the error from Extract.
	ExtractErr error

	// ExtractCalls records every call to Extract in order.
	ExtractCalls []ExtractCall
}

// Extract records the call and returns the configured patch and ExtractErr.
func (e *Extractor) Extract(_ context.Context, utterance string, known map[string]any, recent []extract.Turn) (map[string]any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ExtractCalls = append(e.ExtractCalls, ExtractCall{Utterance: utterance, Known: known, Recent: recent})
	if e.ExtractErr != nil {
		return nil, e.ExtractErr
	}
	if e.PatchFn != nil {
		return e.PatchFn(utterance), nil
	}
	return e.Patch, nil
}

// Calls returns a copy of ExtractCalls. Thread-safe.
func (e *Extractor) Calls() []ExtractCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]ExtractCall(nil), e.ExtractCalls...)
}

// Ensure Extractor implements extract.Extractor at compile time.
var _ extract.Extractor = (*Extractor)(nil)
