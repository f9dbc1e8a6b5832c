// Package extract defines the Extractor interface for pulling structured
// claim fields out of caller speech.
//
// The extractor is the bridge's offline collaborator: after each caller
// utterance it receives the transcript text plus conversational context and
// returns a patch of dot-notation field ids to values. The patch is merged
// into the claim by the intake engine, which performs its own coercion and
// provenance tracking.
package extract

import "context"

// Turn is one prior utterance supplied as conversation context.
type Turn struct {
	// Role is "user" for the caller or "assistant" for the agent.
	Role string
	// Content is the utterance text.
	Content string
}

// Extractor extracts claim fields from one caller statement.
//
// Implementations must be safe for concurrent use.
type Extractor interface {
	// Extract returns a patch of dot-notation field ids ("claimant.name",
	// "incident.damage_type") to extracted values. known lists the field
	// values already collected so the model does not re-extract them; recent
	// carries the last few conversation turns, oldest first.
	//
	// A nil or empty patch with a nil error means the statement contained
	// nothing extractable.
	Extract(ctx context.Context, utterance string, known map[string]any, recent []Turn) (map[string]any, error)
}
