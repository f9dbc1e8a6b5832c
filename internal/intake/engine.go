// Package intake implements the claim-state engine that accumulates a
// property-damage claim over the course of one call. One Engine exists per
// call and is the sole writer of its claim; the bridge feeds it extraction
// patches and transcript entries, and reads completeness to steer the
// dialogue.
package intake

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ganalabs/claimvoice/pkg/claim"
)

// Transcript roles.
const (
	RoleCaller = "user"
	RoleAgent  = "assistant"
)

// TranscriptEntry is one utterance in the call transcript.
type TranscriptEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Turn      int       `json:"turn"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
}

// ExtractionRecord captures one successful patch application.
type ExtractionRecord struct {
	Timestamp time.Time       `json:"timestamp"`
	Turn      int             `json:"turn"`
	Updated   []claim.FieldID `json:"fields_updated"`
	Patch     map[string]any  `json:"patch"`
}

// CallMetadata identifies the carrier call this claim was collected on.
type CallMetadata struct {
	CallSID   string    `json:"call_sid"`
	StreamSID string    `json:"stream_sid"`
	StartedAt time.Time `json:"call_start_time"`
}

// Snapshot is a point-in-time export of the engine state: the claim plus the
// call metadata, transcript, and extraction history collected so far.
type Snapshot struct {
	Claim      claim.Claim        `json:"claim"`
	Metadata   CallMetadata       `json:"call_metadata"`
	Transcript []TranscriptEntry  `json:"transcript"`
	History    []ExtractionRecord `json:"extraction_history"`
}

// voiceConfidence is the default confidence attached to fields extracted
// from caller speech.
const voiceConfidence = 0.8

// Engine owns one claim for the duration of a call. Safe for concurrent use;
// the bridge's forwarding loop and its goodbye timer both touch it.
type Engine struct {
	mu      sync.Mutex
	claim   *claim.Claim
	meta    CallMetadata
	turn    int
	asked   map[claim.FieldID]bool
	entries []TranscriptEntry
	history []ExtractionRecord
}

// NewEngine creates an engine around a fresh empty claim.
func NewEngine(callSID, streamSID string) *Engine {
	return &Engine{
		claim: claim.New(),
		meta: CallMetadata{
			CallSID:   callSID,
			StreamSID: streamSID,
			StartedAt: time.Now().UTC(),
		},
		asked: make(map[claim.FieldID]bool),
	}
}

// SetCallInfo records the carrier identifiers once the stream start frame
// arrives. The call SID is often unknown when the engine is constructed.
func (e *Engine) SetCallInfo(callSID, streamSID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if callSID != "" {
		e.meta.CallSID = callSID
	}
	if streamSID != "" {
		e.meta.StreamSID = streamSID
	}
}

// ClaimID returns the id of the claim under collection.
func (e *Engine) ClaimID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.claim.ID
}

// ApplyPatch merges extracted field values into the claim and returns the ids
// that were actually updated. Nil values are skipped, unknown ids and values
// that fail coercion are skipped without aborting the rest of the patch, and
// every provenance-tracked field gets a voice provenance pointing at the
// current conversation turn. A non-empty update is recorded in the extraction
// history.
func (e *Engine) ApplyPatch(patch map[string]any) []claim.FieldID {
	e.mu.Lock()
	defer e.mu.Unlock()

	prov := &claim.Provenance{
		Modality:   claim.ModalityVoice,
		Confidence: voiceConfidence,
		Pointer:    fmt.Sprintf("voice_turn:%d", e.turn),
	}

	var updated []claim.FieldID
	for id, v := range patch {
		if v == nil {
			continue
		}
		if err := claim.Set(e.claim, claim.FieldID(id), v, prov); err != nil {
			continue
		}
		updated = append(updated, claim.FieldID(id))
	}

	if len(updated) > 0 {
		e.history = append(e.history, ExtractionRecord{
			Timestamp: time.Now().UTC(),
			Turn:      e.turn,
			Updated:   updated,
			Patch:     patch,
		})
	}
	return updated
}

// KnownFields returns the filled catalog fields as a dot-notation id to value
// map, the shape the extractor takes as already-collected context.
func (e *Engine) KnownFields() map[string]any {
	e.mu.Lock()
	defer e.mu.Unlock()

	known := make(map[string]any)
	c := e.claim
	if c.Claimant.Name != "" {
		known[string(claim.FieldClaimantName)] = c.Claimant.Name
	}
	if c.Claimant.PolicyNumber != "" {
		known[string(claim.FieldPolicyNumber)] = c.Claimant.PolicyNumber
	}
	if c.Claimant.ContactPhone != "" {
		known[string(claim.FieldContactPhone)] = c.Claimant.ContactPhone
	}
	if c.Claimant.ContactEmail != "" {
		known[string(claim.FieldContactEmail)] = c.Claimant.ContactEmail
	}
	if c.Incident.DamageType != claim.DamageUnknown {
		known[string(claim.FieldDamageType)] = string(c.Incident.DamageType)
	}
	if c.Incident.Date != "" {
		known[string(claim.FieldIncidentDate)] = c.Incident.Date
	}
	if c.Incident.Location != "" {
		known[string(claim.FieldIncidentLocation)] = c.Incident.Location
	}
	if c.Incident.Description != "" {
		known[string(claim.FieldIncidentDescription)] = c.Incident.Description
	}
	if c.PropertyDamage.PropertyType != claim.PropertyUnknown {
		known[string(claim.FieldPropertyType)] = string(c.PropertyDamage.PropertyType)
	}
	if c.PropertyDamage.RoomLocation != "" {
		known[string(claim.FieldRoomLocation)] = c.PropertyDamage.RoomLocation
	}
	if c.PropertyDamage.Severity != claim.SeverityUnknown {
		known[string(claim.FieldSeverity)] = string(c.PropertyDamage.Severity)
	}
	if c.PropertyDamage.EstimatedRepairCost != nil {
		known[string(claim.FieldEstimatedRepairCost)] = *c.PropertyDamage.EstimatedRepairCost
	}
	return known
}

// MissingFields returns the catalog fields not yet filled, in priority order.
// With includeOptional false only required fields are reported.
func (e *Engine) MissingFields(includeOptional bool) []claim.FieldSpec {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.missingLocked(includeOptional)
}

func (e *Engine) missingLocked(includeOptional bool) []claim.FieldSpec {
	var missing []claim.FieldSpec
	for _, fs := range claim.Catalog {
		if !includeOptional && !fs.Required {
			continue
		}
		if !claim.Filled(e.claim, fs.ID) {
			missing = append(missing, fs)
		}
	}
	return missing
}

// NextQuestion returns the highest-priority missing catalog field, or false
// when every catalog field is filled.
func (e *Engine) NextQuestion() (claim.FieldSpec, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	missing := e.missingLocked(true)
	if len(missing) == 0 {
		return claim.FieldSpec{}, false
	}
	return missing[0], true
}

// CompletionPercentage reports the share of required catalog fields filled,
// in [0, 100].
func (e *Engine) CompletionPercentage() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	required, filled := 0, 0
	for _, fs := range claim.Catalog {
		if !fs.Required {
			continue
		}
		required++
		if claim.Filled(e.claim, fs.ID) {
			filled++
		}
	}
	if required == 0 {
		return 100
	}
	return float64(filled) / float64(required) * 100
}

// IsComplete reports whether every required catalog field is filled.
func (e *Engine) IsComplete() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.missingLocked(false)) == 0
}

// AddTranscript appends an utterance to the transcript. Caller utterances
// advance the conversation turn counter that provenance pointers reference.
func (e *Engine) AddTranscript(role, content string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.entries = append(e.entries, TranscriptEntry{
		Timestamp: time.Now().UTC(),
		Turn:      e.turn,
		Role:      role,
		Content:   content,
	})
	if role == RoleCaller {
		e.turn++
	}
}

// RecentTurns returns up to n most recent transcript entries, oldest first.
func (e *Engine) RecentTurns(n int) []TranscriptEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n > len(e.entries) {
		n = len(e.entries)
	}
	out := make([]TranscriptEntry, n)
	copy(out, e.entries[len(e.entries)-n:])
	return out
}

// MarkFieldAsked records that the agent has asked about id.
func (e *Engine) MarkFieldAsked(id claim.FieldID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.asked[id] = true
}

// WasFieldAsked reports whether the agent already asked about id.
func (e *Engine) WasFieldAsked(id claim.FieldID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.asked[id]
}

// Snapshot exports the current engine state. The claim is copied by value;
// provenance pointers are shared but never mutated in place by the engine.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() Snapshot {
	c := *e.claim
	c.Evidence.DamagePhotoIDs = append([]string(nil), e.claim.Evidence.DamagePhotoIDs...)
	c.Evidence.MissingEvidence = append([]string(nil), e.claim.Evidence.MissingEvidence...)
	return Snapshot{
		Claim:      c,
		Metadata:   e.meta,
		Transcript: append([]TranscriptEntry(nil), e.entries...),
		History:    append([]ExtractionRecord(nil), e.history...),
	}
}

// Finalize recomputes the evidence checklist and returns the closing
// snapshot. Called exactly once when the call ends.
func (e *Engine) Finalize() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.claim.RefreshMissingEvidence()
	return e.snapshotLocked()
}

// Summary renders a short human-readable recap of what has been collected,
// used for operator views and the wrap-up confirmation.
func (e *Engine) Summary() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	var lines []string
	c := e.claim
	if c.Claimant.Name != "" {
		lines = append(lines, "Claimant: "+c.Claimant.Name)
	}
	if c.Claimant.PolicyNumber != "" {
		lines = append(lines, "Policy: "+c.Claimant.PolicyNumber)
	}
	if c.Incident.DamageType != claim.DamageUnknown {
		lines = append(lines, "Damage Type: "+string(c.Incident.DamageType))
	}
	if c.Incident.Date != "" {
		lines = append(lines, "Date: "+c.Incident.Date)
	}
	if c.Incident.Location != "" {
		lines = append(lines, "Location: "+c.Incident.Location)
	}
	if c.Incident.Description != "" {
		lines = append(lines, "Description: "+c.Incident.Description)
	}
	if c.PropertyDamage.PropertyType != claim.PropertyUnknown {
		lines = append(lines, "Property Type: "+string(c.PropertyDamage.PropertyType))
	}
	if c.PropertyDamage.RoomLocation != "" {
		lines = append(lines, "Room: "+c.PropertyDamage.RoomLocation)
	}
	if c.PropertyDamage.Severity != claim.SeverityUnknown {
		lines = append(lines, "Severity: "+string(c.PropertyDamage.Severity))
	}
	if c.PropertyDamage.EstimatedRepairCost != nil {
		lines = append(lines, fmt.Sprintf("Est. Cost: $%.2f", *c.PropertyDamage.EstimatedRepairCost))
	}
	if len(lines) == 0 {
		return "No information collected yet."
	}

	required, filled := 0, 0
	for _, fs := range claim.Catalog {
		if !fs.Required {
			continue
		}
		required++
		if claim.Filled(c, fs.ID) {
			filled++
		}
	}
	lines = append(lines, fmt.Sprintf("\nCompletion: %.0f%%", float64(filled)/float64(required)*100))
	return strings.Join(lines, "\n")
}
