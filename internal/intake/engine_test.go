package intake

import (
	"strings"
	"testing"

	"github.com/ganalabs/claimvoice/pkg/claim"
)

func TestApplyPatch(t *testing.T) {
	t.Parallel()

	t.Run("dot path writes with provenance", func(t *testing.T) {
		t.Parallel()
		e := NewEngine("CA123", "MZ123")
		e.AddTranscript(RoleCaller, "there's water damage in my kitchen")

		updated := e.ApplyPatch(map[string]any{
			"incident.damage_type":          "water",
			"incident.incident_description": "pipe burst behind the kitchen wall",
		})
		if len(updated) != 2 {
			t.Fatalf("want 2 updated ids, got %v", updated)
		}
		snap := e.Snapshot()
		if snap.Claim.Incident.DamageType != claim.DamageWater {
			t.Fatalf("damage type: want water, got %q", snap.Claim.Incident.DamageType)
		}
		prov := snap.Claim.Incident.DamageTypeProv
		if prov == nil {
			t.Fatal("no provenance attached to damage type")
		}
		if prov.Modality != claim.ModalityVoice || prov.Confidence != 0.8 {
			t.Fatalf("provenance: want voice/0.8, got %+v", prov)
		}
		if prov.Pointer != "voice_turn:1" {
			t.Fatalf("provenance pointer: want voice_turn:1, got %q", prov.Pointer)
		}
	})

	t.Run("nil values skipped", func(t *testing.T) {
		t.Parallel()
		e := NewEngine("CA123", "MZ123")
		updated := e.ApplyPatch(map[string]any{
			"claimant.name":          "Jordan Reyes",
			"claimant.policy_number": nil,
		})
		if len(updated) != 1 || updated[0] != claim.FieldClaimantName {
			t.Fatalf("want only claimant.name updated, got %v", updated)
		}
	})

	t.Run("unknown ids skipped without aborting", func(t *testing.T) {
		t.Parallel()
		e := NewEngine("CA123", "MZ123")
		updated := e.ApplyPatch(map[string]any{
			"claimant.favorite_color": "blue",
			"claimant.name":           "Jordan Reyes",
		})
		if len(updated) != 1 || updated[0] != claim.FieldClaimantName {
			t.Fatalf("want only claimant.name updated, got %v", updated)
		}
	})

	t.Run("negative cost rejected at patch boundary", func(t *testing.T) {
		t.Parallel()
		e := NewEngine("CA123", "MZ123")
		updated := e.ApplyPatch(map[string]any{
			"property_damage.estimated_repair_cost": -500.0,
		})
		if len(updated) != 0 {
			t.Fatalf("want no updated ids for negative cost, got %v", updated)
		}
		snap := e.Snapshot()
		if snap.Claim.PropertyDamage.EstimatedRepairCost != nil {
			t.Fatalf("negative cost reached the claim: %v",
				*snap.Claim.PropertyDamage.EstimatedRepairCost)
		}
	})

	t.Run("extraction history recorded", func(t *testing.T) {
		t.Parallel()
		e := NewEngine("CA123", "MZ123")
		e.ApplyPatch(map[string]any{"claimant.name": "Jordan Reyes"})
		e.ApplyPatch(map[string]any{"bogus.field": "x"})
		snap := e.Snapshot()
		if len(snap.History) != 1 {
			t.Fatalf("want 1 extraction record, got %d", len(snap.History))
		}
		if snap.History[0].Updated[0] != claim.FieldClaimantName {
			t.Fatalf("history records wrong field: %v", snap.History[0].Updated)
		}
	})
}

func TestTurnCounter(t *testing.T) {
	t.Parallel()
	e := NewEngine("CA123", "MZ123")
	e.AddTranscript(RoleAgent, "Hello, how can I help?")
	e.ApplyPatch(map[string]any{"incident.incident_date": "2026-08-14"})
	snap := e.Snapshot()
	if got := snap.Claim.Incident.DateProv.Pointer; got != "voice_turn:0" {
		t.Fatalf("agent utterances must not advance the turn: got %q", got)
	}

	e.AddTranscript(RoleCaller, "hi")
	e.AddTranscript(RoleCaller, "it happened yesterday")
	e.ApplyPatch(map[string]any{"incident.incident_location": "12 Elm Street"})
	snap = e.Snapshot()
	if got := snap.Claim.Incident.LocationProv.Pointer; got != "voice_turn:2" {
		t.Fatalf("want voice_turn:2 after two caller turns, got %q", got)
	}
}

func TestMissingFieldsAndNextQuestion(t *testing.T) {
	t.Parallel()
	e := NewEngine("CA123", "MZ123")

	missing := e.MissingFields(true)
	if len(missing) != len(claim.Catalog) {
		t.Fatalf("fresh engine: want %d missing, got %d", len(claim.Catalog), len(missing))
	}
	missingReq := e.MissingFields(false)
	if len(missingReq) != 7 {
		t.Fatalf("fresh engine: want 7 required missing, got %d", len(missingReq))
	}

	next, ok := e.NextQuestion()
	if !ok || next.ID != claim.FieldClaimantName {
		t.Fatalf("first question: want %q, got %q (ok=%v)", claim.FieldClaimantName, next.ID, ok)
	}

	e.ApplyPatch(map[string]any{"claimant.name": "Jordan Reyes"})
	next, ok = e.NextQuestion()
	if !ok || next.ID != claim.FieldPolicyNumber {
		t.Fatalf("second question: want %q, got %q", claim.FieldPolicyNumber, next.ID)
	}
}

func TestCompletionPercentage(t *testing.T) {
	t.Parallel()
	e := NewEngine("CA123", "MZ123")
	if got := e.CompletionPercentage(); got != 0 {
		t.Fatalf("fresh engine: want 0%%, got %v", got)
	}

	// An unrecognised enum value coerces to unknown and must not count.
	e.ApplyPatch(map[string]any{"incident.damage_type": "gremlins"})
	if got := e.CompletionPercentage(); got != 0 {
		t.Fatalf("unknown enum counted as filled: %v%%", got)
	}

	e.ApplyPatch(map[string]any{"claimant.name": "Jordan Reyes"})
	want := 1.0 / 7.0 * 100
	if got := e.CompletionPercentage(); got != want {
		t.Fatalf("want %v%%, got %v%%", want, got)
	}
}

// TestConversationToComplete drives the engine through an eight-turn
// conversation and expects a complete claim at the end.
func TestConversationToComplete(t *testing.T) {
	t.Parallel()
	e := NewEngine("CA555", "MZ555")

	turns := []struct {
		said  string
		patch map[string]any
	}{
		{"hi, I need to file a claim, my name is Jordan Reyes",
			map[string]any{"claimant.name": "Jordan Reyes"}},
		{"my policy number is POL-88421",
			map[string]any{"claimant.policy_number": "POL-88421"}},
		{"a pipe burst and flooded the kitchen",
			map[string]any{"incident.damage_type": "water", "incident.incident_description": "a pipe burst and flooded the kitchen"}},
		{"it happened on August 14th",
			map[string]any{"incident.incident_date": "2026-08-14"}},
		{"the house is at 12 Elm Street, Springfield",
			map[string]any{"incident.incident_location": "12 Elm Street, Springfield"}},
		{"the kitchen wall and floor got soaked",
			map[string]any{"property_damage.property_type": "wall", "property_damage.room_location": "kitchen"}},
		{"I'd say it's moderate, maybe two thousand dollars",
			map[string]any{"property_damage.damage_severity": "moderate", "property_damage.estimated_repair_cost": "$2,000"}},
		{"you can reach me at 555-867-5309",
			map[string]any{"claimant.contact_phone": "555-867-5309"}},
	}

	for i, turn := range turns {
		// The last required field (property type) arrives on turn 5.
		if i <= 5 && e.IsComplete() {
			t.Fatalf("claim complete too early at turn %d", i)
		}
		e.AddTranscript(RoleCaller, turn.said)
		e.ApplyPatch(turn.patch)
	}

	if !e.IsComplete() {
		t.Fatalf("claim should be complete; missing %v", e.MissingFields(false))
	}
	if got := e.CompletionPercentage(); got != 100 {
		t.Fatalf("want 100%%, got %v%%", got)
	}

	snap := e.Finalize()
	if snap.Claim.PropertyDamage.EstimatedRepairCost == nil || *snap.Claim.PropertyDamage.EstimatedRepairCost != 2000 {
		t.Fatalf("cost: want 2000, got %v", snap.Claim.PropertyDamage.EstimatedRepairCost)
	}
	if len(snap.Claim.Evidence.MissingEvidence) == 0 {
		t.Fatal("finalize should flag missing evidence on a photo-less claim")
	}
	if len(snap.Transcript) != 8 {
		t.Fatalf("transcript: want 8 entries, got %d", len(snap.Transcript))
	}
	if snap.Metadata.CallSID != "CA555" {
		t.Fatalf("call sid: want CA555, got %q", snap.Metadata.CallSID)
	}
}

func TestAskedFields(t *testing.T) {
	t.Parallel()
	e := NewEngine("CA123", "MZ123")
	if e.WasFieldAsked(claim.FieldPolicyNumber) {
		t.Fatal("fresh engine reports field asked")
	}
	e.MarkFieldAsked(claim.FieldPolicyNumber)
	if !e.WasFieldAsked(claim.FieldPolicyNumber) {
		t.Fatal("marked field not reported asked")
	}
}

func TestRecentTurns(t *testing.T) {
	t.Parallel()
	e := NewEngine("CA123", "MZ123")
	for _, s := range []string{"one", "two", "three", "four", "five"} {
		e.AddTranscript(RoleCaller, s)
	}
	recent := e.RecentTurns(4)
	if len(recent) != 4 {
		t.Fatalf("want 4 entries, got %d", len(recent))
	}
	if recent[0].Content != "two" || recent[3].Content != "five" {
		t.Fatalf("want oldest-first window [two..five], got %v", recent)
	}
}

func TestSummary(t *testing.T) {
	t.Parallel()
	e := NewEngine("CA123", "MZ123")
	if got := e.Summary(); got != "No information collected yet." {
		t.Fatalf("empty summary: got %q", got)
	}
	e.ApplyPatch(map[string]any{
		"claimant.name":                         "Jordan Reyes",
		"incident.damage_type":                  "water",
		"property_damage.estimated_repair_cost": 2500.0,
	})
	sum := e.Summary()
	for _, want := range []string{"Claimant: Jordan Reyes", "Damage Type: water", "Est. Cost: $2500.00", "Completion:"} {
		if !strings.Contains(sum, want) {
			t.Fatalf("summary missing %q:\n%s", want, sum)
		}
	}
}
