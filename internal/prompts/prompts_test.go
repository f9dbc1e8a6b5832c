package prompts

import (
	"strings"
	"testing"

	"github.com/ganalabs/claimvoice/pkg/claim"
)

func TestCollecting(t *testing.T) {
	t.Parallel()

	st := Status{
		MissingFields: []claim.FieldID{
			claim.FieldPolicyNumber, claim.FieldIncidentDate, claim.FieldIncidentLocation,
			claim.FieldIncidentDescription, claim.FieldPropertyType, claim.FieldRoomLocation,
		},
		NextQuestion:        "Could you please provide your policy number?",
		Score:               0.45,
		CriticalMissing:     []string{"damage_photos", "incident_description"},
		AlternativeQuestion: "Can you describe what happened and how the damage occurred?",
		Contradictions:      []string{"Severity marked as SEVERE but estimated cost is only $500.00 (expected >$1000)"},
	}
	got := Collecting(st)

	for _, want := range []string{
		"You are Sarah",
		"FIELDS STILL NEEDED: claimant.policy_number, incident.incident_date",
		"SUGGESTED NEXT QUESTION: Could you please provide your policy number?",
		"CLAIM STATUS: 45% complete",
		"CRITICAL MISSING: damage_photos, incident_description",
		"ALTERNATIVE QUESTION: Can you describe what happened",
		"WARNING - CONTRADICTIONS DETECTED:",
		"SEVERE",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("collecting prompt missing %q", want)
		}
	}

	// Only the first five missing fields are shown.
	if strings.Contains(got, string(claim.FieldRoomLocation)) {
		t.Fatal("collecting prompt should cap missing fields at five")
	}
}

func TestCollectingSkipsDuplicateAlternative(t *testing.T) {
	t.Parallel()
	q := "When did the damage occur?"
	got := Collecting(Status{NextQuestion: q, AlternativeQuestion: q, Score: 0.5})
	if strings.Contains(got, "ALTERNATIVE QUESTION") {
		t.Fatal("alternative question identical to next question should be omitted")
	}
}

func TestWrapUp(t *testing.T) {
	t.Parallel()

	plain := WrapUp(nil)
	if !strings.Contains(plain, "wrap up the call smoothly") {
		t.Fatal("wrap-up prompt missing closing sequence")
	}
	if strings.Contains(plain, "OPTIONAL FOLLOW-UPS") {
		t.Fatal("wrap-up without follow-ups should not list any")
	}

	withQs := WrapUp([]string{"q1?", "q2?", "q3?"})
	if !strings.Contains(withQs, "OPTIONAL FOLLOW-UPS") || !strings.Contains(withQs, "- q2?") {
		t.Fatal("wrap-up should carry follow-up questions")
	}
	if strings.Contains(withQs, "q3?") {
		t.Fatal("wrap-up should cap follow-ups at two")
	}
}
