package openai

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ganalabs/claimvoice/pkg/provider/extract"
)

func TestCleanExtraction(t *testing.T) {
	t.Parallel()

	t.Run("flattens nested objects", func(t *testing.T) {
		t.Parallel()
		raw := map[string]any{
			"claimant": map[string]any{"name": "Jordan Reyes"},
			"incident": map[string]any{"damage_type": "Water"},
		}
		got := cleanExtraction(raw)
		want := map[string]any{
			"claimant.name":        "Jordan Reyes",
			"incident.damage_type": "water",
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("cleanExtraction mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("invalid enums fall back to unknown", func(t *testing.T) {
		t.Parallel()
		got := cleanExtraction(map[string]any{
			"incident.damage_type":            "meteorite",
			"property_damage.property_type":   "gazebo",
			"property_damage.damage_severity": "catastrophic",
		})
		for key, want := range map[string]string{
			"incident.damage_type":            "unknown",
			"property_damage.property_type":   "unknown",
			"property_damage.damage_severity": "unknown",
		} {
			if got[key] != want {
				t.Fatalf("%s = %v; want %q", key, got[key], want)
			}
		}
	})

	t.Run("cost coercion", func(t *testing.T) {
		t.Parallel()
		got := cleanExtraction(map[string]any{
			"property_damage.estimated_repair_cost": "$1,200.50",
		})
		if got["property_damage.estimated_repair_cost"] != 1200.50 {
			t.Fatalf("cost = %v; want 1200.50", got["property_damage.estimated_repair_cost"])
		}

		got = cleanExtraction(map[string]any{
			"property_damage.estimated_repair_cost": "a few grand",
		})
		if _, ok := got["property_damage.estimated_repair_cost"]; ok {
			t.Fatal("unparseable cost should be dropped")
		}

		got = cleanExtraction(map[string]any{
			"property_damage.estimated_repair_cost": float64(-100),
		})
		if _, ok := got["property_damage.estimated_repair_cost"]; ok {
			t.Fatal("negative cost should be dropped")
		}
	})

	t.Run("nil and blank values dropped", func(t *testing.T) {
		t.Parallel()
		got := cleanExtraction(map[string]any{
			"claimant.name":          nil,
			"claimant.policy_number": "   ",
			"incident.incident_date": "2026-08-14",
		})
		if len(got) != 1 || got["incident.incident_date"] != "2026-08-14" {
			t.Fatalf("cleaned = %v", got)
		}
	})
}

func TestBuildPrompt(t *testing.T) {
	t.Parallel()

	known := map[string]any{"claimant.name": "Jordan Reyes"}
	recent := []extract.Turn{
		{Role: "assistant", Content: "What happened?"},
		{Role: "user", Content: "a pipe burst"},
	}
	got := buildPrompt("it flooded the kitchen", known, recent)

	for _, want := range []string{
		"ALREADY COLLECTED",
		"claimant.name: Jordan Reyes",
		"RECENT CONVERSATION:",
		"ASSISTANT: What happened?",
		"USER: a pipe burst",
		"CALLER'S LATEST STATEMENT:\nit flooded the kitchen",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("prompt missing %q:\n%s", want, got)
		}
	}
}

func TestBuildPrompt_CapsContextTurns(t *testing.T) {
	t.Parallel()

	recent := []extract.Turn{
		{Role: "user", Content: "turn-one"},
		{Role: "user", Content: "turn-two"},
		{Role: "user", Content: "turn-three"},
		{Role: "user", Content: "turn-four"},
		{Role: "user", Content: "turn-five"},
	}
	got := buildPrompt("latest", nil, recent)
	if strings.Contains(got, "turn-one") {
		t.Fatal("prompt should include only the last four turns")
	}
	if !strings.Contains(got, "turn-two") || !strings.Contains(got, "turn-five") {
		t.Fatalf("prompt missing expected turns:\n%s", got)
	}
}

func TestNew_RequiresAPIKey(t *testing.T) {
	t.Parallel()
	if _, err := New("", "gpt-4o"); err == nil {
		t.Fatal("New with empty api key should return an error")
	}
}
