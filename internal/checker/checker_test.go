package checker

import (
	"strings"
	"testing"
	"time"

	"github.com/ganalabs/claimvoice/pkg/claim"
)

func fullClaim() *claim.Claim {
	c := claim.New()
	c.Claimant.Name = "Jordan Reyes"
	c.Claimant.PolicyNumber = "POL-12345"
	c.Incident.Date = "2026-08-14"
	c.Incident.Location = "12 Elm Street, Springfield"
	c.Incident.Description = "A pipe burst behind the kitchen wall overnight."
	c.Incident.DamageType = claim.DamageWater
	c.PropertyDamage.PropertyType = claim.PropertyWall
	c.PropertyDamage.RoomLocation = "kitchen"
	c.PropertyDamage.Severity = claim.SeverityModerate
	cost := 2500.0
	c.PropertyDamage.EstimatedRepairCost = &cost
	c.Evidence.HasDamagePhotos = true
	c.Evidence.DamagePhotoCount = 3
	c.Evidence.HasRepairEstimate = true
	return c
}

// fixed reference clock so the 2026-08-14 incident date stays recent.
var testNow = time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

func TestFullClaimScoresOne(t *testing.T) {
	t.Parallel()
	rep := checkAt(fullClaim(), testNow)
	if rep.Score != 1.0 {
		t.Fatalf("want score 1.0, got %v (missing %v)", rep.Score, rep.MissingEvidence)
	}
	if len(rep.MissingEvidence) != 0 {
		t.Fatalf("want no missing evidence, got %v", rep.MissingEvidence)
	}
	if len(rep.Contradictions) != 0 {
		t.Fatalf("want no contradictions, got %v", rep.Contradictions)
	}
}

func TestEmptyClaimScore(t *testing.T) {
	t.Parallel()
	rep := checkAt(claim.New(), testNow)
	if rep.Score != 0 {
		t.Fatalf("want score 0, got %v", rep.Score)
	}
	// Missing tags come out in tier evaluation order.
	wantFirst := []string{TagDamagePhotos, TagIncidentDescription, TagDamageType, TagPropertyType}
	if len(rep.MissingEvidence) < len(wantFirst) {
		t.Fatalf("missing evidence too short: %v", rep.MissingEvidence)
	}
	for i, tag := range wantFirst {
		if rep.MissingEvidence[i] != tag {
			t.Fatalf("missing[%d]: want %q, got %q", i, tag, rep.MissingEvidence[i])
		}
	}
}

func TestTierOneMissingCapsScore(t *testing.T) {
	t.Parallel()
	c := fullClaim()
	c.Evidence.HasDamagePhotos = false
	c.Evidence.DamagePhotoCount = 0
	c.Incident.Description = ""
	c.Incident.DamageType = claim.DamageUnknown
	c.PropertyDamage.PropertyType = claim.PropertyUnknown
	rep := checkAt(c, testNow)
	if rep.Score > 0.4 {
		t.Fatalf("all tier-1 items missing: want score <= 0.4, got %v", rep.Score)
	}
}

func TestSevereLowCostContradiction(t *testing.T) {
	t.Parallel()
	c := fullClaim()
	c.PropertyDamage.Severity = claim.SeveritySevere
	cost := 500.0
	c.PropertyDamage.EstimatedRepairCost = &cost
	rep := checkAt(c, testNow)
	found := false
	for _, msg := range rep.Contradictions {
		if strings.Contains(msg, "SEVERE") && strings.Contains(msg, "$500.00") {
			found = true
		}
	}
	if !found {
		t.Fatalf("want contradiction naming SEVERE and $500.00, got %v", rep.Contradictions)
	}
}

func TestMinorHighCostContradiction(t *testing.T) {
	t.Parallel()
	c := fullClaim()
	c.PropertyDamage.Severity = claim.SeverityMinor
	cost := 15000.0
	c.PropertyDamage.EstimatedRepairCost = &cost
	rep := checkAt(c, testNow)
	foundMinor, foundEstimate := false, false
	for _, msg := range rep.Contradictions {
		if strings.Contains(msg, "MINOR") {
			foundMinor = true
		}
		if strings.Contains(msg, "no repair estimate") {
			foundEstimate = true
		}
	}
	if !foundMinor {
		t.Fatalf("want MINOR/cost contradiction, got %v", rep.Contradictions)
	}
	// 15000 > 5000 but the full claim has an estimate document, so no
	// high-cost-without-estimate flag.
	if foundEstimate {
		t.Fatalf("estimate document present, got %v", rep.Contradictions)
	}
}

func TestHighCostWithoutEstimateDocument(t *testing.T) {
	t.Parallel()
	c := fullClaim()
	c.Evidence.HasRepairEstimate = false
	cost := 8000.0
	c.PropertyDamage.EstimatedRepairCost = &cost
	rep := checkAt(c, testNow)
	found := false
	for _, msg := range rep.Contradictions {
		if strings.Contains(msg, "$8000.00") && strings.Contains(msg, "no repair estimate") {
			found = true
		}
	}
	if !found {
		t.Fatalf("want high-cost-without-estimate contradiction, got %v", rep.Contradictions)
	}
}

func TestDescriptionWithoutPhotos(t *testing.T) {
	t.Parallel()
	c := fullClaim()
	c.Evidence.HasDamagePhotos = false
	c.Evidence.DamagePhotoCount = 0
	rep := checkAt(c, testNow)
	found := false
	for _, msg := range rep.Contradictions {
		if strings.Contains(msg, "no damage photos") {
			found = true
		}
	}
	if !found {
		t.Fatalf("want description-without-photos contradiction, got %v", rep.Contradictions)
	}
}

func TestDateChecks(t *testing.T) {
	t.Parallel()

	t.Run("future date", func(t *testing.T) {
		t.Parallel()
		c := fullClaim()
		c.Incident.Date = "2027-01-01"
		rep := checkAt(c, testNow)
		found := false
		for _, msg := range rep.Contradictions {
			if strings.Contains(msg, "future") {
				found = true
			}
		}
		if !found {
			t.Fatalf("want future-date contradiction, got %v", rep.Contradictions)
		}
	})

	t.Run("stale date", func(t *testing.T) {
		t.Parallel()
		c := fullClaim()
		c.Incident.Date = "2023-05-01"
		rep := checkAt(c, testNow)
		found := false
		for _, msg := range rep.Contradictions {
			if strings.Contains(msg, "2 years old") {
				found = true
			}
		}
		if !found {
			t.Fatalf("want stale-date contradiction, got %v", rep.Contradictions)
		}
	})

	t.Run("unparseable date skipped", func(t *testing.T) {
		t.Parallel()
		c := fullClaim()
		c.Incident.Date = "last Tuesday"
		rep := checkAt(c, testNow)
		for _, msg := range rep.Contradictions {
			if strings.Contains(msg, "date") {
				t.Fatalf("free-form date should skip date checks, got %q", msg)
			}
		}
	})
}

func TestLowConfidenceFlags(t *testing.T) {
	t.Parallel()
	c := fullClaim()
	c.Incident.DamageTypeProv = &claim.Provenance{Modality: claim.ModalityVoice, Confidence: 0.2}
	c.Incident.LocationProv = &claim.Provenance{Modality: claim.ModalityVoice, Confidence: 0.1}
	rep := checkAt(c, testNow)
	wantSubstrings := []string{"damage type classification", "location provided but with very low confidence"}
	for _, want := range wantSubstrings {
		found := false
		for _, msg := range rep.Contradictions {
			if strings.Contains(msg, want) {
				found = true
			}
		}
		if !found {
			t.Fatalf("want contradiction containing %q, got %v", want, rep.Contradictions)
		}
	}
}

func TestRecommendedQuestions(t *testing.T) {
	t.Parallel()

	t.Run("capped at three", func(t *testing.T) {
		t.Parallel()
		rep := checkAt(claim.New(), testNow)
		if len(rep.RecommendedQuestions) != 3 {
			t.Fatalf("want exactly 3 questions for an empty claim, got %d: %v",
				len(rep.RecommendedQuestions), rep.RecommendedQuestions)
		}
		if !strings.Contains(rep.RecommendedQuestions[0], "photos") {
			t.Fatalf("first question should target photos, got %q", rep.RecommendedQuestions[0])
		}
	})

	t.Run("severity question when unknown", func(t *testing.T) {
		t.Parallel()
		c := fullClaim()
		c.PropertyDamage.Severity = claim.SeverityUnknown
		rep := checkAt(c, testNow)
		found := false
		for _, q := range rep.RecommendedQuestions {
			if strings.Contains(q, "severity") {
				found = true
			}
		}
		if !found {
			t.Fatalf("want severity question, got %v", rep.RecommendedQuestions)
		}
	})

	t.Run("none when only strongly-recommended items are missing", func(t *testing.T) {
		t.Parallel()
		c := fullClaim()
		c.Evidence.HasRepairEstimate = false
		c.PropertyDamage.RoomLocation = ""
		c.Evidence.DamagePhotoCount = 1
		rep := checkAt(c, testNow)
		if len(rep.MissingEvidence) == 0 {
			t.Fatal("want missing evidence for the tier-3 gaps")
		}
		if len(rep.RecommendedQuestions) != 0 {
			t.Fatalf("tier-3 gaps should not generate questions, got %v", rep.RecommendedQuestions)
		}
	})

	t.Run("none for a full claim", func(t *testing.T) {
		t.Parallel()
		rep := checkAt(fullClaim(), testNow)
		if len(rep.RecommendedQuestions) != 0 {
			t.Fatalf("want no questions, got %v", rep.RecommendedQuestions)
		}
	})
}

// TestDefectDetectionRate injects a battery of single defects into otherwise
// complete claims and requires the checker to surface every one, either as
// missing evidence or as a contradiction.
func TestDefectDetectionRate(t *testing.T) {
	t.Parallel()

	cost := func(v float64) *float64 { return &v }
	defects := []struct {
		name   string
		mutate func(*claim.Claim)
		detect func(Report) bool
	}{
		{"no photos", func(c *claim.Claim) { c.Evidence.HasDamagePhotos = false; c.Evidence.DamagePhotoCount = 0 },
			func(r Report) bool { return contains(r.MissingEvidence, TagDamagePhotos) }},
		{"no description", func(c *claim.Claim) { c.Incident.Description = "   " },
			func(r Report) bool { return contains(r.MissingEvidence, TagIncidentDescription) }},
		{"unknown damage type", func(c *claim.Claim) { c.Incident.DamageType = claim.DamageUnknown },
			func(r Report) bool { return contains(r.MissingEvidence, TagDamageType) }},
		{"unknown property type", func(c *claim.Claim) { c.PropertyDamage.PropertyType = claim.PropertyUnknown },
			func(r Report) bool { return contains(r.MissingEvidence, TagPropertyType) }},
		{"no location", func(c *claim.Claim) { c.Incident.Location = "" },
			func(r Report) bool { return contains(r.MissingEvidence, TagIncidentLocation) }},
		{"no cost", func(c *claim.Claim) { c.PropertyDamage.EstimatedRepairCost = nil },
			func(r Report) bool { return contains(r.MissingEvidence, TagEstimatedRepairCost) }},
		{"no date", func(c *claim.Claim) { c.Incident.Date = "" },
			func(r Report) bool { return contains(r.MissingEvidence, TagIncidentDate) }},
		{"single photo", func(c *claim.Claim) { c.Evidence.DamagePhotoCount = 1 },
			func(r Report) bool { return contains(r.MissingEvidence, TagMultiplePhotos) }},
		{"severe cheap", func(c *claim.Claim) {
			c.PropertyDamage.Severity = claim.SeveritySevere
			c.PropertyDamage.EstimatedRepairCost = cost(200)
		}, func(r Report) bool { return anyContains(r.Contradictions, "SEVERE") }},
		{"minor expensive", func(c *claim.Claim) {
			c.PropertyDamage.Severity = claim.SeverityMinor
			c.PropertyDamage.EstimatedRepairCost = cost(20000)
		}, func(r Report) bool { return anyContains(r.Contradictions, "MINOR") }},
		{"future incident", func(c *claim.Claim) { c.Incident.Date = "2030-01-01" },
			func(r Report) bool { return anyContains(r.Contradictions, "future") }},
		{"shaky damage type", func(c *claim.Claim) {
			c.Incident.DamageTypeProv = &claim.Provenance{Modality: claim.ModalityVoice, Confidence: 0.1}
		}, func(r Report) bool { return anyContains(r.Contradictions, "damage type classification") }},
	}

	for _, tc := range defects {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			c := fullClaim()
			tc.mutate(c)
			rep := checkAt(c, testNow)
			if !tc.detect(rep) {
				t.Fatalf("defect not detected; missing=%v contradictions=%v",
					rep.MissingEvidence, rep.Contradictions)
			}
			if rep.Score >= 1.0 && len(rep.Contradictions) == 0 {
				t.Fatalf("defective claim reported as perfect")
			}
		})
	}
}

func contains(list []string, s string) bool {
	for _, e := range list {
		if e == s {
			return true
		}
	}
	return false
}

func anyContains(list []string, substr string) bool {
	for _, e := range list {
		if strings.Contains(e, substr) {
			return true
		}
	}
	return false
}
