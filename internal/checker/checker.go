// Package checker analyzes a claim for evidence completeness and internal
// consistency. It is a pure function of the claim: no I/O, no clock other
// than the incident-date recency rule, safe to call on every extraction pass.
package checker

import (
	"fmt"
	"strings"
	"time"

	"github.com/ganalabs/claimvoice/pkg/claim"
)

// Canonical evidence tags reported in Report.MissingEvidence.
const (
	TagDamagePhotos        = "damage_photos"
	TagIncidentDescription = "incident_description"
	TagDamageType          = "damage_type"
	TagPropertyType        = "property_type"
	TagIncidentLocation    = "incident_location"
	TagEstimatedRepairCost = "estimated_repair_cost"
	TagIncidentDate        = "incident_date"
	TagRepairEstimateDoc   = "repair_estimate_document"
	TagRoomLocation        = "room_location"
	TagMultiplePhotos      = "multiple_photos"
)

// Tier weights. Critical items dominate the score so a claim missing any
// tier-1 item can never look nearly complete.
const (
	tier1Weight = 0.6
	tier2Weight = 0.3
	tier3Weight = 0.1
)

// lowConfidence is the provenance confidence below which an extracted value
// is treated as unreliable.
const lowConfidence = 0.3

// maxIncidentAge is how far back an incident date may lie before it is
// flagged as stale.
const maxIncidentAge = 730 * 24 * time.Hour

// maxQuestions caps Report.RecommendedQuestions.
const maxQuestions = 3

// Report is the result of checking one claim.
type Report struct {
	// Score is the weighted completeness score in [0, 1].
	Score float64 `json:"completeness_score"`
	// MissingEvidence lists absent evidence tags in tier evaluation order.
	MissingEvidence []string `json:"missing_required_evidence"`
	// Contradictions lists human-readable descriptions of detected
	// inconsistencies.
	Contradictions []string `json:"contradictions"`
	// RecommendedQuestions holds at most three follow-up questions, most
	// critical first.
	RecommendedQuestions []string `json:"recommended_questions"`
}

// tierItem is one scored evidence item.
type tierItem struct {
	tag     string
	present func(*claim.Claim) bool
}

var tier1 = []tierItem{
	{TagDamagePhotos, func(c *claim.Claim) bool {
		return c.Evidence.HasDamagePhotos && c.Evidence.DamagePhotoCount >= 1
	}},
	{TagIncidentDescription, func(c *claim.Claim) bool {
		return strings.TrimSpace(c.Incident.Description) != ""
	}},
	{TagDamageType, func(c *claim.Claim) bool {
		return c.Incident.DamageType != claim.DamageUnknown
	}},
	{TagPropertyType, func(c *claim.Claim) bool {
		return c.PropertyDamage.PropertyType != claim.PropertyUnknown
	}},
}

var tier2 = []tierItem{
	{TagIncidentLocation, func(c *claim.Claim) bool {
		return strings.TrimSpace(c.Incident.Location) != ""
	}},
	{TagEstimatedRepairCost, func(c *claim.Claim) bool {
		return c.PropertyDamage.EstimatedRepairCost != nil
	}},
	{TagIncidentDate, func(c *claim.Claim) bool {
		return c.Incident.Date != ""
	}},
}

var tier3 = []tierItem{
	{TagRepairEstimateDoc, func(c *claim.Claim) bool {
		return c.Evidence.HasRepairEstimate
	}},
	{TagRoomLocation, func(c *claim.Claim) bool {
		return strings.TrimSpace(c.PropertyDamage.RoomLocation) != ""
	}},
	{TagMultiplePhotos, func(c *claim.Claim) bool {
		return c.Evidence.DamagePhotoCount >= 2
	}},
}

// Check scores c for completeness, detects contradictions, and recommends
// follow-up questions.
func Check(c *claim.Claim) Report {
	return checkAt(c, time.Now().UTC())
}

func checkAt(c *claim.Claim, now time.Time) Report {
	var rep Report

	scoreTier := func(items []tierItem, weight float64) float64 {
		present := 0
		for _, it := range items {
			if it.present(c) {
				present++
			} else {
				rep.MissingEvidence = append(rep.MissingEvidence, it.tag)
			}
		}
		return weight * float64(present) / float64(len(items))
	}
	rep.Score = scoreTier(tier1, tier1Weight) + scoreTier(tier2, tier2Weight) + scoreTier(tier3, tier3Weight)

	rep.Contradictions = contradictions(c, now)
	rep.RecommendedQuestions = recommend(c, rep.MissingEvidence)
	return rep
}

func contradictions(c *claim.Claim, now time.Time) []string {
	var out []string

	if p := c.Incident.DamageTypeProv; p != nil && p.Confidence < lowConfidence {
		out = append(out, "Low confidence on damage type classification (confidence < 0.3)")
	}
	if p := c.PropertyDamage.PropertyTypeProv; p != nil && p.Confidence < lowConfidence {
		out = append(out, "Low confidence on property type classification (confidence < 0.3)")
	}
	if p := c.Incident.DescriptionProv; p != nil && p.Confidence < lowConfidence {
		out = append(out, "Low confidence on incident description extraction (confidence < 0.3)")
	}

	severity := c.PropertyDamage.Severity
	cost := c.PropertyDamage.EstimatedRepairCost

	if severity == claim.SeveritySevere && cost != nil && *cost < 1000 {
		out = append(out, fmt.Sprintf("Severity marked as SEVERE but estimated cost is only $%.2f (expected >$1000)", *cost))
	}
	if severity == claim.SeverityMinor && cost != nil && *cost > 10000 {
		out = append(out, fmt.Sprintf("Severity marked as MINOR but estimated cost is $%.2f (expected <$10000)", *cost))
	}

	if !c.Evidence.HasDamagePhotos && c.Incident.Description != "" {
		out = append(out, "Incident description provided but no damage photos uploaded")
	}

	if cost != nil && *cost > 5000 && !c.Evidence.HasRepairEstimate {
		out = append(out, fmt.Sprintf("High estimated cost ($%.2f) but no repair estimate document provided", *cost))
	}

	// Dates arrive as free-form caller speech; only flag values we can
	// actually parse.
	if t, ok := parseDate(c.Incident.Date); ok {
		if t.After(now) {
			out = append(out, fmt.Sprintf("Incident date is in the future: %s", t.Format(time.RFC3339)))
		} else if now.Sub(t) > maxIncidentAge {
			out = append(out, fmt.Sprintf("Incident date is more than 2 years old: %s", t.Format(time.RFC3339)))
		}
	}

	if c.Incident.Location != "" {
		if p := c.Incident.LocationProv; p != nil && p.Confidence < lowConfidence {
			out = append(out, "Incident location provided but with very low confidence (confidence < 0.3)")
		}
	}

	return out
}

// parseDate attempts the date layouts callers and extraction actually
// produce. Returns false for anything else.
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func recommend(c *claim.Claim, missing []string) []string {
	miss := make(map[string]bool, len(missing))
	for _, tag := range missing {
		miss[tag] = true
	}

	var qs []string
	if miss[TagDamagePhotos] {
		qs = append(qs, "Can you upload photos showing the damage?")
	}
	if miss[TagIncidentDescription] {
		qs = append(qs, "Can you describe what happened and how the damage occurred?")
	}
	lowDamageConf := c.Incident.DamageTypeProv != nil && c.Incident.DamageTypeProv.Confidence < lowConfidence
	if miss[TagDamageType] || c.Incident.DamageType == claim.DamageUnknown || lowDamageConf {
		qs = append(qs, "Can you clarify what caused the damage? (water, fire, impact, weather, etc.)")
	}
	if miss[TagPropertyType] {
		qs = append(qs, "What part of the property was damaged? (window, roof, ceiling, wall, etc.)")
	}
	if miss[TagIncidentLocation] {
		qs = append(qs, "Can you provide the exact address where the damage occurred?")
	}
	if miss[TagIncidentDate] {
		qs = append(qs, "When did the damage occur?")
	}
	if miss[TagEstimatedRepairCost] {
		qs = append(qs, "Do you have a repair estimate or expected cost range?")
	}
	if c.PropertyDamage.Severity == claim.SeverityUnknown {
		qs = append(qs, "How would you describe the severity of the damage? (minor, moderate, or severe)")
	}

	if len(qs) > maxQuestions {
		qs = qs[:maxQuestions]
	}
	return qs
}
