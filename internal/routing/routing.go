// Package routing implements the post-call claim workflow: validation and
// data-quality checks, fraud risk scoring, priority assignment, and the
// routing decision with its follow-up actions. It runs once per call, after
// the voice session has ended and the claim has been finalized.
package routing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ganalabs/claimvoice/pkg/claim"
)

// Priority is the claim handling priority.
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// Decision is where the claim is routed.
type Decision string

const (
	DecisionAutoApprove    Decision = "auto_approve"
	DecisionStandardQueue  Decision = "standard_queue"
	DecisionSeniorAdjuster Decision = "senior_adjuster"
	DecisionSIU            Decision = "siu"
	DecisionHumanReview    Decision = "human_review"
)

// Routing thresholds.
const (
	// siuFraudThreshold sends the claim to the Special Investigation Unit.
	siuFraudThreshold = 0.7
	// autoApproveFraudMax is the fraud ceiling for straight-through approval.
	autoApproveFraudMax = 0.2
	// maxMissingForFraud skips fraud analysis when the claim is emptier than
	// this; scoring a near-empty claim wastes a model call.
	maxMissingForFraud = 3
	// neutralFraudScore is assumed when fraud analysis fails.
	neutralFraudScore = 0.3

	urgentCostThreshold = 10000
	lowCostThreshold    = 1000
)

// Result is the outcome of processing one claim.
type Result struct {
	CallSID string `json:"call_sid"`

	IsComplete       bool     `json:"is_complete"`
	MissingFields    []string `json:"missing_fields"`
	ValidationErrors []string `json:"validation_errors"`

	FraudScore      float64  `json:"fraud_score"`
	FraudIndicators []string `json:"fraud_indicators"`

	Priority      Priority `json:"priority"`
	Decision      Decision `json:"routing_decision"`
	RoutingReason string   `json:"routing_reason"`

	FinalStatus string   `json:"final_status"`
	NextActions []string `json:"next_actions"`
}

// FraudAnalysis is the output of one fraud risk assessment.
type FraudAnalysis struct {
	// Score is the fraud risk in [0, 1]; higher is more suspicious.
	Score float64
	// Indicators lists the specific concerns found.
	Indicators []string
}

// FraudAnalyzer scores a claim for fraud risk.
type FraudAnalyzer interface {
	Analyze(ctx context.Context, c *claim.Claim) (FraudAnalysis, error)
}

// Option is a functional option for Processor.
type Option func(*Processor)

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(log *slog.Logger) Option {
	return func(p *Processor) { p.log = log }
}

// Processor runs claims through the full post-call workflow.
type Processor struct {
	analyzer FraudAnalyzer
	log      *slog.Logger
}

// NewProcessor creates a processor. analyzer may be nil, in which case fraud
// analysis is skipped and every claim scores zero.
func NewProcessor(analyzer FraudAnalyzer, opts ...Option) *Processor {
	p := &Processor{analyzer: analyzer, log: slog.Default()}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Process validates, scores, prioritises, and routes one claim. Fraud
// analysis failures degrade to a neutral score; Process itself never fails.
func (p *Processor) Process(ctx context.Context, c *claim.Claim, callSID string) Result {
	res := Result{CallSID: callSID}

	res.MissingFields, res.ValidationErrors = validate(c)
	res.IsComplete = len(res.MissingFields) == 0 && len(res.ValidationErrors) == 0

	if p.analyzer != nil && len(res.MissingFields) <= maxMissingForFraud {
		analysis, err := p.analyzer.Analyze(ctx, c)
		if err != nil {
			p.log.Error("fraud analysis failed", "call_sid", callSID, "error", err)
			res.FraudScore = neutralFraudScore
			res.FraudIndicators = []string{fmt.Sprintf("Analysis error: %v", err)}
		} else {
			res.FraudScore = analysis.Score
			res.FraudIndicators = analysis.Indicators
		}
	} else if p.analyzer != nil {
		p.log.Info("skipping fraud analysis, claim too incomplete", "call_sid", callSID)
	}

	res.Priority = determinePriority(c)
	res.Decision, res.RoutingReason = route(res.IsComplete, res.MissingFields, res.FraudScore, res.Priority)
	res.FinalStatus, res.NextActions = nextActions(res.Decision)

	p.log.Info("claim processed",
		"call_sid", callSID,
		"decision", res.Decision,
		"reason", res.RoutingReason,
		"priority", res.Priority,
		"fraud_score", res.FraudScore)
	return res
}

// validate checks the required intake fields and basic data quality.
func validate(c *claim.Claim) (missing, errors []string) {
	if c.Claimant.Name == "" {
		missing = append(missing, "Claimant name")
	}
	if c.Claimant.PolicyNumber == "" {
		missing = append(missing, "Policy number")
	}
	if c.Incident.DamageType == claim.DamageUnknown {
		missing = append(missing, "Type of damage")
	}
	if c.Incident.Description == "" {
		missing = append(missing, "Incident description")
	}

	if n := c.Claimant.PolicyNumber; n != "" && len(n) < 4 {
		errors = append(errors, "Policy number appears invalid (too short)")
	}
	if phone := c.Claimant.ContactPhone; phone != "" {
		digits := strings.NewReplacer("-", "", " ", "").Replace(phone)
		if len(digits) < 10 {
			errors = append(errors, "Phone number appears incomplete")
		}
	}
	if cost := c.PropertyDamage.EstimatedRepairCost; cost != nil && *cost < 0 {
		errors = append(errors, "Estimated repair cost cannot be negative")
	}
	return missing, errors
}

// determinePriority maps damage severity, type, and cost to a priority.
func determinePriority(c *claim.Claim) Priority {
	if c.PropertyDamage.Severity == claim.SeveritySevere || c.Incident.DamageType == claim.DamageFire {
		return PriorityUrgent
	}
	if cost := c.PropertyDamage.EstimatedRepairCost; cost != nil && *cost != 0 {
		if *cost > urgentCostThreshold {
			return PriorityHigh
		}
		if *cost < lowCostThreshold {
			return PriorityLow
		}
	}
	switch c.PropertyDamage.Severity {
	case claim.SeverityModerate:
		return PriorityNormal
	case claim.SeverityMinor:
		return PriorityLow
	}
	return PriorityNormal
}

// route applies the decision ladder: fraud first, then completeness,
// then priority.
func route(isComplete bool, missing []string, fraudScore float64, priority Priority) (Decision, string) {
	if fraudScore >= siuFraudThreshold {
		return DecisionSIU, fmt.Sprintf("High fraud risk score (%.2f)", fraudScore)
	}
	if !isComplete {
		return DecisionHumanReview, "Missing required information: " + strings.Join(missing, ", ")
	}
	if priority == PriorityUrgent {
		return DecisionSeniorAdjuster, "Urgent claim with severe damage"
	}
	if priority == PriorityLow && fraudScore < autoApproveFraudMax {
		return DecisionAutoApprove, "Low-risk, minor damage claim"
	}
	return DecisionStandardQueue, "Standard processing"
}

// nextActions maps the routing decision to a claim status and work items.
func nextActions(d Decision) (string, []string) {
	switch d {
	case DecisionAutoApprove:
		return "approved", []string{
			"Generate claim number",
			"Send confirmation to policyholder",
			"Schedule direct payment for minor repairs",
		}
	case DecisionSIU:
		return "under_investigation", []string{
			"Create SIU case file",
			"Flag for investigation",
			"Request additional documentation",
			"Hold all payments pending review",
		}
	case DecisionHumanReview:
		return "pending_review", []string{
			"Create review task",
			"Assign to available adjuster",
			"Request missing information from claimant",
		}
	case DecisionSeniorAdjuster:
		return "in_progress", []string{
			"Assign to senior adjuster",
			"Schedule property inspection",
			"Request contractor estimates",
			"Send acknowledgment to claimant",
		}
	default:
		return "in_progress", []string{
			"Assign to adjuster queue",
			"Send acknowledgment to policyholder",
			"Request damage photos if not provided",
			"Schedule follow-up call if needed",
		}
	}
}
