package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/ganalabs/claimvoice/pkg/claim"
)

// Compile-time assertion that OpenAIFraudAnalyzer satisfies FraudAnalyzer.
var _ FraudAnalyzer = (*OpenAIFraudAnalyzer)(nil)

const defaultFraudModel = "gpt-4o-mini"

// Fraud scoring is deterministic: zero temperature, small bounded output.
const (
	fraudTemperature = 0
	fraudMaxTokens   = 500
)

const fraudSystemPrompt = `You are a fraud detection analyst for an insurance company.
Analyze the property damage claim data and identify potential fraud indicators.

Consider:
1. Timing anomalies (reported too late, vague dates)
2. Inconsistent details (damage type vs description mismatch)
3. Suspicious patterns (exaggerated damage, high repair estimates)
4. Red flags in the description (vague details, no witnesses)
5. Evidence gaps (no photos, no repair estimates)

Respond with JSON only:
{
    "fraud_score": 0.0-1.0 (higher = more suspicious),
    "indicators": ["list of specific concerns"],
    "reasoning": "brief explanation"
}

Be objective. Most claims are legitimate. Only flag genuine concerns.`

// FraudAnalyzerOption is a functional option for OpenAIFraudAnalyzer.
type FraudAnalyzerOption func(*fraudConfig)

type fraudConfig struct {
	baseURL string
	timeout time.Duration
}

// WithFraudBaseURL overrides the default OpenAI API base URL.
func WithFraudBaseURL(url string) FraudAnalyzerOption {
	return func(c *fraudConfig) { c.baseURL = url }
}

// WithFraudTimeout sets a per-request HTTP timeout.
func WithFraudTimeout(d time.Duration) FraudAnalyzerOption {
	return func(c *fraudConfig) { c.timeout = d }
}

// OpenAIFraudAnalyzer scores claims using an OpenAI chat model.
type OpenAIFraudAnalyzer struct {
	client oai.Client
	model  string
}

// NewFraudAnalyzer constructs the analyzer. An empty model selects the
// default.
func NewFraudAnalyzer(apiKey, model string, opts ...FraudAnalyzerOption) (*OpenAIFraudAnalyzer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("routing: apiKey must not be empty")
	}
	if model == "" {
		model = defaultFraudModel
	}

	cfg := &fraudConfig{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &OpenAIFraudAnalyzer{client: oai.NewClient(reqOpts...), model: model}, nil
}

// Analyze implements FraudAnalyzer.
func (a *OpenAIFraudAnalyzer) Analyze(ctx context.Context, c *claim.Claim) (FraudAnalysis, error) {
	params := oai.ChatCompletionNewParams{
		Model: shared.ChatModel(a.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(fraudSystemPrompt),
			oai.UserMessage(fraudPrompt(c)),
		},
		ResponseFormat: oai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
		Temperature: param.NewOpt(float64(fraudTemperature)),
		MaxTokens:   param.NewOpt(int64(fraudMaxTokens)),
	}

	resp, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return FraudAnalysis{}, fmt.Errorf("routing: fraud analysis: %w", err)
	}
	if len(resp.Choices) == 0 {
		return FraudAnalysis{}, fmt.Errorf("routing: empty choices in fraud analysis response")
	}

	var parsed struct {
		FraudScore float64  `json:"fraud_score"`
		Indicators []string `json:"indicators"`
	}
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &parsed); err != nil {
		return FraudAnalysis{}, fmt.Errorf("routing: parse fraud analysis response: %w", err)
	}
	return FraudAnalysis{Score: parsed.FraudScore, Indicators: parsed.Indicators}, nil
}

// fraudPrompt renders the claim facts the analyst model scores.
func fraudPrompt(c *claim.Claim) string {
	orUnknown := func(s string) string {
		if s == "" {
			return "unknown"
		}
		return s
	}
	orNotProvided := func(s string) string {
		if s == "" {
			return "not provided"
		}
		return s
	}
	cost := "not provided"
	if c.PropertyDamage.EstimatedRepairCost != nil {
		cost = fmt.Sprintf("%.2f", *c.PropertyDamage.EstimatedRepairCost)
	}

	var b strings.Builder
	b.WriteString("Analyze this property damage claim for fraud risk:\n\n")
	fmt.Fprintf(&b, "Damage Type: %s\n", orUnknown(string(c.Incident.DamageType)))
	fmt.Fprintf(&b, "Description: %s\n", orNotProvided(c.Incident.Description))
	fmt.Fprintf(&b, "Date: %s\n", orNotProvided(c.Incident.Date))
	fmt.Fprintf(&b, "Location: %s\n", orNotProvided(c.Incident.Location))
	fmt.Fprintf(&b, "Property Type: %s\n", orUnknown(string(c.PropertyDamage.PropertyType)))
	fmt.Fprintf(&b, "Severity: %s\n", orUnknown(string(c.PropertyDamage.Severity)))
	fmt.Fprintf(&b, "Estimated Repair Cost: %s\n", cost)
	fmt.Fprintf(&b, "Has Damage Photos: %t\n", c.Evidence.HasDamagePhotos)
	fmt.Fprintf(&b, "Has Repair Estimate: %t\n", c.Evidence.HasRepairEstimate)
	return b.String()
}
