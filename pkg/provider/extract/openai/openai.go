// Package openai provides a claim field extractor backed by the OpenAI chat
// completions API.
//
// Extraction runs at low temperature with a JSON response format. The model's
// output is flattened to dot-notation keys, enum values are validated with an
// unknown fallback, and repair costs are coerced from currency strings. A
// statement that yields unusable output produces an empty patch rather than
// an error wherever possible.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/ganalabs/claimvoice/pkg/provider/extract"
)

// Compile-time assertion that Extractor satisfies extract.Extractor.
var _ extract.Extractor = (*Extractor)(nil)

const defaultModel = "gpt-4o"

// Extraction is deterministic-leaning: low temperature, bounded output.
const (
	extractionTemperature = 0.1
	extractionMaxTokens   = 1000
	maxContextTurns       = 4
)

const systemPrompt = `You are an insurance claim data extraction assistant. Your task is to extract structured information from a caller's statement during a property damage claim call.

IMPORTANT RULES:
1. Extract ONLY information explicitly stated by the caller
2. Do NOT infer, assume, or hallucinate any values
3. Use null for any field not explicitly mentioned
4. Preserve the caller's exact wording for descriptions
5. For ambiguous values, use the closest matching enum value or "unknown"

FIELD DEFINITIONS:

Claimant Info:
- claimant.name: The caller's full name
- claimant.policy_number: Insurance policy number
- claimant.contact_phone: Phone number
- claimant.contact_email: Email address

Incident Info:
- incident.damage_type: One of: "water", "fire", "impact", "weather", "vandalism", "other", "unknown"
- incident.incident_date: When the damage occurred (ISO format if possible, or description)
- incident.incident_location: Address where damage occurred
- incident.incident_description: What happened (caller's description)

Property Damage:
- property_damage.property_type: One of: "window", "roof", "ceiling", "wall", "door", "floor", "appliance", "furniture", "other", "unknown"
- property_damage.room_location: Which room/area (e.g., "living room", "kitchen", "bedroom")
- property_damage.damage_severity: One of: "minor", "moderate", "severe", "unknown"
- property_damage.estimated_repair_cost: Numeric estimate if provided (just the number)

Return a JSON object with ONLY the fields that can be extracted from the caller's statement.
Use dot notation for field names (e.g., "claimant.name", "incident.damage_type").
Do NOT include fields that were not mentioned.`

// ── Options ────────────────────────────────────────────────────────────────────

// config holds optional configuration for the extractor.
type config struct {
	baseURL string
	timeout time.Duration
}

// Option is a functional option for Extractor.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// ── Extractor ──────────────────────────────────────────────────────────────────

// Extractor implements extract.Extractor using OpenAI chat completions.
type Extractor struct {
	client oai.Client
	model  string
}

// New constructs a new OpenAI extractor. An empty model selects the default.
func New(apiKey string, model string, opts ...Option) (*Extractor, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}
	if model == "" {
		model = defaultModel
	}

	cfg := &config{}
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

	return &Extractor{client: oai.NewClient(reqOpts...), model: model}, nil
}

// Extract implements extract.Extractor.
func (e *Extractor) Extract(ctx context.Context, utterance string, known map[string]any, recent []extract.Turn) (map[string]any, error) {
	params := oai.ChatCompletionNewParams{
		Model: shared.ChatModel(e.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(systemPrompt),
			oai.UserMessage(buildPrompt(utterance, known, recent)),
		},
		ResponseFormat: oai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
		Temperature:         param.NewOpt(extractionTemperature),
		MaxCompletionTokens: param.NewOpt(int64(extractionMaxTokens)),
	}

	resp, err := e.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: empty choices in response")
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &raw); err != nil {
		return nil, fmt.Errorf("openai: parse extraction response: %w", err)
	}

	return cleanExtraction(raw), nil
}

// buildPrompt assembles the user message: known fields, recent turns, and
// the statement to extract from.
func buildPrompt(utterance string, known map[string]any, recent []extract.Turn) string {
	var parts []string

	if len(known) > 0 {
		parts = append(parts, "ALREADY COLLECTED (do not re-extract unless corrected):")
		ids := make([]string, 0, len(known))
		for id := range known {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			parts = append(parts, fmt.Sprintf("  - %s: %v", id, known[id]))
		}
		parts = append(parts, "")
	}

	if len(recent) > 0 {
		parts = append(parts, "RECENT CONVERSATION:")
		if len(recent) > maxContextTurns {
			recent = recent[len(recent)-maxContextTurns:]
		}
		for _, turn := range recent {
			parts = append(parts, fmt.Sprintf("  %s: %s", strings.ToUpper(turn.Role), turn.Content))
		}
		parts = append(parts, "")
	}

	parts = append(parts,
		"CALLER'S LATEST STATEMENT:",
		utterance,
		"",
		"Extract all claim-related information from the caller's statement above.",
	)
	return strings.Join(parts, "\n")
}

// Valid enum values for extraction cleaning.
var (
	validDamageTypes = map[string]bool{
		"water": true, "fire": true, "impact": true, "weather": true,
		"vandalism": true, "other": true, "unknown": true,
	}
	validPropertyTypes = map[string]bool{
		"window": true, "roof": true, "ceiling": true, "wall": true, "door": true,
		"floor": true, "appliance": true, "furniture": true, "other": true, "unknown": true,
	}
	validSeverities = map[string]bool{
		"minor": true, "moderate": true, "severe": true, "unknown": true,
	}
)

// cleanExtraction flattens the model output to dot-notation keys, validates
// enums, and coerces the repair cost. Unusable values are dropped.
func cleanExtraction(raw map[string]any) map[string]any {
	flattened := map[string]any{}
	flatten(raw, "", flattened)

	cleaned := map[string]any{}
	for key, value := range flattened {
		if value == nil {
			continue
		}

		if s, ok := value.(string); ok {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			lower := strings.ToLower(s)
			switch key {
			case "incident.damage_type":
				if !validDamageTypes[lower] {
					lower = "unknown"
				}
				value = lower
			case "property_damage.property_type":
				if !validPropertyTypes[lower] {
					lower = "unknown"
				}
				value = lower
			case "property_damage.damage_severity":
				if !validSeverities[lower] {
					lower = "unknown"
				}
				value = lower
			default:
				value = s
			}
		}

		if key == "property_damage.estimated_repair_cost" {
			cost, ok := coerceCost(value)
			if !ok || cost < 0 {
				continue
			}
			value = cost
		}

		cleaned[key] = value
	}
	return cleaned
}

// flatten converts nested objects to dot-notation keys in place.
func flatten(d map[string]any, prefix string, out map[string]any) {
	for key, value := range d {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}
		switch v := value.(type) {
		case map[string]any:
			flatten(v, full, out)
		case []any:
			for i, item := range v {
				idx := fmt.Sprintf("%s.%d", full, i)
				if nested, ok := item.(map[string]any); ok {
					flatten(nested, idx, out)
				} else if item != nil {
					out[idx] = item
				}
			}
		default:
			if value != nil {
				out[full] = value
			}
		}
	}
}

func coerceCost(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		s := strings.TrimSpace(n)
		s = strings.ReplaceAll(s, "$", "")
		s = strings.ReplaceAll(s, ",", "")
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	}
	return 0, false
}
