package claim

import (
	"fmt"
	"strconv"
	"strings"
)

// FieldID is the dot-path identifier of a claim field, e.g.
// "claimant.name" or "incident.damage_type". These ids are the shared
// vocabulary between the extraction collaborator, the intake engine, and the
// dialogue prompts.
type FieldID string

const (
	FieldClaimantName        FieldID = "claimant.name"
	FieldPolicyNumber        FieldID = "claimant.policy_number"
	FieldContactPhone        FieldID = "claimant.contact_phone"
	FieldContactEmail        FieldID = "claimant.contact_email"
	FieldDamageType          FieldID = "incident.damage_type"
	FieldIncidentDate        FieldID = "incident.incident_date"
	FieldIncidentLocation    FieldID = "incident.incident_location"
	FieldIncidentDescription FieldID = "incident.incident_description"
	FieldPropertyType        FieldID = "property_damage.property_type"
	FieldRoomLocation        FieldID = "property_damage.room_location"
	FieldSeverity            FieldID = "property_damage.damage_severity"
	FieldEstimatedRepairCost FieldID = "property_damage.estimated_repair_cost"

	FieldHasDamagePhotos   FieldID = "evidence.has_damage_photos"
	FieldDamagePhotoCount  FieldID = "evidence.damage_photo_count"
	FieldDamagePhotoIDs    FieldID = "evidence.damage_photo_ids"
	FieldHasRepairEstimate FieldID = "evidence.has_repair_estimate"
	FieldHasIncidentReport FieldID = "evidence.has_incident_report"
)

// FieldSpec describes one catalog field: its dot-path id, collection priority
// (lower asks earlier), whether it is required for completeness, and the
// question the agent asks to collect it.
type FieldSpec struct {
	ID       FieldID
	Priority int
	Required bool
	Question string
}

// Catalog is the ordered list of fields the intake dialogue collects, sorted
// by ascending priority. Completion percentage counts only the Required
// entries.
var Catalog = []FieldSpec{
	{FieldClaimantName, 1, true, "May I have your full name, please?"},
	{FieldPolicyNumber, 1, true, "Could you please provide your policy number?"},
	{FieldDamageType, 2, true, "What type of damage occurred? For example, was it water damage, fire, impact, or something else?"},
	{FieldIncidentDate, 2, true, "When did this damage occur?"},
	{FieldIncidentLocation, 3, true, "Where did this damage occur? Please provide the address."},
	{FieldIncidentDescription, 4, true, "Could you please describe what happened?"},
	{FieldPropertyType, 5, true, "What was damaged? For example, was it a window, roof, ceiling, wall, or something else?"},
	{FieldRoomLocation, 5, false, "In which room or area of the property is the damage located?"},
	{FieldSeverity, 6, false, "How severe would you say the damage is - minor, moderate, or severe?"},
	{FieldEstimatedRepairCost, 6, false, "Do you have an estimate of the repair cost?"},
	{FieldContactPhone, 7, false, "What is the best phone number to reach you?"},
	{FieldContactEmail, 7, false, "What is your email address for claim updates?"},
}

// CatalogSpec returns the catalog entry for id, or false when id is not a
// catalog field.
func CatalogSpec(id FieldID) (FieldSpec, bool) {
	for _, fs := range Catalog {
		if fs.ID == id {
			return fs, true
		}
	}
	return FieldSpec{}, false
}

// field binds a dot-path id to its typed mutator and its filled predicate.
// Enum fields count as filled only when not at their Unknown default.
type field struct {
	set    func(*Claim, any, *Provenance) error
	filled func(*Claim) bool
}

// fields covers every settable dot-path id: all catalog entries plus the
// evidence flags, which are settable but never asked as questions.
var fields = map[FieldID]field{
	FieldClaimantName: {
		set:    func(c *Claim, v any, _ *Provenance) error { return setString(&c.Claimant.Name, v) },
		filled: func(c *Claim) bool { return c.Claimant.Name != "" },
	},
	FieldPolicyNumber: {
		set:    func(c *Claim, v any, _ *Provenance) error { return setString(&c.Claimant.PolicyNumber, v) },
		filled: func(c *Claim) bool { return c.Claimant.PolicyNumber != "" },
	},
	FieldContactPhone: {
		set:    func(c *Claim, v any, _ *Provenance) error { return setString(&c.Claimant.ContactPhone, v) },
		filled: func(c *Claim) bool { return c.Claimant.ContactPhone != "" },
	},
	FieldContactEmail: {
		set:    func(c *Claim, v any, _ *Provenance) error { return setString(&c.Claimant.ContactEmail, v) },
		filled: func(c *Claim) bool { return c.Claimant.ContactEmail != "" },
	},
	FieldDamageType: {
		set: func(c *Claim, v any, p *Provenance) error {
			s, err := coerceString(v)
			if err != nil {
				return err
			}
			c.Incident.DamageType = ParseDamageType(strings.ToLower(strings.TrimSpace(s)))
			c.Incident.DamageTypeProv = p
			return nil
		},
		filled: func(c *Claim) bool { return c.Incident.DamageType != DamageUnknown },
	},
	FieldIncidentDate: {
		set: func(c *Claim, v any, p *Provenance) error {
			if err := setString(&c.Incident.Date, v); err != nil {
				return err
			}
			c.Incident.DateProv = p
			return nil
		},
		filled: func(c *Claim) bool { return c.Incident.Date != "" },
	},
	FieldIncidentLocation: {
		set: func(c *Claim, v any, p *Provenance) error {
			if err := setString(&c.Incident.Location, v); err != nil {
				return err
			}
			c.Incident.LocationProv = p
			return nil
		},
		filled: func(c *Claim) bool { return c.Incident.Location != "" },
	},
	FieldIncidentDescription: {
		set: func(c *Claim, v any, p *Provenance) error {
			if err := setString(&c.Incident.Description, v); err != nil {
				return err
			}
			c.Incident.DescriptionProv = p
			return nil
		},
		filled: func(c *Claim) bool { return c.Incident.Description != "" },
	},
	FieldPropertyType: {
		set: func(c *Claim, v any, p *Provenance) error {
			s, err := coerceString(v)
			if err != nil {
				return err
			}
			c.PropertyDamage.PropertyType = ParsePropertyType(strings.ToLower(strings.TrimSpace(s)))
			c.PropertyDamage.PropertyTypeProv = p
			return nil
		},
		filled: func(c *Claim) bool { return c.PropertyDamage.PropertyType != PropertyUnknown },
	},
	FieldRoomLocation: {
		set: func(c *Claim, v any, p *Provenance) error {
			if err := setString(&c.PropertyDamage.RoomLocation, v); err != nil {
				return err
			}
			c.PropertyDamage.RoomLocationProv = p
			return nil
		},
		filled: func(c *Claim) bool { return c.PropertyDamage.RoomLocation != "" },
	},
	FieldSeverity: {
		set: func(c *Claim, v any, p *Provenance) error {
			s, err := coerceString(v)
			if err != nil {
				return err
			}
			c.PropertyDamage.Severity = ParseSeverity(strings.ToLower(strings.TrimSpace(s)))
			c.PropertyDamage.SeverityProv = p
			return nil
		},
		filled: func(c *Claim) bool { return c.PropertyDamage.Severity != SeverityUnknown },
	},
	FieldEstimatedRepairCost: {
		set: func(c *Claim, v any, p *Provenance) error {
			cost, err := coerceCost(v)
			if err != nil {
				return err
			}
			c.PropertyDamage.EstimatedRepairCost = &cost
			c.PropertyDamage.EstimatedRepairCostProv = p
			return nil
		},
		filled: func(c *Claim) bool { return c.PropertyDamage.EstimatedRepairCost != nil },
	},
	FieldHasDamagePhotos: {
		set:    func(c *Claim, v any, _ *Provenance) error { return setBool(&c.Evidence.HasDamagePhotos, v) },
		filled: func(c *Claim) bool { return c.Evidence.HasDamagePhotos },
	},
	FieldDamagePhotoCount: {
		set: func(c *Claim, v any, _ *Provenance) error {
			n, err := coerceInt(v)
			if err != nil {
				return err
			}
			c.Evidence.DamagePhotoCount = n
			return nil
		},
		filled: func(c *Claim) bool { return c.Evidence.DamagePhotoCount > 0 },
	},
	FieldDamagePhotoIDs: {
		set: func(c *Claim, v any, _ *Provenance) error {
			ids, err := coerceStringSlice(v)
			if err != nil {
				return err
			}
			c.Evidence.DamagePhotoIDs = ids
			return nil
		},
		filled: func(c *Claim) bool { return len(c.Evidence.DamagePhotoIDs) > 0 },
	},
	FieldHasRepairEstimate: {
		set:    func(c *Claim, v any, _ *Provenance) error { return setBool(&c.Evidence.HasRepairEstimate, v) },
		filled: func(c *Claim) bool { return c.Evidence.HasRepairEstimate },
	},
	FieldHasIncidentReport: {
		set:    func(c *Claim, v any, _ *Provenance) error { return setBool(&c.Evidence.HasIncidentReport, v) },
		filled: func(c *Claim) bool { return c.Evidence.HasIncidentReport },
	},
}

// Set writes v to the field identified by id, attaching prov to fields that
// carry provenance. Unknown ids and values of the wrong type return an error;
// the claim is left untouched in both cases.
func Set(c *Claim, id FieldID, v any, prov *Provenance) error {
	f, ok := fields[id]
	if !ok {
		return fmt.Errorf("claim: unknown field id %q", id)
	}
	return f.set(c, v, prov)
}

// Filled reports whether the field identified by id holds a usable value.
// Enum fields at their Unknown default and empty strings count as unfilled.
// Unknown ids report false.
func Filled(c *Claim, id FieldID) bool {
	f, ok := fields[id]
	if !ok {
		return false
	}
	return f.filled(c)
}

// ── value coercion ──

func setString(dst *string, v any) error {
	s, err := coerceString(v)
	if err != nil {
		return err
	}
	*dst = strings.TrimSpace(s)
	return nil
}

func setBool(dst *bool, v any) error {
	switch b := v.(type) {
	case bool:
		*dst = b
		return nil
	case string:
		parsed, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(b)))
		if err != nil {
			return fmt.Errorf("claim: cannot use %q as bool", b)
		}
		*dst = parsed
		return nil
	}
	return fmt.Errorf("claim: cannot use %T as bool", v)
}

func coerceString(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	return "", fmt.Errorf("claim: cannot use %T as string", v)
}

// coerceInt accepts non-negative counts; negatives are rejected at the patch
// boundary so they never reach a claim.
func coerceInt(v any) (int, error) {
	var n int
	switch val := v.(type) {
	case int:
		n = val
	case float64:
		n = int(val)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return 0, fmt.Errorf("claim: cannot use %q as integer", val)
		}
		n = parsed
	default:
		return 0, fmt.Errorf("claim: cannot use %T as integer", v)
	}
	if n < 0 {
		return 0, fmt.Errorf("claim: count %d must be non-negative", n)
	}
	return n, nil
}

// coerceCost accepts numbers or currency-formatted strings ("$1,200.50").
// Negative amounts are rejected at the patch boundary so they never reach a
// claim.
func coerceCost(v any) (float64, error) {
	var cost float64
	switch n := v.(type) {
	case float64:
		cost = n
	case int:
		cost = float64(n)
	case string:
		s := strings.TrimSpace(n)
		s = strings.ReplaceAll(s, "$", "")
		s = strings.ReplaceAll(s, ",", "")
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("claim: cannot use %q as cost", n)
		}
		cost = parsed
	default:
		return 0, fmt.Errorf("claim: cannot use %T as cost", v)
	}
	if cost < 0 {
		return 0, fmt.Errorf("claim: cost %v must be non-negative", cost)
	}
	return cost, nil
}

func coerceStringSlice(v any) ([]string, error) {
	switch vals := v.(type) {
	case []string:
		return vals, nil
	case []any:
		out := make([]string, 0, len(vals))
		for _, e := range vals {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("claim: cannot use %T as string list element", e)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, fmt.Errorf("claim: cannot use %T as string list", v)
}
