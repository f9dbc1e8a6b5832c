// Package claim defines the canonical property-damage claim record assembled
// during an intake call, together with the enums, provenance metadata, and
// field catalog that the intake engine and evidence checker operate on.
//
// A Claim is created empty at call start, owned exclusively by one intake
// engine for the lifetime of the call, and mutated only through the engine's
// patch-apply operation. Enum fields default to their Unknown variant and are
// never empty; Unknown is treated as "absent" for completeness purposes.
package claim

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SchemaVersion is the current claim schema version tag, recorded on every
// new claim.
const SchemaVersion = "1.0.0"

// Modality identifies the source of an extracted field value.
type Modality string

const (
	ModalityText     Modality = "text"
	ModalityImage    Modality = "image"
	ModalityVoice    Modality = "voice"
	ModalityDocument Modality = "document"
)

// DamageType categorises the cause of the damage.
type DamageType string

const (
	DamageWater     DamageType = "water"
	DamageFire      DamageType = "fire"
	DamageImpact    DamageType = "impact"
	DamageWeather   DamageType = "weather"
	DamageVandalism DamageType = "vandalism"
	DamageOther     DamageType = "other"
	DamageUnknown   DamageType = "unknown"
)

// ParseDamageType converts s to a DamageType, returning DamageUnknown for any
// unrecognised value.
func ParseDamageType(s string) DamageType {
	switch DamageType(s) {
	case DamageWater, DamageFire, DamageImpact, DamageWeather, DamageVandalism, DamageOther:
		return DamageType(s)
	}
	return DamageUnknown
}

// PropertyType categorises what part of the property was damaged.
type PropertyType string

const (
	PropertyWindow    PropertyType = "window"
	PropertyRoof      PropertyType = "roof"
	PropertyCeiling   PropertyType = "ceiling"
	PropertyWall      PropertyType = "wall"
	PropertyDoor      PropertyType = "door"
	PropertyFloor     PropertyType = "floor"
	PropertyAppliance PropertyType = "appliance"
	PropertyFurniture PropertyType = "furniture"
	PropertyOther     PropertyType = "other"
	PropertyUnknown   PropertyType = "unknown"
)

// ParsePropertyType converts s to a PropertyType, returning PropertyUnknown
// for any unrecognised value.
func ParsePropertyType(s string) PropertyType {
	switch PropertyType(s) {
	case PropertyWindow, PropertyRoof, PropertyCeiling, PropertyWall, PropertyDoor,
		PropertyFloor, PropertyAppliance, PropertyFurniture, PropertyOther:
		return PropertyType(s)
	}
	return PropertyUnknown
}

// Severity is the caller's assessment of how bad the damage is.
type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
	SeverityUnknown  Severity = "unknown"
)

// ParseSeverity converts s to a Severity, returning SeverityUnknown for any
// unrecognised value.
func ParseSeverity(s string) Severity {
	switch Severity(s) {
	case SeverityMinor, SeverityModerate, SeveritySevere:
		return Severity(s)
	}
	return SeverityUnknown
}

// Provenance records where an extracted field value came from: the source
// modality, a confidence score, and a pointer identifying the originating
// span or conversation turn (e.g. "voice_turn:3", "image_id:img_001").
type Provenance struct {
	Modality   Modality `json:"source_modality"`
	Confidence float64  `json:"confidence"`
	Pointer    string   `json:"pointer"`
}

// Validate checks that the confidence score is within [0, 1].
func (p Provenance) Validate() error {
	if p.Confidence < 0 || p.Confidence > 1 {
		return fmt.Errorf("claim: provenance confidence %v out of range [0, 1]", p.Confidence)
	}
	return nil
}

// Claimant holds the caller's identity and contact details.
type Claimant struct {
	Name         string `json:"name,omitempty"`
	PolicyNumber string `json:"policy_number,omitempty"`
	ContactPhone string `json:"contact_phone,omitempty"`
	ContactEmail string `json:"contact_email,omitempty"`
}

// Incident describes the damage event itself. Date is free-form text as
// spoken by the caller ("last Tuesday", "2026-08-14"); downstream consumers
// parse it best-effort and skip checks on unparseable values.
type Incident struct {
	Date            string      `json:"incident_date,omitempty"`
	DateProv        *Provenance `json:"incident_date_provenance,omitempty"`
	Location        string      `json:"incident_location,omitempty"`
	LocationProv    *Provenance `json:"incident_location_provenance,omitempty"`
	Description     string      `json:"incident_description,omitempty"`
	DescriptionProv *Provenance `json:"incident_description_provenance,omitempty"`
	DamageType      DamageType  `json:"damage_type"`
	DamageTypeProv  *Provenance `json:"damage_type_provenance,omitempty"`
}

// PropertyDamage describes the damaged property. EstimatedRepairCost is nil
// until the caller provides an estimate; when set it must be non-negative.
type PropertyDamage struct {
	PropertyType            PropertyType `json:"property_type"`
	PropertyTypeProv        *Provenance  `json:"property_type_provenance,omitempty"`
	RoomLocation            string       `json:"room_location,omitempty"`
	RoomLocationProv        *Provenance  `json:"room_location_provenance,omitempty"`
	EstimatedRepairCost     *float64     `json:"estimated_repair_cost,omitempty"`
	EstimatedRepairCostProv *Provenance  `json:"estimated_repair_cost_provenance,omitempty"`
	Severity                Severity     `json:"damage_severity"`
	SeverityProv            *Provenance  `json:"damage_severity_provenance,omitempty"`
}

// Evidence tracks what supporting material has been provided for the claim.
type Evidence struct {
	HasDamagePhotos   bool     `json:"has_damage_photos"`
	DamagePhotoCount  int      `json:"damage_photo_count"`
	DamagePhotoIDs    []string `json:"damage_photo_ids,omitempty"`
	HasRepairEstimate bool     `json:"has_repair_estimate"`
	HasIncidentReport bool     `json:"has_incident_report"`

	// MissingEvidence is recomputed from the flags above when the claim is
	// finalized.
	MissingEvidence []string `json:"missing_evidence,omitempty"`
}

// Consistency carries the results of cross-field consistency checks.
type Consistency struct {
	HasConflicts    bool     `json:"has_conflicts"`
	ConflictDetails []string `json:"conflict_details,omitempty"`
}

// Claim is the canonical property-damage claim record.
type Claim struct {
	ID             string         `json:"claim_id"`
	Claimant       Claimant       `json:"claimant"`
	Incident       Incident       `json:"incident"`
	PropertyDamage PropertyDamage `json:"property_damage"`
	Evidence       Evidence       `json:"evidence"`
	Consistency    Consistency    `json:"consistency"`
	CreatedAt      time.Time      `json:"created_at"`
	SchemaVersion  string         `json:"schema_version"`
}

// New creates an empty claim with a fresh UUID, UTC creation timestamp, and
// all enum fields at their Unknown default.
func New() *Claim {
	return &Claim{
		ID: uuid.NewString(),
		Incident: Incident{
			DamageType: DamageUnknown,
		},
		PropertyDamage: PropertyDamage{
			PropertyType: PropertyUnknown,
			Severity:     SeverityUnknown,
		},
		CreatedAt:     time.Now().UTC(),
		SchemaVersion: SchemaVersion,
	}
}

// Validate checks the claim's structural invariants: non-empty id,
// non-negative repair cost, and confidence scores within range on every
// attached provenance record.
func (c *Claim) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("claim: id must not be empty")
	}
	if cost := c.PropertyDamage.EstimatedRepairCost; cost != nil && *cost < 0 {
		return fmt.Errorf("claim: estimated repair cost %v must be non-negative", *cost)
	}
	for _, p := range []*Provenance{
		c.Incident.DateProv, c.Incident.LocationProv, c.Incident.DescriptionProv,
		c.Incident.DamageTypeProv, c.PropertyDamage.PropertyTypeProv,
		c.PropertyDamage.RoomLocationProv, c.PropertyDamage.EstimatedRepairCostProv,
		c.PropertyDamage.SeverityProv,
	} {
		if p == nil {
			continue
		}
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// RefreshMissingEvidence recomputes Evidence.MissingEvidence from the current
// evidence flags. Called by the intake engine immediately before handoff.
func (c *Claim) RefreshMissingEvidence() {
	var missing []string
	if !c.Evidence.HasDamagePhotos {
		missing = append(missing, "damage_photos")
	}
	if !c.Evidence.HasRepairEstimate {
		missing = append(missing, "repair_estimate")
	}
	if !c.Evidence.HasIncidentReport {
		missing = append(missing, "incident_report")
	}
	c.Evidence.MissingEvidence = missing
}
