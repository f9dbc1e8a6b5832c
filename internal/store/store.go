// Package store persists claims and their post-call processing results in
// PostgreSQL. Claim sections are stored as JSONB documents keyed by claim id,
// with the call transcript and metadata alongside so a claim record is
// self-contained.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ganalabs/claimvoice/internal/intake"
	"github.com/ganalabs/claimvoice/internal/routing"
	"github.com/ganalabs/claimvoice/pkg/claim"
)

// Schema is the SQL DDL for the claims table. Execute it via [Store.Migrate]
// or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS claims (
    claim_id          TEXT PRIMARY KEY,
    created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
    status            TEXT NOT NULL DEFAULT 'draft',
    source            TEXT NOT NULL DEFAULT '',

    claimant          JSONB NOT NULL DEFAULT '{}',
    incident          JSONB NOT NULL DEFAULT '{}',
    property_damage   JSONB NOT NULL DEFAULT '{}',
    evidence          JSONB NOT NULL DEFAULT '{}',

    validation_result JSONB,
    fraud_result      JSONB,
    routing_result    JSONB,

    call_sid          TEXT NOT NULL DEFAULT '',
    session_id        TEXT NOT NULL DEFAULT '',
    notes             TEXT NOT NULL DEFAULT '',

    transcript        JSONB NOT NULL DEFAULT '[]',
    consistency       JSONB NOT NULL DEFAULT '{}',
    call_metadata     JSONB NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_claims_status ON claims(status);
CREATE INDEX IF NOT EXISTS idx_claims_created ON claims(created_at);
CREATE INDEX IF NOT EXISTS idx_claims_source ON claims(source);
CREATE INDEX IF NOT EXISTS idx_claims_call_sid ON claims(call_sid);
`

// DB is the database interface used by [Store]. Both *pgxpool.Pool and
// *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// ErrNotFound is returned when no claim with the requested id exists.
var ErrNotFound = errors.New("store: claim not found")

// StoredClaim is a claim record as stored in the database.
type StoredClaim struct {
	ClaimID   string    `json:"claim_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Status    string    `json:"status"`
	Source    string    `json:"source"`

	Claimant       claim.Claimant       `json:"claimant"`
	Incident       claim.Incident       `json:"incident"`
	PropertyDamage claim.PropertyDamage `json:"property_damage"`
	Evidence       claim.Evidence       `json:"evidence"`

	// Processing results are raw JSON documents; nil until processing ran.
	ValidationResult json.RawMessage `json:"validation_result,omitempty"`
	FraudResult      json.RawMessage `json:"fraud_result,omitempty"`
	RoutingResult    json.RawMessage `json:"routing_result,omitempty"`

	CallSID   string `json:"call_sid,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Notes     string `json:"notes,omitempty"`

	Transcript   []intake.TranscriptEntry `json:"transcript,omitempty"`
	Consistency  claim.Consistency        `json:"consistency"`
	CallMetadata intake.CallMetadata      `json:"call_metadata"`
}

// ListFilter narrows List results. Zero values mean no filter; Limit zero
// means the default page size.
type ListFilter struct {
	Status string
	Source string
	Limit  int
	Offset int
}

const defaultListLimit = 100

// Store is a claims store backed by a PostgreSQL database.
type Store struct {
	db DB
}

// New creates a Store that uses the given database connection or pool. The
// caller is responsible for calling [Store.Migrate] to ensure the schema
// exists before issuing queries.
func New(db DB) *Store {
	return &Store{db: db}
}

// Migrate executes the [Schema] DDL, creating the claims table and indexes if
// they do not already exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Save inserts a claim from a finalized intake snapshot with status
// "submitted" and returns the claim id.
func (s *Store) Save(ctx context.Context, snap intake.Snapshot, source, sessionID string) (string, error) {
	claimantJSON, err := json.Marshal(snap.Claim.Claimant)
	if err != nil {
		return "", fmt.Errorf("store: marshal claimant: %w", err)
	}
	incidentJSON, err := json.Marshal(snap.Claim.Incident)
	if err != nil {
		return "", fmt.Errorf("store: marshal incident: %w", err)
	}
	damageJSON, err := json.Marshal(snap.Claim.PropertyDamage)
	if err != nil {
		return "", fmt.Errorf("store: marshal property_damage: %w", err)
	}
	evidenceJSON, err := json.Marshal(snap.Claim.Evidence)
	if err != nil {
		return "", fmt.Errorf("store: marshal evidence: %w", err)
	}
	transcript := snap.Transcript
	if transcript == nil {
		transcript = []intake.TranscriptEntry{}
	}
	transcriptJSON, err := json.Marshal(transcript)
	if err != nil {
		return "", fmt.Errorf("store: marshal transcript: %w", err)
	}
	consistencyJSON, err := json.Marshal(snap.Claim.Consistency)
	if err != nil {
		return "", fmt.Errorf("store: marshal consistency: %w", err)
	}
	metaJSON, err := json.Marshal(snap.Metadata)
	if err != nil {
		return "", fmt.Errorf("store: marshal call_metadata: %w", err)
	}

	const query = `
		INSERT INTO claims (
			claim_id, status, source,
			claimant, incident, property_damage, evidence,
			call_sid, session_id,
			transcript, consistency, call_metadata
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`

	_, err = s.db.Exec(ctx, query,
		snap.Claim.ID, "submitted", source,
		claimantJSON, incidentJSON, damageJSON, evidenceJSON,
		snap.Metadata.CallSID, sessionID,
		transcriptJSON, consistencyJSON, metaJSON,
	)
	if err != nil {
		return "", fmt.Errorf("store: save claim: %w", err)
	}
	return snap.Claim.ID, nil
}

const claimColumns = `claim_id, created_at, updated_at, status, source,
       claimant, incident, property_damage, evidence,
       validation_result, fraud_result, routing_result,
       call_sid, session_id, notes,
       transcript, consistency, call_metadata`

// Get retrieves a claim by id. Returns [ErrNotFound] if no such claim exists.
func (s *Store) Get(ctx context.Context, claimID string) (*StoredClaim, error) {
	query := `SELECT ` + claimColumns + ` FROM claims WHERE claim_id = $1`

	sc, err := scanClaim(s.db.QueryRow(ctx, query, claimID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get claim: %w", err)
	}
	return sc, nil
}

// List returns claims matching the filter, newest first.
func (s *Store) List(ctx context.Context, f ListFilter) ([]StoredClaim, error) {
	query := `SELECT ` + claimColumns + ` FROM claims`

	var conds []string
	var args []any
	if f.Status != "" {
		args = append(args, f.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Source != "" {
		args = append(args, f.Source)
		conds = append(conds, fmt.Sprintf("source = $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	args = append(args, limit, f.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list claims: %w", err)
	}
	defer rows.Close()

	var claims []StoredClaim
	for rows.Next() {
		sc, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("store: list claims: %w", err)
		}
		claims = append(claims, *sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list claims: %w", err)
	}
	return claims, nil
}

// UpdateStatus sets the claim status and, when notes is non-empty, the notes
// column. Reports whether a claim was updated.
func (s *Store) UpdateStatus(ctx context.Context, claimID, status, notes string) (bool, error) {
	var tag pgconn.CommandTag
	var err error
	if notes != "" {
		const query = `UPDATE claims SET status = $1, notes = $2, updated_at = now() WHERE claim_id = $3`
		tag, err = s.db.Exec(ctx, query, status, notes, claimID)
	} else {
		const query = `UPDATE claims SET status = $1, updated_at = now() WHERE claim_id = $2`
		tag, err = s.db.Exec(ctx, query, status, claimID)
	}
	if err != nil {
		return false, fmt.Errorf("store: update status: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// SaveProcessingResult stores the workflow outcome split into validation,
// fraud, and routing documents. Reports whether a claim was updated.
func (s *Store) SaveProcessingResult(ctx context.Context, claimID string, res routing.Result) (bool, error) {
	validationJSON, err := json.Marshal(map[string]any{
		"is_complete":       res.IsComplete,
		"missing_fields":    emptySlice(res.MissingFields),
		"validation_errors": emptySlice(res.ValidationErrors),
	})
	if err != nil {
		return false, fmt.Errorf("store: marshal validation result: %w", err)
	}
	fraudJSON, err := json.Marshal(map[string]any{
		"fraud_score":      res.FraudScore,
		"fraud_indicators": emptySlice(res.FraudIndicators),
	})
	if err != nil {
		return false, fmt.Errorf("store: marshal fraud result: %w", err)
	}
	routingJSON, err := json.Marshal(map[string]any{
		"priority":         res.Priority,
		"routing_decision": res.Decision,
		"routing_reason":   res.RoutingReason,
		"final_status":     res.FinalStatus,
		"next_actions":     emptySlice(res.NextActions),
	})
	if err != nil {
		return false, fmt.Errorf("store: marshal routing result: %w", err)
	}

	const query = `
		UPDATE claims
		SET validation_result = $1, fraud_result = $2, routing_result = $3, updated_at = now()
		WHERE claim_id = $4`

	tag, err := s.db.Exec(ctx, query, validationJSON, fraudJSON, routingJSON, claimID)
	if err != nil {
		return false, fmt.Errorf("store: save processing result: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Delete removes a claim. Reports whether a claim was deleted.
func (s *Store) Delete(ctx context.Context, claimID string) (bool, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM claims WHERE claim_id = $1`, claimID)
	if err != nil {
		return false, fmt.Errorf("store: delete claim: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Count returns the number of claims, optionally filtered by status.
func (s *Store) Count(ctx context.Context, status string) (int, error) {
	var n int
	var err error
	if status != "" {
		err = s.db.QueryRow(ctx, `SELECT COUNT(*) FROM claims WHERE status = $1`, status).Scan(&n)
	} else {
		err = s.db.QueryRow(ctx, `SELECT COUNT(*) FROM claims`).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("store: count claims: %w", err)
	}
	return n, nil
}

// scanClaim reads one claims row. The column order must match claimColumns.
func scanClaim(row pgx.Row) (*StoredClaim, error) {
	var sc StoredClaim
	var claimantJSON, incidentJSON, damageJSON, evidenceJSON []byte
	var validationJSON, fraudJSON, routingJSON []byte
	var transcriptJSON, consistencyJSON, metaJSON []byte

	err := row.Scan(
		&sc.ClaimID, &sc.CreatedAt, &sc.UpdatedAt, &sc.Status, &sc.Source,
		&claimantJSON, &incidentJSON, &damageJSON, &evidenceJSON,
		&validationJSON, &fraudJSON, &routingJSON,
		&sc.CallSID, &sc.SessionID, &sc.Notes,
		&transcriptJSON, &consistencyJSON, &metaJSON,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(claimantJSON, &sc.Claimant); err != nil {
		return nil, fmt.Errorf("unmarshal claimant: %w", err)
	}
	if err := json.Unmarshal(incidentJSON, &sc.Incident); err != nil {
		return nil, fmt.Errorf("unmarshal incident: %w", err)
	}
	if err := json.Unmarshal(damageJSON, &sc.PropertyDamage); err != nil {
		return nil, fmt.Errorf("unmarshal property_damage: %w", err)
	}
	if err := json.Unmarshal(evidenceJSON, &sc.Evidence); err != nil {
		return nil, fmt.Errorf("unmarshal evidence: %w", err)
	}
	if err := json.Unmarshal(transcriptJSON, &sc.Transcript); err != nil {
		return nil, fmt.Errorf("unmarshal transcript: %w", err)
	}
	if err := json.Unmarshal(consistencyJSON, &sc.Consistency); err != nil {
		return nil, fmt.Errorf("unmarshal consistency: %w", err)
	}
	if err := json.Unmarshal(metaJSON, &sc.CallMetadata); err != nil {
		return nil, fmt.Errorf("unmarshal call_metadata: %w", err)
	}
	sc.ValidationResult = rawOrNil(validationJSON)
	sc.FraudResult = rawOrNil(fraudJSON)
	sc.RoutingResult = rawOrNil(routingJSON)
	return &sc, nil
}

func rawOrNil(b []byte) json.RawMessage {
	if len(b) == 0 {
		return nil
	}
	return json.RawMessage(b)
}

func emptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
