package preference

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/onnwee/mealpilot/internal/tracing"
)

// PostgresRepository is a PostgreSQL-backed implementation of Repository.
// Weights and the profile are stored as JSONB.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgreSQL preference repository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Get implements Repository.
func (r *PostgresRepository) Get(ctx context.Context, userID string) (_ *Preference, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "preferences", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := `
		SELECT tag_weights, restaurant_weights, price_penalty, profile, schema_version, updated_at, revision
		FROM preferences
		WHERE user_id = $1
	`
	var (
		tags, restaurants, profile []byte
		updatedAt                  sql.NullTime
	)
	p := &Preference{UserID: userID}
	err = r.db.QueryRowContext(ctx, query, userID).Scan(
		&tags, &restaurants, &p.PricePenalty, &profile, &p.SchemaVersion, &updatedAt, &p.Revision,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPreferenceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get preference: %w", err)
	}

	if err = json.Unmarshal(tags, &p.TagWeights); err != nil {
		return nil, fmt.Errorf("failed to decode tag weights: %w", err)
	}
	if err = json.Unmarshal(restaurants, &p.RestaurantWeights); err != nil {
		return nil, fmt.Errorf("failed to decode restaurant weights: %w", err)
	}
	if err = json.Unmarshal(profile, &p.Profile); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	if p.TagWeights == nil {
		p.TagWeights = map[string]int{}
	}
	if p.RestaurantWeights == nil {
		p.RestaurantWeights = map[string]int{}
	}
	p.Profile = p.Profile.Normalize()
	if updatedAt.Valid {
		t := updatedAt.Time.UTC()
		p.UpdatedAt = &t
	}
	return p, nil
}

// Save implements Repository. The first write inserts; later writes are
// conditional on the revision column.
func (r *PostgresRepository) Save(ctx context.Context, p *Preference, expected int64) (err error) {
	op := tracing.DBOperationUpdate
	if expected == 0 {
		op = tracing.DBOperationInsert
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, "preferences", op)
	defer func() { endSpan(err) }()

	tags, err := json.Marshal(p.TagWeights)
	if err != nil {
		return fmt.Errorf("failed to encode tag weights: %w", err)
	}
	restaurants, err := json.Marshal(p.RestaurantWeights)
	if err != nil {
		return fmt.Errorf("failed to encode restaurant weights: %w", err)
	}
	profile, err := json.Marshal(p.Profile)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}

	var query string
	if expected == 0 {
		query = `
			INSERT INTO preferences (user_id, tag_weights, restaurant_weights, price_penalty, profile, schema_version, updated_at, revision)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8 + 1)
			ON CONFLICT (user_id) DO NOTHING
		`
	} else {
		query = `
			UPDATE preferences
			SET tag_weights = $2, restaurant_weights = $3, price_penalty = $4,
			    profile = $5, schema_version = $6, updated_at = $7, revision = revision + 1
			WHERE user_id = $1 AND revision = $8
		`
	}

	res, err := r.db.ExecContext(ctx, query,
		p.UserID, string(tags), string(restaurants), p.PricePenalty, string(profile), p.SchemaVersion, p.UpdatedAt, expected,
	)
	if err != nil {
		return fmt.Errorf("failed to save preference: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n == 0 {
		return ErrRevisionConflict
	}
	p.Revision = expected + 1
	return nil
}
