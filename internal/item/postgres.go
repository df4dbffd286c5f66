package item

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/onnwee/mealpilot/internal/db"
	"github.com/onnwee/mealpilot/internal/tracing"
)

const itemColumns = `id, user_id, name, restaurant_name, tags, platform_hints, price_estimate, active, created_at, updated_at`

// PostgresRepository is a PostgreSQL-backed implementation of Repository.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgreSQL item repository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*Item, error) {
	var (
		it         Item
		restaurant sql.NullString
		price      sql.NullInt64
	)
	err := row.Scan(
		&it.ID, &it.UserID, &it.Name, &restaurant,
		pq.Array(&it.Tags), pq.Array(&it.PlatformHints),
		&price, &it.Active, &it.CreatedAt, &it.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if restaurant.Valid {
		it.RestaurantName = &restaurant.String
	}
	if price.Valid {
		p := int(price.Int64)
		it.PriceEstimate = &p
	}
	if it.Tags == nil {
		it.Tags = []string{}
	}
	if it.PlatformHints == nil {
		it.PlatformHints = []string{}
	}
	it.CreatedAt = it.CreatedAt.UTC()
	it.UpdatedAt = it.UpdatedAt.UTC()
	return &it, nil
}

func nullablePrice(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// Create implements Repository.
func (r *PostgresRepository) Create(ctx context.Context, it *Item) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "items", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	if it.ID == "" {
		it.ID = uuid.New().String()
	}
	if it.CreatedAt.IsZero() {
		it.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}
	if it.UpdatedAt.IsZero() {
		it.UpdatedAt = it.CreatedAt
	}

	query := `
		INSERT INTO items (` + itemColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = r.db.ExecContext(ctx, query,
		it.ID, it.UserID, it.Name, nullableString(it.RestaurantName),
		pq.Array(it.Tags), pq.Array(it.PlatformHints),
		nullablePrice(it.PriceEstimate), it.Active, it.CreatedAt, it.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert item: %w", err)
	}
	return nil
}

// GetByID implements Repository.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (_ *Item, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "items", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := `SELECT ` + itemColumns + ` FROM items WHERE id = $1`
	it, err := scanItem(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return it, nil
}

// Update implements Repository.
func (r *PostgresRepository) Update(ctx context.Context, it *Item) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "items", tracing.DBOperationUpdate)
	defer func() { endSpan(err) }()

	it.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)
	query := `
		UPDATE items
		SET name = $2, restaurant_name = $3, tags = $4, platform_hints = $5,
		    price_estimate = $6, active = $7, updated_at = $8
		WHERE id = $1
		RETURNING created_at
	`
	err = r.db.QueryRowContext(ctx, query,
		it.ID, it.Name, nullableString(it.RestaurantName),
		pq.Array(it.Tags), pq.Array(it.PlatformHints),
		nullablePrice(it.PriceEstimate), it.Active, it.UpdatedAt,
	).Scan(&it.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrItemNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}
	it.CreatedAt = it.CreatedAt.UTC()
	return nil
}

// ListActive implements Repository.
func (r *PostgresRepository) ListActive(ctx context.Context, userID string) ([]*Item, error) {
	active := true
	return r.List(ctx, userID, ListFilter{Active: &active}, 0)
}

// List implements Repository.
func (r *PostgresRepository) List(ctx context.Context, userID string, f ListFilter, fetch int) (_ []*Item, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "items", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	var w db.Where
	w.Add("user_id = " + w.Arg(userID))
	if f.Active != nil {
		w.Add("active = " + w.Arg(*f.Active))
	}
	if f.From != nil {
		w.Add("created_at >= " + w.Arg(*f.From))
	}
	if f.To != nil {
		w.Add("created_at <= " + w.Arg(*f.To))
	}
	if f.After != nil {
		ts := w.Arg(f.After.CreatedAt)
		id := w.Arg(f.After.ID)
		w.Add("(created_at < " + ts + " OR (created_at = " + ts + " AND id < " + id + "))")
	}

	query := `SELECT ` + itemColumns + ` FROM items` + w.SQL() + ` ORDER BY created_at DESC, id DESC`
	args := w.Args()
	if fetch > 0 {
		query += fmt.Sprintf(" LIMIT %d", fetch)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var out []*Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate items: %w", err)
	}
	return out, nil
}
