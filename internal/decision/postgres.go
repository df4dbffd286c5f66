package decision

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/onnwee/mealpilot/internal/db"
	"github.com/onnwee/mealpilot/internal/tracing"
)

// PostgresRepository is a PostgreSQL-backed implementation of Repository.
// Input, candidates, meta and feedback are stored as JSONB; feedback status
// and reason code are also kept in plain columns for filtering.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgreSQL decision repository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const decisionColumns = `id, user_id, created_at, input, candidates, meta, feedback`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDecision(row rowScanner) (*Decision, error) {
	var (
		d                             Decision
		input, candidates, meta, fdbk []byte
	)
	if err := row.Scan(&d.ID, &d.UserID, &d.CreatedAt, &input, &candidates, &meta, &fdbk); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(input, &d.Input); err != nil {
		return nil, fmt.Errorf("failed to decode input: %w", err)
	}
	if err := json.Unmarshal(candidates, &d.Candidates); err != nil {
		return nil, fmt.Errorf("failed to decode candidates: %w", err)
	}
	if err := json.Unmarshal(meta, &d.Meta); err != nil {
		return nil, fmt.Errorf("failed to decode meta: %w", err)
	}
	if len(fdbk) > 0 {
		d.Feedback = &Feedback{}
		if err := json.Unmarshal(fdbk, d.Feedback); err != nil {
			return nil, fmt.Errorf("failed to decode feedback: %w", err)
		}
	}
	d.CreatedAt = d.CreatedAt.UTC()
	return &d, nil
}

func jsonb(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Create implements Repository.
func (r *PostgresRepository) Create(ctx context.Context, d *Decision) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "decisions", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	if d.ID == "" {
		d.ID = NewID()
	}
	input, err := jsonb(d.Input)
	if err != nil {
		return fmt.Errorf("failed to encode input: %w", err)
	}
	candidates, err := jsonb(d.Candidates)
	if err != nil {
		return fmt.Errorf("failed to encode candidates: %w", err)
	}
	meta, err := jsonb(d.Meta)
	if err != nil {
		return fmt.Errorf("failed to encode meta: %w", err)
	}

	query := `
		INSERT INTO decisions (id, user_id, created_at, input, candidates, meta)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err = r.db.ExecContext(ctx, query, d.ID, d.UserID, d.CreatedAt, input, candidates, meta); err != nil {
		return fmt.Errorf("failed to insert decision: %w", err)
	}
	return nil
}

// GetByID implements Repository.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (_ *Decision, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "decisions", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := `SELECT ` + decisionColumns + ` FROM decisions WHERE id = $1`
	d, err := scanDecision(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDecisionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get decision: %w", err)
	}
	return d, nil
}

// SetFeedback implements Repository.
func (r *PostgresRepository) SetFeedback(ctx context.Context, id string, fb *Feedback) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "decisions", tracing.DBOperationUpdate)
	defer func() { endSpan(err) }()

	body, err := jsonb(fb)
	if err != nil {
		return fmt.Errorf("failed to encode feedback: %w", err)
	}
	var reasonCode any
	if fb.ReasonCode != nil {
		reasonCode = *fb.ReasonCode
	}

	query := `
		UPDATE decisions
		SET feedback = $2, feedback_status = $3, feedback_reason_code = $4
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, id, body, string(fb.Status), reasonCode)
	if err != nil {
		return fmt.Errorf("failed to update feedback: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n == 0 {
		return ErrDecisionNotFound
	}
	return nil
}

// List implements Repository.
func (r *PostgresRepository) List(ctx context.Context, userID string, f Filter, fetch int) (_ []*Decision, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "decisions", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	var w db.Where
	w.Add("user_id = " + w.Arg(userID))
	if f.From != nil {
		w.Add("created_at >= " + w.Arg(*f.From))
	}
	if f.To != nil {
		w.Add("created_at <= " + w.Arg(*f.To))
	}
	if f.HasFeedback != nil {
		if *f.HasFeedback {
			w.Add("feedback IS NOT NULL")
		} else {
			w.Add("feedback IS NULL")
		}
	}
	if f.FeedbackStatus != nil {
		w.Add("feedback_status = " + w.Arg(string(*f.FeedbackStatus)))
	}
	if f.ReasonCode != "" {
		w.Add("feedback_reason_code = " + w.Arg(f.ReasonCode))
	}
	if f.After != nil {
		ts := w.Arg(f.After.CreatedAt)
		id := w.Arg(f.After.ID)
		w.Add("(created_at < " + ts + " OR (created_at = " + ts + " AND id < " + id + "))")
	}

	query := `SELECT ` + decisionColumns + ` FROM decisions` + w.SQL() + ` ORDER BY created_at DESC, id DESC`
	if fetch > 0 {
		query += fmt.Sprintf(" LIMIT %d", fetch)
	}

	rows, err := r.db.QueryContext(ctx, query, w.Args()...)
	if err != nil {
		return nil, fmt.Errorf("failed to list decisions: %w", err)
	}
	defer rows.Close()

	var out []*Decision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate decisions: %w", err)
	}
	return out, nil
}

// PostgresEventRepository is a PostgreSQL-backed implementation of
// EventRepository.
type PostgresEventRepository struct {
	db *sql.DB
}

// NewPostgresEventRepository creates a new PostgreSQL event repository.
func NewPostgresEventRepository(db *sql.DB) *PostgresEventRepository {
	return &PostgresEventRepository{db: db}
}

// Append implements EventRepository.
func (r *PostgresEventRepository) Append(ctx context.Context, e *Event) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "decision_events", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	if e.ID == "" {
		e.ID = NewID()
	}
	var platform, evContext any
	if e.Platform != nil {
		platform = string(*e.Platform)
	}
	if e.Context != nil {
		body, err := jsonb(e.Context)
		if err != nil {
			return fmt.Errorf("failed to encode event context: %w", err)
		}
		evContext = body
	}

	query := `
		INSERT INTO decision_events (id, decision_id, user_id, action, platform, context, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = r.db.ExecContext(ctx, query, e.ID, e.DecisionID, e.UserID, string(e.Action), platform, evContext, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// List implements EventRepository.
func (r *PostgresEventRepository) List(ctx context.Context, f EventFilter, fetch int) (_ []*Event, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "decision_events", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	var w db.Where
	if f.DecisionID != "" {
		w.Add("decision_id = " + w.Arg(f.DecisionID))
	}
	if f.UserID != "" {
		w.Add("user_id = " + w.Arg(f.UserID))
	}
	if f.Action != nil {
		w.Add("action = " + w.Arg(string(*f.Action)))
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

	query := `
		SELECT id, decision_id, user_id, action, platform, context, created_at
		FROM decision_events` + w.SQL() + ` ORDER BY created_at DESC, id DESC`
	if fetch > 0 {
		query += fmt.Sprintf(" LIMIT %d", fetch)
	}

	rows, err := r.db.QueryContext(ctx, query, w.Args()...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var out []*Event
	for rows.Next() {
		var (
			e         Event
			platform  sql.NullString
			evContext []byte
		)
		if err := rows.Scan(&e.ID, &e.DecisionID, &e.UserID, &e.Action, &platform, &evContext, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if platform.Valid {
			p := Platform(platform.String)
			e.Platform = &p
		}
		if len(evContext) > 0 {
			e.Context = &EventContext{}
			if err := json.Unmarshal(evContext, e.Context); err != nil {
				return nil, fmt.Errorf("failed to decode event context: %w", err)
			}
		}
		e.CreatedAt = e.CreatedAt.UTC()
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return out, nil
}
