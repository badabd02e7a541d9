package events

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/waas-labs/backend/internal/models"
)

// ErrNotFound is returned when an event does not exist.
var ErrNotFound = errors.New("event not found")

const eventColumns = `id, title, place, date, fee, approval_mode, created_by, created_at, updated_at`

// Repository handles event persistence.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates an event repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create inserts an event. The approval mode is fixed at creation and never
// changes afterwards.
func (r *Repository) Create(ctx context.Context, e *models.Event) error {
	query := `
		INSERT INTO events (title, place, date, fee, approval_mode, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		e.Title, e.Place, e.Date, e.Fee, e.ApprovalMode, e.CreatedBy,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

// GetByID fetches an event by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	e := &models.Event{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&e.ID, &e.Title, &e.Place, &e.Date, &e.Fee, &e.ApprovalMode,
		&e.CreatedBy, &e.CreatedAt, &e.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// List returns all events, newest first.
func (r *Repository) List(ctx context.Context) ([]*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		e := &models.Event{}
		if err := rows.Scan(
			&e.ID, &e.Title, &e.Place, &e.Date, &e.Fee, &e.ApprovalMode,
			&e.CreatedBy, &e.CreatedAt, &e.UpdatedAt,
		); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// ListByCreator returns events created by a given admin, newest first.
func (r *Repository) ListByCreator(ctx context.Context, creator uuid.UUID) ([]*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE created_by = $1 ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query, creator)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		e := &models.Event{}
		if err := rows.Scan(
			&e.ID, &e.Title, &e.Place, &e.Date, &e.Fee, &e.ApprovalMode,
			&e.CreatedBy, &e.CreatedAt, &e.UpdatedAt,
		); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Update modifies an event's descriptive fields. The approval mode is
// deliberately not updatable.
func (r *Repository) Update(ctx context.Context, e *models.Event) error {
	query := `
		UPDATE events
		SET title = $2, place = $3, date = $4, fee = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	err := r.db.QueryRow(ctx, query, e.ID, e.Title, e.Place, e.Date, e.Fee).Scan(&e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// Delete removes an event.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
