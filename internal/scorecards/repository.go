package scorecards

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/calibra-qa/calibra/internal/shared"
)

const scorecardColumns = `id, name, COALESCE(description, ''), max_score, is_active, created_at, updated_at`

// Repository provides PostgreSQL backed scorecard persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get fetches one scorecard by ID.
func (r *Repository) Get(ctx context.Context, id int64) (Scorecard, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+scorecardColumns+` FROM scorecards WHERE id = $1`, id)
	return scanScorecard(row)
}

// List returns all scorecards ordered by name.
func (r *Repository) List(ctx context.Context) ([]Scorecard, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+scorecardColumns+` FROM scorecards ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var cards []Scorecard
	for rows.Next() {
		card, err := scanScorecard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	return cards, rows.Err()
}

// Create inserts a scorecard.
func (r *Repository) Create(ctx context.Context, card Scorecard) (Scorecard, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO scorecards (name, description, max_score, is_active) VALUES ($1, $2, $3, $4) RETURNING `+scorecardColumns,
		card.Name, card.Description, card.MaxScore, card.IsActive)
	created, err := scanScorecard(row)
	if err != nil {
		return Scorecard{}, mapPGError(err)
	}
	return created, nil
}

// Update rewrites a scorecard.
func (r *Repository) Update(ctx context.Context, card Scorecard) (Scorecard, error) {
	row := r.pool.QueryRow(ctx, `UPDATE scorecards SET name = $2, description = $3, max_score = $4, is_active = $5, updated_at = NOW() WHERE id = $1 RETURNING `+scorecardColumns,
		card.ID, card.Name, card.Description, card.MaxScore, card.IsActive)
	updated, err := scanScorecard(row)
	if err != nil {
		return Scorecard{}, mapPGError(err)
	}
	return updated, nil
}

// Delete removes a scorecard by ID.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM scorecards WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func scanScorecard(row pgx.Row) (Scorecard, error) {
	var card Scorecard
	err := row.Scan(&card.ID, &card.Name, &card.Description, &card.MaxScore, &card.IsActive, &card.CreatedAt, &card.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Scorecard{}, shared.ErrNotFound
	}
	if err != nil {
		return Scorecard{}, err
	}
	return card, nil
}

func mapPGError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return shared.ErrDuplicate
	}
	return err
}

var _ Store = (*Repository)(nil)
