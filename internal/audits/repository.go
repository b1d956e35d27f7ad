package audits

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/calibra-qa/calibra/internal/shared"
)

const auditColumns = `id, reference, auditor_email, employee_email, scorecard_id, score, COALESCE(summary, ''), COALESCE(acknowledgement_status, ''), acknowledged_at, reversal_requested_at, COALESCE(reversal_reason, ''), reversal_responded_at, reversal_approved, COALESCE(reversal_response, ''), audit_rating, created_at, updated_at`

// Repository provides PostgreSQL backed audit persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get fetches one audit by ID.
func (r *Repository) Get(ctx context.Context, id int64) (Record, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+auditColumns+` FROM audits WHERE id = $1`, id)
	return scanRecord(row)
}

// List returns a page of audits plus the unpaged total.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Record, int, error) {
	where := ` WHERE TRUE`
	args := []any{}
	if filter.AuditorEmail != "" {
		args = append(args, filter.AuditorEmail)
		where += fmt.Sprintf(` AND LOWER(auditor_email) = LOWER($%d)`, len(args))
	}
	if filter.EmployeeEmail != "" {
		args = append(args, filter.EmployeeEmail)
		where += fmt.Sprintf(` AND LOWER(employee_email) = LOWER($%d)`, len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where += fmt.Sprintf(` AND LOWER(acknowledgement_status) = LOWER($%d)`, len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM audits`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	args = append(args, perPage, (page-1)*perPage)
	query := `SELECT ` + auditColumns + ` FROM audits` + where +
		fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, rec)
	}
	return records, total, rows.Err()
}

// Create inserts a new audit in the pending state.
func (r *Repository) Create(ctx context.Context, rec Record) (Record, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO audits (reference, auditor_email, employee_email, scorecard_id, score, summary, acknowledgement_status) VALUES ($1, $2, $3, $4, $5, $6, 'pending') RETURNING `+auditColumns,
		rec.Reference, rec.AuditorEmail, rec.EmployeeEmail, rec.ScorecardID, rec.Score, rec.Summary)
	return scanRecord(row)
}

// Update rewrites the reviewable fields of an audit.
func (r *Repository) Update(ctx context.Context, rec Record) (Record, error) {
	row := r.pool.QueryRow(ctx, `UPDATE audits SET scorecard_id = $2, score = $3, summary = $4, updated_at = NOW() WHERE id = $1 RETURNING `+auditColumns,
		rec.ID, rec.ScorecardID, rec.Score, rec.Summary)
	return scanRecord(row)
}

// Acknowledge marks the audit acknowledged by its employee.
func (r *Repository) Acknowledge(ctx context.Context, id int64) (Record, error) {
	row := r.pool.QueryRow(ctx, `UPDATE audits SET acknowledgement_status = 'acknowledged', acknowledged_at = NOW(), updated_at = NOW() WHERE id = $1 RETURNING `+auditColumns, id)
	return scanRecord(row)
}

// RequestReversal opens a reversal request on the audit.
func (r *Repository) RequestReversal(ctx context.Context, id int64, reason string) (Record, error) {
	row := r.pool.QueryRow(ctx, `UPDATE audits SET reversal_requested_at = NOW(), reversal_reason = $2, updated_at = NOW() WHERE id = $1 RETURNING `+auditColumns, id, reason)
	return scanRecord(row)
}

// RespondReversal resolves a pending reversal request.
func (r *Repository) RespondReversal(ctx context.Context, id int64, approved bool, response string) (Record, error) {
	row := r.pool.QueryRow(ctx, `UPDATE audits SET reversal_responded_at = NOW(), reversal_approved = $2, reversal_response = $3, updated_at = NOW() WHERE id = $1 RETURNING `+auditColumns, id, approved, response)
	return scanRecord(row)
}

// Rate stores the employee's rating of the audit.
func (r *Repository) Rate(ctx context.Context, id int64, rating float64) (Record, error) {
	row := r.pool.QueryRow(ctx, `UPDATE audits SET audit_rating = $2, updated_at = NOW() WHERE id = $1 RETURNING `+auditColumns, id, rating)
	return scanRecord(row)
}

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	err := row.Scan(
		&rec.ID, &rec.Reference, &rec.AuditorEmail, &rec.EmployeeEmail,
		&rec.ScorecardID, &rec.Score, &rec.Summary, &rec.AcknowledgementStatus,
		&rec.AcknowledgedAt, &rec.ReversalRequestedAt, &rec.ReversalReason,
		&rec.ReversalRespondedAt, &rec.ReversalApproved, &rec.ReversalResponse,
		&rec.Rating, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, shared.ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

var _ Store = (*Repository)(nil)
