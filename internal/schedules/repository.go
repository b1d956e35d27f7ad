package schedules

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/calibra-qa/calibra/internal/shared"
)

const scheduleColumns = `id, auditor_email, employee_email, scheduled_for, COALESCE(notes, ''), status, reminder_sent_at, created_at, updated_at`

// Repository provides PostgreSQL backed schedule persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get fetches one schedule by ID.
func (r *Repository) Get(ctx context.Context, id int64) (Schedule, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+scheduleColumns+` FROM audit_schedules WHERE id = $1`, id)
	return scanSchedule(row)
}

// ListUpcoming returns future schedules, optionally narrowed to one auditor.
func (r *Repository) ListUpcoming(ctx context.Context, auditorEmail string) ([]Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM audit_schedules WHERE scheduled_for > NOW() AND status = 'scheduled'`
	args := []any{}
	if auditorEmail != "" {
		query += ` AND LOWER(auditor_email) = LOWER($1)`
		args = append(args, auditorEmail)
	}
	query += ` ORDER BY scheduled_for`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var scheds []Schedule
	for rows.Next() {
		sched, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		scheds = append(scheds, sched)
	}
	return scheds, rows.Err()
}

// Create inserts a schedule in the scheduled state.
func (r *Repository) Create(ctx context.Context, sched Schedule) (Schedule, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO audit_schedules (auditor_email, employee_email, scheduled_for, notes, status) VALUES ($1, $2, $3, $4, 'scheduled') RETURNING `+scheduleColumns,
		sched.AuditorEmail, sched.EmployeeEmail, sched.ScheduledFor, sched.Notes)
	return scanSchedule(row)
}

// SetStatus transitions a schedule.
func (r *Repository) SetStatus(ctx context.Context, id int64, status string) (Schedule, error) {
	row := r.pool.QueryRow(ctx, `UPDATE audit_schedules SET status = $2, updated_at = NOW() WHERE id = $1 RETURNING `+scheduleColumns, id, status)
	return scanSchedule(row)
}

func scanSchedule(row pgx.Row) (Schedule, error) {
	var sched Schedule
	err := row.Scan(&sched.ID, &sched.AuditorEmail, &sched.EmployeeEmail, &sched.ScheduledFor, &sched.Notes, &sched.Status, &sched.ReminderSentAt, &sched.CreatedAt, &sched.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Schedule{}, shared.ErrNotFound
	}
	if err != nil {
		return Schedule{}, err
	}
	return sched, nil
}

var _ Store = (*Repository)(nil)
