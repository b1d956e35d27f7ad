// Package schedules plans upcoming audits and queues reminder jobs.
package schedules

import (
	"context"
	"time"
)

// Schedule is a planned audit for an employee.
type Schedule struct {
	ID             int64      `json:"id"`
	AuditorEmail   string     `json:"auditor_email"`
	EmployeeEmail  string     `json:"employee_email"`
	ScheduledFor   time.Time  `json:"scheduled_for"`
	Notes          string     `json:"notes,omitempty"`
	Status         string     `json:"status"`
	ReminderSentAt *time.Time `json:"reminder_sent_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Schedule statuses.
const (
	StatusScheduled = "scheduled"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Store is the persistence surface for schedules.
type Store interface {
	Get(ctx context.Context, id int64) (Schedule, error)
	ListUpcoming(ctx context.Context, auditorEmail string) ([]Schedule, error)
	Create(ctx context.Context, sched Schedule) (Schedule, error)
	SetStatus(ctx context.Context, id int64, status string) (Schedule, error)
}
