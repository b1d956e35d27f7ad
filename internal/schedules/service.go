package schedules

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/calibra-qa/calibra/jobs"
)

// ErrPastSchedule rejects schedules placed in the past.
var ErrPastSchedule = errors.New("schedule must be in the future")

// reminderLead is how long before the scheduled time the reminder fires.
const reminderLead = time.Hour

// Enqueuer queues background tasks. *asynq.Client satisfies it.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Service plans audits and queues their reminders.
type Service struct {
	store  Store
	queue  Enqueuer
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds a schedule service.
func NewService(store Store, queue Enqueuer, logger *slog.Logger) *Service {
	return &Service{store: store, queue: queue, logger: logger, now: time.Now}
}

// Get fetches a schedule by ID.
func (s *Service) Get(ctx context.Context, id int64) (Schedule, error) {
	return s.store.Get(ctx, id)
}

// ListUpcoming returns future schedules.
func (s *Service) ListUpcoming(ctx context.Context, auditorEmail string) ([]Schedule, error) {
	return s.store.ListUpcoming(ctx, auditorEmail)
}

// Create plans an audit and queues a reminder an hour before it starts.
// A reminder that cannot be queued is logged, not fatal; the schedule row is
// the source of truth.
func (s *Service) Create(ctx context.Context, sched Schedule) (Schedule, error) {
	if !sched.ScheduledFor.After(s.now()) {
		return Schedule{}, ErrPastSchedule
	}
	sched.AuditorEmail = strings.ToLower(strings.TrimSpace(sched.AuditorEmail))
	sched.EmployeeEmail = strings.ToLower(strings.TrimSpace(sched.EmployeeEmail))

	created, err := s.store.Create(ctx, sched)
	if err != nil {
		return Schedule{}, err
	}

	if s.queue != nil {
		task, err := jobs.NewScheduleReminderTask(jobs.ScheduleReminderPayload{
			ScheduleID:    created.ID,
			AuditorEmail:  created.AuditorEmail,
			EmployeeEmail: created.EmployeeEmail,
			ScheduledFor:  created.ScheduledFor,
		})
		if err == nil {
			_, err = s.queue.EnqueueContext(ctx, task,
				asynq.Queue("reminders"),
				asynq.ProcessAt(created.ScheduledFor.Add(-reminderLead)),
			)
		}
		if err != nil {
			s.logger.Warn("queue schedule reminder", slog.Int64("schedule_id", created.ID), slog.Any("error", err))
		}
	}
	return created, nil
}

// Complete marks a schedule done.
func (s *Service) Complete(ctx context.Context, id int64) (Schedule, error) {
	return s.store.SetStatus(ctx, id, StatusCompleted)
}

// Cancel withdraws a schedule. The reminder handler skips cancelled rows.
func (s *Service) Cancel(ctx context.Context, id int64) (Schedule, error) {
	return s.store.SetStatus(ctx, id, StatusCancelled)
}
