package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Server wraps the asynq worker with the platform's task handlers.
type Server struct {
	srv    *asynq.Server
	mux    *asynq.ServeMux
	logger *slog.Logger
	pool   *pgxpool.Pool
}

// NewServer constructs the worker server.
func NewServer(redisAddr string, concurrency int, logger *slog.Logger, pool *pgxpool.Pool) *Server {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: redisAddr},
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				"default":   5,
				"reminders": 3,
			},
		},
	)
	s := &Server{
		srv:    srv,
		mux:    asynq.NewServeMux(),
		logger: logger,
		pool:   pool,
	}
	s.mux.HandleFunc(TypeScheduleReminder, s.handleScheduleReminder)
	return s
}

// Run blocks, processing tasks until shutdown.
func (s *Server) Run() error {
	return s.srv.Run(s.mux)
}

// Shutdown stops the worker gracefully.
func (s *Server) Shutdown() {
	s.srv.Shutdown()
}

func (s *Server) handleScheduleReminder(ctx context.Context, task *asynq.Task) error {
	var payload ScheduleReminderPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("schedule reminder payload: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `UPDATE audit_schedules SET reminder_sent_at = NOW(), updated_at = NOW() WHERE id = $1 AND reminder_sent_at IS NULL AND status = 'scheduled'`, payload.ScheduleID)
	if err != nil {
		return fmt.Errorf("mark reminder sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Cancelled, completed or already reminded; nothing to do.
		s.logger.Info("schedule reminder skipped", slog.Int64("schedule_id", payload.ScheduleID))
		return nil
	}

	s.logger.Info("schedule reminder sent",
		slog.Int64("schedule_id", payload.ScheduleID),
		slog.String("auditor", payload.AuditorEmail),
		slog.String("employee", payload.EmployeeEmail),
		slog.Time("scheduled_for", payload.ScheduledFor),
	)
	return nil
}
