// Package jobs defines the background task types and their asynq handlers.
package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

// Task type identifiers.
const TypeScheduleReminder = "schedule:reminder"

// ScheduleReminderPayload carries everything the reminder handler needs.
type ScheduleReminderPayload struct {
	ScheduleID    int64     `json:"schedule_id"`
	AuditorEmail  string    `json:"auditor_email"`
	EmployeeEmail string    `json:"employee_email"`
	ScheduledFor  time.Time `json:"scheduled_for"`
}

// NewScheduleReminderTask builds a reminder task that fires shortly before
// the scheduled audit.
func NewScheduleReminderTask(payload ScheduleReminderPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeScheduleReminder, data), nil
}
