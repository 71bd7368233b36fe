package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskMeetingReminder is the task type for mandatory-meeting reminders.
	TaskMeetingReminder = "meeting:reminder"
	// TaskReportWarmup is the task type for pre-warming attendance reports.
	TaskReportWarmup = "attendance:report_warmup"
)

// MeetingReminderPayload identifies the meeting a reminder is due for.
type MeetingReminderPayload struct {
	MeetingID   int64     `json:"meeting_id"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

// NewMeetingReminderTask constructs an Asynq task.
func NewMeetingReminderTask(payload MeetingReminderPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskMeetingReminder, data), nil
}

// ReportWarmupPayload scopes the warmup run. Days limits how far back
// meetings are considered; zero means the handler default.
type ReportWarmupPayload struct {
	Days int `json:"days"`
}

// NewReportWarmupTask constructs an Asynq task.
func NewReportWarmupTask(payload ReportWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReportWarmup, data), nil
}
