package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/campassistant/campassistant/internal/accounts"
	"github.com/campassistant/campassistant/internal/attendance"
	jobmetrics "github.com/campassistant/campassistant/internal/jobs"
	"github.com/campassistant/campassistant/internal/roles"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// MeetingReminderJob notifies supervisors that a mandatory meeting is
// starting soon.
type MeetingReminderJob struct {
	Attendance *attendance.Service
	Accounts   *accounts.Service
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
}

// NewMeetingReminderJob wires dependencies for the reminder handler.
func NewMeetingReminderJob(attendanceSvc *attendance.Service, accountSvc *accounts.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *MeetingReminderJob {
	return &MeetingReminderJob{Attendance: attendanceSvc, Accounts: accountSvc, Logger: logger, Metrics: metrics}
}

// Handle processes meeting reminder tasks. A meeting that was cancelled or
// deleted after scheduling is skipped, not retried.
func (j *MeetingReminderJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("meeting reminder: handler not configured")
	}
	var payload MeetingReminderPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskMeetingReminder)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Int64("meeting", payload.MeetingID))

	meeting, err := j.Attendance.GetMeeting(ctx, payload.MeetingID)
	if err != nil {
		logger.Warn("meeting gone before reminder", slog.Any("error", err))
		return asynq.SkipRetry
	}
	if meeting.Status == attendance.MeetingCancelled {
		logger.Info("skipping reminder for cancelled meeting")
		return nil
	}

	supervisors, err := j.Accounts.ListByRole(ctx, roles.Dirigente)
	if err != nil {
		resultErr = err
		logger.Error("load supervisors", slog.Any("error", err))
		return resultErr
	}

	// Delivery channel (mail, push) plugs in here; for now the reminder
	// lands in the structured log stream.
	for _, supervisor := range supervisors {
		logger.Info("meeting reminder",
			slog.String("meeting_name", meeting.Name),
			slog.Time("scheduled_at", meeting.ScheduledAt),
			slog.String("supervisor", supervisor.Username))
	}
	logger.Info("completed meeting reminder", slog.Int("supervisors", len(supervisors)))
	return resultErr
}

func (j *MeetingReminderJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskMeetingReminder))
	}
	return slog.Default().With(slog.String("job", TaskMeetingReminder))
}

func (j *MeetingReminderJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
