package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campassistant/campassistant/internal/attendance"
	jobmetrics "github.com/campassistant/campassistant/internal/jobs"
)

// ReportWarmupJob pre-populates attendance report caches for recent
// meetings so the first dashboard read after an invalidation stays fast.
type ReportWarmupJob struct {
	Attendance *attendance.Service
	Pool       *pgxpool.Pool
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
	clock      func() time.Time
}

// NewReportWarmupJob wires dependencies for the warmup handler.
func NewReportWarmupJob(attendanceSvc *attendance.Service, pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReportWarmupJob {
	return &ReportWarmupJob{
		Attendance: attendanceSvc,
		Pool:       pool,
		Logger:     logger,
		Metrics:    metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes report warmup tasks.
func (j *ReportWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("report warmup: handler not configured")
	}
	var payload ReportWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Days <= 0 {
		payload.Days = 30
	}

	tracker := j.metrics().Track(TaskReportWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Int("days", payload.Days))
	logger.Info("starting report warmup")

	now := j.now()
	ids, err := j.fetchMeetingIDs(ctx, now.AddDate(0, 0, -payload.Days))
	if err != nil {
		resultErr = err
		logger.Error("load warmup meetings", slog.Any("error", err))
		return resultErr
	}
	if len(ids) == 0 {
		logger.Info("no meetings discovered for warmup")
		return resultErr
	}

	warmed := 0
	for _, id := range ids {
		if err := j.warmMeeting(ctx, id); err != nil {
			resultErr = err
			logger.Error("warm meeting report", slog.Int64("meeting", id), slog.Any("error", err))
			return resultErr
		}
		warmed++
	}

	logger.Info("completed report warmup", slog.Int("meetings", warmed), slog.Duration("duration", time.Since(now)))
	return resultErr
}

func (j *ReportWarmupJob) warmMeeting(ctx context.Context, meetingID int64) error {
	if j.Attendance == nil {
		return nil
	}
	// Per-meeting timeout keeps one slow aggregate from stalling the run.
	meetingCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	_, err := j.Attendance.Report(meetingCtx, meetingID)
	return err
}

func (j *ReportWarmupJob) fetchMeetingIDs(ctx context.Context, since time.Time) ([]int64, error) {
	if j.Pool == nil {
		return nil, errors.New("report warmup: pool not configured")
	}
	rows, err := j.Pool.Query(ctx,
		`SELECT id FROM meetings WHERE status <> 'CANCELADA' AND scheduled_at >= $1 ORDER BY id`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (j *ReportWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskReportWarmup))
	}
	return slog.Default().With(slog.String("job", TaskReportWarmup))
}

func (j *ReportWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *ReportWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
