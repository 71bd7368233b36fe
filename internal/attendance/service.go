package attendance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/campassistant/campassistant/internal/accounts"
)

// AccountSource is the subset of the account store used to validate
// record targets.
type AccountSource interface {
	GetByID(ctx context.Context, id int64) (accounts.Account, error)
}

// TaskEnqueuer schedules background work for meetings. Implemented by the
// jobs client; nil disables scheduling.
type TaskEnqueuer interface {
	EnqueueMeetingReminder(ctx context.Context, meetingID int64, scheduledAt time.Time) error
}

// Service owns meeting and attendance-record operations. Authorization is
// decided by the caller before any mutating call lands here.
type Service struct {
	repo     Repository
	accounts AccountSource
	cache    *ReportCache
	tasks    TaskEnqueuer
	logger   *slog.Logger
	reports  singleflight.Group
}

// NewService constructs a Service.
func NewService(repo Repository, accountSource AccountSource, cache *ReportCache, tasks TaskEnqueuer, logger *slog.Logger) *Service {
	return &Service{repo: repo, accounts: accountSource, cache: cache, tasks: tasks, logger: logger}
}

// MeetingInput carries the fields for creating a meeting.
type MeetingInput struct {
	Name        string
	Description string
	ScheduledAt time.Time
	Location    string
	Mandatory   bool
}

// CreateMeeting persists a new meeting in the PROGRAMADA state. Mandatory
// meetings get a reminder task scheduled for their start time.
func (s *Service) CreateMeeting(ctx context.Context, in MeetingInput) (Meeting, error) {
	meeting, err := s.repo.CreateMeeting(ctx, Meeting{
		Name:        in.Name,
		Description: in.Description,
		ScheduledAt: in.ScheduledAt,
		Location:    in.Location,
		Mandatory:   in.Mandatory,
		Status:      MeetingScheduled,
	})
	if err != nil {
		return Meeting{}, err
	}
	if meeting.Mandatory && s.tasks != nil {
		if err := s.tasks.EnqueueMeetingReminder(ctx, meeting.ID, meeting.ScheduledAt); err != nil {
			s.logger.Error("schedule meeting reminder", slog.Any("error", err), slog.Int64("meeting", meeting.ID))
		}
	}
	return meeting, nil
}

// GetMeeting loads a meeting by id.
func (s *Service) GetMeeting(ctx context.Context, id int64) (Meeting, error) {
	return s.repo.GetMeeting(ctx, id)
}

// ListMeetings returns all meetings.
func (s *Service) ListMeetings(ctx context.Context) ([]Meeting, error) {
	return s.repo.ListMeetings(ctx)
}

// SetMeetingStatus transitions a meeting's lifecycle state.
func (s *Service) SetMeetingStatus(ctx context.Context, id int64, status MeetingStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	return s.repo.UpdateMeetingStatus(ctx, id, status)
}

// DeleteMeeting removes a meeting and its records.
func (s *Service) DeleteMeeting(ctx context.Context, id int64) error {
	if err := s.repo.DeleteMeeting(ctx, id); err != nil {
		return err
	}
	s.bump(ctx)
	return nil
}

// RegisterInput carries the fields for recording one user's attendance.
type RegisterInput struct {
	MeetingID   int64
	UserID      int64
	Status      Status
	ArrivalAt   *time.Time
	DepartureAt *time.Time
	Notes       string
}

// Register records attendance for a single user. The meeting must exist
// and not be cancelled; the user must exist. A second record for the same
// meeting and user surfaces as a duplicate error.
func (s *Service) Register(ctx context.Context, recordedBy string, in RegisterInput) (Record, error) {
	meeting, err := s.prepareWrite(ctx, in.MeetingID)
	if err != nil {
		return Record{}, err
	}
	rec, err := s.buildRecord(ctx, meeting.ID, recordedBy, in)
	if err != nil {
		return Record{}, err
	}
	stored, err := s.repo.InsertRecord(ctx, rec)
	if err != nil {
		return Record{}, err
	}
	s.bump(ctx)
	return stored, nil
}

// RegisterBatch records attendance for several users at one meeting in a
// single transaction. Any failing entry aborts the whole batch.
func (s *Service) RegisterBatch(ctx context.Context, recordedBy string, meetingID int64, entries []RegisterInput) ([]Record, error) {
	meeting, err := s.prepareWrite(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	recs := make([]Record, 0, len(entries))
	for _, in := range entries {
		rec, err := s.buildRecord(ctx, meeting.ID, recordedBy, in)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	stored, err := s.repo.InsertRecords(ctx, recs)
	if err != nil {
		return nil, err
	}
	s.bump(ctx)
	return stored, nil
}

// UpdateInput carries the mutable fields of a record.
type UpdateInput struct {
	Status      Status
	ArrivalAt   *time.Time
	DepartureAt *time.Time
	Notes       string
}

// Update rewrites the mutable fields of a record.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (Record, error) {
	if !in.Status.Valid() {
		return Record{}, fmt.Errorf("%w: %q", ErrInvalidStatus, in.Status)
	}
	rec, err := s.repo.GetRecord(ctx, id)
	if err != nil {
		return Record{}, err
	}
	rec.Status = in.Status
	rec.ArrivalAt = in.ArrivalAt
	rec.DepartureAt = in.DepartureAt
	rec.Notes = in.Notes
	stored, err := s.repo.UpdateRecord(ctx, rec)
	if err != nil {
		return Record{}, err
	}
	s.bump(ctx)
	return stored, nil
}

// Delete removes a record.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.DeleteRecord(ctx, id); err != nil {
		return err
	}
	s.bump(ctx)
	return nil
}

// Get loads a record by id.
func (s *Service) Get(ctx context.Context, id int64) (Record, error) {
	return s.repo.GetRecord(ctx, id)
}

// RecordsForMeeting returns all records of a meeting.
func (s *Service) RecordsForMeeting(ctx context.Context, meetingID int64) ([]Record, error) {
	return s.repo.ListByMeeting(ctx, meetingID)
}

// RecordsForUser returns all records of a user.
func (s *Service) RecordsForUser(ctx context.Context, userID int64) ([]Record, error) {
	return s.repo.ListByUser(ctx, userID)
}

// OwnerOf resolves the user a record belongs to. Used as the owner lookup
// behind id-addressed authorization decisions.
func (s *Service) OwnerOf(ctx context.Context, recordID int64) (int64, error) {
	return s.repo.OwnerOf(ctx, recordID)
}

// Report returns the aggregated outcome counts for a meeting, served from
// cache when warm. Concurrent misses for the same meeting collapse into a
// single load.
func (s *Service) Report(ctx context.Context, meetingID int64) (Report, error) {
	if _, err := s.repo.GetMeeting(ctx, meetingID); err != nil {
		return Report{}, err
	}
	key, err := s.cache.BuildKey(ctx, meetingID)
	if err != nil {
		return Report{}, err
	}
	result, err, _ := s.reports.Do(key, func() (interface{}, error) {
		var report Report
		err := s.cache.FetchJSON(ctx, key, &report, func(ctx context.Context) (interface{}, error) {
			return s.repo.ReportCounts(ctx, meetingID)
		})
		return report, err
	})
	if err != nil {
		return Report{}, err
	}
	return result.(Report), nil
}

func (s *Service) prepareWrite(ctx context.Context, meetingID int64) (Meeting, error) {
	meeting, err := s.repo.GetMeeting(ctx, meetingID)
	if err != nil {
		return Meeting{}, err
	}
	if meeting.Status == MeetingCancelled {
		return Meeting{}, fmt.Errorf("meeting %d: %w", meetingID, ErrMeetingClosed)
	}
	return meeting, nil
}

func (s *Service) buildRecord(ctx context.Context, meetingID int64, recordedBy string, in RegisterInput) (Record, error) {
	if !in.Status.Valid() {
		return Record{}, fmt.Errorf("%w: %q", ErrInvalidStatus, in.Status)
	}
	if _, err := s.accounts.GetByID(ctx, in.UserID); err != nil {
		return Record{}, fmt.Errorf("target user: %w", err)
	}
	return Record{
		MeetingID:   meetingID,
		UserID:      in.UserID,
		Status:      in.Status,
		Reference:   uuid.New(),
		ArrivalAt:   in.ArrivalAt,
		DepartureAt: in.DepartureAt,
		Notes:       in.Notes,
		RecordedBy:  recordedBy,
	}, nil
}

func (s *Service) bump(ctx context.Context) {
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("invalidate report cache", slog.Any("error", err))
	}
}
