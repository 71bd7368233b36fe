package attendance

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/campassistant/campassistant/internal/accounts"
	"github.com/campassistant/campassistant/internal/shared"
)

type memoryRepo struct {
	meetings      map[int64]Meeting
	records       map[int64]Record
	nextMeetingID int64
	nextRecordID  int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{meetings: make(map[int64]Meeting), records: make(map[int64]Record)}
}

func (r *memoryRepo) CreateMeeting(ctx context.Context, m Meeting) (Meeting, error) {
	r.nextMeetingID++
	m.ID = r.nextMeetingID
	r.meetings[m.ID] = m
	return m, nil
}

func (r *memoryRepo) GetMeeting(ctx context.Context, id int64) (Meeting, error) {
	m, ok := r.meetings[id]
	if !ok {
		return Meeting{}, fmt.Errorf("meeting %d: %w", id, shared.ErrNotFound)
	}
	return m, nil
}

func (r *memoryRepo) ListMeetings(ctx context.Context) ([]Meeting, error) {
	out := make([]Meeting, 0, len(r.meetings))
	for _, m := range r.meetings {
		out = append(out, m)
	}
	return out, nil
}

func (r *memoryRepo) UpdateMeetingStatus(ctx context.Context, id int64, status MeetingStatus) error {
	m, ok := r.meetings[id]
	if !ok {
		return fmt.Errorf("meeting %d: %w", id, shared.ErrNotFound)
	}
	m.Status = status
	r.meetings[id] = m
	return nil
}

func (r *memoryRepo) DeleteMeeting(ctx context.Context, id int64) error {
	if _, ok := r.meetings[id]; !ok {
		return fmt.Errorf("meeting %d: %w", id, shared.ErrNotFound)
	}
	delete(r.meetings, id)
	for recID, rec := range r.records {
		if rec.MeetingID == id {
			delete(r.records, recID)
		}
	}
	return nil
}

func (r *memoryRepo) insert(rec Record) (Record, error) {
	for _, existing := range r.records {
		if existing.MeetingID == rec.MeetingID && existing.UserID == rec.UserID {
			return Record{}, fmt.Errorf("attendance for user %d: %w", rec.UserID, shared.ErrDuplicate)
		}
	}
	r.nextRecordID++
	rec.ID = r.nextRecordID
	r.records[rec.ID] = rec
	return rec, nil
}

func (r *memoryRepo) InsertRecord(ctx context.Context, rec Record) (Record, error) {
	return r.insert(rec)
}

func (r *memoryRepo) InsertRecords(ctx context.Context, recs []Record) ([]Record, error) {
	// Mirrors the transactional contract: any failure leaves nothing behind.
	snapshot := make(map[int64]Record, len(r.records))
	for id, rec := range r.records {
		snapshot[id] = rec
	}
	nextID := r.nextRecordID

	out := make([]Record, 0, len(recs))
	for _, rec := range recs {
		stored, err := r.insert(rec)
		if err != nil {
			r.records = snapshot
			r.nextRecordID = nextID
			return nil, err
		}
		out = append(out, stored)
	}
	return out, nil
}

func (r *memoryRepo) GetRecord(ctx context.Context, id int64) (Record, error) {
	rec, ok := r.records[id]
	if !ok {
		return Record{}, fmt.Errorf("record %d: %w", id, shared.ErrNotFound)
	}
	return rec, nil
}

func (r *memoryRepo) UpdateRecord(ctx context.Context, rec Record) (Record, error) {
	if _, ok := r.records[rec.ID]; !ok {
		return Record{}, fmt.Errorf("record %d: %w", rec.ID, shared.ErrNotFound)
	}
	r.records[rec.ID] = rec
	return rec, nil
}

func (r *memoryRepo) DeleteRecord(ctx context.Context, id int64) error {
	if _, ok := r.records[id]; !ok {
		return fmt.Errorf("record %d: %w", id, shared.ErrNotFound)
	}
	delete(r.records, id)
	return nil
}

func (r *memoryRepo) ListByMeeting(ctx context.Context, meetingID int64) ([]Record, error) {
	var out []Record
	for _, rec := range r.records {
		if rec.MeetingID == meetingID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *memoryRepo) ListByUser(ctx context.Context, userID int64) ([]Record, error) {
	var out []Record
	for _, rec := range r.records {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *memoryRepo) OwnerOf(ctx context.Context, recordID int64) (int64, error) {
	rec, ok := r.records[recordID]
	if !ok {
		return 0, fmt.Errorf("record %d: %w", recordID, shared.ErrNotFound)
	}
	return rec.UserID, nil
}

func (r *memoryRepo) ReportCounts(ctx context.Context, meetingID int64) (Report, error) {
	report := Report{MeetingID: meetingID}
	for _, rec := range r.records {
		if rec.MeetingID != meetingID {
			continue
		}
		report.Total++
		switch rec.Status {
		case StatusPresent:
			report.Present++
		case StatusAbsent:
			report.Absent++
		case StatusLate:
			report.Late++
		case StatusJustified:
			report.Justified++
		}
	}
	if report.Total > 0 {
		report.Rate = float64(report.Present+report.Late) / float64(report.Total)
	}
	return report, nil
}

type stubAccountSource struct {
	known map[int64]bool
}

func (s *stubAccountSource) GetByID(ctx context.Context, id int64) (accounts.Account, error) {
	if !s.known[id] {
		return accounts.Account{}, fmt.Errorf("user %d: %w", id, shared.ErrNotFound)
	}
	return accounts.Account{ID: id}, nil
}

type stubEnqueuer struct {
	meetings []int64
}

func (s *stubEnqueuer) EnqueueMeetingReminder(ctx context.Context, meetingID int64, scheduledAt time.Time) error {
	s.meetings = append(s.meetings, meetingID)
	return nil
}

func newAttendanceService(repo *memoryRepo, tasks TaskEnqueuer, users ...int64) *Service {
	known := make(map[int64]bool, len(users))
	for _, id := range users {
		known[id] = true
	}
	return NewService(repo, &stubAccountSource{known: known}, NewReportCache(nil, 0), tasks, slog.Default())
}

func TestCreateMeetingSchedulesReminderWhenMandatory(t *testing.T) {
	repo := newMemoryRepo()
	tasks := &stubEnqueuer{}
	svc := newAttendanceService(repo, tasks)
	ctx := context.Background()

	optional, err := svc.CreateMeeting(ctx, MeetingInput{Name: "Fogata", ScheduledAt: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	require.Equal(t, MeetingScheduled, optional.Status)
	require.Empty(t, tasks.meetings)

	mandatory, err := svc.CreateMeeting(ctx, MeetingInput{Name: "Apertura", ScheduledAt: time.Now().Add(time.Hour), Mandatory: true})
	require.NoError(t, err)
	require.Equal(t, []int64{mandatory.ID}, tasks.meetings)
}

func TestSetMeetingStatusRejectsUnknownState(t *testing.T) {
	repo := newMemoryRepo()
	svc := newAttendanceService(repo, nil)
	ctx := context.Background()

	meeting, err := svc.CreateMeeting(ctx, MeetingInput{Name: "Taller"})
	require.NoError(t, err)

	require.ErrorIs(t, svc.SetMeetingStatus(ctx, meeting.ID, MeetingStatus("PAUSADA")), ErrInvalidStatus)
	require.NoError(t, svc.SetMeetingStatus(ctx, meeting.ID, MeetingFinished))

	stored, err := svc.GetMeeting(ctx, meeting.ID)
	require.NoError(t, err)
	require.Equal(t, MeetingFinished, stored.Status)
}

func TestRegisterValidatesMeetingStatusAndUser(t *testing.T) {
	repo := newMemoryRepo()
	svc := newAttendanceService(repo, nil, 7)
	ctx := context.Background()

	meeting, err := svc.CreateMeeting(ctx, MeetingInput{Name: "Caminata"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, "staff", RegisterInput{MeetingID: 99, UserID: 7, Status: StatusPresent})
	require.ErrorIs(t, err, shared.ErrNotFound)

	_, err = svc.Register(ctx, "staff", RegisterInput{MeetingID: meeting.ID, UserID: 7, Status: Status("DESCONOCIDO")})
	require.ErrorIs(t, err, ErrInvalidStatus)

	_, err = svc.Register(ctx, "staff", RegisterInput{MeetingID: meeting.ID, UserID: 8, Status: StatusPresent})
	require.ErrorIs(t, err, shared.ErrNotFound)

	rec, err := svc.Register(ctx, "staff", RegisterInput{MeetingID: meeting.ID, UserID: 7, Status: StatusPresent})
	require.NoError(t, err)
	require.Equal(t, "staff", rec.RecordedBy)
	require.NotEqual(t, "00000000-0000-0000-0000-000000000000", rec.Reference.String())
}

func TestRegisterRejectsCancelledMeetingAndDuplicate(t *testing.T) {
	repo := newMemoryRepo()
	svc := newAttendanceService(repo, nil, 7)
	ctx := context.Background()

	meeting, err := svc.CreateMeeting(ctx, MeetingInput{Name: "Velada"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, "staff", RegisterInput{MeetingID: meeting.ID, UserID: 7, Status: StatusPresent})
	require.NoError(t, err)
	_, err = svc.Register(ctx, "staff", RegisterInput{MeetingID: meeting.ID, UserID: 7, Status: StatusLate})
	require.ErrorIs(t, err, shared.ErrDuplicate)

	require.NoError(t, svc.SetMeetingStatus(ctx, meeting.ID, MeetingCancelled))
	_, err = svc.Register(ctx, "staff", RegisterInput{MeetingID: meeting.ID, UserID: 7, Status: StatusPresent})
	require.ErrorIs(t, err, ErrMeetingClosed)
}

func TestRegisterBatchIsAllOrNothing(t *testing.T) {
	repo := newMemoryRepo()
	svc := newAttendanceService(repo, nil, 1, 2, 3)
	ctx := context.Background()

	meeting, err := svc.CreateMeeting(ctx, MeetingInput{Name: "Formacion"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, "staff", RegisterInput{MeetingID: meeting.ID, UserID: 2, Status: StatusPresent})
	require.NoError(t, err)

	// User 2 already has a record, so the whole batch must fail.
	_, err = svc.RegisterBatch(ctx, "staff", meeting.ID, []RegisterInput{
		{UserID: 1, Status: StatusPresent},
		{UserID: 2, Status: StatusLate},
		{UserID: 3, Status: StatusAbsent},
	})
	require.ErrorIs(t, err, shared.ErrDuplicate)

	stored, err := svc.RecordsForMeeting(ctx, meeting.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)

	batch, err := svc.RegisterBatch(ctx, "staff", meeting.ID, []RegisterInput{
		{UserID: 1, Status: StatusPresent},
		{UserID: 3, Status: StatusAbsent},
	})
	require.NoError(t, err)
	require.Len(t, batch, 2)
}

func TestUpdateAndDeleteRecord(t *testing.T) {
	repo := newMemoryRepo()
	svc := newAttendanceService(repo, nil, 7)
	ctx := context.Background()

	meeting, err := svc.CreateMeeting(ctx, MeetingInput{Name: "Misa"})
	require.NoError(t, err)
	rec, err := svc.Register(ctx, "staff", RegisterInput{MeetingID: meeting.ID, UserID: 7, Status: StatusAbsent})
	require.NoError(t, err)

	_, err = svc.Update(ctx, rec.ID, UpdateInput{Status: Status("NOPE")})
	require.ErrorIs(t, err, ErrInvalidStatus)

	updated, err := svc.Update(ctx, rec.ID, UpdateInput{Status: StatusJustified, Notes: "permiso familiar"})
	require.NoError(t, err)
	require.Equal(t, StatusJustified, updated.Status)
	require.Equal(t, "permiso familiar", updated.Notes)

	require.NoError(t, svc.Delete(ctx, rec.ID))
	_, err = svc.Get(ctx, rec.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestOwnerOf(t *testing.T) {
	repo := newMemoryRepo()
	svc := newAttendanceService(repo, nil, 7)
	ctx := context.Background()

	meeting, err := svc.CreateMeeting(ctx, MeetingInput{Name: "Cena"})
	require.NoError(t, err)
	rec, err := svc.Register(ctx, "staff", RegisterInput{MeetingID: meeting.ID, UserID: 7, Status: StatusPresent})
	require.NoError(t, err)

	owner, err := svc.OwnerOf(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, int64(7), owner)

	_, err = svc.OwnerOf(ctx, 404)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestReportAggregatesCounts(t *testing.T) {
	repo := newMemoryRepo()
	svc := newAttendanceService(repo, nil, 1, 2, 3, 4)
	ctx := context.Background()

	meeting, err := svc.CreateMeeting(ctx, MeetingInput{Name: "Clausura"})
	require.NoError(t, err)

	_, err = svc.RegisterBatch(ctx, "staff", meeting.ID, []RegisterInput{
		{UserID: 1, Status: StatusPresent},
		{UserID: 2, Status: StatusLate},
		{UserID: 3, Status: StatusAbsent},
		{UserID: 4, Status: StatusJustified},
	})
	require.NoError(t, err)

	report, err := svc.Report(ctx, meeting.ID)
	require.NoError(t, err)
	require.Equal(t, 4, report.Total)
	require.Equal(t, 1, report.Present)
	require.Equal(t, 1, report.Late)
	require.Equal(t, 1, report.Absent)
	require.Equal(t, 1, report.Justified)
	require.InDelta(t, 0.5, report.Rate, 1e-9)

	_, err = svc.Report(ctx, 404)
	require.ErrorIs(t, err, shared.ErrNotFound)
}
