package attendance

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campassistant/campassistant/internal/platform/db"
	"github.com/campassistant/campassistant/internal/shared"
)

const pgUniqueViolation = "23505"

// Repository provides persistence for meetings and attendance records.
type Repository interface {
	CreateMeeting(ctx context.Context, m Meeting) (Meeting, error)
	GetMeeting(ctx context.Context, id int64) (Meeting, error)
	ListMeetings(ctx context.Context) ([]Meeting, error)
	UpdateMeetingStatus(ctx context.Context, id int64, status MeetingStatus) error
	DeleteMeeting(ctx context.Context, id int64) error

	InsertRecord(ctx context.Context, rec Record) (Record, error)
	InsertRecords(ctx context.Context, recs []Record) ([]Record, error)
	GetRecord(ctx context.Context, id int64) (Record, error)
	UpdateRecord(ctx context.Context, rec Record) (Record, error)
	DeleteRecord(ctx context.Context, id int64) error
	ListByMeeting(ctx context.Context, meetingID int64) ([]Record, error)
	ListByUser(ctx context.Context, userID int64) ([]Record, error)
	OwnerOf(ctx context.Context, recordID int64) (int64, error)
	ReportCounts(ctx context.Context, meetingID int64) (Report, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const meetingColumns = `id, name, description, scheduled_at, location, mandatory, status, created_at, updated_at`

func scanMeeting(row pgx.Row) (Meeting, error) {
	var m Meeting
	err := row.Scan(&m.ID, &m.Name, &m.Description, &m.ScheduledAt, &m.Location, &m.Mandatory, &m.Status, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

// CreateMeeting persists a new meeting.
func (r *PGRepository) CreateMeeting(ctx context.Context, m Meeting) (Meeting, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO meetings (name, description, scheduled_at, location, mandatory, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+meetingColumns,
		m.Name, m.Description, m.ScheduledAt, m.Location, m.Mandatory, m.Status,
	)
	return scanMeeting(row)
}

// GetMeeting loads a meeting by id.
func (r *PGRepository) GetMeeting(ctx context.Context, id int64) (Meeting, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+meetingColumns+` FROM meetings WHERE id = $1`, id)
	m, err := scanMeeting(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Meeting{}, fmt.Errorf("meeting %d: %w", id, shared.ErrNotFound)
	}
	return m, err
}

// ListMeetings returns all meetings, most recent first.
func (r *PGRepository) ListMeetings(ctx context.Context) ([]Meeting, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+meetingColumns+` FROM meetings ORDER BY scheduled_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Meeting
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// UpdateMeetingStatus transitions a meeting's lifecycle state.
func (r *PGRepository) UpdateMeetingStatus(ctx context.Context, id int64, status MeetingStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE meetings SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("meeting %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

// DeleteMeeting removes a meeting and, via cascade, its records.
func (r *PGRepository) DeleteMeeting(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM meetings WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("meeting %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

const recordColumns = `id, meeting_id, user_id, status, reference, arrival_at, departure_at, notes, recorded_by, created_at, updated_at`

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.MeetingID, &rec.UserID, &rec.Status, &rec.Reference,
		&rec.ArrivalAt, &rec.DepartureAt, &rec.Notes, &rec.RecordedBy, &rec.CreatedAt, &rec.UpdatedAt)
	return rec, err
}

func insertRecord(ctx context.Context, q interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}, rec Record) (Record, error) {
	row := q.QueryRow(ctx,
		`INSERT INTO attendance_records (meeting_id, user_id, status, reference, arrival_at, departure_at, notes, recorded_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING `+recordColumns,
		rec.MeetingID, rec.UserID, rec.Status, rec.Reference, rec.ArrivalAt, rec.DepartureAt, rec.Notes, rec.RecordedBy,
	)
	stored, err := scanRecord(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return Record{}, fmt.Errorf("record for meeting %d user %d: %w", rec.MeetingID, rec.UserID, shared.ErrDuplicate)
		}
		return Record{}, err
	}
	return stored, nil
}

// InsertRecord persists a single attendance record. A second record for
// the same meeting and user maps to shared.ErrDuplicate.
func (r *PGRepository) InsertRecord(ctx context.Context, rec Record) (Record, error) {
	return insertRecord(ctx, r.pool, rec)
}

// InsertRecords persists a batch atomically: one failing row rolls back
// the whole batch.
func (r *PGRepository) InsertRecords(ctx context.Context, recs []Record) ([]Record, error) {
	var out []Record
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		out = out[:0]
		for _, rec := range recs {
			stored, err := insertRecord(ctx, tx, rec)
			if err != nil {
				return err
			}
			out = append(out, stored)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetRecord loads a record by id.
func (r *PGRepository) GetRecord(ctx context.Context, id int64) (Record, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM attendance_records WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, fmt.Errorf("attendance record %d: %w", id, shared.ErrNotFound)
	}
	return rec, err
}

// UpdateRecord rewrites the mutable fields of a record.
func (r *PGRepository) UpdateRecord(ctx context.Context, rec Record) (Record, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE attendance_records
		 SET status = $2, arrival_at = $3, departure_at = $4, notes = $5, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+recordColumns,
		rec.ID, rec.Status, rec.ArrivalAt, rec.DepartureAt, rec.Notes,
	)
	stored, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, fmt.Errorf("attendance record %d: %w", rec.ID, shared.ErrNotFound)
	}
	return stored, err
}

// DeleteRecord removes a record by id.
func (r *PGRepository) DeleteRecord(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM attendance_records WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("attendance record %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

// ListByMeeting returns all records for a meeting.
func (r *PGRepository) ListByMeeting(ctx context.Context, meetingID int64) ([]Record, error) {
	return r.listRecords(ctx, `WHERE meeting_id = $1`, meetingID)
}

// ListByUser returns all records for a user.
func (r *PGRepository) ListByUser(ctx context.Context, userID int64) ([]Record, error) {
	return r.listRecords(ctx, `WHERE user_id = $1`, userID)
}

func (r *PGRepository) listRecords(ctx context.Context, where string, id int64) ([]Record, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+recordColumns+` FROM attendance_records `+where+` ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// OwnerOf resolves the user a record belongs to, without loading the row.
func (r *PGRepository) OwnerOf(ctx context.Context, recordID int64) (int64, error) {
	var userID int64
	err := r.pool.QueryRow(ctx, `SELECT user_id FROM attendance_records WHERE id = $1`, recordID).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("attendance record %d: %w", recordID, shared.ErrNotFound)
	}
	return userID, err
}

// ReportCounts aggregates outcome counts for a meeting in one query.
func (r *PGRepository) ReportCounts(ctx context.Context, meetingID int64) (Report, error) {
	report := Report{MeetingID: meetingID}
	err := r.pool.QueryRow(ctx,
		`SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'PRESENTE'),
			COUNT(*) FILTER (WHERE status = 'AUSENTE'),
			COUNT(*) FILTER (WHERE status = 'TARDANZA'),
			COUNT(*) FILTER (WHERE status = 'JUSTIFICADO')
		 FROM attendance_records WHERE meeting_id = $1`,
		meetingID,
	).Scan(&report.Total, &report.Present, &report.Absent, &report.Late, &report.Justified)
	if err != nil {
		return Report{}, err
	}
	if report.Total > 0 {
		report.Rate = float64(report.Present+report.Late) / float64(report.Total)
	}
	return report, nil
}
