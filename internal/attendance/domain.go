package attendance

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// MeetingStatus is the lifecycle state of a meeting.
type MeetingStatus string

const (
	MeetingScheduled MeetingStatus = "PROGRAMADA"
	MeetingOngoing   MeetingStatus = "EN_CURSO"
	MeetingFinished  MeetingStatus = "FINALIZADA"
	MeetingCancelled MeetingStatus = "CANCELADA"
)

// Valid reports whether the status is one of the known states.
func (s MeetingStatus) Valid() bool {
	switch s {
	case MeetingScheduled, MeetingOngoing, MeetingFinished, MeetingCancelled:
		return true
	}
	return false
}

// Status is the attendance outcome recorded for one user at one meeting.
type Status string

const (
	StatusPresent   Status = "PRESENTE"
	StatusAbsent    Status = "AUSENTE"
	StatusLate      Status = "TARDANZA"
	StatusJustified Status = "JUSTIFICADO"
)

// Valid reports whether the status is one of the known outcomes.
func (s Status) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate, StatusJustified:
		return true
	}
	return false
}

// Meeting is a camp gathering attendance is tracked against.
type Meeting struct {
	ID          int64
	Name        string
	Description string
	ScheduledAt time.Time
	Location    string
	Mandatory   bool
	Status      MeetingStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Record is one user's attendance outcome for one meeting. A meeting
// holds at most one record per user.
type Record struct {
	ID          int64
	MeetingID   int64
	UserID      int64
	Status      Status
	Reference   uuid.UUID
	ArrivalAt   *time.Time
	DepartureAt *time.Time
	Notes       string
	RecordedBy  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Report aggregates attendance outcomes for a meeting.
type Report struct {
	MeetingID int64   `json:"meeting_id"`
	Total     int     `json:"total"`
	Present   int     `json:"present"`
	Absent    int     `json:"absent"`
	Late      int     `json:"late"`
	Justified int     `json:"justified"`
	Rate      float64 `json:"attendance_rate"`
}

var (
	// ErrInvalidStatus signals an unknown meeting or attendance status.
	ErrInvalidStatus = errors.New("attendance: invalid status")
	// ErrMeetingClosed signals a write against a cancelled meeting.
	ErrMeetingClosed = errors.New("attendance: meeting is cancelled")
)
