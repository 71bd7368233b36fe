package attendance

import "time"

// MeetingDTO is the JSON shape exposed for meetings.
type MeetingDTO struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Location    string    `json:"location"`
	Mandatory   bool      `json:"mandatory"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// RecordDTO is the JSON shape exposed for attendance records.
type RecordDTO struct {
	ID          int64      `json:"id"`
	MeetingID   int64      `json:"meeting_id"`
	UserID      int64      `json:"user_id"`
	Status      string     `json:"status"`
	Reference   string     `json:"reference"`
	ArrivalAt   *time.Time `json:"arrival_at,omitempty"`
	DepartureAt *time.Time `json:"departure_at,omitempty"`
	Notes       string     `json:"notes"`
	RecordedBy  string     `json:"recorded_by"`
	CreatedAt   time.Time  `json:"created_at"`
}

func toMeetingDTO(m Meeting) MeetingDTO {
	return MeetingDTO{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		ScheduledAt: m.ScheduledAt,
		Location:    m.Location,
		Mandatory:   m.Mandatory,
		Status:      string(m.Status),
		CreatedAt:   m.CreatedAt,
	}
}

func toMeetingDTOs(list []Meeting) []MeetingDTO {
	out := make([]MeetingDTO, len(list))
	for i, m := range list {
		out[i] = toMeetingDTO(m)
	}
	return out
}

func toRecordDTO(r Record) RecordDTO {
	return RecordDTO{
		ID:          r.ID,
		MeetingID:   r.MeetingID,
		UserID:      r.UserID,
		Status:      string(r.Status),
		Reference:   r.Reference.String(),
		ArrivalAt:   r.ArrivalAt,
		DepartureAt: r.DepartureAt,
		Notes:       r.Notes,
		RecordedBy:  r.RecordedBy,
		CreatedAt:   r.CreatedAt,
	}
}

func toRecordDTOs(list []Record) []RecordDTO {
	out := make([]RecordDTO, len(list))
	for i, r := range list {
		out[i] = toRecordDTO(r)
	}
	return out
}
