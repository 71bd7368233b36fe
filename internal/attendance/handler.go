package attendance

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/campassistant/campassistant/internal/authz"
	"github.com/campassistant/campassistant/internal/platform/httpx"
	"github.com/campassistant/campassistant/internal/roles"
	"github.com/campassistant/campassistant/internal/shared"
)

// Handler wires HTTP endpoints for meetings and attendance records.
// Mutations on a target user's records pass the authorization gate before
// reaching the service.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	gate      *authz.Gate
	guard     authz.Middleware
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, gate *authz.Gate, guard authz.Middleware) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		gate:      gate,
		guard:     guard,
		validator: validator.New(),
	}
}

// MountMeetingRoutes registers meeting routes on the provided router.
func (h *Handler) MountMeetingRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAuthenticated())
		r.Get("/", h.listMeetings)
		r.Get("/{id}", h.showMeeting)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireRole(roles.Admin, roles.Staff, roles.Dirigente))
		r.Post("/", h.createMeeting)
		r.Patch("/{id}/status", h.setMeetingStatus)
		r.Get("/{id}/report", h.report)
	})

	r.With(h.guard.RequireRole(roles.Admin, roles.Staff)).Get("/{id}/records", h.meetingRecords)
	r.With(h.guard.RequireRole(roles.Admin)).Delete("/{id}", h.deleteMeeting)
}

// MountRecordRoutes registers attendance-record routes on the provided
// router.
func (h *Handler) MountRecordRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAuthenticated())
		r.Post("/", h.register)
		r.Post("/bulk", h.registerBatch)
		r.Get("/me", h.myRecords)
		r.Get("/user/{id}", h.userRecords)
		r.Get("/{id}", h.showRecord)
		r.Patch("/{id}", h.updateRecord)
		r.Delete("/{id}", h.deleteRecord)
	})
}

func (h *Handler) listMeetings(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListMeetings(r.Context())
	if err != nil {
		h.logger.Error("list meetings", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toMeetingDTOs(list))
}

func (h *Handler) showMeeting(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	meeting, err := h.service.GetMeeting(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toMeetingDTO(meeting))
}

type createMeetingRequest struct {
	Name        string    `json:"name" validate:"required,min=2"`
	Description string    `json:"description"`
	ScheduledAt time.Time `json:"scheduled_at" validate:"required"`
	Location    string    `json:"location"`
	Mandatory   bool      `json:"mandatory"`
}

func (h *Handler) createMeeting(w http.ResponseWriter, r *http.Request) {
	var req createMeetingRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	meeting, err := h.service.CreateMeeting(r.Context(), MeetingInput{
		Name:        req.Name,
		Description: req.Description,
		ScheduledAt: req.ScheduledAt,
		Location:    req.Location,
		Mandatory:   req.Mandatory,
	})
	if err != nil {
		h.logger.Error("create meeting", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toMeetingDTO(meeting))
}

type meetingStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

func (h *Handler) setMeetingStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	var req meetingStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.service.SetMeetingStatus(r.Context(), id, MeetingStatus(req.Status)); err != nil {
		if errors.Is(err, ErrInvalidStatus) {
			httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid Status", err.Error())
			return
		}
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteMeeting(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteMeeting(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) report(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	report, err := h.service.Report(r.Context(), id)
	if err != nil {
		h.logger.Error("meeting report", slog.Any("error", err), slog.Int64("meeting", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) meetingRecords(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	list, err := h.service.RecordsForMeeting(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRecordDTOs(list))
}

type registerRequest struct {
	MeetingID   int64      `json:"meeting_id" validate:"required"`
	UserID      int64      `json:"user_id" validate:"required"`
	Status      string     `json:"status" validate:"required"`
	ArrivalAt   *time.Time `json:"arrival_at"`
	DepartureAt *time.Time `json:"departure_at"`
	Notes       string     `json:"notes"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	principal := shared.PrincipalFromContext(r.Context())
	allowed, err := h.gate.CanActOn(r.Context(), principal, req.UserID)
	if err != nil {
		h.logger.Error("authorize attendance register", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if !allowed {
		httpx.Forbidden(w)
		return
	}

	rec, err := h.service.Register(r.Context(), principal.Username, RegisterInput{
		MeetingID:   req.MeetingID,
		UserID:      req.UserID,
		Status:      Status(req.Status),
		ArrivalAt:   req.ArrivalAt,
		DepartureAt: req.DepartureAt,
		Notes:       req.Notes,
	})
	if err != nil {
		h.respondWriteError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toRecordDTO(rec))
}

type batchEntry struct {
	UserID      int64      `json:"user_id" validate:"required"`
	Status      string     `json:"status" validate:"required"`
	ArrivalAt   *time.Time `json:"arrival_at"`
	DepartureAt *time.Time `json:"departure_at"`
	Notes       string     `json:"notes"`
}

type registerBatchRequest struct {
	MeetingID int64        `json:"meeting_id" validate:"required"`
	Entries   []batchEntry `json:"entries" validate:"required,dive"`
}

func (h *Handler) registerBatch(w http.ResponseWriter, r *http.Request) {
	var req registerBatchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	targets := make([]int64, len(req.Entries))
	for i, e := range req.Entries {
		targets[i] = e.UserID
	}

	principal := shared.PrincipalFromContext(r.Context())
	allowed, err := h.gate.CanActOnAll(r.Context(), principal, targets)
	if err != nil {
		h.logger.Error("authorize attendance batch", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if !allowed {
		httpx.Forbidden(w)
		return
	}

	entries := make([]RegisterInput, len(req.Entries))
	for i, e := range req.Entries {
		entries[i] = RegisterInput{
			MeetingID:   req.MeetingID,
			UserID:      e.UserID,
			Status:      Status(e.Status),
			ArrivalAt:   e.ArrivalAt,
			DepartureAt: e.DepartureAt,
			Notes:       e.Notes,
		}
	}
	recs, err := h.service.RegisterBatch(r.Context(), principal.Username, req.MeetingID, entries)
	if err != nil {
		h.respondWriteError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toRecordDTOs(recs))
}

func (h *Handler) myRecords(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	list, err := h.service.RecordsForUser(r.Context(), principal.ID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRecordDTOs(list))
}

func (h *Handler) userRecords(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.idParam(w, r)
	if !ok {
		return
	}
	principal := shared.PrincipalFromContext(r.Context())
	if principal.ID != userID {
		allowed, err := h.gate.CanActOn(r.Context(), principal, userID)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		if !allowed {
			httpx.Forbidden(w)
			return
		}
	}
	list, err := h.service.RecordsForUser(r.Context(), userID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRecordDTOs(list))
}

func (h *Handler) showRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	if !h.authorizeRecord(w, r, id, true) {
		return
	}
	rec, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRecordDTO(rec))
}

type updateRecordRequest struct {
	Status      string     `json:"status" validate:"required"`
	ArrivalAt   *time.Time `json:"arrival_at"`
	DepartureAt *time.Time `json:"departure_at"`
	Notes       string     `json:"notes"`
}

func (h *Handler) updateRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	var req updateRecordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if !h.authorizeRecord(w, r, id, false) {
		return
	}
	rec, err := h.service.Update(r.Context(), id, UpdateInput{
		Status:      Status(req.Status),
		ArrivalAt:   req.ArrivalAt,
		DepartureAt: req.DepartureAt,
		Notes:       req.Notes,
	})
	if err != nil {
		h.respondWriteError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRecordDTO(rec))
}

func (h *Handler) deleteRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	if !h.authorizeRecord(w, r, id, false) {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// authorizeRecord decides access to an id-addressed record. Privileged
// access goes through the gate; with allowSelf the record's owner may also
// pass. A principal that is neither gets a generic denial whether or not
// the record exists.
func (h *Handler) authorizeRecord(w http.ResponseWriter, r *http.Request, recordID int64, allowSelf bool) bool {
	principal := shared.PrincipalFromContext(r.Context())
	allowed, err := h.gate.CanActOnResource(r.Context(), principal, recordID, h.service.OwnerOf)
	if err != nil {
		h.logger.Error("authorize attendance record", slog.Any("error", err), slog.Int64("record", recordID))
		httpx.RespondError(w, err)
		return false
	}
	if allowed {
		return true
	}
	if allowSelf {
		ownerID, err := h.service.OwnerOf(r.Context(), recordID)
		if err == nil && ownerID == principal.ID {
			return true
		}
	}
	httpx.Forbidden(w)
	return false
}

func (h *Handler) respondWriteError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidStatus):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid Status", err.Error())
	case errors.Is(err, ErrMeetingClosed):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Meeting Cancelled", "attendance cannot be recorded for a cancelled meeting")
	case errors.Is(err, shared.ErrDuplicate):
		httpx.Problem(w, http.StatusConflict, "Duplicate", "attendance already recorded for this user and meeting")
	default:
		httpx.RespondError(w, err)
	}
}

func (h *Handler) idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return 0, false
	}
	return id, true
}
