package supervision

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/campassistant/campassistant/internal/accounts"
	"github.com/campassistant/campassistant/internal/authz"
	"github.com/campassistant/campassistant/internal/platform/httpx"
	"github.com/campassistant/campassistant/internal/roles"
	"github.com/campassistant/campassistant/internal/shared"
)

// Handler wires HTTP endpoints for the supervision graph.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	accounts *accounts.Service
	guard    authz.Middleware
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, accountService *accounts.Service, guard authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, accounts: accountService, guard: guard}
}

// MountRoutes registers supervision routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireRole(roles.Admin, roles.Dirigente))
		r.Post("/dirigente/{dirigenteID}/assign/{acampanteID}", h.assign)
		r.Delete("/dirigente/{dirigenteID}/remove/{acampanteID}", h.remove)
	})

	r.With(h.guard.RequireAuthenticated()).Get("/dirigente/{dirigenteID}/campers", h.supervised)
	r.With(h.guard.RequireAuthenticated()).Get("/acampante/{acampanteID}/supervisors", h.supervisors)

	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireRole(roles.Admin, roles.Staff, roles.Dirigente))
		r.Get("/dirigentes", h.listDirigentes)
		r.Get("/acampantes", h.listAcampantes)
	})
}

func (h *Handler) assign(w http.ResponseWriter, r *http.Request) {
	dirigenteID, acampanteID, ok := h.edgeParams(w, r)
	if !ok {
		return
	}
	if !h.mayMutate(w, r, dirigenteID) {
		return
	}
	actor := shared.PrincipalFromContext(r.Context())
	added, err := h.service.Assign(r.Context(), actor.ID, dirigenteID, acampanteID)
	if err != nil {
		h.respondEdgeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"assigned": added})
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	dirigenteID, acampanteID, ok := h.edgeParams(w, r)
	if !ok {
		return
	}
	if !h.mayMutate(w, r, dirigenteID) {
		return
	}
	actor := shared.PrincipalFromContext(r.Context())
	removed, err := h.service.Remove(r.Context(), actor.ID, dirigenteID, acampanteID)
	if err != nil {
		h.respondEdgeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

func (h *Handler) supervised(w http.ResponseWriter, r *http.Request) {
	dirigenteID, ok := h.idParam(w, r, "dirigenteID")
	if !ok {
		return
	}
	if !h.mayRead(w, r, dirigenteID) {
		return
	}
	list, err := h.service.SupervisedSet(r.Context(), dirigenteID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, accounts.ToDTOs(list))
}

func (h *Handler) supervisors(w http.ResponseWriter, r *http.Request) {
	acampanteID, ok := h.idParam(w, r, "acampanteID")
	if !ok {
		return
	}
	if !h.mayRead(w, r, acampanteID) {
		return
	}
	list, err := h.service.SupervisorSet(r.Context(), acampanteID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, accounts.ToDTOs(list))
}

func (h *Handler) listDirigentes(w http.ResponseWriter, r *http.Request) {
	h.listByRole(w, r, roles.Dirigente)
}

func (h *Handler) listAcampantes(w http.ResponseWriter, r *http.Request) {
	h.listByRole(w, r, roles.Acampante)
}

func (h *Handler) listByRole(w http.ResponseWriter, r *http.Request, role roles.Name) {
	list, err := h.accounts.ListByRole(r.Context(), role)
	if err != nil {
		h.logger.Error("list accounts by role", slog.Any("error", err), slog.String("role", string(role)))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, accounts.ToDTOs(list))
}

// mayMutate allows ADMIN, or a DIRIGENTE acting on their own edges.
func (h *Handler) mayMutate(w http.ResponseWriter, r *http.Request, dirigenteID int64) bool {
	principal := shared.PrincipalFromContext(r.Context())
	if principal.HasRole(string(roles.Admin)) {
		return true
	}
	if principal.HasRole(string(roles.Dirigente)) && principal.ID == dirigenteID {
		return true
	}
	httpx.Forbidden(w)
	return false
}

// mayRead allows ADMIN and STAFF, or the subject reading their own sets.
func (h *Handler) mayRead(w http.ResponseWriter, r *http.Request, subjectID int64) bool {
	principal := shared.PrincipalFromContext(r.Context())
	if principal.ID == subjectID {
		return true
	}
	if principal.HasRole(string(roles.Admin)) || principal.HasRole(string(roles.Staff)) {
		return true
	}
	httpx.Forbidden(w)
	return false
}

func (h *Handler) edgeParams(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	dirigenteID, ok := h.idParam(w, r, "dirigenteID")
	if !ok {
		return 0, 0, false
	}
	acampanteID, ok := h.idParam(w, r, "acampanteID")
	if !ok {
		return 0, 0, false
	}
	return dirigenteID, acampanteID, true
}

func (h *Handler) idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid "+name)
		return 0, false
	}
	return id, true
}

func (h *Handler) respondEdgeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrSelfSupervision):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid Edge", "an account cannot supervise itself")
	case errors.Is(err, ErrInvalidRole):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid Edge", err.Error())
	default:
		httpx.RespondError(w, err)
	}
}
