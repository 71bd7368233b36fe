package accounts

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/campassistant/campassistant/internal/authz"
	"github.com/campassistant/campassistant/internal/platform/httpx"
	"github.com/campassistant/campassistant/internal/roles"
	"github.com/campassistant/campassistant/internal/shared"
)

// Handler wires HTTP endpoints for account management.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	guard     authz.Middleware
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard authz.Middleware) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		guard:     guard,
		validator: validator.New(),
	}
}

// MountRoutes registers account routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.guard.RequireAuthenticated()).Get("/me", h.me)

	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireRole(roles.Admin, roles.Staff))
		r.Get("/", h.list)
		r.Get("/{id}", h.show)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireRole(roles.Admin))
		r.Post("/", h.create)
		r.Delete("/{id}", h.remove)
		r.Post("/{id}/roles/{role}", h.grantRole)
		r.Delete("/{id}/roles/{role}", h.revokeRole)
	})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	account, err := h.service.Get(r.Context(), principal.ID)
	if err != nil {
		h.logger.Error("load current account", slog.Any("error", err), slog.Int64("id", principal.ID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ToDTO(account))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	var (
		list []Account
		err  error
	)
	if role := r.URL.Query().Get("role"); role != "" {
		list, err = h.service.ListByRole(r.Context(), roles.Name(role))
	} else {
		list, err = h.service.List(r.Context())
	}
	if err != nil {
		h.logger.Error("list accounts", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ToDTOs(list))
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid user id")
		return
	}
	account, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ToDTO(account))
}

type createUserRequest struct {
	Username string   `json:"username" validate:"required,min=3"`
	FullName string   `json:"full_name"`
	Password string   `json:"password" validate:"required,min=8"`
	Roles    []string `json:"roles"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	roleNames := make([]roles.Name, len(req.Roles))
	for i, name := range req.Roles {
		roleNames[i] = roles.Name(name)
	}

	account, err := h.service.Register(r.Context(), RegisterInput{
		Username: req.Username,
		FullName: req.FullName,
		Password: req.Password,
		Roles:    roleNames,
	})
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		if errors.Is(err, shared.ErrDuplicate) {
			httpx.Problem(w, http.StatusConflict, "Duplicate", "username already taken")
			return
		}
		h.logger.Error("register account", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, ToDTO(account))
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid user id")
		return
	}
	principal := shared.PrincipalFromContext(r.Context())
	if err := h.service.Delete(r.Context(), principal.ID, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) grantRole(w http.ResponseWriter, r *http.Request) {
	h.mutateRole(w, r, h.service.GrantRole)
}

func (h *Handler) revokeRole(w http.ResponseWriter, r *http.Request) {
	h.mutateRole(w, r, h.service.RevokeRole)
}

func (h *Handler) mutateRole(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, actorID, userID int64, name roles.Name) error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid user id")
		return
	}
	role := roles.Name(chi.URLParam(r, "role"))
	principal := shared.PrincipalFromContext(r.Context())
	if err := op(r.Context(), principal.ID, id, role); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
