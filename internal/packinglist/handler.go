package packinglist

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/campassistant/campassistant/internal/authz"
	"github.com/campassistant/campassistant/internal/platform/httpx"
	"github.com/campassistant/campassistant/internal/shared"
)

// Handler wires HTTP endpoints for packing lists. Every user manages their
// own list; access to another user's list goes through the authorization
// gate.
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

// MountRoutes registers packing-list routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAuthenticated())
		r.Get("/me", h.showMine)
		r.Put("/me", h.saveMine)
		r.Get("/user/{id}", h.showForUser)
		r.Put("/user/{id}", h.saveForUser)
	})
}

func (h *Handler) showMine(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	h.respondList(w, r, principal.ID)
}

func (h *Handler) saveMine(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	h.save(w, r, principal.ID)
}

func (h *Handler) showForUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authorizeTarget(w, r)
	if !ok {
		return
	}
	h.respondList(w, r, userID)
}

func (h *Handler) saveForUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authorizeTarget(w, r)
	if !ok {
		return
	}
	h.save(w, r, userID)
}

type saveRequest struct {
	Categories []categoryPayload `json:"categories" validate:"required,dive"`
}

type categoryPayload struct {
	Title string        `json:"title" validate:"required"`
	Items []itemPayload `json:"items" validate:"dive"`
}

type itemPayload struct {
	Text    string `json:"text" validate:"required"`
	Checked bool   `json:"checked"`
}

func (h *Handler) save(w http.ResponseWriter, r *http.Request, userID int64) {
	var req saveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	categories := make([]Category, len(req.Categories))
	for i, c := range req.Categories {
		items := make([]Item, len(c.Items))
		for j, it := range c.Items {
			items[j] = Item{Text: it.Text, Checked: it.Checked}
		}
		categories[i] = Category{Title: c.Title, Items: items}
	}

	list, err := h.service.Save(r.Context(), userID, categories)
	if err != nil {
		h.logger.Error("save packing list", slog.Any("error", err), slog.Int64("user", userID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) respondList(w http.ResponseWriter, r *http.Request, userID int64) {
	list, err := h.service.Get(r.Context(), userID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

// authorizeTarget parses the target user id and allows self-access or a
// gate pass.
func (h *Handler) authorizeTarget(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid user id")
		return 0, false
	}
	principal := shared.PrincipalFromContext(r.Context())
	if principal.ID == userID {
		return userID, true
	}
	allowed, err := h.gate.CanActOn(r.Context(), principal, userID)
	if err != nil {
		h.logger.Error("authorize packing list access", slog.Any("error", err))
		httpx.RespondError(w, err)
		return 0, false
	}
	if !allowed {
		httpx.Forbidden(w)
		return 0, false
	}
	return userID, true
}
