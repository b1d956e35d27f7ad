package scorecards

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/calibra-qa/calibra/internal/platform/httpx"
	"github.com/calibra-qa/calibra/internal/shared"
)

// Handler exposes scorecard management over JSON.
type Handler struct {
	logger   *slog.Logger
	store    Store
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, store Store) *Handler {
	return &Handler{logger: logger, store: store, validate: validator.New()}
}

// MountRoutes registers scorecard routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
}

func (h *Handler) fail(w http.ResponseWriter, action string, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrDuplicate):
		httpx.Problem(w, http.StatusConflict, "Conflict", shared.UserSafeMessage(err))
	default:
		h.logger.Error(action, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", shared.UserSafeMessage(err))
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	cards, err := h.store.List(r.Context())
	if err != nil {
		h.fail(w, "list scorecards", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"scorecards": cards})
}

type scorecardRequest struct {
	Name        string   `json:"name" validate:"required"`
	Description string   `json:"description"`
	MaxScore    *float64 `json:"max_score" validate:"required,gt=0"`
	IsActive    *bool    `json:"is_active"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req scorecardRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "Invalid JSON body.")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "name and a positive max_score are required.")
		return
	}
	created, err := h.store.Create(r.Context(), Scorecard{
		Name:        req.Name,
		Description: req.Description,
		MaxScore:    *req.MaxScore,
		IsActive:    req.IsActive == nil || *req.IsActive,
	})
	if err != nil {
		h.fail(w, "create scorecard", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "Invalid scorecard ID.")
		return
	}
	card, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get scorecard", err)
		return
	}
	httpx.JSON(w, http.StatusOK, card)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "Invalid scorecard ID.")
		return
	}
	var req scorecardRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "Invalid JSON body.")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "name and a positive max_score are required.")
		return
	}
	updated, err := h.store.Update(r.Context(), Scorecard{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		MaxScore:    *req.MaxScore,
		IsActive:    req.IsActive == nil || *req.IsActive,
	})
	if err != nil {
		h.fail(w, "update scorecard", err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "Invalid scorecard ID.")
		return
	}
	if err := h.store.Delete(r.Context(), id); err != nil {
		h.fail(w, "delete scorecard", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
