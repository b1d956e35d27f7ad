package schedules

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/calibra-qa/calibra/internal/platform/httpx"
	"github.com/calibra-qa/calibra/internal/shared"
)

// Handler exposes schedule management over JSON.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers schedule routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Post("/{id}/complete", h.complete)
	r.Post("/{id}/cancel", h.cancel)
}

func (h *Handler) fail(w http.ResponseWriter, action string, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", shared.UserSafeMessage(err))
	case errors.Is(err, ErrPastSchedule):
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", ErrPastSchedule.Error())
	default:
		h.logger.Error(action, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", shared.UserSafeMessage(err))
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	scheds, err := h.service.ListUpcoming(r.Context(), r.URL.Query().Get("auditor"))
	if err != nil {
		h.fail(w, "list schedules", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"schedules": scheds})
}

type createRequest struct {
	AuditorEmail  string    `json:"auditor_email" validate:"required,email"`
	EmployeeEmail string    `json:"employee_email" validate:"required,email"`
	ScheduledFor  time.Time `json:"scheduled_for" validate:"required"`
	Notes         string    `json:"notes"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "Invalid JSON body.")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "auditor_email, employee_email and scheduled_for are required.")
		return
	}
	created, err := h.service.Create(r.Context(), Schedule{
		AuditorEmail:  req.AuditorEmail,
		EmployeeEmail: req.EmployeeEmail,
		ScheduledFor:  req.ScheduledFor,
		Notes:         req.Notes,
	})
	if err != nil {
		h.fail(w, "create schedule", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "Invalid schedule ID.")
		return
	}
	sched, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get schedule", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sched)
}

func (h *Handler) complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Complete, "complete schedule")
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Cancel, "cancel schedule")
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id int64) (Schedule, error), action string) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "Invalid schedule ID.")
		return
	}
	sched, err := fn(r.Context(), id)
	if err != nil {
		h.fail(w, action, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sched)
}
