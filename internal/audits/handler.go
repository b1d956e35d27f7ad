package audits

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

// Handler exposes the audit workflow over JSON.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers audit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Post("/{id}/acknowledge", h.acknowledge)
	r.Post("/{id}/reversal", h.requestReversal)
	r.Post("/{id}/reversal/respond", h.respondReversal)
	r.Post("/{id}/rating", h.rate)
	r.Get("/{id}/permissions", h.permissions)
	r.Post("/permissions/preview", h.previewPermissions)
}

func (h *Handler) caller(r *http.Request) (Caller, bool) {
	sc := shared.CallerFromContext(r.Context())
	if sc == nil {
		return Caller{}, false
	}
	return NewCaller(sc.Email, sc.Role), true
}

func (h *Handler) auditID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

// fail maps service errors onto problem responses.
func (h *Handler) fail(w http.ResponseWriter, action string, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", shared.UserSafeMessage(err))
	case errors.Is(err, ErrNotAllowed):
		httpx.Forbidden(w, ErrNotAllowed.Error())
	default:
		h.logger.Error(action, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", shared.UserSafeMessage(err))
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(r)
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "Authentication required.")
		return
	}
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	filter := ListFilter{
		AuditorEmail:  q.Get("auditor"),
		EmployeeEmail: q.Get("employee"),
		Status:        q.Get("status"),
		Page:          page,
		PerPage:       perPage,
	}
	records, pagination, err := h.service.List(r.Context(), caller, filter)
	if err != nil {
		h.fail(w, "list audits", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"audits": records, "pagination": pagination})
}

type createRequest struct {
	Reference     string   `json:"reference"`
	EmployeeEmail string   `json:"employee_email" validate:"required,email"`
	ScorecardID   *int64   `json:"scorecard_id"`
	Score         *float64 `json:"score"`
	Summary       string   `json:"summary"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(r)
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "Authentication required.")
		return
	}
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "Invalid JSON body.")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "A valid employee_email is required.")
		return
	}
	created, err := h.service.Create(r.Context(), caller, CreateInput{
		Reference:     req.Reference,
		EmployeeEmail: req.EmployeeEmail,
		ScorecardID:   req.ScorecardID,
		Score:         req.Score,
		Summary:       req.Summary,
	})
	if err != nil {
		h.fail(w, "create audit", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(r)
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "Authentication required.")
		return
	}
	id, ok := h.auditID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "Invalid audit ID.")
		return
	}
	rec, perms, err := h.service.Get(r.Context(), caller, id)
	if err != nil {
		h.fail(w, "get audit", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"audit": rec, "permissions": perms})
}

type updateRequest struct {
	ScorecardID *int64   `json:"scorecard_id"`
	Score       *float64 `json:"score"`
	Summary     string   `json:"summary"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(r)
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "Authentication required.")
		return
	}
	id, ok := h.auditID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "Invalid audit ID.")
		return
	}
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "Invalid JSON body.")
		return
	}
	updated, err := h.service.Update(r.Context(), caller, id, UpdateInput{
		ScorecardID: req.ScorecardID,
		Score:       req.Score,
		Summary:     req.Summary,
	})
	if err != nil {
		h.fail(w, "update audit", err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) acknowledge(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(r)
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "Authentication required.")
		return
	}
	id, ok := h.auditID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "Invalid audit ID.")
		return
	}
	updated, err := h.service.Acknowledge(r.Context(), caller, id)
	if err != nil {
		h.fail(w, "acknowledge audit", err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

type reversalRequest struct {
	Reason string `json:"reason" validate:"required"`
}

func (h *Handler) requestReversal(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(r)
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "Authentication required.")
		return
	}
	id, ok := h.auditID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "Invalid audit ID.")
		return
	}
	var req reversalRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "Invalid JSON body.")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "A reversal reason is required.")
		return
	}
	updated, err := h.service.RequestReversal(r.Context(), caller, id, req.Reason)
	if err != nil {
		h.fail(w, "request reversal", err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

type reversalResponseRequest struct {
	Approved *bool  `json:"approved" validate:"required"`
	Response string `json:"response"`
}

func (h *Handler) respondReversal(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(r)
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "Authentication required.")
		return
	}
	id, ok := h.auditID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "Invalid audit ID.")
		return
	}
	var req reversalResponseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "Invalid JSON body.")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "An approved flag is required.")
		return
	}
	updated, err := h.service.RespondReversal(r.Context(), caller, id, *req.Approved, req.Response)
	if err != nil {
		h.fail(w, "respond reversal", err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

type ratingRequest struct {
	Rating *float64 `json:"rating" validate:"required,gte=1,lte=5"`
}

func (h *Handler) rate(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(r)
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "Authentication required.")
		return
	}
	id, ok := h.auditID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "Invalid audit ID.")
		return
	}
	var req ratingRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "Invalid JSON body.")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "A rating between 1 and 5 is required.")
		return
	}
	updated, err := h.service.Rate(r.Context(), caller, id, *req.Rating)
	if err != nil {
		h.fail(w, "rate audit", err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) permissions(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(r)
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "Authentication required.")
		return
	}
	id, ok := h.auditID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "Invalid audit ID.")
		return
	}
	perms, err := h.service.PermissionsFor(r.Context(), caller, id)
	if err != nil {
		h.fail(w, "audit permissions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, perms)
}

// previewPermissions derives a permission set from a caller-supplied record
// shape without touching storage. Legacy clients use it to gate their UI
// against locally held records in either field-naming convention.
func (h *Handler) previewPermissions(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(r)
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "Authentication required.")
		return
	}
	var raw map[string]any
	if err := httpx.DecodeJSON(r, &raw); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "Invalid JSON body.")
		return
	}
	httpx.JSON(w, http.StatusOK, Permissions(NormalizeRecord(raw), caller))
}
