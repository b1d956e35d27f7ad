package access

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

// Handler exposes permission summaries, ad-hoc checks and rule management.
// The rule management routes sit behind the access-rules hard gate.
type Handler struct {
	logger   *slog.Logger
	resolver *Resolver
	admin    RuleAdmin
	audit    *shared.AuditLogger
	mw       Middleware
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, resolver *Resolver, admin RuleAdmin, audit *shared.AuditLogger, mw Middleware) *Handler {
	return &Handler{
		logger:   logger,
		resolver: resolver,
		admin:    admin,
		audit:    audit,
		mw:       mw,
		validate: validator.New(),
	}
}

// MountRoutes registers access routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/me", h.myPermissions)
	r.Post("/check", h.check)
	r.Group(func(r chi.Router) {
		r.Use(h.mw.Require("access-rules", RuleTypeAPIEndpoint))
		r.Get("/rules", h.listRoleRules)
		r.Post("/rules", h.createRoleRule)
		r.Put("/rules/{id}", h.updateRoleRule)
		r.Delete("/rules/{id}", h.deleteRoleRule)
		r.Get("/overrides", h.listIndividualRules)
		r.Post("/overrides", h.createIndividualRule)
		r.Delete("/overrides/{id}", h.deleteIndividualRule)
	})
}

func (h *Handler) myPermissions(w http.ResponseWriter, r *http.Request) {
	caller := shared.CallerFromContext(r.Context())
	if caller == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "Authentication required.")
		return
	}
	summary, err := h.resolver.UserPermissions(r.Context(), caller.Email, caller.Role)
	if err != nil {
		h.logger.Error("user permissions", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", shared.UserSafeMessage(err))
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

type checkRequest struct {
	Resources []Resource `json:"resources" validate:"required,min=1,dive"`
}

type checkResponse struct {
	Results map[string]CheckResult `json:"results"`
	Any     bool                   `json:"any"`
	All     bool                   `json:"all"`
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	caller := shared.CallerFromContext(r.Context())
	if caller == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "Authentication required.")
		return
	}
	var req checkRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "Invalid JSON body.")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "At least one resource is required.")
		return
	}
	results := h.resolver.CheckAll(r.Context(), caller.Email, caller.Role, req.Resources)
	resp := checkResponse{Results: results, All: true}
	for _, result := range results {
		if result.HasAccess {
			resp.Any = true
		} else {
			resp.All = false
		}
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) listRoleRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.admin.ListRoleRules(r.Context())
	if err != nil {
		h.logger.Error("list role rules", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", shared.UserSafeMessage(err))
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rules": rules})
}

type roleRuleRequest struct {
	ResourceName string   `json:"resource_name" validate:"required"`
	RuleType     RuleType `json:"rule_type" validate:"required,oneof=page feature api_endpoint action"`
	AllowedRoles []string `json:"allowed_roles"`
	MinRoleLevel string   `json:"min_role_level"`
	IsActive     *bool    `json:"is_active"`
}

func (h *Handler) createRoleRule(w http.ResponseWriter, r *http.Request) {
	var req roleRuleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "Invalid JSON body.")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "resource_name and a valid rule_type are required.")
		return
	}
	rule := AccessRule{
		ResourceName: req.ResourceName,
		RuleType:     req.RuleType,
		AllowedRoles: req.AllowedRoles,
		MinRoleLevel: req.MinRoleLevel,
		IsActive:     req.IsActive == nil || *req.IsActive,
	}
	created, err := h.admin.CreateRoleRule(r.Context(), rule)
	if err != nil {
		if errors.Is(err, shared.ErrDuplicate) {
			httpx.Problem(w, http.StatusConflict, "Conflict", shared.UserSafeMessage(err))
			return
		}
		h.logger.Error("create role rule", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", shared.UserSafeMessage(err))
		return
	}
	h.invalidateAndLog(r, "access_rule.create", strconv.FormatInt(created.ID, 10), "")
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) updateRoleRule(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "Invalid rule ID.")
		return
	}
	var req roleRuleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "Invalid JSON body.")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "resource_name and a valid rule_type are required.")
		return
	}
	rule := AccessRule{
		ID:           id,
		ResourceName: req.ResourceName,
		RuleType:     req.RuleType,
		AllowedRoles: req.AllowedRoles,
		MinRoleLevel: req.MinRoleLevel,
		IsActive:     req.IsActive == nil || *req.IsActive,
	}
	updated, err := h.admin.UpdateRoleRule(r.Context(), rule)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", shared.UserSafeMessage(err))
			return
		}
		h.logger.Error("update role rule", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", shared.UserSafeMessage(err))
		return
	}
	h.invalidateAndLog(r, "access_rule.update", strconv.FormatInt(id, 10), "")
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) deleteRoleRule(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "Invalid rule ID.")
		return
	}
	if err := h.admin.DeleteRoleRule(r.Context(), id); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", shared.UserSafeMessage(err))
			return
		}
		h.logger.Error("delete role rule", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", shared.UserSafeMessage(err))
		return
	}
	h.invalidateAndLog(r, "access_rule.delete", strconv.FormatInt(id, 10), "")
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) listIndividualRules(w http.ResponseWriter, r *http.Request) {
	email := NormalizeEmail(r.URL.Query().Get("email"))
	rules, err := h.admin.ListIndividualRules(r.Context(), email)
	if err != nil {
		h.logger.Error("list individual rules", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", shared.UserSafeMessage(err))
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rules": rules})
}

type individualRuleRequest struct {
	UserEmail    string     `json:"user_email" validate:"required,email"`
	ResourceName string     `json:"resource_name" validate:"required"`
	RuleType     RuleType   `json:"rule_type" validate:"required,oneof=page feature api_endpoint action"`
	AccessType   AccessType `json:"access_type" validate:"required,oneof=allow deny"`
	IsActive     *bool      `json:"is_active"`
}

func (h *Handler) createIndividualRule(w http.ResponseWriter, r *http.Request) {
	var req individualRuleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "Invalid JSON body.")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "user_email, resource_name, rule_type and access_type are required.")
		return
	}
	rule := IndividualRule{
		UserEmail:    NormalizeEmail(req.UserEmail),
		ResourceName: req.ResourceName,
		RuleType:     req.RuleType,
		AccessType:   req.AccessType,
		IsActive:     req.IsActive == nil || *req.IsActive,
	}
	created, err := h.admin.CreateIndividualRule(r.Context(), rule)
	if err != nil {
		if errors.Is(err, shared.ErrDuplicate) {
			httpx.Problem(w, http.StatusConflict, "Conflict", shared.UserSafeMessage(err))
			return
		}
		h.logger.Error("create individual rule", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", shared.UserSafeMessage(err))
		return
	}
	h.invalidateAndLog(r, "access_override.create", strconv.FormatInt(created.ID, 10), created.UserEmail)
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) deleteIndividualRule(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "Invalid rule ID.")
		return
	}
	if err := h.admin.DeleteIndividualRule(r.Context(), id); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", shared.UserSafeMessage(err))
			return
		}
		h.logger.Error("delete individual rule", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", shared.UserSafeMessage(err))
		return
	}
	h.invalidateAndLog(r, "access_override.delete", strconv.FormatInt(id, 10), "")
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// invalidateAndLog clears the affected cache scope and records the mutation.
// Rule edits for a known user clear only that user's entries; anything else
// clears the whole cache.
func (h *Handler) invalidateAndLog(r *http.Request, action, entityID, userEmail string) {
	if userEmail != "" {
		h.resolver.ClearUserCache(userEmail)
	} else {
		h.resolver.ClearCache()
	}
	actor := ""
	if caller := shared.CallerFromContext(r.Context()); caller != nil {
		actor = caller.Email
	}
	if h.audit != nil {
		if err := h.audit.Record(r.Context(), shared.AuditLog{
			ActorEmail: actor,
			Action:     action,
			Entity:     "access_rules",
			EntityID:   entityID,
		}); err != nil {
			h.logger.Warn("audit log", slog.Any("error", err))
		}
	}
}
