package roles

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sentinel-cyber/portal/internal/platform/httpx"
	"github.com/sentinel-cyber/portal/internal/rbac"
	"github.com/sentinel-cyber/portal/internal/shared"
)

// Handler manages role management endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.CategorySystem, rbac.ActionRead, shared.ResourceRoles))
		r.Get("/", h.listRoles)
		r.Get("/{id}", h.getRole)
		r.Get("/{id}/effective", h.effectivePermissions)
		r.Post("/validate", h.validateRole)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.CategorySystem, rbac.ActionCreate, shared.ResourceRoles))
		r.Post("/", h.createRole)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.CategorySystem, rbac.ActionUpdate, shared.ResourceRoles))
		r.Put("/{id}", h.updateRole)
		r.Post("/{id}/permissions", h.assignPermissions)
		r.Delete("/{id}/permissions", h.revokePermissions)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.CategorySystem, rbac.ActionDelete, shared.ResourceRoles))
		r.Delete("/{id}", h.deleteRole)
	})
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := RoleListFilters{SortBy: q.Get("sort"), SortDir: q.Get("dir")}
	if raw := q.Get("baseRole"); raw != "" {
		base, ok := rbac.ParseBaseRole(raw)
		if !ok {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unknown base role "+raw)
			return
		}
		filters.BaseRole = base
	}
	roles, err := h.service.ListRoles(r.Context(), filters)
	if err != nil {
		h.fail(w, "list roles failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": roles})
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	role, err := h.service.GetRole(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "get role failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var in CreateRoleInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	role, err := h.service.CreateRole(r.Context(), in)
	if err != nil {
		h.fail(w, "create role failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, role)
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	var in UpdateRoleInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	role, err := h.service.UpdateRole(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, "update role failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteRole(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, "delete role failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) validateRole(w http.ResponseWriter, r *http.Request) {
	var in CreateRoleInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	problems, err := h.service.ValidateRole(r.Context(), in)
	if err != nil {
		h.fail(w, "validate role failed", err)
		return
	}
	if problems == nil {
		problems = []string{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"valid": len(problems) == 0, "errors": problems})
}

func (h *Handler) assignPermissions(w http.ResponseWriter, r *http.Request) {
	h.changePermissions(w, r, h.service.AssignPermissions)
}

func (h *Handler) revokePermissions(w http.ResponseWriter, r *http.Request) {
	h.changePermissions(w, r, h.service.RevokePermissions)
}

func (h *Handler) changePermissions(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, roleID string, ids []string) (rbac.Role, error)) {
	var in PermissionIDsInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.ValidateStruct(h.service.validate, in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	role, err := apply(r.Context(), chi.URLParam(r, "id"), in.PermissionIDs)
	if err != nil {
		h.fail(w, "change role permissions failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

func (h *Handler) effectivePermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.EffectivePermissions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "effective permissions failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": perms})
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if isClientError(err) {
		h.logger.Debug(msg, slog.Any("error", err))
	} else {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func isClientError(err error) bool {
	return errors.Is(err, httpx.ErrNotFound) || errors.Is(err, httpx.ErrValidation) || errors.Is(err, httpx.ErrDuplicate)
}
