package roles

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sentinel-cyber/portal/internal/platform/httpx"
	"github.com/sentinel-cyber/portal/internal/rbac"
	"github.com/sentinel-cyber/portal/internal/shared"
)

// PermissionsHandler manages the permission catalog.
type PermissionsHandler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *PermissionsHandler {
	return &PermissionsHandler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.CategorySystem, rbac.ActionRead, shared.ResourcePermissions))
		r.Get("/", h.listPermissions)
		r.Post("/merge", h.mergePermissions)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.CategorySystem, rbac.ActionCreate, shared.ResourcePermissions))
		r.Post("/", h.createPermission)
	})
}

func (h *PermissionsHandler) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.ListPermissions(r.Context())
	if err != nil {
		h.logger.Error("list permissions failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	category := rbac.Category(r.URL.Query().Get("category"))
	if category != "" {
		filtered := perms[:0:0]
		for _, p := range perms {
			if p.Category == category {
				filtered = append(filtered, p)
			}
		}
		perms = filtered
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": perms})
}

func (h *PermissionsHandler) createPermission(w http.ResponseWriter, r *http.Request) {
	var in CreatePermissionInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.service.CreatePermission(r.Context(), in)
	if err != nil {
		if !isClientError(err) {
			h.logger.Error("create permission failed", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

type mergeRequest struct {
	PermissionIDs []string          `json:"permissionIds"`
	Permissions   []rbac.Permission `json:"permissions"`
}

// mergePermissions collapses either catalog ids or inline permissions.
func (h *PermissionsHandler) mergePermissions(w http.ResponseWriter, r *http.Request) {
	var req mergeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	perms := req.Permissions
	if len(req.PermissionIDs) > 0 {
		resolved, err := h.service.ResolvePermissions(r.Context(), req.PermissionIDs)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		perms = append(resolved, perms...)
	}
	merged := rbac.MergePermissions(perms)
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": merged})
}
