package users

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sentinel-cyber/portal/internal/platform/httpx"
	"github.com/sentinel-cyber/portal/internal/rbac"
	"github.com/sentinel-cyber/portal/internal/shared"
)

// Handler manages user management endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	resolver rbac.Authorizer
	rbac     rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, resolver rbac.Authorizer, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, resolver: resolver, rbac: rbac}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.CategoryUsers, rbac.ActionRead, shared.ResourceUsers))
		r.Get("/", h.listUsers)
		r.Get("/{id}", h.getUser)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(
			rbac.Need(rbac.CategoryUsers, rbac.ActionRead, shared.ResourceUsers),
			rbac.Need(rbac.CategorySecurity, rbac.ActionRead, shared.ResourceAccess),
		))
		r.Get("/{id}/permissions", h.effectivePermissions)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.CategoryUsers, rbac.ActionCreate, shared.ResourceUsers))
		r.Post("/", h.createUser)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.CategoryUsers, rbac.ActionUpdate, shared.ResourceUsers))
		r.Put("/{id}/role", h.assignRole)
		r.Put("/{id}/permissions", h.setPermissions)
		r.Put("/{id}/active", h.setActive)
	})
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.fail(w, "list users failed", err)
		return
	}
	page := shared.PaginationFromQuery(r.URL.Query(), len(users))
	start, end := page.Bounds()
	httpx.JSON(w, http.StatusOK, map[string]any{"users": users[start:end], "pagination": page})
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "get user failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, u)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var in CreateUserInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	u, err := h.service.CreateUser(r.Context(), in)
	if err != nil {
		h.fail(w, "create user failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, u)
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	var in AssignRoleInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	u, err := h.service.AssignRole(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, "assign role failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, u)
}

func (h *Handler) setPermissions(w http.ResponseWriter, r *http.Request) {
	var in SetPermissionsInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	u, err := h.service.SetPermissions(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, "set user permissions failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, u)
}

type activeRequest struct {
	Active bool `json:"active"`
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request) {
	var in activeRequest
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	u, err := h.service.SetActive(r.Context(), chi.URLParam(r, "id"), in.Active)
	if err != nil {
		h.fail(w, "set user active failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, u)
}

func (h *Handler) effectivePermissions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.service.GetUser(r.Context(), id); err != nil {
		h.fail(w, "get user failed", err)
		return
	}
	perms, err := h.resolver.EffectivePermissions(r.Context(), id)
	if err != nil {
		h.fail(w, "resolve user permissions failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"userId": id, "permissions": perms})
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if errors.Is(err, httpx.ErrNotFound) || errors.Is(err, httpx.ErrValidation) || errors.Is(err, httpx.ErrDuplicate) {
		h.logger.Debug(msg, slog.Any("error", err))
	} else {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
