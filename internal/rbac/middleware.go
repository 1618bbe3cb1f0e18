package rbac

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sentinel-cyber/portal/internal/platform/httpx"
	"github.com/sentinel-cyber/portal/internal/shared"
)

// Requirement names one category/action/resource grant an endpoint needs.
type Requirement struct {
	Category Category
	Action   Action
	Resource string
}

// Need builds a Requirement.
func Need(category Category, action Action, resource string) Requirement {
	return Requirement{Category: category, Action: action, Resource: resource}
}

func (r Requirement) String() string {
	return fmt.Sprintf("%s:%s:%s", r.Category, r.Action, r.Resource)
}

// Authorizer answers permission questions for a user.
type Authorizer interface {
	EffectivePermissions(ctx context.Context, userID string) ([]Permission, error)
	Can(ctx context.Context, userID string, category Category, action Action, resource string) (bool, error)
}

// Middleware wires RBAC authorization helpers for HTTP handlers.
type Middleware struct {
	Service Authorizer
	Logger  *slog.Logger
}

// RequireAny ensures the current user holds at least one of the requirements.
func (m Middleware) RequireAny(reqs ...Requirement) func(http.Handler) http.Handler {
	return m.require("rbac require any", reqs, func(granted []Permission) bool {
		for _, r := range reqs {
			if Grants(granted, r.Category, r.Action, r.Resource) {
				return true
			}
		}
		return false
	})
}

// RequireAll ensures the current user holds every requirement.
func (m Middleware) RequireAll(reqs ...Requirement) func(http.Handler) http.Handler {
	return m.require("rbac require all", reqs, func(granted []Permission) bool {
		for _, r := range reqs {
			if !Grants(granted, r.Category, r.Action, r.Resource) {
				return false
			}
		}
		return true
	})
}

// Require is RequireAll for a single grant, recording the decision.
func (m Middleware) Require(category Category, action Action, resource string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := CurrentUserID(r)
			if !ok {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "login required")
				return
			}
			allowed, err := m.Service.Can(r.Context(), userID, category, action, resource)
			if err != nil {
				m.logError("rbac require", err)
				httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
				return
			}
			if !allowed {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "missing permission "+Need(category, action, resource).String())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) require(op string, reqs []Requirement, check func([]Permission) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(reqs) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			userID, ok := CurrentUserID(r)
			if !ok {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "login required")
				return
			}
			granted, err := m.Service.EffectivePermissions(r.Context(), userID)
			if err != nil {
				m.logError(op, err)
				httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
				return
			}
			if check(granted) {
				next.ServeHTTP(w, r)
				return
			}
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "missing permission "+joinRequirements(reqs))
		})
	}
}

func joinRequirements(reqs []Requirement) string {
	names := make([]string, len(reqs))
	for i, r := range reqs {
		names[i] = r.String()
	}
	return strings.Join(names, ", ")
}

func (m Middleware) logError(op string, err error) {
	if m.Logger != nil {
		m.Logger.Error(op, slog.Any("error", err))
	}
}

// CurrentUserID returns the user bound to the request session.
func CurrentUserID(r *http.Request) (string, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return "", false
	}
	id := strings.TrimSpace(sess.User())
	if id == "" {
		return "", false
	}
	return id, true
}
