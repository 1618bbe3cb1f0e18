package rbac

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sentinel-cyber/portal/internal/platform/httpx"
)

// HierarchyHandler exposes the base role ranking and role comparisons.
type HierarchyHandler struct {
	logger *slog.Logger
}

// NewHierarchyHandler builds HierarchyHandler instance.
func NewHierarchyHandler(logger *slog.Logger) *HierarchyHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HierarchyHandler{logger: logger}
}

// MountRoutes registers hierarchy routes.
func (h *HierarchyHandler) MountRoutes(r chi.Router) {
	r.Get("/", h.listTiers)
	r.Get("/compare", h.compare)
}

type tierView struct {
	BaseRole BaseRole `json:"baseRole"`
	Weight   int      `json:"weight"`
}

func (h *HierarchyHandler) listTiers(w http.ResponseWriter, r *http.Request) {
	tiers := make([]tierView, 0, len(roleHierarchy))
	for _, role := range BaseRoles() {
		tiers = append(tiers, tierView{BaseRole: role, Weight: Weight(role)})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"tiers": tiers})
}

type comparison struct {
	A         BaseRole `json:"a"`
	B         BaseRole `json:"b"`
	HigherAB  bool     `json:"aHigherThanB"`
	AtLeastAB bool     `json:"aAtLeastB"`
	HigherBA  bool     `json:"bHigherThanA"`
}

func (h *HierarchyHandler) compare(w http.ResponseWriter, r *http.Request) {
	a, okA := ParseBaseRole(r.URL.Query().Get("a"))
	b, okB := ParseBaseRole(r.URL.Query().Get("b"))
	if !okA || !okB {
		h.logger.Debug("hierarchy compare rejected", slog.String("a", string(a)), slog.String("b", string(b)))
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "query parameters a and b must be known base roles")
		return
	}
	httpx.JSON(w, http.StatusOK, comparison{
		A:         a,
		B:         b,
		HigherAB:  IsRoleHigherThan(a, b),
		AtLeastAB: IsRoleAtLeast(a, b),
		HigherBA:  IsRoleHigherThan(b, a),
	})
}
