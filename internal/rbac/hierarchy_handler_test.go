package rbac

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func newHierarchyRouter() http.Handler {
	r := chi.NewRouter()
	NewHierarchyHandler(nil).MountRoutes(r)
	return r
}

func TestHierarchyHandlerListsTiers(t *testing.T) {
	res := httptest.NewRecorder()
	newHierarchyRouter().ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, res.Code)

	var body struct {
		Tiers []tierView `json:"tiers"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	require.Len(t, body.Tiers, 5)
	require.Equal(t, tierView{BaseRole: BaseRoleAdmin, Weight: 100}, body.Tiers[0])
	require.Equal(t, tierView{BaseRole: BaseRoleClient, Weight: 20}, body.Tiers[4])
}

func TestHierarchyHandlerCompare(t *testing.T) {
	res := httptest.NewRecorder()
	newHierarchyRouter().ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/compare?a=support&b=Developer", nil))
	require.Equal(t, http.StatusOK, res.Code)

	var got comparison
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &got))
	require.Equal(t, comparison{
		A:         BaseRoleSupport,
		B:         BaseRoleDeveloper,
		HigherAB:  false,
		AtLeastAB: false,
		HigherBA:  true,
	}, got)
}

func TestHierarchyHandlerRejectsUnknownRole(t *testing.T) {
	res := httptest.NewRecorder()
	newHierarchyRouter().ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/compare?a=root&b=admin", nil))
	require.Equal(t, http.StatusBadRequest, res.Code)
}
