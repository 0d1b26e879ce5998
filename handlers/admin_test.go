package handlers_test

import (
	"net/http"
	"testing"

	"github.com/smartbook/backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminRoutesRequireAdmin(t *testing.T) {
	h := newHarness(t)
	ann := h.register("ann")

	for _, path := range []string{"/api/admin/books", "/api/admin/users", "/api/admin/stats"} {
		assert.Equal(t, http.StatusForbidden, h.do(http.MethodGet, path, ann.token, nil).Code, path)
		assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, path, "", nil).Code, path)
	}
}

func TestAdminModerationAndStats(t *testing.T) {
	h := newHarness(t)
	ann := h.register("ann")
	root := h.admin("root")
	public := h.upload(ann, map[string]string{"title": "Dune", "isPublic": "true"})
	h.upload(ann, map[string]string{"title": "Drafts"})

	rec := h.do(http.MethodGet, "/api/admin/books", root.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.Book](t, rec), 2)

	rec = h.do(http.MethodPut, "/api/admin/moderate/"+public.ID.Hex(), root.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(http.MethodGet, "/api/admin/stats", root.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[models.CatalogStats](t, rec)
	assert.EqualValues(t, 2, stats.TotalUsers)
	assert.EqualValues(t, 2, stats.TotalBooks)
	assert.EqualValues(t, 0, stats.PublicBooks)
	assert.EqualValues(t, 2, stats.PrivateBooks)

	rec = h.do(http.MethodDelete, "/api/admin/books/"+public.ID.Hex(), root.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, h.storage.count())
}

func TestAdminUserManagement(t *testing.T) {
	h := newHarness(t)
	ann := h.register("ann")
	root := h.admin("root")

	rec := h.do(http.MethodGet, "/api/admin/users", root.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.User](t, rec), 2)

	rec = h.do(http.MethodPut, "/api/admin/users/"+ann.id.Hex(), root.token, map[string]any{"role": "owner"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodPut, "/api/admin/users/"+root.id.Hex(), root.token, map[string]any{"role": "user"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "the last admin keeps the role")

	rec = h.do(http.MethodDelete, "/api/admin/users/"+root.id.Hex(), root.token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "admins cannot delete themselves")

	rec = h.do(http.MethodPut, "/api/admin/users/"+ann.id.Hex(), root.token, map[string]any{"role": "admin"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/admin/stats", ann.token, nil).Code, "promotion applies to existing tokens")

	rec = h.do(http.MethodPut, "/api/admin/users/"+ann.id.Hex(), root.token, map[string]any{"role": "user"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusForbidden, h.do(http.MethodGet, "/api/admin/stats", ann.token, nil).Code)

	rec = h.do(http.MethodDelete, "/api/admin/users/"+ann.id.Hex(), root.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/api/user/profile", ann.token, nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodDelete, "/api/admin/users/"+ann.id.Hex(), root.token, nil).Code)
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = h.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "smartbook_http_requests_total")
}

func TestCORSPreflight(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodOptions, "/api/books/public", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
