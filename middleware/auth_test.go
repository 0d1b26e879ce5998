package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/smartbook/backend/models"
	"github.com/smartbook/backend/store/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const testSecret = "test-secret"

func echoUser(w http.ResponseWriter, r *http.Request) {
	id, ok := UserIDFromContext(r.Context())
	if !ok {
		_, _ = w.Write([]byte("anonymous"))
		return
	}
	_, _ = w.Write([]byte(id.Hex() + ":" + RoleFromContext(r.Context())))
}

func request(t *testing.T, h http.Handler, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func testUser(role string) *models.User {
	return &models.User{ID: primitive.NewObjectID(), Email: "ann@example.com", Role: role}
}

func TestAuthAcceptsIssuedToken(t *testing.T) {
	u := testUser(models.RoleUser)
	token, err := IssueToken(testSecret, time.Hour, u)
	require.NoError(t, err)

	rec := request(t, Auth(testSecret, nil)(http.HandlerFunc(echoUser)), token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, u.ID.Hex()+":user", rec.Body.String())
}

func TestAuthRejects(t *testing.T) {
	u := testUser(models.RoleUser)
	expired, err := IssueToken(testSecret, -time.Minute, u)
	require.NoError(t, err)
	wrongKey, err := IssueToken("other-secret", time.Hour, u)
	require.NoError(t, err)

	h := Auth(testSecret, nil)(http.HandlerFunc(echoUser))
	for name, token := range map[string]string{
		"missing":   "",
		"garbage":   "not-a-jwt",
		"expired":   expired,
		"wrong key": wrongKey,
	} {
		t.Run(name, func(t *testing.T) {
			rec := request(t, h, token)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestAuthRejectsNonBearerScheme(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic abc")
	rec := httptest.NewRecorder()
	Auth(testSecret, nil)(http.HandlerFunc(echoUser)).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRejectsUnsignedToken(t *testing.T) {
	claims := Claims{UserID: primitive.NewObjectID().Hex(), RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	rec := request(t, Auth(testSecret, nil)(http.HandlerFunc(echoUser)), token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRejectsRevokedToken(t *testing.T) {
	u := testUser(models.RoleUser)
	token, err := IssueToken(testSecret, time.Hour, u)
	require.NoError(t, err)
	revocations := memstore.NewRevocations()
	h := Auth(testSecret, revocations)(http.HandlerFunc(echoUser))

	assert.Equal(t, http.StatusOK, request(t, h, token).Code)

	claims, err := parseToken(testSecret, token)
	require.NoError(t, err)
	require.NoError(t, revocations.Revoke(context.Background(), claims.ID, claims.ExpiresAt.Time))
	assert.Equal(t, http.StatusUnauthorized, request(t, h, token).Code)
}

type failingRevocations struct{}

func (failingRevocations) IsRevoked(context.Context, string) (bool, error) {
	return false, assert.AnError
}

func TestAuthFailsClosedWhenRevocationCheckErrors(t *testing.T) {
	token, err := IssueToken(testSecret, time.Hour, testUser(models.RoleUser))
	require.NoError(t, err)
	rec := request(t, Auth(testSecret, failingRevocations{})(http.HandlerFunc(echoUser)), token)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestIssuedTokensHaveDistinctIDs(t *testing.T) {
	u := testUser(models.RoleUser)
	a, err := IssueToken(testSecret, time.Hour, u)
	require.NoError(t, err)
	b, err := IssueToken(testSecret, time.Hour, u)
	require.NoError(t, err)

	ca, err := parseToken(testSecret, a)
	require.NoError(t, err)
	cb, err := parseToken(testSecret, b)
	require.NoError(t, err)
	assert.NotEmpty(t, ca.ID)
	assert.NotEqual(t, ca.ID, cb.ID)
}

func TestOptionalAuth(t *testing.T) {
	h := OptionalAuth(testSecret, nil)(http.HandlerFunc(echoUser))

	rec := request(t, h, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "anonymous", rec.Body.String())

	u := testUser(models.RoleAdmin)
	token, err := IssueToken(testSecret, time.Hour, u)
	require.NoError(t, err)
	rec = request(t, h, token)
	assert.Equal(t, u.ID.Hex()+":admin", rec.Body.String())

	assert.Equal(t, http.StatusUnauthorized, request(t, h, "garbage").Code)
}

func TestRequireAdminUsesStoredRole(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	u := &models.User{FullName: "Ann", Email: "ann@example.com", Role: models.RoleAdmin}
	id, err := store.CreateUser(ctx, u)
	require.NoError(t, err)
	u.ID = id

	token, err := IssueToken(testSecret, time.Hour, u)
	require.NoError(t, err)
	h := Auth(testSecret, nil)(RequireAdmin(store)(http.HandlerFunc(echoUser)))

	assert.Equal(t, http.StatusOK, request(t, h, token).Code)

	require.NoError(t, store.SetRole(ctx, id, models.RoleUser))
	assert.Equal(t, http.StatusForbidden, request(t, h, token).Code)
}

func TestRequireAdminWithoutAuth(t *testing.T) {
	rec := request(t, RequireAdmin(memstore.New())(http.HandlerFunc(echoUser)), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
