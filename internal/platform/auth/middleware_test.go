package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", RequireAuth(testSecret), func(c *gin.Context) {
		id := MustIdentity(c)
		c.JSON(http.StatusOK, gin.H{"user": id.UserID, "role": id.Role})
	})
	r.GET("/manage", RequireAuth(testSecret), RequireManager(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func get(t *testing.T, r http.Handler, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireAuthNormalizesRole(t *testing.T) {
	tok, err := SignToken(testSecret, "u1", "project-manager", time.Hour, time.Now())
	require.NoError(t, err)

	w := get(t, newRouter(), "/me", tok)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user":"u1","role":"MANAGER"}`, w.Body.String())
}

func TestRequireAuthDefaultsToMember(t *testing.T) {
	tok, err := SignToken(testSecret, "u1", "", time.Hour, time.Now())
	require.NoError(t, err)

	w := get(t, newRouter(), "/me", tok)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user":"u1","role":"MEMBER"}`, w.Body.String())
}

func TestRequireAuthRejects(t *testing.T) {
	r := newRouter()
	now := time.Now()

	expired, err := SignToken(testSecret, "u1", "admin", time.Hour, now.Add(-2*time.Hour))
	require.NoError(t, err)
	wrongKey, err := SignToken([]byte("other"), "u1", "admin", time.Hour, now)
	require.NoError(t, err)
	badRole, err := SignToken(testSecret, "u1", "guest", time.Hour, now)
	require.NoError(t, err)
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "u1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"missing":  "",
		"expired":  expired,
		"wrongKey": wrongKey,
		"badRole":  badRole,
		"algNone":  none,
	} {
		w := get(t, r, "/me", tok)
		assert.Equal(t, http.StatusUnauthorized, w.Code, name)
	}
}

func TestRequireManager(t *testing.T) {
	r := newRouter()

	member, err := SignToken(testSecret, "u1", "user", time.Hour, time.Now())
	require.NoError(t, err)
	admin, err := SignToken(testSecret, "a1", "admin", time.Hour, time.Now())
	require.NoError(t, err)

	assert.Equal(t, http.StatusForbidden, get(t, r, "/manage", member).Code)
	assert.Equal(t, http.StatusNoContent, get(t, r, "/manage", admin).Code)
}
