package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yoockh/yoointerview/internal/utils"
)

const secret = "test-secret"

func sign(t *testing.T, claims jwt.MapClaims, key string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return tok
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString("user_id"), "role": c.GetString("role")})
	})
	r.GET("/x", handlers...)
	return r
}

func do(r http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuth(t *testing.T) {
	r := newRouter(JWTAuth(JWTConfig{Secret: secret, Audience: "authenticated"}))
	exp := time.Now().Add(time.Hour).Unix()

	w := do(r, sign(t, jwt.MapClaims{"sub": "cand-1", "aud": "authenticated", "exp": exp}, secret))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":"cand-1","role":"user"}`, w.Body.String())

	w = do(r, sign(t, jwt.MapClaims{"sub": "op", "aud": "authenticated", "exp": exp, "app_metadata": map[string]any{"role": "admin"}}, secret))
	assert.JSONEq(t, `{"user_id":"op","role":"admin"}`, w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, do(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, sign(t, jwt.MapClaims{"sub": "x", "aud": "authenticated", "exp": exp}, "other")).Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, sign(t, jwt.MapClaims{"sub": "x", "aud": "anon", "exp": exp}, secret)).Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, sign(t, jwt.MapClaims{"aud": "authenticated", "exp": exp}, secret)).Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, sign(t, jwt.MapClaims{"sub": "x", "aud": "authenticated", "exp": time.Now().Add(-time.Hour).Unix()}, secret)).Code)
}

func TestJWTAuthWithoutSecret(t *testing.T) {
	r := newRouter(JWTAuth(JWTConfig{}))
	assert.Equal(t, http.StatusInternalServerError, do(r, "anything").Code)
}

func TestRequireAdmin(t *testing.T) {
	setRole := func(role string) gin.HandlerFunc {
		return func(c *gin.Context) { c.Set("role", role) }
	}
	assert.Equal(t, http.StatusOK, do(newRouter(setRole("Admin"), RequireAdmin()), "").Code)
	assert.Equal(t, http.StatusForbidden, do(newRouter(setRole("user"), RequireAdmin()), "").Code)
	assert.Equal(t, http.StatusForbidden, do(newRouter(RequireAdmin()), "").Code)
}

func TestRequestLogger(t *testing.T) {
	l, hook := test.NewNullLogger()
	l.SetLevel(logrus.InfoLevel)
	r := newRouter(RequestLogger(l))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-Id", "req-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-1", w.Header().Get("X-Request-Id"))
	require.Len(t, hook.Entries, 1)
	assert.Equal(t, "req-1", hook.LastEntry().Data["request_id"])
	assert.Equal(t, 200, hook.LastEntry().Data["status"])
}

func TestRequestLoggerRecordsFailures(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l, hook := test.NewNullLogger()
	l.SetLevel(logrus.InfoLevel)

	r := gin.New()
	r.Use(RequestLogger(l))
	r.POST("/interviews/:session_id/end", func(c *gin.Context) {
		c.Set("user_id", "cand-1")
		_ = c.Error(utils.E(utils.CodeFailedPrecondition, "InterviewService.EndInterview", "rounds remain", utils.ErrInvalidPhaseTransition))
		c.Status(http.StatusConflict)
	})

	req := httptest.NewRequest(http.MethodPost, "/interviews/s-1/end", nil)
	req.Header.Set(RequestIDHeader, "bad id\nlevel=error")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Len(t, hook.Entries, 1)
	e := hook.LastEntry()
	assert.Equal(t, logrus.WarnLevel, e.Level)
	assert.Equal(t, "/interviews/:session_id/end", e.Data["route"])
	assert.Equal(t, "s-1", e.Data["session_id"])
	assert.Equal(t, "cand-1", e.Data["user_id"])
	assert.Equal(t, utils.CodeFailedPrecondition, e.Data["error_code"])
	assert.Equal(t, "InterviewService.EndInterview", e.Data["op"])

	id := w.Header().Get(RequestIDHeader)
	assert.NotEqual(t, "bad id\nlevel=error", id)
	assert.Equal(t, id, e.Data["request_id"])
}
