package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	appErr "github.com/xxxsen/dshare/internal/pkg/errors"
	"github.com/xxxsen/dshare/internal/pkg/jwt"
	"github.com/xxxsen/dshare/internal/service"
)

var testSecret = []byte("middleware-secret")

type stubLoader struct{}

func (stubLoader) Authenticate(ctx context.Context, userID string) (*service.AuthenticatedUser, error) {
	if userID == "ghost" {
		return nil, appErr.ErrUnauthorized
	}
	return &service.AuthenticatedUser{ID: userID, OrgID: "org1"}, nil
}

func newAuthRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	whoami := func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			c.String(http.StatusOK, "anonymous")
			return
		}
		c.String(http.StatusOK, user.ID)
	}
	r.GET("/required", JWTAuth(testSecret, stubLoader{}), whoami)
	r.GET("/optional", OptionalJWTAuth(testSecret, stubLoader{}), whoami)
	return r
}

func bearer(t *testing.T, userID string) string {
	t.Helper()
	token, err := jwt.GenerateToken(userID, "", testSecret, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func serve(r http.Handler, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuth(t *testing.T) {
	r := newAuthRouter()

	require.Equal(t, http.StatusUnauthorized, serve(r, "/required", "").Code)
	require.Equal(t, http.StatusUnauthorized, serve(r, "/required", "Basic abc").Code)
	require.Equal(t, http.StatusUnauthorized, serve(r, "/required", "Bearer not-a-jwt").Code)
	require.Equal(t, http.StatusUnauthorized, serve(r, "/required", bearer(t, "ghost")).Code)

	rec := serve(r, "/required", bearer(t, "u1"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "u1", rec.Body.String())
}

func TestOptionalJWTAuth(t *testing.T) {
	r := newAuthRouter()

	rec := serve(r, "/optional", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "anonymous", rec.Body.String())

	rec = serve(r, "/optional", bearer(t, "u2"))
	require.Equal(t, "u2", rec.Body.String())

	require.Equal(t, http.StatusUnauthorized, serve(r, "/optional", "Bearer broken").Code)
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS([]string{"https://app.example.com"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	require.Len(t, rec.Header().Get("X-Request-Id"), 32)

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-Id", "abc")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, "abc", rec.Header().Get("X-Request-Id"))
}
