package handler_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/common/webapi"

	"github.com/xxxsen/dshare/internal/config"
	"github.com/xxxsen/dshare/internal/filestore"
	"github.com/xxxsen/dshare/internal/handler"
	"github.com/xxxsen/dshare/internal/middleware"
	"github.com/xxxsen/dshare/internal/repo"
	"github.com/xxxsen/dshare/internal/service"
	"github.com/xxxsen/dshare/internal/testutil"
)

func setupRouter(t *testing.T) (http.Handler, func()) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, cleanup := testutil.OpenTestDB(t)
	userRepo := repo.NewUserRepo(db)
	orgRepo := repo.NewOrganizationRepo(db)
	datasetRepo := repo.NewDatasetRepo(db)
	tokenRepo := repo.NewShareTokenRepo(db)
	sessionRepo := repo.NewSessionRepo(db)

	tmpDir, err := os.MkdirTemp("", "dshare-upload-*")
	require.NoError(t, err)
	store, err := filestore.New(config.FileStoreConfig{
		Type: "local",
		Data: map[string]interface{}{
			"dir": tmpDir,
		},
	})
	require.NoError(t, err)

	jwtSecret := []byte("test-secret")
	authService := service.NewAuthService(userRepo, jwtSecret, time.Hour, nil)
	orgService := service.NewOrganizationService(orgRepo, userRepo)
	datasetService := service.NewDatasetService(datasetRepo, store)
	tokenService := service.NewShareTokenService(tokenRepo, datasetRepo)
	sessionService := service.NewSessionService(sessionRepo, service.SessionOptions{MaxDownloads: 2})
	accessService := service.NewAccessService(datasetRepo, tokenService, sessionService)
	chatService := service.NewChatService(accessService, datasetService, nil)

	deps := handler.RouterDeps{
		Auth:          handler.NewAuthHandler(authService),
		Organizations: handler.NewOrganizationHandler(orgService),
		Datasets:      handler.NewDatasetHandler(datasetService, 1024*1024),
		Shares:        handler.NewShareHandler(datasetService, tokenService),
		Access:        handler.NewAccessHandler(accessService, datasetService, chatService),
		Users:         authService,
		JWTSecret:     jwtSecret,
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		"",
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(nil),
		),
	)
	require.NoError(t, err)

	return engine, func() {
		cleanup()
		_ = os.RemoveAll(tmpDir)
	}
}

type envelope struct {
	Code int             `json:"code"`
	Data json.RawMessage `json:"data"`
}

type client struct {
	t      *testing.T
	router http.Handler
	token  string
}

func (c *client) do(method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(c.t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp := httptest.NewRecorder()
	c.router.ServeHTTP(resp, req)
	return resp
}

func (c *client) upload(name, content string) *httptest.ResponseRecorder {
	c.t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", name)
	require.NoError(c.t, err)
	_, err = part.Write([]byte(content))
	require.NoError(c.t, err)
	require.NoError(c.t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/datasets", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.token)
	resp := httptest.NewRecorder()
	c.router.ServeHTTP(resp, req)
	return resp
}

func decodeData(t *testing.T, resp *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env))
	require.NoError(t, json.Unmarshal(env.Data, dst))
}

func register(t *testing.T, router http.Handler, email string) *client {
	t.Helper()
	c := &client{t: t, router: router}
	resp := c.do(http.MethodPost, "/api/v1/auth/register", map[string]string{"email": email, "password": "secret1"}, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var out struct {
		Token string `json:"token"`
	}
	decodeData(t, resp, &out)
	require.NotEmpty(t, out.Token)
	c.token = out.Token
	return c
}
