package handler_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/dshare/internal/testutil"
)

type datasetView struct {
	ID           string `json:"id"`
	SharingLevel string `json:"sharing_level"`
}

type shareView struct {
	Share struct {
		Token string `json:"token"`
	} `json:"share"`
}

type grantView struct {
	Allowed bool   `json:"allowed"`
	Level   string `json:"level"`
	Session struct {
		ID            string `json:"id"`
		DownloadCount int64  `json:"download_count"`
	} `json:"session"`
}

func TestPublicShareFlow(t *testing.T) {
	router, cleanup := setupRouter(t)
	defer cleanup()

	owner := register(t, router, testutil.UniqueID("owner")+"@example.com")
	resp := owner.upload("sales.csv", "region,total\nnorth,42\n")
	require.Equal(t, http.StatusOK, resp.Code)
	var ds datasetView
	decodeData(t, resp, &ds)
	require.Equal(t, "private", ds.SharingLevel)

	// private datasets cannot carry a link
	resp = owner.do(http.MethodPost, "/api/v1/datasets/"+ds.ID+"/share", map[string]interface{}{}, nil)
	require.Equal(t, http.StatusConflict, resp.Code)

	resp = owner.do(http.MethodPut, "/api/v1/datasets/"+ds.ID+"/sharing", map[string]string{"sharing_level": "public"}, nil)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = owner.do(http.MethodPost, "/api/v1/datasets/"+ds.ID+"/share", map[string]interface{}{"expires_in": 3600, "password": "open-sesame"}, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var share shareView
	decodeData(t, resp, &share)
	require.NotEmpty(t, share.Share.Token)

	anon := &client{t: t, router: router}
	resp = anon.do(http.MethodGet, "/api/v1/access/datasets/"+ds.ID, nil, nil)
	require.Equal(t, http.StatusNotFound, resp.Code)

	resp = anon.do(http.MethodGet, "/api/v1/public/share/"+share.Share.Token, nil, nil)
	require.Equal(t, http.StatusUnauthorized, resp.Code)
	resp = anon.do(http.MethodGet, "/api/v1/public/share/"+share.Share.Token+"?password=wrong", nil, nil)
	require.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = anon.do(http.MethodGet, "/api/v1/public/share/"+share.Share.Token+"?password=open-sesame", nil, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var grant grantView
	decodeData(t, resp, &grant)
	require.True(t, grant.Allowed)
	require.Equal(t, "public", grant.Level)
	sessionID := resp.Header().Get("X-Session-Id")
	require.Equal(t, grant.Session.ID, sessionID)

	query := "?share_token=" + share.Share.Token + "&password=open-sesame"
	headers := map[string]string{"X-Session-Id": sessionID}
	resp = anon.do(http.MethodGet, "/api/v1/access/datasets/"+ds.ID+"/download"+query, nil, headers)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "region,total\nnorth,42\n", resp.Body.String())
	require.Equal(t, sessionID, resp.Header().Get("X-Session-Id"))

	resp = anon.do(http.MethodGet, "/api/v1/access/datasets/"+ds.ID+"/download"+query, nil, headers)
	require.Equal(t, http.StatusOK, resp.Code)
	resp = anon.do(http.MethodGet, "/api/v1/access/datasets/"+ds.ID+"/download"+query, nil, headers)
	require.Equal(t, http.StatusTooManyRequests, resp.Code)

	resp = anon.do(http.MethodPost, "/api/v1/access/datasets/"+ds.ID+"/chat"+query, map[string]string{"question": "total?"}, headers)
	require.Equal(t, http.StatusServiceUnavailable, resp.Code)

	resp = owner.do(http.MethodDelete, "/api/v1/datasets/"+ds.ID+"/share", nil, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	resp = anon.do(http.MethodGet, "/api/v1/public/share/"+share.Share.Token+"?password=open-sesame", nil, nil)
	require.Equal(t, http.StatusGone, resp.Code)
}

func TestOrganizationSharing(t *testing.T) {
	router, cleanup := setupRouter(t)
	defer cleanup()

	owner := register(t, router, testutil.UniqueID("owner")+"@example.com")
	memberEmail := testutil.UniqueID("member") + "@example.com"
	member := register(t, router, memberEmail)
	outsider := register(t, router, testutil.UniqueID("outsider")+"@example.com")

	resp := owner.do(http.MethodPost, "/api/v1/orgs", map[string]string{"name": "Acme"}, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	resp = owner.do(http.MethodPost, "/api/v1/orgs/members", map[string]string{"email": memberEmail}, nil)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = owner.upload("report.csv", "a,b\n1,2\n")
	require.Equal(t, http.StatusOK, resp.Code)
	var ds datasetView
	decodeData(t, resp, &ds)

	resp = member.do(http.MethodGet, "/api/v1/access/datasets/"+ds.ID, nil, nil)
	require.Equal(t, http.StatusForbidden, resp.Code)

	resp = member.do(http.MethodPut, "/api/v1/datasets/"+ds.ID+"/sharing", map[string]string{"sharing_level": "organization"}, nil)
	require.Equal(t, http.StatusForbidden, resp.Code)
	resp = owner.do(http.MethodPut, "/api/v1/datasets/"+ds.ID+"/sharing", map[string]string{"sharing_level": "organization"}, nil)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = member.do(http.MethodGet, "/api/v1/access/datasets/"+ds.ID, nil, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var grant grantView
	decodeData(t, resp, &grant)
	require.Equal(t, "organization", grant.Level)

	resp = outsider.do(http.MethodGet, "/api/v1/access/datasets/"+ds.ID, nil, nil)
	require.Equal(t, http.StatusForbidden, resp.Code)

	anon := &client{t: t, router: router}
	resp = anon.do(http.MethodGet, "/api/v1/access/datasets/"+ds.ID, nil, nil)
	require.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = owner.do(http.MethodDelete, "/api/v1/datasets/"+ds.ID, nil, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	resp = member.do(http.MethodGet, "/api/v1/access/datasets/"+ds.ID, nil, nil)
	require.Equal(t, http.StatusNotFound, resp.Code)
}

func TestAuthRequired(t *testing.T) {
	router, cleanup := setupRouter(t)
	defer cleanup()

	anon := &client{t: t, router: router}
	require.Equal(t, http.StatusUnauthorized, anon.do(http.MethodGet, "/api/v1/datasets", nil, nil).Code)
	require.Equal(t, http.StatusBadRequest, anon.do(http.MethodPost, "/api/v1/auth/login", map[string]string{"email": ""}, nil).Code)

	bad := &client{t: t, router: router, token: "garbage"}
	require.Equal(t, http.StatusUnauthorized, bad.do(http.MethodGet, "/api/v1/public/share/abc", nil, nil).Code)
}
