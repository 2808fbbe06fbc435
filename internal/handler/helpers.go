package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/dshare/internal/ai"
	"github.com/xxxsen/dshare/internal/middleware"
	appErr "github.com/xxxsen/dshare/internal/pkg/errors"
	"github.com/xxxsen/dshare/internal/pkg/errcode"
	"github.com/xxxsen/dshare/internal/pkg/response"
	"github.com/xxxsen/dshare/internal/service"
)

const sessionHeader = "X-Session-Id"

func getUser(c *gin.Context) *service.AuthenticatedUser {
	return middleware.CurrentUser(c)
}

// buildRequester collects the caller identity and any share credentials.
// Credentials in the query string win over the session header.
func buildRequester(c *gin.Context) service.Requester {
	sessionID := strings.TrimSpace(c.Query("session_id"))
	if sessionID == "" {
		sessionID = strings.TrimSpace(c.GetHeader(sessionHeader))
	}
	return service.Requester{
		User:       getUser(c),
		ShareToken: strings.TrimSpace(c.Query("share_token")),
		Password:   c.Query("password"),
		SessionID:  sessionID,
	}
}

func setSessionHeader(c *gin.Context, grant *service.AccessGrant) {
	if grant != nil && grant.Session != nil {
		c.Header(sessionHeader, grant.Session.ID)
	}
}

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	status, code, msg := classifyError(err)
	logger := logutil.GetLogger(c.Request.Context()).With(
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Int("status", status),
		zap.Error(err),
	)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed")
	} else {
		logger.Debug("request rejected")
	}
	response.Error(c, status, code, msg)
}

func classifyError(err error) (int, int, string) {
	switch {
	case errors.Is(err, appErr.ErrUnauthorized):
		return http.StatusUnauthorized, errcode.ErrUnauthorized, "unauthorized"
	case errors.Is(err, appErr.ErrPermission), errors.Is(err, appErr.ErrForbidden):
		return http.StatusForbidden, errcode.ErrForbidden, "forbidden"
	case errors.Is(err, appErr.ErrNotFound):
		return http.StatusNotFound, errcode.ErrNotFound, "not found"
	case errors.Is(err, appErr.ErrExpired):
		return http.StatusGone, errcode.ErrTokenExpired, "expired"
	case errors.Is(err, appErr.ErrRevoked):
		return http.StatusGone, errcode.ErrTokenRevoked, "revoked"
	case errors.Is(err, appErr.ErrPasswordRequired):
		return http.StatusUnauthorized, errcode.ErrPasswordRequired, "password required"
	case errors.Is(err, appErr.ErrPasswordIncorrect):
		return http.StatusUnauthorized, errcode.ErrPasswordIncorrect, "password incorrect"
	case errors.Is(err, appErr.ErrInvalidState):
		return http.StatusConflict, errcode.ErrInvalidState, "invalid state"
	case errors.Is(err, appErr.ErrConflict):
		return http.StatusConflict, errcode.ErrConflict, "conflict"
	case errors.Is(err, appErr.ErrInvalid):
		return http.StatusBadRequest, errcode.ErrInvalid, "invalid request"
	case errors.Is(err, appErr.ErrTooMany):
		return http.StatusTooManyRequests, errcode.ErrTooMany, "session limit reached"
	case errors.Is(err, ai.ErrUnavailable):
		return http.StatusServiceUnavailable, errcode.ErrAIUnavailable, "ai unavailable"
	}
	return http.StatusInternalServerError, errcode.ErrInternal, "internal error"
}

// writeDenied renders a denied grant.
func writeDenied(c *gin.Context, grant *service.AccessGrant) {
	status, code := deniedStatus(grant)
	response.Error(c, status, code, string(grant.Reason))
}

func deniedStatus(grant *service.AccessGrant) (int, int) {
	switch grant.Reason {
	case service.ReasonLoginRequired:
		return http.StatusUnauthorized, errcode.ErrLoginRequired
	case service.ReasonOrganizationMismatch:
		return http.StatusForbidden, errcode.ErrOrganizationMismatch
	case service.ReasonOwnershipRequired:
		return http.StatusForbidden, errcode.ErrOwnershipRequired
	case service.ReasonPasswordRequired:
		return http.StatusUnauthorized, errcode.ErrPasswordRequired
	case service.ReasonPasswordIncorrect:
		return http.StatusUnauthorized, errcode.ErrPasswordIncorrect
	case service.ReasonDatasetNotFound:
		return http.StatusNotFound, errcode.ErrNotFound
	case service.ReasonInvalidOrExpiredToken:
		switch grant.TokenStatus {
		case service.TokenExpired:
			return http.StatusGone, errcode.ErrTokenExpired
		case service.TokenRevoked:
			return http.StatusGone, errcode.ErrTokenRevoked
		}
		return http.StatusNotFound, errcode.ErrTokenInvalid
	}
	return http.StatusForbidden, errcode.ErrForbidden
}
