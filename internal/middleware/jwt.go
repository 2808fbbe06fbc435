package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/dshare/internal/pkg/errcode"
	"github.com/xxxsen/dshare/internal/pkg/jwt"
	"github.com/xxxsen/dshare/internal/pkg/response"
	"github.com/xxxsen/dshare/internal/service"
)

const (
	ContextUserIDKey = "user_id"
	ContextUserKey   = "user"
)

// UserLoader resolves the token subject into the caller's current identity.
type UserLoader interface {
	Authenticate(ctx context.Context, userID string) (*service.AuthenticatedUser, error)
}

// JWTAuth rejects requests without a valid bearer token.
func JWTAuth(secret []byte, users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, http.StatusUnauthorized, errcode.ErrUnauthorized, "missing authorization")
			c.Abort()
			return
		}
		if !authenticate(c, header, secret, users) {
			return
		}
		c.Next()
	}
}

// OptionalJWTAuth lets anonymous requests through. A bearer token, when
// present, must still be valid.
func OptionalJWTAuth(secret []byte, users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}
		if !authenticate(c, header, secret, users) {
			return
		}
		c.Next()
	}
}

func authenticate(c *gin.Context, header string, secret []byte, users UserLoader) bool {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		response.Error(c, http.StatusUnauthorized, errcode.ErrUnauthorized, "invalid authorization")
		c.Abort()
		return false
	}
	claims, err := jwt.ParseToken(strings.TrimSpace(parts[1]), secret)
	if err != nil {
		response.Error(c, http.StatusUnauthorized, errcode.ErrUnauthorized, "invalid token")
		c.Abort()
		return false
	}
	user, err := users.Authenticate(c.Request.Context(), claims.UserID)
	if err != nil {
		logutil.GetLogger(c.Request.Context()).Debug("token subject rejected", zap.String("user_id", claims.UserID), zap.Error(err))
		response.Error(c, http.StatusUnauthorized, errcode.ErrUnauthorized, "invalid token")
		c.Abort()
		return false
	}
	c.Set(ContextUserIDKey, user.ID)
	c.Set(ContextUserKey, user)
	return true
}

// CurrentUser returns the identity set by the auth middleware, or nil.
func CurrentUser(c *gin.Context) *service.AuthenticatedUser {
	value, ok := c.Get(ContextUserKey)
	if !ok {
		return nil
	}
	user, _ := value.(*service.AuthenticatedUser)
	return user
}
