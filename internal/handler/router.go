package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/dshare/internal/middleware"
)

type RouterDeps struct {
	Auth          *AuthHandler
	Organizations *OrganizationHandler
	Datasets      *DatasetHandler
	Shares        *ShareHandler
	Access        *AccessHandler
	Users         middleware.UserLoader
	JWTSecret     []byte
	// PublicRateLimit throttles anonymous-facing routes per client; zero disables it.
	PublicRateLimit time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.POST("/auth/register", deps.Auth.Register)
	api.POST("/auth/login", deps.Auth.Login)

	authGroup := api.Group("")
	authGroup.Use(middleware.JWTAuth(deps.JWTSecret, deps.Users))
	authGroup.GET("/auth/me", deps.Auth.Me)
	authGroup.POST("/orgs", deps.Organizations.Create)
	authGroup.POST("/orgs/members", deps.Organizations.AddMember)

	authGroup.POST("/datasets", deps.Datasets.Upload)
	authGroup.GET("/datasets", deps.Datasets.List)
	authGroup.PUT("/datasets/:id/sharing", deps.Datasets.UpdateSharing)
	authGroup.DELETE("/datasets/:id", deps.Datasets.Delete)

	authGroup.POST("/datasets/:id/share", deps.Shares.Create)
	authGroup.GET("/datasets/:id/share", deps.Shares.GetActive)
	authGroup.DELETE("/datasets/:id/share", deps.Shares.Revoke)

	publicGroup := api.Group("")
	publicGroup.Use(
		middleware.OptionalJWTAuth(deps.JWTSecret, deps.Users),
		middleware.RateLimit(deps.PublicRateLimit),
	)
	publicGroup.GET("/access/datasets/:id", deps.Access.Resolve)
	publicGroup.GET("/access/datasets/:id/download", deps.Access.Download)
	publicGroup.POST("/access/datasets/:id/chat", deps.Access.Chat)
	publicGroup.GET("/public/share/:token", deps.Access.PublicGet)
}
