package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/dshare/internal/pkg/errcode"
	"github.com/xxxsen/dshare/internal/pkg/response"
	"github.com/xxxsen/dshare/internal/pkg/timeutil"
	"github.com/xxxsen/dshare/internal/service"
)

type ShareHandler struct {
	datasets *service.DatasetService
	tokens   *service.ShareTokenService
}

func NewShareHandler(datasets *service.DatasetService, tokens *service.ShareTokenService) *ShareHandler {
	return &ShareHandler{datasets: datasets, tokens: tokens}
}

type issueShareRequest struct {
	// ExpiresIn is in seconds; zero never expires.
	ExpiresIn int64  `json:"expires_in"`
	Password  string `json:"password"`
}

func (h *ShareHandler) Create(c *gin.Context) {
	var req issueShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, "invalid request")
		return
	}
	if req.ExpiresIn < 0 {
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, "expires_in must not be negative")
		return
	}
	ds, err := h.datasets.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	token, err := h.tokens.Issue(c.Request.Context(), ds, service.UserRequester(getUser(c)), service.IssueOptions{
		ExpiresIn: time.Duration(req.ExpiresIn) * time.Second,
		Password:  req.Password,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"share": token, "has_password": token.HasPassword()})
}

func (h *ShareHandler) GetActive(c *gin.Context) {
	ds, err := h.datasets.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	token, err := h.tokens.GetActive(c.Request.Context(), ds, service.UserRequester(getUser(c)))
	if err != nil {
		handleError(c, err)
		return
	}
	remaining := int64(0)
	if token != nil && token.ExpiresAt > 0 {
		remaining = max(token.ExpiresAt-timeutil.NowUnix(), 0)
	}
	response.Success(c, gin.H{"share": token, "expires_in": remaining})
}

func (h *ShareHandler) Revoke(c *gin.Context) {
	ds, err := h.datasets.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	if err := h.tokens.Revoke(c.Request.Context(), ds, service.UserRequester(getUser(c))); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}
