package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/dshare/internal/model"
	"github.com/xxxsen/dshare/internal/pkg/errcode"
	"github.com/xxxsen/dshare/internal/pkg/response"
	"github.com/xxxsen/dshare/internal/service"
)

// AccessHandler serves dataset reads for owners, organization members and
// anonymous share link holders alike.
type AccessHandler struct {
	access   *service.AccessService
	datasets *service.DatasetService
	chat     *service.ChatService
}

func NewAccessHandler(access *service.AccessService, datasets *service.DatasetService, chat *service.ChatService) *AccessHandler {
	return &AccessHandler{access: access, datasets: datasets, chat: chat}
}

type chatRequest struct {
	Question string `json:"question"`
}

// resolve writes the failure response itself and returns nil when the caller
// may not proceed.
func (h *AccessHandler) resolve(c *gin.Context) *service.AccessGrant {
	grant, err := h.access.ResolveByID(c.Request.Context(), c.Param("id"), buildRequester(c))
	if err != nil {
		handleError(c, err)
		return nil
	}
	if !grant.Allowed {
		writeDenied(c, grant)
		return nil
	}
	setSessionHeader(c, grant)
	return grant
}

func (h *AccessHandler) Resolve(c *gin.Context) {
	grant := h.resolve(c)
	if grant == nil {
		return
	}
	response.Success(c, grant)
}

func (h *AccessHandler) Download(c *gin.Context) {
	grant := h.resolve(c)
	if grant == nil {
		return
	}
	ctx := c.Request.Context()
	if err := h.access.Consume(ctx, grant, model.ActivityDownload); err != nil {
		handleError(c, err)
		return
	}
	rc, err := h.datasets.Open(ctx, grant.Dataset)
	if err != nil {
		handleError(c, err)
		return
	}
	defer rc.Close()
	contentType := grant.Dataset.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, grant.Dataset.FileSize, contentType, rc, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", grant.Dataset.Name),
	})
}

func (h *AccessHandler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Question) == "" {
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, "question required")
		return
	}
	grant := h.resolve(c)
	if grant == nil {
		return
	}
	answer, err := h.chat.Ask(c.Request.Context(), grant, req.Question)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"answer": answer, "session": grant.Session})
}

func (h *AccessHandler) PublicGet(c *gin.Context) {
	grant, err := h.access.ResolveByToken(c.Request.Context(), c.Param("token"), buildRequester(c))
	if err != nil {
		handleError(c, err)
		return
	}
	if !grant.Allowed {
		writeDenied(c, grant)
		return
	}
	setSessionHeader(c, grant)
	response.Success(c, grant)
}
