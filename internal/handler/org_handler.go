package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/dshare/internal/pkg/errcode"
	"github.com/xxxsen/dshare/internal/pkg/response"
	"github.com/xxxsen/dshare/internal/service"
)

type OrganizationHandler struct {
	orgs *service.OrganizationService
}

func NewOrganizationHandler(orgs *service.OrganizationService) *OrganizationHandler {
	return &OrganizationHandler{orgs: orgs}
}

type createOrganizationRequest struct {
	Name string `json:"name"`
}

type addMemberRequest struct {
	Email string `json:"email"`
}

func (h *OrganizationHandler) Create(c *gin.Context) {
	var req createOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, "invalid request")
		return
	}
	org, err := h.orgs.Create(c.Request.Context(), getUser(c), req.Name)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, org)
}

func (h *OrganizationHandler) AddMember(c *gin.Context) {
	var req addMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" {
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, "email required")
		return
	}
	member, err := h.orgs.AddMember(c.Request.Context(), getUser(c), req.Email)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, member)
}
