package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/dshare/internal/filestore"
	"github.com/xxxsen/dshare/internal/model"
	"github.com/xxxsen/dshare/internal/pkg/errcode"
	"github.com/xxxsen/dshare/internal/pkg/response"
	"github.com/xxxsen/dshare/internal/service"
)

type DatasetHandler struct {
	datasets      *service.DatasetService
	maxUploadSize int64
}

func NewDatasetHandler(datasets *service.DatasetService, maxUploadSize int64) *DatasetHandler {
	return &DatasetHandler{datasets: datasets, maxUploadSize: maxUploadSize}
}

type updateSharingRequest struct {
	SharingLevel string `json:"sharing_level"`
}

func (h *DatasetHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalidFile, "file is required")
		return
	}
	if h.maxUploadSize > 0 && file.Size > h.maxUploadSize {
		response.Error(c, http.StatusRequestEntityTooLarge, errcode.ErrInvalidFile, "file too large (max "+formatUploadLimit(h.maxUploadSize)+")")
		return
	}
	opened, err := file.Open()
	if err != nil {
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalidFile, "failed to open file")
		return
	}
	defer opened.Close()

	contentType, err := sniffContentType(opened)
	if err != nil {
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalidFile, "failed to read file")
		return
	}
	name := strings.TrimSpace(c.PostForm("name"))
	if name == "" {
		name = file.Filename
	}
	ds, err := h.datasets.Create(c.Request.Context(), getUser(c), service.CreateDatasetInput{
		Name:        name,
		ContentType: contentType,
		Size:        file.Size,
		Body:        opened,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, ds)
}

func (h *DatasetHandler) List(c *gin.Context) {
	items, err := h.datasets.List(c.Request.Context(), getUser(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"items": items})
}

func (h *DatasetHandler) UpdateSharing(c *gin.Context) {
	var req updateSharingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, "invalid request")
		return
	}
	level, err := model.ParseSharingLevel(req.SharingLevel)
	if err != nil {
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, "invalid sharing level")
		return
	}
	ds, err := h.datasets.UpdateSharingLevel(c.Request.Context(), c.Param("id"), service.UserRequester(getUser(c)), level)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, ds)
}

func (h *DatasetHandler) Delete(c *gin.Context) {
	if err := h.datasets.Delete(c.Request.Context(), c.Param("id"), service.UserRequester(getUser(c))); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

// sniffContentType detects the content type from the first bytes and rewinds.
func sniffContentType(file filestore.ReadSeekCloser) (string, error) {
	buf := make([]byte, 512)
	read, err := file.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return http.DetectContentType(buf[:read]), nil
}

func formatUploadLimit(bytes int64) string {
	const mb = 1024 * 1024
	if bytes <= 0 {
		return "0MB"
	}
	return strconv.FormatInt(max(bytes/mb, 1), 10) + "MB"
}
