package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "multitimer/internal/errors"
	"multitimer/internal/middleware"
	"multitimer/internal/service"
)

const (
	yamlContentType = "application/yaml"
	maxImportBytes  = 1 << 20
)

type TransferHandler struct {
	transferService *service.TransferService
}

func NewTransferHandler(transferService *service.TransferService) *TransferHandler {
	return &TransferHandler{transferService: transferService}
}

func (h *TransferHandler) Export(c *gin.Context) {
	data, apiErr := h.transferService.Export(c.Request.Context(), middleware.UserID(c))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="timers.yaml"`)
	c.Data(http.StatusOK, yamlContentType, data)
}

func (h *TransferHandler) Import(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImportBytes)
	data, err := c.GetRawData()
	if err != nil {
		writeError(c, apperrors.BadRequest("invalid_document", "failed to read request body"))
		return
	}

	timers, apiErr := h.transferService.Import(c.Request.Context(), middleware.UserID(c), data)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"timers": timers})
}
