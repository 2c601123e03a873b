package handler

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/evstore/internal/pkg/errcode"
	"github.com/xxxsen/evstore/internal/pkg/response"
	"github.com/xxxsen/evstore/internal/service"
)

type ExportHandler struct {
	export *service.ExportService
}

func NewExportHandler(export *service.ExportService) *ExportHandler {
	return &ExportHandler{export: export}
}

// Stream writes the session as JSONL directly to the response body, record
// by record, so arbitrarily large sessions never buffer server-side.
func (h *ExportHandler) Stream(c *gin.Context) {
	sessionID := c.Param("id")
	includeVectors, _ := strconv.ParseBool(c.DefaultQuery("vectors", "false"))

	c.Header("Content-Type", "application/x-ndjson")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", sessionID+".jsonl"))
	err := h.export.Stream(c.Request.Context(), sessionID, includeVectors, c.Writer)
	if err != nil {
		// headers may already be on the wire; a mid-stream failure can
		// only be logged and the connection cut short
		if c.Writer.Written() {
			logutil.GetLogger(c.Request.Context()).Error("export stream aborted",
				zap.String("session_id", sessionID),
				zap.Error(err),
			)
			c.Abort()
			return
		}
		handleError(c, err)
	}
}

type exportPushRequest struct {
	IncludeVectors bool `json:"include_vectors"`
}

func (h *ExportHandler) Push(c *gin.Context) {
	var req exportPushRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, errcode.ErrInvalid, "invalid request")
			return
		}
	}
	location, err := h.export.Push(c.Request.Context(), c.Param("id"), req.IncludeVectors)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"location": location})
}
