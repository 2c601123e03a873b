package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/evstore/internal/model"
	"github.com/xxxsen/evstore/internal/pkg/errcode"
	"github.com/xxxsen/evstore/internal/pkg/response"
	"github.com/xxxsen/evstore/internal/service"
)

type IngestHandler struct {
	ingest *service.IngestService
}

func NewIngestHandler(ingest *service.IngestService) *IngestHandler {
	return &IngestHandler{ingest: ingest}
}

type ingestChunk struct {
	Text   string `json:"text"`
	Source string `json:"source"`
	Page   string `json:"page"`
	Kind   string `json:"kind"`
}

type ingestRequest struct {
	SessionID string        `json:"session_id"`
	Chunks    []ingestChunk `json:"chunks"`
}

func (h *IngestHandler) Ingest(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	chunks := make([]model.IncomingChunk, 0, len(req.Chunks))
	for _, in := range req.Chunks {
		kind := in.Kind
		if kind == "" {
			kind = string(model.KindText)
		}
		chunks = append(chunks, model.IncomingChunk{
			Text: in.Text,
			Metadata: model.ChunkMetadata{
				Source: in.Source,
				Page:   in.Page,
				Kind:   model.ContentKind(kind),
			},
		})
	}
	res, err := h.ingest.Ingest(c.Request.Context(), service.IngestRequest{
		UserID:    getUserID(c),
		SessionID: req.SessionID,
		Chunks:    chunks,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{
		"session_id":      res.SessionID,
		"chunks_stored":   res.ChunksStored,
		"chunk_count":     res.ChunkCount,
		"quota_remaining": res.QuotaRemaining,
	})
}
