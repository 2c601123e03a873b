package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/evstore/internal/pkg/errcode"
	"github.com/xxxsen/evstore/internal/pkg/response"
	"github.com/xxxsen/evstore/internal/service"
)

type QueryHandler struct {
	retrieval *service.RetrievalService
}

func NewQueryHandler(retrieval *service.RetrievalService) *QueryHandler {
	return &QueryHandler{retrieval: retrieval}
}

type queryRequest struct {
	Query string `json:"query"`
	K     int    `json:"k"`
	Kind  string `json:"kind"`
}

type queryResult struct {
	Text       string      `json:"text"`
	Metadata   interface{} `json:"metadata"`
	Score      float32     `json:"score"`
	ChunkIndex int         `json:"chunk_index"`
}

func (h *QueryHandler) Query(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	res, err := h.retrieval.Retrieve(c.Request.Context(), service.RetrieveRequest{
		SessionID: c.Param("id"),
		QueryText: req.Query,
		K:         req.K,
		Kind:      req.Kind,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	results := make([]queryResult, 0, len(res.Results))
	for _, item := range res.Results {
		results = append(results, queryResult{
			Text:       item.Text,
			Metadata:   item.Metadata,
			Score:      item.Score,
			ChunkIndex: item.Index,
		})
	}
	response.Success(c, gin.H{
		"results": results,
		"took_ms": res.TookMilliseconds,
	})
}
