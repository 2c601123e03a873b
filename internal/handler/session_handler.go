package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/evstore/internal/pkg/response"
	"github.com/xxxsen/evstore/internal/service"
)

type SessionHandler struct {
	sessions *service.SessionService
}

func NewSessionHandler(sessions *service.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

func (h *SessionHandler) Info(c *gin.Context) {
	info, err := h.sessions.Info(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, info)
}

// Delete always reports success: deleting an unknown or already expired
// session is a no-op, not an error.
func (h *SessionHandler) Delete(c *gin.Context) {
	h.sessions.Delete(c.Request.Context(), c.Param("id"))
	response.Success(c, gin.H{"deleted": true})
}
