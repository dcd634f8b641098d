package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/dubpilot-backend/internal/logger"
	"github.com/yungbote/dubpilot-backend/internal/sse"
)

type PipelineHandler struct {
	log *logger.Logger
	hub *sse.Hub
}

func NewPipelineHandler(log *logger.Logger, hub *sse.Hub) *PipelineHandler {
	return &PipelineHandler{
		log: log.With("handler", "PipelineHandler"),
		hub: hub,
	}
}

// Events streams stage and target updates for one project until the client
// disconnects.
func (h *PipelineHandler) Events(c *gin.Context) {
	projectID, err := uuid.Parse(c.Param("project_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_project_id", fmt.Errorf("malformed project id"))
		return
	}

	client := h.hub.NewClient()
	h.hub.Subscribe(client, sse.ProjectChannel(projectID))
	defer h.hub.CloseClient(client)

	h.hub.ServeHTTP(c.Writer, c.Request, client)
}
