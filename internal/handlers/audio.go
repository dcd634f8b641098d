package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/dubpilot-backend/internal/logger"
	"github.com/yungbote/dubpilot-backend/internal/sse"
)

type AudioHandler struct {
	log *logger.Logger
	hub *sse.Hub
}

func NewAudioHandler(log *logger.Logger, hub *sse.Hub) *AudioHandler {
	return &AudioHandler{
		log: log.With("handler", "AudioHandler"),
		hub: hub,
	}
}

// Events streams per-segment synthesis results for one (project, language)
// pair.
func (h *AudioHandler) Events(c *gin.Context) {
	projectID, err := uuid.Parse(c.Query("projectId"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_project_id", fmt.Errorf("malformed or missing projectId"))
		return
	}
	language := c.Query("language")
	if language == "" {
		RespondError(c, http.StatusBadRequest, "missing_language", fmt.Errorf("language query parameter required"))
		return
	}

	client := h.hub.NewClient()
	h.hub.Subscribe(client, sse.AudioChannel(projectID, language))
	defer h.hub.CloseClient(client)

	h.hub.ServeHTTP(c.Writer, c.Request, client)
}
