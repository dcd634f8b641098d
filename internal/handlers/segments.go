package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/dubpilot-backend/internal/clients/redisq"
	"github.com/yungbote/dubpilot-backend/internal/logger"
	"github.com/yungbote/dubpilot-backend/internal/repos"
	"github.com/yungbote/dubpilot-backend/internal/services"
)

type SegmentTTSRequest struct {
	ProjectID          string `json:"project_id" binding:"required"`
	LanguageCode       string `json:"language_code" binding:"required"`
	VoiceSampleKey     string `json:"voice_sample_key"`
	PromptText         string `json:"prompt_text"`
	RefreshTranslation bool   `json:"refresh_translation"`
}

type TestSynthesisRequest struct {
	LanguageCode   string `json:"language_code" binding:"required"`
	Text           string `json:"text" binding:"required"`
	VoiceSampleKey string `json:"voice_sample_key"`
}

type SegmentsHandler struct {
	log     *logger.Logger
	gateway services.JobQueueGateway
}

func NewSegmentsHandler(log *logger.Logger, gateway services.JobQueueGateway) *SegmentsHandler {
	return &SegmentsHandler{
		log:     log.With("handler", "SegmentsHandler"),
		gateway: gateway,
	}
}

// RegenerateTTS queues a single-segment resynthesis job.
func (h *SegmentsHandler) RegenerateTTS(c *gin.Context) {
	segmentID, err := uuid.Parse(c.Param("segment_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_segment_id", fmt.Errorf("malformed segment id"))
		return
	}

	var req SegmentTTSRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	projectID, err := uuid.Parse(req.ProjectID)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_project_id", fmt.Errorf("malformed project id"))
		return
	}

	job, err := h.gateway.StartSegmentTTSJob(c.Request.Context(), projectID, segmentID, req.LanguageCode, services.SegmentTTSOptions{
		VoiceSampleKey:     req.VoiceSampleKey,
		PromptText:         req.PromptText,
		RefreshTranslation: req.RefreshTranslation,
	})
	if errors.Is(err, repos.ErrNotFound) {
		RespondError(c, http.StatusNotFound, "segment_not_found", err)
		return
	}
	if errors.Is(err, redisq.ErrQueuePublish) {
		RespondError(c, http.StatusServiceUnavailable, "queue_unavailable", err)
		return
	}
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "dispatch_failed", err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// TestSynthesis queues a throwaway synthesis to audition a voice sample.
func (h *SegmentsHandler) TestSynthesis(c *gin.Context) {
	projectID, err := uuid.Parse(c.Param("project_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_project_id", fmt.Errorf("malformed project id"))
		return
	}

	var req TestSynthesisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	job, err := h.gateway.StartTestSynthesisJob(c.Request.Context(), projectID, req.LanguageCode, req.Text, req.VoiceSampleKey)
	if errors.Is(err, redisq.ErrQueuePublish) {
		RespondError(c, http.StatusServiceUnavailable, "queue_unavailable", err)
		return
	}
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "dispatch_failed", err)
		return
	}
	c.JSON(http.StatusOK, job)
}
