package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/dubpilot-backend/internal/logger"
	"github.com/yungbote/dubpilot-backend/internal/repos"
	"github.com/yungbote/dubpilot-backend/internal/services"
)

type JobsHandler struct {
	log        *logger.Logger
	dispatcher services.PipelineDispatcher
	jobSvc     services.JobService
}

func NewJobsHandler(log *logger.Logger, dispatcher services.PipelineDispatcher, jobSvc services.JobService) *JobsHandler {
	return &JobsHandler{
		log:        log.With("handler", "JobsHandler"),
		dispatcher: dispatcher,
		jobSvc:     jobSvc,
	}
}

// SetStatus is the worker callback endpoint. It always answers with the
// updated job representation; reconciliation problems downstream of the job
// write are logged, never surfaced to the worker.
func (h *JobsHandler) SetStatus(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("job_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_job_id", fmt.Errorf("malformed job id"))
		return
	}

	var req services.JobStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	job, err := h.dispatcher.HandleCallback(c.Request.Context(), jobID, req)
	if errors.Is(err, repos.ErrNotFound) {
		RespondError(c, http.StatusNotFound, "job_not_found", fmt.Errorf("job %s not found", jobID))
		return
	}
	if err != nil {
		h.log.Error("Callback handling failed", "jobID", jobID, "error", err)
		RespondError(c, http.StatusInternalServerError, "job_update_failed", err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *JobsHandler) GetJob(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("job_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_job_id", fmt.Errorf("malformed job id"))
		return
	}
	job, err := h.jobSvc.GetJob(c.Request.Context(), jobID)
	if errors.Is(err, repos.ErrNotFound) {
		RespondError(c, http.StatusNotFound, "job_not_found", fmt.Errorf("job %s not found", jobID))
		return
	}
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "job_fetch_failed", err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *JobsHandler) GetJobsByProject(c *gin.Context) {
	projectID, err := uuid.Parse(c.Param("project_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_project_id", fmt.Errorf("malformed project id"))
		return
	}
	jobs, err := h.jobSvc.ListByProject(c.Request.Context(), projectID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "job_fetch_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}
