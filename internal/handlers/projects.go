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
	"github.com/yungbote/dubpilot-backend/internal/types"
)

type DispatchRequest struct {
	// Languages narrows the fan-out; empty means every declared target language.
	Languages []string `json:"languages"`
}

type ProjectsHandler struct {
	log      *logger.Logger
	projects repos.ProjectRepo
	targets  repos.ProjectTargetRepo
	gateway  services.JobQueueGateway
}

func NewProjectsHandler(log *logger.Logger, projects repos.ProjectRepo, targets repos.ProjectTargetRepo, gateway services.JobQueueGateway) *ProjectsHandler {
	return &ProjectsHandler{
		log:      log.With("handler", "ProjectsHandler"),
		projects: projects,
		targets:  targets,
		gateway:  gateway,
	}
}

// Dispatch fans the project out into one queued job per target language.
// Partial enqueue failure still returns the jobs that made it; 503 only when
// every language failed.
func (h *ProjectsHandler) Dispatch(c *gin.Context) {
	projectID, err := uuid.Parse(c.Param("project_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_project_id", fmt.Errorf("malformed project id"))
		return
	}

	var req DispatchRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_body", err)
			return
		}
	}

	project, err := h.projects.GetByID(c.Request.Context(), nil, projectID)
	if errors.Is(err, repos.ErrNotFound) {
		RespondError(c, http.StatusNotFound, "project_not_found", fmt.Errorf("project %s not found", projectID))
		return
	}
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "project_fetch_failed", err)
		return
	}

	languages := req.Languages
	if len(languages) == 0 {
		languages = types.TargetLanguageList(project.TargetLanguages)
	}
	if len(languages) == 0 {
		RespondError(c, http.StatusBadRequest, "no_target_languages", fmt.Errorf("project declares no target languages"))
		return
	}

	h.ensureTargets(c, projectID, languages)

	jobs, err := h.gateway.FanOut(c.Request.Context(), project, languages)
	if errors.Is(err, redisq.ErrQueuePublish) {
		RespondError(c, http.StatusServiceUnavailable, "queue_unavailable", err)
		return
	}
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "dispatch_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

// ensureTargets creates missing pending target rows so stage callbacks always
// have a row to update.
func (h *ProjectsHandler) ensureTargets(c *gin.Context, projectID uuid.UUID, languages []string) {
	existing, err := h.targets.ListByProject(c.Request.Context(), nil, projectID)
	if err != nil {
		h.log.Warn("Target listing failed during dispatch", "projectID", projectID, "error", err)
		return
	}
	known := make(map[string]bool, len(existing))
	for _, target := range existing {
		known[target.LanguageCode] = true
	}

	var missing []*types.ProjectTarget
	for _, lang := range languages {
		if !known[lang] {
			missing = append(missing, &types.ProjectTarget{
				ProjectID:    projectID,
				LanguageCode: lang,
				Status:       types.TargetStatusPending,
				Progress:     0,
			})
		}
	}
	if len(missing) == 0 {
		return
	}
	if err := h.targets.Create(c.Request.Context(), nil, missing); err != nil {
		h.log.Warn("Target creation failed during dispatch", "projectID", projectID, "error", err)
	}
}
