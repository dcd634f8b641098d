package server

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/yungbote/dubpilot-backend/internal/handlers"
	"github.com/yungbote/dubpilot-backend/internal/logger"
)

type RouterConfig struct {
	AppEnv         string
	AllowedOrigins []string
	OtelEnabled    bool
}

func NewRouter(
	log *logger.Logger,
	cfg RouterConfig,
	jobs *handlers.JobsHandler,
	projects *handlers.ProjectsHandler,
	segments *handlers.SegmentsHandler,
	pipeline *handlers.PipelineHandler,
	audio *handlers.AudioHandler,
) *gin.Engine {
	if cfg.AppEnv == "prod" || cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.OtelEnabled {
		router.Use(otelgin.Middleware("dubpilot-backend"))
	}

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthcheck", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		api.POST("/jobs/:job_id/status", jobs.SetStatus)
		api.GET("/jobs/:job_id", jobs.GetJob)
		api.GET("/jobs/project/:project_id", jobs.GetJobsByProject)

		api.POST("/projects/:project_id/dispatch", projects.Dispatch)
		api.POST("/projects/:project_id/test-synthesis", segments.TestSynthesis)
		api.POST("/segments/:segment_id/tts", segments.RegenerateTTS)

		api.GET("/pipeline/:project_id/events", pipeline.Events)
		api.GET("/audio/events", audio.Events)
	}

	return router
}
