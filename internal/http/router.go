package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/lumenmind/memoryengine/internal/http/handlers"
	httpMW "github.com/lumenmind/memoryengine/internal/http/middleware"
	"github.com/lumenmind/memoryengine/internal/platform/logger"
)

type RouterConfig struct {
	Log             *logger.Logger
	HealthHandler   *httpH.HealthHandler
	MemoriesHandler *httpH.MemoriesHandler
}

// NewRouter wires the thin Gin surface described in §4.10.1: a health
// check, and the four collaborator-facing memory endpoints behind
// middleware.RequireUserID.
func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("memoryengine"))
	r.Use(httpMW.AttachRequestID())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS())

	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.HealthCheck)
	}

	v1 := r.Group("/v1")
	v1.Use(httpMW.RequireUserID())
	{
		if cfg.MemoriesHandler != nil {
			v1.POST("/memories/ingest", cfg.MemoriesHandler.Ingest)
			v1.GET("/memories/retrieve", cfg.MemoriesHandler.Retrieve)
			v1.POST("/memories/consolidate", cfg.MemoriesHandler.Consolidate)
			v1.POST("/memories/thoughts/generate", cfg.MemoriesHandler.GenerateThoughts)
		}
	}

	return r
}
