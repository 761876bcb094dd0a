package app

import (
	"github.com/gin-gonic/gin"

	internalhttp "github.com/lumenmind/memoryengine/internal/http"
	"github.com/lumenmind/memoryengine/internal/platform/logger"
)

func wireRouter(h Handlers, log *logger.Logger) *gin.Engine {
	return internalhttp.NewRouter(internalhttp.RouterConfig{
		Log:             log,
		HealthHandler:   h.Health,
		MemoriesHandler: h.Memories,
	})
}
