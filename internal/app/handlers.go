package app

import (
	httpH "github.com/lumenmind/memoryengine/internal/http/handlers"
	"github.com/lumenmind/memoryengine/internal/platform/logger"
)

// Handlers collects the thin Gin wrappers (§4.10.1) over the memory-domain
// components.
type Handlers struct {
	Health    *httpH.HealthHandler
	Memories  *httpH.MemoriesHandler
}

func wireHandlers(r Repos, s Services, log *logger.Logger) Handlers {
	return Handlers{
		Health:   httpH.NewHealthHandler(),
		Memories: httpH.NewMemoriesHandler(log, r.RawRecords, s.Pipeline, s.Retriever, s.Enqueuer),
	}
}
