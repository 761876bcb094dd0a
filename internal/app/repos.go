package app

import (
	"github.com/lumenmind/memoryengine/internal/platform/logger"
	"github.com/lumenmind/memoryengine/internal/repos"
)

// Repos collects every repository the memory-domain components depend on.
type Repos struct {
	RawRecords repos.RawRecordRepo
	Chunks     repos.ChunkRepo
	Episodes   repos.EpisodeRepo
	Thoughts   repos.ThoughtRepo
	JobRuns    repos.JobRunRepo
}

func wireRepos(clients Clients, log *logger.Logger) Repos {
	return Repos{
		RawRecords: repos.NewRawRecordRepo(clients.DB, log),
		Chunks:     repos.NewChunkRepo(clients.DB, log),
		Episodes:   repos.NewEpisodeRepo(clients.DB, log),
		Thoughts:   repos.NewThoughtRepo(clients.DB, log),
		JobRuns:    repos.NewJobRunRepo(clients.DB, log),
	}
}
