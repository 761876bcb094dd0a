package app

import (
	"github.com/lumenmind/memoryengine/internal/memory/attacher"
	"github.com/lumenmind/memoryengine/internal/memory/consolidator"
	"github.com/lumenmind/memoryengine/internal/memory/importance"
	"github.com/lumenmind/memoryengine/internal/memory/ingest"
	"github.com/lumenmind/memoryengine/internal/memory/jobqueue"
	"github.com/lumenmind/memoryengine/internal/memory/retriever"
	"github.com/lumenmind/memoryengine/internal/memory/thoughtgen"
	"github.com/lumenmind/memoryengine/internal/platform/logger"
)

// Services collects every memory-domain component (§4) the HTTP handlers
// and worker handlers are built from.
type Services struct {
	Importance   importance.Evaluator
	Enqueuer     *jobqueue.Enqueuer
	Pipeline     *ingest.Pipeline
	Attacher     *attacher.Attacher
	Consolidator *consolidator.Consolidator
	ThoughtGen   *thoughtgen.Generator
	Retriever    *retriever.Retriever
}

func wireServices(cfg Config, clients Clients, r Repos, log *logger.Logger) Services {
	tunables := cfg.Tunables

	importanceEval := importance.New(log, clients.LLM, clients.Cache)
	enqueuer := jobqueue.New(r.JobRuns)

	pipeline := ingest.New(
		log, tunables, r.RawRecords, r.Chunks,
		importanceEval, clients.LLM, clients.Store, enqueuer,
	)

	attach := attacher.New(
		log, tunables, r.Chunks, r.Episodes,
		clients.LLM, clients.Store, clients.Cache, enqueuer,
	)

	consolidate := consolidator.New(
		log, tunables, r.Chunks, r.Episodes,
		clients.LLM, clients.Store, clients.Cache,
	)

	thoughtGen := thoughtgen.New(
		log, tunables, r.Episodes, r.Thoughts,
		clients.LLM, clients.Store,
	)

	retrieve := retriever.New(
		log, tunables, r.Chunks, r.Episodes, r.Thoughts,
		clients.LLM, clients.Store,
	)

	return Services{
		Importance:   importanceEval,
		Enqueuer:     enqueuer,
		Pipeline:     pipeline,
		Attacher:     attach,
		Consolidator: consolidate,
		ThoughtGen:   thoughtGen,
		Retriever:    retrieve,
	}
}
