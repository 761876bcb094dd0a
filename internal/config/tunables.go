// Package config loads the §6 tunable parameters: a value set in the
// optional config/tunables.yaml wins, an environment variable is used for
// any field the file leaves unset (or when there is no file), and the
// compiled-in defaults below are the final fallback. The queue retry
// settings are read from the environment only.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lumenmind/memoryengine/internal/platform/envutil"
	"github.com/lumenmind/memoryengine/internal/platform/logger"
)

type Tunables struct {
	ChunkMin    int
	ChunkTarget int
	ChunkMax    int

	ImportanceThreshold  float64
	RetrievalFloor       float64
	RetrievalCertainty   float64
	RetrievalLimit       int

	PrimaryAttach      float64
	MultiAttach        float64
	SeedThreshold      float64
	MaxCandidates      int
	EpisodeTimeWindow  time.Duration

	ConsolidationThreshold int
	DBSCANEpsilon          float64
	DBSCANMinPoints        int
	MaxChunksPerEpisode    int

	MinEpisodesForThought int
	EpisodeSimMin         float64
	MinThoughtImportance  float64
	ThoughtCron           string

	VectorBatchSize int
	EmbeddingDim    int

	QueueMaxAttempts      int
	QueueRetryBackoffBase time.Duration
}

// yamlOverrides mirrors the subset of Tunables a config/tunables.yaml file
// may override; a nil field means "not set, keep the env/default value".
type yamlOverrides struct {
	ChunkMin    *int `yaml:"chunk_min"`
	ChunkTarget *int `yaml:"chunk_target"`
	ChunkMax    *int `yaml:"chunk_max"`

	ImportanceThreshold *float64 `yaml:"importance_threshold"`
	RetrievalFloor      *float64 `yaml:"retrieval_floor"`
	RetrievalCertainty  *float64 `yaml:"retrieval_certainty"`
	RetrievalLimit      *int     `yaml:"retrieval_limit"`

	PrimaryAttach     *float64 `yaml:"primary_attach"`
	MultiAttach       *float64 `yaml:"multi_attach"`
	SeedThreshold     *float64 `yaml:"seed_threshold"`
	MaxCandidates     *int     `yaml:"max_candidates"`
	EpisodeTimeWindow *string  `yaml:"episode_time_window"`

	ConsolidationThreshold *int     `yaml:"consolidation_threshold"`
	DBSCANEpsilon          *float64 `yaml:"dbscan_epsilon"`
	DBSCANMinPoints        *int     `yaml:"dbscan_min_points"`
	MaxChunksPerEpisode    *int     `yaml:"max_chunks_per_episode"`

	MinEpisodesForThought *int     `yaml:"min_episodes_for_thought"`
	EpisodeSimMin         *float64 `yaml:"episode_sim_min"`
	MinThoughtImportance  *float64 `yaml:"min_thought_importance"`
	ThoughtCron           *string  `yaml:"thought_cron"`

	VectorBatchSize *int `yaml:"vector_batch_size"`
	EmbeddingDim    *int `yaml:"embedding_dim"`
}

func LoadTunables(log *logger.Logger) Tunables {
	overrides := loadYAMLOverrides(log)

	t := Tunables{
		ChunkMin:    yamlIntOr(overrides.ChunkMin, envutil.GetEnvAsInt("MEM_CHUNK_MIN", 100, log)),
		ChunkTarget: yamlIntOr(overrides.ChunkTarget, envutil.GetEnvAsInt("MEM_CHUNK_TARGET", 800, log)),
		ChunkMax:    yamlIntOr(overrides.ChunkMax, envutil.GetEnvAsInt("MEM_CHUNK_MAX", 2000, log)),

		ImportanceThreshold: yamlFloatOr(overrides.ImportanceThreshold, envutil.GetEnvAsFloat("MEM_IMPORTANCE_THRESHOLD", 0.4, log)),
		RetrievalFloor:      yamlFloatOr(overrides.RetrievalFloor, envutil.GetEnvAsFloat("MEM_RETRIEVAL_FLOOR", 0.45, log)),
		RetrievalCertainty:  yamlFloatOr(overrides.RetrievalCertainty, envutil.GetEnvAsFloat("MEM_RETRIEVAL_CERTAINTY", 0.65, log)),
		RetrievalLimit:      yamlIntOr(overrides.RetrievalLimit, envutil.GetEnvAsInt("MEM_RETRIEVAL_LIMIT", 5, log)),

		PrimaryAttach:     yamlFloatOr(overrides.PrimaryAttach, envutil.GetEnvAsFloat("MEM_PRIMARY_ATTACH", 0.80, log)),
		MultiAttach:       yamlFloatOr(overrides.MultiAttach, envutil.GetEnvAsFloat("MEM_MULTI_ATTACH", 0.70, log)),
		SeedThreshold:     yamlFloatOr(overrides.SeedThreshold, envutil.GetEnvAsFloat("MEM_SEED_THRESHOLD", 0.60, log)),
		MaxCandidates:     yamlIntOr(overrides.MaxCandidates, envutil.GetEnvAsInt("MEM_MAX_CANDIDATES", 5, log)),
		EpisodeTimeWindow: envutil.GetEnvAsDuration("MEM_EPISODE_TIME_WINDOW", 7*24*time.Hour, log),

		ConsolidationThreshold: yamlIntOr(overrides.ConsolidationThreshold, envutil.GetEnvAsInt("MEM_CONSOLIDATION_THRESHOLD", 2, log)),
		DBSCANEpsilon:          yamlFloatOr(overrides.DBSCANEpsilon, envutil.GetEnvAsFloat("MEM_DBSCAN_EPSILON", 0.30, log)),
		DBSCANMinPoints:        yamlIntOr(overrides.DBSCANMinPoints, envutil.GetEnvAsInt("MEM_DBSCAN_MIN_POINTS", 2, log)),
		MaxChunksPerEpisode:    yamlIntOr(overrides.MaxChunksPerEpisode, envutil.GetEnvAsInt("MEM_MAX_CHUNKS_PER_EPISODE", 30, log)),

		MinEpisodesForThought: yamlIntOr(overrides.MinEpisodesForThought, envutil.GetEnvAsInt("MEM_MIN_EPISODES_FOR_THOUGHT", 2, log)),
		EpisodeSimMin:         yamlFloatOr(overrides.EpisodeSimMin, envutil.GetEnvAsFloat("MEM_EPISODE_SIM_MIN", 0.65, log)),
		MinThoughtImportance:  yamlFloatOr(overrides.MinThoughtImportance, envutil.GetEnvAsFloat("MEM_MIN_THOUGHT_IMPORTANCE", 0.5, log)),
		ThoughtCron:           envutil.GetEnv("MEM_THOUGHT_CRON", "0 3 * * *", log),

		VectorBatchSize: yamlIntOr(overrides.VectorBatchSize, envutil.GetEnvAsInt("MEM_VECTOR_BATCH_SIZE", 25, log)),
		EmbeddingDim:    yamlIntOr(overrides.EmbeddingDim, envutil.GetEnvAsInt("MEM_EMBEDDING_DIM", 1536, log)),

		QueueMaxAttempts:      envutil.GetEnvAsInt("MEM_QUEUE_MAX_ATTEMPTS", 3, log),
		QueueRetryBackoffBase: envutil.GetEnvAsDuration("MEM_QUEUE_RETRY_BACKOFF_BASE", 5*time.Second, log),
	}
	if overrides.EpisodeTimeWindow != nil {
		if d, err := time.ParseDuration(*overrides.EpisodeTimeWindow); err == nil {
			t.EpisodeTimeWindow = d
		} else if log != nil {
			log.Warn("invalid episode_time_window in tunables override file, ignoring", "error", err)
		}
	}
	if overrides.ThoughtCron != nil {
		t.ThoughtCron = *overrides.ThoughtCron
	}
	return t
}

func loadYAMLOverrides(log *logger.Logger) yamlOverrides {
	path := envutil.GetEnv("MEM_TUNABLES_FILE", "config/tunables.yaml", log)
	raw, err := os.ReadFile(path)
	if err != nil {
		return yamlOverrides{}
	}
	var out yamlOverrides
	if err := yaml.Unmarshal(raw, &out); err != nil {
		if log != nil {
			log.Warn("failed to parse tunables override file, ignoring", "path", path, "error", err)
		}
		return yamlOverrides{}
	}
	return out
}

func yamlIntOr(override *int, fallback int) int {
	if override != nil {
		return *override
	}
	return fallback
}

func yamlFloatOr(override *float64, fallback float64) float64 {
	if override != nil {
		return *override
	}
	return fallback
}
