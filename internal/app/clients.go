package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/lumenmind/memoryengine/internal/platform/cache"
	"github.com/lumenmind/memoryengine/internal/platform/envutil"
	"github.com/lumenmind/memoryengine/internal/platform/llm"
	"github.com/lumenmind/memoryengine/internal/platform/llm/openai"
	"github.com/lumenmind/memoryengine/internal/platform/logger"
	"github.com/lumenmind/memoryengine/internal/platform/neo4jdb"
	"github.com/lumenmind/memoryengine/internal/platform/vectorstore"
	"github.com/lumenmind/memoryengine/internal/platform/vectorstore/pinecone"
	"github.com/lumenmind/memoryengine/internal/platform/vectorstore/pineconeclient"
	"github.com/lumenmind/memoryengine/internal/platform/vectorstore/qdrant"

	"github.com/lumenmind/memoryengine/internal/domain"
)

// Clients holds the process-wide singletons §5 requires for the DB
// connection pool and the vector-store client, plus the LLM and cache
// clients every memory-domain component depends on.
type Clients struct {
	DB    *gorm.DB
	LLM   llm.Client
	Store vectorstore.Store
	Cache cache.Cache
	Neo4j *neo4jdb.Client
}

func wireClients(log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	var out Clients

	db, err := wireDB(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init postgres: %w", err)
	}
	out.DB = db

	llmClient, err := openai.NewClient(log)
	if err != nil {
		out.Close()
		return Clients{}, fmt.Errorf("init llm client: %w", err)
	}
	out.LLM = llmClient

	store, err := wireVectorStore(log, cfg)
	if err != nil {
		out.Close()
		return Clients{}, fmt.Errorf("init vector store: %w", err)
	}
	out.Store = store

	if strings.TrimSpace(envutil.GetEnv("REDIS_ADDR", "", log)) != "" {
		c, err := cache.NewRedisCache(log)
		if err != nil {
			out.Close()
			return Clients{}, fmt.Errorf("init redis cache: %w", err)
		}
		out.Cache = c
	} else {
		log.Warn("REDIS_ADDR not set; using in-process importance cache and orphan counter")
		out.Cache = cache.NewInProcessCache()
	}

	neo, err := neo4jdb.NewFromEnv(log)
	if err != nil {
		out.Close()
		return Clients{}, fmt.Errorf("init neo4j client: %w", err)
	}
	out.Neo4j = neo

	return out, nil
}

func wireDB(log *logger.Logger) (*gorm.DB, error) {
	dsn := envutil.GetEnv("DATABASE_URL", "", log)
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`).Error; err != nil {
		log.Warn("could not ensure uuid-ossp extension, continuing", "error", err)
	}
	if err := db.AutoMigrate(
		&domain.RawRecord{},
		&domain.Chunk{},
		&domain.Episode{},
		&domain.ChunkEpisode{},
		&domain.Thought{},
		&domain.EpisodeThought{},
		&domain.JobRun{},
	); err != nil {
		return nil, fmt.Errorf("automigrate: %w", err)
	}
	return db, nil
}

// wireVectorStore picks a backend by which environment variables are
// present (§4.4): Pinecone when PINECONE_API_KEY is set, otherwise Qdrant
// when QDRANT_URL is set. At least one of the two must be configured (when
// both are, Pinecone is used); the process refuses to start without a
// vector store (§7 Fatal).
func wireVectorStore(log *logger.Logger, cfg Config) (vectorstore.Store, error) {
	if apiKey := strings.TrimSpace(envutil.GetEnv("PINECONE_API_KEY", "", log)); apiKey != "" {
		pc, err := pineconeclient.New(log, pineconeclient.Config{
			APIKey:     apiKey,
			APIVersion: envutil.GetEnv("PINECONE_API_VERSION", "", log),
			BaseURL:    envutil.GetEnv("PINECONE_BASE_URL", "", log),
			Timeout:    30 * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("init pinecone client: %w", err)
		}
		return pinecone.NewStore(log, pc)
	}
	if url := strings.TrimSpace(envutil.GetEnv("QDRANT_URL", "", log)); url != "" {
		return qdrant.NewStore(log, qdrant.Config{
			URL:             url,
			Collection:      envutil.GetEnv("QDRANT_COLLECTION", "memoryengine", log),
			NamespacePrefix: envutil.GetEnv("QDRANT_NAMESPACE_PREFIX", "", log),
			VectorDim:       cfg.Tunables.EmbeddingDim,
		})
	}
	return nil, fmt.Errorf("neither PINECONE_API_KEY nor QDRANT_URL is set")
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Neo4j != nil {
		_ = c.Neo4j.Close(context.Background())
		c.Neo4j = nil
	}
	if c.Cache != nil {
		_ = c.Cache.Close()
		c.Cache = nil
	}
	if c.DB != nil {
		if sqlDB, err := c.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
		c.DB = nil
	}
	c.LLM = nil
	c.Store = nil
}
