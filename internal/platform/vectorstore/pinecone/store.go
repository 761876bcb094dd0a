// Package pinecone adapts vectorstore.Store to a hosted Pinecone index.
package pinecone

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/lumenmind/memoryengine/internal/platform/logger"
	"github.com/lumenmind/memoryengine/internal/platform/vectorstore"
	"github.com/lumenmind/memoryengine/internal/platform/vectorstore/pineconeclient"
)

type store struct {
	log       *logger.Logger
	pc        pineconeclient.Client
	indexName string
	indexHost string
	nsPrefix  string
}

func NewStore(log *logger.Logger, pc pineconeclient.Client) (vectorstore.Store, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if pc == nil {
		return nil, fmt.Errorf("pinecone client required")
	}

	indexName := strings.TrimSpace(os.Getenv("PINECONE_INDEX_NAME"))
	if indexName == "" {
		return nil, fmt.Errorf("missing PINECONE_INDEX_NAME")
	}
	host := strings.TrimSpace(os.Getenv("PINECONE_INDEX_HOST"))
	nsPrefix := strings.TrimSpace(os.Getenv("PINECONE_NAMESPACE_PREFIX"))
	if nsPrefix == "" {
		nsPrefix = "mem"
	}

	if host == "" {
		desc, err := pc.DescribeIndex(context.Background(), indexName)
		if err != nil {
			return nil, fmt.Errorf("pinecone describe_index failed: %w", err)
		}
		host = strings.TrimSpace(desc.Host)
		if host == "" {
			return nil, fmt.Errorf("pinecone describe_index returned empty host")
		}
		log.Warn("PINECONE_INDEX_HOST not set; resolved via describe_index (avoid this in production)",
			"index_name", indexName, "index_host", host)
	}

	return &store{
		log:       log.With("service", "PineconeStore"),
		pc:        pc,
		indexName: indexName,
		indexHost: host,
		nsPrefix:  nsPrefix,
	}, nil
}

func (s *store) Upsert(ctx context.Context, namespace string, vectors []vectorstore.Vector) error {
	if len(vectors) == 0 {
		return nil
	}
	req := pineconeclient.UpsertRequest{Namespace: s.qualify(namespace)}
	for _, v := range vectors {
		req.Vectors = append(req.Vectors, pineconeclient.Vector{ID: v.ID, Values: v.Values, Metadata: v.Metadata})
	}
	_, err := s.pc.UpsertVectors(ctx, s.indexHost, req)
	return err
}

func (s *store) QueryMatches(ctx context.Context, namespace string, q []float32, topK int, filter map[string]any) ([]vectorstore.Match, error) {
	resp, err := s.pc.Query(ctx, s.indexHost, pineconeclient.QueryRequest{
		Namespace: s.qualify(namespace),
		Vector:    q,
		TopK:      topK,
		Filter:    translatePineconeFilter(filter),
	})
	if err != nil {
		return nil, err
	}
	out := make([]vectorstore.Match, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		if strings.TrimSpace(m.ID) == "" {
			continue
		}
		out = append(out, vectorstore.Match{ID: m.ID, Score: m.Score})
	}
	return out, nil
}

func (s *store) QueryIDs(ctx context.Context, namespace string, q []float32, topK int, filter map[string]any) ([]string, error) {
	matches, err := s.QueryMatches(ctx, namespace, q, topK, filter)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.ID)
	}
	return out, nil
}

func (s *store) DeleteIDs(ctx context.Context, namespace string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pc.DeleteVectors(ctx, s.indexHost, pineconeclient.DeleteRequest{Namespace: s.qualify(namespace), IDs: ids})
	return err
}

func (s *store) qualify(ns string) string {
	ns = strings.TrimSpace(ns)
	if ns == "" {
		return s.nsPrefix
	}
	return s.nsPrefix + ":" + ns
}

// translatePineconeFilter rewrites the store-agnostic "<field>_gte" range
// convention into Pinecone's native $gte metadata filter operator; every
// other key passes through as an exact-match value.
func translatePineconeFilter(filter map[string]any) map[string]any {
	if len(filter) == 0 {
		return nil
	}
	out := make(map[string]any, len(filter))
	for k, v := range filter {
		if field, ok := strings.CutSuffix(k, "_gte"); ok {
			out[field] = map[string]any{"$gte": v}
			continue
		}
		out[k] = v
	}
	return out
}
