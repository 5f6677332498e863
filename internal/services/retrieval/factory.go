package retrieval

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/respondeo/internal/common"
	"github.com/ternarybob/respondeo/internal/interfaces"
)

// Registry resolves retriever names to configured instances. Rerank
// variants are materialized on demand by appending "_rerank" to any
// base retriever name when reranking is enabled.
type Registry struct {
	base       map[string]interfaces.Retriever
	encoder    interfaces.CrossEncoder
	candidates int
	rerank     bool
	logger     arbor.ILogger
}

// NewRegistry builds the retriever set from configuration
func NewRegistry(
	embedder interfaces.EmbeddingService,
	vectors interfaces.VectorStorage,
	index interfaces.LexicalIndex,
	config *common.Config,
	logger arbor.ILogger,
) *Registry {
	dense := NewDenseRetriever(embedder, vectors, config.Vector.CollectionName, logger)
	lexical := NewBM25Retriever(index)
	hybrid := NewHybridRetriever(dense, lexical, config.Query.DenseWeight, config.Query.BM25Weight, logger)

	registry := &Registry{
		base: map[string]interfaces.Retriever{
			dense.Name():   dense,
			lexical.Name(): lexical,
			hybrid.Name():  hybrid,
		},
		candidates: config.Rerank.TopKCandidates,
		rerank:     config.Rerank.Enabled,
		logger:     logger,
	}

	if config.Rerank.Enabled {
		if config.Rerank.Endpoint != "" {
			registry.encoder = NewHTTPCrossEncoder(config.Rerank.Endpoint, config.Rerank.Model, logger)
		} else {
			logger.Warn().Msg("Rerank enabled without an endpoint, using local overlap scorer")
			registry.encoder = OverlapScorer{}
		}
	}

	return registry
}

// Get resolves a retriever by name, or an error listing the valid
// names. With reranking enabled every base retriever is wrapped
// automatically, so "hybrid" resolves to "hybrid_rerank".
func (r *Registry) Get(name string) (interfaces.Retriever, error) {
	if base, ok := r.base[name]; ok {
		if r.rerank {
			return NewRerankRetriever(base, r.encoder, r.candidates, r.logger), nil
		}
		return base, nil
	}

	if baseName, found := strings.CutSuffix(name, "_rerank"); found {
		if !r.rerank {
			return nil, fmt.Errorf("retriever '%s' requires reranking to be enabled", name)
		}
		if base, ok := r.base[baseName]; ok {
			return NewRerankRetriever(base, r.encoder, r.candidates, r.logger), nil
		}
	}

	return nil, fmt.Errorf("unknown retriever '%s' (available: %s)", name, strings.Join(r.Names(), ", "))
}

// Names lists the resolvable retriever names, sorted
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.base)*2)
	for name := range r.base {
		names = append(names, name)
		if r.rerank {
			names = append(names, name+"_rerank")
		}
	}
	sort.Strings(names)
	return names
}
