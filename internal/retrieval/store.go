package retrieval

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"

	openai "github.com/sashabaranov/go-openai"
	"github.com/wardlink/clinic-comms-platform/pkg/logging"
)

type embeddingClient interface {
	CreateEmbeddings(ctx context.Context, request openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// Document is one ingestable knowledge snippet.
type Document struct {
	Title     string
	Text      string
	SourceURL string
}

// Result is one ranked retrieval hit.
type Result struct {
	Title     string
	Text      string
	Score     float64
	SourceURL string
}

// ScopeFilter restricts a search to documents the requester may see.
// Patient-scoped documents are only visible when PatientPhone matches, so
// two patients asking the same question never share results.
type ScopeFilter struct {
	Namespace    string
	PatientPhone string
}

func (f ScopeFilter) key() string {
	return f.Namespace + "|" + f.PatientPhone
}

// Searcher is the query capability the decision engine depends on.
type Searcher interface {
	Search(ctx context.Context, query string, filter ScopeFilter, topK int) ([]Result, error)
}

// Ingestor describes how clinic knowledge is loaded.
type Ingestor interface {
	AddDocuments(ctx context.Context, filter ScopeFilter, docs []Document) error
}

// VectorStore keeps embeddings in memory and supports cosine retrieval.
type VectorStore struct {
	client embeddingClient
	model  string
	logger *logging.Logger

	mu        sync.RWMutex
	documents map[string][]storedDocument // keyed by scope filter ("" namespace for global)
}

type storedDocument struct {
	doc       Document
	embedding []float32
}

// NewVectorStore creates an in-memory store.
func NewVectorStore(client embeddingClient, model string, logger *logging.Logger) *VectorStore {
	if client == nil {
		panic("retrieval: embedding client cannot be nil")
	}
	if model == "" {
		model = "text-embedding-3-small"
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &VectorStore{
		client:    client,
		model:     model,
		logger:    logger,
		documents: make(map[string][]storedDocument),
	}
}

// AddDocuments embeds and stores the provided documents under the filter.
func (s *VectorStore) AddDocuments(ctx context.Context, filter ScopeFilter, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	inputs := make([]string, len(docs))
	for i, d := range docs {
		inputs[i] = d.Text
	}
	req := &openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(s.model),
		Input: inputs,
	}
	resp, err := s.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return err
	}
	if len(resp.Data) != len(docs) {
		return errors.New("retrieval: embedding response size mismatch")
	}

	key := filter.key()
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, item := range resp.Data {
		s.documents[key] = append(s.documents[key], storedDocument{
			doc:       docs[i],
			embedding: item.Embedding,
		})
	}
	return nil
}

// Search returns the topK documents visible to the filter, global docs
// included.
func (s *VectorStore) Search(ctx context.Context, query string, filter ScopeFilter, topK int) ([]Result, error) {
	if topK <= 0 {
		topK = 3
	}
	req := &openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(s.model),
		Input: []string{query},
	}
	resp, err := s.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, nil
	}
	queryVec := resp.Data[0].Embedding

	s.mu.RLock()
	defer s.mu.RUnlock()
	var candidates []storedDocument
	if docs, ok := s.documents[filter.key()]; ok {
		candidates = append(candidates, docs...)
	}
	if global := (ScopeFilter{}); filter != global {
		if docs, ok := s.documents[global.key()]; ok {
			candidates = append(candidates, docs...)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	results := make([]Result, 0, len(candidates))
	for _, cand := range candidates {
		results = append(results, Result{
			Title:     cand.doc.Title,
			Text:      cand.doc.Text,
			Score:     cosineSimilarity(queryVec, cand.embedding),
			SourceURL: cand.doc.SourceURL,
		})
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot float64
	var normA float64
	var normB float64
	for i := range a {
		dot += float64(a[i] * b[i])
		normA += float64(a[i] * a[i])
		normB += float64(b[i] * b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
