package retrieval

import (
	"context"
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/wardlink/clinic-comms-platform/pkg/logging"
)

func TestVectorStoreAddAndSearch(t *testing.T) {
	client := &stubEmbeddingClient{}
	store := NewVectorStore(client, "text-embedding-3-small", logging.Default())

	filter := ScopeFilter{Namespace: "clinic"}
	client.nextVectors = [][]float32{
		{1, 0},
		{0, 1},
	}
	err := store.AddDocuments(context.Background(), filter, []Document{
		{Title: "Malaria prophylaxis", Text: "Guidance on malaria prevention."},
		{Title: "ANC visit schedule", Text: "Antenatal care visit cadence."},
	})
	if err != nil {
		t.Fatalf("AddDocuments error: %v", err)
	}

	client.nextVectors = [][]float32{{0.9, 0.1}}
	results, err := store.Search(context.Background(), "how do I prevent malaria?", filter, 2)
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Title != "Malaria prophylaxis" {
		t.Fatalf("expected malaria doc first, got %s", results[0].Title)
	}
	if results[0].Score <= results[1].Score {
		t.Fatalf("expected descending scores, got %v then %v", results[0].Score, results[1].Score)
	}
}

func TestVectorStoreIncludesGlobalDocs(t *testing.T) {
	client := &stubEmbeddingClient{}
	store := NewVectorStore(client, "text-embedding-3-small", logging.Default())

	client.nextVectors = [][]float32{{1, 0}}
	_ = store.AddDocuments(context.Background(), ScopeFilter{}, []Document{{Title: "Clinic hours", Text: "Open weekdays."}})

	client.nextVectors = [][]float32{{1, 0}}
	results, err := store.Search(context.Background(), "when are you open?", ScopeFilter{Namespace: "clinic", PatientPhone: "+15551234567"}, 1)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(results) != 1 || results[0].Title != "Clinic hours" {
		t.Fatalf("expected global doc returned, got %#v", results)
	}
}

func TestVectorStoreScopeIsolation(t *testing.T) {
	client := &stubEmbeddingClient{}
	store := NewVectorStore(client, "text-embedding-3-small", logging.Default())

	client.nextVectors = [][]float32{{1, 0}}
	_ = store.AddDocuments(context.Background(), ScopeFilter{Namespace: "patient", PatientPhone: "+15551111111"}, []Document{
		{Title: "Private note", Text: "Patient specific guidance."},
	})

	client.nextVectors = [][]float32{{1, 0}}
	results, err := store.Search(context.Background(), "guidance", ScopeFilter{Namespace: "patient", PatientPhone: "+15552222222"}, 3)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no cross-patient results, got %#v", results)
	}
}

func TestVectorStoreEmbeddingError(t *testing.T) {
	client := &stubEmbeddingClient{err: errors.New("boom")}
	store := NewVectorStore(client, "text-embedding-3-small", logging.Default())

	if err := store.AddDocuments(context.Background(), ScopeFilter{}, []Document{{Text: "a"}}); err == nil {
		t.Fatal("expected error when embedding fails")
	}
}

type stubEmbeddingClient struct {
	nextVectors [][]float32
	err         error
	calls       int
}

func (s *stubEmbeddingClient) CreateEmbeddings(ctx context.Context, request openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error) {
	s.calls++
	if s.err != nil {
		return openai.EmbeddingResponse{}, s.err
	}
	req := request.Convert()
	inputs, _ := req.Input.([]string)
	if len(s.nextVectors) < len(inputs) {
		return openai.EmbeddingResponse{}, errors.New("insufficient stub embeddings")
	}
	resp := openai.EmbeddingResponse{}
	for i := range inputs {
		resp.Data = append(resp.Data, openai.Embedding{Embedding: s.nextVectors[i]})
	}
	return resp, nil
}
