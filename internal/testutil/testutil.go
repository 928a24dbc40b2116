// Package testutil provides shared test infrastructure: a deterministic
// embedder, a scripted LLM client, and a pgvector-enabled postgres
// container.
package testutil

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"

	"github.com/loupe-ai/loupe/internal/llm"
)

// EmbeddingDim matches the embeddings table's vector dimension.
const EmbeddingDim = 1536

// MockEmbedder implements ai.Embedder with deterministic output: identical
// input text always produces the identical vector, so similarity is exact
// for exact matches and stable across runs.
type MockEmbedder struct {
	mu sync.Mutex

	// Err, when set, fails every Embed call.
	Err error

	// Vectors overrides the derived vector for specific input texts.
	Vectors map[string][]float32

	// CallCount and LastInput record usage for assertions.
	CallCount int
	LastInput string
}

func (m *MockEmbedder) Name() string { return "mock-embedder" }

func (m *MockEmbedder) Register(api.Registry) {}

func (m *MockEmbedder) Embed(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CallCount++
	if m.Err != nil {
		return nil, m.Err
	}

	resp := &ai.EmbedResponse{}
	for _, doc := range req.Input {
		text := ""
		if len(doc.Content) > 0 {
			text = doc.Content[0].Text
		}
		m.LastInput = text

		vec, ok := m.Vectors[text]
		if !ok {
			vec = deriveVector(text)
		}
		resp.Embeddings = append(resp.Embeddings, &ai.Embedding{Embedding: vec})
	}
	return resp, nil
}

// deriveVector expands a text hash into a unit-scale vector of
// EmbeddingDim components.
func deriveVector(text string) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	state := h.Sum64() | 1

	vec := make([]float32, EmbeddingDim)
	for i := range vec {
		state = state*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(state>>33))/float32(1<<31) - 0.5
	}
	return vec
}

// ScriptedLLM implements llm.Client, returning queued responses in call
// order. Safe for concurrent use.
type ScriptedLLM struct {
	mu sync.Mutex

	// Responses are returned one per Complete call. Calls past the queue
	// get an empty response.
	Responses []*llm.Response

	// Errs fails the call with the matching index; Err fails every call.
	Errs []error
	Err  error

	// Requests records every request received.
	Requests []llm.Request
}

func (s *ScriptedLLM) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := len(s.Requests)
	s.Requests = append(s.Requests, req)
	if s.Err != nil {
		return nil, s.Err
	}
	if i < len(s.Errs) && s.Errs[i] != nil {
		return nil, s.Errs[i]
	}
	if i >= len(s.Responses) {
		return &llm.Response{}, nil
	}
	return s.Responses[i], nil
}
