// Package rag implements the retrieval store: ingested documents are
// chunked, embedded through the local model server, persisted as a JSON
// document, and retrieved by cosine similarity at chat time.
package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	minChunkLength = 50
	maxResults     = 3
	scoreFloor     = 0.5
)

// Embedder produces embedding vectors for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Chunk is one ingested piece of knowledge.
type Chunk struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Content   string    `json:"content"`
	Embedding []float64 `json:"embedding"`
	CreatedAt time.Time `json:"createdAt"`
}

// GraphNode is the simplified chunk view served to visualization clients.
type GraphNode struct {
	ID      string `json:"id"`
	Source  string `json:"source"`
	Preview string `json:"preview"`
}

// Store is the JSON-backed vector store. Lookups are a linear scan;
// fine at local-first scale.
type Store struct {
	path     string
	embedder Embedder

	mu     sync.Mutex
	chunks []Chunk
}

// NewStore opens (or initializes) the store at path. A missing or broken
// backing file starts the store empty rather than failing.
func NewStore(path string, embedder Embedder) *Store {
	s := &Store{path: path, embedder: embedder}

	data, err := os.ReadFile(path)
	if err == nil {
		if err := json.Unmarshal(data, &s.chunks); err != nil {
			log.Printf(`{"level":"warn","message":"Knowledge store unreadable, starting empty","error":"%v"}`, err)
			s.chunks = nil
		}
	}
	log.Printf(`{"level":"info","message":"Knowledge store loaded","chunks":%d}`, len(s.chunks))

	return s
}

// AddDocument chunks content on blank lines, embeds each chunk, and
// persists the store. Chunks whose embedding fails are skipped. Returns
// the number of chunks considered.
func (s *Store) AddDocument(ctx context.Context, filename, content string) (int, error) {
	var chunks []string
	for _, c := range strings.Split(content, "\n\n") {
		if len(strings.TrimSpace(c)) > minChunkLength {
			chunks = append(chunks, c)
		}
	}

	for _, text := range chunks {
		embedding, err := s.embedder.Embed(ctx, text)
		if err != nil || len(embedding) == 0 {
			log.Printf(`{"level":"warn","message":"Skipping chunk, embedding failed","source":"%s"}`, filename)
			continue
		}
		s.mu.Lock()
		s.chunks = append(s.chunks, Chunk{
			ID:        uuid.New().String(),
			Source:    filename,
			Content:   text,
			Embedding: embedding,
			CreatedAt: time.Now().UTC(),
		})
		s.mu.Unlock()
	}

	if err := s.save(); err != nil {
		return len(chunks), err
	}
	return len(chunks), nil
}

// ConstructContext returns the concatenated top-scoring chunks for the
// query, or "" when nothing clears the relevance floor (including when
// the store is empty or the embedding call fails).
func (s *Store) ConstructContext(ctx context.Context, query string) string {
	s.mu.Lock()
	empty := len(s.chunks) == 0
	s.mu.Unlock()
	if empty {
		return ""
	}

	queryEmbedding, err := s.embedder.Embed(ctx, query)
	if err != nil || len(queryEmbedding) == 0 {
		return ""
	}

	type scored struct {
		chunk Chunk
		score float64
	}

	s.mu.Lock()
	results := make([]scored, 0, len(s.chunks))
	for _, chunk := range s.chunks {
		results = append(results, scored{chunk, cosine(chunk.Embedding, queryEmbedding)})
	}
	s.mu.Unlock()

	sort.Slice(results, func(i, j int) bool { return results[i].score > results[j].score })

	var parts []string
	for _, r := range results {
		if len(parts) == maxResults {
			break
		}
		if r.score <= scoreFloor {
			break
		}
		parts = append(parts, fmt.Sprintf("[Context from %s]:\n%s", r.chunk.Source, r.chunk.Content))
	}

	return strings.Join(parts, "\n\n")
}

// Stats returns the distinct document count and total chunk count.
func (s *Store) Stats() (documents, chunks int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sources := make(map[string]struct{})
	for _, c := range s.chunks {
		sources[c.Source] = struct{}{}
	}
	return len(sources), len(s.chunks)
}

// GraphData returns simplified nodes for visualization clients.
func (s *Store) GraphData() []GraphNode {
	s.mu.Lock()
	defer s.mu.Unlock()

	nodes := make([]GraphNode, 0, len(s.chunks))
	for _, c := range s.chunks {
		preview := c.Content
		if len(preview) > 50 {
			preview = preview[:50]
		}
		nodes = append(nodes, GraphNode{ID: c.ID, Source: c.Source, Preview: preview + "..."})
	}
	return nodes
}

func (s *Store) save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create knowledge dir: %w", err)
	}
	data, err := json.MarshalIndent(s.chunks, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode knowledge store: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write knowledge store: %w", err)
	}
	return nil
}

func cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
