package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/concept-rag/conceptrag/internal/resilience"
)

// Ollama API conventions, grounded on the teacher's internal/embed/ollama.go
// and ollama_types.go.
const (
	DefaultHost           = "http://localhost:11434"
	DefaultModel          = "embeddinggemma"
	connectTimeout        = 5 * time.Second
	poolSize              = 4
)

// OllamaConfig configures the HTTP-based embedder.
type OllamaConfig struct {
	Host      string
	Model     string
	BatchSize int

	// SkipHealthCheck skips the startup model-availability probe (for tests).
	SkipHealthCheck bool

	Executor resilience.EndpointConfig
}

// DefaultOllamaConfig matches spec.md section 4.5's embedding endpoint
// defaults: bulkhead 20 slots, 10s timeout, 3 attempts.
func DefaultOllamaConfig() OllamaConfig {
	return OllamaConfig{
		Host:      DefaultHost,
		Model:     DefaultModel,
		BatchSize: DefaultBatchSize,
		Executor: resilience.EndpointConfig{
			Name:             "embedding",
			BulkheadSlots:    20,
			Timeout:          10 * time.Second,
			FailureThreshold: 5,
			HalfOpenAfter:    30 * time.Second,
			Retry:            resilience.DefaultRetryConfig(),
		},
	}
}

// OllamaEmbedder calls Ollama's /api/embed HTTP endpoint, grounded on the
// teacher's OllamaEmbedder but with retry/timeout/circuit-breaking delegated
// entirely to a resilience.Executor instead of the teacher's hand-rolled
// doEmbedWithRetry loop (spec.md section 4.5).
type OllamaEmbedder struct {
	client    *http.Client
	transport *http.Transport
	config    OllamaConfig
	executor  *resilience.Executor
	modelName string

	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*OllamaEmbedder)(nil)

// NewOllamaEmbedder creates an embedder bound to a fixed 384-dimension
// model. Unlike the teacher's auto-detecting embedder, this module's store
// layer hard-requires 384 dimensions (invariant I6), so dimension
// auto-detection is replaced by a startup availability check.
func NewOllamaEmbedder(ctx context.Context, cfg OllamaConfig) (*OllamaEmbedder, error) {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Executor.Name == "" {
		cfg.Executor = DefaultOllamaConfig().Executor
	}

	transport := &http.Transport{
		MaxIdleConns:        poolSize,
		MaxIdleConnsPerHost: poolSize,
		MaxConnsPerHost:     poolSize * 2,
		IdleConnTimeout:     10 * time.Second,
	}
	client := &http.Client{Transport: transport}

	e := &OllamaEmbedder{
		client:    client,
		transport: transport,
		config:    cfg,
		executor:  resilience.NewExecutor(cfg.Executor),
		modelName: cfg.Model,
	}

	if !cfg.SkipHealthCheck {
		checkCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()
		if !e.probe(checkCtx) {
			transport.CloseIdleConnections()
			return nil, fmt.Errorf("ollama model %q not available at %s", cfg.Model, cfg.Host)
		}
	}

	return e, nil
}

func (e *OllamaEmbedder) probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.config.Host+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

type ollamaEmbedRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed generates an embedding for a single text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return make([]float32, Dimensions), nil
	}
	vectors, err := e.embedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for multiple texts in BatchSize-sized
// chunks, matching the teacher's batching convention.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, len(texts))
	var nonEmptyIdx []int
	var nonEmptyTexts []string
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			results[i] = make([]float32, Dimensions)
			continue
		}
		nonEmptyIdx = append(nonEmptyIdx, i)
		nonEmptyTexts = append(nonEmptyTexts, text)
	}

	for start := 0; start < len(nonEmptyTexts); start += e.config.BatchSize {
		end := start + e.config.BatchSize
		if end > len(nonEmptyTexts) {
			end = len(nonEmptyTexts)
		}

		vectors, err := e.embedBatch(ctx, nonEmptyTexts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embed batch [%d:%d]: %w", start, end, err)
		}
		for i, v := range vectors {
			results[nonEmptyIdx[start+i]] = v
		}
	}

	return results, nil
}

func (e *OllamaEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("embedder is closed")
	}

	return resilience.DoWithResult(ctx, e.executor, func(ctx context.Context) ([][]float32, error) {
		var input any
		if len(texts) == 1 {
			input = texts[0]
		} else {
			input = texts
		}

		body, err := json.Marshal(ollamaEmbedRequest{Model: e.modelName, Input: input})
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.Host+"/api/embed", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := e.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(resp.Body)
			return nil, fmt.Errorf("embedding failed with status %d: %s", resp.StatusCode, string(respBody))
		}

		var result ollamaEmbedResponse
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		if len(result.Embeddings) != len(texts) {
			return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(result.Embeddings))
		}
		for i, vec := range result.Embeddings {
			if len(vec) != Dimensions {
				return nil, fmt.Errorf("embedding %d has %d dimensions, want %d", i, len(vec), Dimensions)
			}
		}
		return result.Embeddings, nil
	})
}

// Dimensions returns the fixed embedding width.
func (e *OllamaEmbedder) Dimensions() int { return Dimensions }

// ModelName returns the configured model identifier.
func (e *OllamaEmbedder) ModelName() string { return e.modelName }

// Available reports whether Ollama is reachable and serving the model.
func (e *OllamaEmbedder) Available(ctx context.Context) bool {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return false
	}
	return e.probe(ctx)
}

// Close releases pooled HTTP connections.
func (e *OllamaEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.transport.CloseIdleConnections()
	return nil
}
