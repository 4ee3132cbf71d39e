// Package generation talks to the local model server (Ollama API).
//
// Generate deliberately never returns an error: any failure is converted
// into a diagnostic text that callers persist and display exactly like a
// normal answer, so orchestration code upstream treats the model as an
// infallible text producer.
package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultTimeout bounds a single generation call. Generous on purpose:
// a cold model may need minutes to load or download.
const DefaultTimeout = 5 * time.Minute

const alertHeader = "[SYSTEM ALERT]: Neural Core Request Failed."

// Generator is the consumer-side contract of the client.
type Generator interface {
	Generate(ctx context.Context, req Request) string
}

// Request describes one generation call.
type Request struct {
	Prompt  string
	System  string
	Context string   // retrieved reference text, prepended when non-empty
	Images  []string // base64 payloads; requires a vision-capable Model
	Model   string   // override; empty means the default text model
}

// Client is an Ollama API client.
type Client struct {
	baseURL      string
	defaultModel string
	embedModel   string
	timeout      time.Duration
	httpClient   *http.Client
	tracer       trace.Tracer
	breaker      *gobreaker.CircuitBreaker
}

type generateBody struct {
	Model  string   `json:"model"`
	Prompt string   `json:"prompt"`
	System string   `json:"system"`
	Stream bool     `json:"stream"`
	Images []string `json:"images,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// NewClient creates a generation client for the given Ollama base URL.
func NewClient(baseURL, defaultModel, embedModel string) *Client {
	settings := gobreaker.Settings{
		Name:        "neural-core",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("Circuit breaker %s changed from %s to %s", name, from, to)
		},
	}

	return &Client{
		baseURL:      baseURL,
		defaultModel: defaultModel,
		embedModel:   embedModel,
		timeout:      DefaultTimeout,
		httpClient:   &http.Client{},
		tracer:       otel.Tracer("generation-client"),
		breaker:      gobreaker.NewCircuitBreaker(settings),
	}
}

// Generate sends a prompt to the model server and returns the produced
// text. On any failure it returns a formatted diagnostic message instead.
func (c *Client) Generate(ctx context.Context, req Request) string {
	ctx, span := c.tracer.Start(ctx, "generation.generate")
	defer span.End()

	model := req.Model
	if model == "" {
		model = c.defaultModel
	}
	span.SetAttributes(
		attribute.String("model", model),
		attribute.Bool("has_context", req.Context != ""),
		attribute.Int("image_count", len(req.Images)),
	)

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.generateInternal(ctx, model, req)
	})
	if err != nil {
		span.RecordError(err)
		return c.diagnostic(model, err)
	}

	return result.(string)
}

func (c *Client) generateInternal(ctx context.Context, model string, req Request) (string, error) {
	prompt := req.Prompt
	if req.Context != "" {
		prompt = fmt.Sprintf(
			"Context information is below.\n---------------------\n%s\n---------------------\nGiven the context information and not prior knowledge, answer the query.\nQuery: %s",
			req.Context, req.Prompt,
		)
	}

	system := req.System
	if system == "" {
		system = "You are a helpful AI assistant."
	}

	body := generateBody{
		Model:  model,
		Prompt: prompt,
		System: system,
		Stream: false,
		Images: req.Images,
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/generate", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("model server returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var genResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	return genResp.Response, nil
}

// diagnostic formats a failure into user-visible text: fixed alert header,
// a failure-kind-specific explanation, and a fixed remediation recipe.
func (c *Client) diagnostic(model string, err error) string {
	// A "not found" error for an override model means the operator never
	// pulled it; the remediation is a pull of that model, not a run of the
	// default text model.
	if model != c.defaultModel && strings.Contains(err.Error(), "not found") {
		return fmt.Sprintf("❌ **Vision Model Missing**: Please run `ollama pull %s` in your terminal to enable vision capabilities.", model)
	}

	msg := alertHeader

	switch {
	case isTimeout(err):
		msg += "\n\nTimeout: The model is taking too long to load (or download)."
	case isRefused(err):
		msg += fmt.Sprintf("\n\nConnection Refused to %s. Is the model server running?", c.baseURL)
	default:
		msg += fmt.Sprintf("\n\nError Details: %s", err.Error())
	}

	return msg + fmt.Sprintf(
		"\n\nTroubleshooting:\n1. Open a terminal.\n2. Run: ollama run %s\n3. Wait for it to chat, then try here again.",
		c.defaultModel,
	)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isRefused(err error) bool {
	// An open breaker means recent calls could not reach the server, so it
	// reads the same as a refused connection to the operator.
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, gobreaker.ErrOpenState) ||
		errors.Is(err, gobreaker.ErrTooManyRequests)
}

type embedBody struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// Embed returns the embedding vector for the given text. Unlike Generate,
// failures here surface as errors: the RAG store degrades by skipping the
// chunk rather than storing a diagnostic.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	ctx, span := c.tracer.Start(ctx, "generation.embed")
	defer span.End()

	jsonData, err := json.Marshal(embedBody{Model: c.embedModel, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/embeddings", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to reach embeddings endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embeddings endpoint returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var embResp embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return embResp.Embedding, nil
}
