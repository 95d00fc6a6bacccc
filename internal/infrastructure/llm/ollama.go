package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/moviesage/moviesage-api/internal/domain/repository"
	"github.com/moviesage/moviesage-api/internal/logging"
)

var _ repository.LLMClient = (*LocalOllamaClient)(nil)

// LocalOllamaClient implements repository.LLMClient by calling a local Ollama server.
type LocalOllamaClient struct {
	host       string
	model      string
	httpClient *http.Client
	options    *ollamaOptions
}

// Option customises a LocalOllamaClient.
type Option func(*LocalOllamaClient)

// WithTemperature fixes the sampling temperature of every request.
func WithTemperature(t float64) Option {
	return func(c *LocalOllamaClient) {
		c.ensureOptions().Temperature = &t
	}
}

// WithMaxTokens caps the number of generated tokens per request.
func WithMaxTokens(n int) Option {
	return func(c *LocalOllamaClient) {
		c.ensureOptions().NumPredict = &n
	}
}

// WithTimeout bounds every HTTP round trip to the Ollama server.
func WithTimeout(d time.Duration) Option {
	return func(c *LocalOllamaClient) {
		c.httpClient = &http.Client{Timeout: d}
	}
}

// NewLocalOllamaClient initializes a new client for a local Ollama instance.
func NewLocalOllamaClient(host string, model string, opts ...Option) *LocalOllamaClient {
	if host == "" {
		host = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3.2"
	}
	c := &LocalOllamaClient{
		host:       strings.TrimRight(host, "/"),
		model:      model,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *LocalOllamaClient) ensureOptions() *ollamaOptions {
	if c.options == nil {
		c.options = &ollamaOptions{}
	}
	return c.options
}

type ollamaOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	NumPredict  *int     `json:"num_predict,omitempty"`
}

type ollamaRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options *ollamaOptions `json:"options,omitempty"`
}

type ollamaResponse struct {
	Response string `json:"response"`
}

type ollamaPullRequest struct {
	Model  string `json:"model"`
	Stream bool   `json:"stream"`
}

// Generate sends a prompt to the local Ollama instance.
func (c *LocalOllamaClient) Generate(ctx context.Context, prompt string) (string, error) {
	logger := logging.For("ollama")
	logger.Debug().Str("model", c.model).Msg("Sending request to local Ollama")

	reqBody, err := json.Marshal(ollamaRequest{
		Model:   c.model,
		Prompt:  prompt,
		Stream:  false,
		Options: c.options,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal ollama request: %w", err)
	}

	resp, err := c.post(ctx, "/api/generate", reqBody)
	if err != nil {
		return "", fmt.Errorf("ollama request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama returned error status %d: %s", resp.StatusCode, string(body))
	}

	var ollamaResp ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
		return "", fmt.Errorf("failed to decode ollama response: %w", err)
	}

	logger.Debug().Str("model", c.model).Msg("Response received from local model")
	return strings.TrimSpace(ollamaResp.Response), nil
}

// Name returns the descriptive name of the client.
func (c *LocalOllamaClient) Name() string {
	return fmt.Sprintf("Ollama (%s) [Local]", c.model)
}

// Model returns the model identifier requests are sent with.
func (c *LocalOllamaClient) Model() string {
	return c.model
}

// Host returns the base URL of the Ollama server.
func (c *LocalOllamaClient) Host() string {
	return c.host
}

// PullModel pulls the configured model from the Ollama library.
func (c *LocalOllamaClient) PullModel(ctx context.Context) error {
	logger := logging.For("ollama")
	logger.Info().Str("model", c.model).Msg("Pulling model")

	reqBody, err := json.Marshal(ollamaPullRequest{
		Model:  c.model,
		Stream: false,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal ollama pull request: %w", err)
	}

	resp, err := c.post(ctx, "/api/pull", reqBody)
	if err != nil {
		return fmt.Errorf("ollama pull request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("ollama pull returned error status %d: %s", resp.StatusCode, string(body))
	}

	logger.Info().Str("model", c.model).Msg("Model pulled successfully")
	return nil
}

func (c *LocalOllamaClient) post(ctx context.Context, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.httpClient.Do(req)
}
