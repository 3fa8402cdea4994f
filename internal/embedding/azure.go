package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/asteroid-belt/matchbox/internal/retry"
)

const (
	azureAPIVersion = "2024-02-01"

	// defaultCallTimeout bounds each network call. Retries are governed
	// separately by the retry policy.
	defaultCallTimeout = 30 * time.Second

	// maxErrorBody caps how much of an error response is kept for
	// retry-hint parsing and logging.
	maxErrorBody = 8 << 10
)

// AzureProvider implements Provider against an Azure OpenAI (or APIM
// fronted) embeddings deployment. It speaks REST directly because the
// retry policy needs the raw status, headers, and body of rate-limit
// responses, which SDK clients hide.
type AzureProvider struct {
	endpoint   string
	apiKey     string
	deployment string
	httpClient *http.Client
}

// NewAzure creates a provider for the given deployment. The endpoint may
// be passed with or without a trailing /openai segment.
func NewAzure(apiKey, endpoint, deployment string) *AzureProvider {
	endpoint = strings.TrimRight(endpoint, "/")
	endpoint = strings.TrimSuffix(endpoint, "/openai")
	if deployment == "" {
		deployment = "text-embedding-3-small"
	}

	return &AzureProvider{
		endpoint:   endpoint,
		apiKey:     apiKey,
		deployment: deployment,
		httpClient: &http.Client{Timeout: defaultCallTimeout},
	}
}

type azureRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type azureResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// CreateEmbeddings generates embeddings for a batch of texts.
func (p *AzureProvider) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	url := fmt.Sprintf("%s/openai/deployments/%s/embeddings?api-version=%s",
		p.endpoint, p.deployment, azureAPIVersion)

	payload, err := json.Marshal(azureRequest{Input: texts, Model: p.deployment})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("api-key", p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		// Timeouts and connection failures carry no response; the
		// retry policy treats them as transient.
		return nil, fmt.Errorf("embeddings request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &retry.HTTPError{
			StatusCode: resp.StatusCode,
			Header:     resp.Header,
			Body:       body,
		}
	}

	var parsed azureResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(parsed.Data))
	}

	// Realign by the index field; response order is not guaranteed.
	result := make([][]float32, len(texts))
	for _, data := range parsed.Data {
		if data.Index < 0 || data.Index >= len(result) {
			return nil, fmt.Errorf("embedding index %d out of range", data.Index)
		}
		result[data.Index] = data.Embedding
	}

	return result, nil
}

// Model returns the deployment name.
func (p *AzureProvider) Model() string {
	return p.deployment
}
