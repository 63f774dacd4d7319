// Package ollama adapts the shared OpenAI-compatible transport to a local
// Ollama daemon: its own base URL, no credential requirement, and a
// "llama3.2" fallback model. Its model listing uses Ollama's native
// /api/tags endpoint rather than the OpenAI-compatible /v1/models route.
package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/philo-groves/fiddlesticks/internal/fidprovider"
	"github.com/philo-groves/fiddlesticks/internal/providererr"
	"github.com/philo-groves/fiddlesticks/internal/transport"
)

const (
	DefaultBaseURL = "http://localhost:11434/v1"
	DefaultHost    = "http://localhost:11434"
	FallbackModel  = "llama3.2"
)

// Adapter is the Ollama ModelProvider.
type Adapter struct {
	transport  *transport.Transport
	httpClient *http.Client
	host       string
}

// New constructs an Ollama adapter. host is the daemon root (no /v1
// suffix), used for the native model-listing endpoint.
func New(baseURL, host string, httpClient *http.Client) *Adapter {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if host == "" {
		host = DefaultHost
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	a := &Adapter{httpClient: httpClient, host: host}
	a.transport = transport.New(transport.Config{
		Provider:      fidprovider.Ollama,
		BaseURL:       baseURL,
		FallbackModel: FallbackModel,
		HTTPClient:    httpClient,
	})
	return a
}

func (a *Adapter) ID() fidprovider.ProviderID { return fidprovider.Ollama }

func (a *Adapter) Complete(ctx context.Context, req fidprovider.ModelRequest) (fidprovider.ModelResponse, error) {
	return a.transport.Complete(ctx, req)
}

func (a *Adapter) Stream(ctx context.Context, req fidprovider.ModelRequest) (<-chan fidprovider.StreamEvent, error) {
	return a.transport.Stream(ctx, req)
}

// ListModels queries Ollama's native /api/tags endpoint.
func (a *Adapter) ListModels(ctx context.Context) ([]string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, a.host+"/api/tags", nil)
	if err != nil {
		return nil, providererr.Transport("building tags request", err)
	}
	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, providererr.Unavailable("ollama daemon unreachable: " + err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, providererr.New(providererr.ClassifyHTTPStatus(resp.StatusCode), fmt.Sprintf("list models failed: %s", string(body)))
	}
	var parsed struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, providererr.Transport("decoding tags response", err)
	}
	names := make([]string, 0, len(parsed.Models))
	for _, m := range parsed.Models {
		names = append(names, m.Name)
	}
	sort.Strings(names)
	return names, nil
}
