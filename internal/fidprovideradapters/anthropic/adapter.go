// Package anthropic adapts the shared OpenAI-compatible transport to
// Anthropic's OpenAI-compatible chat-completions endpoint: its own base
// URL, x-api-key auth, and the "claude-3-5-sonnet-latest" fallback model.
package anthropic

import (
	"context"
	"net/http"
	"sort"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/philo-groves/fiddlesticks/internal/credentials"
	"github.com/philo-groves/fiddlesticks/internal/fidprovider"
	"github.com/philo-groves/fiddlesticks/internal/providererr"
	"github.com/philo-groves/fiddlesticks/internal/transport"
)

const (
	DefaultBaseURL = "https://api.anthropic.com/v1"
	apiVersion     = "2023-06-01"
)

// FallbackModel is typed with the SDK's own Model string alias so that a
// typo here would be a type error against the SDK, not a silent string.
var FallbackModel anthropicsdk.Model = "claude-3-5-sonnet-latest"

// knownModels is the statically known Claude family, used by ListModels
// since this adapter's OpenAI-compatible gateway exposes no /models route.
var knownModels = []anthropicsdk.Model{
	"claude-3-5-haiku-latest",
	FallbackModel,
	"claude-opus-4-0",
}

// Adapter is the Anthropic ModelProvider.
type Adapter struct {
	transport *transport.Transport
	vault     *credentials.Vault
}

func New(vault *credentials.Vault, baseURL string, httpClient *http.Client) *Adapter {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	a := &Adapter{vault: vault}
	a.transport = transport.New(transport.Config{
		Provider:      fidprovider.Anthropic,
		BaseURL:       baseURL,
		FallbackModel: string(FallbackModel),
		HTTPClient:    httpClient,
		Authorize:     a.authorize,
	})
	return a
}

func (a *Adapter) authorize(req *http.Request) error {
	cred, err := a.vault.Get("anthropic")
	if err != nil {
		return providererr.Authentication("no Anthropic credential available: " + err.Error())
	}
	if cred.IsBrowserSession() {
		return providererr.Authentication("Anthropic does not support browser-session credentials")
	}
	req.Header.Set("x-api-key", cred.APIKey)
	req.Header.Set("anthropic-version", apiVersion)
	return nil
}

func (a *Adapter) ID() fidprovider.ProviderID { return fidprovider.Anthropic }

func (a *Adapter) Complete(ctx context.Context, req fidprovider.ModelRequest) (fidprovider.ModelResponse, error) {
	return a.transport.Complete(ctx, req)
}

func (a *Adapter) Stream(ctx context.Context, req fidprovider.ModelRequest) (<-chan fidprovider.StreamEvent, error) {
	return a.transport.Stream(ctx, req)
}

// ListModels returns the statically known Claude model family, sorted.
func (a *Adapter) ListModels(_ context.Context) ([]string, error) {
	ids := make([]string, 0, len(knownModels))
	for _, m := range knownModels {
		ids = append(ids, string(m))
	}
	sort.Strings(ids)
	return ids, nil
}
