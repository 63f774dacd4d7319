// Package openai adapts the shared OpenAI-compatible transport to OpenAI
// itself: the default base URL, bearer or browser-session auth, and the
// "gpt-4o-mini" fallback model.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/philo-groves/fiddlesticks/internal/credentials"
	"github.com/philo-groves/fiddlesticks/internal/fidprovider"
	"github.com/philo-groves/fiddlesticks/internal/providererr"
	"github.com/philo-groves/fiddlesticks/internal/transport"
)

const (
	DefaultBaseURL    = "https://api.openai.com/v1"
	modelsBaseURL     = "https://api.openai.com/v1/models"
	FallbackModel     = "gpt-4o-mini"
	sessionCookieName = "__Secure-next-auth.session-token"
)

// Adapter is the OpenAI ModelProvider.
type Adapter struct {
	transport  *transport.Transport
	httpClient *http.Client
	vault      *credentials.Vault
}

// New constructs an OpenAI adapter reading its credential from vault under
// the "openai" key. baseURL overrides the default when non-empty (used for
// OpenAI-compatible self-hosted gateways).
func New(vault *credentials.Vault, baseURL string, httpClient *http.Client) *Adapter {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	a := &Adapter{httpClient: httpClient, vault: vault}
	a.transport = transport.New(transport.Config{
		Provider:      fidprovider.OpenAI,
		BaseURL:       baseURL,
		FallbackModel: FallbackModel,
		HTTPClient:    httpClient,
		Authorize:     a.authorize,
	})
	return a
}

func (a *Adapter) authorize(req *http.Request) error {
	cred, err := a.vault.Get("openai")
	if err != nil {
		return providererr.Authentication("no OpenAI credential available: " + err.Error())
	}
	if cred.IsBrowserSession() {
		req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: cred.SessionToken})
		return nil
	}
	req.Header.Set("Authorization", "Bearer "+cred.APIKey)
	return nil
}

func (a *Adapter) ID() fidprovider.ProviderID { return fidprovider.OpenAI }

func (a *Adapter) Complete(ctx context.Context, req fidprovider.ModelRequest) (fidprovider.ModelResponse, error) {
	return a.transport.Complete(ctx, req)
}

func (a *Adapter) Stream(ctx context.Context, req fidprovider.ModelRequest) (<-chan fidprovider.StreamEvent, error) {
	return a.transport.Stream(ctx, req)
}

// ListModels queries OpenAI's /models endpoint and returns sorted ids.
func (a *Adapter) ListModels(ctx context.Context) ([]string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, modelsBaseURL, nil)
	if err != nil {
		return nil, providererr.Transport("building models request", err)
	}
	if err := a.authorize(httpReq); err != nil {
		return nil, err
	}
	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, providererr.Transport("listing models", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, providererr.New(providererr.ClassifyHTTPStatus(resp.StatusCode), fmt.Sprintf("list models failed: %s", string(body)))
	}
	var parsed struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, providererr.Transport("decoding models response", err)
	}
	ids := make([]string, 0, len(parsed.Data))
	for _, m := range parsed.Data {
		ids = append(ids, m.ID)
	}
	sort.Strings(ids)
	return ids, nil
}
