// Package transport implements the single OpenAI-compatible chat-completions
// transport shared by every provider adapter. Adapters differ only in base
// URL, the RoundTripper that authorizes each request, provider identity
// stamped onto responses, and fallback model — the request encoding,
// response decoding, and SSE delta assembly all live here.
package transport

import (
	"context"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/philo-groves/fiddlesticks/internal/fidprovider"
	"github.com/philo-groves/fiddlesticks/internal/providererr"
)

// AuthorizeFunc mutates an outgoing request to add provider credentials. It
// is invoked once per HTTP request, inside a RoundTripper, so it applies
// uniformly to both the sync and streaming code paths.
type AuthorizeFunc func(req *http.Request) error

// Config parameterizes one adapter's use of the shared transport.
type Config struct {
	Provider      fidprovider.ProviderID
	BaseURL       string
	Authorize     AuthorizeFunc
	FallbackModel string
	HTTPClient    *http.Client
}

// Transport is the shared OpenAI-compatible request/response/SSE engine.
type Transport struct {
	cfg    Config
	client *openai.Client
}

// New builds a Transport for one adapter configuration.
func New(cfg Config) *Transport {
	base := cfg.HTTPClient
	if base == nil {
		base = http.DefaultClient
	}
	authorized := &http.Client{
		Transport:     &authorizingRoundTripper{next: base.Transport, authorize: cfg.Authorize},
		CheckRedirect: base.CheckRedirect,
		Jar:           base.Jar,
		Timeout:       base.Timeout,
	}

	oaiCfg := openai.DefaultConfig("")
	oaiCfg.BaseURL = cfg.BaseURL
	oaiCfg.HTTPClient = authorized

	return &Transport{cfg: cfg, client: openai.NewClientWithConfig(oaiCfg)}
}

type authorizingRoundTripper struct {
	next      http.RoundTripper
	authorize AuthorizeFunc
}

func (rt *authorizingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if rt.authorize != nil {
		if err := rt.authorize(req); err != nil {
			return nil, err
		}
	}
	next := rt.next
	if next == nil {
		next = http.DefaultTransport
	}
	return next.RoundTrip(req)
}

func (t *Transport) modelOrFallback(model string) string {
	if model == "" {
		return t.cfg.FallbackModel
	}
	return model
}

// Complete performs one non-streaming chat-completions call.
func (t *Transport) Complete(ctx context.Context, req fidprovider.ModelRequest) (fidprovider.ModelResponse, error) {
	if err := req.Validate(); err != nil {
		return fidprovider.ModelResponse{}, err
	}

	wireReq, err := encodeRequest(t.modelOrFallback(req.Model), req, false)
	if err != nil {
		return fidprovider.ModelResponse{}, err
	}

	resp, err := t.client.CreateChatCompletion(ctx, wireReq)
	if err != nil {
		return fidprovider.ModelResponse{}, classifyTransportError(err)
	}

	return decodeResponse(t.cfg.Provider, resp), nil
}

// Stream performs one streaming chat-completions call, decoding the SSE
// frame stream into StreamEvents on the returned channel.
func (t *Transport) Stream(ctx context.Context, req fidprovider.ModelRequest) (<-chan fidprovider.StreamEvent, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	wireReq, err := encodeRequest(t.modelOrFallback(req.Model), req, true)
	if err != nil {
		return nil, err
	}

	stream, err := t.client.CreateChatCompletionStream(ctx, wireReq)
	if err != nil {
		return nil, classifyTransportError(err)
	}

	events := make(chan fidprovider.StreamEvent)
	go runStreamDecoder(ctx, t.cfg.Provider, t.modelOrFallback(req.Model), stream, events)
	return events, nil
}

func classifyTransportError(err error) *providererr.Error {
	var apiErr *openai.APIError
	if asAPIError(err, &apiErr) {
		return providererr.Wrap(providererr.ClassifyHTTPStatus(apiErr.HTTPStatusCode), apiErr.Message, err)
	}
	return providererr.Transport(err.Error(), err)
}

func asAPIError(err error, target **openai.APIError) bool {
	apiErr, ok := err.(*openai.APIError)
	if !ok {
		return false
	}
	*target = apiErr
	return true
}
