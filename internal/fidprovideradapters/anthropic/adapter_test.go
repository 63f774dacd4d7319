package anthropic

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"

	"github.com/philo-groves/fiddlesticks/internal/credentials"
	"github.com/philo-groves/fiddlesticks/internal/fidprovider"
)

func TestIDAndListModels(t *testing.T) {
	a := New(credentials.NewVault(), "", nil)
	if a.ID() != fidprovider.Anthropic {
		t.Errorf("ID() = %s, want %s", a.ID(), fidprovider.Anthropic)
	}
	models, err := a.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if !sort.StringsAreSorted(models) {
		t.Errorf("ListModels() = %v, not sorted", models)
	}
	if len(models) != len(knownModels) {
		t.Fatalf("got %d models, want %d", len(models), len(knownModels))
	}
}

func TestAuthorizeSetsAnthropicHeaders(t *testing.T) {
	vault := credentials.NewVault()
	vault.Set("anthropic", credentials.NewAPIKey("sk-ant-test"), nil)

	var gotKey, gotVersion string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		gotVersion = r.Header.Get("anthropic-version")
		w.Write([]byte(`{"model":"claude-3-5-sonnet-latest","choices":[{"finish_reason":"stop","message":{"role":"assistant","content":"hi"}}]}`))
	}))
	defer server.Close()

	a := New(vault, server.URL, nil)
	_, err := a.Complete(context.Background(), fidprovider.ModelRequest{
		Model:    "claude-3-5-sonnet-latest",
		Messages: []fidprovider.Message{{Role: fidprovider.RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if gotKey != "sk-ant-test" {
		t.Errorf("x-api-key = %q, want sk-ant-test", gotKey)
	}
	if gotVersion != apiVersion {
		t.Errorf("anthropic-version = %q, want %q", gotVersion, apiVersion)
	}
}

func TestAuthorizeRejectsBrowserSessionCredential(t *testing.T) {
	vault := credentials.NewVault()
	vault.Set("anthropic", credentials.NewBrowserSession("cookie"), nil)

	a := New(vault, "", nil)
	_, err := a.Complete(context.Background(), fidprovider.ModelRequest{
		Model:    "claude-3-5-sonnet-latest",
		Messages: []fidprovider.Message{{Role: fidprovider.RoleUser, Content: "hi"}},
	})
	if err == nil {
		t.Fatal("expected error for browser-session credential")
	}
}

func TestAuthorizeFailsWithoutCredential(t *testing.T) {
	a := New(credentials.NewVault(), "", nil)
	_, err := a.Complete(context.Background(), fidprovider.ModelRequest{
		Model:    "claude-3-5-sonnet-latest",
		Messages: []fidprovider.Message{{Role: fidprovider.RoleUser, Content: "hi"}},
	})
	if err == nil {
		t.Fatal("expected error when no credential is stored")
	}
}
