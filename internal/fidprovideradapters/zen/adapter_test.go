package zen

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/philo-groves/fiddlesticks/internal/credentials"
	"github.com/philo-groves/fiddlesticks/internal/fidprovider"
)

func TestID(t *testing.T) {
	a := New(credentials.NewVault(), "", nil)
	if a.ID() != fidprovider.OpenCodeZen {
		t.Errorf("ID() = %s, want %s", a.ID(), fidprovider.OpenCodeZen)
	}
}

func TestAuthorizeSetsBearerToken(t *testing.T) {
	vault := credentials.NewVault()
	vault.Set("opencode_zen", credentials.NewAPIKey("zen-key-123"), nil)

	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"model":"kimi-k2.5","choices":[{"finish_reason":"stop","message":{"role":"assistant","content":"hi"}}]}`))
	}))
	defer server.Close()

	a := New(vault, server.URL, nil)
	_, err := a.Complete(context.Background(), fidprovider.ModelRequest{
		Model:    "kimi-k2.5",
		Messages: []fidprovider.Message{{Role: fidprovider.RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if gotAuth != "Bearer zen-key-123" {
		t.Errorf("Authorization = %q, want Bearer zen-key-123", gotAuth)
	}
}

func TestAuthorizeRejectsBrowserSessionCredential(t *testing.T) {
	vault := credentials.NewVault()
	vault.Set("opencode_zen", credentials.NewBrowserSession("cookie"), nil)

	a := New(vault, "", nil)
	_, err := a.Complete(context.Background(), fidprovider.ModelRequest{
		Model:    "kimi-k2.5",
		Messages: []fidprovider.Message{{Role: fidprovider.RoleUser, Content: "hi"}},
	})
	if err == nil {
		t.Fatal("expected error for browser-session credential")
	}
}

func TestListModels(t *testing.T) {
	vault := credentials.NewVault()
	vault.Set("opencode_zen", credentials.NewAPIKey("zen-key-123"), nil)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			t.Errorf("path = %s, want /models", r.URL.Path)
		}
		w.Write([]byte(`{"data":[{"id":"kimi-k2.5"},{"id":"kimi-k1"}]}`))
	}))
	defer server.Close()

	a := New(vault, server.URL, nil)
	models, err := a.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	want := []string{"kimi-k1", "kimi-k2.5"}
	if len(models) != 2 || models[0] != want[0] || models[1] != want[1] {
		t.Fatalf("ListModels() = %v, want %v", models, want)
	}
}

func TestListModelsPropagatesHTTPError(t *testing.T) {
	vault := credentials.NewVault()
	vault.Set("opencode_zen", credentials.NewAPIKey("zen-key-123"), nil)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid token"}`))
	}))
	defer server.Close()

	a := New(vault, server.URL, nil)
	if _, err := a.ListModels(context.Background()); err == nil {
		t.Fatal("expected error for 401 response")
	}
}
