package openai

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
	if a.ID() != fidprovider.OpenAI {
		t.Errorf("ID() = %s, want %s", a.ID(), fidprovider.OpenAI)
	}
}

func TestAuthorizeUsesBearerForAPIKey(t *testing.T) {
	vault := credentials.NewVault()
	vault.Set("openai", credentials.NewAPIKey("sk-test"), nil)

	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"model":"gpt-4o-mini","choices":[{"finish_reason":"stop","message":{"role":"assistant","content":"hi"}}]}`))
	}))
	defer server.Close()

	a := New(vault, server.URL, nil)
	_, err := a.Complete(context.Background(), fidprovider.ModelRequest{
		Model:    "gpt-4o-mini",
		Messages: []fidprovider.Message{{Role: fidprovider.RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("Authorization = %q, want Bearer sk-test", gotAuth)
	}
}

func TestAuthorizeUsesCookieForBrowserSession(t *testing.T) {
	vault := credentials.NewVault()
	vault.Set("openai", credentials.NewBrowserSession("session-cookie"), nil)

	var gotCookie string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie(sessionCookieName); err == nil {
			gotCookie = c.Value
		}
		w.Write([]byte(`{"model":"gpt-4o-mini","choices":[{"finish_reason":"stop","message":{"role":"assistant","content":"hi"}}]}`))
	}))
	defer server.Close()

	a := New(vault, server.URL, nil)
	_, err := a.Complete(context.Background(), fidprovider.ModelRequest{
		Model:    "gpt-4o-mini",
		Messages: []fidprovider.Message{{Role: fidprovider.RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if gotCookie != "session-cookie" {
		t.Errorf("session cookie = %q, want session-cookie", gotCookie)
	}
}

func TestAuthorizeFailsWithoutCredential(t *testing.T) {
	a := New(credentials.NewVault(), "", nil)
	httpReq, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "http://example.invalid", nil)
	if err := a.authorize(httpReq); err == nil {
		t.Fatal("expected error when no credential is stored")
	}
}
