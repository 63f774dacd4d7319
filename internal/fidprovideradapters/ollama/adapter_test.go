package ollama

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/philo-groves/fiddlesticks/internal/fidprovider"
)

func TestID(t *testing.T) {
	a := New("", "", nil)
	if a.ID() != fidprovider.Ollama {
		t.Errorf("ID() = %s, want %s", a.ID(), fidprovider.Ollama)
	}
}

func TestCompleteRequiresNoCredential(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Error("ollama adapter should not set an Authorization header")
		}
		w.Write([]byte(`{"model":"llama3.2","choices":[{"finish_reason":"stop","message":{"role":"assistant","content":"hi"}}]}`))
	}))
	defer server.Close()

	a := New(server.URL, server.URL, nil)
	_, err := a.Complete(context.Background(), fidprovider.ModelRequest{
		Model:    "llama3.2",
		Messages: []fidprovider.Message{{Role: fidprovider.RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
}

func TestListModelsUsesNativeTagsEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("path = %s, want /api/tags", r.URL.Path)
		}
		w.Write([]byte(`{"models":[{"name":"llama3.2"},{"name":"codellama"}]}`))
	}))
	defer server.Close()

	a := New("", server.URL, nil)
	models, err := a.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	want := []string{"codellama", "llama3.2"}
	if len(models) != 2 || models[0] != want[0] || models[1] != want[1] {
		t.Fatalf("ListModels() = %v, want %v", models, want)
	}
}

func TestListModelsUnreachableDaemon(t *testing.T) {
	a := New("", "http://127.0.0.1:1", nil)
	if _, err := a.ListModels(context.Background()); err == nil {
		t.Fatal("expected error for unreachable ollama daemon")
	}
}

func TestListModelsPropagatesHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer server.Close()

	a := New("", server.URL, nil)
	if _, err := a.ListModels(context.Background()); err == nil {
		t.Fatal("expected error for 500 response")
	}
}
