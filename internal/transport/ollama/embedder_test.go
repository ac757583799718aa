package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kailas-cloud/cityrag/internal/domain"
)

func newTestEmbedder(t *testing.T, h http.HandlerFunc) *Embedder {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	e, err := NewEmbedder(&Config{BaseURL: srv.URL, Model: "nomic-embed-text"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return e
}

func TestEmbed(t *testing.T) {
	e := newTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/embed" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req struct {
			Model string `json:"model"`
			Input string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "nomic-embed-text" || req.Input != "Título: Feria" {
			t.Errorf("unexpected request body: %+v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"nomic-embed-text","embeddings":[[0.5,0.25]],"prompt_eval_count":7}`))
	})

	res, err := e.Embed(context.Background(), "Título: Feria")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embedding) != 2 || res.Embedding[0] != 0.5 {
		t.Errorf("unexpected embedding: %v", res.Embedding)
	}
	if res.PromptTokens != 7 {
		t.Errorf("expected 7 prompt tokens, got %d", res.PromptTokens)
	}
}

func TestEmbed_Empty(t *testing.T) {
	e := newTestEmbedder(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"nomic-embed-text","embeddings":[]}`))
	})

	if _, err := e.Embed(context.Background(), "x"); !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected ErrEmbeddingProviderError, got %v", err)
	}
}

func TestEmbed_ServerError(t *testing.T) {
	e := newTestEmbedder(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model \"nomic-embed-text\" not found"}`))
	})

	_, err := e.Embed(context.Background(), "x")
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected ErrEmbeddingProviderError, got %v", err)
	}
}

func TestHealthCheck(t *testing.T) {
	e := newTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead || r.URL.Path != "/" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	if err := e.HealthCheck(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewEmbedder_InvalidURL(t *testing.T) {
	if _, err := NewEmbedder(&Config{BaseURL: "://bad", Model: "m"}); err == nil {
		t.Fatal("expected error for invalid url")
	}
}
