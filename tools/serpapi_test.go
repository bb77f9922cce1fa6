package tools_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/quantalogic/open-deepsearch/tools"
)

func TestSerpAPISearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gt.Equal(t, r.URL.Query().Get("q"), "quantum computing")
		gt.Equal(t, r.URL.Query().Get("engine"), "google")
		gt.Equal(t, r.URL.Query().Get("api_key"), "test-key")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"organic_results": [
				{"title": "First", "link": "https://example.com/1", "snippet": "snippet one"},
				{"title": "Second", "link": "https://example.com/2", "snippet": "snippet two"},
				{"title": "", "link": "https://example.com/skipped", "snippet": "no title"}
			]
		}`))
	}))
	defer server.Close()

	tool := tools.NewSerpAPISearch("test-key", tools.WithSerpAPIBaseURL(server.URL))
	gt.Equal(t, tool.Spec().Name, "search")

	result := gt.R1(tool.Run(context.Background(), map[string]any{"query": "quantum computing"})).NoError(t)
	gt.Equal(t, result["query"], "quantum computing")

	results := result["results"].([]tools.SearchResult)
	gt.Equal(t, len(results), 2)
	gt.Equal(t, results[0].Title, "First")
	gt.Equal(t, results[0].URL, "https://example.com/1")
	gt.Equal(t, results[1].Snippet, "snippet two")
}

func TestSerpAPISearchErrors(t *testing.T) {
	t.Run("missing query", func(t *testing.T) {
		tool := tools.NewSerpAPISearch("test-key")
		_, err := tool.Run(context.Background(), map[string]any{})
		gt.Error(t, err)
	})

	t.Run("api error message", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"error": "invalid API key"}`))
		}))
		defer server.Close()

		tool := tools.NewSerpAPISearch("bad-key", tools.WithSerpAPIBaseURL(server.URL))
		_, err := tool.Run(context.Background(), map[string]any{"query": "anything"})
		gt.Error(t, err)
	})

	t.Run("server failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		tool := tools.NewSerpAPISearch("test-key", tools.WithSerpAPIBaseURL(server.URL))
		_, err := tool.Run(context.Background(), map[string]any{"query": "anything"})
		gt.Error(t, err)
	})
}

func TestSerpAPISearchMaxResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"organic_results": [
				{"title": "A", "link": "https://example.com/a"},
				{"title": "B", "link": "https://example.com/b"},
				{"title": "C", "link": "https://example.com/c"}
			]
		}`))
	}))
	defer server.Close()

	tool := tools.NewSerpAPISearch("test-key", tools.WithSerpAPIBaseURL(server.URL))

	// max_results arrives as float64 after JSON decoding.
	result := gt.R1(tool.Run(context.Background(), map[string]any{
		"query":       "limited",
		"max_results": float64(2),
	})).NoError(t)

	results := result["results"].([]tools.SearchResult)
	gt.Equal(t, len(results), 2)
}
