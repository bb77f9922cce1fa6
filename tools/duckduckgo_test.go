package tools_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/quantalogic/open-deepsearch/tools"
)

const ddgResultsPage = `<!DOCTYPE html>
<html>
<body>
	<div class="serp__results">
		<div class="result results_links results_links_deep web-result">
			<h2 class="result__title">
				<a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com%2Fquantum&amp;rut=abc">Quantum article</a>
			</h2>
			<a class="result__snippet" href="https://example.com/quantum">A breakthrough in <b>quantum</b> error correction.</a>
		</div>
		<div class="result results_links results_links_deep web-result">
			<h2 class="result__title">
				<a class="result__a" href="https://example.org/qubits">Qubit records</a>
			</h2>
			<a class="result__snippet" href="https://example.org/qubits">Logical qubit coherence doubled.</a>
		</div>
	</div>
</body>
</html>`

func TestDuckDuckGoSearch(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(ddgResultsPage))
	}))
	defer server.Close()

	tool := tools.NewDuckDuckGoSearch(tools.WithDuckDuckGoBaseURL(server.URL + "/"))
	gt.Equal(t, tool.Spec().Name, "duckduckgo_search")

	result := gt.R1(tool.Run(context.Background(), map[string]any{"query": "quantum computing"})).NoError(t)
	gt.Equal(t, gotQuery, "quantum computing")

	results := result["results"].([]tools.SearchResult)
	gt.Equal(t, len(results), 2)

	// Redirect links are unwrapped to the target URL.
	gt.Equal(t, results[0].URL, "https://example.com/quantum")
	gt.Equal(t, results[0].Title, "Quantum article")
	gt.Equal(t, results[0].Snippet, "A breakthrough in quantum error correction.")

	gt.Equal(t, results[1].URL, "https://example.org/qubits")
}

func TestDuckDuckGoSearchRetryOn429(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(ddgResultsPage))
	}))
	defer server.Close()

	tool := tools.NewDuckDuckGoSearch(tools.WithDuckDuckGoBaseURL(server.URL + "/"))

	result := gt.R1(tool.Run(context.Background(), map[string]any{"query": "rate limited"})).NoError(t)
	gt.Equal(t, attempts, 2)

	results := result["results"].([]tools.SearchResult)
	gt.Equal(t, len(results), 2)
}

func TestDuckDuckGoSearchMissingQuery(t *testing.T) {
	tool := tools.NewDuckDuckGoSearch()
	_, err := tool.Run(context.Background(), map[string]any{"query": "   "})
	gt.Error(t, err)
}

func TestDuckDuckGoSearchMaxResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(ddgResultsPage))
	}))
	defer server.Close()

	tool := tools.NewDuckDuckGoSearch(tools.WithDuckDuckGoBaseURL(server.URL + "/"))

	result := gt.R1(tool.Run(context.Background(), map[string]any{
		"query":       "limited",
		"max_results": 1,
	})).NoError(t)

	results := result["results"].([]tools.SearchResult)
	gt.Equal(t, len(results), 1)
}

func TestDuckDuckGoQueryEscaping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.URL.RawQuery
		decoded := gt.R1(url.QueryUnescape(raw)).NoError(t)
		gt.Equal(t, decoded, "q=a b&c")
		_, _ = w.Write([]byte(ddgResultsPage))
	}))
	defer server.Close()

	tool := tools.NewDuckDuckGoSearch(tools.WithDuckDuckGoBaseURL(server.URL + "/"))
	gt.R1(tool.Run(context.Background(), map[string]any{"query": "a b&c"})).NoError(t)
}
