// Package tools provides the built-in research toolbox: web search, page
// fetching and workspace file access.
package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/m-mizutani/goerr/v2"
	deepsearch "github.com/quantalogic/open-deepsearch"
)

const (
	serpAPIBaseURL = "https://serpapi.com/search"

	defaultSearchResults = 10
	maxSearchResults     = 30
)

// SearchResult is a single result of a web search.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// SerpAPISearch is a Google search tool backed by the SerpAPI JSON API.
type SerpAPISearch struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// SerpAPIOption is a function that configures a SerpAPISearch.
type SerpAPIOption func(*SerpAPISearch)

// WithSerpAPIBaseURL overrides the SerpAPI endpoint. Mainly for testing.
func WithSerpAPIBaseURL(baseURL string) SerpAPIOption {
	return func(t *SerpAPISearch) {
		t.baseURL = baseURL
	}
}

// WithSerpAPIHTTPClient sets the HTTP client used for API requests.
func WithSerpAPIHTTPClient(client *http.Client) SerpAPIOption {
	return func(t *SerpAPISearch) {
		t.client = client
	}
}

// NewSerpAPISearch creates a Google search tool. It requires a SerpAPI key.
func NewSerpAPISearch(apiKey string, options ...SerpAPIOption) *SerpAPISearch {
	tool := &SerpAPISearch{
		apiKey:  apiKey,
		baseURL: serpAPIBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, option := range options {
		option(tool)
	}
	return tool
}

func (t *SerpAPISearch) Spec() deepsearch.ToolSpec {
	return deepsearch.ToolSpec{
		Name:        "search",
		Description: "Search Google for information on a topic. Returns a list of results with title, URL and snippet.",
		Parameters: map[string]*deepsearch.Parameter{
			"query": {
				Type:        deepsearch.TypeString,
				Description: "The search query",
			},
			"max_results": {
				Type:        deepsearch.TypeInteger,
				Description: "Maximum number of results to return (default: 10)",
				Default:     defaultSearchResults,
			},
		},
		Required: []string{"query"},
	}
}

type serpAPIResponse struct {
	OrganicResults []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic_results"`
	Error string `json:"error"`
}

func (t *SerpAPISearch) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, goerr.New("query is required")
	}

	maxResults := resultLimit(args)

	values := url.Values{}
	values.Set("q", query)
	values.Set("engine", "google")
	values.Set("num", strconv.Itoa(maxResults))
	values.Set("api_key", t.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"?"+values.Encode(), nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create request")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "search request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, goerr.New("unexpected status code", goerr.V("status", resp.StatusCode))
	}

	var body serpAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, goerr.Wrap(err, "failed to decode search response")
	}
	if body.Error != "" {
		return nil, goerr.New("search API error", goerr.V("message", body.Error))
	}

	results := make([]SearchResult, 0, len(body.OrganicResults))
	for _, r := range body.OrganicResults {
		if r.Link == "" || r.Title == "" {
			continue
		}
		results = append(results, SearchResult{
			Title:   r.Title,
			URL:     r.Link,
			Snippet: r.Snippet,
		})
		if len(results) >= maxResults {
			break
		}
	}

	return map[string]any{
		"query":   query,
		"results": results,
	}, nil
}

// resultLimit reads max_results from the arguments, clamped to a sane range.
func resultLimit(args map[string]any) int {
	maxResults := defaultSearchResults
	switch v := args["max_results"].(type) {
	case float64:
		if v > 0 {
			maxResults = int(v)
		}
	case int:
		if v > 0 {
			maxResults = v
		}
	}
	if maxResults > maxSearchResults {
		maxResults = maxSearchResults
	}
	return maxResults
}
