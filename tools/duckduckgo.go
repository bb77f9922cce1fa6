package tools

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	deepsearch "github.com/quantalogic/open-deepsearch"
	"golang.org/x/net/html"
)

// ddgRateLimit enforces a global rate limit of 1 query per second across all
// DuckDuckGo instances and goroutines.
var ddgRateLimit struct {
	mu   sync.Mutex
	last time.Time
}

const ddgBaseURL = "https://html.duckduckgo.com/html/"

// DuckDuckGoSearch is a keyless web search tool that scrapes DuckDuckGo's
// HTML interface.
type DuckDuckGoSearch struct {
	baseURL string
	client  *http.Client
}

// DuckDuckGoOption is a function that configures a DuckDuckGoSearch.
type DuckDuckGoOption func(*DuckDuckGoSearch)

// WithDuckDuckGoBaseURL overrides the search endpoint. Mainly for testing.
func WithDuckDuckGoBaseURL(baseURL string) DuckDuckGoOption {
	return func(t *DuckDuckGoSearch) {
		t.baseURL = baseURL
	}
}

// WithDuckDuckGoHTTPClient sets the HTTP client used for search requests.
func WithDuckDuckGoHTTPClient(client *http.Client) DuckDuckGoOption {
	return func(t *DuckDuckGoSearch) {
		t.client = client
	}
}

// NewDuckDuckGoSearch creates a DuckDuckGo search tool with a modest timeout.
func NewDuckDuckGoSearch(options ...DuckDuckGoOption) *DuckDuckGoSearch {
	tool := &DuckDuckGoSearch{
		baseURL: ddgBaseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
	for _, option := range options {
		option(tool)
	}
	return tool
}

func (t *DuckDuckGoSearch) Spec() deepsearch.ToolSpec {
	return deepsearch.ToolSpec{
		Name:        "duckduckgo_search",
		Description: "Search the web using DuckDuckGo. No API key required. Returns a list of results with title, URL and snippet.",
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

func (t *DuckDuckGoSearch) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	query, ok := args["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return nil, goerr.New("query is required")
	}

	maxResults := resultLimit(args)

	// Global 1 QPS rate limit.
	ddgRateLimit.mu.Lock()
	if wait := time.Until(ddgRateLimit.last.Add(time.Second)); wait > 0 {
		ddgRateLimit.mu.Unlock()
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		ddgRateLimit.mu.Lock()
	}
	ddgRateLimit.last = time.Now()
	ddgRateLimit.mu.Unlock()

	body, err := t.fetch(ctx, query)
	if err != nil {
		return nil, err
	}

	results, err := parseDuckDuckGoResults(body, maxResults)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"query":   query,
		"results": results,
	}, nil
}

// fetch retrieves the search result page, backing off and retrying on 429.
func (t *DuckDuckGoSearch) fetch(ctx context.Context, query string) (string, error) {
	endpoint := t.baseURL + "?q=" + url.QueryEscape(query)

	delay := 1 * time.Second
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return "", goerr.Wrap(err, "failed to create request")
		}
		req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

		resp, err := t.client.Do(req)
		if err != nil {
			return "", goerr.Wrap(err, "search request failed")
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
			if delay < 30*time.Second {
				delay *= 2
			}
			continue
		}

		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return "", goerr.New("unexpected status code", goerr.V("status", resp.StatusCode))
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return "", goerr.Wrap(err, "failed to read response")
		}
		return string(body), nil
	}
}

// parseDuckDuckGoResults extracts search results from the DuckDuckGo HTML.
func parseDuckDuckGoResults(htmlContent string, maxResults int) ([]SearchResult, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse HTML")
	}

	var results []SearchResult

	var findResults func(*html.Node)
	findResults = func(n *html.Node) {
		if len(results) >= maxResults {
			return
		}

		if n.Type == html.ElementNode && n.Data == "div" {
			for _, attr := range n.Attr {
				if attr.Key == "class" && strings.Contains(attr.Val, "result") && strings.Contains(attr.Val, "results_links") {
					result := extractResult(n)
					if result.URL != "" && result.Title != "" {
						results = append(results, result)
					}
					return
				}
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			findResults(c)
		}
	}

	findResults(doc)
	return results, nil
}

// extractResult extracts a single search result from a result div.
func extractResult(n *html.Node) SearchResult {
	var result SearchResult

	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key == "class" {
					if strings.Contains(attr.Val, "result__a") {
						result.URL = getAttrValue(n, "href")
						result.Title = getTextContent(n)
					} else if strings.Contains(attr.Val, "result__snippet") {
						result.Snippet = getTextContent(n)
					}
				}
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}

	extract(n)

	// Unwrap DuckDuckGo redirect links.
	if strings.HasPrefix(result.URL, "//duckduckgo.com/l/?uddg=") {
		if decoded, err := url.QueryUnescape(strings.TrimPrefix(result.URL, "//duckduckgo.com/l/?uddg=")); err == nil {
			if idx := strings.Index(decoded, "&"); idx > 0 {
				decoded = decoded[:idx]
			}
			result.URL = decoded
		}
	}

	return result
}

// getAttrValue returns the value of an attribute.
func getAttrValue(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

// getTextContent returns all text content within a node.
func getTextContent(n *html.Node) string {
	var sb strings.Builder
	var getText func(*html.Node)
	getText = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(strings.TrimSpace(n.Data))
			sb.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			getText(c)
		}
	}
	getText(n)
	return strings.TrimSpace(sb.String())
}
