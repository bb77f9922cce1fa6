package tools

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	deepsearch "github.com/quantalogic/open-deepsearch"
	"golang.org/x/net/html"
)

const (
	fetchBodyLimit = 2 << 20
	fetchTextLimit = 64 * 1024
)

// ReadHTML is a tool that fetches a web page and extracts its readable text.
type ReadHTML struct {
	client *http.Client
}

// ReadHTMLOption is a function that configures a ReadHTML tool.
type ReadHTMLOption func(*ReadHTML)

// WithReadHTMLHTTPClient sets the HTTP client used for page requests.
func WithReadHTMLHTTPClient(client *http.Client) ReadHTMLOption {
	return func(t *ReadHTML) {
		t.client = client
	}
}

// NewReadHTML creates a page fetching tool.
func NewReadHTML(options ...ReadHTMLOption) *ReadHTML {
	tool := &ReadHTML{
		client: &http.Client{Timeout: 30 * time.Second},
	}
	for _, option := range options {
		option(tool)
	}
	return tool
}

func (t *ReadHTML) Spec() deepsearch.ToolSpec {
	return deepsearch.ToolSpec{
		Name:        "read_html",
		Description: "Fetch a web page and return its readable text content. Use this to read articles found via search.",
		Parameters: map[string]*deepsearch.Parameter{
			"url": {
				Type:        deepsearch.TypeString,
				Description: "The URL of the page to fetch",
			},
		},
		Required: []string{"url"},
	}
}

func (t *ReadHTML) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	pageURL, ok := args["url"].(string)
	if !ok || pageURL == "" {
		return nil, goerr.New("url is required")
	}
	if !strings.HasPrefix(pageURL, "http://") && !strings.HasPrefix(pageURL, "https://") {
		return nil, goerr.New("url must be http or https", goerr.V("url", pageURL))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create request")
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "page request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, goerr.New("unexpected status code", goerr.V("status", resp.StatusCode), goerr.V("url", pageURL))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, fetchBodyLimit))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read page body")
	}

	text, title, err := extractText(string(body))
	if err != nil {
		return nil, err
	}

	truncated := false
	if len(text) > fetchTextLimit {
		text = text[:fetchTextLimit]
		truncated = true
	}

	result := map[string]any{
		"url":   pageURL,
		"title": title,
		"text":  text,
	}
	if truncated {
		result["truncated"] = true
	}
	return result, nil
}

// extractText strips markup, scripts and styles and returns the page's text
// content and title.
func extractText(htmlContent string) (string, string, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return "", "", goerr.Wrap(err, "failed to parse HTML")
	}

	var sb strings.Builder
	var title string

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe":
				return
			case "title":
				if title == "" {
					title = getTextContent(n)
				}
				return
			}
		}

		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				sb.WriteString(text)
				sb.WriteString("\n")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(doc)
	return sb.String(), title, nil
}
