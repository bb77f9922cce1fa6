package tools_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/quantalogic/open-deepsearch/tools"
)

func TestReadHTML(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<!DOCTYPE html>
<html>
<head>
	<title>Research findings</title>
	<style>body { color: red }</style>
	<script>alert("noise")</script>
</head>
<body>
	<h1>Findings</h1>
	<p>Quantum error correction reached a new milestone.</p>
	<noscript>enable javascript</noscript>
</body>
</html>`))
	}))
	defer server.Close()

	tool := tools.NewReadHTML()
	gt.Equal(t, tool.Spec().Name, "read_html")

	result := gt.R1(tool.Run(context.Background(), map[string]any{"url": server.URL})).NoError(t)

	gt.Equal(t, result["title"], "Research findings")
	text := result["text"].(string)
	gt.True(t, strings.Contains(text, "Findings"))
	gt.True(t, strings.Contains(text, "Quantum error correction reached a new milestone."))
	gt.False(t, strings.Contains(text, "alert"))
	gt.False(t, strings.Contains(text, "color: red"))
	gt.False(t, strings.Contains(text, "enable javascript"))

	_, truncated := result["truncated"]
	gt.False(t, truncated)
}

func TestReadHTMLTruncation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body><p>"))
		filler := strings.Repeat("lorem ipsum dolor sit amet ", 4096)
		_, _ = w.Write([]byte(filler))
		_, _ = w.Write([]byte("</p></body></html>"))
	}))
	defer server.Close()

	tool := tools.NewReadHTML()
	result := gt.R1(tool.Run(context.Background(), map[string]any{"url": server.URL})).NoError(t)

	gt.Equal(t, result["truncated"], true)
	gt.True(t, len(result["text"].(string)) <= 64*1024)
}

func TestReadHTMLErrors(t *testing.T) {
	t.Run("missing url", func(t *testing.T) {
		tool := tools.NewReadHTML()
		_, err := tool.Run(context.Background(), map[string]any{})
		gt.Error(t, err)
	})

	t.Run("non-http scheme", func(t *testing.T) {
		tool := tools.NewReadHTML()
		_, err := tool.Run(context.Background(), map[string]any{"url": "file:///etc/passwd"})
		gt.Error(t, err)
	})

	t.Run("not found", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		tool := tools.NewReadHTML()
		_, err := tool.Run(context.Background(), map[string]any{"url": server.URL})
		gt.Error(t, err)
	})
}
