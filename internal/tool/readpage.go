package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"

	"github.com/loupe-ai/loupe/internal/llm"
)

// maxPageChars caps extracted page text so a single tool result cannot
// crowd out the rest of the context.
const maxPageChars = 8000

// ReadPage fetches a URL and extracts its readable article text.
type ReadPage struct {
	client *http.Client
}

// NewReadPage creates a read_page tool.
func NewReadPage(client *http.Client) *ReadPage {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &ReadPage{client: client}
}

func (r *ReadPage) Definition() llm.ToolDef {
	return llm.ToolDef{
		Name:        "read_page",
		Description: "Fetch a web page and return its main article text. Use after web_search to read a promising result in full.",
		InputSchema: llm.Schema{
			Type: "object",
			Properties: map[string]llm.PropertyDef{
				"url": {Type: "string", Description: "The absolute URL of the page to read."},
			},
			Required: []string{"url"},
		},
	}
}

func (r *ReadPage) Invoke(ctx context.Context, args json.RawMessage) (string, error) {
	var input struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return "", fmt.Errorf("parsing read_page arguments: %w", err)
	}

	pageURL, err := url.Parse(input.URL)
	if err != nil || pageURL.Scheme == "" || pageURL.Host == "" {
		return "", fmt.Errorf("read_page requires an absolute URL, got %q", input.URL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL.String(), nil)
	if err != nil {
		return "", fmt.Errorf("building page request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64)")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching %s: status %d", pageURL, resp.StatusCode)
	}

	article, err := readability.FromReader(resp.Body, pageURL)
	if err != nil {
		return "", fmt.Errorf("extracting article from %s: %w", pageURL, err)
	}

	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return "", nil
	}
	if len(text) > maxPageChars {
		text = text[:maxPageChars] + "\n[truncated]"
	}

	if article.Title != "" {
		return fmt.Sprintf("%s\n\n%s", article.Title, text), nil
	}
	return text, nil
}
