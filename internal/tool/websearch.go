package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/loupe-ai/loupe/internal/llm"
)

const searchEndpoint = "https://html.duckduckgo.com/html/"

// searchRecency limits results to the past month ("df" date filter).
const searchRecency = "m"

// WebSearch queries the DuckDuckGo HTML endpoint's news vertical and
// formats the top hits.
type WebSearch struct {
	client     *http.Client
	maxResults int
}

// NewWebSearch creates a web_search tool returning up to maxResults hits.
func NewWebSearch(client *http.Client, maxResults int) *WebSearch {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if maxResults < 1 {
		maxResults = 5
	}
	return &WebSearch{client: client, maxResults: maxResults}
}

func (w *WebSearch) Definition() llm.ToolDef {
	return llm.ToolDef{
		Name:        "web_search",
		Description: "Search recent news (past month) for current information. Use for questions about recent events or facts not in the local knowledge base.",
		InputSchema: llm.Schema{
			Type: "object",
			Properties: map[string]llm.PropertyDef{
				"query": {Type: "string", Description: "The search query."},
			},
			Required: []string{"query"},
		},
	}
}

func (w *WebSearch) Invoke(ctx context.Context, args json.RawMessage) (string, error) {
	var input struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return "", fmt.Errorf("parsing web_search arguments: %w", err)
	}
	if strings.TrimSpace(input.Query) == "" {
		return "", fmt.Errorf("web_search requires a query")
	}

	form := url.Values{
		"q":   {input.Query},
		"ia":  {"news"},
		"iar": {"news"},
		"df":  {searchRecency},
		"kl":  {"wt-wt"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, searchEndpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("building search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64)")

	resp, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("searching: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	return w.parseResults(resp.Body)
}

func (w *WebSearch) parseResults(body io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return "", fmt.Errorf("parsing search results: %w", err)
	}

	var b strings.Builder
	count := 0
	doc.Find("div.result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		title := strings.TrimSpace(s.Find("a.result__a").Text())
		href, _ := s.Find("a.result__a").Attr("href")
		snippet := strings.TrimSpace(s.Find(".result__snippet").Text())
		source := strings.TrimSpace(s.Find(".result__url").Text())
		if title == "" || href == "" {
			return true
		}

		count++
		fmt.Fprintf(&b, "%d. %s\n   Source: %s\n   URL: %s\n   %s\n",
			count, title, source, resolveRedirect(href), snippet)
		return count < w.maxResults
	})

	return b.String(), nil
}

// resolveRedirect unwraps DuckDuckGo's /l/?uddg= redirect links.
func resolveRedirect(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}
