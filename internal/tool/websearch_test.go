package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

const resultsPage = `<html><body>
<div class="result">
  <a class="result__a" href="/l/?uddg=https%3A%2F%2Fexample.com%2Fone">First Result</a>
  <span class="result__url">example.com</span>
  <a class="result__snippet">Snippet one.</a>
</div>
<div class="result">
  <a class="result__a" href="https://example.org/two">Second Result</a>
  <span class="result__url">example.org</span>
  <a class="result__snippet">Snippet two.</a>
</div>
</body></html>`

func TestWebSearchParsesResults(t *testing.T) {
	ws := NewWebSearch(nil, 5)

	out, err := ws.parseResults(strings.NewReader(resultsPage))
	if err != nil {
		t.Fatalf("parseResults: %v", err)
	}

	want := "1. First Result\n" +
		"   Source: example.com\n" +
		"   URL: https://example.com/one\n" +
		"   Snippet one.\n"
	if !strings.Contains(out, want) {
		t.Errorf("output missing first result:\n%s", out)
	}
	if !strings.Contains(out, "2. Second Result") {
		t.Errorf("output missing second result:\n%s", out)
	}
}

func TestWebSearchRespectsMaxResults(t *testing.T) {
	ws := NewWebSearch(nil, 1)

	out, err := ws.parseResults(strings.NewReader(resultsPage))
	if err != nil {
		t.Fatalf("parseResults: %v", err)
	}
	if strings.Contains(out, "2. ") {
		t.Errorf("output exceeds max results:\n%s", out)
	}
}

func TestWebSearchEmptyPage(t *testing.T) {
	ws := NewWebSearch(nil, 5)

	out, err := ws.parseResults(strings.NewReader("<html><body></body></html>"))
	if err != nil {
		t.Fatalf("parseResults: %v", err)
	}
	if out != "" {
		t.Errorf("empty page must produce empty output, got %q", out)
	}
}

func TestWebSearchInvoke(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, resultsPage)
	}))
	defer srv.Close()

	ws := NewWebSearch(srv.Client(), 5)
	// Point the request at the test server by swapping the client's
	// transport target via a rewrite.
	ws.client.Transport = rewriteTransport{target: srv.URL, inner: srv.Client().Transport}

	out, err := ws.Invoke(context.Background(), json.RawMessage(`{"query":"anything"}`))
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !strings.Contains(out, "First Result") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestWebSearchQueriesNewsVerticalPastMonth(t *testing.T) {
	var form url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		form = r.PostForm
		fmt.Fprint(w, resultsPage)
	}))
	defer srv.Close()

	ws := NewWebSearch(srv.Client(), 5)
	ws.client.Transport = rewriteTransport{target: srv.URL, inner: srv.Client().Transport}

	if _, err := ws.Invoke(context.Background(), json.RawMessage(`{"query":"latest go release"}`)); err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	for key, want := range map[string]string{
		"q":   "latest go release",
		"iar": "news",
		"df":  "m",
		"kl":  "wt-wt",
	} {
		if got := form.Get(key); got != want {
			t.Errorf("form %q = %q, want %q", key, got, want)
		}
	}
}

func TestWebSearchInvokeRejectsEmptyQuery(t *testing.T) {
	ws := NewWebSearch(nil, 5)
	if _, err := ws.Invoke(context.Background(), json.RawMessage(`{"query":"  "}`)); err == nil {
		t.Fatal("expected error for empty query")
	}
}

func TestResolveRedirect(t *testing.T) {
	tests := []struct {
		name string
		href string
		want string
	}{
		{"redirect", "/l/?uddg=https%3A%2F%2Fexample.com%2Fpage", "https://example.com/page"},
		{"direct", "https://example.org/page", "https://example.org/page"},
		{"garbage", "::notaurl", "::notaurl"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveRedirect(tt.href); got != tt.want {
				t.Errorf("resolveRedirect(%q) = %q, want %q", tt.href, got, tt.want)
			}
		})
	}
}

// rewriteTransport redirects every request to the test server.
type rewriteTransport struct {
	target string
	inner  http.RoundTripper
}

func (t rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	redirected := *req
	redirected.URL.Scheme = "http"
	redirected.URL.Host = strings.TrimPrefix(t.target, "http://")
	inner := t.inner
	if inner == nil {
		inner = http.DefaultTransport
	}
	return inner.RoundTrip(&redirected)
}
