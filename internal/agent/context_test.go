package agent

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/loupe-ai/loupe/internal/conversation"
	"github.com/loupe-ai/loupe/internal/retrieval"
	"github.com/loupe-ai/loupe/internal/tool"
)

func TestAssembleContextEmptySections(t *testing.T) {
	got := assembleContext("why?", nil, nil, nil, 150)

	want := `ORIGINAL QUESTION:
why?

AVAILABLE CONTEXT:

[TOOL RESULTS]
N/A

[DOCUMENT CONTEXT]
N/A

[CHAT HISTORY CONTEXT]
N/A`
	if got != want {
		t.Errorf("assembled context:\n%s\nwant:\n%s", got, want)
	}
}

func TestAssembleContextSections(t *testing.T) {
	toolResults := []tool.Result{{Name: "web_search", Output: "1. hit"}}
	docs := []retrieval.Item{
		{Text: "chunk one", SourceID: "/data/docs/guide.md"},
		{Text: "chunk two", SourceID: ""},
	}
	chat := []conversation.Snippet{{Role: "user", Content: "earlier question"}}

	got := assembleContext("q", toolResults, docs, chat, 150)

	for _, line := range []string{
		"[web_search]\n1. hit",
		"- [Source: guide.md] chunk one",
		"- [Source: Unknown] chunk two",
		"- [user] earlier question",
	} {
		if !strings.Contains(got, line) {
			t.Errorf("context missing %q:\n%s", line, got)
		}
	}
	if strings.Contains(got, "N/A") {
		t.Errorf("no section should be empty:\n%s", got)
	}
}

func TestAssembleContextDocsWithOnlyEmptyTextRenderNA(t *testing.T) {
	docs := []retrieval.Item{{Text: "", SourceID: "/data/a.md"}}
	got := assembleContext("q", nil, docs, nil, 150)
	if !strings.Contains(got, "[DOCUMENT CONTEXT]\nN/A") {
		t.Errorf("empty-text docs must render N/A:\n%s", got)
	}
}

func TestAssembleContextSnippetTruncation(t *testing.T) {
	long := strings.Repeat("x", 400)
	chat := []conversation.Snippet{{Role: "assistant", Content: long}}

	got := assembleContext("q", nil, nil, chat, 150)

	wantLine := "- [assistant] " + long[:150]
	if !strings.Contains(got, wantLine+"\n") && !strings.HasSuffix(got, wantLine) {
		t.Errorf("snippet not truncated to exactly 150 chars:\n%s", got)
	}
	if strings.Contains(got, long[:151]) {
		t.Error("snippet overflowed the 150-char budget")
	}
}

func TestAssembleContextSnippetBudgetCountsRunes(t *testing.T) {
	// 100 characters but 300 bytes; must survive a 150-character budget.
	snippet := strings.Repeat("日", 100)
	chat := []conversation.Snippet{{Role: "user", Content: snippet}}

	got := assembleContext("q", nil, nil, chat, 150)
	if !strings.Contains(got, "- [user] "+snippet) {
		t.Errorf("100-character snippet must not be truncated:\n%s", got)
	}
}

func TestAssembleContextSnippetTruncationKeepsValidUTF8(t *testing.T) {
	// The 150th character boundary falls inside a multi-byte rune when
	// counted in bytes.
	chat := []conversation.Snippet{{Role: "user", Content: "a" + strings.Repeat("日", 200)}}

	got := assembleContext("q", nil, nil, chat, 150)
	if !utf8.ValidString(got) {
		t.Error("assembled context contains invalid UTF-8")
	}
	if !strings.Contains(got, "- [user] a"+strings.Repeat("日", 149)) {
		t.Errorf("snippet not truncated to 150 characters:\n%s", got)
	}
	if strings.Contains(got, "a"+strings.Repeat("日", 150)) {
		t.Error("snippet overflowed the 150-character budget")
	}
}
