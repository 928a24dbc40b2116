package agent

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/loupe-ai/loupe/internal/conversation"
	"github.com/loupe-ai/loupe/internal/retrieval"
	"github.com/loupe-ai/loupe/internal/tool"
)

const emptySection = "N/A"

// assembleContext merges tool output, document hits, and chat-history hits
// into the single text block the final LLM call sees. Empty sections render
// the literal "N/A". Chat snippets are capped at snippetMax bytes per turn
// to bound prompt size.
func assembleContext(question string, toolResults []tool.Result, docs []retrieval.Item, chat []conversation.Snippet, snippetMax int) string {
	toolSection := emptySection
	if len(toolResults) > 0 {
		parts := make([]string, 0, len(toolResults))
		for _, r := range toolResults {
			parts = append(parts, fmt.Sprintf("[%s]\n%s", r.Name, r.Output))
		}
		toolSection = strings.Join(parts, "\n\n")
	}

	docSection := emptySection
	if len(docs) > 0 {
		var lines []string
		for _, d := range docs {
			if d.Text == "" {
				continue
			}
			lines = append(lines, fmt.Sprintf("- [Source: %s] %s", sourceName(d.SourceID), d.Text))
		}
		if len(lines) > 0 {
			docSection = strings.Join(lines, "\n")
		}
	}

	chatSection := emptySection
	if len(chat) > 0 {
		lines := make([]string, 0, len(chat))
		for _, c := range chat {
			lines = append(lines, fmt.Sprintf("- [%s] %s", c.Role, truncateRunes(c.Content, snippetMax)))
		}
		chatSection = strings.Join(lines, "\n")
	}

	return fmt.Sprintf(`ORIGINAL QUESTION:
%s

AVAILABLE CONTEXT:

[TOOL RESULTS]
%s

[DOCUMENT CONTEXT]
%s

[CHAT HISTORY CONTEXT]
%s`, question, toolSection, docSection, chatSection)
}

// sourceName reduces a source path or URL to its base name for labeling.
func sourceName(sourceID string) string {
	if sourceID == "" {
		return "Unknown"
	}
	return filepath.Base(sourceID)
}

// truncateRunes caps s at n characters without splitting a rune.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
