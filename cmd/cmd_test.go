package cmd

import (
	"strings"
	"testing"
)

func TestTruncateQuestion(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "short passes through", input: "what is pgvector?", want: "what is pgvector?"},
		{name: "empty", input: "", want: ""},
		{
			name:  "exactly at limit",
			input: strings.Repeat("a", 80),
			want:  strings.Repeat("a", 80),
		},
		{
			name:  "over limit gets ellipsis",
			input: strings.Repeat("b", 100),
			want:  strings.Repeat("b", 79) + "…",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncateQuestion(tt.input); got != tt.want {
				t.Errorf("truncateQuestion(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestRenderAnswerContainsAnswerText(t *testing.T) {
	out := renderAnswer("The capital of France is Paris.")
	if !strings.Contains(out, "Paris") {
		t.Errorf("rendered answer lost its content: %q", out)
	}
	if !strings.Contains(out, "Answer") {
		t.Errorf("rendered answer missing header: %q", out)
	}
}
