package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/loupe-ai/loupe/internal/llm"
	"github.com/loupe-ai/loupe/internal/log"
)

// stubTool returns canned output or fails on demand.
type stubTool struct {
	name   string
	output string
	err    error
	panics bool
}

func (s *stubTool) Definition() llm.ToolDef {
	return llm.ToolDef{Name: s.name, Description: "stub"}
}

func (s *stubTool) Invoke(context.Context, json.RawMessage) (string, error) {
	if s.panics {
		panic("boom")
	}
	return s.output, s.err
}

func newTestRegistry(tools ...Tool) *Registry {
	r := NewRegistry(log.NewNop())
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

func TestInvokeAllParity(t *testing.T) {
	registry := newTestRegistry(
		&stubTool{name: "a", output: "out_a"},
		&stubTool{name: "b", err: errors.New("network down")},
		&stubTool{name: "c", output: "out_c"},
	)

	for _, n := range []int{0, 1, 3} {
		t.Run(fmt.Sprintf("%d_requests", n), func(t *testing.T) {
			names := []string{"a", "b", "c"}[:n]
			requests := make([]Request, n)
			for i, name := range names {
				requests[i] = Request{Name: name}
			}

			results := registry.InvokeAll(context.Background(), requests)

			if len(results) != n {
				t.Fatalf("got %d results, want %d", len(results), n)
			}
			for i, result := range results {
				if result.Name != names[i] {
					t.Errorf("slot %d holds %q, want %q", i, result.Name, names[i])
				}
			}
		})
	}
}

func TestInvokeAllErrorMarker(t *testing.T) {
	registry := newTestRegistry(&stubTool{name: "flaky", err: errors.New("network down")})

	results := registry.InvokeAll(context.Background(), []Request{{Name: "flaky"}})

	want := "Search failed: network down."
	if results[0].Output != want {
		t.Errorf("output = %q, want %q", results[0].Output, want)
	}
}

func TestInvokeAllRecoversPanic(t *testing.T) {
	registry := newTestRegistry(
		&stubTool{name: "bomb", panics: true},
		&stubTool{name: "ok", output: "fine"},
	)

	results := registry.InvokeAll(context.Background(),
		[]Request{{Name: "bomb"}, {Name: "ok"}})

	if !strings.HasPrefix(results[0].Output, "Search failed:") {
		t.Errorf("panic output = %q, want failure marker", results[0].Output)
	}
	if results[1].Output != "fine" {
		t.Errorf("panic must not poison later slots, got %q", results[1].Output)
	}
}

func TestInvokeAllUnknownTool(t *testing.T) {
	registry := newTestRegistry()

	results := registry.InvokeAll(context.Background(), []Request{{Name: "missing"}})

	if !strings.HasPrefix(results[0].Output, "Search failed:") {
		t.Errorf("output = %q, want failure marker", results[0].Output)
	}
}

func TestInvokeAllEmptyOutputSentinel(t *testing.T) {
	registry := newTestRegistry(&stubTool{name: "quiet", output: ""})

	results := registry.InvokeAll(context.Background(), []Request{{Name: "quiet"}})

	if results[0].Output != NoResultsMessage {
		t.Errorf("output = %q, want %q", results[0].Output, NoResultsMessage)
	}
}

func TestRegisterReplacesDuplicate(t *testing.T) {
	registry := newTestRegistry(
		&stubTool{name: "dup", output: "old"},
		&stubTool{name: "dup", output: "new"},
	)

	defs := registry.Definitions()
	if len(defs) != 1 {
		t.Fatalf("got %d definitions, want 1", len(defs))
	}

	results := registry.InvokeAll(context.Background(), []Request{{Name: "dup"}})
	if results[0].Output != "new" {
		t.Errorf("output = %q, want replacement", results[0].Output)
	}
}

func TestDefinitionsOrder(t *testing.T) {
	registry := newTestRegistry(
		&stubTool{name: "first"},
		&stubTool{name: "second"},
		&stubTool{name: "third"},
	)

	defs := registry.Definitions()
	want := []string{"first", "second", "third"}
	for i, def := range defs {
		if def.Name != want[i] {
			t.Errorf("definition %d = %q, want %q", i, def.Name, want[i])
		}
	}
}
