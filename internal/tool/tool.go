// Package tool defines the agent's callable tools and the registry the
// pipeline invokes them through.
//
// Tool failures are never fatal to a run: InvokeAll converts every error and
// panic into an in-slot failure message so the caller always gets one result
// per request, in request order.
package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/loupe-ai/loupe/internal/llm"
)

// Messages substituted into a tool's result slot.
const (
	NoResultsMessage = "No results found."
)

// Tool is one callable tool. Invoke returns human-readable text for the
// result slot; empty output and errors are normalized by InvokeAll.
type Tool interface {
	Definition() llm.ToolDef
	Invoke(ctx context.Context, args json.RawMessage) (string, error)
}

// Request is one tool call the model asked for.
type Request struct {
	Name      string
	Arguments json.RawMessage
}

// Result is one tool invocation's output, slot-for-slot with the request
// that produced it.
type Result struct {
	Name   string `json:"tool_name"`
	Output string `json:"output"`
}

// Registry holds the available tools. Not safe for concurrent registration;
// register everything during setup.
type Registry struct {
	tools  []Tool
	byName map[string]Tool
	logger *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{byName: make(map[string]Tool), logger: logger}
}

// Register adds a tool. A duplicate name replaces the earlier registration.
func (r *Registry) Register(t Tool) {
	name := t.Definition().Name
	if _, exists := r.byName[name]; exists {
		for i, existing := range r.tools {
			if existing.Definition().Name == name {
				r.tools[i] = t
				break
			}
		}
	} else {
		r.tools = append(r.tools, t)
	}
	r.byName[name] = t
}

// Definitions returns the tool definitions in registration order, for the
// model's tool list.
func (r *Registry) Definitions() []llm.ToolDef {
	defs := make([]llm.ToolDef, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, t.Definition())
	}
	return defs
}

// InvokeAll runs the requested tools sequentially and returns one result per
// request, in request order. An unknown tool, an invocation error, a panic,
// or empty output all become in-slot messages; InvokeAll itself never fails.
func (r *Registry) InvokeAll(ctx context.Context, requests []Request) []Result {
	results := make([]Result, len(requests))
	for i, req := range requests {
		results[i] = Result{Name: req.Name, Output: r.invokeOne(ctx, req)}
	}
	return results
}

func (r *Registry) invokeOne(ctx context.Context, req Request) (result string) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("tool panicked", "tool", req.Name, "panic", rec)
			result = fmt.Sprintf("Search failed: %v.", rec)
		}
	}()

	t, ok := r.byName[req.Name]
	if !ok {
		return fmt.Sprintf("Search failed: unknown tool %q.", req.Name)
	}

	out, err := t.Invoke(ctx, req.Arguments)
	if err != nil {
		r.logger.Warn("tool failed", "tool", req.Name, "error", err)
		return fmt.Sprintf("Search failed: %v.", err)
	}
	if out == "" {
		return NoResultsMessage
	}
	return out
}
