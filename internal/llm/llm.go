// Package llm defines the language-model collaborator consumed by the agent
// pipeline, plus the Anthropic-backed production implementation.
//
// The pipeline only depends on the Client interface: one call that takes
// role-tagged multimodal messages and returns text blocks and tool-call
// requests. Retries, timeouts, and authentication belong to the
// implementation, not to the pipeline.
package llm

import (
	"context"
	"encoding/json"
)

// Role tags a message with its author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ContentBlock is one piece of message content: text, or a base64-encoded
// inline image.
type ContentBlock struct {
	Text string

	// ImageData holds a base64-encoded image when non-empty; Text is
	// ignored for image blocks.
	ImageData string

	// ImageMediaType is the MIME type of ImageData (e.g. "image/png").
	ImageMediaType string
}

// IsImage reports whether the block carries an inline image.
func (b ContentBlock) IsImage() bool {
	return b.ImageData != ""
}

// Message is a role-tagged sequence of content blocks.
type Message struct {
	Role    Role
	Content []ContentBlock
}

// NewTextMessage builds a single-block text message.
func NewTextMessage(role Role, text string) Message {
	return Message{Role: role, Content: []ContentBlock{{Text: text}}}
}

// TextBlock builds a text content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Text: text}
}

// ImageBlock builds a base64 inline-image content block.
func ImageBlock(mediaType, data string) ContentBlock {
	return ContentBlock{ImageMediaType: mediaType, ImageData: data}
}

// Schema is a JSON Schema describing a tool's input parameters.
type Schema struct {
	// Type must be "object".
	Type string `json:"type"`

	// Properties defines the tool's parameters.
	Properties map[string]PropertyDef `json:"properties"`

	// Required lists required parameter names.
	Required []string `json:"required,omitempty"`
}

// PropertyDef defines a single property in a tool schema.
type PropertyDef struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// ToolDef declares a callable tool to the model.
type ToolDef struct {
	Name        string
	Description string
	InputSchema Schema
}

// ToolCallRequest is a structured tool invocation emitted by the model.
type ToolCallRequest struct {
	// ID correlates the request with its result.
	ID string

	// Name is the registered tool name.
	Name string

	// Arguments is the raw JSON argument object.
	Arguments json.RawMessage
}

// Request is a single completion call.
type Request struct {
	Messages []Message
	System   string
	Tools    []ToolDef

	// ForceToolUse requires the model to call at least one tool
	// (tool_choice "any"). Only meaningful when Tools is non-empty.
	ForceToolUse bool

	MaxTokens   int
	Temperature float64
}

// Response is the model's reply: zero or more text blocks and zero or more
// tool-call requests, in emission order.
type Response struct {
	Texts      []string
	ToolCalls  []ToolCallRequest
	StopReason string
}

// FirstText returns the first text block, or "" if the response has none.
func (r *Response) FirstText() (string, bool) {
	if r == nil || len(r.Texts) == 0 {
		return "", false
	}
	return r.Texts[0], true
}

// Client is the LLM collaborator interface.
//
// A Complete error is always fatal to the calling pipeline stage; transient
// fault handling (retries, backoff) lives behind this interface.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}
