package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/anthropics/anthropic-sdk-go"
	"golang.org/x/time/rate"
)

// ErrEmptyResponse indicates the API returned a message with no content.
var ErrEmptyResponse = errors.New("empty model response")

// AnthropicConfig configures the Anthropic-backed client.
type AnthropicConfig struct {
	// Model is the Anthropic model identifier.
	Model string

	// Limiter optionally rate-limits outgoing calls. Nil applies a
	// default of 5 req/s with burst 10.
	Limiter *rate.Limiter

	// Logger for request/response debugging (nil = slog.Default()).
	Logger *slog.Logger
}

// Anthropic implements Client on the Anthropic Messages API.
// The API key is read from ANTHROPIC_API_KEY by the SDK.
//
// Safe for concurrent use.
type Anthropic struct {
	client  anthropic.Client
	model   anthropic.Model
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewAnthropic creates an Anthropic-backed client.
func NewAnthropic(cfg AnthropicConfig) (*Anthropic, error) {
	if cfg.Model == "" {
		return nil, errors.New("model is required")
	}

	limiter := cfg.Limiter
	if limiter == nil {
		limiter = rate.NewLimiter(5, 10)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Anthropic{
		client:  anthropic.NewClient(),
		model:   anthropic.Model(cfg.Model),
		limiter: limiter,
		logger:  logger,
	}, nil
}

// Complete implements Client.
func (a *Anthropic) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	params := anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: int64(req.MaxTokens),
		Messages:  convertMessages(req.Messages),
	}

	if req.System != "" {
		params.System = []anthropic.TextBlockParam{
			{Type: "text", Text: req.System},
		}
	}

	params.Temperature = anthropic.Float(req.Temperature)

	if len(req.Tools) > 0 {
		params.Tools = convertTools(req.Tools)
		if req.ForceToolUse {
			params.ToolChoice = anthropic.ToolChoiceUnionParam{
				OfAny: &anthropic.ToolChoiceAnyParam{},
			}
		}
	}

	a.logger.Debug("anthropic request",
		"model", a.model,
		"messages", len(req.Messages),
		"tools", len(req.Tools),
		"force_tool_use", req.ForceToolUse,
	)

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic messages: %w", err)
	}
	if len(msg.Content) == 0 {
		return nil, ErrEmptyResponse
	}

	return convertResponse(msg), nil
}

// convertMessages maps llm messages to Anthropic message params.
func convertMessages(messages []Message) []anthropic.MessageParam {
	params := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(msg.Content))
		for _, block := range msg.Content {
			if block.IsImage() {
				blocks = append(blocks, anthropic.NewImageBlockBase64(block.ImageMediaType, block.ImageData))
				continue
			}
			blocks = append(blocks, anthropic.NewTextBlock(block.Text))
		}
		params = append(params, anthropic.MessageParam{
			Role:    anthropic.MessageParamRole(msg.Role),
			Content: blocks,
		})
	}
	return params
}

// convertTools maps tool definitions to Anthropic tool params.
func convertTools(defs []ToolDef) []anthropic.ToolUnionParam {
	tools := make([]anthropic.ToolUnionParam, 0, len(defs))
	for _, def := range defs {
		properties := make(map[string]any, len(def.InputSchema.Properties))
		for name, prop := range def.InputSchema.Properties {
			p := map[string]any{"type": prop.Type}
			if prop.Description != "" {
				p["description"] = prop.Description
			}
			if len(prop.Enum) > 0 {
				p["enum"] = prop.Enum
			}
			properties[name] = p
		}

		inputSchema := anthropic.ToolInputSchemaParam{
			Type:       "object",
			Properties: properties,
		}
		if len(def.InputSchema.Required) > 0 {
			inputSchema.Required = def.InputSchema.Required
		}

		toolParam := anthropic.ToolParam{
			Name:        def.Name,
			Description: anthropic.String(def.Description),
			InputSchema: inputSchema,
		}
		tools = append(tools, anthropic.ToolUnionParam{OfTool: &toolParam})
	}
	return tools
}

// convertResponse maps an Anthropic message to a Response, preserving block
// emission order within each kind.
func convertResponse(msg *anthropic.Message) *Response {
	resp := &Response{StopReason: string(msg.StopReason)}
	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			resp.Texts = append(resp.Texts, b.Text)
		case anthropic.ToolUseBlock:
			resp.ToolCalls = append(resp.ToolCalls, ToolCallRequest{
				ID:        b.ID,
				Name:      b.Name,
				Arguments: b.Input,
			})
		}
	}
	return resp
}
