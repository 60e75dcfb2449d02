package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/jwalton/machbot/pkg/types"
)

// anthropicMaxTokens is the completion budget per request.
const anthropicMaxTokens = 8192

// AnthropicProvider talks to an Anthropic-compatible endpoint, typically a
// local gateway that exposes the Messages API in front of a local model.
type AnthropicProvider struct {
	client anthropic.Client
	model  string
}

// NewAnthropicProvider creates a new AnthropicProvider for the gateway at
// baseURL.
func NewAnthropicProvider(apiKey, baseURL, model string) *AnthropicProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &AnthropicProvider{
		client: anthropic.NewClient(opts...),
		model:  model,
	}
}

// GetModel returns the model name.
func (a *AnthropicProvider) GetModel() string {
	return a.model
}

// SetModel changes the model used for subsequent requests.
func (a *AnthropicProvider) SetModel(model string) {
	a.model = model
}

func (a *AnthropicProvider) buildRequest(messages []types.Message, toolDefs []map[string]interface{}) anthropic.MessageNewParams {
	var systemBlocks []anthropic.TextBlockParam
	var anthropicMessages []anthropic.MessageParam

	for _, msg := range messages {
		switch msg.Role {
		case "system":
			systemBlocks = append(systemBlocks, *anthropic.NewTextBlock(msg.Content).OfText)
		case "user":
			anthropicMessages = append(anthropicMessages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case "assistant":
			var blocks []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				var input map[string]interface{}
				if err := json.Unmarshal([]byte(tc.Function.Arguments), &input); err != nil {
					// Fallback if args isn't valid JSON, though it should be
					input = map[string]interface{}{}
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Function.Name))
			}
			anthropicMessages = append(anthropicMessages, anthropic.NewAssistantMessage(blocks...))
		case "tool":
			anthropicMessages = append(anthropicMessages, anthropic.MessageParam{
				Role: anthropic.MessageParamRoleUser,
				Content: []anthropic.ContentBlockParamUnion{
					anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false),
				},
			})
		}
	}

	var tools []anthropic.ToolUnionParam
	for _, def := range toolDefs {
		fn, ok := def["function"].(map[string]interface{})
		if !ok {
			continue
		}
		name, _ := fn["name"].(string)
		desc, _ := fn["description"].(string)
		params, _ := fn["parameters"].(map[string]interface{})

		tools = append(tools, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        name,
				Description: anthropic.String(desc),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: params["properties"],
					Required:   extractRequired(params["required"]),
				},
			},
		})
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: int64(anthropicMaxTokens),
		Messages:  anthropicMessages,
	}
	if len(systemBlocks) > 0 {
		params.System = systemBlocks
	}
	if len(tools) > 0 {
		params.Tools = tools
	}
	return params
}

// Chat sends a non-streaming chat request.
func (a *AnthropicProvider) Chat(ctx context.Context, messages []types.Message, toolDefs []map[string]interface{}) (*types.ChatResponse, error) {
	params := a.buildRequest(messages, toolDefs)

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic chat failed: %w", err)
	}

	response := &types.ChatResponse{
		FinishReason: string(msg.StopReason),
		Usage: types.TokenUsage{
			PromptTokens:     msg.Usage.InputTokens,
			CompletionTokens: msg.Usage.OutputTokens,
			TotalTokens:      msg.Usage.InputTokens + msg.Usage.OutputTokens,
		},
	}

	for _, block := range msg.Content {
		if block.Type == "tool_use" {
			args, _ := json.Marshal(block.Input)
			response.ToolCalls = append(response.ToolCalls,
				types.NewToolCall(block.ID, block.Name, string(args)))
		} else if block.Type == "text" {
			response.Content += block.Text
		}
	}

	return response, nil
}

// ChatStream sends a streaming chat request.
func (a *AnthropicProvider) ChatStream(ctx context.Context, messages []types.Message, toolDefs []map[string]interface{}, w io.Writer) (*types.ChatResponse, error) {
	params := a.buildRequest(messages, toolDefs)

	stream := a.client.Messages.NewStreaming(ctx, params)
	var textContent string
	var usage types.TokenUsage
	var finishReason string

	type pendingCall struct {
		callID string
		name   string
		args   strings.Builder
	}
	var currentCall *pendingCall
	var pendingCalls []pendingCall

	for stream.Next() {
		event := stream.Current()
		switch variant := event.AsAny().(type) {
		case anthropic.MessageStartEvent:
			usage.PromptTokens = variant.Message.Usage.InputTokens
		case anthropic.ContentBlockStartEvent:
			if variant.ContentBlock.Type == "tool_use" {
				toolUse := variant.ContentBlock.AsToolUse()
				currentCall = &pendingCall{
					callID: toolUse.ID,
					name:   toolUse.Name,
				}
			}
		case anthropic.ContentBlockDeltaEvent:
			if variant.Delta.Type == "text_delta" {
				textDelta := variant.Delta.AsTextDelta()
				fmt.Fprint(w, textDelta.Text)
				textContent += textDelta.Text
			} else if variant.Delta.Type == "input_json_delta" {
				jsonDelta := variant.Delta.AsInputJSONDelta()
				if currentCall != nil {
					currentCall.args.WriteString(jsonDelta.PartialJSON)
				}
			}
		case anthropic.ContentBlockStopEvent:
			if currentCall != nil {
				pendingCalls = append(pendingCalls, *currentCall)
				currentCall = nil
			}
		case anthropic.MessageDeltaEvent:
			usage.CompletionTokens = variant.Usage.OutputTokens
			finishReason = string(variant.Delta.StopReason)
		}
	}

	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("anthropic stream failed: %w", err)
	}

	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens

	response := &types.ChatResponse{
		Content:      textContent,
		Usage:        usage,
		FinishReason: finishReason,
	}

	for _, pc := range pendingCalls {
		response.ToolCalls = append(response.ToolCalls,
			types.NewToolCall(pc.callID, pc.name, pc.args.String()))
	}

	return response, nil
}

// extractRequired safely extracts a []string from a required field value,
// handling both []string (from Go tool definitions) and []interface{} (from JSON).
func extractRequired(v interface{}) []string {
	switch req := v.(type) {
	case []string:
		return req
	case []interface{}:
		var res []string
		for _, r := range req {
			if s, ok := r.(string); ok {
				res = append(res, s)
			}
		}
		return res
	default:
		return nil
	}
}
