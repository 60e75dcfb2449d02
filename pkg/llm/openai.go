package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/jwalton/machbot/pkg/types"
)

// OpenAIProvider talks to any OpenAI-compatible chat completion endpoint,
// such as Ollama's /v1 API, LM Studio, or a llama.cpp server.
type OpenAIProvider struct {
	client openai.Client
	model  string
}

// NewOpenAIProvider creates a provider for the endpoint at baseURL. Local
// servers generally ignore the API key but the SDK requires one.
func NewOpenAIProvider(apiKey, baseURL, model string) *OpenAIProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIProvider{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

// GetModel returns the model name.
func (c *OpenAIProvider) GetModel() string {
	return c.model
}

// SetModel changes the model used for subsequent requests.
func (c *OpenAIProvider) SetModel(model string) {
	c.model = model
}

// buildMessages maps transcript messages to the SDK's union type.
func buildMessages(messages []types.Message) []openai.ChatCompletionMessageParamUnion {
	openaiMessages := make([]openai.ChatCompletionMessageParamUnion, len(messages))
	for i, msg := range messages {
		switch msg.Role {
		case "user":
			openaiMessages[i] = openai.UserMessage(msg.Content)
		case "assistant":
			if len(msg.ToolCalls) > 0 {
				toolCalls := make([]openai.ChatCompletionMessageToolCallParam, len(msg.ToolCalls))
				for j, tc := range msg.ToolCalls {
					toolCalls[j] = openai.ChatCompletionMessageToolCallParam{
						ID:   tc.ID,
						Type: "function",
						Function: openai.ChatCompletionMessageToolCallFunctionParam{
							Name:      tc.Function.Name,
							Arguments: tc.Function.Arguments,
						},
					}
				}
				openaiMessages[i] = openai.ChatCompletionMessageParamUnion{
					OfAssistant: &openai.ChatCompletionAssistantMessageParam{
						ToolCalls: toolCalls,
					},
				}
			} else {
				openaiMessages[i] = openai.AssistantMessage(msg.Content)
			}
		case "tool":
			openaiMessages[i] = openai.ToolMessage(msg.Content, msg.ToolCallID)
		case "system":
			openaiMessages[i] = openai.SystemMessage(msg.Content)
		}
	}
	return openaiMessages
}

// buildTools maps generic tool definitions to the SDK's tool params.
func buildTools(toolDefs []map[string]interface{}) []openai.ChatCompletionToolParam {
	var tools []openai.ChatCompletionToolParam
	for _, def := range toolDefs {
		fn, ok := def["function"].(map[string]interface{})
		if !ok {
			fmt.Fprintf(os.Stderr, "warning: skipping malformed tool definition (missing 'function' key)\n")
			continue
		}
		name, _ := fn["name"].(string)
		desc, _ := fn["description"].(string)
		params, _ := fn["parameters"].(map[string]interface{})

		tools = append(tools, openai.ChatCompletionToolParam{
			Type: "function",
			Function: shared.FunctionDefinitionParam{
				Name:        name,
				Description: openai.String(desc),
				Parameters:  shared.FunctionParameters(params),
			},
		})
	}
	return tools
}

// Chat sends a non-streaming chat completion request.
func (c *OpenAIProvider) Chat(ctx context.Context, messages []types.Message, toolDefs []map[string]interface{}) (*types.ChatResponse, error) {
	params := openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: buildMessages(messages),
	}
	if tools := buildTools(toolDefs); len(tools) > 0 {
		params.Tools = tools
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, wrapAPIError("chat completion failed", err)
	}

	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	choice := completion.Choices[0]
	response := &types.ChatResponse{
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		Usage: types.TokenUsage{
			PromptTokens:     completion.Usage.PromptTokens,
			CompletionTokens: completion.Usage.CompletionTokens,
			TotalTokens:      completion.Usage.TotalTokens,
		},
	}

	for _, tc := range choice.Message.ToolCalls {
		response.ToolCalls = append(response.ToolCalls,
			types.NewToolCall(tc.ID, tc.Function.Name, tc.Function.Arguments))
	}

	return response, nil
}

// ChatStream sends a streaming chat request. Text deltas are written to w as
// they arrive. The complete ChatResponse (with any tool calls) is returned
// when done.
func (c *OpenAIProvider) ChatStream(ctx context.Context, messages []types.Message, toolDefs []map[string]interface{}, w io.Writer) (*types.ChatResponse, error) {
	params := openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: buildMessages(messages),
	}
	if tools := buildTools(toolDefs); len(tools) > 0 {
		params.Tools = tools
	}

	stream := c.client.Chat.Completions.NewStreaming(ctx, params)
	acc := openai.ChatCompletionAccumulator{}

	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)

		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			fmt.Fprint(w, chunk.Choices[0].Delta.Content)
		}
	}

	if err := stream.Err(); err != nil {
		return nil, wrapAPIError("streaming chat completion failed", err)
	}

	if len(acc.Choices) == 0 {
		return nil, fmt.Errorf("no choices in streaming response")
	}

	choice := acc.Choices[0]
	response := &types.ChatResponse{
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		Usage: types.TokenUsage{
			PromptTokens:     acc.Usage.PromptTokens,
			CompletionTokens: acc.Usage.CompletionTokens,
			TotalTokens:      acc.Usage.TotalTokens,
		},
	}

	for _, tc := range choice.Message.ToolCalls {
		response.ToolCalls = append(response.ToolCalls,
			types.NewToolCall(tc.ID, tc.Function.Name, tc.Function.Arguments))
	}

	return response, nil
}

// wrapAPIError wraps an API error with context information, extracting HTTP
// status codes from openai.Error when available.
func wrapAPIError(context string, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: HTTP %d: %w", context, apiErr.StatusCode, err)
	}
	return fmt.Errorf("%s: %w", context, err)
}
