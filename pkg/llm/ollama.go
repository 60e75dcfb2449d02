package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/ollama/ollama/api"

	"github.com/jwalton/machbot/pkg/types"
)

// OllamaProvider talks to a local Ollama server over its native API.
type OllamaProvider struct {
	client *api.Client
	model  string
}

// NewOllamaProvider creates a provider for the Ollama server at host. An
// empty host falls back to OLLAMA_HOST and then the default local address.
func NewOllamaProvider(host, model string) (*OllamaProvider, error) {
	if host == "" {
		client, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("ollama client: %w", err)
		}
		return &OllamaProvider{client: client, model: model}, nil
	}

	base, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}
	return &OllamaProvider{client: api.NewClient(base, http.DefaultClient), model: model}, nil
}

// GetModel returns the model name.
func (o *OllamaProvider) GetModel() string {
	return o.model
}

// SetModel changes the model used for subsequent requests.
func (o *OllamaProvider) SetModel(model string) {
	o.model = model
}

// buildRequest maps transcript messages and tool definitions to the native
// API types. Tool definitions round-trip through JSON because they share
// their wire shape with api.Tools.
func (o *OllamaProvider) buildRequest(messages []types.Message, toolDefs []map[string]interface{}, stream bool) (*api.ChatRequest, error) {
	apiMessages := make([]api.Message, 0, len(messages))
	for _, msg := range messages {
		m := api.Message{Role: msg.Role, Content: msg.Content}
		for _, tc := range msg.ToolCalls {
			args := api.ToolCallFunctionArguments{}
			if tc.Function.Arguments != "" {
				// Fall back to empty args if the recorded JSON is unusable.
				_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
			}
			var call api.ToolCall
			call.Function.Name = tc.Function.Name
			call.Function.Arguments = args
			m.ToolCalls = append(m.ToolCalls, call)
		}
		apiMessages = append(apiMessages, m)
	}

	req := &api.ChatRequest{
		Model:    o.model,
		Messages: apiMessages,
		Stream:   &stream,
	}
	if len(toolDefs) > 0 {
		data, err := json.Marshal(toolDefs)
		if err != nil {
			return nil, fmt.Errorf("encode tool definitions: %w", err)
		}
		if err := json.Unmarshal(data, &req.Tools); err != nil {
			return nil, fmt.Errorf("map tool definitions: %w", err)
		}
	}
	return req, nil
}

// Chat sends a non-streaming chat request.
func (o *OllamaProvider) Chat(ctx context.Context, messages []types.Message, toolDefs []map[string]interface{}) (*types.ChatResponse, error) {
	req, err := o.buildRequest(messages, toolDefs, false)
	if err != nil {
		return nil, err
	}

	var response *types.ChatResponse
	err = o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		response = convertOllamaResponse(resp)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ollama chat failed: %w", err)
	}
	if response == nil {
		return nil, fmt.Errorf("empty response from ollama")
	}
	return response, nil
}

// ChatStream sends a streaming chat request. Text deltas are written to w as
// they arrive; the complete response is returned when done.
func (o *OllamaProvider) ChatStream(ctx context.Context, messages []types.Message, toolDefs []map[string]interface{}, w io.Writer) (*types.ChatResponse, error) {
	req, err := o.buildRequest(messages, toolDefs, true)
	if err != nil {
		return nil, err
	}

	response := &types.ChatResponse{}
	err = o.client.Chat(ctx, req, func(chunk api.ChatResponse) error {
		if chunk.Message.Content != "" {
			fmt.Fprint(w, chunk.Message.Content)
			response.Content += chunk.Message.Content
		}
		for _, tc := range chunk.Message.ToolCalls {
			response.ToolCalls = append(response.ToolCalls, convertOllamaToolCall(tc))
		}
		if chunk.Done {
			response.FinishReason = chunk.DoneReason
			response.Usage = types.TokenUsage{
				PromptTokens:     int64(chunk.Metrics.PromptEvalCount),
				CompletionTokens: int64(chunk.Metrics.EvalCount),
			}
			response.Usage.TotalTokens = response.Usage.PromptTokens + response.Usage.CompletionTokens
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ollama chat stream failed: %w", err)
	}

	if len(response.ToolCalls) > 0 {
		response.FinishReason = "tool_calls"
	}
	return response, nil
}

// EnsureModel checks the local model list and pulls the configured model
// when it is missing, writing progress to w.
func (o *OllamaProvider) EnsureModel(ctx context.Context, w io.Writer) error {
	list, err := o.client.List(ctx)
	if err != nil {
		return fmt.Errorf("cannot reach ollama: %w", err)
	}
	for _, m := range list.Models {
		if m.Name == o.model || strings.TrimSuffix(m.Name, ":latest") == o.model {
			return nil
		}
	}

	fmt.Fprintf(w, "model %q not found locally, pulling (this may take a few minutes)...\n", o.model)
	var lastStatus string
	err = o.client.Pull(ctx, &api.PullRequest{Model: o.model}, func(p api.ProgressResponse) error {
		if p.Status != lastStatus {
			fmt.Fprintf(w, "  %s\n", p.Status)
			lastStatus = p.Status
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("pull %s: %w", o.model, err)
	}
	return nil
}

// convertOllamaResponse maps a native chat response to the shared shape.
func convertOllamaResponse(resp api.ChatResponse) *types.ChatResponse {
	out := &types.ChatResponse{
		Content:      resp.Message.Content,
		FinishReason: resp.DoneReason,
		Usage: types.TokenUsage{
			PromptTokens:     int64(resp.Metrics.PromptEvalCount),
			CompletionTokens: int64(resp.Metrics.EvalCount),
		},
	}
	out.Usage.TotalTokens = out.Usage.PromptTokens + out.Usage.CompletionTokens
	for _, tc := range resp.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, convertOllamaToolCall(tc))
	}
	if len(out.ToolCalls) > 0 {
		out.FinishReason = "tool_calls"
	}
	return out
}

// convertOllamaToolCall maps a native tool call, assigning a generated call
// ID since the native API does not carry one.
func convertOllamaToolCall(tc api.ToolCall) types.ToolCall {
	args, err := json.Marshal(tc.Function.Arguments)
	if err != nil {
		args = []byte("{}")
	}
	return types.NewToolCall("call_"+uuid.NewString(), tc.Function.Name, string(args))
}
