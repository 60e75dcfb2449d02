package llm

import (
	"context"
	"io"

	"github.com/jwalton/machbot/pkg/types"
)

// Provider defines the interface for local inference backends.
type Provider interface {
	Chat(ctx context.Context, messages []types.Message, toolDefs []map[string]interface{}) (*types.ChatResponse, error)
	ChatStream(ctx context.Context, messages []types.Message, toolDefs []map[string]interface{}, w io.Writer) (*types.ChatResponse, error)
	GetModel() string
	SetModel(model string)
}

// ModelEnsurer is implemented by providers that can check whether the
// configured model is present locally and fetch it when it is not.
type ModelEnsurer interface {
	EnsureModel(ctx context.Context, w io.Writer) error
}

// Compile-time interface compliance checks.
var (
	_ Provider     = (*OllamaProvider)(nil)
	_ Provider     = (*OpenAIProvider)(nil)
	_ Provider     = (*AnthropicProvider)(nil)
	_ ModelEnsurer = (*OllamaProvider)(nil)
)
