package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jwalton/machbot/pkg/config"
	"github.com/jwalton/machbot/pkg/llm"
	"github.com/jwalton/machbot/pkg/sysinfo"
	"github.com/jwalton/machbot/pkg/tools"
	"github.com/jwalton/machbot/pkg/types"
)

const systemPrompt = `You are a helpful assistant that runs locally on the user's machine.
You have access to tools that can retrieve information about the system you're running on.

When the user asks about system information, call the appropriate tool:
- CPU usage or specs: get_cpu_info
- Memory or RAM: get_memory_info
- Disk space: get_disk_info
- Network: get_network_info
- Running processes: get_process_info
- Battery: get_battery_info
- Uptime or boot time: get_uptime
- General system info (OS, hostname): get_system_info

You can call multiple tools if needed to answer complex questions.
After receiving tool results, explain them to the user in a friendly, clear way.`

// Agent owns the conversation transcript and drives one user turn at a
// time against the configured provider.
type Agent struct {
	client   llm.Provider
	registry *tools.Registry
	messages []types.Message
	output   io.Writer
	events   *types.EventEmitter
	usage    types.TokenUsage // accumulated session usage
}

// NewAgent creates an Agent from the resolved configuration.
func NewAgent(cfg *config.Config) (*Agent, error) {
	var provider llm.Provider
	switch cfg.Provider {
	case "anthropic":
		provider = llm.NewAnthropicProvider(cfg.APIKey, cfg.BaseURL, cfg.Model)
	case "openai":
		provider = llm.NewOpenAIProvider(cfg.APIKey, cfg.BaseURL, cfg.Model)
	default:
		p, err := llm.NewOllamaProvider(cfg.Host, cfg.Model)
		if err != nil {
			return nil, err
		}
		provider = p
	}

	registry := tools.DefaultRegistry(&sysinfo.SystemStats{})

	agent := &Agent{
		client:   provider,
		registry: registry,
		messages: []types.Message{{Role: "system", Content: systemPrompt}},
		output:   os.Stdout,
		events:   types.NewEventEmitter(),
	}
	agent.events.Subscribe(agent.defaultOutputHandler)

	return agent, nil
}

// HandleCommand processes a slash command and returns true if handled.
func (a *Agent) HandleCommand(input string) (handled bool, exit bool) {
	switch input {
	case "/q", "exit", "quit":
		u := a.GetUsage()
		if u.TotalTokens > 0 {
			fmt.Fprintf(a.output, "%sSession usage: %d prompt + %d completion = %d total tokens%s\n",
				types.ColorGray, u.PromptTokens, u.CompletionTokens, u.TotalTokens, types.ColorReset)
		}
		fmt.Fprintln(a.output, "Goodbye!")
		return true, true
	case "/c", "clear":
		a.messages = a.messages[:1]
		fmt.Fprintln(a.output, "Conversation cleared.")
		return true, false
	case "/usage":
		u := a.GetUsage()
		if u.TotalTokens == 0 {
			fmt.Fprintln(a.output, "No tokens used yet.")
		} else {
			fmt.Fprintf(a.output, "Session usage:\n  Prompt tokens:     %d\n  Completion tokens: %d\n  Total tokens:      %d\n",
				u.PromptTokens, u.CompletionTokens, u.TotalTokens)
		}
		return true, false
	case "/tools":
		fmt.Fprintln(a.output, "Available tools:")
		for _, name := range a.registry.List() {
			tool, _ := a.registry.Get(name)
			fmt.Fprintf(a.output, "  %s - %s\n", name, tool.Description())
		}
		return true, false
	}

	// Commands with arguments
	if input == "/model" || strings.HasPrefix(input, "/model ") {
		newModel := strings.TrimSpace(strings.TrimPrefix(input, "/model"))
		if newModel == "" {
			fmt.Fprintf(a.output, "Current model: %s\n", a.client.GetModel())
		} else {
			a.client.SetModel(newModel)
			fmt.Fprintf(a.output, "Model changed to: %s\n", newModel)
		}
		return true, false
	}

	return false, false
}

// ProcessInput runs one user turn: a completion with tool definitions, the
// requested tool executions, and at most one follow-up completion without
// tool definitions. Tool failures are reported to the model as text;
// provider failures abort the turn.
func (a *Agent) ProcessInput(ctx context.Context, input string) error {
	if input == "" {
		return nil
	}

	a.messages = append(a.messages, types.Message{
		Role:    "user",
		Content: input,
	})

	a.events.Emit(types.AgentEvent{Type: types.EventTurnStart})

	response, err := a.client.ChatStream(ctx, a.messages, a.registry.Definitions(), a.output)
	if err != nil {
		turnErr := fmt.Errorf("chat error: %w", err)
		a.events.Emit(types.AgentEvent{Type: types.EventTurnEnd, Error: turnErr})
		return turnErr
	}
	a.usage.Add(response.Usage)

	if len(response.ToolCalls) == 0 {
		a.messages = append(a.messages, types.Message{
			Role:    "assistant",
			Content: response.Content,
		})
		a.events.Emit(types.AgentEvent{Type: types.EventMessageEnd, Content: response.Content})
		a.events.Emit(types.AgentEvent{Type: types.EventTurnEnd})
		return nil
	}

	a.messages = append(a.messages, types.Message{
		Role:      "assistant",
		Content:   response.Content,
		ToolCalls: response.ToolCalls,
	})

	for _, tc := range response.ToolCalls {
		a.events.Emit(types.AgentEvent{Type: types.EventToolStart, ToolName: tc.Function.Name})
		result := a.runTool(ctx, tc)
		a.messages = append(a.messages, types.Message{
			Role:       "tool",
			Content:    result.ForLLM,
			ToolCallID: tc.ID,
		})
		a.events.Emit(types.AgentEvent{Type: types.EventToolEnd, ToolName: tc.Function.Name, Content: userOutput(result)})
	}

	// The follow-up completion carries no tool definitions, so the model
	// must answer from the results it already has.
	final, err := a.client.ChatStream(ctx, a.messages, nil, a.output)
	if err != nil {
		turnErr := fmt.Errorf("chat error: %w", err)
		a.events.Emit(types.AgentEvent{Type: types.EventTurnEnd, Error: turnErr})
		return turnErr
	}
	a.usage.Add(final.Usage)

	a.messages = append(a.messages, types.Message{
		Role:    "assistant",
		Content: final.Content,
	})
	a.events.Emit(types.AgentEvent{Type: types.EventMessageEnd, Content: final.Content})
	a.events.Emit(types.AgentEvent{Type: types.EventTurnEnd})
	return nil
}

// runTool parses the call's arguments and executes it through the registry.
// All failure modes collapse into an error result for the transcript.
func (a *Agent) runTool(ctx context.Context, tc types.ToolCall) *types.ToolResult {
	args := map[string]interface{}{}
	if strings.TrimSpace(tc.Function.Arguments) != "" {
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
			return types.ErrorResult(fmt.Sprintf("failed to parse arguments: %v", err))
		}
	}
	return a.registry.Execute(ctx, tc.Function.Name, args)
}

// userOutput trims a result's user-facing content to a screenful.
func userOutput(result *types.ToolResult) string {
	if result.ForUser == "" {
		return ""
	}
	lines := strings.Split(result.ForUser, "\n")
	if len(lines) <= types.MaxToolOutputLines {
		return result.ForUser + "\n"
	}
	var buf strings.Builder
	for _, line := range lines[:types.MaxToolOutputLines] {
		fmt.Fprintln(&buf, line)
	}
	fmt.Fprintf(&buf, "... (%d more lines)\n", len(lines)-types.MaxToolOutputLines)
	return buf.String()
}

// defaultOutputHandler is the default event subscriber that handles console output.
func (a *Agent) defaultOutputHandler(event types.AgentEvent) {
	switch event.Type {
	case types.EventToolStart:
		fmt.Fprintf(a.output, "%s[%s]%s ", types.ColorGray, event.ToolName, types.ColorReset)
	case types.EventToolEnd:
		if event.Content != "" {
			fmt.Fprintln(a.output)
			fmt.Fprint(a.output, event.Content)
		}
	case types.EventTurnEnd:
		fmt.Fprintln(a.output)
	case types.EventMessageEnd:
		if event.Content != "" {
			fmt.Fprintf(a.output, "\n\n")
		}
	}
}

// GetUsage returns the accumulated session usage.
func (a *Agent) GetUsage() types.TokenUsage {
	return a.usage
}

// GetRegistry returns the tool registry.
func (a *Agent) GetRegistry() *tools.Registry {
	return a.registry
}

// Events returns the event emitter.
func (a *Agent) Events() *types.EventEmitter {
	return a.events
}

// GetModel returns the model name.
func (a *Agent) GetModel() string {
	return a.client.GetModel()
}

// Provider returns the underlying LLM provider.
func (a *Agent) Provider() llm.Provider {
	return a.client
}
