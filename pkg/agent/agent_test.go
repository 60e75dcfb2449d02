package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/jwalton/machbot/pkg/config"
	"github.com/jwalton/machbot/pkg/llm"
	"github.com/jwalton/machbot/pkg/sysinfo"
	"github.com/jwalton/machbot/pkg/tools"
	"github.com/jwalton/machbot/pkg/types"
)

// stubStats returns canned readings so turn output can be checked verbatim.
type stubStats struct {
	cpu     *sysinfo.CPUReading
	battErr error
}

var _ sysinfo.Stats = (*stubStats)(nil)

func (s *stubStats) Host(context.Context) (*sysinfo.HostReading, error) {
	return &sysinfo.HostReading{Hostname: "testbox", OS: "linux"}, nil
}

func (s *stubStats) CPU(context.Context) (*sysinfo.CPUReading, error) {
	return s.cpu, nil
}

func (s *stubStats) Memory(context.Context) (*sysinfo.MemoryReading, error) {
	return &sysinfo.MemoryReading{TotalGB: 16, UsagePercent: 61}, nil
}

func (s *stubStats) Disk(context.Context) (*sysinfo.DiskReading, error) {
	return &sysinfo.DiskReading{}, nil
}

func (s *stubStats) Network(context.Context) (*sysinfo.NetworkReading, error) {
	return &sysinfo.NetworkReading{Hostname: "testbox"}, nil
}

func (s *stubStats) Processes(_ context.Context, limit int) (*sysinfo.ProcessListReading, error) {
	return &sysinfo.ProcessListReading{}, nil
}

func (s *stubStats) Battery(context.Context) (*sysinfo.BatteryReading, error) {
	if s.battErr != nil {
		return nil, s.battErr
	}
	return &sysinfo.BatteryReading{Percent: 80, State: "Discharging"}, nil
}

func (s *stubStats) Uptime(context.Context) (*sysinfo.UptimeReading, error) {
	return &sysinfo.UptimeReading{BootTime: "2024-01-01 00:00:00", Uptime: "1d 2h 3m 4s"}, nil
}

// writeSSEResponse converts a standard chat completion response map into SSE
// streaming format.
func writeSSEResponse(w http.ResponseWriter, response map[string]interface{}) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")

	flusher, _ := w.(http.Flusher)

	id, _ := response["id"].(string)
	model, _ := response["model"].(string)
	created := response["created"]

	choices, _ := response["choices"].([]map[string]interface{})
	if len(choices) == 0 {
		return
	}
	choice := choices[0]
	message, _ := choice["message"].(map[string]interface{})
	finishReason, _ := choice["finish_reason"].(string)

	content, _ := message["content"].(string)
	toolCalls, hasToolCalls := message["tool_calls"].([]map[string]interface{})

	emit := func(chunk map[string]interface{}) {
		data, _ := json.Marshal(chunk)
		fmt.Fprintf(w, "data: %s\n\n", data)
		if flusher != nil {
			flusher.Flush()
		}
	}

	if hasToolCalls && len(toolCalls) > 0 {
		firstDelta := map[string]interface{}{"role": "assistant"}
		var tcDeltas []map[string]interface{}
		for i, tc := range toolCalls {
			tcDeltas = append(tcDeltas, map[string]interface{}{
				"index": i,
				"id":    tc["id"],
				"type":  tc["type"],
				"function": map[string]interface{}{
					"name":      tc["function"].(map[string]interface{})["name"],
					"arguments": "",
				},
			})
		}
		firstDelta["tool_calls"] = tcDeltas
		emit(map[string]interface{}{
			"id": id, "object": "chat.completion.chunk",
			"created": created, "model": model,
			"choices": []map[string]interface{}{
				{"index": 0, "delta": firstDelta, "finish_reason": nil},
			},
		})

		for i, tc := range toolCalls {
			args := tc["function"].(map[string]interface{})["arguments"].(string)
			emit(map[string]interface{}{
				"id": id, "object": "chat.completion.chunk",
				"created": created, "model": model,
				"choices": []map[string]interface{}{
					{
						"index": 0,
						"delta": map[string]interface{}{
							"tool_calls": []map[string]interface{}{
								{"index": i, "function": map[string]interface{}{"arguments": args}},
							},
						},
						"finish_reason": nil,
					},
				},
			})
		}
	} else if content != "" {
		emit(map[string]interface{}{
			"id": id, "object": "chat.completion.chunk",
			"created": created, "model": model,
			"choices": []map[string]interface{}{
				{
					"index":         0,
					"delta":         map[string]interface{}{"role": "assistant", "content": content},
					"finish_reason": nil,
				},
			},
		})
	}

	finishChunk := map[string]interface{}{
		"id": id, "object": "chat.completion.chunk",
		"created": created, "model": model,
		"choices": []map[string]interface{}{
			{"index": 0, "delta": map[string]interface{}{}, "finish_reason": finishReason},
		},
	}
	if usage, ok := response["usage"]; ok {
		finishChunk["usage"] = usage
	}
	emit(finishChunk)
	fmt.Fprintf(w, "data: [DONE]\n\n")
	if flusher != nil {
		flusher.Flush()
	}
}

// contentResponse builds a plain assistant text completion.
func contentResponse(text string) map[string]interface{} {
	return map[string]interface{}{
		"id": "chatcmpl-1", "object": "chat.completion", "created": 1, "model": "llama3.2",
		"choices": []map[string]interface{}{
			{
				"index":         0,
				"message":       map[string]interface{}{"role": "assistant", "content": text},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]interface{}{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	}
}

// toolCallResponse builds a completion that requests the named tool.
func toolCallResponse(callID, name, args string) map[string]interface{} {
	return map[string]interface{}{
		"id": "chatcmpl-2", "object": "chat.completion", "created": 1, "model": "llama3.2",
		"choices": []map[string]interface{}{
			{
				"index": 0,
				"message": map[string]interface{}{
					"role":    "assistant",
					"content": "",
					"tool_calls": []map[string]interface{}{
						{
							"id":       callID,
							"type":     "function",
							"function": map[string]interface{}{"name": name, "arguments": args},
						},
					},
				},
				"finish_reason": "tool_calls",
			},
		},
		"usage": map[string]interface{}{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	}
}

// newTestAgent wires an agent to an OpenAI-compatible test server and a
// stubbed metrics source, capturing output in the returned buffer.
func newTestAgent(serverURL string, stats sysinfo.Stats) (*Agent, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	a := &Agent{
		client:   llm.NewOpenAIProvider("test-key", serverURL, "llama3.2"),
		registry: tools.DefaultRegistry(stats),
		messages: []types.Message{{Role: "system", Content: systemPrompt}},
		output:   buf,
		events:   types.NewEventEmitter(),
	}
	a.events.Subscribe(a.defaultOutputHandler)
	return a, buf
}

func TestAgentHandleCommand(t *testing.T) {
	agent, buf := newTestAgent("http://localhost:1", &stubStats{})

	t.Run("quit command", func(t *testing.T) {
		handled, exit := agent.HandleCommand("/q")
		if !handled || !exit {
			t.Error("expected handled=true, exit=true for /q")
		}
	})

	t.Run("exit command", func(t *testing.T) {
		handled, exit := agent.HandleCommand("exit")
		if !handled || !exit {
			t.Error("expected handled=true, exit=true for exit")
		}
	})

	t.Run("clear command", func(t *testing.T) {
		agent.messages = append(agent.messages, types.Message{Role: "user", Content: "test"})

		handled, exit := agent.HandleCommand("/c")
		if !handled || exit {
			t.Error("expected handled=true, exit=false for /c")
		}
		if len(agent.messages) != 1 {
			t.Errorf("expected 1 message after clear, got %d", len(agent.messages))
		}
	})

	t.Run("usage command", func(t *testing.T) {
		buf.Reset()
		handled, exit := agent.HandleCommand("/usage")
		if !handled || exit {
			t.Error("expected handled=true, exit=false for /usage")
		}
		if !strings.Contains(buf.String(), "No tokens used yet") {
			t.Errorf("expected usage output, got: %s", buf.String())
		}
	})

	t.Run("tools command", func(t *testing.T) {
		buf.Reset()
		handled, exit := agent.HandleCommand("/tools")
		if !handled || exit {
			t.Error("expected handled=true, exit=false for /tools")
		}
		for _, name := range []string{"get_cpu_info", "get_memory_info", "get_uptime"} {
			if !strings.Contains(buf.String(), name) {
				t.Errorf("expected %s in /tools output, got: %s", name, buf.String())
			}
		}
	})

	t.Run("model command", func(t *testing.T) {
		buf.Reset()
		handled, _ := agent.HandleCommand("/model")
		if !handled {
			t.Error("expected /model to be handled")
		}
		if !strings.Contains(buf.String(), "llama3.2") {
			t.Errorf("expected current model in output, got: %s", buf.String())
		}

		agent.HandleCommand("/model mistral")
		if agent.GetModel() != "mistral" {
			t.Errorf("expected model 'mistral', got %q", agent.GetModel())
		}
		agent.HandleCommand("/model llama3.2")
	})

	t.Run("regular input", func(t *testing.T) {
		handled, exit := agent.HandleCommand("hello")
		if handled || exit {
			t.Error("expected handled=false, exit=false for regular input")
		}
	})
}

func TestProcessInputDirectAnswer(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		writeSSEResponse(w, contentResponse("Hello! Ask me about your machine."))
	}))
	defer server.Close()

	agent, buf := newTestAgent(server.URL, &stubStats{})
	if err := agent.ProcessInput(context.Background(), "hi"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if n := atomic.LoadInt32(&requests); n != 1 {
		t.Errorf("expected 1 completion request, got %d", n)
	}
	if !strings.Contains(buf.String(), "Hello! Ask me about your machine.") {
		t.Errorf("expected streamed answer in output, got: %s", buf.String())
	}
	// system + user + assistant
	if len(agent.messages) != 3 {
		t.Errorf("expected 3 transcript messages, got %d", len(agent.messages))
	}
	if agent.GetUsage().TotalTokens != 15 {
		t.Errorf("expected 15 total tokens, got %d", agent.GetUsage().TotalTokens)
	}
}

func TestProcessInputToolRound(t *testing.T) {
	var requests int32
	var secondBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&requests, 1)
		switch n {
		case 1:
			writeSSEResponse(w, toolCallResponse("call_1", "get_cpu_info", "{}"))
		default:
			secondBody, _ = io.ReadAll(r.Body)
			writeSSEResponse(w, contentResponse("Your CPU is running at 42% right now."))
		}
	}))
	defer server.Close()

	stats := &stubStats{cpu: &sysinfo.CPUReading{PhysicalCores: 4, LogicalCores: 8, UsagePercent: 42}}
	agent, buf := newTestAgent(server.URL, stats)
	if err := agent.ProcessInput(context.Background(), "how busy is my cpu?"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if n := atomic.LoadInt32(&requests); n != 2 {
		t.Fatalf("expected exactly 2 completion requests, got %d", n)
	}
	// The follow-up request must not offer tools again.
	if strings.Contains(string(secondBody), `"tools"`) {
		t.Error("follow-up completion should not carry tool definitions")
	}

	// system, user, assistant(tool call), tool, assistant
	if len(agent.messages) != 5 {
		t.Fatalf("expected 5 transcript messages, got %d", len(agent.messages))
	}
	toolMsg := agent.messages[3]
	if toolMsg.Role != "tool" || toolMsg.ToolCallID != "call_1" {
		t.Errorf("unexpected tool message: %+v", toolMsg)
	}
	if !strings.Contains(toolMsg.Content, `"cpu_usage_percent": 42`) {
		t.Errorf("expected CPU reading in tool message, got: %s", toolMsg.Content)
	}
	if !strings.Contains(buf.String(), "42% right now") {
		t.Errorf("expected final answer in output, got: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "[get_cpu_info]") {
		t.Errorf("expected tool banner in output, got: %s", buf.String())
	}
	// The tool's reading is echoed to the terminal, not just fed to the model.
	if !strings.Contains(buf.String(), `"cpu_usage_percent": 42`) {
		t.Errorf("expected tool result echoed in output, got: %s", buf.String())
	}
}

func TestProcessInputUnknownTool(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requests, 1) == 1 {
			writeSSEResponse(w, toolCallResponse("call_9", "get_gpu_info", "{}"))
			return
		}
		writeSSEResponse(w, contentResponse("I don't have a tool for that."))
	}))
	defer server.Close()

	agent, _ := newTestAgent(server.URL, &stubStats{})
	if err := agent.ProcessInput(context.Background(), "gpu temp?"); err != nil {
		t.Fatalf("unknown tool should not fail the turn: %v", err)
	}

	toolMsg := agent.messages[3]
	if !strings.Contains(toolMsg.Content, "tool not found: get_gpu_info") {
		t.Errorf("expected tool-not-found result, got: %s", toolMsg.Content)
	}
	if n := atomic.LoadInt32(&requests); n != 2 {
		t.Errorf("expected the follow-up completion to run, got %d requests", n)
	}
}

func TestProcessInputToolError(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requests, 1) == 1 {
			writeSSEResponse(w, toolCallResponse("call_7", "get_battery_info", "{}"))
			return
		}
		writeSSEResponse(w, contentResponse("I could not read the battery."))
	}))
	defer server.Close()

	stats := &stubStats{battErr: fmt.Errorf("permission denied")}
	agent, _ := newTestAgent(server.URL, stats)
	if err := agent.ProcessInput(context.Background(), "battery?"); err != nil {
		t.Fatalf("tool failure should not fail the turn: %v", err)
	}

	toolMsg := agent.messages[3]
	if !strings.Contains(toolMsg.Content, "permission denied") {
		t.Errorf("expected tool error in transcript, got: %s", toolMsg.Content)
	}
}

func TestProcessInputBadToolArguments(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requests, 1) == 1 {
			writeSSEResponse(w, toolCallResponse("call_3", "get_process_info", `{"limit": "lots"}`))
			return
		}
		writeSSEResponse(w, contentResponse("Sorry, that did not work."))
	}))
	defer server.Close()

	agent, _ := newTestAgent(server.URL, &stubStats{})
	if err := agent.ProcessInput(context.Background(), "processes?"); err != nil {
		t.Fatalf("bad arguments should not fail the turn: %v", err)
	}

	toolMsg := agent.messages[3]
	if !strings.Contains(toolMsg.Content, "must be an integer") {
		t.Errorf("expected validation error in transcript, got: %s", toolMsg.Content)
	}
}

func TestProcessInputChatError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	agent, _ := newTestAgent(url, &stubStats{})
	err := agent.ProcessInput(context.Background(), "hello?")
	if err == nil {
		t.Fatal("expected error when the provider is unreachable")
	}
	if !strings.Contains(err.Error(), "chat error") {
		t.Errorf("expected wrapped chat error, got: %v", err)
	}

	// The user message stays in the transcript for the next attempt.
	last := agent.messages[len(agent.messages)-1]
	if last.Role != "user" || last.Content != "hello?" {
		t.Errorf("expected user message kept, got: %+v", last)
	}
}

func TestProcessInputEmpty(t *testing.T) {
	agent, buf := newTestAgent("http://localhost:1", &stubStats{})
	if err := agent.ProcessInput(context.Background(), ""); err != nil {
		t.Fatalf("empty input should be a no-op: %v", err)
	}
	if len(agent.messages) != 1 {
		t.Errorf("expected transcript untouched, got %d messages", len(agent.messages))
	}
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

func TestUserOutputTruncation(t *testing.T) {
	long := strings.Repeat("line\n", 50)
	result := types.UserResult(strings.TrimSuffix(long, "\n"))
	out := userOutput(result)
	if !strings.Contains(out, "more lines") {
		t.Errorf("expected truncation marker, got: %s", out)
	}
	if strings.Count(out, "line\n") != types.MaxToolOutputLines {
		t.Errorf("expected %d lines, got %d", types.MaxToolOutputLines, strings.Count(out, "line\n"))
	}
}

func TestNewAgent(t *testing.T) {
	cfg := &config.Config{
		Provider: "openai",
		Model:    "llama3.2",
		BaseURL:  "http://localhost:11434/v1",
		APIKey:   "ollama",
	}

	agent, err := NewAgent(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if agent.GetModel() != "llama3.2" {
		t.Errorf("expected model 'llama3.2', got %q", agent.GetModel())
	}

	names := agent.GetRegistry().List()
	if len(names) != 8 {
		t.Errorf("expected 8 tools, got %d: %v", len(names), names)
	}
}
