package types

// ToolResult represents the structured return value from tool execution.
type ToolResult struct {
	ForLLM  string `json:"for_llm"`
	ForUser string `json:"for_user,omitempty"`
	IsError bool   `json:"is_error"`
}

// NewToolResult creates a basic ToolResult with content for the LLM.
func NewToolResult(forLLM string) *ToolResult {
	return &ToolResult{ForLLM: forLLM}
}

// ErrorResult creates a ToolResult representing an error. The message is
// still handed to the model so the conversation can continue.
func ErrorResult(message string) *ToolResult {
	return &ToolResult{
		ForLLM:  message,
		IsError: true,
	}
}

// UserResult creates a ToolResult with content for both LLM and user.
func UserResult(content string) *ToolResult {
	return &ToolResult{
		ForLLM:  content,
		ForUser: content,
	}
}
