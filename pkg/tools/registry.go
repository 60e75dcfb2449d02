package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/jwalton/machbot/pkg/sysinfo"
	"github.com/jwalton/machbot/pkg/types"
)

// Registry maps tool names to implementations. It is populated once at
// startup and read-only afterwards, so no locking is needed.
type Registry struct {
	tools map[string]types.Tool
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]types.Tool),
	}
}

// DefaultRegistry builds a Registry with every system-inspection tool,
// backed by the given metrics source.
func DefaultRegistry(stats sysinfo.Stats) *Registry {
	r := NewRegistry()
	r.Register(NewSystemTool(stats))
	r.Register(NewCPUTool(stats))
	r.Register(NewMemoryTool(stats))
	r.Register(NewDiskTool(stats))
	r.Register(NewNetworkTool(stats))
	r.Register(NewProcessTool(stats))
	r.Register(NewBatteryTool(stats))
	r.Register(NewUptimeTool(stats))
	return r
}

// Register adds a tool to the registry.
func (r *Registry) Register(tool types.Tool) {
	r.tools[tool.Name()] = tool
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (types.Tool, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

// Execute runs a tool by name with the given arguments. An unknown name or
// invalid arguments produce an error result rather than a failure, so the
// conversation can continue.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]interface{}) *types.ToolResult {
	tool, ok := r.Get(name)
	if !ok {
		return types.ErrorResult("tool not found: " + name)
	}
	if err := ValidateArgs(tool.Parameters(), args); err != nil {
		return types.ErrorResult(fmt.Sprintf("argument validation failed: %v", err))
	}
	return tool.Execute(ctx, args)
}

// Definitions returns provider-compatible tool definitions, sorted by name
// so the model sees a stable ordering.
func (r *Registry) Definitions() []map[string]interface{} {
	definitions := make([]map[string]interface{}, 0, len(r.tools))
	for _, name := range r.List() {
		tool := r.tools[name]
		definitions = append(definitions, map[string]interface{}{
			"type": "function",
			"function": map[string]interface{}{
				"name":        tool.Name(),
				"description": tool.Description(),
				"parameters":  tool.Parameters(),
			},
		})
	}
	return definitions
}

// List returns all registered tool names, sorted.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateArgs checks args against a JSON schema (params). It validates
// required fields and basic type matching (string, integer/number, boolean).
func ValidateArgs(params map[string]interface{}, args map[string]interface{}) error {
	if required, ok := params["required"]; ok {
		var requiredFields []string
		switch r := required.(type) {
		case []string:
			requiredFields = r
		case []interface{}:
			for _, v := range r {
				if s, ok := v.(string); ok {
					requiredFields = append(requiredFields, s)
				}
			}
		}
		var missing []string
		for _, field := range requiredFields {
			if _, ok := args[field]; !ok {
				missing = append(missing, field)
			}
		}
		if len(missing) > 0 {
			return fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
		}
	}

	properties, _ := params["properties"].(map[string]interface{})
	if properties == nil {
		return nil
	}

	for key, val := range args {
		propDef, ok := properties[key].(map[string]interface{})
		if !ok {
			continue // unknown property, skip
		}
		expectedType, _ := propDef["type"].(string)
		if expectedType == "" {
			continue
		}
		if err := checkType(key, val, expectedType); err != nil {
			return err
		}
	}

	return nil
}

// checkType verifies that val matches the expected JSON schema type.
func checkType(key string, val interface{}, expectedType string) error {
	switch expectedType {
	case "string":
		if _, ok := val.(string); !ok {
			return fmt.Errorf("field %q must be a string", key)
		}
	case "integer":
		switch v := val.(type) {
		case float64:
			if v != float64(int(v)) {
				return fmt.Errorf("field %q must be an integer", key)
			}
		default:
			return fmt.Errorf("field %q must be an integer", key)
		}
	case "number":
		if _, ok := val.(float64); !ok {
			return fmt.Errorf("field %q must be a number", key)
		}
	case "boolean":
		if _, ok := val.(bool); !ok {
			return fmt.Errorf("field %q must be a boolean", key)
		}
	}
	return nil
}

// noParams is the schema shared by the zero-argument tools.
func noParams() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}

// jsonResult renders a metric reading as an indented JSON tool result. The
// payload goes to both the model and the terminal echo.
func jsonResult(v interface{}) *types.ToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return types.ErrorResult(fmt.Sprintf("encode result: %v", err))
	}
	return types.UserResult(string(data))
}
