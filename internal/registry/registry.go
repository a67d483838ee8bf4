// Package registry implements the Tool/Prompt Pipeline's deferred
// registration contract (§4.I): tools and prompts are described once, at
// package-init time or during server construction, and only handed to the
// live mcp-go server when Build runs — letting cmd/serve.go assemble the
// bridge, tasks, and guide router first and register against a server
// instance that does not exist yet when the describing code runs. Each
// tool/prompt name is guarded so a duplicate Register call is a no-op
// rather than a panic, matching the idempotent-registration note in the
// pipeline's own module expansion.
package registry

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/guidemcp/gateway/internal/pipeline"
	"github.com/guidemcp/gateway/internal/telemetry"
)

// ToolSpec is one deferred tool registration.
type ToolSpec struct {
	Name string
	Tool mcp.Tool
	Body pipeline.Body
}

// PromptSpec is one deferred prompt registration.
type PromptSpec struct {
	Name   string
	Prompt mcp.Prompt
	Handle func(ctx context.Context, args map[string]string) *pipeline.Result
}

// Registry accumulates tool/prompt descriptions before a live mcp-go
// server exists, then wires them all in Build.
type Registry struct {
	mu      sync.Mutex
	tools   []ToolSpec
	prompts []PromptSpec
	seen    map[string]bool
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{seen: make(map[string]bool)}
}

// RegisterTool adds a tool description. A second call with the same name
// is silently ignored.
func (r *Registry) RegisterTool(spec ToolSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seen["tool:"+spec.Name] {
		return
	}
	r.seen["tool:"+spec.Name] = true
	r.tools = append(r.tools, spec)
}

// RegisterPrompt adds a prompt description. A second call with the same
// name is silently ignored.
func (r *Registry) RegisterPrompt(spec PromptSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seen["prompt:"+spec.Name] {
		return
	}
	r.seen["prompt:"+spec.Name] = true
	r.prompts = append(r.prompts, spec)
}

// Dispatcher is the taskmanager hook pipeline.Wrap needs; re-declared here
// to keep registry free of a direct taskmanager import.
type Dispatcher = pipeline.Dispatcher

// Build wires every accumulated tool and prompt into s, wrapping each tool
// body with the pipeline decorator (dispatcher pre/post hooks) and an
// optional tracer span. Call once, after every RegisterTool/RegisterPrompt
// call has run.
func (r *Registry) Build(s *server.MCPServer, dispatcher Dispatcher, tracer *telemetry.Tracer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, spec := range r.tools {
		wrapped := pipeline.Wrap(spec.Name, dispatcher, spec.Body)
		toolName := spec.Name
		handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			spanCtx, end := tracer.StartPipelineSpan(ctx, toolName)
			defer end()
			result := wrapped(spanCtx, req.GetArguments())
			return resultToCallToolResult(result), nil
		}
		s.AddTool(spec.Tool, handler)
	}

	for _, spec := range r.prompts {
		handle := spec.Handle
		s.AddPrompt(spec.Prompt, func(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
			result := handle(ctx, req.Params.Arguments)
			return resultToGetPromptResult(result), nil
		})
	}
}

// resultToCallToolResult serialises a pipeline.Result into the MCP tool
// result envelope: the full JSON contract as text content, with IsError
// reflecting Result.Success so clients that only check IsError still work.
func resultToCallToolResult(result *pipeline.Result) *mcp.CallToolResult {
	data, err := json.Marshal(result)
	if err != nil {
		return mcp.NewToolResultError("internal error: failed to serialise result")
	}
	text := string(data)
	if !result.Success {
		out := mcp.NewToolResultText(text)
		out.IsError = true
		return out
	}
	return mcp.NewToolResultText(text)
}

// resultToGetPromptResult turns a rendered prompt Result into a single
// assistant-facing prompt message. Prompt bodies put the rendered markdown
// in Value as a string; anything else is re-marshalled to JSON so the
// agent always receives text.
func resultToGetPromptResult(result *pipeline.Result) *mcp.GetPromptResult {
	text, ok := result.Value.(string)
	if !ok {
		if data, err := json.Marshal(result.Value); err == nil {
			text = string(data)
		} else {
			text = result.Error
		}
	}
	return mcp.NewGetPromptResult(result.Message, []mcp.PromptMessage{
		mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(text)),
	})
}
