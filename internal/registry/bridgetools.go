package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/guidemcp/gateway/internal/bridge"
	"github.com/guidemcp/gateway/internal/pipeline"
)

// BridgeTools describes the five inbound callback tools (§4.D) against b,
// ready to hand to RegisterTool. toolPrefix is prepended to every tool
// name so multiple gateway instances can coexist behind one agent.
func BridgeTools(b *bridge.Bridge, toolPrefix string) []ToolSpec {
	prefixed := func(name string) string {
		if toolPrefix == "" {
			return name
		}
		return toolPrefix + "_" + name
	}

	return []ToolSpec{
		{
			Name: prefixed("send_file_content"),
			Tool: mcp.NewTool(prefixed("send_file_content"),
				mcp.WithDescription("Report the contents of a file the agent has read."),
				mcp.WithString("path", mcp.Required(), mcp.Description("Path to the file, relative to the project root or absolute.")),
				mcp.WithString("content", mcp.Required(), mcp.Description("The file's full text content.")),
				mcp.WithString("mtime", mcp.Description("RFC3339 modification time, if known.")),
				mcp.WithString("encoding", mcp.Description("Text encoding of content, e.g. utf-8.")),
			),
			Body: func(ctx context.Context, args map[string]any) *pipeline.Result {
				path, _ := args["path"].(string)
				content, _ := args["content"].(string)
				encoding, _ := args["encoding"].(string)
				mtime := parseOptionalTime(args["mtime"])
				return b.SendFileContent(ctx, path, content, mtime, encoding)
			},
		},
		{
			Name: prefixed("send_directory_listing"),
			Tool: mcp.NewTool(prefixed("send_directory_listing"),
				mcp.WithDescription("Report the entries found in a directory the agent has listed."),
				mcp.WithString("path", mcp.Required(), mcp.Description("Path to the directory.")),
				mcp.WithArray("files", mcp.Description("Listing entries, each with name and type.")),
				mcp.WithString("pattern", mcp.Description("Glob pattern used to produce the listing, if any.")),
				mcp.WithBoolean("recursive", mcp.Description("Whether the listing was recursive.")),
			),
			Body: func(ctx context.Context, args map[string]any) *pipeline.Result {
				path, _ := args["path"].(string)
				pattern, _ := args["pattern"].(string)
				recursive, _ := args["recursive"].(bool)
				files := parseFileEntries(args["files"])
				return b.SendDirectoryListing(ctx, path, files, pattern, recursive)
			},
		},
		{
			Name: prefixed("send_command_location"),
			Tool: mcp.NewTool(prefixed("send_command_location"),
				mcp.WithDescription("Report whether a CLI command is available and where it resolves to."),
				mcp.WithString("command", mcp.Required(), mcp.Description("The command name that was looked up.")),
				mcp.WithString("path", mcp.Description("Resolved path, if found.")),
				mcp.WithBoolean("found", mcp.Required(), mcp.Description("Whether the command was found.")),
			),
			Body: func(ctx context.Context, args map[string]any) *pipeline.Result {
				command, _ := args["command"].(string)
				path, _ := args["path"].(string)
				found, _ := args["found"].(bool)
				return b.SendCommandLocation(ctx, command, path, found)
			},
		},
		{
			Name: prefixed("send_working_directory"),
			Tool: mcp.NewTool(prefixed("send_working_directory"),
				mcp.WithDescription("Report the agent's current working directory."),
				mcp.WithString("working_directory", mcp.Required(), mcp.Description("Absolute path of the current directory.")),
			),
			Body: func(ctx context.Context, args map[string]any) *pipeline.Result {
				wd, _ := args["working_directory"].(string)
				return b.SendWorkingDirectory(ctx, wd)
			},
		},
		{
			Name: prefixed("send_found_files"),
			Tool: mcp.NewTool(prefixed("send_found_files"),
				mcp.WithDescription("Report files matched by a search the agent performed."),
				mcp.WithString("pattern", mcp.Required(), mcp.Description("Search pattern used.")),
				mcp.WithArray("files", mcp.Description("Matched file paths.")),
				mcp.WithString("start_path", mcp.Description("Directory the search started from.")),
			),
			Body: func(ctx context.Context, args map[string]any) *pipeline.Result {
				pattern, _ := args["pattern"].(string)
				startPath, _ := args["start_path"].(string)
				files := parseStringSlice(args["files"])
				return b.SendFoundFiles(ctx, pattern, files, startPath)
			},
		},
	}
}

func parseOptionalTime(v any) *time.Time {
	s, ok := v.(string)
	if !ok || s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}

func parseFileEntries(v any) []map[string]any {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	entries := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			entries = append(entries, m)
			continue
		}
		entries = append(entries, map[string]any{"name": fmt.Sprint(item), "type": "file"})
	}
	return entries
}

func parseStringSlice(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
