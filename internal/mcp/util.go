package mcp

import (
	"encoding/json"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// dataToMCP converts arbitrary data to MCP text content via JSON marshaling.
// All data becomes JSON; clients parse it.
func dataToMCP(data any) *mcp.CallToolResult {
	if data == nil {
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: ""}},
		}
	}

	b, err := json.Marshal(data)
	if err != nil {
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: "marshal error"}},
			IsError: true,
		}
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(b)}},
	}
}

// errorResult returns an input error as a tool result, so the client model
// can read the message and retry with corrected arguments.
func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}
}

// mergeTags appends suggested tags to the caller's tags, deduplicated
// case-insensitively, caller's order first.
func mergeTags(manual, suggested []string) []string {
	merged := make([]string, 0, len(manual)+len(suggested))
	seen := make(map[string]bool, len(manual)+len(suggested))
	for _, lst := range [][]string{manual, suggested} {
		for _, t := range lst {
			t = strings.TrimSpace(t)
			if t == "" || seen[strings.ToLower(t)] {
				continue
			}
			seen[strings.ToLower(t)] = true
			merged = append(merged, t)
		}
	}
	return merged
}
