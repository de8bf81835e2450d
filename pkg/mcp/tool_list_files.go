package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sahilm/fuzzy"
)

// ListFilesParams defines parameters for the list_files tool.
type ListFilesParams struct {
	Query string `json:"query,omitempty"`
}

// ListFilesResult contains the result of listing project files.
type ListFilesResult struct {
	Project     string   `json:"project"`
	Root        string   `json:"root,omitempty"`
	Message     string   `json:"message"`
	Files       []string `json:"files"`
	FileCount   int      `json:"fileCount"`
	HasManifest bool     `json:"hasManifest"`
}

// handleListFiles handles the list_files tool call.
func (s *Server) handleListFiles(
	ctx context.Context,
	_ *mcp.ServerSession,
	params *mcp.CallToolParamsFor[ListFilesParams],
) (*mcp.CallToolResultFor[ListFilesResult], error) {
	err := s.ready(ctx)
	if err != nil {
		return nil, err
	}

	data := s.sim.Project()

	result := ListFilesResult{
		Files: filterFiles(data.FileNames(), params.Arguments.Query),
	}
	if data != nil {
		result.Project = data.Name
		result.Root = data.Root
		result.HasManifest = data.Manifest != nil
	}

	result.FileCount = len(result.Files)

	return createListFilesResult(result, params.Arguments.Query), nil
}

// filterFiles returns the names matching query, best match first. An empty
// query matches every name, in order.
func filterFiles(names []string, query string) []string {
	if strings.TrimSpace(query) == "" {
		if names == nil {
			return []string{}
		}

		return names
	}

	matches := fuzzy.Find(query, names)

	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Str)
	}

	return out
}

// createListFilesResult creates the MCP tool result from ListFilesResult.
func createListFilesResult(result ListFilesResult, query string) *mcp.CallToolResultFor[ListFilesResult] {
	msg := fmt.Sprintf("Found %d files in project %q.", result.FileCount, result.Project)
	if query != "" {
		msg = fmt.Sprintf("Found %d files matching %q in project %q.", result.FileCount, query, result.Project)
	}

	result.Message = msg

	text := msg
	if len(result.Files) > 0 {
		text += "\n" + strings.Join(result.Files, "\n")
	}

	return &mcp.CallToolResultFor[ListFilesResult]{
		Content: []mcp.Content{
			&mcp.TextContent{Text: truncateString(text, maxTextLen)},
		},
		StructuredContent: result,
	}
}
