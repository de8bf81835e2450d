package mcp

import "github.com/modelcontextprotocol/go-sdk/jsonschema"

const (
	name         = "rulesim"
	instructions = `MCP Server 'rulesim' evaluates rule condition trees against the files of a project and explains the outcome of every condition.

When to use these tools:
- Checking whether a rule fires for a file, for every file, or for the project as a whole
- Debugging why a condition passes or fails, with the resolved fact value of every leaf
- Trying a rule against unsaved content before writing it to disk

REQUIRED workflow:
1. Use 'list_files' first to see which files are loaded.
2. Use 'simulate_rule' with an EXACT file name from 'list_files', or with 'content' to test unsaved content.
3. Use 'simulate_all' to find every file a rule fires for, and 'simulate_global' for project-wide rules.

Rules are YAML or JSON documents with 'name', 'conditions', and 'event'. Conditions are 'all', 'any', or 'not' groups of leaves with 'fact', 'operator', 'value', and optional 'path' and 'params'.
`
)

func ruleSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "string",
		Description: "The rule document, as YAML or JSON.",
	}
}

func verboseSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "boolean",
		Description: "Report every condition result instead of failing on the first condition error.",
	}
}

// truncateString truncates a string to maxLen characters with ellipsis if needed.
func truncateString(str string, maxLen int) string {
	if len(str) > maxLen {
		return str[:maxLen] + "\n[OUTPUT TRUNCATED]"
	}

	return str
}
