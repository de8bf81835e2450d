package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/macropower/rulesim/pkg/simulate"
	"github.com/macropower/rulesim/pkg/suggest"
)

// SimulateRuleParams defines parameters for the simulate_rule tool.
type SimulateRuleParams struct {
	Content *string `json:"content,omitempty"`
	Rule    string  `json:"rule"`
	File    string  `json:"file"`
	Verbose bool    `json:"verbose,omitempty"`
}

// SimulateAllParams defines parameters for the simulate_all tool.
type SimulateAllParams struct {
	Rule    string `json:"rule"`
	Verbose bool   `json:"verbose,omitempty"`
}

// SimulateGlobalParams defines parameters for the simulate_global tool.
type SimulateGlobalParams struct {
	ExtraFiles map[string]string `json:"extraFiles,omitempty"`
	Rule       string            `json:"rule"`
	Verbose    bool              `json:"verbose,omitempty"`
}

// SimulateAllResult contains the results of simulating every file.
type SimulateAllResult struct {
	Message      string             `json:"message"`
	Results      []SimulationReport `json:"results"`
	Triggered    int                `json:"triggered"`
	NotTriggered int                `json:"notTriggered"`
	Errors       int                `json:"errors"`
}

// handleSimulateRule handles the simulate_rule tool call.
func (s *Server) handleSimulateRule(
	ctx context.Context,
	_ *mcp.ServerSession,
	params *mcp.CallToolParamsFor[SimulateRuleParams],
) (*mcp.CallToolResultFor[SimulationReport], error) {
	args := params.Arguments

	rule, err := parseRule(args.Rule)
	if err != nil {
		return nil, err
	}

	err = s.ready(ctx)
	if err != nil {
		return nil, err
	}

	var res *simulate.Result
	if args.Content != nil {
		res = s.sim.SimulateWithContent(ctx, rule, args.File, *args.Content, s.options(args.Verbose))
	} else {
		res = s.sim.Simulate(ctx, rule, args.File, s.options(args.Verbose))
	}

	text := renderText(res, rule.Name)
	if errors.Is(res.Err, simulate.ErrFileNotFound) {
		text = fmt.Sprintf(
			"INVALID INPUT ERROR: File %q is not in the project%s. Use an EXACT INPUT from the list_files tool, or pass content.",
			args.File, suggest.DidYouMean(args.File, s.sim.Project().FileNames()),
		)
	}

	return &mcp.CallToolResultFor[SimulationReport]{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
		StructuredContent: newSimulationReport(res),
	}, nil
}

// handleSimulateAll handles the simulate_all tool call.
func (s *Server) handleSimulateAll(
	ctx context.Context,
	_ *mcp.ServerSession,
	params *mcp.CallToolParamsFor[SimulateAllParams],
) (*mcp.CallToolResultFor[SimulateAllResult], error) {
	args := params.Arguments

	rule, err := parseRule(args.Rule)
	if err != nil {
		return nil, err
	}

	err = s.ready(ctx)
	if err != nil {
		return nil, err
	}

	batch, err := s.sim.SimulateAll(ctx, rule, s.options(args.Verbose))
	if err != nil {
		return nil, fmt.Errorf("simulate all files: %w", err)
	}

	result := SimulateAllResult{
		Results:      make([]SimulationReport, 0, len(batch)),
		Triggered:    batch.Count(simulate.Triggered),
		NotTriggered: batch.Count(simulate.NotTriggered),
		Errors:       batch.Count(simulate.Error),
	}
	for _, name := range batch.Files() {
		result.Results = append(result.Results, newSimulationReport(batch[name]))
	}

	result.Message = fmt.Sprintf("Rule triggered for %d of %d files.", result.Triggered, len(batch))

	return &mcp.CallToolResultFor[SimulateAllResult]{
		Content: []mcp.Content{
			&mcp.TextContent{Text: result.Message + "\n" + renderBatchText(batch, rule.Name)},
		},
		StructuredContent: result,
	}, nil
}

// handleSimulateGlobal handles the simulate_global tool call.
func (s *Server) handleSimulateGlobal(
	ctx context.Context,
	_ *mcp.ServerSession,
	params *mcp.CallToolParamsFor[SimulateGlobalParams],
) (*mcp.CallToolResultFor[SimulationReport], error) {
	args := params.Arguments

	rule, err := parseRule(args.Rule)
	if err != nil {
		return nil, err
	}

	err = s.ready(ctx)
	if err != nil {
		return nil, err
	}

	res := s.sim.SimulateGlobal(ctx, rule, args.ExtraFiles, s.options(args.Verbose))

	return &mcp.CallToolResultFor[SimulationReport]{
		Content: []mcp.Content{
			&mcp.TextContent{Text: renderText(res, rule.Name)},
		},
		StructuredContent: newSimulationReport(res),
	}, nil
}
