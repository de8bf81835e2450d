package mcp

import (
	"bytes"

	"github.com/macropower/rulesim/pkg/engine"
	"github.com/macropower/rulesim/pkg/report"
	"github.com/macropower/rulesim/pkg/simulate"
)

// maxTextLen bounds the human-readable text content of tool results.
const maxTextLen = 8000

// SimulationReport is the structured outcome of one simulation run.
type SimulationReport struct {
	EventParams  map[string]any    `json:"eventParams,omitempty"`
	FileName     string            `json:"fileName"`
	FinalResult  string            `json:"finalResult"`
	EventType    string            `json:"eventType,omitempty"`
	EventMessage string            `json:"eventMessage,omitempty"`
	Error        string            `json:"error,omitempty"`
	Conditions   []ConditionReport `json:"conditions"`
	DurationMS   float64           `json:"durationMs"`
	Success      bool              `json:"success"`
}

// ConditionReport is the outcome of one leaf condition.
type ConditionReport struct {
	FactValue    any     `json:"factValue"`
	CompareValue any     `json:"compareValue"`
	Path         string  `json:"path"`
	Fact         string  `json:"fact"`
	Operator     string  `json:"operator"`
	JSONPath     string  `json:"jsonPath,omitempty"`
	Error        string  `json:"error,omitempty"`
	DurationMS   float64 `json:"durationMs"`
	Result       bool    `json:"result"`
}

func newSimulationReport(r *simulate.Result) SimulationReport {
	out := SimulationReport{
		FileName:    r.FileName,
		FinalResult: string(r.FinalResult),
		Error:       r.Error,
		Conditions:  make([]ConditionReport, 0, len(r.ConditionResults)),
		DurationMS:  float64(r.Duration.Microseconds()) / 1000,
		Success:     r.Success,
	}

	if r.Event != nil {
		out.EventType = string(r.Event.Type)
		out.EventMessage = r.Event.Message
		out.EventParams = r.Event.Params
	}

	for i := range r.ConditionResults {
		out.Conditions = append(out.Conditions, newConditionReport(&r.ConditionResults[i]))
	}

	return out
}

func newConditionReport(lr *engine.LeafResult) ConditionReport {
	return ConditionReport{
		FactValue:    lr.FactValue,
		CompareValue: lr.CompareValue,
		Path:         lr.Path.Key(),
		Fact:         lr.FactName,
		Operator:     lr.Operator,
		JSONPath:     lr.JSONPath,
		Error:        lr.Error,
		DurationMS:   float64(lr.Duration.Microseconds()) / 1000,
		Result:       lr.Result,
	}
}

// renderText renders r as a plain text report. Rendering errors fall back to
// a one-line summary.
func renderText(r *simulate.Result, rule string) string {
	var buf bytes.Buffer

	err := report.Render(&buf, r, report.Text, report.WithRuleName(rule))
	if err != nil {
		return r.FileName + ": " + string(r.FinalResult)
	}

	return truncateString(buf.String(), maxTextLen)
}

// renderBatchText renders b as a plain text report.
func renderBatchText(b simulate.Batch, rule string) string {
	var buf bytes.Buffer

	err := report.RenderBatch(&buf, b, report.Text, report.WithRuleName(rule))
	if err != nil {
		return err.Error()
	}

	return truncateString(buf.String(), maxTextLen)
}
