// Package report renders a finished run for humans and machines: a styled
// per-stage summary, a JSON document, and the process exit code.
package report

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/preflightci/preflight/pkg/console"
	"github.com/preflightci/preflight/pkg/constants"
	"github.com/preflightci/preflight/pkg/pipeline"
	"github.com/preflightci/preflight/pkg/timeutil"
)

// ExitCode translates a finalized run into the process exit code: 0 when
// nothing failed, 1 when any stage failed. Orchestrator-level errors never
// reach this function; the CLI maps those to 2.
func ExitCode(result *pipeline.RunResult) int {
	if result.Failed() {
		return constants.ExitFindings
	}
	return constants.ExitOK
}

// Format renders the human-readable run summary: one line per stage, hints
// for failed stages, and a closing tally.
func Format(result *pipeline.RunResult) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Validating %s\n\n", result.Target))
	for _, stage := range result.Stages {
		b.WriteString(stageLine(stage))
		b.WriteString("\n")
		if stage.Outcome == pipeline.Fail && stage.Hint != "" {
			b.WriteString("    " + console.FormatVerboseMessage(stage.Hint) + "\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(summaryLine(result))
	b.WriteString("\n")
	return b.String()
}

func stageLine(stage pipeline.StageResult) string {
	label := stage.StageID
	if stage.Detail != "" {
		label = fmt.Sprintf("%s: %s", stage.StageID, stage.Detail)
	}
	if stage.Duration > 0 {
		label = fmt.Sprintf("%s (%s)", label, timeutil.FormatElapsed(stage.Duration))
	}
	switch stage.Outcome {
	case pipeline.Pass:
		return "  " + console.FormatSuccessMessage(label)
	case pipeline.Fail:
		return "  " + console.FormatErrorMessage(label)
	case pipeline.Warn:
		return "  " + console.FormatWarningMessage(label)
	default:
		return "  " + console.FormatVerboseMessage("- "+label)
	}
}

func summaryLine(result *pipeline.RunResult) string {
	counts := result.Counts()
	parts := []string{fmt.Sprintf("%d passed", counts[pipeline.Pass])}
	if counts[pipeline.Warn] > 0 {
		parts = append(parts, fmt.Sprintf("%d warned", counts[pipeline.Warn]))
	}
	if counts[pipeline.Fail] > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", counts[pipeline.Fail]))
	}
	if counts[pipeline.Skip] > 0 {
		parts = append(parts, fmt.Sprintf("%d skipped", counts[pipeline.Skip]))
	}
	tally := fmt.Sprintf("%s in %s", strings.Join(parts, ", "), timeutil.FormatElapsed(result.Duration))

	if result.Failed() {
		return console.FormatErrorMessage("Validation failed: " + tally)
	}
	return console.FormatSuccessMessage("Validation passed: " + tally)
}

// FormatJSON renders the run as an indented JSON document for consumption
// by scripts and CI annotations.
func FormatJSON(result *pipeline.RunResult) (string, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}
	return string(data) + "\n", nil
}
