// Package finance implements the financial analyst: model-written plotting
// scripts run in a sandbox, market data tools and the storyteller.
package finance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/Neruzzz/toolchat/internal/sandbox"
)

const (
	PlotFile   = "stock_plot.png"
	ScriptFile = "generated_stock_analysis.py"
)

// CodeGenerator turns a query into agent output that should hold a script.
type CodeGenerator interface {
	Run(ctx context.Context, query string) (string, error)
}

type Analyst struct {
	gen       CodeGenerator
	runner    sandbox.Runner
	artifacts string
	runs      RunLog
}

func NewAnalyst(gen CodeGenerator, runner sandbox.Runner, artifactsDir string, runs RunLog) *Analyst {
	if artifactsDir == "" {
		artifactsDir = "."
	}
	if runs == nil {
		runs = NewMemoryRunLog(0)
	}
	return &Analyst{gen: gen, runner: runner, artifacts: artifactsDir, runs: runs}
}

// PlotPath and ScriptPath are where the side-channel files end up.
func (a *Analyst) PlotPath() string   { return filepath.Join(a.artifacts, PlotFile) }
func (a *Analyst) ScriptPath() string { return filepath.Join(a.artifacts, ScriptFile) }

func (a *Analyst) Runs() RunLog { return a.runs }

// Analyze generates a plotting script for query, runs it in the sandbox and
// reports the outcome as text. It never returns an error: every failure is
// described in the returned message.
func (a *Analyst) Analyze(ctx context.Context, query string) string {
	run := Run{ID: uuid.NewString(), Query: query, Mode: a.runner.Mode(), CreatedAt: time.Now().UTC()}
	msg := a.analyze(ctx, &run)
	if err := a.runs.Record(ctx, run); err != nil {
		slog.WarnContext(ctx, "Could not record analysis run", "run_id", run.ID, "error", err)
	}
	return msg
}

func (a *Analyst) analyze(ctx context.Context, run *Run) string {
	slog.InfoContext(ctx, "Received analysis query", "run_id", run.ID, "query", run.Query)

	out, err := a.gen.Run(ctx, run.Query)
	if err != nil {
		run.Outcome = OutcomeModelFail
		return fmt.Sprintf("An error occurred during analysis: %v", err)
	}

	code, ok := ExtractCode(out)
	if !ok {
		run.Outcome = OutcomeNoCode
		return "Error: Could not extract Python code from agent output:\n" + out
	}
	run.Code = code

	if err := os.MkdirAll(a.artifacts, 0o755); err != nil {
		run.Outcome = OutcomeFailed
		return fmt.Sprintf("An error occurred during analysis: %v", err)
	}
	if err := os.WriteFile(a.ScriptPath(), []byte(code), 0o644); err != nil {
		run.Outcome = OutcomeFailed
		return fmt.Sprintf("An error occurred during analysis: %v", err)
	}
	if err := os.Remove(a.PlotPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.WarnContext(ctx, "Could not remove previous plot", "error", err)
	}
	slog.InfoContext(ctx, "Code saved, executing", "run_id", run.ID, "path", a.ScriptPath(), "mode", a.runner.Mode())

	res, err := a.runner.Run(ctx, sandbox.Job{
		Code:      code,
		Filename:  ScriptFile,
		OutputDir: a.artifacts,
		Outputs:   []string{PlotFile},
	})
	run.ExitCode = res.ExitCode
	run.Stderr = res.Stderr
	run.Duration = res.Duration

	switch {
	case errors.Is(err, sandbox.ErrDisabled):
		run.Outcome = OutcomeRejected
		return fmt.Sprintf("Error: %v. The generated code was saved to '%s' but not executed.\n\nCode:\n%s", err, ScriptFile, code)
	case errors.Is(err, sandbox.ErrPolicy):
		run.Outcome = OutcomeRejected
		return fmt.Sprintf("Error: generated code was not executed: %v\n\nCode:\n%s", err, code)
	case errors.Is(err, sandbox.ErrExit):
		run.Outcome = OutcomeFailed
		return fmt.Sprintf("Error executing generated code:\n%s\n\nCode:\n%s", res.Stderr, code)
	case err != nil:
		run.Outcome = OutcomeFailed
		return fmt.Sprintf("Error executing generated code: %v\n\nCode:\n%s", err, code)
	}

	if _, err := os.Stat(a.PlotPath()); err != nil {
		run.Outcome = OutcomeNoPlot
		return fmt.Sprintf("The code executed successfully but '%s' was not found. Please check the generated code.", PlotFile)
	}
	run.Outcome = OutcomeSuccess
	return fmt.Sprintf("Success! Analysis complete. The plot has been saved to '%s' in the server directory.\n\nGenerated Code:\n```python\n%s\n```", PlotFile, code)
}
