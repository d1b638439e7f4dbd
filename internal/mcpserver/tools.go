package mcpserver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/panbanda/refmine/internal/output"
	"github.com/panbanda/refmine/pkg/selector"
)

// RepoInput is the base input for all tools.
type RepoInput struct {
	Repo   string `json:"repo" jsonschema:"Path to a local git repository."`
	Format string `json:"format,omitempty" jsonschema:"Output format: toon (default), json, yaml, markdown or text."`
}

// CommitMetricsInput selects the commits to measure.
type CommitMetricsInput struct {
	RepoInput
	Commits []string `json:"commits,omitempty" jsonschema:"Target commit hashes. Abbreviated hashes are accepted."`
	Report  string   `json:"report,omitempty" jsonschema:"Path to a refactoring report or hash list, used when commits is empty."`
}

// HistorySummaryInput adds summary options.
type HistorySummaryInput struct {
	RepoInput
	Top int `json:"top,omitempty" jsonschema:"Number of top contributors to list. Default 10."`
}

// TemporalCouplingInput adds coupling options.
type TemporalCouplingInput struct {
	RepoInput
	MinCochanges int `json:"min_cochanges,omitempty" jsonschema:"Minimum co-changes to report a file pair. Default 3."`
	Top          int `json:"top,omitempty" jsonschema:"Show top N file pairs. Default all."`
}

func project(input RepoInput) (selector.Project, error) {
	if input.Repo == "" {
		return selector.Project{}, errors.New("repo is required")
	}
	path, err := filepath.Abs(input.Repo)
	if err != nil {
		return selector.Project{}, err
	}
	return selector.Project{Name: selector.ProjectName(path), Path: path}, nil
}

func getFormat(input RepoInput) output.Format {
	if input.Format == "" {
		return output.FormatTOON
	}
	return output.ParseFormat(input.Format)
}

func toolResult(data any, format output.Format) (*mcp.CallToolResult, any, error) {
	var buf bytes.Buffer
	if err := output.NewWriterFormatter(format, &buf, false).Output(data); err != nil {
		return nil, nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: buf.String()},
		},
	}, nil, nil
}

func toolError(msg string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: "Error: " + msg},
		},
		IsError: true,
	}, nil, nil
}

func (s *Server) handleCommitMetrics(ctx context.Context, req *mcp.CallToolRequest, input CommitMetricsInput) (*mcp.CallToolResult, any, error) {
	p, err := project(input.RepoInput)
	if err != nil {
		return toolError(err.Error())
	}

	targets := input.Commits
	if len(targets) == 0 {
		if input.Report == "" {
			return toolError("commits or report is required")
		}
		targets, err = selector.Targets(input.Report)
		if err != nil {
			return toolError(err.Error())
		}
	}

	table, err := s.engine().Run(ctx, p, targets)
	if err != nil {
		return toolError(err.Error())
	}
	return toolResult(output.NewMetricsView(table), getFormat(input.RepoInput))
}

func (s *Server) handleHistorySummary(ctx context.Context, req *mcp.CallToolRequest, input HistorySummaryInput) (*mcp.CallToolResult, any, error) {
	p, err := project(input.RepoInput)
	if err != nil {
		return toolError(err.Error())
	}
	report, err := s.engine().Summarize(ctx, p, input.Top)
	if err != nil {
		return toolError(err.Error())
	}
	return toolResult(report, getFormat(input.RepoInput))
}

func (s *Server) handleTemporalCoupling(ctx context.Context, req *mcp.CallToolRequest, input TemporalCouplingInput) (*mcp.CallToolResult, any, error) {
	p, err := project(input.RepoInput)
	if err != nil {
		return toolError(err.Error())
	}
	analysis, err := s.engine().Coupling(ctx, p, input.MinCochanges)
	if err != nil {
		return toolError(err.Error())
	}
	if input.Top > 0 && len(analysis.Couplings) > input.Top {
		analysis.Couplings = analysis.Couplings[:input.Top]
	}
	return toolResult(analysis, getFormat(input.RepoInput))
}

// promptToolCall renders a suggested tool invocation for prompt bodies.
func promptToolCall(tool, repo string) string {
	return fmt.Sprintf("- `%s` with repo=%q", tool, repo)
}
