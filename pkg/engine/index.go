package engine

import (
	"context"
	"fmt"

	"github.com/panbanda/refmine/pkg/analyzer/ownership"
	"github.com/panbanda/refmine/pkg/analyzer/temporal"
	"github.com/panbanda/refmine/pkg/history"
	"github.com/panbanda/refmine/pkg/models"
	"github.com/panbanda/refmine/pkg/selector"
)

// DefaultTopContributors is the contributor count of an IndexReport.
const DefaultTopContributors = 10

// IndexReport summarizes the history of one project.
type IndexReport struct {
	Project         string                  `json:"project" yaml:"project" toon:"project"`
	Summary         history.Summary         `json:"summary" yaml:"summary" toon:"summary"`
	BusFactor       int                     `json:"bus_factor" yaml:"bus_factor" toon:"bus_factor"`
	TopContributors []ownership.Contributor `json:"top_contributors" yaml:"top_contributors" toon:"top_contributors"`
}

// Index opens project and builds its history index.
func (e *Engine) Index(ctx context.Context, project selector.Project) (*history.Index, error) {
	repo, err := e.opener.PlainOpen(project.Path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", project.Name, ErrMissingHistory, err)
	}
	idx, err := history.Build(ctx, repo, e.historyOpts)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%s: %w", project.Name, err)
	}
	return idx, nil
}

// Summarize builds the index of project and reports its size, bus factor
// and top contributors.
func (e *Engine) Summarize(ctx context.Context, project selector.Project, top int) (*IndexReport, error) {
	if top <= 0 {
		top = DefaultTopContributors
	}
	idx, err := e.Index(ctx, project)
	if err != nil {
		return nil, err
	}
	return &IndexReport{
		Project:         project.Name,
		Summary:         idx.Summarize(),
		BusFactor:       ownership.BusFactor(idx),
		TopContributors: ownership.TopContributors(idx, top),
	}, nil
}

// Coupling builds the index of project and reports file pairs that changed
// together at least minCochanges times.
func (e *Engine) Coupling(ctx context.Context, project selector.Project, minCochanges int) (*models.CouplingAnalysis, error) {
	idx, err := e.Index(ctx, project)
	if err != nil {
		return nil, err
	}
	analysis := temporal.Couplings(idx, minCochanges)
	analysis.Project = project.Name
	return analysis, nil
}
