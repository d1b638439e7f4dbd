package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/refmine/internal/output"
	"github.com/panbanda/refmine/internal/progress"
	"github.com/panbanda/refmine/pkg/engine"
	"github.com/panbanda/refmine/pkg/models"
)

func indexCmd() *cli.Command {
	return &cli.Command{
		Name:      "index",
		Usage:     "Summarize the history index of a repository",
		ArgsUsage: "<repo>",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "top",
				Value: engine.DefaultTopContributors,
				Usage: "Number of top contributors to list",
			},
		},
		Action: runIndexCmd,
	}
}

func runIndexCmd(c *cli.Context) error {
	p, err := repoProject(c)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	spinner := progress.NewSpinner("indexing " + p.Name)
	e := engine.New(append(engine.ConfigOptions(cfg), engine.WithLogger(newLogger(c)))...)
	report, err := e.Summarize(c.Context, p, c.Int("top"))
	if err != nil {
		spinner.FinishError(err)
		return err
	}
	spinner.FinishSuccess()

	return output.NewWriterFormatter(displayFormat(c), c.App.Writer, cfg.Output.Color).Output(indexView(report))
}

func indexView(r *engine.IndexReport) *output.Report {
	s := r.Summary
	summary := output.NewTable("Summary", []string{"Metric", "Value"}, [][]string{
		{"Commits", strconv.Itoa(s.Commits)},
		{"Files", strconv.Itoa(s.Files)},
		{"Authors", strconv.Itoa(s.Authors)},
		{"Lines added", strconv.Itoa(s.Added)},
		{"First commit", formatTime(s.First)},
		{"Last commit", formatTime(s.Last)},
		{"Bus factor", strconv.Itoa(r.BusFactor)},
	}, nil, nil)

	rows := make([][]string, 0, len(r.TopContributors))
	for i, ct := range r.TopContributors {
		rows = append(rows, []string{strconv.Itoa(i + 1), ct.Name, strconv.Itoa(ct.Commits), strconv.Itoa(ct.Added)})
	}
	contributors := output.NewTable("Top Contributors", []string{"#", "Author", "Commits", "Added"}, rows, nil, nil)

	return &output.Report{
		Title:    "History: " + r.Project,
		Sections: []output.Renderable{summary, contributors},
		Data:     r,
	}
}

func couplingCmd() *cli.Command {
	return &cli.Command{
		Name:      "coupling",
		Usage:     "List files that changed together in a repository",
		ArgsUsage: "<repo>",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "min-cochanges",
				Value: models.DefaultMinCochanges,
				Usage: "Minimum co-changes to report a file pair",
			},
			&cli.IntFlag{
				Name:  "top",
				Value: 20,
				Usage: "Show top N file pairs (0 for all)",
			},
		},
		Action: runCouplingCmd,
	}
}

func runCouplingCmd(c *cli.Context) error {
	p, err := repoProject(c)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	e := engine.New(append(engine.ConfigOptions(cfg), engine.WithLogger(newLogger(c)))...)
	analysis, err := e.Coupling(c.Context, p, c.Int("min-cochanges"))
	if err != nil {
		return err
	}
	if top := c.Int("top"); top > 0 && len(analysis.Couplings) > top {
		analysis.Couplings = analysis.Couplings[:top]
	}

	return output.NewWriterFormatter(displayFormat(c), c.App.Writer, cfg.Output.Color).Output(couplingView(analysis))
}

func couplingView(a *models.CouplingAnalysis) *output.Table {
	rows := make([][]string, 0, len(a.Couplings))
	for _, cp := range a.Couplings {
		rows = append(rows, []string{
			cp.FileA,
			cp.FileB,
			strconv.Itoa(cp.CochangeCount),
			fmt.Sprintf("%.2f", cp.CouplingStrength),
		})
	}
	footer := []string{
		"Pairs", strconv.Itoa(a.Summary.TotalCouplings),
		"Strong", strconv.Itoa(a.Summary.StrongCouplings),
	}
	return output.NewTable(
		fmt.Sprintf("Temporal Coupling: %s (%d commits)", a.Project, a.Commits),
		[]string{"File A", "File B", "Co-changes", "Strength"},
		rows, footer, a,
	)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
