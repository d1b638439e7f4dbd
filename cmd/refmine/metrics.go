package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/refmine/internal/cache"
	"github.com/panbanda/refmine/internal/output"
	"github.com/panbanda/refmine/internal/progress"
	"github.com/panbanda/refmine/internal/storage"
	"github.com/panbanda/refmine/pkg/config"
	"github.com/panbanda/refmine/pkg/engine"
	"github.com/panbanda/refmine/pkg/selector"
)

func metricsCmd() *cli.Command {
	return &cli.Command{
		Name:      "metrics",
		Usage:     "Compute the metrics table of each project",
		ArgsUsage: "[project...]",
		Description: `Computes one record per file modified by every target commit of each
project and writes <output_dir>/<project>_metrics.<ext>.

Projects are names or repository URLs resolved under clone_dir. With no
arguments the project list file (--projects or projects.list) is used.

Examples:
  refmine metrics commons-io
  refmine metrics --projects projects.txt --sqlite metrics.db
  refmine -f yaml metrics https://github.com/apache/commons-io.git`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "projects",
				Usage: "File listing one project name or URL per line",
			},
			&cli.StringFlag{
				Name:  "output-dir",
				Usage: "Directory for metrics files (overrides projects.output_dir)",
			},
			&cli.StringFlag{
				Name:  "sqlite",
				Usage: "Also store every table in this SQLite database",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Target commits processed in parallel (overrides engine.workers)",
			},
			&cli.BoolFlag{
				Name:  "cross-file",
				Usage: "Compute DIT and NOC across every class in the commit's tree",
			},
			&cli.BoolFlag{
				Name:  "no-cache",
				Usage: "Disable caching",
			},
			&cli.BoolFlag{
				Name:  "no-progress",
				Usage: "Hide progress bars",
			},
		},
		Action: runMetricsCmd,
	}
}

func runMetricsCmd(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	applyMetricsFlags(c, cfg)
	logger := newLogger(c)

	projects, err := resolveProjects(c, cfg)
	if err != nil {
		return err
	}

	opts := append(engine.ConfigOptions(cfg), engine.WithLogger(logger))
	if cfg.Cache.Enabled && !c.Bool("no-cache") {
		ch, err := cache.New(cfg.Cache.Dir, cfg.Cache.TTL, true)
		if err != nil {
			return fmt.Errorf("open cache: %w", err)
		}
		opts = append(opts, engine.WithCache(ch))
	}
	if !c.Bool("no-progress") && !c.Bool("verbose") {
		opts = append(opts, engine.WithProgress(progress.Projects(c.App.ErrWriter)))
	}

	var store *storage.SQLiteStore
	if cfg.Output.SQLite != "" {
		store, err = storage.NewSQLiteStore(cfg.Output.SQLite, logger)
		if err != nil {
			return fmt.Errorf("open sqlite sink: %w", err)
		}
		defer store.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	targetsFor := func(p selector.Project) ([]string, error) {
		return selector.Targets(selector.ReportPath(cfg.Projects.ReportsDir, p.Name))
	}
	tables, runErr := engine.New(opts...).RunProjects(ctx, projects, targetsFor)

	format := output.ParseFormat(cfg.Output.Format)
	msg := output.NewWriterFormatter(format, c.App.Writer, cfg.Output.Color)
	for _, table := range tables {
		path, err := output.WriteMetrics(cfg.Projects.OutputDir, table, format)
		if err != nil {
			return err
		}
		if store != nil {
			if err := store.SaveTable(ctx, table); err != nil {
				return fmt.Errorf("store %s: %w", table.Project, err)
			}
		}
		summary := "%s: %d records, %d diagnostics -> %s"
		if len(table.Diagnostics) > 0 {
			msg.Warning(summary, table.Project, len(table.Records), len(table.Diagnostics), path)
		} else {
			msg.Success(summary, table.Project, len(table.Records), len(table.Diagnostics), path)
		}
	}

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			return errors.New("interrupted")
		}
		return runErr
	}
	return nil
}

func applyMetricsFlags(c *cli.Context, cfg *config.Config) {
	if dir := c.String("output-dir"); dir != "" {
		cfg.Projects.OutputDir = dir
	}
	if db := c.String("sqlite"); db != "" {
		cfg.Output.SQLite = db
	}
	if list := c.String("projects"); list != "" {
		cfg.Projects.List = list
	}
	if n := c.Int("workers"); n > 0 {
		cfg.Engine.Workers = n
	}
	if c.Bool("cross-file") {
		cfg.Structural.CrossFile = true
	}
}

// resolveProjects returns the projects named on the command line, or the
// configured project list when none are given.
func resolveProjects(c *cli.Context, cfg *config.Config) ([]selector.Project, error) {
	if c.Args().Len() > 0 {
		seen := make(map[string]bool)
		var projects []selector.Project
		for _, ref := range c.Args().Slice() {
			p := selector.NewProject(cfg.Projects.CloneDir, ref)
			if !seen[p.Name] {
				seen[p.Name] = true
				projects = append(projects, p)
			}
		}
		return projects, nil
	}
	if cfg.Projects.List == "" {
		return nil, errors.New("no projects given: pass project names or --projects FILE")
	}
	projects, err := selector.LoadProjects(cfg.Projects.List, cfg.Projects.CloneDir)
	if err != nil {
		return nil, fmt.Errorf("read project list: %w", err)
	}
	if len(projects) == 0 {
		return nil, fmt.Errorf("project list %s is empty", cfg.Projects.List)
	}
	return projects, nil
}
