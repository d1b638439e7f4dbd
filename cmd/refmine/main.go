package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/refmine/internal/mcpserver"
	"github.com/panbanda/refmine/internal/output"
	"github.com/panbanda/refmine/pkg/config"
	"github.com/panbanda/refmine/pkg/selector"
)

var (
	version = "dev"
	commit  = "none"    //nolint:unused // set via ldflags at build time
	date    = "unknown" //nolint:unused // set via ldflags at build time
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "refmine",
		Usage:   "Repository-history metrics for refactoring commits",
		Version: version,
		Description: `refmine indexes the full history of each project and computes one record
per file modified by every target commit: ownership and experience,
co-change, class structure and commit context.

Target commits are read from <reports_dir>/<project>_refactorings.json.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file (TOML, YAML, or JSON)",
				EnvVars: []string{mcpserver.ConfigEnv},
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: json, yaml, toon, markdown, text",
			},
			&cli.BoolFlag{
				Name:  "no-color",
				Usage: "Disable colored output",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("no-color") {
				color.NoColor = true
			}
			return nil
		},
		Commands: []*cli.Command{
			metricsCmd(),
			indexCmd(),
			couplingCmd(),
			showCmd(),
			initCmd(),
			mcpCmd(),
		},
	}
}

// newLogger returns the logger shared by every component of a command.
func newLogger(c *cli.Context) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(c.App.ErrWriter)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	logger.SetLevel(logrus.WarnLevel)
	if c.Bool("verbose") {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger
}

// loadConfig loads the configured file and applies global flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if f := c.String("format"); f != "" {
		cfg.Output.Format = string(output.ParseFormat(f))
	}
	if c.Bool("no-color") {
		cfg.Output.Color = false
	}
	return cfg, nil
}

// displayFormat is the format of reports printed to stdout, which default
// to text rather than the file format.
func displayFormat(c *cli.Context) output.Format {
	if f := c.String("format"); f != "" {
		return output.ParseFormat(f)
	}
	return output.FormatText
}

// repoProject turns a repository path argument into a project.
func repoProject(c *cli.Context) (selector.Project, error) {
	if c.Args().Len() != 1 {
		return selector.Project{}, fmt.Errorf("%s takes exactly one repository path", c.Command.Name)
	}
	path, err := filepath.Abs(c.Args().First())
	if err != nil {
		return selector.Project{}, err
	}
	return selector.Project{Name: selector.ProjectName(path), Path: path}, nil
}
