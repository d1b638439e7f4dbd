package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/refmine/internal/output"
	"github.com/panbanda/refmine/internal/storage"
)

func showCmd() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Print metrics tables stored by metrics --sqlite",
		ArgsUsage: "[project]",
		Description: `Without a project, lists every stored table. With a project, prints its
records and diagnostics.

Examples:
  refmine show --sqlite metrics.db
  refmine -f json show --sqlite metrics.db commons-io`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "sqlite",
				Usage: "Database to read (overrides output.sqlite)",
			},
		},
		Action: runShowCmd,
	}
}

// storedTable is one row of the stored-table listing.
type storedTable struct {
	Project     string    `json:"project" yaml:"project" toon:"project"`
	Records     int       `json:"records" yaml:"records" toon:"records"`
	Diagnostics int       `json:"diagnostics" yaml:"diagnostics" toon:"diagnostics"`
	GeneratedAt time.Time `json:"generated_at" yaml:"generated_at" toon:"generated_at"`
	Fingerprint string    `json:"fingerprint" yaml:"fingerprint" toon:"fingerprint"`
}

func runShowCmd(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if db := c.String("sqlite"); db != "" {
		cfg.Output.SQLite = db
	}
	if cfg.Output.SQLite == "" {
		return errors.New("no database given: pass --sqlite FILE or set output.sqlite")
	}
	// Opening a missing path would create an empty database.
	if _, err := os.Stat(cfg.Output.SQLite); err != nil {
		return fmt.Errorf("open %s: %w", cfg.Output.SQLite, err)
	}

	store, err := storage.NewSQLiteStore(cfg.Output.SQLite, newLogger(c))
	if err != nil {
		return fmt.Errorf("open sqlite sink: %w", err)
	}
	defer store.Close()

	f := output.NewWriterFormatter(displayFormat(c), c.App.Writer, cfg.Output.Color)

	if c.Args().Len() > 0 {
		project := c.Args().First()
		table, err := store.LoadTable(c.Context, project)
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s is not stored in %s", project, cfg.Output.SQLite)
		}
		if err != nil {
			return err
		}
		return f.Output(output.NewMetricsView(table))
	}

	names, err := store.Projects(c.Context)
	if err != nil {
		return err
	}
	stored := make([]storedTable, 0, len(names))
	rows := make([][]string, 0, len(names))
	for _, name := range names {
		table, err := store.LoadTable(c.Context, name)
		if err != nil {
			return err
		}
		st := storedTable{
			Project:     table.Project,
			Records:     len(table.Records),
			Diagnostics: len(table.Diagnostics),
			GeneratedAt: table.GeneratedAt,
			Fingerprint: table.Fingerprint,
		}
		stored = append(stored, st)
		rows = append(rows, []string{
			st.Project,
			strconv.Itoa(st.Records),
			strconv.Itoa(st.Diagnostics),
			formatTime(st.GeneratedAt),
			st.Fingerprint,
		})
	}
	return f.Output(output.NewTable(
		"Stored Tables: "+cfg.Output.SQLite,
		[]string{"Project", "Records", "Diagnostics", "Generated", "Fingerprint"},
		rows, nil, stored,
	))
}
