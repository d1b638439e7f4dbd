package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/refmine/internal/output"
	"github.com/panbanda/refmine/pkg/config"
)

func initCmd() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Write a refmine.toml with the default settings",
		Description: `Examples:
  refmine init                          # Creates refmine.toml in current directory
  refmine init -o .refmine/refmine.toml # Creates config in .refmine directory
  refmine init --force                  # Overwrite existing config file`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Value:   "refmine.toml",
				Usage:   "Output file path",
			},
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Overwrite existing config file",
			},
		},
		Action: runInit,
	}
}

func runInit(c *cli.Context) error {
	outputPath := c.String("output")

	if _, err := os.Stat(outputPath); err == nil && !c.Bool("force") {
		return fmt.Errorf("config file %q already exists (use --force to overwrite)", outputPath)
	}

	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %q: %w", dir, err)
		}
	}

	content, err := generateDefaultConfig()
	if err != nil {
		return err
	}
	if err := os.WriteFile(outputPath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	output.NewWriterFormatter(output.FormatText, c.App.Writer, !c.Bool("no-color")).Success("Created %s", outputPath)
	return nil
}

func generateDefaultConfig() (string, error) {
	content, err := toml.Marshal(config.DefaultConfig())
	if err != nil {
		return "", fmt.Errorf("failed to marshal config to TOML: %w", err)
	}

	var buf strings.Builder
	buf.WriteString("# refmine configuration\n\n")
	buf.Write(content)
	return buf.String(), nil
}
