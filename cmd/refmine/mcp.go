package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/refmine/internal/mcpserver"
)

func mcpCmd() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Start MCP (Model Context Protocol) server for LLM tool integration",
		Description: `Starts an MCP server over stdio transport.

To use with Claude Desktop, add to your config:
  {
    "mcpServers": {
      "refmine": {
        "command": "refmine",
        "args": ["mcp"]
      }
    }
  }

Available tools:
  - commit_metrics     Per-file metrics of target commits
  - history_summary    History size, bus factor and top contributors
  - temporal_coupling  Files that change together`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "manifest",
				Usage: "Print the server.json manifest and exit",
			},
		},
		Action: runMCPCmd,
	}
}

func runMCPCmd(c *cli.Context) error {
	if c.Bool("manifest") {
		data, err := mcpserver.GenerateManifest(version)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(c.App.Writer, string(data))
		return err
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	server := mcpserver.NewServer(version, mcpserver.WithConfig(cfg), mcpserver.WithLogger(newLogger(c)))
	return server.Run(c.Context)
}
