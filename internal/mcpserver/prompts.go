package mcpserver

import (
	"bytes"
	"context"
	"embed"
	"path"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"gopkg.in/yaml.v3"
)

//go:embed prompts/*.md
var promptFiles embed.FS

// promptFrontmatter is parsed from YAML frontmatter in prompt files.
type promptFrontmatter struct {
	Description string   `yaml:"description"`
	Tools       []string `yaml:"tools"`
}

// registerPrompts registers every embedded markdown prompt.
func (s *Server) registerPrompts() {
	entries, err := promptFiles.ReadDir("prompts")
	if err != nil {
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}

		content, err := promptFiles.ReadFile(path.Join("prompts", entry.Name()))
		if err != nil {
			s.logger.WithError(err).WithField("prompt", entry.Name()).Warn("skipping prompt")
			continue
		}

		fm, body := parseFrontmatter(content)
		prompt := &mcp.Prompt{
			Name:        strings.TrimSuffix(entry.Name(), ".md"),
			Description: fm.Description,
			Arguments: []*mcp.PromptArgument{
				{Name: "repo", Description: "Path to the git repository.", Required: true},
			},
		}
		s.server.AddPrompt(prompt, makePromptHandler(fm, body))
	}
}

// parseFrontmatter extracts YAML frontmatter and returns it with the body.
func parseFrontmatter(content []byte) (promptFrontmatter, string) {
	var fm promptFrontmatter
	if !bytes.HasPrefix(content, []byte("---\n")) {
		return fm, string(content)
	}

	rest := content[4:]
	end := bytes.Index(rest, []byte("\n---\n"))
	if end == -1 {
		return fm, string(content)
	}

	if err := yaml.Unmarshal(rest[:end], &fm); err != nil {
		return promptFrontmatter{}, string(content)
	}
	return fm, strings.TrimPrefix(string(rest[end+5:]), "\n")
}

func makePromptHandler(fm promptFrontmatter, body string) mcp.PromptHandler {
	return func(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		repo := "."
		if req != nil && req.Params != nil && req.Params.Arguments["repo"] != "" {
			repo = req.Params.Arguments["repo"]
		}

		text := strings.ReplaceAll(body, "{{repo}}", repo)
		if len(fm.Tools) > 0 {
			calls := make([]string, len(fm.Tools))
			for i, tool := range fm.Tools {
				calls[i] = promptToolCall(tool, repo)
			}
			text += "\n## Suggested Tool Calls\n\n" + strings.Join(calls, "\n") + "\n"
		}

		return &mcp.GetPromptResult{
			Description: fm.Description,
			Messages: []*mcp.PromptMessage{
				{
					Role:    "user",
					Content: &mcp.TextContent{Text: text},
				},
			},
		}, nil
	}
}
