package mcpserver

import (
	"encoding/json"
)

// Manifest is the MCP registry server.json document.
type Manifest struct {
	Schema      string      `json:"$schema"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Version     string      `json:"version"`
	Repository  *Repository `json:"repository,omitempty"`
	Packages    []Package   `json:"packages,omitempty"`
}

// Repository contains source repository information.
type Repository struct {
	URL    string `json:"url"`
	Source string `json:"source"`
	ID     string `json:"id,omitempty"`
}

// Package describes how to install/run the MCP server.
type Package struct {
	RegistryType     string     `json:"registryType"`
	Identifier       string     `json:"identifier"`
	PackageArguments []Argument           `json:"packageArguments,omitempty"`
	Environment      []EnvironmentVariable `json:"environmentVariables,omitempty"`
	Transport        Transport             `json:"transport"`
}

// EnvironmentVariable is a variable the server reads at startup.
type EnvironmentVariable struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsRequired  bool   `json:"isRequired"`
}

// Argument represents a command-line argument.
type Argument struct {
	Type  string `json:"type"`
	Value string `json:"value,omitempty"`
}

// Transport describes the communication method.
type Transport struct {
	Type string `json:"type"`
}

// ConfigEnv names the variable holding the config file path.
const ConfigEnv = "REFMINE_CONFIG"

// GenerateManifest renders server.json for version.
func GenerateManifest(version string) ([]byte, error) {
	if version == "" {
		version = "0.0.0"
	}

	manifest := Manifest{
		Schema:      "https://static.modelcontextprotocol.io/schemas/2025-10-17/server.schema.json",
		Name:        "io.github.panbanda/refmine",
		Description: "Repository-history metrics for the files touched by refactoring commits",
		Version:     version,
		Repository: &Repository{
			URL:    "https://github.com/panbanda/refmine",
			Source: "github",
		},
		Packages: []Package{
			{
				RegistryType: "oci",
				Identifier:   "ghcr.io/panbanda/refmine:" + version,
				PackageArguments: []Argument{
					{Type: "positional", Value: "mcp"},
				},
				Environment: []EnvironmentVariable{
					{Name: ConfigEnv, Description: "Path to a refmine.toml with clone, report and engine settings"},
				},
				Transport: Transport{Type: "stdio"},
			},
		},
	}

	return json.MarshalIndent(manifest, "", "  ")
}
