// Package selector reads the commits to analyze for a project and locates
// projects on disk.
package selector

import (
	"bufio"
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ErrInvalidReport is returned when a refactoring report does not match the schema.
var ErrInvalidReport = errors.New("invalid refactoring report")

//go:embed report.schema.json
var reportSchemaJSON []byte

const reportSchemaURL = "refmine://report.schema.json"

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func reportSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(reportSchemaJSON))
		if err != nil {
			schemaErr = err
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(reportSchemaURL, doc); err != nil {
			schemaErr = err
			return
		}
		schema, schemaErr = c.Compile(reportSchemaURL)
	})
	return schema, schemaErr
}

// Report is the subset of a refactoring-detector report that selects commits.
type Report struct {
	Commits []ReportCommit `json:"commits"`
}

// ReportCommit is one commit entry of a report.
type ReportCommit struct {
	Repository string `json:"repository,omitempty"`
	SHA1       string `json:"sha1"`
	URL        string `json:"url,omitempty"`
}

// ParseReport validates data against the report schema and returns the
// target hashes in report order, without empties or duplicates.
func ParseReport(data []byte) ([]string, error) {
	sch, err := reportSchema()
	if err != nil {
		return nil, fmt.Errorf("compile report schema: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReport, err)
	}
	if err := sch.Validate(inst); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReport, err)
	}

	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReport, err)
	}
	hashes := make([]string, 0, len(report.Commits))
	for _, c := range report.Commits {
		hashes = append(hashes, c.SHA1)
	}
	return Dedupe(hashes), nil
}

// ParseHashList reads one hash per line. Blank lines and lines starting
// with # are ignored.
func ParseHashList(r io.Reader) ([]string, error) {
	var hashes []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		hashes = append(hashes, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return Dedupe(hashes), nil
}

// Targets reads the target hashes from a report or a plain hash list. JSON
// content is treated as a report.
func Targets(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return ParseReport(trimmed)
	}
	return ParseHashList(bytes.NewReader(data))
}

// Dedupe drops empty hashes and later duplicates, keeping order.
func Dedupe(hashes []string) []string {
	seen := make(map[string]bool, len(hashes))
	out := make([]string, 0, len(hashes))
	for _, h := range hashes {
		h = strings.TrimSpace(h)
		if h == "" || seen[h] {
			continue
		}
		seen[h] = true
		out = append(out, h)
	}
	return out
}

// ReportPath is where the refactoring report of project is expected.
func ReportPath(reportsDir, project string) string {
	return filepath.Join(reportsDir, project+"_refactorings.json")
}

// Project is a repository to analyze.
type Project struct {
	Name string
	Path string
}

// ProjectName derives a project name from a repository URL, path or name:
// the last path segment without a .git suffix.
func ProjectName(ref string) string {
	ref = strings.TrimRight(strings.TrimSpace(ref), "/")
	if i := strings.LastIndexAny(ref, "/:"); i >= 0 {
		ref = ref[i+1:]
	}
	return strings.TrimSuffix(ref, ".git")
}

// NewProject resolves ref to a project inside cloneDir.
func NewProject(cloneDir, ref string) Project {
	name := ProjectName(ref)
	return Project{Name: name, Path: filepath.Join(cloneDir, name)}
}

// ParseProjects reads repository URLs or names, one per line.
func ParseProjects(r io.Reader, cloneDir string) ([]Project, error) {
	var projects []Project
	seen := make(map[string]bool)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		p := NewProject(cloneDir, line)
		if p.Name == "" || seen[p.Name] {
			continue
		}
		seen[p.Name] = true
		projects = append(projects, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return projects, nil
}

// LoadProjects reads a project list file.
func LoadProjects(path, cloneDir string) ([]Project, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseProjects(f, cloneDir)
}
