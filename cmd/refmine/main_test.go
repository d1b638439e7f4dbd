package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/refmine/internal/storage"
	"github.com/panbanda/refmine/internal/testutil"
	"github.com/panbanda/refmine/pkg/config"
	"github.com/panbanda/refmine/pkg/engine"
	"github.com/panbanda/refmine/pkg/models"
)

const widgetJava = `public class Widget {
    private int size;

    public int size() {
        return size;
    }
}
`

// run executes the CLI with args and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &errOut
	err := app.Run(append([]string{"refmine", "--no-color"}, args...))
	return out.String(), err
}

type workspace struct {
	repo    *testutil.GitRepo
	name    string
	config  string
	output  string
	targets []string
}

func newWorkspace(t *testing.T) workspace {
	t.Helper()
	r := testutil.NewGitRepo(t)
	c1 := r.Write("alice", "add widget", map[string]string{"src/Widget.java": widgetJava})
	c2 := r.Write("bob", "WID-1 grow widget", map[string]string{
		"src/Widget.java": widgetJava + "// v2\n",
		"src/Util.java":   "public class Util {\n}\n",
	})

	root := t.TempDir()
	w := workspace{
		repo:    r,
		name:    filepath.Base(r.Path),
		config:  filepath.Join(root, "refmine.toml"),
		output:  filepath.Join(root, "metrics_results"),
		targets: []string{c1, c2},
	}
	reports := filepath.Join(root, "refactoring_results")
	testutil.WriteFile(t, filepath.Join(reports, w.name+"_refactorings.json"),
		fmt.Sprintf(`{"commits":[{"sha1":%q},{"sha1":%q},{"sha1":%q}]}`, c2, c1, c2))

	testutil.WriteFile(t, w.config, fmt.Sprintf(`
[projects]
clone_dir = %q
reports_dir = %q
output_dir = %q

[cache]
enabled = false
`, filepath.Dir(r.Path), reports, w.output))
	return w
}

func TestMetricsCommand(t *testing.T) {
	w := newWorkspace(t)
	db := filepath.Join(t.TempDir(), "metrics.db")

	out, err := run(t, "--config", w.config, "metrics", "--no-progress", "--sqlite", db, w.name)
	require.NoError(t, err)
	assert.Contains(t, out, w.name+": 3 records, 0 diagnostics")

	data, err := os.ReadFile(filepath.Join(w.output, w.name+"_metrics.json"))
	require.NoError(t, err)
	var table models.MetricsTable
	require.NoError(t, json.Unmarshal(data, &table))
	require.Len(t, table.Records, 3)
	assert.Equal(t, w.targets[1], table.Records[0].CommitHash)
	assert.Equal(t, w.targets[0], table.Records[2].CommitHash)

	store, err := storage.NewSQLiteStore(db, nil)
	require.NoError(t, err)
	defer store.Close()
	stored, err := store.LoadTable(context.Background(), w.name)
	require.NoError(t, err)
	assert.Equal(t, table.Fingerprint, stored.Fingerprint)
}

func TestMetricsCommand_Format(t *testing.T) {
	w := newWorkspace(t)

	_, err := run(t, "--config", w.config, "--format", "yaml", "metrics", "--no-progress", w.name)
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(w.output, w.name+"_metrics.yaml"))
	assert.NoError(t, err)
}

func TestMetricsCommand_ProjectList(t *testing.T) {
	w := newWorkspace(t)
	list := filepath.Join(t.TempDir(), "projects.txt")
	testutil.WriteFile(t, list, "# projects\nhttps://example.com/org/"+w.name+".git\nmissing-project\n")

	out, err := run(t, "--config", w.config, "metrics", "--no-progress", "--projects", list)
	require.NoError(t, err)
	assert.Contains(t, out, w.name+": 3 records")
	assert.Contains(t, out, "WARNING: missing-project: 0 records, 1 diagnostics")
}

func TestMetricsCommand_NoProjects(t *testing.T) {
	w := newWorkspace(t)
	_, err := run(t, "--config", w.config, "metrics")
	assert.ErrorContains(t, err, "no projects given")
}

func TestIndexCommand(t *testing.T) {
	w := newWorkspace(t)

	out, err := run(t, "--config", w.config, "--format", "json", "index", w.repo.Path)
	require.NoError(t, err)

	var report engine.IndexReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, w.name, report.Project)
	assert.Equal(t, 2, report.Summary.Commits)
	assert.Equal(t, 2, report.Summary.Authors)
	assert.Len(t, report.TopContributors, 2)

	out, err = run(t, "--config", w.config, "index", w.repo.Path)
	require.NoError(t, err)
	assert.Contains(t, out, "History: "+w.name)
	assert.Contains(t, out, "Bus factor")

	_, err = run(t, "--config", w.config, "index")
	assert.ErrorContains(t, err, "exactly one repository path")
}

func TestCouplingCommand(t *testing.T) {
	w := newWorkspace(t)

	out, err := run(t, "--config", w.config, "coupling", "--min-cochanges", "1", w.repo.Path)
	require.NoError(t, err)
	assert.Contains(t, out, "Temporal Coupling")
	assert.Contains(t, out, "src/Util.java")
	assert.Contains(t, out, "src/Widget.java")
}

func TestShowCommand(t *testing.T) {
	w := newWorkspace(t)
	db := filepath.Join(t.TempDir(), "metrics.db")
	_, err := run(t, "--config", w.config, "metrics", "--no-progress", "--sqlite", db, w.name)
	require.NoError(t, err)

	out, err := run(t, "--config", w.config, "show", "--sqlite", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Stored Tables")
	assert.Contains(t, out, w.name)

	out, err = run(t, "--config", w.config, "--format", "json", "show", "--sqlite", db, w.name)
	require.NoError(t, err)
	var table models.MetricsTable
	require.NoError(t, json.Unmarshal([]byte(out), &table))
	assert.Equal(t, w.name, table.Project)
	require.Len(t, table.Records, 3)
	assert.Equal(t, w.targets[1], table.Records[0].CommitHash)

	_, err = run(t, "--config", w.config, "show", "--sqlite", db, "nope")
	assert.ErrorContains(t, err, "not stored")

	missing := filepath.Join(t.TempDir(), "missing.db")
	_, err = run(t, "--config", w.config, "show", "--sqlite", missing)
	assert.Error(t, err)
	_, statErr := os.Stat(missing)
	assert.True(t, os.IsNotExist(statErr))

	_, err = run(t, "--config", w.config, "show")
	assert.ErrorContains(t, err, "no database given")
}

func TestInitCommand(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := run(t, "init")
	require.NoError(t, err)

	cfg, err := config.Load("refmine.toml")
	require.NoError(t, err)
	def := config.DefaultConfig()
	assert.Equal(t, def.Projects, cfg.Projects)
	assert.Equal(t, def.Structural, cfg.Structural)
	assert.Equal(t, def.Engine, cfg.Engine)
	assert.Equal(t, def.Cache, cfg.Cache)
	assert.Equal(t, def.Output, cfg.Output)
	assert.True(t, cfg.Exclude.Empty())

	_, err = run(t, "init")
	assert.ErrorContains(t, err, "already exists")

	_, err = run(t, "init", "--force", "-o", filepath.Join(".refmine", "refmine.toml"))
	require.NoError(t, err)
	path, ok := config.Find()
	assert.True(t, ok)
	assert.Equal(t, "refmine.toml", path)
}

func TestMCPManifest(t *testing.T) {
	out, err := run(t, "mcp", "--manifest")
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &m))
	assert.Equal(t, "dev", m["version"])
}
