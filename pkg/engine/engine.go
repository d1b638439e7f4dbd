// Package engine computes the metrics table of a project: it indexes the
// history once, fans the target commits out over a worker pool and merges
// the four metric groups of every modified file into one record.
package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/panbanda/refmine/internal/cache"
	"github.com/panbanda/refmine/internal/vcs"
	"github.com/panbanda/refmine/internal/workpool"
	"github.com/panbanda/refmine/pkg/analyzer/changes"
	"github.com/panbanda/refmine/pkg/analyzer/cohesion"
	"github.com/panbanda/refmine/pkg/analyzer/ownership"
	"github.com/panbanda/refmine/pkg/analyzer/temporal"
	"github.com/panbanda/refmine/pkg/config"
	"github.com/panbanda/refmine/pkg/history"
	"github.com/panbanda/refmine/pkg/models"
	"github.com/panbanda/refmine/pkg/selector"
	"github.com/sirupsen/logrus"
)

var (
	// ErrMissingHistory is returned when a project's history cannot be read.
	ErrMissingHistory = history.ErrMissingHistory
	// ErrUnparseableSource marks a supported file whose class could not be summarized.
	ErrUnparseableSource = cohesion.ErrUnparseable
	// ErrCommitNotFound is returned when a target hash does not name an indexed commit.
	ErrCommitNotFound = errors.New("commit not found")
	// ErrNoTargets is returned when a project has no target commits.
	ErrNoTargets = errors.New("no target commits")
)

// ProgressFunc starts progress reporting for a project with total targets
// and returns the per-target tick and a completion callback.
type ProgressFunc func(project string, total int) (tick func(), done func())

// Engine computes metrics tables.
type Engine struct {
	opener      vcs.Opener
	logger      *logrus.Logger
	workers     int
	historyOpts history.Options
	structural  bool
	crossFile   bool
	maxFileSize int64
	recentDays  int
	exclude     func(path string) bool
	excludeKey  string
	cache       *cache.Cache
	progress    ProgressFunc
}

// Option is a functional option for configuring Engine.
type Option func(*Engine)

// WithOpener sets the repository opener.
func WithOpener(opener vcs.Opener) Option {
	return func(e *Engine) {
		e.opener = opener
	}
}

// WithLogger sets the logger diagnostics are written to.
func WithLogger(logger *logrus.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithWorkers sets how many target commits are processed at once.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithHistoryOptions configures index construction.
func WithHistoryOptions(opts history.Options) Option {
	return func(e *Engine) {
		e.historyOpts = opts
	}
}

// WithStructural enables the structural group and, with crossFile, DIT and NOC.
func WithStructural(enabled, crossFile bool) Option {
	return func(e *Engine) {
		e.structural = enabled
		e.crossFile = crossFile
	}
}

// WithMaxFileSize skips structural analysis of larger files (0 = no limit).
func WithMaxFileSize(n int64) Option {
	return func(e *Engine) {
		e.maxFileSize = n
	}
}

// WithRecentDays sets the REXP window.
func WithRecentDays(days int) Option {
	return func(e *Engine) {
		e.recentDays = days
	}
}

// WithExclude leaves files matching ex out of the table. Each excluded file
// is reported as a diagnostic instead of a record.
func WithExclude(ex config.ExcludeConfig) Option {
	return func(e *Engine) {
		if ex.Empty() {
			e.exclude, e.excludeKey = nil, ""
			return
		}
		e.exclude, e.excludeKey = ex.Match, ex.Key()
	}
}

// WithCache reuses tables computed from the same inputs.
func WithCache(c *cache.Cache) Option {
	return func(e *Engine) {
		e.cache = c
	}
}

// WithProgress reports per-target progress.
func WithProgress(fn ProgressFunc) Option {
	return func(e *Engine) {
		e.progress = fn
	}
}

// New creates an engine with the given options.
func New(opts ...Option) *Engine {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	e := &Engine{
		opener:     vcs.DefaultOpener(),
		logger:     logger,
		workers:    runtime.NumCPU(),
		structural: true,
		recentDays: changes.DefaultRecentDays,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ConfigOptions translates cfg into engine options.
func ConfigOptions(cfg *config.Config) []Option {
	return []Option{
		WithWorkers(cfg.Engine.Workers),
		WithRecentDays(cfg.Engine.RecentDays),
		WithHistoryOptions(history.Options{
			IncludeMerges: cfg.History.IncludeMerges,
			IncludeDiffs:  cfg.History.IncludeDiffs,
		}),
		WithStructural(cfg.Structural.Enabled, cfg.Structural.CrossFile),
		WithMaxFileSize(cfg.Structural.MaxFileSize),
		WithExclude(cfg.Exclude),
	}
}

// settings identifies every option that changes record contents.
func (e *Engine) settings() string {
	return fmt.Sprintf("v2 merges=%t diffs=%t structural=%t cross=%t max=%d recent=%d exclude=%q",
		e.historyOpts.IncludeMerges, e.historyOpts.IncludeDiffs,
		e.structural, e.crossFile, e.maxFileSize, e.recentDays, e.excludeKey)
}

// Run computes the metrics table of project for the given targets.
//
// Project-level failures return the table holding the diagnostic together
// with an error wrapping ErrNoTargets or ErrMissingHistory. Commit- and
// file-level problems only add diagnostics; cancellation is the only other
// error.
func (e *Engine) Run(ctx context.Context, project selector.Project, targets []string) (*models.MetricsTable, error) {
	table := models.NewMetricsTable(project.Name)
	targets = selector.Dedupe(targets)
	if len(targets) == 0 {
		e.diagnose(table, models.Diagnostic{Kind: models.DiagnosticNoTargets, Project: project.Name, Message: "no target commits"})
		table.Seal()
		return table, fmt.Errorf("%s: %w", project.Name, ErrNoTargets)
	}

	repo, err := e.opener.PlainOpen(project.Path)
	if err != nil {
		return e.missingHistory(table, err)
	}

	var inputHash string
	if e.cache != nil && e.cache.Enabled() {
		if head, err := repo.Head(); err == nil {
			inputHash = cache.InputHash(head.Hash().String(), targets, e.settings())
			if cached, ok := e.cache.GetTable(project.Name, inputHash); ok {
				e.logger.WithField("project", project.Name).Debug("using cached metrics table")
				return cached, nil
			}
		}
	}

	idx, err := history.Build(ctx, repo, e.historyOpts)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return e.missingHistory(table, err)
	}
	e.logger.WithFields(logrus.Fields{
		"project": project.Name,
		"commits": idx.Len(),
		"targets": len(targets),
	}).Debug("history indexed")

	if err := e.compute(ctx, table, repo, idx, targets); err != nil {
		return nil, err
	}
	table.Seal()

	if inputHash != "" {
		if err := e.cache.PutTable(project.Name, inputHash, table); err != nil {
			e.logger.WithError(err).WithField("project", project.Name).Warn("failed to cache metrics table")
		}
	}
	return table, nil
}

func (e *Engine) missingHistory(table *models.MetricsTable, err error) (*models.MetricsTable, error) {
	e.diagnose(table, models.Diagnostic{
		Kind:    models.DiagnosticMissingHistory,
		Project: table.Project,
		Message: err.Error(),
	})
	table.Seal()
	if !errors.Is(err, ErrMissingHistory) {
		err = fmt.Errorf("%w: %v", ErrMissingHistory, err)
	}
	return table, fmt.Errorf("%s: %w", table.Project, err)
}

// commitResult is the output of one target commit.
type commitResult struct {
	records     []models.MetricsRecord
	diagnostics []models.Diagnostic
}

// worker is the per-goroutine state of a run.
type worker struct {
	structural *cohesion.Analyzer
}

func (e *Engine) compute(ctx context.Context, table *models.MetricsTable, repo vcs.Repository, idx *history.Index, targets []string) error {
	tick, done := func() {}, func() {}
	if e.progress != nil {
		tick, done = e.progress(table.Project, len(targets))
	}
	defer done()

	p := &projectRun{
		engine:         e,
		project:        table.Project,
		repo:           repo,
		idx:            idx,
		contextMetrics: changes.New(changes.WithRecentDays(e.recentDays)),
		withStructural: e.structural,
	}
	res := workpool.Resource[*worker]{
		Init: func() (*worker, error) {
			return &worker{structural: cohesion.New(cohesion.WithMaxFileSize(e.maxFileSize))}, nil
		},
		Close: func(w *worker) { w.structural.Close() },
	}

	results, errs := workpool.Map(ctx, targets, e.workers, res, p.commit, tick)
	if err := ctx.Err(); err != nil {
		return err
	}
	// A failed item withholds only its own commit's records.
	if errs != nil {
		for _, ie := range errs.Errors {
			if errors.Is(ie.Err, context.Canceled) || errors.Is(ie.Err, context.DeadlineExceeded) {
				return ie.Err
			}
			results[ie.Index] = commitResult{diagnostics: []models.Diagnostic{{
				Kind:    models.DiagnosticUnreadableCommit,
				Project: table.Project,
				Commit:  targets[ie.Index],
				Message: ie.Err.Error(),
			}}}
		}
	}

	for _, r := range results {
		table.Records = append(table.Records, r.records...)
		for _, d := range r.diagnostics {
			e.diagnose(table, d)
		}
	}
	return nil
}

func (e *Engine) diagnose(table *models.MetricsTable, d models.Diagnostic) {
	table.Diagnostics = append(table.Diagnostics, d)
	fields := logrus.Fields{"kind": d.Kind, "project": d.Project}
	if d.Commit != "" {
		fields["commit"] = d.Commit
	}
	if d.File != "" {
		fields["file"] = d.File
	}
	entry := e.logger.WithFields(fields)
	if d.Kind == models.DiagnosticExcludedFile {
		entry.Debug(d.Message)
		return
	}
	entry.Warn(d.Message)
}

// projectRun holds the state shared by every target of one project.
type projectRun struct {
	engine         *Engine
	project        string
	repo           vcs.Repository
	idx            *history.Index
	contextMetrics *changes.Analyzer
	withStructural bool

	// repoMu serializes object reads; the index is read-only and needs no lock.
	repoMu sync.Mutex
}

// commit computes the records of one target commit.
func (p *projectRun) commit(ctx context.Context, w *worker, hash string) (commitResult, error) {
	var out commitResult

	c, err := p.resolve(hash)
	if err != nil {
		out.diagnostics = append(out.diagnostics, models.Diagnostic{
			Kind:    models.DiagnosticCommitNotFound,
			Project: p.project,
			Commit:  hash,
			Message: err.Error(),
		})
		return out, nil
	}
	if c == nil {
		return out, nil
	}

	var tree vcs.Tree
	var inheritance *cohesion.InheritanceTree
	if p.withStructural {
		tree, err = p.tree(c.Hash)
		if err == nil && p.engine.crossFile {
			inheritance, err = p.inheritance(ctx, w, tree)
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return out, ctxErr
			}
			out.diagnostics = append(out.diagnostics, models.Diagnostic{
				Kind:    models.DiagnosticUnreadableCommit,
				Project: p.project,
				Commit:  c.Hash,
				Message: err.Error(),
			})
			return out, nil
		}
	}

	for _, fc := range c.Files {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if p.engine.exclude != nil && p.engine.exclude(fc.Path) {
			out.diagnostics = append(out.diagnostics, models.Diagnostic{
				Kind:    models.DiagnosticExcludedFile,
				Project: p.project,
				Commit:  c.Hash,
				File:    fc.Path,
				Message: "excluded by configuration",
			})
			continue
		}

		rec := models.MetricsRecord{
			CommitHash: c.Hash,
			File:       fc.Path,
			ADD:        fc.Added,
			DEL:        fc.Removed,
			Ownership:  ownership.Compute(p.idx, fc.Path),
			Coupling:   temporal.Compute(p.idx, fc.Path),
			Context:    p.contextMetrics.Compute(p.idx, c, fc.Path),
		}

		structural := cohesion.DefaultResult()
		if p.withStructural {
			structural, err = p.structural(ctx, w, tree, fc.Path, inheritance)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return out, ctxErr
				}
				structural = cohesion.DefaultResult()
				out.diagnostics = append(out.diagnostics, models.Diagnostic{
					Kind:    models.DiagnosticUnparseableSource,
					Project: p.project,
					Commit:  c.Hash,
					File:    fc.Path,
					Message: err.Error(),
				})
			}
		}
		rec.Structural = structural.Metrics
		rec.Unsupported = structural.Unsupported
		out.records = append(out.records, rec)
	}
	return out, nil
}

// resolve maps a target hash to its indexed commit. It returns nil without
// error for commits the index skips by design, such as merges.
func (p *projectRun) resolve(hash string) (*history.Commit, error) {
	if c, ok := p.idx.Lookup(hash); ok {
		return c, nil
	}

	p.repoMu.Lock()
	rc, err := p.repo.ResolveCommit(hash)
	p.repoMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCommitNotFound, hash)
	}

	full := rc.Hash().String()
	if c, ok := p.idx.Lookup(full); ok {
		return c, nil
	}
	if rc.NumParents() > 1 {
		p.engine.logger.WithFields(logrus.Fields{"project": p.project, "commit": full}).Debug("skipping merge commit")
		return nil, nil
	}
	return nil, fmt.Errorf("%w: %s is not reachable from HEAD", ErrCommitNotFound, hash)
}

func (p *projectRun) tree(hash string) (vcs.Tree, error) {
	p.repoMu.Lock()
	defer p.repoMu.Unlock()
	rc, err := p.repo.ResolveCommit(hash)
	if err != nil {
		return nil, err
	}
	return rc.Tree()
}

func (p *projectRun) read(tree vcs.Tree, path string) ([]byte, error) {
	p.repoMu.Lock()
	defer p.repoMu.Unlock()
	return tree.File(path)
}

func (p *projectRun) inheritance(ctx context.Context, w *worker, tree vcs.Tree) (*cohesion.InheritanceTree, error) {
	p.repoMu.Lock()
	entries, err := tree.Entries()
	p.repoMu.Unlock()
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		if cohesion.Supported(entry.Path) {
			paths = append(paths, entry.Path)
		}
	}
	return w.structural.BuildInheritance(ctx, paths, func(path string) ([]byte, error) {
		return p.read(tree, path)
	})
}

// structural computes the structural group of path at the commit's tree.
// Deleted and binary files get the default result.
func (p *projectRun) structural(ctx context.Context, w *worker, tree vcs.Tree, path string, inheritance *cohesion.InheritanceTree) (cohesion.Result, error) {
	if !cohesion.Supported(path) {
		return cohesion.DefaultResult(), nil
	}
	text, err := p.read(tree, path)
	if err != nil {
		if errors.Is(err, vcs.ErrFileNotFound) || errors.Is(err, vcs.ErrBinaryFile) {
			return cohesion.DefaultResult(), nil
		}
		return cohesion.DefaultResult(), fmt.Errorf("%w: %s: %v", ErrUnparseableSource, path, err)
	}
	return w.structural.Compute(ctx, path, text, inheritance)
}

// RunProjects computes a table for every project. Targets are read by
// targetsFor; project-level failures are logged and recorded in that
// project's table, and only cancellation stops the loop.
func (e *Engine) RunProjects(ctx context.Context, projects []selector.Project, targetsFor func(selector.Project) ([]string, error)) ([]*models.MetricsTable, error) {
	tables := make([]*models.MetricsTable, 0, len(projects))
	for _, project := range projects {
		if err := ctx.Err(); err != nil {
			return tables, err
		}

		targets, err := targetsFor(project)
		if err != nil {
			e.logger.WithError(err).WithField("project", project.Name).Warn("failed to read targets")
			targets = nil
		}

		table, err := e.Run(ctx, project, targets)
		if err != nil {
			if ctx.Err() != nil {
				return tables, ctx.Err()
			}
			e.logger.WithError(err).WithField("project", project.Name).Error("skipping project")
		}
		if table != nil {
			tables = append(tables, table)
		}
	}
	return tables, nil
}
