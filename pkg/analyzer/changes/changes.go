// Package changes computes commit-level context metrics for a modified file.
package changes

import (
	"math"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/panbanda/refmine/pkg/history"
	"github.com/panbanda/refmine/pkg/models"
	"gonum.org/v1/gonum/stat"
)

// DefaultRecentDays is the window for recent experience.
const DefaultRecentDays = 30

// issueKeyPattern matches tracker keys such as JIRA-42.
var issueKeyPattern = regexp.MustCompile(`\b[A-Za-z]+-\d+\b`)

// Analyzer computes commit context metrics.
type Analyzer struct {
	recentDays int
}

// Option is a functional option for configuring Analyzer.
type Option func(*Analyzer)

// WithRecentDays sets the window used for REXP.
func WithRecentDays(days int) Option {
	return func(a *Analyzer) {
		if days > 0 {
			a.recentDays = days
		}
	}
}

// New creates a new commit context analyzer.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{recentDays: DefaultRecentDays}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// IsFix reports whether message references an issue key.
func IsFix(message string) bool {
	return issueKeyPattern.MatchString(message)
}

// Subsystem returns the first segment of a file's directory. Root-level
// files all belong to the empty subsystem.
func Subsystem(file string) string {
	dir := path.Dir(file)
	if dir == "." || dir == "/" {
		return ""
	}
	if i := strings.IndexByte(dir, '/'); i >= 0 {
		return dir[:i]
	}
	return dir
}

// Compute returns context metrics for file as modified by commit.
func (a *Analyzer) Compute(idx *history.Index, commit *history.Commit, file string) models.ContextMetrics {
	dirs := make(map[string]struct{})
	subsystems := make(map[string]struct{})
	for _, fc := range commit.Files {
		dirs[path.Dir(fc.Path)] = struct{}{}
		subsystems[Subsystem(fc.Path)] = struct{}{}
	}

	m := models.ContextMetrics{
		ND:  len(dirs),
		NS:  len(subsystems),
		FIX: IsFix(commit.Message),
	}

	touches := idx.Touches(file)
	m.NUC = len(touches)

	recentFrom := commit.Timestamp.AddDate(0, 0, -a.recentDays)
	var ages []float64
	for _, c := range touches {
		if c.Ordinal < commit.Ordinal {
			ages = append(ages, float64(dayDiff(commit.Timestamp, c.Timestamp)))
		}
		if c.Author != commit.Author {
			continue
		}
		m.CEXP++
		if !c.Timestamp.Before(recentFrom) && !c.Timestamp.After(commit.Timestamp) {
			m.REXP++
		}
	}
	if len(ages) > 0 {
		m.AGE = stat.Mean(ages, nil)
	}
	return m
}

// dayDiff returns the whole days from earlier to later, floored. Clock skew
// can make the result negative.
func dayDiff(later, earlier time.Time) int {
	return int(math.Floor(later.Sub(earlier).Hours() / 24))
}
