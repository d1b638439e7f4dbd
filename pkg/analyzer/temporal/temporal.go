// Package temporal derives co-change metrics from commit history.
package temporal

import (
	"sort"
	"time"

	"github.com/panbanda/refmine/pkg/history"
	"github.com/panbanda/refmine/pkg/models"
)

// Compute returns co-change metrics for path. A commit co-changes path when
// it touches path and at least one other file.
func Compute(idx *history.Index, path string) models.CouplingMetrics {
	var m models.CouplingMetrics
	authors := make(map[string]struct{})
	for _, c := range idx.Touches(path) {
		if len(c.Files) < 2 {
			continue
		}
		m.NCOMM++
		authors[c.Author] = struct{}{}
	}
	m.NADEV = len(authors)
	m.NDDEV = len(authors)
	return m
}

// filePair is an unordered pair of files.
type filePair struct {
	a, b string
}

func makeFilePair(a, b string) filePair {
	if a > b {
		a, b = b, a
	}
	return filePair{a: a, b: b}
}

// Couplings reports every file pair that changed together at least
// minCochanges times, strongest first.
func Couplings(idx *history.Index, minCochanges int) *models.CouplingAnalysis {
	if minCochanges <= 0 {
		minCochanges = models.DefaultMinCochanges
	}

	cochanges := make(map[filePair]int)
	for _, c := range idx.Commits() {
		for i := 0; i < len(c.Files); i++ {
			for j := i + 1; j < len(c.Files); j++ {
				cochanges[makeFilePair(c.Files[i].Path, c.Files[j].Path)]++
			}
		}
	}

	var couplings []models.FileCoupling
	for pair, count := range cochanges {
		if count < minCochanges {
			continue
		}
		commitsA := idx.CommitCount(pair.a)
		commitsB := idx.CommitCount(pair.b)
		couplings = append(couplings, models.FileCoupling{
			FileA:            pair.a,
			FileB:            pair.b,
			CochangeCount:    count,
			CouplingStrength: models.CalculateCouplingStrength(count, commitsA, commitsB),
			CommitsA:         commitsA,
			CommitsB:         commitsB,
		})
	}

	sort.Slice(couplings, func(i, j int) bool {
		if couplings[i].CouplingStrength != couplings[j].CouplingStrength {
			return couplings[i].CouplingStrength > couplings[j].CouplingStrength
		}
		if couplings[i].FileA != couplings[j].FileA {
			return couplings[i].FileA < couplings[j].FileA
		}
		return couplings[i].FileB < couplings[j].FileB
	})

	analysis := &models.CouplingAnalysis{
		GeneratedAt:  time.Now().UTC(),
		Commits:      idx.Len(),
		MinCochanges: minCochanges,
		Couplings:    couplings,
	}
	analysis.CalculateSummary(len(idx.Paths()))
	return analysis
}
