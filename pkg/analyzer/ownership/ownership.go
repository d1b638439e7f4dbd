// Package ownership computes authorship and experience metrics from commit history.
package ownership

import (
	"sort"

	"github.com/panbanda/refmine/pkg/history"
	"github.com/panbanda/refmine/pkg/models"
	"gonum.org/v1/gonum/stat"
)

// MinorThresholdPercent is the contribution share below which an author is minor.
const MinorThresholdPercent = 5

// Contributor is one author's share of a file's history.
type Contributor struct {
	Name    string `json:"name" toon:"name"`
	Commits int    `json:"commits" toon:"commits"`
	Added   int    `json:"added" toon:"added"`
}

// Contributors returns the authors of path in order of first appearance.
func Contributors(idx *history.Index, path string) []Contributor {
	var contributors []Contributor
	pos := make(map[string]int)
	for _, c := range idx.Touches(path) {
		i, ok := pos[c.Author]
		if !ok {
			i = len(contributors)
			pos[c.Author] = i
			contributors = append(contributors, Contributor{Name: c.Author})
		}
		contributors[i].Commits++
		if fc, ok := c.Change(path); ok {
			contributors[i].Added += fc.Added
		}
	}
	return contributors
}

// Compute returns the ownership metrics for path over its whole history.
// A target commit always belongs to that history, so it needs no separate input.
func Compute(idx *history.Index, path string) models.OwnershipMetrics {
	contributors := Contributors(idx, path)
	m := models.OwnershipMetrics{
		COMM: idx.CommitCount(path),
		ADEV: len(contributors),
		DDEV: len(contributors),
	}
	if len(contributors) == 0 {
		return m
	}

	// First author with the maximum contribution wins ties.
	top := 0
	total := 0
	touches := make([]float64, len(contributors))
	for i, c := range contributors {
		total += c.Added
		if c.Added > contributors[top].Added {
			top = i
		}
		touches[i] = float64(c.Commits)
	}

	m.EXP = stat.GeometricMean(touches, nil)

	if total > 0 {
		m.OWN = float64(contributors[top].Added) / float64(total) * 100
		for _, c := range contributors {
			if c.Added*100 < total*MinorThresholdPercent {
				m.MINOR++
			}
		}
	}

	if projectAdded := idx.AuthorAdded(contributors[top].Name); projectAdded > 0 {
		m.OEXP = float64(contributors[top].Added) / float64(projectAdded) * 100
	}
	return m
}

// BusFactor returns the minimum number of authors who together added at
// least half of the project's lines.
func BusFactor(idx *history.Index) int {
	added := make(map[string]int)
	for _, c := range idx.Commits() {
		for _, fc := range c.Files {
			added[c.Author] += fc.Added
		}
	}

	var total int
	sorted := make([]Contributor, 0, len(added))
	for name, lines := range added {
		total += lines
		sorted = append(sorted, Contributor{Name: name, Added: lines})
	}
	if total == 0 {
		return 0
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Added != sorted[j].Added {
			return sorted[i].Added > sorted[j].Added
		}
		return sorted[i].Name < sorted[j].Name
	})

	var accumulated int
	for i, c := range sorted {
		accumulated += c.Added
		if accumulated*2 >= total {
			return i + 1
		}
	}
	return len(sorted)
}

// TopContributors returns up to n project authors by lines added.
func TopContributors(idx *history.Index, n int) []Contributor {
	byName := make(map[string]*Contributor)
	for _, c := range idx.Commits() {
		ct, ok := byName[c.Author]
		if !ok {
			ct = &Contributor{Name: c.Author}
			byName[c.Author] = ct
		}
		ct.Commits++
		for _, fc := range c.Files {
			ct.Added += fc.Added
		}
	}

	out := make([]Contributor, 0, len(byName))
	for _, ct := range byName {
		out = append(out, *ct)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Added != out[j].Added {
			return out[i].Added > out[j].Added
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
