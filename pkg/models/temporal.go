package models

import "time"

// FileCoupling is how often two files changed in the same commit.
type FileCoupling struct {
	FileA            string  `json:"file_a" yaml:"file_a" toon:"file_a"`
	FileB            string  `json:"file_b" yaml:"file_b" toon:"file_b"`
	CochangeCount    int     `json:"cochange_count" yaml:"cochange_count" toon:"cochange_count"`
	CouplingStrength float64 `json:"coupling_strength" yaml:"coupling_strength" toon:"coupling_strength"` // 0-1
	CommitsA         int     `json:"commits_a" yaml:"commits_a" toon:"commits_a"`
	CommitsB         int     `json:"commits_b" yaml:"commits_b" toon:"commits_b"`
}

// CouplingSummary aggregates a coupling report.
type CouplingSummary struct {
	TotalCouplings      int     `json:"total_couplings" yaml:"total_couplings" toon:"total_couplings"`
	StrongCouplings     int     `json:"strong_couplings" yaml:"strong_couplings" toon:"strong_couplings"`
	AvgCouplingStrength float64 `json:"avg_coupling_strength" yaml:"avg_coupling_strength" toon:"avg_coupling_strength"`
	MaxCouplingStrength float64 `json:"max_coupling_strength" yaml:"max_coupling_strength" toon:"max_coupling_strength"`
	TotalFiles          int     `json:"total_files" yaml:"total_files" toon:"total_files"`
}

// CouplingAnalysis is the pairwise co-change report for a project.
type CouplingAnalysis struct {
	Project      string          `json:"project" yaml:"project" toon:"project"`
	GeneratedAt  time.Time       `json:"generated_at" yaml:"generated_at" toon:"generated_at"`
	Commits      int             `json:"commits" yaml:"commits" toon:"commits"`
	MinCochanges int             `json:"min_cochanges" yaml:"min_cochanges" toon:"min_cochanges"`
	Couplings    []FileCoupling  `json:"couplings" yaml:"couplings" toon:"couplings"`
	Summary      CouplingSummary `json:"summary" yaml:"summary" toon:"summary"`
}

// DefaultMinCochanges is the minimum co-change count to report a pair.
const DefaultMinCochanges = 3

// StrongCouplingThreshold is the strength at which a pair counts as strong.
const StrongCouplingThreshold = 0.5

// CalculateSummary fills Summary. Couplings must be sorted strongest first.
func (a *CouplingAnalysis) CalculateSummary(totalFiles int) {
	a.Summary = CouplingSummary{
		TotalFiles:     totalFiles,
		TotalCouplings: len(a.Couplings),
	}
	if len(a.Couplings) == 0 {
		return
	}

	a.Summary.MaxCouplingStrength = a.Couplings[0].CouplingStrength
	var sum float64
	for _, c := range a.Couplings {
		sum += c.CouplingStrength
		if c.CouplingStrength >= StrongCouplingThreshold {
			a.Summary.StrongCouplings++
		}
	}
	a.Summary.AvgCouplingStrength = sum / float64(len(a.Couplings))
}

// CalculateCouplingStrength returns cochanges / max(commitsA, commitsB), capped at 1.
func CalculateCouplingStrength(cochanges, commitsA, commitsB int) float64 {
	maxCommits := max(commitsA, commitsB)
	if maxCommits == 0 {
		return 0
	}
	return min(float64(cochanges)/float64(maxCommits), 1.0)
}
