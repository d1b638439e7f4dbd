package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
)

// OwnershipMetrics describes who wrote a file and how experienced they are.
type OwnershipMetrics struct {
	COMM  int     `json:"COMM" yaml:"COMM" toon:"COMM" db:"comm"`
	ADEV  int     `json:"ADEV" yaml:"ADEV" toon:"ADEV" db:"adev"`
	DDEV  int     `json:"DDEV" yaml:"DDEV" toon:"DDEV" db:"ddev"`
	OWN   float64 `json:"OWN" yaml:"OWN" toon:"OWN" db:"own"`
	MINOR int     `json:"MINOR" yaml:"MINOR" toon:"MINOR" db:"minor"`
	OEXP  float64 `json:"OEXP" yaml:"OEXP" toon:"OEXP" db:"oexp"`
	EXP   float64 `json:"EXP" yaml:"EXP" toon:"EXP" db:"exp"`
}

// CouplingMetrics describes commits that changed a file together with others.
type CouplingMetrics struct {
	NADEV int `json:"NADEV" yaml:"NADEV" toon:"NADEV" db:"nadev"`
	NDDEV int `json:"NDDEV" yaml:"NDDEV" toon:"NDDEV" db:"nddev"`
	NCOMM int `json:"NCOMM" yaml:"NCOMM" toon:"NCOMM" db:"ncomm"`
}

// StructuralMetrics are the class-level metrics of a file's primary class.
type StructuralMetrics struct {
	NOM     int     `json:"NOM" yaml:"NOM" toon:"NOM" db:"nom"`
	NOPM    int     `json:"NOPM" yaml:"NOPM" toon:"NOPM" db:"nopm"`
	NOF     int     `json:"NOF" yaml:"NOF" toon:"NOF" db:"nof"`
	NOSF    int     `json:"NOSF" yaml:"NOSF" toon:"NOSF" db:"nosf"`
	NOPF    int     `json:"NOPF" yaml:"NOPF" toon:"NOPF" db:"nopf"`
	DIT     int     `json:"DIT" yaml:"DIT" toon:"DIT" db:"dit"`
	NOC     int     `json:"NOC" yaml:"NOC" toon:"NOC" db:"noc"`
	RFC     int     `json:"RFC" yaml:"RFC" toon:"RFC" db:"rfc"`
	ELOC    int     `json:"ELOC" yaml:"ELOC" toon:"ELOC" db:"eloc"`
	WMC     int     `json:"WMC" yaml:"WMC" toon:"WMC" db:"wmc"`
	CBO     int     `json:"CBO" yaml:"CBO" toon:"CBO" db:"cbo"`
	HsLCOM  float64 `json:"HsLCOM" yaml:"HsLCOM" toon:"HsLCOM" db:"hslcom"`
	C3      float64 `json:"C3" yaml:"C3" toon:"C3" db:"c3"`
	ComRead float64 `json:"ComRead" yaml:"ComRead" toon:"ComRead" db:"comread"`
	NOSM    int     `json:"NOSM" yaml:"NOSM" toon:"NOSM" db:"nosm"`
	NOSI    int     `json:"NOSI" yaml:"NOSI" toon:"NOSI" db:"nosi"`
	SEXP    float64 `json:"SEXP" yaml:"SEXP" toon:"SEXP" db:"sexp"`
}

// StructuralFields lists every structural field name in output order.
var StructuralFields = []string{
	"NOM", "NOPM", "NOF", "NOSF", "NOPF", "DIT", "NOC", "RFC", "ELOC",
	"WMC", "CBO", "HsLCOM", "C3", "ComRead", "NOSM", "NOSI", "SEXP",
}

// ContextMetrics describe the commit itself and its author's history with the file.
type ContextMetrics struct {
	ND   int     `json:"ND" yaml:"ND" toon:"ND" db:"nd"`
	NS   int     `json:"NS" yaml:"NS" toon:"NS" db:"ns"`
	AGE  float64 `json:"AGE" yaml:"AGE" toon:"AGE" db:"age"`
	FIX  bool    `json:"FIX" yaml:"FIX" toon:"FIX" db:"fix"`
	NUC  int     `json:"NUC" yaml:"NUC" toon:"NUC" db:"nuc"`
	CEXP int     `json:"CEXP" yaml:"CEXP" toon:"CEXP" db:"cexp"`
	REXP int     `json:"REXP" yaml:"REXP" toon:"REXP" db:"rexp"`
}

// MetricsRecord holds every metric for one file modified by one commit.
type MetricsRecord struct {
	CommitHash string            `json:"commit_hash" yaml:"commit_hash" toon:"commit_hash"`
	File       string            `json:"file" yaml:"file" toon:"file"`
	ADD        int               `json:"ADD" yaml:"ADD" toon:"ADD"`
	DEL        int               `json:"DEL" yaml:"DEL" toon:"DEL"`
	Ownership  OwnershipMetrics  `json:"ownership" yaml:"ownership" toon:"ownership"`
	Coupling   CouplingMetrics   `json:"coupling" yaml:"coupling" toon:"coupling"`
	Structural StructuralMetrics `json:"structural" yaml:"structural" toon:"structural"`
	Context    ContextMetrics    `json:"context" yaml:"context" toon:"context"`
	// Unsupported names fields that hold a default instead of a computed value.
	Unsupported []string `json:"unsupported,omitempty" yaml:"unsupported,omitempty" toon:"unsupported,omitempty"`
}

// IsUnsupported reports whether field holds a default value.
func (r *MetricsRecord) IsUnsupported(field string) bool {
	for _, f := range r.Unsupported {
		if f == field {
			return true
		}
	}
	return false
}

// DiagnosticKind classifies a recoverable problem met while computing metrics.
type DiagnosticKind string

const (
	DiagnosticMissingHistory    DiagnosticKind = "missing_history"
	DiagnosticCommitNotFound    DiagnosticKind = "commit_not_found"
	DiagnosticUnparseableSource DiagnosticKind = "unparseable_source"
	DiagnosticNoTargets         DiagnosticKind = "no_targets"
	DiagnosticUnreadableCommit  DiagnosticKind = "unreadable_commit"
	DiagnosticExcludedFile      DiagnosticKind = "excluded_file"
)

// Diagnostic records a skipped project, commit or file.
type Diagnostic struct {
	Kind    DiagnosticKind `json:"kind" yaml:"kind" toon:"kind"`
	Project string         `json:"project" yaml:"project" toon:"project"`
	Commit  string         `json:"commit,omitempty" yaml:"commit,omitempty" toon:"commit,omitempty"`
	File    string         `json:"file,omitempty" yaml:"file,omitempty" toon:"file,omitempty"`
	Message string         `json:"message" yaml:"message" toon:"message"`
}

func (d Diagnostic) String() string {
	s := fmt.Sprintf("%s: %s", d.Kind, d.Project)
	if d.Commit != "" {
		s += "@" + d.Commit
	}
	if d.File != "" {
		s += ":" + d.File
	}
	return s + ": " + d.Message
}

// MetricsTable is the ordered set of records produced for one project.
type MetricsTable struct {
	Project     string          `json:"project" yaml:"project" toon:"project"`
	GeneratedAt time.Time       `json:"generated_at" yaml:"generated_at" toon:"generated_at"`
	Records     []MetricsRecord `json:"records" yaml:"records" toon:"records"`
	Diagnostics []Diagnostic    `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty" toon:"diagnostics,omitempty"`
	Fingerprint string          `json:"fingerprint" yaml:"fingerprint" toon:"fingerprint"`
}

// NewMetricsTable creates an empty table for project.
func NewMetricsTable(project string) *MetricsTable {
	return &MetricsTable{
		Project:     project,
		GeneratedAt: time.Now().UTC(),
		Records:     []MetricsRecord{},
	}
}

// Seal computes the fingerprint over the records.
func (t *MetricsTable) Seal() {
	t.Fingerprint = FingerprintRecords(t.Records)
}

// FingerprintRecords hashes records with xxhash. Identical records give
// identical fingerprints regardless of when they were computed.
func FingerprintRecords(records []MetricsRecord) string {
	h := xxhash.New()
	enc := json.NewEncoder(h)
	for i := range records {
		// Encoding plain structs of numbers and strings cannot fail.
		_ = enc.Encode(&records[i])
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
