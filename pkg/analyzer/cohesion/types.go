package cohesion

import (
	"errors"
	"sort"

	"github.com/panbanda/refmine/pkg/models"
)

// ErrUnparseable is returned when a supported source file cannot be summarized.
var ErrUnparseable = errors.New("source not parseable")

// AlwaysUnsupported lists fields no single-commit parse can compute.
var AlwaysUnsupported = []string{"C3", "ComRead", "NOSI", "SEXP"}

// CrossFileFields need the inheritance view of the whole tree.
var CrossFileFields = []string{"DIT", "NOC"}

// Result is the structural view of one file.
type Result struct {
	// Class is the primary class the metrics describe; empty when none was found.
	Class       string
	Language    string
	Metrics     models.StructuralMetrics
	Unsupported []string
}

// DefaultResult is the all-zero result with every field flagged.
func DefaultResult() Result {
	all := make([]string, len(models.StructuralFields))
	copy(all, models.StructuralFields)
	sort.Strings(all)
	return Result{Unsupported: all}
}

func unsupportedFields(crossFile bool) []string {
	fields := append([]string{}, AlwaysUnsupported...)
	if !crossFile {
		fields = append(fields, CrossFileFields...)
	}
	sort.Strings(fields)
	return fields
}
